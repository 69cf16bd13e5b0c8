// Package client is the symmetric client-side request builder spec.md §1
// calls for: it builds the same PatchRequest/Operations JSON envelope
// (following imulab/go-scim's PatchPayload/PatchOperation wire shape) and
// CRUD requests the server in this module consumes, using net/http/net/url
// the same way the server's own HTTP plumbing does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client issues SCIM protocol requests (RFC 7644) against a single base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client against baseURL, using http.DefaultClient if c is nil.
func New(baseURL string, c *http.Client) Client {
	if c == nil {
		c = http.DefaultClient
	}
	return Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTPClient: c}
}

// PatchOp is the wire verb of a single patch operation.
type PatchOp string

const (
	PatchOperationAdd     PatchOp = "add"
	PatchOperationReplace PatchOp = "replace"
	PatchOperationRemove  PatchOp = "remove"
)

// PatchOperation is one entry of a PatchRequest's "Operations" array,
// mirroring the server's own scim.PatchOperation wire shape.
type PatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// PatchRequest is the PatchOp envelope RFC 7644 §3.5.2 defines.
type PatchRequest struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// NewPatchRequest builds an empty PatchRequest with the standard PatchOp schema URN.
func NewPatchRequest() *PatchRequest {
	return &PatchRequest{Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"}}
}

// Add appends an "add" operation to req and returns req for chaining.
func (req *PatchRequest) Add(path string, value interface{}) *PatchRequest {
	req.Operations = append(req.Operations, PatchOperation{Op: string(PatchOperationAdd), Path: path, Value: value})
	return req
}

// Replace appends a "replace" operation to req and returns req for chaining.
func (req *PatchRequest) Replace(path string, value interface{}) *PatchRequest {
	req.Operations = append(req.Operations, PatchOperation{Op: string(PatchOperationReplace), Path: path, Value: value})
	return req
}

// Remove appends a "remove" operation to req and returns req for chaining.
func (req *PatchRequest) Remove(path string) *PatchRequest {
	req.Operations = append(req.Operations, PatchOperation{Op: string(PatchOperationRemove), Path: path})
	return req
}

// ListParams builds the "filter"/"count"/"startIndex" query string of a
// list/query request.
type ListParams struct {
	Filter     string
	Count      int
	StartIndex int
}

func (p ListParams) queryString() string {
	q := url.Values{}
	if p.Filter != "" {
		q.Set("filter", p.Filter)
	}
	if p.Count > 0 {
		q.Set("count", strconv.Itoa(p.Count))
	}
	if p.StartIndex > 0 {
		q.Set("startIndex", strconv.Itoa(p.StartIndex))
	}
	return q.Encode()
}

func (c Client) do(ctx context.Context, method, path string, query string, body interface{}) (*http.Response, error) {
	u := c.BaseURL + path
	if query != "" {
		u += "?" + query
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/scim+json")
	req.Header.Set("Accept", "application/scim+json")

	return c.HTTPClient.Do(req)
}

// Create issues a POST against endpoint (e.g. "/Users") with attributes as
// the request body.
func (c Client) Create(ctx context.Context, endpoint string, attributes map[string]interface{}) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, "", attributes)
}

// Get issues a GET for a single resource by id.
func (c Client) Get(ctx context.Context, endpoint, id string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, endpoint+"/"+url.PathEscape(id), "", nil)
}

// List issues a GET against endpoint with the given list/query parameters.
func (c Client) List(ctx context.Context, endpoint string, params ListParams) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, params.queryString(), nil)
}

// Replace issues a PUT for a single resource by id.
func (c Client) Replace(ctx context.Context, endpoint, id string, attributes map[string]interface{}) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, endpoint+"/"+url.PathEscape(id), "", attributes)
}

// Patch issues a PATCH for a single resource by id with req as the body.
func (c Client) Patch(ctx context.Context, endpoint, id string, req *PatchRequest) (*http.Response, error) {
	return c.do(ctx, http.MethodPatch, endpoint+"/"+url.PathEscape(id), "", req)
}

// Delete issues a DELETE for a single resource by id.
func (c Client) Delete(ctx context.Context, endpoint, id string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, endpoint+"/"+url.PathEscape(id), "", nil)
}
