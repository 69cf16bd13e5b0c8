package scim

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/optional"
	"github.com/patchscim/scim/schema"
)

// ResourceAttributes is a validated resource document: the dynamic
// object/array/scalar tree spec.md §3 describes, keyed by base attribute
// name at the root (plus, for extensions, the nested object keyed by
// extension URI).
type ResourceAttributes = map[string]interface{}

// Resource is a persisted resource: its attributes plus the metadata the
// host's ResourceStore (spec.md §6) is expected to track.
type Resource struct {
	ID         string
	ExternalID optional.String
	Attributes ResourceAttributes
	Meta       Meta
}

// Meta is RFC 7643 §3.1's "meta" complex attribute.
type Meta struct {
	ResourceType string
	Created      string
	LastModified string
	Location     string
	Version      string
}

// ResourceHandler is the host-side ResourceStore spec.md §6 describes as
// "consumed from host" (load/store). Note there is no Patch method: PATCH is
// handled entirely by the server calling ApplyPatch against the resource
// Get returns, then calling Replace only if the result changed — the
// handler never sees patch semantics, matching spec.md's "out of scope:
// persistence" framing.
type ResourceHandler interface {
	Create(r *http.Request, attributes ResourceAttributes) (Resource, *errors.ScimError)
	Get(r *http.Request, id string) (Resource, *errors.ScimError)
	GetAll(r *http.Request, params ListRequestParams) (Page, *errors.ScimError)
	Replace(r *http.Request, id string, attributes ResourceAttributes) (Resource, *errors.ScimError)
	Delete(r *http.Request, id string) *errors.ScimError
}

// Page is one page of a GetAll result (RFC 7644 §3.4.2); server-side
// sorting/pagination beyond honoring count/startIndex is out of scope
// (spec.md §1's Non-goals).
type Page struct {
	TotalResults int
	Resources    []Resource
}

// ListRequestParams carries the parsed "filter"/"count"/"startIndex" query
// parameters of a list/query request.
type ListRequestParams struct {
	Count      int
	Filter     FilterAST
	StartIndex int
}

// ResourceType specifies the metadata about a resource type.
type ResourceType struct {
	// ID is the resource type's server unique id, often same as Name.
	ID optional.String
	// Name is the resource type name, referenced by "meta.resourceType".
	Name string
	// Description is the resource type's human-readable description.
	Description optional.String
	// Endpoint is the resource type's HTTP endpoint relative to the server's
	// prefix, e.g. "/Users".
	Endpoint string
	// Schema is the resource type's primary schema.
	Schema schema.Schema
	// SchemaExtensions is the resource type's schema extensions.
	SchemaExtensions []SchemaExtension

	// Handler connects this resource type to its provider.
	Handler ResourceHandler
}

// SchemaExtension is one of a resource type's schema extensions.
type SchemaExtension struct {
	// Schema is the extended schema, keyed at the resource root by its URI.
	Schema schema.Schema
	// Required specifies whether a resource of this type MUST include this
	// extension.
	Required bool
}

func (t ResourceType) getRaw() map[string]interface{} {
	return map[string]interface{}{
		"schemas":          []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
		"id":               t.ID.Value(),
		"name":             t.Name,
		"description":      t.Description.Value(),
		"endpoint":         t.Endpoint,
		"schema":           t.Schema.ID,
		"schemaExtensions": t.getRawSchemaExtensions(),
	}
}

func (t ResourceType) getRawSchemaExtensions() []map[string]interface{} {
	extensions := make([]map[string]interface{}, 0, len(t.SchemaExtensions))
	for _, e := range t.SchemaExtensions {
		extensions = append(extensions, map[string]interface{}{
			"schema":   e.Schema.ID,
			"required": e.Required,
		})
	}
	return extensions
}

// registry builds the Schema Registry (C1) this resource type resolves
// patch/filter attribute paths against.
func (t ResourceType) registry() schema.Registry {
	extensions := make([]schema.Schema, len(t.SchemaExtensions))
	for i, e := range t.SchemaExtensions {
		extensions[i] = e.Schema
	}
	return schema.NewRegistry(t.schemaWithCommon(), extensions...)
}

// schemaWithCommon adds the common "externalId" attribute every resource
// type's primary schema carries (RFC 7643 §3.1).
func (t ResourceType) schemaWithCommon() schema.Schema {
	s := t.Schema
	externalID := schema.SimpleCoreAttribute(
		schema.SimpleStringParams(schema.CommonAttributeExternalID, true, false, false),
	)
	s.Attributes = append(s.Attributes, externalID)
	return s
}

func (t ResourceType) validate(raw []byte) (ResourceAttributes, *errors.ScimError) {
	var m map[string]interface{}
	if err := decodeJSON(raw, &m); err != nil {
		return nil, &errors.ScimErrorInvalidSyntax
	}

	attributes, scimErr := t.schemaWithCommon().Validate(m)
	if scimErr != nil {
		return nil, scimErr
	}

	for _, extension := range t.SchemaExtensions {
		extensionField := m[extension.Schema.ID]
		if extensionField == nil {
			if extension.Required {
				err := errors.ScimErrorInvalidValue
				err.Detail += " Missing extension name: " + extension.Schema.Name.Value() + ", Extension ID: " + extension.Schema.ID
				return nil, &err
			}
			continue
		}

		extensionAttributes, scimErr := extension.Schema.Validate(extensionField)
		if scimErr != nil {
			return nil, scimErr
		}
		attributes[extension.Schema.ID] = extensionAttributes
	}

	return attributes, nil
}

// parsePatch parses and validates a PATCH request body, producing the
// PatchRequest the root package's ApplyPatch consumes. Path resolution is
// left entirely to ApplyPatch — parsePatch only enforces the request
// envelope's shape.
func (t ResourceType) parsePatch(r *http.Request) (PatchRequest, *errors.ScimError) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		e := errors.ScimErrorInvalidSyntax
		e.Detail += " Failed to read request body."
		return PatchRequest{}, &e
	}

	var req PatchRequest
	if err := decodeJSON(data, &req); err != nil {
		e := errors.ScimErrorInvalidSyntax
		e.Detail += " Failed to parse request body."
		return PatchRequest{}, &e
	}

	if len(req.Operations) < 1 {
		e := errors.ScimErrorInvalidValue
		e.Detail += " Zero operations found in request body."
		return PatchRequest{}, &e
	}

	for i, op := range req.Operations {
		switch strings.ToLower(op.Op) {
		case string(PatchOperationAdd), string(PatchOperationReplace), string(PatchOperationRemove):
		default:
			e := errors.ScimErrorInvalidFilter
			e.Detail += " Operation number: " + fmt.Sprint(i+1) + ", has an unrecognized operation type."
			return PatchRequest{}, &e
		}
	}

	return req, nil
}
