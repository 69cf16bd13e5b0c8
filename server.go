package scim

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/schema"
)

func readAll(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

const (
	defaultStartIndex = 1
	fallbackCount     = 100
)

func getFilter(r *http.Request) (FilterAST, error) {
	rawFilter := strings.TrimSpace(r.URL.Query().Get("filter"))
	decodedFilter, _ := url.QueryUnescape(rawFilter)
	if decodedFilter != "" {
		return ParseFilter(decodedFilter)
	}
	return nil, nil
}

func getIntQueryParam(r *http.Request, key string, def int) (int, error) {
	strVal := r.URL.Query().Get(key)
	if strVal == "" {
		return def, nil
	}
	if intVal, err := strconv.Atoi(strVal); err == nil {
		return intVal, nil
	}
	return 0, fmt.Errorf("invalid query parameter, %q must be an integer", key)
}

func parseIdentifier(path, endpoint string) (string, error) {
	return url.PathUnescape(strings.TrimPrefix(path, endpoint+"/"))
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Server implements the HTTP-based SCIM protocol (RFC 7644) that makes
// managing identities in multi-domain scenarios easier to support via a
// standardized service, dispatching each resource type's requests to its
// ResourceHandler and running PATCH through ApplyPatch.
type Server struct {
	Config        ServiceProviderConfig
	Prefix        string
	ResourceTypes []ResourceType
}

// ServeHTTP dispatches the request to the built-in discovery handlers, or
// else to the first resource type (in ResourceTypes order) whose endpoint
// equals or prefixes the request path.
func (s Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/scim+json")

	path := strings.TrimPrefix(r.URL.Path, s.Prefix)

	switch {
	case path == "/Me":
		errorHandler(w, &errors.ScimError{Status: http.StatusNotImplemented})
		return
	case path == "/Schemas" && r.Method == http.MethodGet:
		s.schemasHandler(w)
		return
	case strings.HasPrefix(path, "/Schemas/") && r.Method == http.MethodGet:
		s.schemaHandler(w, strings.TrimPrefix(path, "/Schemas/"))
		return
	case path == "/ResourceTypes" && r.Method == http.MethodGet:
		s.resourceTypesHandler(w)
		return
	case strings.HasPrefix(path, "/ResourceTypes/") && r.Method == http.MethodGet:
		s.resourceTypeHandler(w, strings.TrimPrefix(path, "/ResourceTypes/"))
		return
	case path == "/ServiceProviderConfig":
		s.serviceProviderConfigHandler(w)
		return
	}

	for _, resourceType := range s.ResourceTypes {
		if path == resourceType.Endpoint {
			switch r.Method {
			case http.MethodPost:
				s.resourcePostHandler(w, r, resourceType)
				return
			case http.MethodGet:
				s.resourcesGetHandler(w, r, resourceType)
				return
			}
		}

		if strings.HasPrefix(path, resourceType.Endpoint+"/") {
			id, err := parseIdentifier(path, resourceType.Endpoint)
			if err != nil {
				break
			}

			switch r.Method {
			case http.MethodGet:
				s.resourceGetHandler(w, r, id, resourceType)
				return
			case http.MethodPut:
				s.resourcePutHandler(w, r, id, resourceType)
				return
			case http.MethodPatch:
				s.resourcePatchHandler(w, r, id, resourceType)
				return
			case http.MethodDelete:
				s.resourceDeleteHandler(w, r, id, resourceType)
				return
			}
		}
	}

	errorHandler(w, &errors.ScimError{
		Detail: "Specified endpoint does not exist.",
		Status: http.StatusNotFound,
	})
}

func errorHandler(w http.ResponseWriter, e *errors.ScimError) {
	status := e.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Schemas  []string `json:"schemas"`
		Status   string   `json:"status"`
		ScimType string   `json:"scimType,omitempty"`
		Detail   string   `json:"detail,omitempty"`
	}{
		Schemas:  []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
		Status:   strconv.Itoa(status),
		ScimType: e.ScimType,
		Detail:   e.Detail,
	})
}

// renderResource assembles the wire representation of a stored resource:
// its validated attributes plus id/externalId/meta/schemas.
func (t ResourceType) renderResource(res Resource) map[string]interface{} {
	out := make(map[string]interface{}, len(res.Attributes)+4)
	for k, v := range res.Attributes {
		out[k] = v
	}
	out["id"] = res.ID
	if res.ExternalID.Present() {
		out["externalId"] = res.ExternalID.Value()
	}

	schemas := []string{t.Schema.ID}
	for _, ext := range t.SchemaExtensions {
		if _, ok := res.Attributes[ext.Schema.ID]; ok {
			schemas = append(schemas, ext.Schema.ID)
		}
	}
	out["schemas"] = schemas

	out["meta"] = map[string]interface{}{
		"resourceType": t.Name,
		"created":      res.Meta.Created,
		"lastModified": res.Meta.LastModified,
		"location":     res.Meta.Location,
		"version":      res.Meta.Version,
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s Server) resourcePostHandler(w http.ResponseWriter, r *http.Request, t ResourceType) {
	data, err := readAll(r)
	if err != nil {
		errorHandler(w, &errors.ScimError{Status: http.StatusInternalServerError, Detail: err.Error()})
		return
	}
	attributes, scimErr := t.validate(data)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	res, scimErr := t.Handler.Create(r, attributes)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	writeJSON(w, http.StatusCreated, t.renderResource(res))
}

func (s Server) resourceGetHandler(w http.ResponseWriter, r *http.Request, id string, t ResourceType) {
	res, scimErr := t.Handler.Get(r, id)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	writeJSON(w, http.StatusOK, t.renderResource(res))
}

func (s Server) resourcesGetHandler(w http.ResponseWriter, r *http.Request, t ResourceType) {
	params, scimErr := s.parseRequestParams(r)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	page, scimErr := t.Handler.GetAll(r, params)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	rendered := make([]map[string]interface{}, len(page.Resources))
	for i, res := range page.Resources {
		rendered[i] = t.renderResource(res)
	}
	writeJSON(w, http.StatusOK, ListResponse{
		TotalResults: page.TotalResults,
		ItemsPerPage: params.Count,
		StartIndex:   params.StartIndex,
		Resources:    rendered,
	})
}

func (s Server) resourcePutHandler(w http.ResponseWriter, r *http.Request, id string, t ResourceType) {
	data, err := readAll(r)
	if err != nil {
		errorHandler(w, &errors.ScimError{Status: http.StatusInternalServerError, Detail: err.Error()})
		return
	}
	attributes, scimErr := t.validate(data)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	res, scimErr := t.Handler.Replace(r, id, attributes)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	writeJSON(w, http.StatusOK, t.renderResource(res))
}

func (s Server) resourcePatchHandler(w http.ResponseWriter, r *http.Request, id string, t ResourceType) {
	patchReq, scimErr := t.parsePatch(r)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}

	res, scimErr := t.Handler.Get(r, id)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}

	result, scimErr := ApplyPatch(t.registry(), res.Attributes, patchReq)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	if !result.Changed {
		writeJSON(w, http.StatusOK, t.renderResource(res))
		return
	}

	res, scimErr = t.Handler.Replace(r, id, result.Resource)
	if scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	writeJSON(w, http.StatusOK, t.renderResource(res))
}

func (s Server) resourceDeleteHandler(w http.ResponseWriter, r *http.Request, id string, t ResourceType) {
	if scimErr := t.Handler.Delete(r, id); scimErr != nil {
		errorHandler(w, scimErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s Server) schemasHandler(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, ListResponse{
		TotalResults: len(s.getSchemas()),
		Resources:    s.getSchemas(),
	})
}

func (s Server) schemaHandler(w http.ResponseWriter, id string) {
	sch := s.getSchema(id)
	if sch.ID == "" {
		errorHandler(w, &errors.ScimError{Status: http.StatusNotFound, Detail: "Schema not found."})
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

func (s Server) resourceTypesHandler(w http.ResponseWriter) {
	raw := make([]map[string]interface{}, len(s.ResourceTypes))
	for i, t := range s.ResourceTypes {
		raw[i] = t.getRaw()
	}
	writeJSON(w, http.StatusOK, ListResponse{TotalResults: len(raw), Resources: raw})
}

func (s Server) resourceTypeHandler(w http.ResponseWriter, id string) {
	for _, t := range s.ResourceTypes {
		if t.Name == id {
			writeJSON(w, http.StatusOK, t.getRaw())
			return
		}
	}
	errorHandler(w, &errors.ScimError{Status: http.StatusNotFound, Detail: "Resource type not found."})
}

func (s Server) serviceProviderConfigHandler(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.Config)
}

// getSchema extracts the schema with the given id from the server's
// resource types.
func (s Server) getSchema(id string) schema.Schema {
	for _, resourceType := range s.ResourceTypes {
		if resourceType.Schema.ID == id {
			return resourceType.Schema
		}
		for _, extension := range resourceType.SchemaExtensions {
			if extension.Schema.ID == id {
				return extension.Schema
			}
		}
	}
	return schema.Schema{}
}

// getSchemas extracts all schemas from the server's resource types.
// Duplicate IDs are skipped.
func (s Server) getSchemas() []schema.Schema {
	var ids []string
	var schemas []schema.Schema
	for _, resourceType := range s.ResourceTypes {
		if !contains(ids, resourceType.Schema.ID) {
			schemas = append(schemas, resourceType.Schema)
		}
		ids = append(ids, resourceType.Schema.ID)
		for _, extension := range resourceType.SchemaExtensions {
			if !contains(ids, extension.Schema.ID) {
				schemas = append(schemas, extension.Schema)
			}
			ids = append(ids, extension.Schema.ID)
		}
	}
	return schemas
}

func (s Server) parseRequestParams(r *http.Request) (ListRequestParams, *errors.ScimError) {
	var invalidParams []string

	defaultCount := s.Config.getItemsPerPage()
	count, countErr := getIntQueryParam(r, "count", defaultCount)
	if countErr != nil {
		invalidParams = append(invalidParams, "count")
	}
	if count > defaultCount {
		count = defaultCount
	}
	if count < 0 {
		count = 0
	}

	startIndex, indexErr := getIntQueryParam(r, "startIndex", defaultStartIndex)
	if indexErr != nil {
		invalidParams = append(invalidParams, "startIndex")
	}
	if startIndex < 1 {
		startIndex = defaultStartIndex
	}

	if len(invalidParams) > 0 {
		scimErr := errors.ScimErrorBadParams(invalidParams)
		return ListRequestParams{}, &scimErr
	}

	filterExpr, filterErr := getFilter(r)
	if filterErr != nil {
		return ListRequestParams{}, &errors.ScimErrorInvalidFilter
	}

	return ListRequestParams{
		Count:      count,
		Filter:     filterExpr,
		StartIndex: startIndex,
	}, nil
}
