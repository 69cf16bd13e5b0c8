package scim

import "encoding/json"

// ListResponse is a query/list response (RFC 7644 §3.4.2), ported from the
// teacher's listResponse and exported since callers outside this package
// construct server responses around it.
type ListResponse struct {
	// TotalResults is the total number of results the list or query
	// operation matched, which may exceed len(Resources) when paginated.
	TotalResults int
	// ItemsPerPage is the number of resources returned in this page.
	ItemsPerPage int
	// StartIndex is the 1-based index of the first result in this page.
	StartIndex int
	// Resources is the page of matching resources.
	Resources interface{}
}

// MarshalJSON renders the response in RFC 7644 §3.4.2's wire shape.
func (l ListResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Schemas      []string    `json:"schemas,omitempty"`
		TotalResults int         `json:"totalResults,omitempty"`
		ItemsPerPage int         `json:"itemsPerPage,omitempty"`
		StartIndex   int         `json:"startIndex,omitempty"`
		Resources    interface{} `json:"Resources,omitempty"`
	}{
		Schemas:      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		TotalResults: l.TotalResults,
		ItemsPerPage: l.ItemsPerPage,
		StartIndex:   l.StartIndex,
		Resources:    l.Resources,
	})
}
