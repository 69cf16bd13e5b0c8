// Package optional holds thin present/absent wrappers for values that need
// to distinguish "not supplied" from their zero value, e.g. a schema's
// description versus an empty description.
package optional

import "encoding/json"

// String represents an optional string value.
type String struct {
	present bool
	value   string
}

// NewString returns a present String wrapping v.
func NewString(v string) String {
	return String{present: true, value: v}
}

// Present returns whether a value was supplied.
func (s String) Present() bool {
	return s.present
}

// Value returns the wrapped string, or "" if absent.
func (s String) Value() string {
	if !s.present {
		return ""
	}
	return s.value
}

// MarshalJSON renders an absent String as JSON null and a present one as its value.
func (s String) MarshalJSON() ([]byte, error) {
	if !s.present {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON accepts a JSON string or null.
func (s *String) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = String{}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = String{present: true, value: v}
	return nil
}
