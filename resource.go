package scim

import "strings"

// cloneNode makes a defensive deep copy of a resource node (object, array or
// scalar leaf) rather than mutating the caller's map in place. The patch
// engine clones the resource before applying an operation and only swaps
// the clone in on success (spec.md §5c).
func cloneNode(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = cloneNode(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = cloneNode(vv)
		}
		return out
	default:
		return t
	}
}

// caseInsensitiveLookup finds a key in m matching name case-insensitively,
// returning the key as actually stored (spec.md §3's "preserved verbatim on
// emit" invariant) along with its value.
func caseInsensitiveLookup(m map[string]interface{}, name string) (string, interface{}, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", nil, false
}
