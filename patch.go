package scim

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/internal/filter"
	"github.com/patchscim/scim/schema"
)

// PatchOp names one of the three patch operation verbs RFC 7644 §3.5.2
// defines.
type PatchOp string

const (
	PatchOperationAdd     PatchOp = "add"
	PatchOperationReplace PatchOp = "replace"
	PatchOperationRemove  PatchOp = "remove"
)

// PatchOperation is one entry of a PATCH request's "Operations" array.
// Value is kept raw (rather than decoded into interface{} up front) because
// its expected shape depends on the attribute the resolved path targets —
// the engine parses it lazily, per spec.md §3.
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PatchRequest is the PatchOp message envelope RFC 7644 §3.5.2 defines.
type PatchRequest struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// PatchResult is what ApplyPatch returns.
type PatchResult struct {
	// Resource is the patched resource. Identical to the input (by value,
	// not by reference) when Changed is false.
	Resource map[string]interface{}
	// Changed reports whether Resource differs from the resource passed to
	// ApplyPatch by deep equality (spec.md §4.6's equality-based no-op
	// suppression) — callers must not bump lastModified when this is false.
	Changed bool
}

// ApplyPatch executes req against resource per RFC 7644 §3.5.2, resolving
// attribute definitions through reg. Operations apply sequentially in list
// order to a private clone of resource; if any operation fails, the clone is
// discarded and the caller's resource is left untouched — ApplyPatch never
// returns a partially patched resource (spec.md §5's atomicity property).
func ApplyPatch(reg schema.Registry, resource map[string]interface{}, req PatchRequest) (PatchResult, *errors.ScimError) {
	if len(req.Operations) == 0 {
		e := errors.ScimErrorInvalidValue
		e.Detail += " Zero operations found in request body."
		return PatchResult{}, &e
	}

	working, _ := cloneNode(resource).(map[string]interface{})

	for i, op := range req.Operations {
		op.Op = strings.ToLower(op.Op)

		var scimErr *errors.ScimError
		switch PatchOp(op.Op) {
		case PatchOperationAdd:
			scimErr = applyAdd(reg, working, op)
		case PatchOperationReplace:
			scimErr = applyReplace(reg, working, op)
		case PatchOperationRemove:
			scimErr = applyRemove(reg, working, op)
		default:
			e := errors.ScimErrorInvalidFilter
			e.Detail += " Operation number: " + strconv.Itoa(i+1) + " has an unrecognized operation type."
			scimErr = &e
		}
		if scimErr != nil {
			return PatchResult{}, scimErr
		}
	}

	if reflect.DeepEqual(resource, working) {
		return PatchResult{Resource: resource, Changed: false}, nil
	}
	return PatchResult{Resource: working, Changed: true}, nil
}

// splitValues decodes op.Value into the list of JSON fragments it carries:
// a JSON array decodes into its elements (RFC 7644's shape for adding
// several values to a multi-valued attribute at once); anything else is a
// single value.
func splitValues(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	return []json.RawMessage{raw}
}

// decodeJSON decodes raw via json.Decoder with UseNumber, so integer/decimal
// leaves survive the round trip without losing width.
func decodeJSON(raw json.RawMessage, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	return d.Decode(v)
}

// isBareFilterTarget reports whether p's final segment is itself a filtered
// array element with no trailing sub-attribute to set a value on — an
// invalid add target per spec.md §4.6 ADD rule 1.
func isBareFilterTarget(p filter.Path) bool {
	last := p.Segments[len(p.Segments)-1]
	return last.Filter != nil && p.SubAttr == ""
}

func mergeComplex(dst, src map[string]interface{}) {
	for k, v := range src {
		actualKey, existing, found := caseInsensitiveLookup(dst, k)
		if !found {
			actualKey = k
		}
		if newArr, ok := v.([]interface{}); ok {
			var oldArr []interface{}
			if found {
				oldArr, _ = existing.([]interface{})
			}
			merged := make([]interface{}, 0, len(oldArr)+len(newArr))
			merged = append(merged, oldArr...)
			merged = append(merged, newArr...)
			dst[actualKey] = merged
			continue
		}
		dst[actualKey] = v
	}
}

func containsValue(arr []interface{}, v interface{}) bool {
	for _, existing := range arr {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}

func pathParseErr(err error) *errors.ScimError {
	e := errors.ScimErrorInvalidPath
	e.Detail += " " + err.Error()
	return &e
}

func mutabilityErr(attr schema.CoreAttribute) *errors.ScimError {
	e := errors.ScimErrorMutability
	e.Detail += " Attribute " + attr.Name() + " cannot be patched with its current mutability."
	return &e
}

func applyAdd(reg schema.Registry, working map[string]interface{}, op PatchOperation) *errors.ScimError {
	values := splitValues(op.Value)
	if len(values) == 0 {
		e := errors.ScimErrorInvalidValue
		e.Detail += " Add operation requires a value."
		return &e
	}

	if op.Path == "" {
		var obj map[string]interface{}
		if err := decodeJSON(values[0], &obj); err != nil {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Add without a path requires a JSON object value."
			return &e
		}
		mergeComplex(working, obj)
		return nil
	}

	p, err := filter.ParsePath(op.Path)
	if err != nil {
		return pathParseErr(err)
	}
	if isBareFilterTarget(p) {
		e := errors.ScimErrorInvalidPath
		e.Detail += " A bare filter without a trailing sub-attribute is not a valid add target."
		return &e
	}

	cursors, attr, scimErr := resolveTarget(reg, working, p, true)
	if scimErr != nil {
		return scimErr
	}
	if !attr.CanPatch(string(PatchOperationAdd)) {
		return mutabilityErr(attr)
	}

	if attr.AttributeType() == schema.ComplexType {
		if attr.MultiValued() {
			for _, c := range cursors {
				arr, _ := c.get().([]interface{})
				for _, raw := range values {
					var obj map[string]interface{}
					if err := decodeJSON(raw, &obj); err != nil {
						e := errors.ScimErrorInvalidValue
						e.Detail += " Add to a multi-valued complex attribute requires JSON object values."
						return &e
					}
					arr = append(arr, obj)
				}
				c.set(arr)
			}
			return nil
		}

		if len(values) != 1 {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Add to a single-valued complex attribute requires exactly one value."
			return &e
		}
		var obj map[string]interface{}
		if err := decodeJSON(values[0], &obj); err != nil {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Add to a complex attribute requires a JSON object value."
			return &e
		}
		for _, c := range cursors {
			existing, _ := c.get().(map[string]interface{})
			merged := map[string]interface{}{}
			if existing != nil {
				merged, _ = cloneNode(existing).(map[string]interface{})
			}
			mergeComplex(merged, obj)
			c.set(merged)
		}
		return nil
	}

	if attr.MultiValued() {
		coerced := make([]interface{}, 0, len(values))
		for _, raw := range values {
			v, scimErr := attr.Coerce(raw)
			if scimErr != nil {
				return scimErr
			}
			coerced = append(coerced, v)
		}
		for _, c := range cursors {
			arr, _ := c.get().([]interface{})
			for _, v := range coerced {
				if !containsValue(arr, v) {
					arr = append(arr, v)
				}
			}
			c.set(arr)
		}
		return nil
	}

	v, scimErr := attr.Coerce(values[0])
	if scimErr != nil {
		return scimErr
	}
	for _, c := range cursors {
		c.set(v)
	}
	return nil
}

func applyReplace(reg schema.Registry, working map[string]interface{}, op PatchOperation) *errors.ScimError {
	if len(op.Value) == 0 {
		e := errors.ScimErrorInvalidValue
		e.Detail += " Replace operation requires a value."
		return &e
	}
	values := splitValues(op.Value)

	if op.Path == "" {
		if len(values) == 0 {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Replace without a path requires a JSON object value."
			return &e
		}
		var obj map[string]interface{}
		if err := decodeJSON(values[0], &obj); err != nil {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Replace without a path requires a JSON object value."
			return &e
		}
		for k, v := range obj {
			actualKey, _, found := caseInsensitiveLookup(working, k)
			if !found {
				actualKey = k
			}
			working[actualKey] = v
		}
		return nil
	}

	p, err := filter.ParsePath(op.Path)
	if err != nil {
		return pathParseErr(err)
	}

	cursors, attr, scimErr := resolveTarget(reg, working, p, true)
	if scimErr != nil {
		return scimErr
	}
	if !attr.CanPatch(string(PatchOperationReplace)) {
		return mutabilityErr(attr)
	}

	lastSeg := p.Segments[len(p.Segments)-1]
	wholeArrayTarget := attr.MultiValued() && lastSeg.Filter == nil && p.SubAttr == ""

	if wholeArrayTarget {
		var arr []interface{}
		if err := decodeJSON(op.Value, &arr); err != nil {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Replace of a multi-valued attribute requires a JSON array value."
			return &e
		}
		for _, c := range cursors {
			c.set(arr)
		}
		return nil
	}

	if attr.AttributeType() == schema.ComplexType {
		var obj map[string]interface{}
		if err := decodeJSON(values[0], &obj); err != nil {
			e := errors.ScimErrorInvalidValue
			e.Detail += " Replace of a complex attribute requires a JSON object value."
			return &e
		}
		for _, c := range cursors {
			c.set(obj)
		}
		return nil
	}

	v, scimErr := attr.Coerce(values[0])
	if scimErr != nil {
		return scimErr
	}
	for _, c := range cursors {
		c.set(v)
	}
	return nil
}

func applyRemove(reg schema.Registry, working map[string]interface{}, op PatchOperation) *errors.ScimError {
	if len(op.Value) != 0 {
		e := errors.ScimErrorInvalidValue
		e.Detail += " Remove operation must not carry a value."
		return &e
	}
	if op.Path == "" {
		e := errors.ScimErrorInvalidPath
		e.Detail += " Remove operation requires a path."
		return &e
	}

	p, err := filter.ParsePath(op.Path)
	if err != nil {
		return pathParseErr(err)
	}

	cursors, attr, scimErr := resolveTarget(reg, working, p, false)
	if scimErr != nil {
		return scimErr
	}
	if attr.Required() {
		return mutabilityErr(attr)
	}
	if !attr.CanPatch(string(PatchOperationRemove)) {
		return mutabilityErr(attr)
	}

	// Delete from the highest index down, so removing one matched element
	// does not shift the indices of the matches still to be removed.
	for i := len(cursors) - 1; i >= 0; i-- {
		cursors[i].deleteValue()
	}
	return nil
}
