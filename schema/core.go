package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	datetime "github.com/di-wu/xsd-datetime"
	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/optional"
)

// CoreAttribute is the AttributeDef of spec.md §3: a fully described,
// immutable SCIM attribute definition. It doubles as both the schema-document
// attribute record (C1) and the value coercer's type table (C2).
type CoreAttribute struct {
	canonicalValues []string
	caseExact       bool
	description     optional.String
	multiValued     bool
	mutability      attributeMutability
	name            string
	referenceTypes  []AttributeReferenceType
	required        bool
	returned        attributeReturned
	subAttributes   Attributes
	typ             SimpleType
	uniqueness      attributeUniqueness
}

var validBooleanStrings = map[string]bool{"true": true, "false": false}

var attrNamePattern = regexp.MustCompile(`^[A-Za-z][\w$-]*$`)

func checkAttributeName(name string) {
	if !attrNamePattern.MatchString(name) {
		panic(fmt.Errorf("invalid attribute name %q", name))
	}
}

// ComplexParams describes a COMPLEX attribute to ComplexCoreAttribute.
type ComplexParams struct {
	Description   optional.String
	MultiValued   bool
	Mutability    Mutability
	Name          string
	Required      bool
	Returned      Returned
	SubAttributes []CoreAttribute
	Uniqueness    Uniqueness
}

// ComplexCoreAttribute creates a complex attribute based on given parameters.
// Invariant (spec.md §3, data model): a COMPLEX attribute never stores a
// value directly, only at its sub-attributes.
func ComplexCoreAttribute(params ComplexParams) CoreAttribute {
	checkAttributeName(params.Name)

	names := map[string]int{}
	var sa []CoreAttribute
	for i, a := range params.SubAttributes {
		name := strings.ToLower(a.name)
		if j, ok := names[name]; ok {
			panic(fmt.Errorf("duplicate name %q for sub-attributes %d and %d", name, i, j))
		}
		names[name] = i
		sa = append(sa, a)
	}

	return CoreAttribute{
		description:   params.Description,
		multiValued:   params.MultiValued,
		mutability:    params.Mutability.m,
		name:          params.Name,
		required:      params.Required,
		returned:      params.Returned.r,
		subAttributes: sa,
		typ:           ComplexType,
		uniqueness:    params.Uniqueness.u,
	}
}

// SimpleParams describes a non-complex attribute to SimpleCoreAttribute.
type SimpleParams struct {
	CanonicalValues []string
	CaseExact       bool
	Description     optional.String
	MultiValued     bool
	Mutability      Mutability
	Name            string
	ReferenceTypes  []AttributeReferenceType
	Required        bool
	Returned        Returned
	Type            SimpleType
	Uniqueness      Uniqueness
}

// SimpleCoreAttribute creates a non-complex attribute based on given parameters.
func SimpleCoreAttribute(params SimpleParams) CoreAttribute {
	checkAttributeName(params.Name)

	return CoreAttribute{
		canonicalValues: params.CanonicalValues,
		caseExact:       params.CaseExact,
		description:     params.Description,
		multiValued:     params.MultiValued,
		mutability:      params.Mutability.m,
		name:            params.Name,
		referenceTypes:  params.ReferenceTypes,
		required:        params.Required,
		returned:        params.Returned.r,
		typ:             params.Type,
		uniqueness:      params.Uniqueness.u,
	}
}

// SimpleStringParams is shorthand for SimpleCoreAttribute(SimpleParams{Type: StringType, ...}).
func SimpleStringParams(name string, caseExact, required, multiValued bool) SimpleParams {
	return SimpleParams{
		CaseExact:   caseExact,
		Mutability:  AttributeMutabilityReadWrite(),
		MultiValued: multiValued,
		Name:        name,
		Required:    required,
		Returned:    AttributeReturnedDefault(),
		Type:        StringType,
		Uniqueness:  AttributeUniquenessNone(),
	}
}

// AttributeType returns the attribute's SimpleType.
func (a CoreAttribute) AttributeType() SimpleType { return a.typ }

// CanonicalValues returns the canonical values of the attribute.
func (a CoreAttribute) CanonicalValues() []string { return a.canonicalValues }

// CaseExact returns whether the attribute is case exact.
func (a CoreAttribute) CaseExact() bool { return a.caseExact }

// Description returns the description of the attribute.
func (a CoreAttribute) Description() string { return a.description.Value() }

// HasSubAttributes returns whether the attribute is complex and has sub attributes.
func (a CoreAttribute) HasSubAttributes() bool {
	return a.typ == ComplexType && len(a.subAttributes) != 0
}

// MultiValued returns whether the attribute is multi valued.
func (a CoreAttribute) MultiValued() bool { return a.multiValued }

// Mutability returns the mutability of the attribute.
func (a CoreAttribute) Mutability() string { return a.mutability.String() }

// ReadOnly reports whether the attribute may never be written by a client.
func (a CoreAttribute) ReadOnly() bool { return a.mutability == attributeMutabilityReadOnly }

// Immutable reports whether the attribute may be set once but never changed or removed.
func (a CoreAttribute) Immutable() bool { return a.mutability == attributeMutabilityImmutable }

// CanPatch reports whether a patch operation named op ("add", "replace" or
// "remove") may target this attribute, given its mutability (RFC 7644
// §3.5.2): readOnly attributes reject every patch op; immutable attributes
// reject replace/remove but accept an initial add. Exported so the patch
// engine package can reuse the same rule ValidatePatchOperation enforces.
func (a CoreAttribute) CanPatch(op string) bool {
	return !cannotBePatched(op, a)
}

// Name returns the case insensitive name of the attribute.
func (a CoreAttribute) Name() string { return a.name }

// ReferenceTypes returns the reference types of the attribute.
func (a CoreAttribute) ReferenceTypes() []AttributeReferenceType { return a.referenceTypes }

// Required returns whether the attribute is required.
func (a CoreAttribute) Required() bool { return a.required }

// Returned returns when the attribute needs to be returned.
func (a CoreAttribute) Returned() string { return a.returned.String() }

// SubAttributes returns the sub attributes, in declared order.
func (a CoreAttribute) SubAttributes() Attributes { return a.subAttributes }

// Uniqueness returns the attribute's uniqueness.
func (a CoreAttribute) Uniqueness() string { return a.uniqueness.String() }

func (a CoreAttribute) getRawAttributes() map[string]interface{} {
	attributes := map[string]interface{}{
		"description": a.description.Value(),
		"multiValued": a.multiValued,
		"mutability":  a.mutability,
		"name":        a.name,
		"required":    a.required,
		"returned":    a.returned,
		"type":        a.typ,
	}
	if a.canonicalValues != nil {
		attributes["canonicalValues"] = a.canonicalValues
	}
	if a.referenceTypes != nil {
		attributes["referenceTypes"] = a.referenceTypes
	}
	if len(a.subAttributes) != 0 {
		raw := make([]map[string]interface{}, len(a.subAttributes))
		for i, sub := range a.subAttributes {
			raw[i] = sub.getRawAttributes()
		}
		attributes["subAttributes"] = raw
	}
	if a.typ != ComplexType && a.typ != BooleanType {
		attributes["caseExact"] = a.caseExact
		attributes["uniqueness"] = a.uniqueness
	}
	return attributes
}

// --- C2: Value Coercer -------------------------------------------------

// Coerce parses a textual JSON fragment (as arrives in a PatchRequest value)
// into a typed leaf appropriate for this attribute, per spec.md §4.2. It
// must only be called for a non-complex (simple) attribute; the patch
// engine handles COMPLEX targets itself by merging decoded JSON objects.
func (a CoreAttribute) Coerce(raw json.RawMessage) (interface{}, *errors.ScimError) {
	if a.typ == ComplexType {
		err := errors.ScimErrorInvalidValue
		err.Detail += " Attribute " + a.name + " is complex and cannot be coerced as a simple value."
		return nil, &err
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		se := errors.ScimErrorInvalidValue
		se.Detail += " Attribute " + a.name + ": " + err.Error()
		return nil, &se
	}
	return a.coerceValue(v)
}

func (a CoreAttribute) invalidValue(detail string) *errors.ScimError {
	err := errors.ScimErrorInvalidValue
	err.Detail += " " + detail + " Attribute name: " + a.name
	return &err
}

func (a CoreAttribute) coerceValue(v interface{}) (interface{}, *errors.ScimError) {
	switch a.typ {
	case StringType, ReferenceType, BinaryType:
		s, ok := v.(string)
		if !ok {
			return nil, a.invalidValue("Value is not a string.")
		}
		if !utf8.ValidString(s) {
			return nil, a.invalidValue("Value is not valid UTF-8.")
		}
		if a.typ == BinaryType {
			match, _ := regexp.MatchString(`^([A-Za-z0-9+/]{4})*([A-Za-z0-9+/]{3}=|[A-Za-z0-9+/]{2}==)?$`, s)
			if !match {
				return nil, a.invalidValue("Value is not valid base64.")
			}
		}
		return s, nil
	case DateTimeType:
		s, ok := v.(string)
		if !ok {
			return nil, a.invalidValue("Value is not a string.")
		}
		return s, nil
	case BooleanType:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if val, found := validBooleanStrings[strings.ToLower(b)]; found {
				return val, nil
			}
			return nil, a.invalidValue("Value is not a valid boolean.")
		default:
			return nil, a.invalidValue("Value is not a valid boolean.")
		}
	case IntegerType:
		n, ok := v.(json.Number)
		if !ok {
			return nil, a.invalidValue("Value is not an integer.")
		}
		i64, err := n.Int64()
		if err != nil {
			return nil, a.invalidValue("Value does not fit a signed 64-bit integer.")
		}
		if i64 >= -1<<31 && i64 <= 1<<31-1 {
			return int32(i64), nil
		}
		return i64, nil
	case DecimalType:
		n, ok := v.(json.Number)
		if !ok {
			return nil, a.invalidValue("Value is not a number.")
		}
		f, err := n.Float64()
		if err != nil {
			return nil, a.invalidValue("Value does not fit a double-precision float.")
		}
		return f, nil
	default:
		return nil, a.invalidValue("Unrecognized attribute type.")
	}
}

// --- C9: resource-level validation --------------------------------------

// validate checks a decoded resource value (already JSON-unmarshaled,
// possibly with json.Number leaves) against this attribute definition.
func (a CoreAttribute) validate(attribute interface{}) (interface{}, *errors.ScimError) {
	if attribute == nil {
		if !a.required {
			return nil, nil
		}
		return nil, a.invalidValue("Attribute is required.")
	}

	if a.mutability == attributeMutabilityReadOnly {
		return nil, nil
	}

	if !a.multiValued {
		return a.validateSingular(attribute)
	}

	arr, ok := attribute.([]interface{})
	if !ok {
		return nil, a.invalidValue("Multivalued attribute was not an array.")
	}
	if a.required && len(arr) == 0 {
		return nil, a.invalidValue("Multivalued attribute was empty.")
	}
	out := make([]interface{}, len(arr))
	for i, elem := range arr {
		v, scimErr := a.validateSingular(elem)
		if scimErr != nil {
			return nil, scimErr
		}
		out[i] = v
	}
	return out, nil
}

func (a CoreAttribute) validateSingular(attribute interface{}) (interface{}, *errors.ScimError) {
	if a.typ == DateTimeType {
		v, scimErr := a.coerceValue(jsonNumberize(attribute))
		if scimErr != nil {
			return nil, scimErr
		}
		if scimErr := a.validateDateTime(v.(string)); scimErr != nil {
			return nil, scimErr
		}
		return v, nil
	}
	if a.typ != ComplexType {
		return a.coerceValue(jsonNumberize(attribute))
	}

	complex, ok := attribute.(map[string]interface{})
	if !ok {
		return nil, a.invalidValue("Complex attribute does not have the right structure.")
	}

	out := make(map[string]interface{})
	for _, sub := range a.subAttributes {
		var hit interface{}
		var found bool
		for k, v := range complex {
			if strings.EqualFold(sub.name, k) {
				if found {
					err := errors.ScimErrorDuplicateAttributeFound
					err.Detail += " Duplicate attribute name: " + sub.name
					return nil, &err
				}
				found = true
				hit = v
			}
		}
		attr, scimErr := sub.validate(hit)
		if scimErr != nil {
			return nil, scimErr
		}
		if attr != nil {
			out[sub.name] = attr
		}
	}
	return out, nil
}

// jsonNumberize converts float64 values decoded by a plain json.Unmarshal
// (without UseNumber) into json.Number so coerceValue's type switch
// still recognizes integer/decimal leaves consistently.
func jsonNumberize(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64))
	default:
		return v
	}
}

// validateDateTime exercises github.com/di-wu/xsd-datetime for RFC 3339
// date-time validation, used only by resource validation (C9) — not by the
// patch engine's C2 coercer, which deliberately leaves DATE_TIME syntax
// unchecked (spec.md §4.2).
func (a CoreAttribute) validateDateTime(s string) *errors.ScimError {
	if _, err := datetime.Parse(s); err != nil {
		return a.invalidValue("Date time value is not in the right format; expected YYYY-MM-DDTHH:mm:ssZ.")
	}
	return nil
}
