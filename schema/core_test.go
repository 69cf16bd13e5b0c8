package schema

import (
	"encoding/json"
	"reflect"
	"testing"
)

func stringAttr(name string, caseExact bool) CoreAttribute {
	return SimpleCoreAttribute(SimpleStringParams(name, caseExact, false, false))
}

func TestCoerceStringRejectsNonString(t *testing.T) {
	attr := stringAttr("userName", false)
	_, scimErr := attr.Coerce(json.RawMessage(`42`))
	if scimErr == nil {
		t.Fatal("expected an error coercing a number into a string attribute")
	}
}

func TestCoerceIntegerNarrowing(t *testing.T) {
	attr := SimpleCoreAttribute(SimpleParams{Name: "age", Type: IntegerType})

	v, scimErr := attr.Coerce(json.RawMessage(`42`))
	if scimErr != nil {
		t.Fatalf("Coerce: %v", scimErr)
	}
	if _, ok := v.(int32); !ok {
		t.Errorf("small integer should narrow to int32, got %T", v)
	}

	v, scimErr = attr.Coerce(json.RawMessage(`9999999999`))
	if scimErr != nil {
		t.Fatalf("Coerce: %v", scimErr)
	}
	if _, ok := v.(int64); !ok {
		t.Errorf("large integer should stay int64, got %T", v)
	}
}

func TestCoerceBooleanFromString(t *testing.T) {
	attr := SimpleCoreAttribute(SimpleParams{Name: "active", Type: BooleanType})
	v, scimErr := attr.Coerce(json.RawMessage(`"true"`))
	if scimErr != nil {
		t.Fatalf("Coerce: %v", scimErr)
	}
	if v != true {
		t.Errorf("Coerce(\"true\") = %v, want true", v)
	}

	_, scimErr = attr.Coerce(json.RawMessage(`"nope"`))
	if scimErr == nil {
		t.Fatal("expected an error coercing an invalid boolean string")
	}
}

func TestCoerceRejectsComplex(t *testing.T) {
	attr := ComplexCoreAttribute(ComplexParams{Name: "name"})
	_, scimErr := attr.Coerce(json.RawMessage(`{"givenName":"A"}`))
	if scimErr == nil {
		t.Fatal("expected Coerce to reject a complex attribute")
	}
}

func TestCanPatch(t *testing.T) {
	readOnly := SimpleCoreAttribute(SimpleParams{Name: "id", Mutability: AttributeMutabilityReadOnly()})
	if readOnly.CanPatch("add") {
		t.Error("a readOnly attribute must reject add")
	}

	immutable := SimpleCoreAttribute(SimpleParams{Name: "userName", Mutability: AttributeMutabilityImmutable()})
	if immutable.CanPatch("replace") {
		t.Error("an immutable attribute must reject replace")
	}
	if !immutable.CanPatch("add") {
		t.Error("an immutable attribute must still accept add")
	}

	readWrite := SimpleCoreAttribute(SimpleParams{Name: "title", Mutability: AttributeMutabilityReadWrite()})
	for _, op := range []string{"add", "replace", "remove"} {
		if !readWrite.CanPatch(op) {
			t.Errorf("a readWrite attribute must accept %s", op)
		}
	}
}

func TestAttributesContainsAttributeCaseInsensitive(t *testing.T) {
	attrs := Attributes{stringAttr("userName", false)}
	attr, ok := attrs.ContainsAttribute("USERNAME")
	if !ok {
		t.Fatal("expected a case-insensitive match")
	}
	if attr.Name() != "userName" {
		t.Errorf("Name() = %q, want userName", attr.Name())
	}
}

func TestValidateRequiredMissing(t *testing.T) {
	attr := SimpleCoreAttribute(SimpleParams{Name: "userName", Type: StringType, Required: true})
	s := Schema{Attributes: Attributes{attr}}

	_, scimErr := s.Validate(map[string]interface{}{})
	if scimErr == nil {
		t.Fatal("expected a required-attribute error")
	}
}

func TestValidateRoundTrip(t *testing.T) {
	attr := stringAttr("userName", false)
	s := Schema{Attributes: Attributes{attr}}

	out, scimErr := s.Validate(map[string]interface{}{"userName": "bjensen"})
	if scimErr != nil {
		t.Fatalf("Validate: %v", scimErr)
	}
	if !reflect.DeepEqual(out, map[string]interface{}{"userName": "bjensen"}) {
		t.Errorf("Validate output = %#v", out)
	}
}
