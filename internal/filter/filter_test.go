package filter

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/patchscim/scim/schema"
)

func TestParseFilterAndRoundTrip(t *testing.T) {
	tests := []string{
		`userName eq "bjensen"`,
		`name.familyName co "O'Malley"`,
		`type eq "work" and value co "@example.com"`,
		`not (title pr)`,
		`title pr and userType eq "Employee"`,
		`userType eq "Employee" or title pr`,
	}

	for _, text := range tests {
		expr, err := ParseFilter(text)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", text, err)
		}

		printed := String(expr)
		reparsed, err := ParseFilter(printed)
		if err != nil {
			t.Fatalf("re-parsing printed filter %q: %v", printed, err)
		}
		if !reflect.DeepEqual(expr, reparsed) {
			t.Errorf("round trip mismatch for %q: printed as %q, reparsed as %#v, want %#v", text, printed, reparsed, expr)
		}
	}
}

func TestParseFilterSyntaxError(t *testing.T) {
	_, err := ParseFilter(`userName eq`)
	if err == nil {
		t.Fatal("expected an error for a compare expression missing its literal")
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath(`emails[type eq "work"].value`)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(p.Segments))
	}
	if p.Segments[0].Attr.Name != "emails" {
		t.Errorf("segment name = %q, want emails", p.Segments[0].Attr.Name)
	}
	if p.Segments[0].Filter == nil {
		t.Error("expected a filter on the emails segment")
	}
	if p.SubAttr != "value" {
		t.Errorf("SubAttr = %q, want value", p.SubAttr)
	}
}

func TestParsePathSchemaQualified(t *testing.T) {
	p, err := ParsePath("urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:department")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(p.Segments))
	}
	if p.Segments[0].Attr.URI != "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User" {
		t.Errorf("URI = %q", p.Segments[0].Attr.URI)
	}
	if p.Segments[0].Attr.Name != "department" {
		t.Errorf("Name = %q, want department", p.Segments[0].Attr.Name)
	}
}

func emailAttrs() schema.Attributes {
	return schema.Attributes{
		schema.SimpleCoreAttribute(schema.SimpleParams{Name: "type", Type: schema.StringType}),
		schema.SimpleCoreAttribute(schema.SimpleParams{Name: "value", Type: schema.StringType}),
		schema.SimpleCoreAttribute(schema.SimpleParams{Name: "primary", Type: schema.BooleanType}),
	}
}

func TestEvaluateArray(t *testing.T) {
	array := []interface{}{
		map[string]interface{}{"type": "work", "value": "a@x.com", "primary": true},
		map[string]interface{}{"type": "home", "value": "b@x.com", "primary": false},
	}

	expr, err := ParseFilter(`type eq "work"`)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}

	matches, err := EvaluateArray(expr, array, emailAttrs())
	if err != nil {
		t.Fatalf("EvaluateArray: %v", err)
	}
	if !reflect.DeepEqual(matches, []int{0}) {
		t.Errorf("matches = %v, want [0]", matches)
	}
}

func TestEvaluateMissingAttributeNotEquals(t *testing.T) {
	array := []interface{}{map[string]interface{}{"value": "a@x.com"}}
	expr, err := ParseFilter(`type ne "work"`)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	matches, err := EvaluateArray(expr, array, emailAttrs())
	if err != nil {
		t.Fatalf("EvaluateArray: %v", err)
	}
	if !reflect.DeepEqual(matches, []int{0}) {
		t.Errorf("a missing attribute should satisfy ne, matches = %v", matches)
	}
}

// Numeric sub-attribute leaves decoded via decodeJSON's UseNumber (as an
// "add" of a multi-valued complex element does) are json.Number, not
// float64 — gt/ge/lt/le/eq must compare those the same as a native number.
func TestEvaluateOrderedComparisonAgainstJSONNumber(t *testing.T) {
	attrs := schema.Attributes{
		schema.SimpleCoreAttribute(schema.SimpleParams{Name: "type", Type: schema.StringType}),
		schema.SimpleCoreAttribute(schema.SimpleParams{Name: "rank", Type: schema.IntegerType}),
	}
	array := []interface{}{
		map[string]interface{}{"type": "work", "rank": json.Number("5")},
		map[string]interface{}{"type": "home", "rank": json.Number("2")},
	}

	expr, err := ParseFilter("rank gt 3")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	matches, err := EvaluateArray(expr, array, attrs)
	if err != nil {
		t.Fatalf("EvaluateArray: %v", err)
	}
	if !reflect.DeepEqual(matches, []int{0}) {
		t.Errorf("matches = %v, want [0]", matches)
	}

	eqExpr, err := ParseFilter("rank eq 2")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	eqMatches, err := EvaluateArray(eqExpr, array, attrs)
	if err != nil {
		t.Fatalf("EvaluateArray: %v", err)
	}
	if !reflect.DeepEqual(eqMatches, []int{1}) {
		t.Errorf("matches = %v, want [1]", eqMatches)
	}
}

func TestEvaluatePresence(t *testing.T) {
	array := []interface{}{
		map[string]interface{}{"type": "work"},
		map[string]interface{}{"value": "a@x.com"},
	}
	expr, err := ParseFilter("type pr")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	matches, err := EvaluateArray(expr, array, emailAttrs())
	if err != nil {
		t.Fatalf("EvaluateArray: %v", err)
	}
	if !reflect.DeepEqual(matches, []int{0}) {
		t.Errorf("matches = %v, want [0]", matches)
	}
}
