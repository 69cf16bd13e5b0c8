package scim

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/patchscim/scim/schema"
)

func testUserRegistry() schema.Registry {
	emailAttrs := schema.Attributes{
		schema.SimpleCoreAttribute(schema.SimpleStringParams("type", false, false, false)),
		schema.SimpleCoreAttribute(schema.SimpleStringParams("value", false, false, false)),
	}
	emails := schema.ComplexCoreAttribute(schema.ComplexParams{
		Name:          "emails",
		MultiValued:   true,
		SubAttributes: emailAttrs,
	})

	userName := schema.SimpleCoreAttribute(schema.SimpleStringParams("userName", false, true, false))
	id := schema.SimpleCoreAttribute(schema.SimpleParams{
		Name:       "id",
		Type:       schema.StringType,
		Mutability: schema.AttributeMutabilityReadOnly(),
	})

	primary := schema.Schema{
		ID:         schema.UserSchema,
		Attributes: schema.Attributes{userName, emails, id},
	}

	extension := schema.Schema{
		ID: "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User",
		Attributes: schema.Attributes{
			schema.SimpleCoreAttribute(schema.SimpleStringParams("department", false, false, false)),
		},
	}

	return schema.NewRegistry(primary, extension)
}

func rawValue(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling test value: %v", err)
	}
	return raw
}

// Scenario 1: simple replace.
func TestApplyPatchSimpleReplace(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{"userName": "old"}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "replace", Path: "userName", Value: rawValue(t, "new")},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}
	want := map[string]interface{}{"userName": "new"}
	if !reflect.DeepEqual(result.Resource, want) {
		t.Errorf("Resource = %#v, want %#v", result.Resource, want)
	}
}

// Scenario 2: filtered sub-attribute update.
func TestApplyPatchFilteredSubAttributeUpdate(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "value": "a@x"},
			map[string]interface{}{"type": "home", "value": "b@x"},
		},
	}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "replace", Path: `emails[type eq "work"].value`, Value: rawValue(t, "c@x")},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}

	emails := result.Resource["emails"].([]interface{})
	work := emails[0].(map[string]interface{})
	home := emails[1].(map[string]interface{})
	if work["value"] != "c@x" {
		t.Errorf("work email value = %v, want c@x", work["value"])
	}
	if home["value"] != "b@x" {
		t.Errorf("home email value = %v, want b@x (untouched)", home["value"])
	}
}

// Scenario 3: no-target on remove.
func TestApplyPatchNoTargetOnRemove(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"type": "home", "value": "b@x"},
		},
	}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "remove", Path: `emails[type eq "work"]`},
	}}

	_, scimErr := ApplyPatch(reg, resource, req)
	if scimErr == nil {
		t.Fatal("expected a noTarget error")
	}
	if scimErr.ScimType != "noTarget" {
		t.Errorf("ScimType = %q, want noTarget", scimErr.ScimType)
	}
}

// Scenario 4: extension add.
func TestApplyPatchExtensionAdd(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{}

	req := PatchRequest{Operations: []PatchOperation{
		{
			Op:    "add",
			Path:  "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:department",
			Value: rawValue(t, "Eng"),
		},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}
	want := map[string]interface{}{
		"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": map[string]interface{}{
			"department": "Eng",
		},
	}
	if !reflect.DeepEqual(result.Resource, want) {
		t.Errorf("Resource = %#v, want %#v", result.Resource, want)
	}
}

// Scenario 5: idempotent add (re-applying scenario 4's operation is a no-op).
func TestApplyPatchIdempotentAdd(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{
		"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": map[string]interface{}{
			"department": "Eng",
		},
	}

	req := PatchRequest{Operations: []PatchOperation{
		{
			Op:    "add",
			Path:  "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:department",
			Value: rawValue(t, "Eng"),
		},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if result.Changed {
		t.Error("expected Changed = false for an idempotent re-add")
	}
	if !reflect.DeepEqual(result.Resource, resource) {
		t.Errorf("Resource = %#v, want unchanged %#v", result.Resource, resource)
	}
}

// Scenario 6: atomic failure rollback.
func TestApplyPatchAtomicFailureRollback(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{"userName": "u"}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "replace", Path: "userName", Value: rawValue(t, "u2")},
		{Op: "replace", Path: "badAttr", Value: rawValue(t, "x")},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr == nil {
		t.Fatal("expected an error from the second operation")
	}
	if result.Resource != nil {
		t.Errorf("expected a zero PatchResult on failure, got %#v", result)
	}
	want := map[string]interface{}{"userName": "u"}
	if !reflect.DeepEqual(resource, want) {
		t.Errorf("caller's resource was mutated: %#v, want %#v", resource, want)
	}
}

func TestApplyPatchZeroOperationsRejected(t *testing.T) {
	reg := testUserRegistry()
	_, scimErr := ApplyPatch(reg, map[string]interface{}{}, PatchRequest{})
	if scimErr == nil {
		t.Fatal("expected an error for a request with zero operations")
	}
}

func TestApplyPatchRemoveRequiresEmptyValue(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{"emails": []interface{}{
		map[string]interface{}{"type": "work", "value": "a@x"},
	}}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "remove", Path: "emails", Value: rawValue(t, "x")},
	}}

	_, scimErr := ApplyPatch(reg, resource, req)
	if scimErr == nil {
		t.Fatal("expected an error: remove must not carry a value")
	}
}

func TestApplyPatchAddRejectsStringForComplexAttribute(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "add", Path: "emails", Value: rawValue(t, "not-an-object")},
	}}

	_, scimErr := ApplyPatch(reg, resource, req)
	if scimErr == nil {
		t.Fatal("expected an error adding a bare string to a multi-valued complex attribute")
	}
}

func TestApplyPatchAddNoPathMerge(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{"userName": "bjensen"}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "add", Value: rawValue(t, map[string]interface{}{"userName": "bjensen2"})},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}
	if result.Resource["userName"] != "bjensen2" {
		t.Errorf("userName = %v, want bjensen2", result.Resource["userName"])
	}
}

// Replacing a multi-valued attribute with no filter/sub-attribute replaces
// the whole array with the provided JSON array of elements.
func TestApplyPatchReplaceWholeArray(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "value": "a@x"},
		},
	}

	newEmails := []interface{}{
		map[string]interface{}{"type": "home", "value": "b@x"},
		map[string]interface{}{"type": "other", "value": "c@x"},
	}
	req := PatchRequest{Operations: []PatchOperation{
		{Op: "replace", Path: "emails", Value: rawValue(t, newEmails)},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}
	emails := result.Resource["emails"].([]interface{})
	if len(emails) != 2 {
		t.Fatalf("len(emails) = %d, want 2", len(emails))
	}
	first := emails[0].(map[string]interface{})
	if first["type"] != "home" || first["value"] != "b@x" {
		t.Errorf("emails[0] = %#v, want the replacement's first element", first)
	}
}

// Replacing a multi-valued attribute with an empty JSON array clears it,
// rather than being rejected as "no value supplied".
func TestApplyPatchReplaceWholeArrayWithEmptyArrayClears(t *testing.T) {
	reg := testUserRegistry()
	resource := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "value": "a@x"},
		},
	}

	req := PatchRequest{Operations: []PatchOperation{
		{Op: "replace", Path: "emails", Value: rawValue(t, []interface{}{})},
	}}

	result, scimErr := ApplyPatch(reg, resource, req)
	if scimErr != nil {
		t.Fatalf("ApplyPatch: %v", scimErr)
	}
	if !result.Changed {
		t.Error("expected Changed = true")
	}
	emails, _ := result.Resource["emails"].([]interface{})
	if len(emails) != 0 {
		t.Errorf("emails = %#v, want an empty array", emails)
	}
}
