package schema

import "testing"

func userSchema() Schema {
	name := ComplexCoreAttribute(ComplexParams{
		Name: "name",
		SubAttributes: []CoreAttribute{
			SimpleCoreAttribute(SimpleStringParams("givenName", false, false, false)),
			SimpleCoreAttribute(SimpleStringParams("familyName", false, false, false)),
		},
	})
	return Schema{
		ID:         UserSchema,
		Attributes: Attributes{SimpleCoreAttribute(SimpleStringParams("userName", false, true, false)), name},
	}
}

func enterpriseExtension() Schema {
	return Schema{
		ID:         "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User",
		Attributes: Attributes{SimpleCoreAttribute(SimpleStringParams("department", false, false, false))},
	}
}

func TestRegistryResolveDottedShortForm(t *testing.T) {
	reg := NewRegistry(userSchema())

	attr, err := reg.Resolve("name.givenName")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if attr.Name() != "givenName" {
		t.Errorf("Name() = %q, want givenName", attr.Name())
	}
}

func TestRegistryResolveFullyQualified(t *testing.T) {
	reg := NewRegistry(userSchema())

	attr, err := reg.Resolve(UserSchema + ":userName")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if attr.Name() != "userName" {
		t.Errorf("Name() = %q, want userName", attr.Name())
	}
}

func TestRegistryResolveExtension(t *testing.T) {
	reg := NewRegistry(userSchema(), enterpriseExtension())

	attr, err := reg.Resolve("urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:department")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if attr.Name() != "department" {
		t.Errorf("Name() = %q, want department", attr.Name())
	}

	if !reg.IsExtension("urn:ietf:params:scim:schemas:extension:enterprise:2.0:User") {
		t.Error("expected the enterprise URI to be recognized as an extension")
	}
	if reg.IsExtension(UserSchema) {
		t.Error("the primary schema's own URI is not an extension")
	}
}

func TestRegistryResolveUnknownAttribute(t *testing.T) {
	reg := NewRegistry(userSchema())
	if _, err := reg.Resolve("nickname"); err == nil {
		t.Fatal("expected an error resolving an unknown attribute")
	}
}

func TestRegistryResolveCaseInsensitive(t *testing.T) {
	reg := NewRegistry(userSchema())
	attr, err := reg.Resolve("USERNAME")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if attr.Name() != "userName" {
		t.Errorf("Name() = %q, want userName", attr.Name())
	}
}
