// Package schema implements the Schema Registry (C1) and Value Coercer (C2)
// of the patch engine, plus the resource validator (C9) restored from the
// teacher: CoreAttribute is the AttributeDef of spec.md §3, Schema a
// collection of such attributes, and Registry resolves attribute names
// (possibly schema-qualified, possibly against an extension) to the
// AttributeDef the patch engine needs.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/optional"
)

const (
	// UserSchema is the URI for the User resource.
	UserSchema = "urn:ietf:params:scim:schemas:core:2.0:User"

	// GroupSchema is the URI for the Group resource.
	GroupSchema = "urn:ietf:params:scim:schemas:core:2.0:Group"

	// CommonAttributeExternalID is the name of the common "externalId" attribute.
	CommonAttributeExternalID = "externalId"
)

func cannotBePatched(op string, attr CoreAttribute) bool {
	return isImmutable(op, attr) || isReadOnly(attr)
}

func isImmutable(op string, attr CoreAttribute) bool {
	return attr.mutability == attributeMutabilityImmutable && (op == "replace" || op == "remove")
}

func isReadOnly(attr CoreAttribute) bool {
	return attr.mutability == attributeMutabilityReadOnly
}

// Attributes is an ordered list of Core Attributes.
type Attributes []CoreAttribute

// ContainsAttribute checks whether the list of Core Attributes contains an
// attribute with the given name (case-insensitive).
func (as Attributes) ContainsAttribute(name string) (CoreAttribute, bool) {
	for _, a := range as {
		if strings.EqualFold(name, a.name) {
			return a, true
		}
	}
	return CoreAttribute{}, false
}

// Schema is a collection of attribute definitions that describe the
// contents of an entire resource or a schema extension.
type Schema struct {
	Attributes  Attributes
	Description optional.String
	ID          string
	Name        optional.String
}

// MarshalJSON converts the schema struct to its corresponding JSON representation.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// ToMap returns the map representation of a schema.
func (s Schema) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":          s.ID,
		"name":        s.Name.Value(),
		"description": s.Description.Value(),
		"attributes":  s.getRawAttributes(),
	}
}

// Validate validates a given resource based on the schema. Does NOT enforce
// immutability. Used for POST/PUT where attributes MAY be (re)defined.
func (s Schema) Validate(resource interface{}) (map[string]interface{}, *errors.ScimError) {
	return s.validate(resource, false)
}

// ValidateMutability validates a given resource based on the schema,
// including strict immutability checks.
func (s Schema) ValidateMutability(resource interface{}) (map[string]interface{}, *errors.ScimError) {
	return s.validate(resource, true)
}

// ValidatePatchOperation validates an individual patch operation's decoded
// value. isExtension allows attribute names prefixed with the schema's own
// URI (as patch requests against an extension sometimes supply).
func (s Schema) ValidatePatchOperation(operation string, operationValue map[string]interface{}, isExtension bool) (map[string]interface{}, *errors.ScimError) {
	value := make(map[string]interface{})

	for k, v := range operationValue {
		var attr *CoreAttribute
		for i := range s.Attributes {
			a := s.Attributes[i]
			if strings.EqualFold(a.name, k) {
				attr = &a
				break
			}
			if isExtension && strings.EqualFold(s.ID+":"+a.name, k) {
				attr = &a
				break
			}
		}

		if attr == nil {
			err := errors.ScimErrorInvalidValue
			err.Detail += " Attribute " + k + " does not exist in the schema."
			return nil, &err
		}
		if cannotBePatched(operation, *attr) {
			err := errors.ScimErrorMutability
			err.Detail += " Attribute " + attr.name + " cannot be patched with operation " + operation + "."
			return nil, &err
		}

		if operation == "remove" {
			continue
		}

		newValue, scimErr := attr.validate(v)
		if scimErr != nil {
			return nil, scimErr
		}
		value[k] = newValue
	}

	return value, nil
}

// ValidatePatchOperationValue is shorthand for ValidatePatchOperation against
// the primary (non-extension) schema.
func (s Schema) ValidatePatchOperationValue(operation string, operationValue map[string]interface{}) (map[string]interface{}, *errors.ScimError) {
	return s.ValidatePatchOperation(operation, operationValue, false)
}

func (s Schema) getRawAttributes() []map[string]interface{} {
	attributes := make([]map[string]interface{}, len(s.Attributes))
	for i, a := range s.Attributes {
		attributes[i] = a.getRawAttributes()
	}
	return attributes
}

func (s Schema) validate(resource interface{}, checkMutability bool) (map[string]interface{}, *errors.ScimError) {
	core, ok := resource.(map[string]interface{})
	if !ok {
		return nil, &errors.ScimErrorInvalidSyntax
	}

	attributes := make(map[string]interface{})
	for _, attribute := range s.Attributes {
		var hit interface{}
		var found bool
		for k, v := range core {
			if strings.EqualFold(attribute.name, k) {
				if found {
					err := errors.ScimErrorDuplicateAttributeFound
					err.Detail += " Attribute name: " + attribute.name
					return nil, &err
				}
				found = true
				hit = v
			}
		}

		if found && checkMutability && attribute.mutability == attributeMutabilityImmutable {
			err := errors.ScimErrorMutability
			err.Detail += " Attribute name: " + attribute.name
			return nil, &err
		}

		attr, scimErr := attribute.validate(hit)
		if scimErr != nil {
			return nil, scimErr
		}
		if attr != nil {
			attributes[attribute.name] = attr
		}
	}
	return attributes, nil
}
