package schema

import "encoding/json"

// SimpleType enumerates the SCIM attribute data types (RFC 7643 §2.3).
type SimpleType int

const (
	StringType SimpleType = iota
	BooleanType
	IntegerType
	DecimalType
	DateTimeType
	ReferenceType
	BinaryType
	ComplexType
)

// String returns the lowercase SCIM wire name of the type.
func (t SimpleType) String() string {
	switch t {
	case StringType:
		return "string"
	case BooleanType:
		return "boolean"
	case IntegerType:
		return "integer"
	case DecimalType:
		return "decimal"
	case DateTimeType:
		return "dateTime"
	case ReferenceType:
		return "reference"
	case BinaryType:
		return "binary"
	case ComplexType:
		return "complex"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the type as its SCIM wire name.
func (t SimpleType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// attributeMutability mirrors RFC 7643 §2.2's mutability vocabulary.
type attributeMutability int

const (
	attributeMutabilityReadWrite attributeMutability = iota
	attributeMutabilityReadOnly
	attributeMutabilityImmutable
	attributeMutabilityWriteOnly
)

func (m attributeMutability) String() string {
	switch m {
	case attributeMutabilityReadOnly:
		return "readOnly"
	case attributeMutabilityImmutable:
		return "immutable"
	case attributeMutabilityWriteOnly:
		return "writeOnly"
	default:
		return "readWrite"
	}
}

// MarshalJSON renders the mutability as its SCIM wire name.
func (m attributeMutability) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// Mutability wraps attributeMutability so it can be passed as a builder
// parameter without exposing the underlying int type.
type Mutability struct{ m attributeMutability }

func AttributeMutabilityReadWrite() Mutability { return Mutability{attributeMutabilityReadWrite} }
func AttributeMutabilityReadOnly() Mutability  { return Mutability{attributeMutabilityReadOnly} }
func AttributeMutabilityImmutable() Mutability { return Mutability{attributeMutabilityImmutable} }
func AttributeMutabilityWriteOnly() Mutability { return Mutability{attributeMutabilityWriteOnly} }

// attributeReturned mirrors RFC 7643 §2.2's "returned" vocabulary.
type attributeReturned int

const (
	attributeReturnedDefault attributeReturned = iota
	attributeReturnedAlways
	attributeReturnedNever
	attributeReturnedRequest
)

func (r attributeReturned) String() string {
	switch r {
	case attributeReturnedAlways:
		return "always"
	case attributeReturnedNever:
		return "never"
	case attributeReturnedRequest:
		return "request"
	default:
		return "default"
	}
}

func (r attributeReturned) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Returned wraps attributeReturned for use as a builder parameter.
type Returned struct{ r attributeReturned }

func AttributeReturnedDefault() Returned { return Returned{attributeReturnedDefault} }
func AttributeReturnedAlways() Returned  { return Returned{attributeReturnedAlways} }
func AttributeReturnedNever() Returned   { return Returned{attributeReturnedNever} }
func AttributeReturnedRequest() Returned { return Returned{attributeReturnedRequest} }

// attributeUniqueness mirrors RFC 7643 §2.2's uniqueness vocabulary.
type attributeUniqueness int

const (
	attributeUniquenessNone attributeUniqueness = iota
	attributeUniquenessServer
	attributeUniquenessGlobal
)

func (u attributeUniqueness) String() string {
	switch u {
	case attributeUniquenessServer:
		return "server"
	case attributeUniquenessGlobal:
		return "global"
	default:
		return "none"
	}
}

func (u attributeUniqueness) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// Uniqueness wraps attributeUniqueness for use as a builder parameter.
type Uniqueness struct{ u attributeUniqueness }

func AttributeUniquenessNone() Uniqueness   { return Uniqueness{attributeUniquenessNone} }
func AttributeUniquenessServer() Uniqueness { return Uniqueness{attributeUniquenessServer} }
func AttributeUniquenessGlobal() Uniqueness { return Uniqueness{attributeUniquenessGlobal} }

// AttributeReferenceType names an allowed "$ref" target kind, e.g. "User", "external".
type AttributeReferenceType string

const (
	ReferenceTypeExternal AttributeReferenceType = "external"
	ReferenceTypeURI       AttributeReferenceType = "uri"
)
