// Package errors defines the SCIM error vocabulary (RFC 7644 §3.12) shared
// by the schema, filter and patch packages. Every failure surfaced by the
// patch engine is classified into one of these before it is returned to the
// caller; the engine itself never logs.
package errors

import "strings"

// ScimError is a SCIM protocol error: an HTTP status, a machine-readable
// scimType code, and a human-readable detail message.
type ScimError struct {
	Status   int
	ScimType string
	Detail   string
}

// Error implements the error interface.
func (e ScimError) Error() string {
	return e.Detail
}

// Kind classifies a ScimError by its ScimType into one of InvalidPath,
// InvalidFilter, InvalidValue, NoTarget, Mutability, Uniqueness or
// InvalidSyntax (the default, which also covers JSON syntax failures).
// Unknown-attribute failures are reported as InvalidPath, since they share
// that scimType (see DESIGN.md).
func (e ScimError) Kind() string {
	switch e.ScimType {
	case "invalidPath":
		return "InvalidPath"
	case "invalidFilter":
		return "InvalidFilter"
	case "invalidValue":
		return "InvalidValue"
	case "noTarget":
		return "NoTarget"
	case "mutability":
		return "Mutability"
	case "uniqueness":
		return "Uniqueness"
	default:
		return "InvalidSyntax"
	}
}

// Predefined SCIM errors, one per scimType defined by RFC 7644 §3.12, plus
// the additional invalidSyntax bucket used for malformed request bodies.
// Copy Detail/Status from these into a per-site literal when a call site
// needs a more specific Detail message.
var (
	ScimErrorNil = ScimError{}

	ScimErrorInvalidPath = ScimError{
		Status:   400,
		ScimType: "invalidPath",
		Detail:   "The path attribute was invalid or malformed.",
	}

	ScimErrorInvalidFilter = ScimError{
		Status:   400,
		ScimType: "invalidFilter",
		Detail:   "The specified filter syntax was invalid, or the specified attribute and filter comparison combination is not supported.",
	}

	ScimErrorInvalidValue = ScimError{
		Status:   400,
		ScimType: "invalidValue",
		Detail:   "A required value was missing, or the value specified was not compatible with the operation or attribute type.",
	}

	ScimErrorNoTarget = ScimError{
		Status:   400,
		ScimType: "noTarget",
		Detail:   "The specified filter yielded zero results for a modifying operation.",
	}

	ScimErrorMutability = ScimError{
		Status:   400,
		ScimType: "mutability",
		Detail:   "The attempted modification is not compatible with the target attribute's mutability or current state.",
	}

	ScimErrorUniqueness = ScimError{
		Status:   409,
		ScimType: "uniqueness",
		Detail:   "One or more of the attribute values are already in use or are reserved.",
	}

	ScimErrorInvalidSyntax = ScimError{
		Status:   400,
		ScimType: "invalidSyntax",
		Detail:   "The request body message structure was invalid or did not conform to the request schema.",
	}

	ScimErrorDuplicateAttributeFound = ScimError{
		Status:   400,
		ScimType: "invalidValue",
		Detail:   "Duplicate attribute found inside of the given complex attribute.",
	}
)

// ScimErrorBadParams builds an invalidValue error naming the offending query
// parameters.
func ScimErrorBadParams(params []string) ScimError {
	return ScimError{
		Status:   400,
		ScimType: "invalidValue",
		Detail:   "Invalid value(s) for query parameter(s): " + strings.Join(params, ", "),
	}
}

// Classify turns an arbitrary error into a ScimError, defaulting to
// invalidSyntax. It is the seam the host envelope layer uses for errors that
// didn't originate as a ScimError (e.g. a plain JSON decode failure).
func Classify(err error) ScimError {
	if err == nil {
		return ScimErrorNil
	}
	if se, ok := err.(ScimError); ok {
		return se
	}
	if se, ok := err.(*ScimError); ok {
		return *se
	}
	return ScimError{
		Status:   400,
		ScimType: "invalidSyntax",
		Detail:   err.Error(),
	}
}
