package scim

import (
	"github.com/patchscim/scim/internal/filter"
	"github.com/patchscim/scim/schema"
)

// FilterAST is the parse result of a SCIM filter expression (spec.md §4.3).
type FilterAST = filter.Expression

// PathExpr is the parse result of a SCIM path expression (spec.md §4.3).
type PathExpr = filter.Path

// ParseFilter parses SCIM filter text into a FilterAST, per spec.md §6's
// exposed interface.
func ParseFilter(text string) (FilterAST, error) {
	return filter.ParseFilter(text)
}

// ParsePath parses SCIM path text into a PathExpr, per spec.md §6's exposed
// interface.
func ParsePath(text string) (PathExpr, error) {
	return filter.ParsePath(text)
}

// EvaluateFilter evaluates ast against each element of array, returning the
// indices of matching elements, per spec.md §6's exposed interface. attrs
// are the sub-attributes of the multi-valued complex attribute the array
// belongs to.
func EvaluateFilter(ast FilterAST, array []interface{}, attrs schema.Attributes) ([]int, error) {
	return filter.EvaluateArray(ast, array, attrs)
}

// FilterString renders ast back to canonical filter text (spec.md §8's
// round-trip testable property).
func FilterString(ast FilterAST) string {
	return filter.String(ast)
}

// PathString renders p back to canonical path text.
func PathString(p PathExpr) string {
	return filter.StringPath(p)
}
