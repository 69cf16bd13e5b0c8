package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/patchscim/scim/errors"
	"github.com/patchscim/scim/schema"
)

// Evaluate is the Filter Evaluator (C4): it decides whether candidate (one
// element of a multi-valued complex attribute's array) matches expr, per
// spec.md §4.4's operator table. attrs are the sub-attributes of the
// multi-valued complex attribute, used to resolve caseExact and type for
// each comparison.
func Evaluate(expr Expression, candidate map[string]interface{}, attrs schema.Attributes) (bool, error) {
	switch e := expr.(type) {
	case CompareExpression:
		return evalCompare(e, candidate, attrs)
	case LogicalExpression:
		left, err := Evaluate(e.Left, candidate, attrs)
		if err != nil {
			return false, err
		}
		switch e.Op {
		case "and":
			if !left {
				return false, nil
			}
			return Evaluate(e.Right, candidate, attrs)
		case "or":
			if left {
				return true, nil
			}
			return Evaluate(e.Right, candidate, attrs)
		}
		return false, nil
	case NotExpression:
		v, err := Evaluate(e.Inner, candidate, attrs)
		if err != nil {
			return false, err
		}
		return !v, nil
	case GroupExpression:
		return Evaluate(e.Inner, candidate, attrs)
	default:
		return false, nil
	}
}

func evalCompare(e CompareExpression, candidate map[string]interface{}, attrs schema.Attributes) (bool, error) {
	value, attr, found := lookupAttr(e.Attr, candidate, attrs)

	if e.Op == PR {
		if !found || value == nil {
			return false, nil
		}
		if s, ok := value.(string); ok {
			return s != "", nil
		}
		return true, nil
	}

	if !found {
		return e.Op == NE, nil
	}

	switch e.Op {
	case EQ:
		return compareEqual(value, e.Value, attr)
	case NE:
		eq, err := compareEqual(value, e.Value, attr)
		if err != nil {
			return false, err
		}
		return !eq, nil
	case CO, SW, EW:
		return compareStringMatch(e.Op, value, e.Value)
	case GT, GE, LT, LE:
		return compareOrdered(e.Op, value, e.Value, attr)
	default:
		return false, invalidFilter("unsupported operator")
	}
}

func lookupAttr(path AttrPath, candidate map[string]interface{}, attrs schema.Attributes) (interface{}, schema.CoreAttribute, bool) {
	attr, ok := attrs.ContainsAttribute(path.Name)
	if !ok {
		return nil, schema.CoreAttribute{}, false
	}
	v, present := caseInsensitiveGet(candidate, path.Name)
	if !present || v == nil {
		return nil, attr, false
	}
	if path.SubAttr == "" {
		return v, attr, true
	}
	sub, ok := attr.SubAttributes().ContainsAttribute(path.SubAttr)
	if !ok {
		return nil, schema.CoreAttribute{}, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, sub, false
	}
	sv, present := caseInsensitiveGet(m, path.SubAttr)
	if !present || sv == nil {
		return nil, sub, false
	}
	return sv, sub, true
}

func caseInsensitiveGet(m map[string]interface{}, key string) (interface{}, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func invalidFilter(detail string) error {
	err := errors.ScimErrorInvalidFilter
	err.Detail += " " + detail
	return err
}

func compareEqual(value, literal interface{}, attr schema.CoreAttribute) (bool, error) {
	switch v := value.(type) {
	case string:
		lit, ok := literal.(string)
		if !ok {
			return false, invalidFilter("expected a string literal")
		}
		if attr.CaseExact() {
			return v == lit, nil
		}
		return strings.EqualFold(v, lit), nil
	case bool:
		lit, ok := literal.(bool)
		if !ok {
			return false, invalidFilter("expected a boolean literal")
		}
		return v == lit, nil
	default:
		vf, ok1 := numeric(value)
		lf, ok2 := numeric(literal)
		if ok1 && ok2 {
			return vf == lf, nil
		}
		return false, invalidFilter("type mismatch between attribute and literal")
	}
}

func compareStringMatch(op CompareOp, value, literal interface{}) (bool, error) {
	v, ok := value.(string)
	if !ok {
		return false, invalidFilter("co/sw/ew require a string attribute")
	}
	lit, ok := literal.(string)
	if !ok {
		return false, invalidFilter("co/sw/ew require a string literal")
	}
	switch op {
	case CO:
		return strings.Contains(v, lit), nil
	case SW:
		return strings.HasPrefix(v, lit), nil
	case EW:
		return strings.HasSuffix(v, lit), nil
	}
	return false, nil
}

func compareOrdered(op CompareOp, value, literal interface{}, attr schema.CoreAttribute) (bool, error) {
	if attr.AttributeType() == schema.DateTimeType {
		vs, ok1 := value.(string)
		ls, ok2 := literal.(string)
		if !ok1 || !ok2 {
			return false, invalidFilter("gt/ge/lt/le on dateTime requires string values")
		}
		vt, err1 := time.Parse(time.RFC3339, vs)
		lt, err2 := time.Parse(time.RFC3339, ls)
		if err1 != nil || err2 != nil {
			return false, invalidFilter("gt/ge/lt/le on dateTime requires RFC3339 timestamps")
		}
		return orderResult(op, vt.Before(lt), vt.Equal(lt)), nil
	}

	if vf, ok1 := numeric(value); ok1 {
		lf, ok2 := numeric(literal)
		if !ok2 {
			return false, invalidFilter("type mismatch between attribute and literal")
		}
		return orderResult(op, vf < lf, vf == lf), nil
	}

	vs, ok1 := value.(string)
	ls, ok2 := literal.(string)
	if !ok1 || !ok2 {
		return false, invalidFilter("type mismatch between attribute and literal")
	}
	cmp := strings.Compare(vs, ls)
	return orderResult(op, cmp < 0, cmp == 0), nil
}

func orderResult(op CompareOp, less, equal bool) bool {
	switch op {
	case GT:
		return !less && !equal
	case GE:
		return !less
	case LT:
		return less
	case LE:
		return less || equal
	}
	return false
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// EvaluateArray runs Evaluate against every element of array, returning the
// sorted indices of matching elements with no duplicates — the contract of
// the exported EvaluateFilter operation (spec.md §6).
func EvaluateArray(expr Expression, array []interface{}, attrs schema.Attributes) ([]int, error) {
	var matches []int
	for i, elem := range array {
		m, ok := elem.(map[string]interface{})
		if !ok {
			continue
		}
		ok2, err := Evaluate(expr, m, attrs)
		if err != nil {
			return nil, err
		}
		if ok2 {
			matches = append(matches, i)
		}
	}
	return matches, nil
}
