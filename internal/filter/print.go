package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders attr back to its canonical textual form.
func (a AttrPath) String() string {
	var b strings.Builder
	if a.URI != "" {
		b.WriteString(a.URI)
		b.WriteByte(':')
	}
	b.WriteString(a.Name)
	if a.SubAttr != "" {
		b.WriteByte('.')
		b.WriteString(a.SubAttr)
	}
	return b.String()
}

// String renders expr as canonical filter text. Re-parsing this text
// yields an AST equal to expr (spec.md §8's round-trip property).
func String(expr Expression) string {
	switch e := expr.(type) {
	case CompareExpression:
		if e.Op == PR {
			return fmt.Sprintf("%s pr", e.Attr)
		}
		return fmt.Sprintf("%s %s %s", e.Attr, e.Op, literalString(e.Value))
	case LogicalExpression:
		return fmt.Sprintf("%s %s %s", String(e.Left), e.Op, String(e.Right))
	case NotExpression:
		return fmt.Sprintf("not(%s)", String(e.Inner))
	case GroupExpression:
		return fmt.Sprintf("(%s)", String(e.Inner))
	default:
		return ""
	}
}

func literalString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return quoteString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// StringPath renders p as canonical path text.
func StringPath(p Path) string {
	var parts []string
	for _, seg := range p.Segments {
		s := seg.Attr.String()
		if seg.Filter != nil {
			s += "[" + String(seg.Filter) + "]"
		}
		parts = append(parts, s)
	}
	if p.SubAttr != "" {
		parts = append(parts, p.SubAttr)
	}
	return strings.Join(parts, ".")
}
