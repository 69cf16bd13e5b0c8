package filter

import (
	"fmt"
	"strings"
)

// ParsePath parses SCIM path text into a PathExpr, per spec.md §4.3:
//
//	path    := segment ('.' segment)* ('.' subAttribute)?
//	segment := name ('[' filter ']')?
//
// Dots are structural separators at this level (unlike inside a filter's
// attrPath, where a dot denotes a sub-attribute reference); dots that occur
// inside a bracketed filter are not split on.
func ParsePath(text string) (Path, error) {
	uriPrefix, rest := splitLeadingSchemaURI(text)

	parts, err := splitTopLevelDots(rest)
	if err != nil {
		return Path{}, err
	}
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return Path{}, fmt.Errorf("empty path")
	}
	if uriPrefix != "" {
		parts[0] = uriPrefix + ":" + parts[0]
	}

	var segments []Segment
	subAttr := ""
	for i, part := range parts {
		name, filterText, hasFilter, err := splitNameBracket(part)
		if err != nil {
			return Path{}, err
		}
		if name == "" {
			return Path{}, fmt.Errorf("empty path segment")
		}

		if !hasFilter && i == len(parts)-1 && len(parts) > 1 {
			subAttr = name
			continue
		}

		var filterExpr Expression
		if hasFilter {
			toks, err := tokenize(filterText)
			if err != nil {
				return Path{}, err
			}
			fp := &parser{toks: toks}
			filterExpr, err = fp.parseExpr()
			if err != nil {
				return Path{}, err
			}
			if fp.peek().kind != tEOF {
				return Path{}, fmt.Errorf("unexpected trailing input in filter at position %d", fp.peek().pos)
			}
		}
		segments = append(segments, Segment{Attr: parseAttrPath(name), Filter: filterExpr})
	}

	if len(segments) == 0 {
		return Path{}, fmt.Errorf("path has no segments")
	}
	return Path{Segments: segments, SubAttr: subAttr}, nil
}

// splitLeadingSchemaURI splits off a leading schema URI, if any, from a path
// or attrPath's text. The URI (e.g. "urn:ietf:params:scim:schemas:extension:
// enterprise:2.0:User") may itself contain dots in its version component, so
// it must be recognized before splitTopLevelDots runs: the URI is whatever
// precedes the LAST ':' that occurs before the first bracketed filter (or
// the end of the text, if there is none) — attribute and sub-attribute names
// never themselves contain ':'.
func splitLeadingSchemaURI(text string) (uri, rest string) {
	searchEnd := len(text)
	if idx := strings.IndexByte(text, '['); idx >= 0 {
		searchEnd = idx
	}
	lastColon := strings.LastIndexByte(text[:searchEnd], ':')
	if lastColon < 0 {
		return "", text
	}
	return text[:lastColon], text[lastColon+1:]
}

// splitTopLevelDots splits s on '.' characters that occur outside bracket
// nesting and outside quoted strings.
func splitTopLevelDots(s string) ([]string, error) {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case inQuote:
			// inside a quoted literal, ignore structural characters
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']' at position %d", i)
			}
		case c == '.' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '[' in path %q", s)
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated string in path %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts, nil
}

// splitNameBracket splits a single path segment into its bare name and, if
// present, the text of its bracketed filter.
func splitNameBracket(part string) (name, filterText string, hasFilter bool, err error) {
	idx := strings.IndexByte(part, '[')
	if idx < 0 {
		return part, "", false, nil
	}
	if part[len(part)-1] != ']' {
		return "", "", false, fmt.Errorf("malformed bracketed filter in segment %q", part)
	}
	return part[:idx], part[idx+1 : len(part)-1], true, nil
}
