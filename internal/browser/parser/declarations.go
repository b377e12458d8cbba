// internal/browser/parser/declarations.go
package parser

import "strings"

// Property represents a CSS property (e.g., "padding-top").
type Property string

// Value represents a CSS value (e.g., "12px").
type Value string

// Declaration is a key-value pair (e.g., padding-top: 12px).
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// ParseDeclarations parses the body of an inline style attribute. Semicolons inside
// quoted strings and function arguments do not end a declaration. Declarations without
// a property or a value are dropped.
func ParseDeclarations(styleAttr string) []Declaration {
	s := &scanner{input: styleAttr}
	var decls []Declaration
	for {
		s.skipWhitespace()
		if s.eof() {
			break
		}
		if s.peek() == ';' {
			s.next()
			continue
		}
		if d, ok := parseDeclaration(s); ok {
			decls = append(decls, d)
		}
	}
	return decls
}

func parseDeclaration(s *scanner) (Declaration, bool) {
	skipRest := func() {
		for !s.eof() && s.peek() != ';' {
			s.next()
		}
	}

	if !isIdentStart(s.peek()) {
		skipRest()
		return Declaration{}, false
	}
	prop := strings.ToLower(s.ident())
	s.skipWhitespace()
	if s.peek() != ':' {
		skipRest()
		return Declaration{}, false
	}
	s.next()

	start := s.pos
scan:
	for !s.eof() {
		switch s.peek() {
		case ';':
			break scan
		case '"', '\'':
			s.quoted()
		case '(':
			s.skipBalanced('(', ')')
		default:
			s.pos++
		}
	}
	val := strings.TrimSpace(s.input[start:s.pos])

	important := false
	if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}
	if val == "" {
		return Declaration{}, false
	}
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}, true
}

// Resolve applies cascade order within one declaration list: a later declaration
// replaces an earlier one unless only the earlier one is !important.
func Resolve(decls []Declaration) map[Property]Value {
	out := make(map[Property]Value, len(decls))
	important := make(map[Property]bool)
	for _, d := range decls {
		if important[d.Property] && !d.Important {
			continue
		}
		out[d.Property] = d.Value
		important[d.Property] = d.Important
	}
	return out
}

// ExpandBoxShorthand replaces every occurrence of a 1-to-4 value box shorthand
// (padding, margin, border-width) with its four longhands, in place, so that
// cascade order between shorthand and longhands is preserved.
func ExpandBoxShorthand(decls []Declaration, shorthand Property) []Declaration {
	out := make([]Declaration, 0, len(decls)+3)
	for _, d := range decls {
		if d.Property != shorthand {
			out = append(out, d)
			continue
		}
		top, right, bottom, left, ok := expand1To4(string(d.Value))
		if !ok {
			continue
		}
		base := string(shorthand)
		if strings.HasSuffix(base, "-width") {
			// border-width expands to border-top-width etc.
			prefix := strings.TrimSuffix(base, "-width")
			out = append(out,
				Declaration{Property: Property(prefix + "-top-width"), Value: top, Important: d.Important},
				Declaration{Property: Property(prefix + "-right-width"), Value: right, Important: d.Important},
				Declaration{Property: Property(prefix + "-bottom-width"), Value: bottom, Important: d.Important},
				Declaration{Property: Property(prefix + "-left-width"), Value: left, Important: d.Important},
			)
			continue
		}
		out = append(out,
			Declaration{Property: Property(base + "-top"), Value: top, Important: d.Important},
			Declaration{Property: Property(base + "-right"), Value: right, Important: d.Important},
			Declaration{Property: Property(base + "-bottom"), Value: bottom, Important: d.Important},
			Declaration{Property: Property(base + "-left"), Value: left, Important: d.Important},
		)
	}
	return out
}

func expand1To4(val string) (top, right, bottom, left Value, ok bool) {
	parts := strings.Fields(val)
	switch len(parts) {
	case 1:
		v := Value(parts[0])
		return v, v, v, v, true
	case 2:
		v1, v2 := Value(parts[0]), Value(parts[1])
		return v1, v2, v1, v2, true
	case 3:
		v1, v2, v3 := Value(parts[0]), Value(parts[1]), Value(parts[2])
		return v1, v2, v3, v2, true
	case 4:
		return Value(parts[0]), Value(parts[1]), Value(parts[2]), Value(parts[3]), true
	}
	return "", "", "", "", false
}
