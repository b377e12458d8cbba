// internal/browser/parser/selector.go
package parser

import (
	"fmt"
	"strings"
)

// SelectorGroup represents a comma-separated list of selectors (e.g., "li, dt, .list-item").
type SelectorGroup []ComplexSelector

// ComplexSelector represents a sequence of simple selectors joined by combinators (e.g., "ul > li").
type ComplexSelector struct {
	Selectors []SimpleSelectorWithCombinator
}

// SimpleSelectorWithCombinator pairs a simple selector with its preceding combinator.
type SimpleSelectorWithCombinator struct {
	Combinator     Combinator
	SimpleSelector SimpleSelector
}

// SimpleSelector is one compound selector: tag, id, classes and attribute tests.
type SimpleSelector struct {
	TagName    string
	ID         string
	Classes    []string
	Attributes []AttributeSelector
}

// AttributeSelector represents a CSS attribute selector like `[hidden]` or `[data-list-kind="spells"]`.
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

// Combinator defines the relationship between simple selectors.
type Combinator int

const (
	CombinatorNone            Combinator = iota // first selector
	CombinatorDescendant                        // whitespace
	CombinatorChild                             // >
	CombinatorAdjacentSibling                   // +
	CombinatorGeneralSibling                    // ~
)

func (c Combinator) String() string {
	switch c {
	case CombinatorDescendant:
		return " "
	case CombinatorChild:
		return " > "
	case CombinatorAdjacentSibling:
		return " + "
	case CombinatorGeneralSibling:
		return " ~ "
	}
	return ""
}

// IsValid checks if the selector has at least one component.
func (s SimpleSelector) IsValid() bool {
	return s.TagName != "" || s.ID != "" || len(s.Classes) > 0 || len(s.Attributes) > 0
}

func (s SimpleSelector) String() string {
	var b strings.Builder
	b.WriteString(s.TagName)
	if s.ID != "" {
		b.WriteString("#" + s.ID)
	}
	for _, c := range s.Classes {
		b.WriteString("." + c)
	}
	for _, a := range s.Attributes {
		if a.Operator == "" {
			fmt.Fprintf(&b, "[%s]", a.Name)
		} else {
			fmt.Fprintf(&b, "[%s%s%q]", a.Name, a.Operator, a.Value)
		}
	}
	return b.String()
}

func (cs ComplexSelector) String() string {
	var b strings.Builder
	for _, s := range cs.Selectors {
		b.WriteString(s.Combinator.String())
		b.WriteString(s.SimpleSelector.String())
	}
	return b.String()
}

func (g SelectorGroup) String() string {
	parts := make([]string, len(g))
	for i, cs := range g {
		parts[i] = cs.String()
	}
	return strings.Join(parts, ", ")
}

// SyntaxError reports where a selector stopped parsing.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid selector %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// ParseSelectorGroup parses a comma-separated selector list. Unlike a stylesheet parser
// it does not recover from bad input: any unparseable part fails the whole group.
func ParseSelectorGroup(input string) (SelectorGroup, error) {
	s := &scanner{input: input}
	var group SelectorGroup
	for {
		complex, err := parseComplexSelector(s)
		if err != nil {
			return nil, err
		}
		group = append(group, complex)
		if s.eof() {
			break
		}
		// parseComplexSelector only stops early on a comma.
		s.next()
	}
	return group, nil
}

func parseComplexSelector(s *scanner) (ComplexSelector, error) {
	var cs ComplexSelector
	fail := func(msg string) (ComplexSelector, error) {
		return ComplexSelector{}, &SyntaxError{Input: s.input, Offset: s.pos, Msg: msg}
	}

	s.skipWhitespace()
	for {
		sawSpace := s.skipWhitespace()
		if s.eof() || s.peek() == ',' {
			break
		}

		combinator := CombinatorNone
		if len(cs.Selectors) > 0 {
			switch s.peek() {
			case '>':
				combinator = CombinatorChild
			case '+':
				combinator = CombinatorAdjacentSibling
			case '~':
				combinator = CombinatorGeneralSibling
			default:
				if !sawSpace {
					return fail(fmt.Sprintf("unexpected %q", s.peek()))
				}
				combinator = CombinatorDescendant
			}
			if combinator != CombinatorDescendant {
				s.next()
				s.skipWhitespace()
				if s.eof() || s.peek() == ',' {
					return fail("combinator without a following selector")
				}
			}
		}

		simple, err := parseSimpleSelector(s)
		if err != nil {
			return ComplexSelector{}, err
		}
		cs.Selectors = append(cs.Selectors, SimpleSelectorWithCombinator{Combinator: combinator, SimpleSelector: simple})
	}

	if len(cs.Selectors) == 0 {
		return fail("empty selector")
	}
	return cs, nil
}

func parseSimpleSelector(s *scanner) (SimpleSelector, error) {
	var sel SimpleSelector
	fail := func(msg string) (SimpleSelector, error) {
		return SimpleSelector{}, &SyntaxError{Input: s.input, Offset: s.pos, Msg: msg}
	}

	switch ch := s.peek(); {
	case ch == '*':
		s.next()
		sel.TagName = "*"
	case isIdentStart(ch):
		sel.TagName = strings.ToLower(s.ident())
	}

	for !s.eof() {
		switch s.peek() {
		case '#':
			s.next()
			if sel.ID = s.ident(); sel.ID == "" {
				return fail("expected identifier after '#'")
			}
		case '.':
			s.next()
			class := s.ident()
			if class == "" {
				return fail("expected identifier after '.'")
			}
			sel.Classes = append(sel.Classes, class)
		case '[':
			s.next()
			attr, err := parseAttributeSelector(s)
			if err != nil {
				return SimpleSelector{}, err
			}
			sel.Attributes = append(sel.Attributes, attr)
		default:
			if !sel.IsValid() {
				return fail(fmt.Sprintf("unexpected %q", s.peek()))
			}
			return sel, nil
		}
	}
	if !sel.IsValid() {
		return fail("unexpected end of input")
	}
	return sel, nil
}

// parseAttributeSelector parses the contents of `[...]`; the opening bracket is already consumed.
func parseAttributeSelector(s *scanner) (AttributeSelector, error) {
	fail := func(msg string) (AttributeSelector, error) {
		return AttributeSelector{}, &SyntaxError{Input: s.input, Offset: s.pos, Msg: msg}
	}

	s.skipWhitespace()
	name := s.ident()
	if name == "" {
		return fail("expected attribute name")
	}
	s.skipWhitespace()

	if s.peek() == ']' {
		s.next()
		return AttributeSelector{Name: name}, nil
	}

	var op string
	switch ch := s.peek(); ch {
	case '=':
		s.next()
		op = "="
	case '~', '|', '^', '$', '*':
		s.next()
		if s.peek() != '=' {
			return fail(fmt.Sprintf("expected '=' after %q", ch))
		}
		s.next()
		op = string(ch) + "="
	default:
		return fail("expected ']' or an attribute operator")
	}
	s.skipWhitespace()

	var value string
	switch ch := s.peek(); {
	case ch == '"' || ch == '\'':
		v, ok := s.quoted()
		if !ok {
			return fail("unterminated string")
		}
		value = v
	case isIdentChar(ch):
		value = s.ident()
	default:
		return fail("expected attribute value")
	}
	s.skipWhitespace()

	if s.peek() != ']' {
		return fail("expected ']' to close attribute selector")
	}
	s.next()
	return AttributeSelector{Name: name, Operator: op, Value: value}, nil
}
