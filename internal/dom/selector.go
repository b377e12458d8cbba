// internal/dom/selector.go
package dom

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/measurediff/internal/browser/parser"
)

// Selector is a compiled CSS selector group that can be matched against any Element.
type Selector struct {
	source string
	group  parser.SelectorGroup
}

// Compile parses a selector group.
func Compile(selector string) (Selector, error) {
	group, err := parser.ParseSelectorGroup(selector)
	if err != nil {
		return Selector{}, fmt.Errorf("compiling selector: %w", err)
	}
	return Selector{source: selector, group: group}, nil
}

// MustCompile is like Compile but panics on a bad selector. Use it for constants.
func MustCompile(selector string) Selector {
	s, err := Compile(selector)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Selector) String() string { return s.source }

// IsZero reports whether the selector was never compiled.
func (s Selector) IsZero() bool { return len(s.group) == 0 }

// Match reports whether el matches any selector in the group.
func (s Selector) Match(el Element) bool {
	if el == nil {
		return false
	}
	for _, complex := range s.group {
		last := len(complex.Selectors) - 1
		if last >= 0 && matchFrom(el, complex, last) {
			return true
		}
	}
	return false
}

// matchFrom matches right to left: complex.Selectors[index] against el, then the
// combinator decides where the previous compound has to match.
func matchFrom(el Element, complex parser.ComplexSelector, index int) bool {
	if el == nil || index < 0 {
		return false
	}
	current := complex.Selectors[index]
	if !matchSimple(el, current.SimpleSelector) {
		return false
	}
	if index == 0 {
		return true
	}
	prev := index - 1
	switch current.Combinator {
	case parser.CombinatorDescendant:
		for p := el.Parent(); p != nil; p = p.Parent() {
			if matchFrom(p, complex, prev) {
				return true
			}
		}
		return false
	case parser.CombinatorChild:
		return matchFrom(el.Parent(), complex, prev)
	case parser.CombinatorAdjacentSibling:
		return matchFrom(previousSibling(el), complex, prev)
	case parser.CombinatorGeneralSibling:
		for sib := previousSibling(el); sib != nil; sib = previousSibling(sib) {
			if matchFrom(sib, complex, prev) {
				return true
			}
		}
		return false
	case parser.CombinatorNone:
		return true
	}
	return false
}

func previousSibling(el Element) Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	var prev Element
	for _, c := range parent.Children() {
		if c == el {
			return prev
		}
		prev = c
	}
	return nil
}

func matchSimple(el Element, sel parser.SimpleSelector) bool {
	if sel.TagName != "" && sel.TagName != "*" && strings.ToLower(el.Tag()) != sel.TagName {
		return false
	}
	if sel.ID != "" {
		if id, ok := el.Attr("id"); !ok || id != sel.ID {
			return false
		}
	}
	for _, required := range sel.Classes {
		if !HasClass(el, required) {
			return false
		}
	}
	for _, attr := range sel.Attributes {
		if !matchAttribute(el, attr) {
			return false
		}
	}
	return true
}

func matchAttribute(el Element, sel parser.AttributeSelector) bool {
	actual, found := el.Attr(strings.ToLower(sel.Name))
	if !found {
		return false
	}
	switch sel.Operator {
	case "":
		return true
	case "=":
		return actual == sel.Value
	case "~=":
		for _, word := range strings.Fields(actual) {
			if word == sel.Value {
				return true
			}
		}
		return false
	case "|=":
		return actual == sel.Value || strings.HasPrefix(actual, sel.Value+"-")
	case "^=":
		return sel.Value != "" && strings.HasPrefix(actual, sel.Value)
	case "$=":
		return sel.Value != "" && strings.HasSuffix(actual, sel.Value)
	case "*=":
		return sel.Value != "" && strings.Contains(actual, sel.Value)
	}
	return false
}
