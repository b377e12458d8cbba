// internal/browser/parser/scanner.go
package parser

import "strings"

// scanner is a byte cursor shared by the selector and declaration parsers.
type scanner struct {
	input string
	pos   int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) next() byte {
	ch := s.peek()
	if !s.eof() {
		s.pos++
	}
	return ch
}

// skipWhitespace consumes whitespace and comments, and reports whether anything was consumed.
func (s *scanner) skipWhitespace() bool {
	start := s.pos
	for !s.eof() {
		switch {
		case isWhitespace(s.peek()):
			s.pos++
		case strings.HasPrefix(s.input[s.pos:], "/*"):
			end := strings.Index(s.input[s.pos+2:], "*/")
			if end == -1 {
				s.pos = len(s.input)
			} else {
				s.pos += end + 4
			}
		default:
			return s.pos > start
		}
	}
	return s.pos > start
}

func (s *scanner) ident() string {
	start := s.pos
	for !s.eof() && isIdentChar(s.peek()) {
		s.pos++
	}
	return s.input[start:s.pos]
}

// quoted reads a single or double quoted string starting at the opening quote.
// Backslash escapes the next byte.
func (s *scanner) quoted() (string, bool) {
	quote := s.next()
	var b strings.Builder
	for !s.eof() {
		ch := s.next()
		switch ch {
		case '\\':
			if !s.eof() {
				b.WriteByte(s.next())
			}
		case quote:
			return b.String(), true
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), false
}

// skipBalanced consumes a parenthesised run, including nested parens and quoted strings.
func (s *scanner) skipBalanced(open, close byte) {
	depth := 0
	for !s.eof() {
		ch := s.peek()
		switch ch {
		case '"', '\'':
			s.quoted()
			continue
		case open:
			depth++
		case close:
			depth--
		}
		s.pos++
		if depth == 0 {
			return
		}
	}
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
