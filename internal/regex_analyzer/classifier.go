package regex_analyzer

import (
	"fmt"
	"strings"
)

// Rule patterns are often written for backtracking engines. Go's regexp is
// RE2: matching is linear in the input, so possessive quantifiers and atomic
// groups add nothing and are rewritten to their plain forms. Constructs RE2
// cannot express at all (lookaround, backreferences) are rejected up front
// with a message naming the construct, instead of the less helpful syntax
// error regexp.Compile would produce.

// DialectError reports a pattern construct the matcher does not support
type DialectError struct {
	Pattern   string
	Construct string
	Offset    int
}

// Error implements the error interface
func (e *DialectError) Error() string {
	return fmt.Sprintf("unsupported %s at offset %d in pattern %q", e.Construct, e.Offset, e.Pattern)
}

// Normalize rewrites source into the syntax accepted by regexp.Compile.
//
//   - possessive quantifiers *+ ++ ?+ {n,m}+ become greedy ones
//   - atomic groups (?>...) become non-capturing groups (?:...)
//   - lookahead, lookbehind and numeric backreferences return a *DialectError
//
// Everything else is passed through untouched, including \Q...\E spans.
func Normalize(source string) (string, error) {
	var b strings.Builder
	b.Grow(len(source))

	inClass := false
	prevQuant := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		if c == '\\' {
			if i+1 >= len(source) {
				b.WriteByte(c)
				continue
			}
			next := source[i+1]
			if next == 'Q' {
				end := strings.Index(source[i+2:], `\E`)
				if end < 0 {
					b.WriteString(source[i:])
					return b.String(), nil
				}
				stop := i + 2 + end + 2
				b.WriteString(source[i:stop])
				i = stop - 1
				prevQuant = false
				continue
			}
			if !inClass && next >= '1' && next <= '9' {
				return "", &DialectError{Pattern: source, Construct: "backreference", Offset: i}
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i++
			prevQuant = false
			continue
		}

		if inClass {
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '[':
			inClass = true
			b.WriteByte(c)
			// A leading ] (after an optional ^) is a literal member
			if i+1 < len(source) && source[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(source) && source[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
			prevQuant = false
			continue

		case '(':
			rest := source[i:]
			switch {
			case strings.HasPrefix(rest, "(?>"):
				b.WriteString("(?:")
				i += 2
				prevQuant = false
				continue
			case strings.HasPrefix(rest, "(?="), strings.HasPrefix(rest, "(?!"):
				return "", &DialectError{Pattern: source, Construct: "lookahead", Offset: i}
			case strings.HasPrefix(rest, "(?<="), strings.HasPrefix(rest, "(?<!"):
				return "", &DialectError{Pattern: source, Construct: "lookbehind", Offset: i}
			}
			b.WriteByte(c)
			if strings.HasPrefix(rest, "(?") {
				// Group flags or a named group, never a quantifier
				b.WriteByte('?')
				i++
			}
			prevQuant = false
			continue

		case '*', '+', '?':
			if prevQuant {
				if c == '+' {
					// possessive: drop the marker
					prevQuant = false
					continue
				}
				// lazy marker, kept
				b.WriteByte(c)
				prevQuant = false
				continue
			}
			b.WriteByte(c)
			prevQuant = true
			continue

		case '}':
			b.WriteByte(c)
			prevQuant = i > 0 && (isDigit(source[i-1]) || source[i-1] == ',')
			continue
		}

		b.WriteByte(c)
		prevQuant = false
	}

	return b.String(), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
