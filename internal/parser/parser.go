package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced is wrapped by every SyntaxError. Callers only need to know
// that the structure could not be recovered.
var ErrUnbalanced = errors.New("unbalanced source")

// SyntaxError locates the first structural problem found by Parse
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrUnbalanced
}

type NodeKind uint8

const (
	NodeFunctionDef NodeKind = iota
	NodeCall
)

func (k NodeKind) String() string {
	switch k {
	case NodeFunctionDef:
		return "FunctionDef"
	case NodeCall:
		return "Call"
	}
	return "Unknown"
}

// Node is one structural element of a source file. Offsets index the
// original content, comments included.
type Node struct {
	Kind   NodeKind
	Name   string
	Offset int
	// End is the offset just past the closing bracket of the argument list
	End int

	// Set for NodeFunctionDef only
	Params  []string
	Delayed bool
}

// FunctionDefs filters nodes down to function definitions
func FunctionDefs(nodes []Node) []Node {
	var defs []Node
	for _, n := range nodes {
		if n.Kind == NodeFunctionDef {
			defs = append(defs, n)
		}
	}
	return defs
}

type ident struct {
	name       string
	start, end int
	depth      int
}

type opener struct {
	ch byte
	at int
}

// Parse extracts function definitions and calls from Wolfram Language
// source. It is a lexer plus bracket matcher, not a grammar: a definition
// is an identifier at bracket depth zero followed by an argument list and
// then "=" or ":=". Every other identifier[...] is a call. Part access
// (x[[i]]) is neither.
//
// Comments (nested, as the language nests them) and string literals are
// skipped. Any unmatched bracket, unterminated comment or unterminated
// string aborts the parse with a *SyntaxError.
func Parse(content string) ([]Node, error) {
	n := len(content)
	closeAt := make(map[int]int)
	var idents []ident
	var stack []opener

	for i := 0; i < n; {
		c := content[i]
		switch {
		case c == '(' && i+1 < n && content[i+1] == '*':
			end, ok := skipComment(content, i)
			if !ok {
				return nil, &SyntaxError{Offset: i, Msg: "unterminated comment"}
			}
			i = end
			continue

		case c == '"':
			end, ok := skipString(content, i)
			if !ok {
				return nil, &SyntaxError{Offset: i, Msg: "unterminated string"}
			}
			i = end
			continue

		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(content[j]) {
				j++
			}
			idents = append(idents, ident{name: content[i:j], start: i, end: j, depth: len(stack)})
			i = j
			continue

		case isDigit(c):
			// 2x is Times[2, x]: the number must not swallow the identifier
			j := i + 1
			for j < n && (isDigit(content[j]) || content[j] == '.') {
				j++
			}
			i = j
			continue

		case c == '[' || c == '{' || c == '(':
			stack = append(stack, opener{ch: c, at: i})

		case c == ']' || c == '}' || c == ')':
			if len(stack) == 0 {
				return nil, &SyntaxError{Offset: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			top := stack[len(stack)-1]
			if top.ch != matching(c) {
				return nil, &SyntaxError{Offset: i, Msg: fmt.Sprintf("%q closes %q opened at offset %d", c, top.ch, top.at)}
			}
			if c == ']' {
				closeAt[top.at] = i
			}
			stack = stack[:len(stack)-1]
		}
		i++
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, &SyntaxError{Offset: top.at, Msg: fmt.Sprintf("unclosed %q", top.ch)}
	}

	nodes := make([]Node, 0, len(idents)/2)
	for _, id := range idents {
		open := skipSpace(content, id.end)
		if open >= n || content[open] != '[' {
			continue
		}
		if open+1 < n && content[open+1] == '[' {
			continue
		}
		closing := closeAt[open]

		node := Node{Kind: NodeCall, Name: id.name, Offset: id.start, End: closing + 1}
		if id.depth == 0 {
			if delayed, ok := assignmentAt(content, skipSpace(content, closing+1)); ok {
				node.Kind = NodeFunctionDef
				node.Delayed = delayed
				node.Params = splitParams(content[open+1 : closing])
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// assignmentAt reports whether "=" or ":=" starts at i, excluding the
// comparison operators "==" and "===".
func assignmentAt(content string, i int) (delayed, ok bool) {
	if i >= len(content) {
		return false, false
	}
	if content[i] == ':' {
		if i+1 < len(content) && content[i+1] == '=' {
			return true, true
		}
		return false, false
	}
	if content[i] == '=' {
		if i+1 < len(content) && content[i+1] == '=' {
			return false, false
		}
		return false, true
	}
	return false, false
}

// splitParams splits an argument list on top-level commas and reduces each
// pattern to its name: "x_Integer" -> "x", "opts___" -> "opts", "n_?Positive" -> "n".
// An anonymous pattern such as "_" is kept as written.
func splitParams(list string) []string {
	var params []string
	depth := 0
	start := 0
	inString := false
	for i := 0; i < len(list); i++ {
		c := list[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				params = appendParam(params, list[start:i])
				start = i + 1
			}
		}
	}
	return appendParam(params, list[start:])
}

func appendParam(params []string, raw string) []string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return params
	}
	if cut := strings.IndexAny(p, "_?:"); cut > 0 {
		p = strings.TrimSpace(p[:cut])
	}
	return append(params, p)
}

func skipComment(content string, i int) (int, bool) {
	depth := 0
	for i < len(content)-1 {
		switch {
		case content[i] == '(' && content[i+1] == '*':
			depth++
			i += 2
		case content[i] == '*' && content[i+1] == ')':
			depth--
			i += 2
			if depth == 0 {
				return i, true
			}
		default:
			i++
		}
	}
	return len(content), false
}

func skipString(content string, i int) (int, bool) {
	for j := i + 1; j < len(content); j++ {
		switch content[j] {
		case '\\':
			j++
		case '"':
			return j + 1, true
		}
	}
	return len(content), false
}

func skipSpace(content string, i int) int {
	for i < len(content) {
		switch content[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}

func matching(closer byte) byte {
	switch closer {
	case ']':
		return '['
	case '}':
		return '{'
	}
	return '('
}

// IsIdentStart reports whether c can begin a symbol name
func IsIdentStart(c byte) bool {
	return isIdentStart(c)
}

// IsIdentPart reports whether c can continue a symbol name. The backtick
// separates context names (System`Print).
func IsIdentPart(c byte) bool {
	return isIdentPart(c)
}

func isIdentStart(c byte) bool {
	return c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '`'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
