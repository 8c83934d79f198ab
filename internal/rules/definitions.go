package rules

import (
	"strings"

	"github.com/standardbeagle/mlint/internal/parser"
)

// DefinitionSite is a textual function definition: name, optional
// whitespace, a bracketed argument list without a nested "]", optional
// whitespace, then "=" or ":=".
type DefinitionSite struct {
	Name   string
	Offset int
	// End is the offset just past the assignment operator
	End     int
	Delayed bool
}

// FindDefinitionSites scans content for definition shapes in one forward
// pass. Unlike a backtracking regex it never rescans an argument list: the
// position of the next "]" is remembered and only recomputed once the scan
// has moved past it, so the total work is linear in len(content) even for
// input like "f[f[f[f[..." with no closing bracket.
//
// accept decides which sites are kept; nil keeps all. The scan resumes past
// the assignment only for kept sites. A rejected site resumes right after
// its name, so definitions inside its argument list (Module[{}, g[x_] := x])
// or after it are still found. "=" is matched like the ":?=" shape, so
// f[x] == y counts as a site.
func FindDefinitionSites(content string, accept func(DefinitionSite) bool) []DefinitionSite {
	var sites []DefinitionSite
	n := len(content)

	// The "]" ahead of the current bracket and what follows it. Every
	// argument list opened before that "]" closes there, so this is
	// computed once per closing bracket.
	nextClose := -1
	var closeOp int
	var closeDelayed, closeAssigns bool

	for i := 0; i < n; {
		c := content[i]
		if !parser.IsIdentStart(c) || (i > 0 && parser.IsIdentPart(content[i-1])) {
			i++
			continue
		}

		start := i
		end := i + 1
		for end < n && parser.IsIdentPart(content[end]) {
			end++
		}

		open := skipWhitespace(content, end)
		if open >= n || content[open] != '[' {
			i = end
			continue
		}

		if nextClose < open {
			idx := strings.IndexByte(content[open+1:], ']')
			if idx < 0 {
				// No "]" anywhere ahead: nothing later can close either
				break
			}
			nextClose = open + 1 + idx
			closeOp, closeDelayed, closeAssigns = assignmentAfter(content, nextClose+1)
		}

		if closeAssigns {
			site := DefinitionSite{
				Name:    content[start:end],
				Offset:  start,
				End:     closeOp + 1,
				Delayed: closeDelayed,
			}
			if accept == nil || accept(site) {
				sites = append(sites, site)
				i = closeOp + 1
				continue
			}
		}
		i = end
	}
	return sites
}

// assignmentAfter looks for optional whitespace then "=" or ":=" at i.
// op is the offset of the "=".
func assignmentAfter(content string, i int) (op int, delayed, ok bool) {
	op = skipWhitespace(content, i)
	if op < len(content) && content[op] == ':' {
		delayed = true
		op++
	}
	if op < len(content) && content[op] == '=' {
		return op, delayed, true
	}
	return op, false, false
}

func skipWhitespace(content string, i int) int {
	for i < len(content) {
		switch content[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i++
		default:
			return i
		}
	}
	return i
}
