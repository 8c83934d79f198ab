package core

import (
	"sort"
	"strings"
)

// Range is a half-open byte span [Start, End)
type Range struct {
	Start int
	End   int
}

// Contains reports whether pos lies in the span
func (r Range) Contains(pos int) bool {
	return r.Start <= pos && pos < r.End
}

const (
	commentOpen  = "(*"
	commentClose = "*)"
)

// scanCommentRanges finds block comments. Matching is lazy and flat: a
// comment runs from "(*" to the first "*)" after it, so "(* a (* b *) c *)"
// yields one range ending after "b *)". An opener with no closer yields
// nothing. Ranges come out ordered and never overlap because scanning
// resumes after each closer.
func scanCommentRanges(content string) []Range {
	var ranges []Range
	pos := 0
	for pos < len(content) {
		start := strings.Index(content[pos:], commentOpen)
		if start < 0 {
			break
		}
		start += pos
		end := strings.Index(content[start+len(commentOpen):], commentClose)
		if end < 0 {
			break
		}
		end += start + len(commentOpen) + len(commentClose)
		ranges = append(ranges, Range{Start: start, End: end})
		pos = end
	}
	return ranges
}

// IsInsideComment reports whether pos falls in one of ranges, which must be
// ordered by Start and non-overlapping.
func IsInsideComment(pos int, ranges []Range) bool {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].End > pos })
	return i < len(ranges) && ranges[i].Start <= pos
}

// IsInsideStringLiteral guesses whether pos is inside a string literal by
// counting unescaped double quotes between the start of pos's line and pos:
// an odd count means inside.
//
// This is an approximation, not a lexer. Strings spanning lines are not
// seen, and any character after a backslash counts as escaped, so "\\" at
// the end of a string confuses it.
func IsInsideStringLiteral(content string, pos int) bool {
	if pos < 0 || pos >= len(content) {
		return false
	}
	lineStart := strings.LastIndexByte(content[:pos], '\n') + 1

	quotes := 0
	escaped := false
	for i := lineStart; i < pos; i++ {
		switch {
		case escaped:
			escaped = false
		case content[i] == '\\':
			escaped = true
		case content[i] == '"':
			quotes++
		}
	}
	return quotes%2 == 1
}
