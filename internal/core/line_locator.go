package core

import (
	"sort"
	"strings"
)

// LocateLine maps offset to a 1-based line using ctx's offset index, or by
// scanning content when ctx is nil or already released. Both paths give
// the same answer for every offset.
func LocateLine(ctx *AnalysisContext, content string, offset int) int {
	if ctx == nil || ctx.released || ctx.lineOffsets == nil {
		return LinearLineAt(content, offset)
	}
	return ctx.LineAt(offset)
}

// LinearLineAt counts the newlines before offset. O(n); the fallback when
// no offset index exists.
func LinearLineAt(content string, offset int) int {
	if offset <= 0 {
		return 1
	}
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

func searchLine(offsets []int, offset int) int {
	if len(offsets) == 0 || offset < 0 {
		return 1
	}
	// First line start beyond offset; the line before it contains offset
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}
