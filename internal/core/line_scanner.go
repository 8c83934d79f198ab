package core

import (
	"strings"
)

// LineScanner iterates over the lines of a file's content without
// allocating. Lines are substrings of the scanned content.
//
// Usage:
//
//	scanner := NewLineScanner(content)
//	for scanner.Scan() {
//	    line := scanner.Text()
//	    lineNum := scanner.LineNumber() // 1-based
//	}
type LineScanner struct {
	data    string
	start   int // Start of current line
	end     int // End of current line (exclusive, before newline)
	pos     int // Current position in data
	lineNum int // Current line number (1-based)
	done    bool
	keepCR  bool
	// trailing reports an empty final line after a terminating newline
	trailing bool
}

// NewLineScanner creates a scanner that strips a trailing \r from each line
// and does not report an empty line after a final newline.
func NewLineScanner(data string) *LineScanner {
	return &LineScanner{data: data}
}

// NewExactLineScanner creates a scanner whose lines are exactly the pieces
// of strings.Split(data, "\n"): carriage returns are kept and content ending
// in a newline yields a final empty line.
func NewExactLineScanner(data string) *LineScanner {
	return &LineScanner{data: data, keepCR: true, trailing: true}
}

// Scan advances to the next line. Returns false when done.
func (ls *LineScanner) Scan() bool {
	if ls.done {
		return false
	}

	if ls.pos >= len(ls.data) {
		// Exact mode reports the empty piece after the last newline,
		// and the single empty line of empty content
		if ls.trailing && (len(ls.data) == 0 || ls.data[len(ls.data)-1] == '\n') && ls.pos == len(ls.data) {
			ls.start, ls.end = len(ls.data), len(ls.data)
			ls.pos = len(ls.data) + 1
			ls.lineNum++
			return true
		}
		ls.done = true
		return false
	}

	ls.start = ls.pos
	ls.lineNum++

	idx := strings.IndexByte(ls.data[ls.pos:], '\n')
	if idx < 0 {
		ls.end = len(ls.data)
		ls.pos = len(ls.data) + 1
	} else {
		ls.end = ls.pos + idx
		ls.pos = ls.pos + idx + 1
	}

	if !ls.keepCR && ls.end > ls.start && ls.data[ls.end-1] == '\r' {
		ls.end--
	}

	return true
}

// Text returns the current line (zero-copy substring).
func (ls *LineScanner) Text() string {
	if ls.start > len(ls.data) || ls.end > len(ls.data) {
		return ""
	}
	return ls.data[ls.start:ls.end]
}

// LineNumber returns the current line number (1-based).
func (ls *LineScanner) LineNumber() int {
	return ls.lineNum
}

// Offset returns the byte offset of the current line start.
func (ls *LineScanner) Offset() int {
	return ls.start
}

// EndOffset returns the byte offset of the current line end (exclusive).
func (ls *LineScanner) EndOffset() int {
	return ls.end
}

// Reset rewinds the scanner to the beginning.
func (ls *LineScanner) Reset() {
	ls.start = 0
	ls.end = 0
	ls.pos = 0
	ls.lineNum = 0
	ls.done = false
}

// CountLines counts the lines of content the way an editor numbers them:
// a final newline does not start another line. Used by the host to skip
// files with too many lines before building a context.
func CountLines(data string) int {
	if len(data) == 0 {
		return 0
	}
	newlines := strings.Count(data, "\n")
	if data[len(data)-1] != '\n' {
		return newlines + 1
	}
	return newlines
}

// SplitLines is strings.Split(data, "\n") with the result slice sized by a
// counting pass first.
func SplitLines(data string) []string {
	lines := make([]string, 0, strings.Count(data, "\n")+1)
	scanner := NewExactLineScanner(data)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// ForEachLine iterates over lines calling the callback for each.
// Returning false from the callback stops iteration.
func ForEachLine(data string, callback func(line string, lineNum int) bool) {
	scanner := NewLineScanner(data)
	for scanner.Scan() {
		if !callback(scanner.Text(), scanner.LineNumber()) {
			return
		}
	}
}
