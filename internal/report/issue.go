package report

import (
	"sort"
	"sync"
)

// Issue is one located finding of one rule in one file
type Issue struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	RuleKey string `json:"rule"`
	Message string `json:"message"`
}

// Sink receives issues as the engine finds them. Implementations used by
// concurrent analyzers must be safe for concurrent use.
type Sink interface {
	Report(file string, line int, ruleKey, message string)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(file string, line int, ruleKey, message string)

// Report calls f
func (f SinkFunc) Report(file string, line int, ruleKey, message string) {
	f(file, line, ruleKey, message)
}

// Discard drops every issue
var Discard Sink = SinkFunc(func(string, int, string, string) {})

// Collector keeps every reported issue in memory
type Collector struct {
	mu     sync.Mutex
	issues []Issue
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Report implements Sink
func (c *Collector) Report(file string, line int, ruleKey, message string) {
	c.mu.Lock()
	c.issues = append(c.issues, Issue{File: file, Line: line, RuleKey: ruleKey, Message: message})
	c.mu.Unlock()
}

// Len returns the number of issues collected so far
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}

// Issues returns a copy of the collected issues ordered by file, line and
// rule key. Issues of one rule on one line keep their report order.
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	c.mu.Unlock()

	SortIssues(out)
	return out
}

// Reset drops every collected issue
func (c *Collector) Reset() {
	c.mu.Lock()
	c.issues = nil
	c.mu.Unlock()
}

// SortIssues orders issues by file, line, then rule key. The sort is
// stable.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleKey < b.RuleKey
	})
}

// CountByRule tallies issues per rule key
func CountByRule(issues []Issue) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.RuleKey]++
	}
	return counts
}
