package core

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cespare/xxhash/v2"

	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/parser"
)

// MaxParseSize is the content length from which parsing is skipped.
// Larger files still get every pattern based rule.
const MaxParseSize = 2_000_000

// ParseFunc builds the node sequence for a file
type ParseFunc func(content string) ([]parser.Node, error)

// AnalysisContext is the per-file snapshot shared by every rule evaluated
// against one file. It is built once, read by all evaluators of that file
// on a single goroutine and released when the file is done. Nothing in it
// is mutated after construction; slices returned by accessors are shared
// and must not be modified.
type AnalysisContext struct {
	content       string
	lineOffsets   []int
	lines         []string
	commentRanges []Range
	ast           []parser.Node
	parseErr      *mlerrors.ParseFailure
	hash          uint64
	released      bool
}

type contextOptions struct {
	parseLimit int
	parse      ParseFunc
	logger     *slog.Logger
}

// ContextOption configures NewAnalysisContext
type ContextOption func(*contextOptions)

// WithParseLimit overrides MaxParseSize. A limit <= 0 disables parsing.
func WithParseLimit(n int) ContextOption {
	return func(o *contextOptions) { o.parseLimit = n }
}

// WithParser replaces parser.Parse
func WithParser(fn ParseFunc) ContextOption {
	return func(o *contextOptions) { o.parse = fn }
}

// WithLogger sets the logger used to report parse degradation
func WithLogger(logger *slog.Logger) ContextOption {
	return func(o *contextOptions) { o.logger = logger }
}

// NewAnalysisContext builds the context for content. It never fails: a
// parse error or oversized input leaves the AST absent and is logged at
// debug level.
func NewAnalysisContext(content string, opts ...ContextOption) *AnalysisContext {
	o := contextOptions{
		parseLimit: MaxParseSize,
		parse:      parser.Parse,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := &AnalysisContext{
		content:       content,
		lineOffsets:   computeLineOffsets(content),
		lines:         SplitLines(content),
		commentRanges: scanCommentRanges(content),
		hash:          xxhash.Sum64String(content),
	}
	ctx.ast, ctx.parseErr = tryParse(content, o)
	if ctx.parseErr != nil {
		o.logger.Debug("parse skipped, AST-based checks disabled",
			"size", len(content), "limit", o.parseLimit, "error", ctx.parseErr.Underlying)
	}
	return ctx
}

func tryParse(content string, o contextOptions) (nodes []parser.Node, failure *mlerrors.ParseFailure) {
	if o.parse == nil {
		return nil, nil
	}
	if len(content) >= o.parseLimit {
		return nil, mlerrors.NewParseFailure(len(content), o.parseLimit, mlerrors.ErrInputTooLarge)
	}

	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			failure = mlerrors.NewParseFailure(len(content), o.parseLimit, fmt.Errorf("parser panic: %v", r))
		}
	}()

	nodes, err := o.parse(content)
	if err != nil {
		return nil, mlerrors.NewParseFailure(len(content), o.parseLimit, err)
	}
	return nodes, nil
}

// computeLineOffsets records the start of every line in two passes: the
// first counts newlines to size the slice exactly, the second fills it.
// Content ending in a newline has an empty last line starting at len(content).
func computeLineOffsets(content string) []int {
	offsets := make([]int, 1, strings.Count(content, "\n")+1)
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// Release drops every cached field. Safe to call more than once.
func (c *AnalysisContext) Release() {
	if c == nil {
		return
	}
	c.content = ""
	c.lineOffsets = nil
	c.lines = nil
	c.commentRanges = nil
	c.ast = nil
	c.parseErr = nil
	c.released = true
}

// Released reports whether Release has been called
func (c *AnalysisContext) Released() bool {
	return c == nil || c.released
}

// Content returns the file content
func (c *AnalysisContext) Content() string { return c.content }

// LineOffsets returns the start offset of every line; offsets[0] is 0
func (c *AnalysisContext) LineOffsets() []int { return c.lineOffsets }

// Lines returns the content split on "\n", trailing empty line kept
func (c *AnalysisContext) Lines() []string { return c.lines }

// CommentRanges returns the block comment spans ordered by start
func (c *AnalysisContext) CommentRanges() []Range { return c.commentRanges }

// AST returns the parsed nodes, or nil when parsing was skipped or failed
func (c *AnalysisContext) AST() []parser.Node { return c.ast }

// HasAST reports whether parsed nodes are available
func (c *AnalysisContext) HasAST() bool { return c.ast != nil }

// ParseFailure explains a missing AST, nil when parsing succeeded
func (c *AnalysisContext) ParseFailure() *mlerrors.ParseFailure { return c.parseErr }

// FastHash is the xxhash of the content the context was built from.
// It survives Release so hosts can record it after analysis.
func (c *AnalysisContext) FastHash() uint64 { return c.hash }

// FunctionDefs returns the parsed top-level function definitions. A missing
// AST yields nil, which callers treat as "no findings". Definitions nested
// in calls are not included; the function name template scans the text
// instead and does not read this.
func (c *AnalysisContext) FunctionDefs() []parser.Node {
	if c.ast == nil {
		return nil
	}
	return parser.FunctionDefs(c.ast)
}

// LineAt maps a byte offset to its 1-based line by binary search for the
// last line start <= offset. Offsets past the end map to the last line and
// negative offsets to line 1. A released context falls back to line 1;
// use LocateLine when the content is still at hand.
func (c *AnalysisContext) LineAt(offset int) int {
	return searchLine(c.lineOffsets, offset)
}
