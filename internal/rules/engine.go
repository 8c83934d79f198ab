package rules

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/mlint/internal/core"
	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/regex_analyzer"
	"github.com/standardbeagle/mlint/internal/report"
)

// Engine runs template rule instances against files and reports what they
// find to a sink. One Engine may serve many goroutines; each Run builds
// and releases its own analysis context.
//
// Activations are kept for the lifetime of the Engine, one entry per
// distinct rule configuration it has seen, and a rule that fails to
// activate is logged once per Engine. Hosts build one Engine per rule set:
// a CLI run or watch session keeps one, and every MCP analyze call builds
// its own, so the cache is bounded by the rules of a single request.
type Engine struct {
	sink        report.Sink
	logger      *slog.Logger
	patterns    *regex_analyzer.PatternCache
	contextOpts []core.ContextOption

	// activation results keyed by instance fingerprint
	activations sync.Map // map[uint64]*activation
}

type activation struct {
	template Template
	err      error
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the engine logger. Context construction logs through it too.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithPatternCache replaces the process-wide pattern cache
func WithPatternCache(cache *regex_analyzer.PatternCache) EngineOption {
	return func(e *Engine) { e.patterns = cache }
}

// WithContextOptions passes options to every core.NewAnalysisContext call
func WithContextOptions(opts ...core.ContextOption) EngineOption {
	return func(e *Engine) { e.contextOpts = append(e.contextOpts, opts...) }
}

// NewEngine creates an engine reporting to sink
func NewEngine(sink report.Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		sink:     sink,
		logger:   slog.Default(),
		patterns: regex_analyzer.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = report.Discard
	}
	return e
}

// Result summarizes one Run. Errors holds the per-instance problems; none
// of them stopped the run.
type Result struct {
	File      string
	Issues    int
	Evaluated int
	Skipped   int
	Hash      uint64
	Errors    []error
}

// HasFaults reports whether any instance failed during evaluation, as
// opposed to being misconfigured
func (r Result) HasFaults() bool {
	for _, err := range r.Errors {
		var fault *mlerrors.EvaluatorFault
		if errors.As(err, &fault) {
			return true
		}
	}
	return false
}

// Run evaluates instances against one file in order. With no instances it
// returns without building a context. Instances without a template key are
// skipped. A failing instance is logged and recorded in the result; the
// others still run. The context is released on every exit path.
func (e *Engine) Run(file, content string, instances []RuleInstance) Result {
	result := Result{File: file}
	if len(instances) == 0 {
		return result
	}

	opts := append([]core.ContextOption{core.WithLogger(e.logger)}, e.contextOpts...)
	ctx := core.NewAnalysisContext(content, opts...)
	defer ctx.Release()
	result.Hash = ctx.FastHash()

	for _, instance := range instances {
		if instance.TemplateKey == "" {
			result.Skipped++
			continue
		}

		reported, err := e.runInstance(file, ctx, instance)
		result.Issues += reported
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Evaluated++
	}
	return result
}

func (e *Engine) runInstance(file string, ctx *core.AnalysisContext, instance RuleInstance) (reported int, err error) {
	template, err := e.activate(instance)
	if err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = mlerrors.NewEvaluatorPanic(instance.Key, r)
			e.logger.Error("rule evaluation failed", "rule", instance.Key, "file", file, "error", err)
		}
	}()

	findings, err := template.Evaluate(ctx)
	if err != nil {
		fault := mlerrors.NewEvaluatorFault(instance.Key, err)
		e.logger.Error("rule evaluation failed", "rule", instance.Key, "file", file, "error", err)
		return 0, fault
	}

	content := ctx.Content()
	for _, f := range findings {
		e.sink.Report(file, core.LocateLine(ctx, content, f.Offset), instance.Key, f.Message)
		reported++
	}
	return reported, nil
}

// activate resolves instance once per distinct configuration. The outcome,
// failures included, is cached so a bad rule is logged once rather than
// once per file.
func (e *Engine) activate(instance RuleInstance) (Template, error) {
	key := fingerprint(instance)
	if v, ok := e.activations.Load(key); ok {
		a := v.(*activation)
		return a.template, a.err
	}

	template, err := activateWith(e.patterns, instance)
	actual, loaded := e.activations.LoadOrStore(key, &activation{template: template, err: err})
	if !loaded && err != nil {
		e.logActivationError(instance, err)
	}
	a := actual.(*activation)
	return a.template, a.err
}

func (e *Engine) logActivationError(instance RuleInstance, err error) {
	var compileErr *mlerrors.PatternCompileError
	if errors.As(err, &compileErr) {
		e.logger.Error("rule pattern does not compile, rule disabled",
			"rule", instance.Key, "pattern", compileErr.Pattern, "error", compileErr.Underlying)
		return
	}
	e.logger.Warn("rule misconfigured, rule disabled", "rule", instance.Key, "template", instance.TemplateKey, "error", err)
}

// fingerprint hashes everything activation depends on
func fingerprint(instance RuleInstance) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(instance.Key)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(instance.TemplateKey)

	names := make([]string, 0, len(instance.Params))
	for name := range instance.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("\x01")
		_, _ = d.WriteString(instance.Params[name])
	}
	return d.Sum64()
}
