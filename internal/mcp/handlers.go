package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/display"
	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/indexing"
	"github.com/standardbeagle/mlint/internal/report"
	"github.com/standardbeagle/mlint/internal/rules"
	"github.com/standardbeagle/mlint/pkg/pathutil"
)

// AnalyzeParams are the arguments of the analyze tool
type AnalyzeParams struct {
	Path   string               `json:"path,omitempty"`
	Rules  []rules.RuleInstance `json:"rules,omitempty"`
	Format string               `json:"format,omitempty"`
}

// TemplatesParams are the arguments of the templates tool
type TemplatesParams struct {
	Format string `json:"format,omitempty"`
}

// decodeArgs tolerates a missing arguments object
func decodeArgs(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params AnalyzeParams
	if err := decodeArgs(req, &params); err != nil {
		return createErrorResponse("analyze", fmt.Errorf("invalid parameters: %w", err))
	}

	format := params.Format
	if format == "" {
		format = display.FormatJSON
	}
	if !display.ValidFormat(format) {
		return createErrorResponse("analyze", fmt.Errorf("unknown format %q", format))
	}

	cfg := *s.cfg
	if len(params.Rules) > 0 {
		cfg.Rules = normalizeInstances(params.Rules)
	}
	if len(cfg.Rules) == 0 {
		return createErrorResponse("analyze", errors.New("no rules configured: pass rules or add them to .mlint.kdl"))
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return createErrorResponse("analyze", err)
	}

	target, info, err := s.resolvePath(params.Path)
	if err != nil {
		return createErrorResponse("analyze", err)
	}

	collector := report.NewCollector()
	sink := report.NewAsyncSink(collector, cfg.Performance.QueueSize)
	engine := rules.NewEngine(sink, rules.WithLogger(s.logger))
	analyzer := indexing.NewAnalyzer(&cfg, engine, cfg.Rules, s.logger)

	var summary indexing.Summary
	if info.IsDir() {
		summary, err = analyzer.Run(ctx, target)
	} else {
		var r indexing.FileResult
		r, err = analyzer.AnalyzeFile(target, pathutil.ToRelative(target, s.cfg.Project.Root))
		summary.Add(r)
	}
	sink.Close()
	if err != nil {
		return createErrorResponse("analyze", err)
	}

	formatter := display.NewIssueFormatter(display.FormatterOptions{Format: format, ShowSummary: true})
	text := formatter.Format(collector.Issues(), display.Totals{
		Files:    summary.Files,
		Analyzed: summary.Analyzed,
		Skipped:  summary.Skipped,
		Issues:   summary.Issues,
		Faults:   summary.Faults,
	})

	var warnings []string
	if w := ruleWarnings(cfg.Rules); w != "" {
		warnings = append(warnings, w)
	}
	if len(summary.Errors) > 0 {
		warnings = append(warnings, mlerrors.NewMultiError(summary.Errors).Error())
	}
	return createTextResponse(text, warnings...), nil
}

func (s *Server) handleTemplates(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params TemplatesParams
	if err := decodeArgs(req, &params); err != nil {
		return createErrorResponse("templates", fmt.Errorf("invalid parameters: %w", err))
	}

	if params.Format == "" || params.Format == display.FormatJSON {
		return createJSONResponse(rules.Templates())
	}
	formatter := display.NewIssueFormatter(display.FormatterOptions{Format: params.Format})
	return createTextResponse(formatter.FormatTemplates(rules.Templates())), nil
}

// resolvePath maps a tool path onto the file system. Relative paths are
// taken from the project root.
func (s *Server) resolvePath(path string) (string, os.FileInfo, error) {
	root := s.cfg.Project.Root
	target := root
	if path != "" {
		target = path
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil {
		return "", nil, mlerrors.NewFileError("stat", target, err)
	}
	return target, info, nil
}

// normalizeInstances gives every instance a params map, since JSON callers
// may omit it
func normalizeInstances(in []rules.RuleInstance) []rules.RuleInstance {
	out := make([]rules.RuleInstance, len(in))
	for i, r := range in {
		out[i] = r
		if out[i].Params == nil {
			out[i].Params = map[string]string{}
		}
	}
	return out
}

// ruleWarnings describes instances that will not run, so the caller can
// fix them. The engine skips them silently apart from logging.
func ruleWarnings(instances []rules.RuleInstance) string {
	var lines []string
	for _, instance := range instances {
		if instance.TemplateKey == "" {
			continue
		}
		if _, err := rules.Activate(instance); err != nil {
			lines = append(lines, err.Error())
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "rules not run:\n" + strings.Join(lines, "\n")
}
