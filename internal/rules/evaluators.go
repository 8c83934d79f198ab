package rules

import (
	"regexp"

	"github.com/standardbeagle/mlint/internal/core"
)

// PatternMatch reports every non-overlapping match of Pattern
type PatternMatch struct {
	Key     string
	Pattern string
	Message string
	re      *regexp.Regexp
}

func (p *PatternMatch) RuleKey() string     { return p.Key }
func (p *PatternMatch) TemplateKey() string { return PatternMatchKey }
func (p *PatternMatch) sealed()             {}

// Evaluate matches anywhere in the content, comments and strings included
func (p *PatternMatch) Evaluate(ctx *core.AnalysisContext) ([]Finding, error) {
	locs := p.re.FindAllStringIndex(ctx.Content(), -1)
	if len(locs) == 0 {
		return nil, nil
	}
	findings := make([]Finding, 0, len(locs))
	for _, loc := range locs {
		findings = append(findings, Finding{Offset: loc[0], Message: p.Message})
	}
	return findings, nil
}

// FunctionNamePattern reports function definitions whose name matches
// NamePattern. The pattern is an unanchored fragment tested against the
// whole defined name, so "^Legacy" flags LegacyInit but not NotLegacy.
type FunctionNamePattern struct {
	Key         string
	NamePattern string
	Message     string
	re          *regexp.Regexp
}

func (f *FunctionNamePattern) RuleKey() string     { return f.Key }
func (f *FunctionNamePattern) TemplateKey() string { return FunctionNamePatternKey }
func (f *FunctionNamePattern) sealed()             {}

// Evaluate skips definitions that start inside a block comment or, by the
// single-line heuristic, inside a string literal. Skipped sites do not hide
// definitions nested in their arguments.
func (f *FunctionNamePattern) Evaluate(ctx *core.AnalysisContext) ([]Finding, error) {
	content := ctx.Content()
	comments := ctx.CommentRanges()

	sites := FindDefinitionSites(content, func(site DefinitionSite) bool {
		return f.re.MatchString(site.Name) &&
			!core.IsInsideComment(site.Offset, comments) &&
			!core.IsInsideStringLiteral(content, site.Offset)
	})
	if len(sites) == 0 {
		return nil, nil
	}
	findings := make([]Finding, 0, len(sites))
	for _, site := range sites {
		findings = append(findings, Finding{Offset: site.Offset, Message: f.Message + ": " + site.Name})
	}
	return findings, nil
}

// ForbiddenAPI reports whole-word uses of APIName
type ForbiddenAPI struct {
	Key     string
	APIName string
	Reason  string
	re      *regexp.Regexp
}

func (a *ForbiddenAPI) RuleKey() string     { return a.Key }
func (a *ForbiddenAPI) TemplateKey() string { return ForbiddenAPIKey }
func (a *ForbiddenAPI) sealed()             {}

// Evaluate matches anywhere in the content, comments and strings included
func (a *ForbiddenAPI) Evaluate(ctx *core.AnalysisContext) ([]Finding, error) {
	locs := a.re.FindAllStringIndex(ctx.Content(), -1)
	if len(locs) == 0 {
		return nil, nil
	}
	message := "Forbidden API '" + a.APIName + "': " + a.Reason
	findings := make([]Finding, 0, len(locs))
	for _, loc := range locs {
		findings = append(findings, Finding{Offset: loc[0], Message: message})
	}
	return findings, nil
}
