package display

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/mlint/internal/report"
	"github.com/standardbeagle/mlint/internal/rules"
)

// Output formats
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCompact = "compact"
)

// Totals summarizes a run for the footer line and the JSON envelope
type Totals struct {
	Files    int `json:"files"`
	Analyzed int `json:"analyzed"`
	Skipped  int `json:"skipped"`
	Issues   int `json:"issues"`
	Faults   int `json:"faults"`
}

// FormatterOptions controls issue formatting
type FormatterOptions struct {
	Format      string // "text", "json", "compact"
	ShowSummary bool   // Append totals (text) or include them (json)
	ShowCounts  bool   // Per-rule counts after the issues, text only
	Indent      string // Indentation string
}

// IssueFormatter renders issues for the terminal or for tools
type IssueFormatter struct {
	options FormatterOptions
}

// NewIssueFormatter creates a new issue formatter
func NewIssueFormatter(options FormatterOptions) *IssueFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	if options.Format == "" {
		options.Format = FormatText
	}
	return &IssueFormatter{options: options}
}

// ValidFormat reports whether name is a known output format
func ValidFormat(name string) bool {
	switch name {
	case FormatText, FormatJSON, FormatCompact:
		return true
	}
	return false
}

// Format renders issues, which are sorted first
func (f *IssueFormatter) Format(issues []report.Issue, totals Totals) string {
	sorted := append([]report.Issue(nil), issues...)
	report.SortIssues(sorted)

	switch f.options.Format {
	case FormatJSON:
		return f.formatJSON(sorted, totals)
	case FormatCompact:
		return f.formatCompact(sorted, totals)
	default:
		return f.formatText(sorted, totals)
	}
}

// formatText groups issues under their file
func (f *IssueFormatter) formatText(issues []report.Issue, totals Totals) string {
	var sb strings.Builder

	if len(issues) == 0 {
		sb.WriteString("No issues found\n")
	}

	width := lineWidth(issues)
	current := ""
	for i, issue := range issues {
		if issue.File != current {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(issue.File)
			sb.WriteString("\n")
			current = issue.File
		}
		fmt.Fprintf(&sb, "%s%*d  %s  %s\n", f.options.Indent, width, issue.Line, issue.RuleKey, issue.Message)
	}

	if f.options.ShowCounts && len(issues) > 0 {
		sb.WriteString("\n")
		counts := report.CountByRule(issues)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s%s: %d\n", f.options.Indent, k, counts[k])
		}
	}

	if f.options.ShowSummary {
		sb.WriteString("\n")
		sb.WriteString(summaryLine(totals))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatCompact writes one grep-friendly line per issue
func (f *IssueFormatter) formatCompact(issues []report.Issue, totals Totals) string {
	var sb strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&sb, "%s:%d: [%s] %s\n", issue.File, issue.Line, issue.RuleKey, issue.Message)
	}
	if f.options.ShowSummary {
		sb.WriteString(summaryLine(totals))
		sb.WriteString("\n")
	}
	return sb.String()
}

type jsonReport struct {
	Issues []report.Issue `json:"issues"`
	Totals *Totals        `json:"totals,omitempty"`
}

func (f *IssueFormatter) formatJSON(issues []report.Issue, totals Totals) string {
	out := jsonReport{Issues: issues}
	if out.Issues == nil {
		out.Issues = []report.Issue{}
	}
	if f.options.ShowSummary {
		out.Totals = &totals
	}
	data, err := json.MarshalIndent(out, "", f.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}

// FormatTemplates lists the available rule templates
func (f *IssueFormatter) FormatTemplates(templates []rules.TemplateInfo) string {
	if f.options.Format == FormatJSON {
		data, err := json.MarshalIndent(templates, "", f.options.Indent)
		if err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error())
		}
		return string(data) + "\n"
	}

	var sb strings.Builder
	for i, t := range templates {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s (%s)\n", t.Key, t.Name)
		fmt.Fprintf(&sb, "%s%s\n", f.options.Indent, t.Description)
		for _, p := range t.Params {
			switch {
			case p.Required:
				fmt.Fprintf(&sb, "%s%s%s (required): %s\n", f.options.Indent, f.options.Indent, p.Name, p.Description)
			default:
				fmt.Fprintf(&sb, "%s%s%s: %s [default %q]\n", f.options.Indent, f.options.Indent, p.Name, p.Description, p.Default)
			}
		}
	}
	return sb.String()
}

func summaryLine(t Totals) string {
	line := fmt.Sprintf("%d %s in %d %s", t.Issues, plural(t.Issues, "issue", "issues"), t.Analyzed, plural(t.Analyzed, "file", "files"))
	if t.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", t.Skipped)
	}
	if t.Faults > 0 {
		line += fmt.Sprintf(", %d with rule faults", t.Faults)
	}
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func lineWidth(issues []report.Issue) int {
	maxLine := 0
	for _, issue := range issues {
		maxLine = max(maxLine, issue.Line)
	}
	return len(fmt.Sprint(maxLine))
}
