package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mlint/internal/config"
)

const kdlTemplate = `// mlint configuration

index {
    max_file_size "10MB"           // Skip files larger than this
    max_lines 25000                // Skip files with more lines than this
    extensions ".m" ".wl" ".wls"
    respect_gitignore true
}

performance {
    workers 0                      // 0 = CPU count - 1
}

// Replaces the default exclusions
exclude {
    "**/.*/**"
    "**/build/**"
    "**/*.nb"
    "**/*.mx"
}

rule "no-appendto" template="custom-forbidden-api" {
    apiName "AppendTo"
    reason "AppendTo in a loop is quadratic; use Reap/Sow or a Table"
}

rule "no-debug-print" template="custom-pattern-match" {
    pattern "Print\\[\\s*\"DEBUG"
    message "Debug print left in source"
}

rule "no-legacy-names" template="custom-function-name-pattern" {
    functionNamePattern "^old[A-Z]"
    message "Legacy function name"
}
`

const tomlTemplate = `# mlint configuration

[index]
max_file_size = "10MB"
max_lines = 25000
extensions = [".m", ".wl", ".wls"]
respect_gitignore = true

[performance]
workers = 0

[[rule]]
key = "no-appendto"
template = "custom-forbidden-api"
params = { apiName = "AppendTo", reason = "AppendTo in a loop is quadratic; use Reap/Sow or a Table" }

[[rule]]
key = "no-debug-print"
template = "custom-pattern-match"
params = { pattern = 'Print\[\s*"DEBUG', message = "Debug print left in source" }
`

func configInitCommand(c *cli.Context) error {
	format := c.String("format")

	var content, name string
	switch format {
	case "kdl":
		content, name = kdlTemplate, ".mlint.kdl"
	case "toml":
		content, name = tomlTemplate, ".mlint.toml"
	default:
		return cli.Exit(fmt.Sprintf("unsupported format: %s", format), exitError)
	}

	output := c.String("output")
	if output == "" {
		output = filepath.Join(c.String("root"), name)
	}

	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return cli.Exit(fmt.Sprintf("configuration file %s already exists (use --force to overwrite)", output), exitError)
		}
	}

	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Configuration file created: %s\n", output)
	fmt.Fprintf(c.App.Writer, "Run 'mlint templates' for the rule templates and their parameters.\n")
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	fmt.Fprint(c.App.Writer, configToKDL(cfg))
	return nil
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		fmt.Fprintf(c.App.Writer, "Configuration validation failed: %v\n", err)
		return cli.Exit("", exitError)
	}
	if err := loadRules(c, cfg); err != nil {
		fmt.Fprintf(c.App.Writer, "Configuration validation failed: %v\n", err)
		return cli.Exit("", exitError)
	}

	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}
	fmt.Fprintf(c.App.Writer, "Config source: %s\n", source)
	fmt.Fprintf(c.App.Writer, "Project root:  %s\n", cfg.Project.Root)
	fmt.Fprintf(c.App.Writer, "Rules:         %d\n", len(cfg.Rules))

	if inactive := warnInactiveRules(c.App.Writer, cfg.Rules); inactive > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d rules cannot run", inactive, len(cfg.Rules)), exitError)
	}
	fmt.Fprintf(c.App.Writer, "Configuration is valid\n")
	return nil
}

// configToKDL renders the effective configuration in the .mlint.kdl syntax
func configToKDL(cfg *config.Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "version %d\n\n", cfg.Version)
	fmt.Fprintf(&sb, "project {\n    root %s\n    name %s\n}\n\n", kdlString(cfg.Project.Root), kdlString(cfg.Project.Name))

	sb.WriteString("index {\n")
	fmt.Fprintf(&sb, "    max_file_size %d\n", cfg.Index.MaxFileSize)
	fmt.Fprintf(&sb, "    max_lines %d\n", cfg.Index.MaxLines)
	sb.WriteString("    extensions")
	for _, ext := range cfg.Index.Extensions {
		sb.WriteString(" " + kdlString(ext))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "    follow_symlinks %t\n", cfg.Index.FollowSymlinks)
	fmt.Fprintf(&sb, "    respect_gitignore %t\n", cfg.Index.RespectGitignore)
	fmt.Fprintf(&sb, "    watch_debounce_ms %d\n", cfg.Index.WatchDebounceMs)
	sb.WriteString("}\n\n")

	sb.WriteString("performance {\n")
	fmt.Fprintf(&sb, "    workers %d\n", cfg.Performance.Workers)
	fmt.Fprintf(&sb, "    parse_limit %d\n", cfg.Performance.ParseLimit)
	fmt.Fprintf(&sb, "    queue_size %d\n", cfg.Performance.QueueSize)
	sb.WriteString("}\n")

	sb.WriteString(formatKDLStringArray("include", cfg.Include))
	sb.WriteString(formatKDLStringArray("exclude", cfg.Exclude))

	for _, r := range cfg.Rules {
		fmt.Fprintf(&sb, "\nrule %s", kdlString(r.Key))
		if r.TemplateKey != "" {
			fmt.Fprintf(&sb, " template=%s", kdlString(r.TemplateKey))
		}
		if len(r.Params) == 0 {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(" {\n")
		names := make([]string, 0, len(r.Params))
		for name := range r.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "    %s %s\n", name, kdlString(r.Params[name]))
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

func formatKDLStringArray(section string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	result := "\n" + section + " {\n"
	for _, item := range items {
		result += "    " + kdlString(item) + "\n"
	}
	result += "}\n"
	return result
}

// kdlString quotes s as a KDL string
func kdlString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
