package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/mlint/internal/core"
	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/regex_analyzer"
)

// Template keys accepted in RuleInstance.TemplateKey
const (
	PatternMatchKey        = "custom-pattern-match"
	FunctionNamePatternKey = "custom-function-name-pattern"
	ForbiddenAPIKey        = "custom-forbidden-api"
)

// Parameter names
const (
	ParamPattern             = "pattern"
	ParamMessage             = "message"
	ParamFunctionNamePattern = "functionNamePattern"
	ParamAPIName             = "apiName"
	ParamReason              = "reason"
)

// Default texts applied when the optional parameter is blank
const (
	DefaultPatternMessage      = "Code matches forbidden pattern"
	DefaultFunctionNameMessage = "Function name matches forbidden pattern"
	DefaultForbiddenAPIReason  = "This API should not be used"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity for a
// "did you mean" hint on an unknown template key
const suggestionThreshold = 0.7

// RuleInstance is a configured rule. An empty TemplateKey marks a rule that
// is not template based; the engine skips it.
type RuleInstance struct {
	Key         string            `json:"key" toml:"key"`
	TemplateKey string            `json:"template,omitempty" toml:"template"`
	Params      map[string]string `json:"params,omitempty" toml:"params"`
}

// Param returns the named parameter, "" when absent
func (r RuleInstance) Param(name string) string {
	return r.Params[name]
}

// Finding is an evaluator hit before it is mapped to a line
type Finding struct {
	Offset  int
	Message string
}

// Template is an activated rule: a template key resolved to one of
// PatternMatch, FunctionNamePattern or ForbiddenAPI with its parameters
// validated and its pattern compiled. The set is closed.
type Template interface {
	// RuleKey is the key of the instance the template was activated for
	RuleKey() string
	// TemplateKey identifies the variant
	TemplateKey() string
	// Evaluate scans one file. It must not retain ctx.
	Evaluate(ctx *core.AnalysisContext) ([]Finding, error)

	sealed()
}

// Activate resolves instance into its Template. Errors are
// *ConfigurationError (required parameter blank), *PatternCompileError or
// *UnknownTemplateError; none of them is a fault of any analyzed file.
func Activate(instance RuleInstance) (Template, error) {
	return activateWith(regex_analyzer.Default(), instance)
}

func activateWith(cache *regex_analyzer.PatternCache, instance RuleInstance) (Template, error) {
	switch instance.TemplateKey {
	case PatternMatchKey:
		pattern := instance.Param(ParamPattern)
		if isBlank(pattern) {
			return nil, mlerrors.NewConfigurationError(instance.Key, ParamPattern)
		}
		re, err := cache.Compile(pattern)
		if err != nil {
			return nil, mlerrors.NewPatternCompileError(instance.Key, pattern, err)
		}
		return &PatternMatch{
			Key:     instance.Key,
			Pattern: pattern,
			Message: withDefault(instance.Param(ParamMessage), DefaultPatternMessage),
			re:      re,
		}, nil

	case FunctionNamePatternKey:
		fragment := instance.Param(ParamFunctionNamePattern)
		if isBlank(fragment) {
			return nil, mlerrors.NewConfigurationError(instance.Key, ParamFunctionNamePattern)
		}
		re, err := cache.Compile(fragment)
		if err != nil {
			return nil, mlerrors.NewPatternCompileError(instance.Key, fragment, err)
		}
		return &FunctionNamePattern{
			Key:         instance.Key,
			NamePattern: fragment,
			Message:     withDefault(instance.Param(ParamMessage), DefaultFunctionNameMessage),
			re:          re,
		}, nil

	case ForbiddenAPIKey:
		apiName := instance.Param(ParamAPIName)
		if isBlank(apiName) {
			return nil, mlerrors.NewConfigurationError(instance.Key, ParamAPIName)
		}
		source := forbiddenAPISource(apiName)
		re, err := cache.Compile(source)
		if err != nil {
			return nil, mlerrors.NewPatternCompileError(instance.Key, source, err)
		}
		return &ForbiddenAPI{
			Key:     instance.Key,
			APIName: apiName,
			Reason:  withDefault(instance.Param(ParamReason), DefaultForbiddenAPIReason),
			re:      re,
		}, nil
	}

	return nil, mlerrors.NewUnknownTemplateError(instance.Key, instance.TemplateKey, suggestTemplate(instance.TemplateKey))
}

// forbiddenAPISource builds the whole-word matcher for a literal API name.
// The name is quoted so configuration cannot inject pattern syntax.
func forbiddenAPISource(apiName string) string {
	return `\b` + regexp.QuoteMeta(apiName) + `\b(?:\s*\[)?`
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func withDefault(value, fallback string) string {
	if isBlank(value) {
		return fallback
	}
	return value
}

// suggestTemplate returns the closest known template key, or "" when none
// is similar enough
func suggestTemplate(key string) string {
	if key == "" {
		return ""
	}
	best := ""
	var bestScore float32
	for _, known := range TemplateKeys() {
		score, err := edlib.StringsSimilarity(strings.ToLower(key), known, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = known, score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}

// ParamInfo describes one template parameter
type ParamInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// TemplateInfo describes a rule template for listings
type TemplateInfo struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`
}

var catalog = []TemplateInfo{
	{
		Key:         PatternMatchKey,
		Name:        "Custom pattern match",
		Description: "Reports every match of a regular expression in the file content.",
		Params: []ParamInfo{
			{Name: ParamPattern, Description: "Regular expression to search for", Required: true},
			{Name: ParamMessage, Description: "Issue message", Default: DefaultPatternMessage},
		},
	},
	{
		Key:         FunctionNamePatternKey,
		Name:        "Custom function name pattern",
		Description: "Reports function definitions f[...] := or f[...] = whose name matches a regular expression.",
		Params: []ParamInfo{
			{Name: ParamFunctionNamePattern, Description: "Regular expression matched against the defined function name", Required: true},
			{Name: ParamMessage, Description: "Issue message, followed by the function name", Default: DefaultFunctionNameMessage},
		},
	},
	{
		Key:         ForbiddenAPIKey,
		Name:        "Custom forbidden API",
		Description: "Reports whole-word uses of a function or symbol that should not be used.",
		Params: []ParamInfo{
			{Name: ParamAPIName, Description: "Exact function or symbol name, matched literally", Required: true},
			{Name: ParamReason, Description: "Why the API is forbidden", Default: DefaultForbiddenAPIReason},
		},
	},
}

// Templates lists the available templates
func Templates() []TemplateInfo {
	out := make([]TemplateInfo, len(catalog))
	copy(out, catalog)
	return out
}

// TemplateKeys lists the template keys in sorted order
func TemplateKeys() []string {
	keys := make([]string, 0, len(catalog))
	for _, t := range catalog {
		keys = append(keys, t.Key)
	}
	sort.Strings(keys)
	return keys
}
