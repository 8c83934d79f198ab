package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the mlint analysis core
type ErrorType string

const (
	// Rule evaluation errors
	ErrorTypeConfiguration   ErrorType = "configuration"
	ErrorTypePatternCompile  ErrorType = "pattern_compile"
	ErrorTypeEvaluatorFault  ErrorType = "evaluator_fault"
	ErrorTypeUnknownTemplate ErrorType = "unknown_template"

	// Context construction errors
	ErrorTypeParse ErrorType = "parse"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration file errors
	ErrorTypeConfig ErrorType = "config"
)

var (
	// ErrBlankParam marks a required rule parameter that is missing or blank
	ErrBlankParam = errors.New("required parameter is missing or blank")

	// ErrInputTooLarge marks content above the parse ceiling
	ErrInputTooLarge = errors.New("content exceeds parse size limit")
)

// ConfigurationError reports a rule instance whose required parameter is
// missing or blank. It is a configuration-quality signal, never a fault
// of the file under analysis.
type ConfigurationError struct {
	Type      ErrorType
	RuleKey   string
	Param     string
	Timestamp time.Time
}

// NewConfigurationError creates a configuration error for a rule parameter
func NewConfigurationError(ruleKey, param string) *ConfigurationError {
	return &ConfigurationError{
		Type:      ErrorTypeConfiguration,
		RuleKey:   ruleKey,
		Param:     param,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rule %s: parameter %q: %v", e.RuleKey, e.Param, ErrBlankParam)
}

// Unwrap returns ErrBlankParam so callers can use errors.Is
func (e *ConfigurationError) Unwrap() error {
	return ErrBlankParam
}

// PatternCompileError reports a rule pattern that failed to compile
type PatternCompileError struct {
	Type       ErrorType
	RuleKey    string
	Pattern    string
	Underlying error
	Timestamp  time.Time
}

// NewPatternCompileError creates a new pattern compile error
func NewPatternCompileError(ruleKey, pattern string, err error) *PatternCompileError {
	return &PatternCompileError{
		Type:       ErrorTypePatternCompile,
		RuleKey:    ruleKey,
		Pattern:    pattern,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("rule %s: invalid pattern %q: %v", e.RuleKey, e.Pattern, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PatternCompileError) Unwrap() error {
	return e.Underlying
}

// ParseFailure records why a context carries no parsed structure.
// It degrades analysis and is never returned to rule callers.
type ParseFailure struct {
	Type       ErrorType
	Size       int
	Limit      int
	Underlying error
	Timestamp  time.Time
}

// NewParseFailure creates a new parse failure
func NewParseFailure(size, limit int, err error) *ParseFailure {
	return &ParseFailure{
		Type:       ErrorTypeParse,
		Size:       size,
		Limit:      limit,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse skipped for %d bytes (limit %d): %v", e.Size, e.Limit, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseFailure) Unwrap() error {
	return e.Underlying
}

// EvaluatorFault represents an unexpected failure while evaluating one
// rule instance, including recovered panics.
type EvaluatorFault struct {
	Type       ErrorType
	RuleKey    string
	Recovered  interface{}
	Underlying error
	Timestamp  time.Time
}

// NewEvaluatorFault creates a fault from an error returned by an evaluator
func NewEvaluatorFault(ruleKey string, err error) *EvaluatorFault {
	return &EvaluatorFault{
		Type:       ErrorTypeEvaluatorFault,
		RuleKey:    ruleKey,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewEvaluatorPanic creates a fault from a recovered panic value
func NewEvaluatorPanic(ruleKey string, recovered interface{}) *EvaluatorFault {
	var underlying error
	if err, ok := recovered.(error); ok {
		underlying = err
	} else {
		underlying = fmt.Errorf("panic: %v", recovered)
	}
	return &EvaluatorFault{
		Type:       ErrorTypeEvaluatorFault,
		RuleKey:    ruleKey,
		Recovered:  recovered,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *EvaluatorFault) Error() string {
	return fmt.Sprintf("rule %s evaluation failed: %v", e.RuleKey, e.Underlying)
}

// Unwrap returns the underlying error
func (e *EvaluatorFault) Unwrap() error {
	return e.Underlying
}

// UnknownTemplateError reports a rule instance pointing at a template
// that does not exist
type UnknownTemplateError struct {
	Type        ErrorType
	RuleKey     string
	TemplateKey string
	Suggestion  string
	Timestamp   time.Time
}

// NewUnknownTemplateError creates a new unknown template error
func NewUnknownTemplateError(ruleKey, templateKey, suggestion string) *UnknownTemplateError {
	return &UnknownTemplateError{
		Type:        ErrorTypeUnknownTemplate,
		RuleKey:     ruleKey,
		TemplateKey: templateKey,
		Suggestion:  suggestion,
		Timestamp:   time.Now(),
	}
}

// Error implements the error interface
func (e *UnknownTemplateError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("rule %s: unknown template %q (did you mean %q?)", e.RuleKey, e.TemplateKey, e.Suggestion)
	}
	return fmt.Sprintf("rule %s: unknown template %q", e.RuleKey, e.TemplateKey)
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if isPermissionError(err) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewFileTooLargeError creates a file error for content over a size or line limit
func NewFileTooLargeError(path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeFileTooLarge,
		Path:       path,
		Operation:  "load",
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errStr == "permission denied" || errStr == "access denied"
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration file error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}
