package regex_analyzer

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
	}{
		{name: "plain literal", pattern: "Foo", expected: "Foo"},
		{name: "possessive star", pattern: `\s*+\[`, expected: `\s*\[`},
		{name: "possessive plus", pattern: `a++b`, expected: `a+b`},
		{name: "possessive optional", pattern: `x?+`, expected: `x?`},
		{name: "possessive escaped class", pattern: `\d++`, expected: `\d+`},
		{name: "possessive counted", pattern: `a{2,3}+`, expected: `a{2,3}`},
		{name: "lazy kept", pattern: `a+?b`, expected: `a+?b`},
		{name: "atomic group", pattern: `(?>ab)c`, expected: `(?:ab)c`},
		{name: "flags untouched", pattern: `(?i)foo`, expected: `(?i)foo`},
		{name: "named group untouched", pattern: `(?P<name>\w+)`, expected: `(?P<name>\w+)`},
		{name: "class members untouched", pattern: `[+*]+`, expected: `[+*]+`},
		{name: "leading bracket in class", pattern: `[^]a]*+`, expected: `[^]a]*`},
		{name: "quoted span untouched", pattern: `\Q*+\E`, expected: `\Q*+\E`},
		{name: "possessive definition shape", pattern: `(foo)\s*+\[[^\]]*+\]\s*+:?=`, expected: `(foo)\s*\[[^\]]*\]\s*:?=`},
		{name: "api pattern", pattern: `\bAppendTo\b(?:\s*+\[)?+`, expected: `\bAppendTo\b(?:\s*\[)?`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			_, err = regexp.Compile(got)
			assert.NoError(t, err, "normalized pattern should compile")
		})
	}
}

func TestNormalize_Unsupported(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		construct string
	}{
		{name: "backreference", pattern: `(\w+)\s*=\s*\1`, construct: "backreference"},
		{name: "lookahead", pattern: `foo(?=bar)`, construct: "lookahead"},
		{name: "negative lookahead", pattern: `ToExpression\[(?!")`, construct: "lookahead"},
		{name: "lookbehind", pattern: `(?<!x)y`, construct: "lookbehind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.pattern)
			require.Error(t, err)

			var dialectErr *DialectError
			require.True(t, errors.As(err, &dialectErr))
			assert.Equal(t, tt.construct, dialectErr.Construct)
			assert.Equal(t, tt.pattern, dialectErr.Pattern)
		})
	}
}

func TestNormalize_EscapedDigitInClass(t *testing.T) {
	// \1 inside a class is an octal-looking escape, not a backreference
	_, err := Normalize(`[\1]`)
	assert.NoError(t, err)
}
