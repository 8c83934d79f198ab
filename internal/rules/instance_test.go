package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstance(t *testing.T) {
	instance, err := ParseInstance(" no-append = custom-forbidden-api ")
	require.NoError(t, err)
	assert.Equal(t, "no-append", instance.Key)
	assert.Equal(t, ForbiddenAPIKey, instance.TemplateKey)
	assert.NotNil(t, instance.Params)

	for _, bad := range []string{"", "key", "=tmpl", "key="} {
		_, err := ParseInstance(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseParam(t *testing.T) {
	key, param, value, err := ParseParam(`team.rules.pattern=a{2,3}=b`)
	require.NoError(t, err)
	assert.Equal(t, "team.rules", key)
	assert.Equal(t, "pattern", param)
	assert.Equal(t, "a{2,3}=b", value)

	for _, bad := range []string{"noval", ".pattern=x", "key.=x", "nodot=x"} {
		_, _, _, err := ParseParam(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildInstances(t *testing.T) {
	instances, err := BuildInstances(
		[]string{"api=custom-forbidden-api", "names=custom-function-name-pattern"},
		[]string{"api.apiName=AppendTo", "api.reason=slow", "names.functionNamePattern=^Legacy"},
	)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, map[string]string{"apiName": "AppendTo", "reason": "slow"}, instances[0].Params)
	assert.Equal(t, "^Legacy", instances[1].Param(ParamFunctionNamePattern))

	_, err = BuildInstances([]string{"a=x", "a=y"}, nil)
	assert.Error(t, err)

	_, err = BuildInstances([]string{"a=x"}, []string{"b.pattern=1"})
	assert.Error(t, err)
}
