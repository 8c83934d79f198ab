package rules

import (
	"fmt"
	"strings"
)

// ParseInstance parses the command line form "key=template" into a rule
// instance with no parameters.
func ParseInstance(spec string) (RuleInstance, error) {
	key, template, ok := strings.Cut(spec, "=")
	key = strings.TrimSpace(key)
	template = strings.TrimSpace(template)
	if !ok || key == "" || template == "" {
		return RuleInstance{}, fmt.Errorf("invalid rule %q: want key=template", spec)
	}
	return RuleInstance{Key: key, TemplateKey: template, Params: map[string]string{}}, nil
}

// ParseParam parses "key.param=value". The rule key may itself contain
// dots; the parameter name is what follows the last one. The value is
// kept verbatim, so patterns may contain "=", "," or spaces.
func ParseParam(spec string) (ruleKey, param, value string, err error) {
	name, value, ok := strings.Cut(spec, "=")
	dot := strings.LastIndexByte(name, '.')
	if !ok || dot <= 0 || dot == len(name)-1 {
		return "", "", "", fmt.Errorf("invalid rule parameter %q: want key.param=value", spec)
	}
	return name[:dot], name[dot+1:], value, nil
}

// BuildInstances combines "key=template" and "key.param=value" flags.
// Parameters for an unknown rule key are an error.
func BuildInstances(ruleSpecs, paramSpecs []string) ([]RuleInstance, error) {
	instances := make([]RuleInstance, 0, len(ruleSpecs))
	index := make(map[string]int, len(ruleSpecs))
	for _, spec := range ruleSpecs {
		instance, err := ParseInstance(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := index[instance.Key]; dup {
			return nil, fmt.Errorf("duplicate rule key %q", instance.Key)
		}
		index[instance.Key] = len(instances)
		instances = append(instances, instance)
	}

	for _, spec := range paramSpecs {
		key, param, value, err := ParseParam(spec)
		if err != nil {
			return nil, err
		}
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("parameter %q for undefined rule %q", param, key)
		}
		instances[i].Params[param] = value
	}
	return instances, nil
}
