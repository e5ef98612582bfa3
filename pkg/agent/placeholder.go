package agent

import (
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`^\$([0-9]+)\.output$`)

// SubstituteArgs returns a copy of args in which every string of the form
// "$N.output", at any depth, is replaced by the text of outputs[N-1].
// Indices that are zero, out of range or too large to parse leave the
// literal untouched.
func SubstituteArgs(args map[string]interface{}, outputs []StepResult) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = substituteValue(v, outputs)
	}
	return out
}

func substituteValue(v interface{}, outputs []StepResult) interface{} {
	switch val := v.(type) {
	case string:
		return resolvePlaceholder(val, outputs)
	case map[string]interface{}:
		return SubstituteArgs(val, outputs)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = substituteValue(item, outputs)
		}
		return items
	default:
		return v
	}
}

func resolvePlaceholder(s string, outputs []StepResult) string {
	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 || idx > len(outputs) {
		return s
	}
	return outputs[idx-1].Text()
}
