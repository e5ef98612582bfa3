package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExtractPlan parses the first JSON array found in reply into a Plan.
//
// Decoding starts at the first '[' and stops after one complete value, so
// prose before the array and anything after it is ignored. ErrNoPlan is
// returned when there is no bracket, the value does not decode, or the array
// holds no objects at all. Objects that are not well-formed steps are kept as
// steps with Err set.
func ExtractPlan(reply string) (*Plan, error) {
	start := strings.IndexByte(reply, '[')
	if start == -1 {
		return nil, ErrNoPlan
	}

	var elems []json.RawMessage
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := dec.Decode(&elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		Steps:     make([]Step, 0, len(elems)),
		CreatedAt: time.Now(),
	}

	objects := 0
	for i, raw := range elems {
		step, isObject := decodeStep(i, raw)
		if isObject {
			objects++
		}
		plan.Steps = append(plan.Steps, step)
	}

	if len(elems) > 0 && objects == 0 {
		return nil, fmt.Errorf("%w: array holds no step objects", ErrNoPlan)
	}

	return plan, nil
}

func decodeStep(index int, raw json.RawMessage) (Step, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Step{Err: fmt.Errorf("%w: element %d is not an object", ErrMalformedStep, index+1)}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Step{Err: fmt.Errorf("%w: element %d: %v", ErrMalformedStep, index+1, err)}, true
	}

	var step Step
	if err := json.Unmarshal(fields["tool"], &step.Tool); err != nil || step.Tool == "" {
		return Step{Err: fmt.Errorf("%w: element %d has no tool name", ErrMalformedStep, index+1)}, true
	}

	step.Args = map[string]interface{}{}
	if rawArgs, ok := fields["args"]; ok && !bytes.Equal(bytes.TrimSpace(rawArgs), []byte("null")) {
		if err := json.Unmarshal(rawArgs, &step.Args); err != nil || step.Args == nil {
			return Step{Tool: step.Tool, Err: fmt.Errorf("%w: element %d (%s): args must be an object", ErrMalformedStep, index+1, step.Tool)}, true
		}
	}

	return step, true
}
