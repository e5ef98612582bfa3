package planner

import (
	"errors"
	"time"
)

var (
	// ErrNoPlan means the reply holds no step array and is a final answer.
	ErrNoPlan = errors.New("no plan in reply")
	// ErrMalformedStep marks a plan element that is not a {tool, args} object.
	ErrMalformedStep = errors.New("malformed plan step")
)

// Plan is the ordered list of tool calls requested by one model reply.
type Plan struct {
	ID        string    `json:"id"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// Step is one tool call. Err is set when the element could not be decoded as a
// step; such a step is reported but never executed.
type Step struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
	Err  error                  `json:"-"`
}

// Valid returns the steps that decoded cleanly, in order.
func (p *Plan) Valid() []Step {
	steps := make([]Step, 0, len(p.Steps))
	for _, s := range p.Steps {
		if s.Err == nil {
			steps = append(steps, s)
		}
	}
	return steps
}

// Errors returns the per-step decode errors, in order.
func (p *Plan) Errors() []error {
	var errs []error
	for _, s := range p.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}
