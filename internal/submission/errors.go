package submission

import (
	"fmt"
	"strings"
)

// Problem describes one invalid field.
type Problem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every problem found in a payload.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Reason))
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// ErrorKind classifies validation failures for callers that map errors to responses.
func (e *ValidationError) ErrorKind() string { return "validation" }

type problems []Problem

func (p *problems) add(field, reason string) {
	*p = append(*p, Problem{Field: field, Reason: reason})
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}
