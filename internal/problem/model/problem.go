package model

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Problem is a coding problem as loaded for one job.
type Problem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	EntryPoint string     `json:"entryPoint"`
	TestCases  []TestCase `json:"testCases"`
	// Harnesses maps a language name to a custom driver appended after the user code.
	Harnesses map[string]string `json:"harnesses,omitempty"`
}

// TestCase is one graded invocation. Its ordinal is its 1-based position in Problem.TestCases.
type TestCase struct {
	Params   []Param `json:"params"`
	Expected string  `json:"expected"`
	Hidden   bool    `json:"hidden"`
	Input    string  `json:"input"`
}

// Param is a named positional argument.
type Param struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Validate checks the fields the harness generator depends on.
func (p *Problem) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("problem id is empty")
	}
	if !identifierPattern.MatchString(p.EntryPoint) {
		return fmt.Errorf("problem %s has invalid entry point %q", p.ID, p.EntryPoint)
	}
	for i, tc := range p.TestCases {
		for _, param := range tc.Params {
			if !identifierPattern.MatchString(param.Name) {
				return fmt.Errorf("problem %s test case %d has invalid parameter name %q", p.ID, i+1, param.Name)
			}
		}
	}
	return nil
}

// IsIdentifier reports whether s is usable as a function or parameter name in every supported language.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
