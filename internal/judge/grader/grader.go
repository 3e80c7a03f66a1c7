// Package grader turns harness output into per-case verdicts and a score.
package grader

import (
	"math"
	"strings"
	"unicode"

	"codearena/internal/judge/harness"
	"codearena/internal/judge/model"
	problemmodel "codearena/internal/problem/model"
)

var quoteRunes = map[rune]struct{}{
	'"': {}, '\'': {}, '`': {},
	'‘': {}, '’': {}, '‚': {}, '‛': {},
	'“': {}, '”': {}, '„': {}, '‟': {},
}

// Normalize removes whitespace and quote characters and lower-cases the rest.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if _, ok := quoteRunes[r]; ok {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Score is passed/total as a percentage rounded to two decimals. Zero cases score 0.
func Score(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*10000) / 100
}

// markerLines returns the lines of stdout that start with marker.
func markerLines(stdout, marker string) []string {
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, marker) {
			lines = append(lines, line)
		}
	}
	return lines
}

// Parse grades stdout against every test case of problem, in ordinal order.
// For case i the first marker line containing "Test Case i: " is used; the text
// after it is the actual result.
func Parse(stdout string, problem *problemmodel.Problem, marker string) ([]model.CaseResult, int) {
	if problem == nil {
		return nil, 0
	}
	if marker == "" {
		marker = harness.DefaultMarker
	}
	lines := markerLines(stdout, marker)

	results := make([]model.CaseResult, 0, len(problem.TestCases))
	passed := 0
	for i, tc := range problem.TestCases {
		ordinal := i + 1
		result := model.CaseResult{
			Ordinal:  ordinal,
			Status:   model.CaseRuntimeError,
			Input:    tc.Input,
			Params:   tc.Params,
			Expected: tc.Expected,
			Hidden:   tc.Hidden,
		}

		label := harness.CaseLabel(ordinal)
		for _, line := range lines {
			idx := strings.Index(line, label)
			if idx < 0 {
				continue
			}
			result.Actual = line[idx+len(label):]
			switch {
			case strings.TrimSpace(result.Actual) == harness.RuntimeErrorResult:
				result.Status = model.CaseRuntimeError
			case Normalize(result.Actual) == Normalize(tc.Expected):
				result.Status = model.CaseAccepted
			default:
				result.Status = model.CaseWrongAnswer
			}
			break
		}
		if result.Status == model.CaseAccepted {
			passed++
		}
		results = append(results, redact(result))
	}
	return results, passed
}

func redact(r model.CaseResult) model.CaseResult {
	if !r.Hidden {
		return r
	}
	r.Input = model.HiddenPlaceholder
	r.Params = nil
	r.Expected = model.HiddenPlaceholder
	return r
}
