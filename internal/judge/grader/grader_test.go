package grader_test

import (
	"reflect"
	"strings"
	"testing"

	"codearena/internal/judge/grader"
	"codearena/internal/judge/model"
	problemmodel "codearena/internal/problem/model"
	"codearena/internal/problem/repository"
)

const marker = "##ARENA##"

func twoSumVisible(t *testing.T) *problemmodel.Problem {
	t.Helper()
	for _, p := range repository.DefaultProblems() {
		if p.ID == "two-sum" {
			visible := *p
			visible.TestCases = p.TestCases[:2]
			return &visible
		}
	}
	t.Fatal("two-sum not in defaults")
	return nil
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	want := grader.Normalize(`"[0, 1]"`)
	for _, actual := range []string{"[0,1]", "[0, 1]", " [0,\t1] ", "“[0,1]”"} {
		if got := grader.Normalize(actual); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", actual, got, want)
		}
	}
	if got := grader.Normalize("TRUE"); got != "true" {
		t.Fatalf("expected lower-case, got %q", got)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		passed, total int
		want          float64
	}{
		{1, 3, 33.33},
		{2, 3, 66.67},
		{2, 2, 100},
		{0, 2, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := grader.Score(tt.passed, tt.total); got != tt.want {
			t.Fatalf("Score(%d, %d) = %v, want %v", tt.passed, tt.total, got, tt.want)
		}
	}
}

func TestParseTwoSum(t *testing.T) {
	t.Parallel()
	problem := twoSumVisible(t)

	correct := marker + " Test Case 1: [0,1]\n" + marker + " Test Case 2: [1,2]\n"
	results, passed := grader.Parse(correct, problem, marker)
	if passed != 2 || grader.Score(passed, len(problem.TestCases)) != 100 {
		t.Fatalf("expected full score, got passed=%d", passed)
	}
	for _, r := range results {
		if r.Status != model.CaseAccepted {
			t.Fatalf("case %d: expected Accepted, got %s", r.Ordinal, r.Status)
		}
	}

	empty := marker + " Test Case 1: []\n" + marker + " Test Case 2: []\n"
	results, passed = grader.Parse(empty, problem, marker)
	if passed != 0 || grader.Score(passed, len(problem.TestCases)) != 0 {
		t.Fatalf("expected zero score, got passed=%d", passed)
	}
	for _, r := range results {
		if r.Status != model.CaseWrongAnswer {
			t.Fatalf("case %d: expected Wrong Answer, got %s", r.Ordinal, r.Status)
		}
	}
}

func TestParseMissingAndRuntimeError(t *testing.T) {
	t.Parallel()
	problem := twoSumVisible(t)
	stdout := "debug output\n" + marker + " Test Case 1: ERROR_RUNTIME\r\n"
	results, passed := grader.Parse(stdout, problem, marker)
	if passed != 0 {
		t.Fatalf("expected no passes, got %d", passed)
	}
	if results[0].Status != model.CaseRuntimeError || results[0].Actual != "ERROR_RUNTIME" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Status != model.CaseRuntimeError || results[1].Actual != "" {
		t.Fatalf("missing line must grade as runtime error, got %+v", results[1])
	}
}

func TestParseIgnoresUnmarkedLines(t *testing.T) {
	t.Parallel()
	problem := twoSumVisible(t)
	stdout := "Test Case 1: [0,1]\n" + marker + " Test Case 2: [1,2]\n"
	_, passed := grader.Parse(stdout, problem, marker)
	if passed != 1 {
		t.Fatalf("expected only the marked line to count, got %d", passed)
	}
}

func TestParseOrdinalsDoNotCollide(t *testing.T) {
	t.Parallel()
	problem := &problemmodel.Problem{ID: "p", EntryPoint: "f"}
	var b strings.Builder
	for i := 1; i <= 11; i++ {
		problem.TestCases = append(problem.TestCases, problemmodel.TestCase{Expected: "x"})
	}
	b.WriteString(marker + " Test Case 11: x\n")
	results, passed := grader.Parse(b.String(), problem, marker)
	if passed != 1 || results[10].Status != model.CaseAccepted || results[0].Status != model.CaseRuntimeError {
		t.Fatalf("case 1 must not match the case 11 line, passed=%d", passed)
	}
}

func TestParseIdempotent(t *testing.T) {
	t.Parallel()
	problem := twoSumVisible(t)
	stdout := marker + " Test Case 2: [1, 2]\n" + marker + " Test Case 1: [1,0]\n"
	r1, p1 := grader.Parse(stdout, problem, marker)
	r2, p2 := grader.Parse(stdout, problem, marker)
	if p1 != p2 || !reflect.DeepEqual(r1, r2) {
		t.Fatalf("parse is not deterministic")
	}
}

func TestParseRedactsHiddenCases(t *testing.T) {
	t.Parallel()
	var problem *problemmodel.Problem
	for _, p := range repository.DefaultProblems() {
		if p.ID == "two-sum" {
			problem = p
		}
	}
	stdout := marker + " Test Case 3: [0,1]\n"
	results, passed := grader.Parse(stdout, problem, marker)
	if passed != 1 {
		t.Fatalf("hidden case must still be graded, passed=%d", passed)
	}
	hidden := results[2]
	if !hidden.Hidden || hidden.Input != model.HiddenPlaceholder || hidden.Params != nil || hidden.Expected != model.HiddenPlaceholder {
		t.Fatalf("hidden case leaked: %+v", hidden)
	}
	if strings.Contains(hidden.Input, "[3,3]") {
		t.Fatalf("hidden input leaked")
	}
	if results[0].Input == model.HiddenPlaceholder {
		t.Fatalf("visible case must not be redacted")
	}
}
