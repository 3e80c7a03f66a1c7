package harness

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codearena/internal/problem/model"
)

func runPython(t *testing.T, program string) string {
	t.Helper()
	bin, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not installed")
	}
	path := filepath.Join(t.TempDir(), "main.py")
	if err := os.WriteFile(path, []byte(program), 0o600); err != nil {
		t.Fatalf("write program: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, bin, path).Output()
	if err != nil {
		t.Fatalf("run program: %v\n%s", err, out)
	}
	return string(out)
}

func TestPythonHarnessSurvivesEarlyExit(t *testing.T) {
	problem := &model.Problem{
		ID:         "echo",
		EntryPoint: "f",
		TestCases: []model.TestCase{
			{Params: []model.Param{{Name: "n", Value: model.Int(1)}}, Expected: "1"},
			{Params: []model.Param{{Name: "n", Value: model.Int(2)}}, Expected: "2"},
			{Params: []model.Param{{Name: "n", Value: model.Int(3)}}, Expected: "3"},
		},
	}
	// Assembled directly because the content policy would reject these calls in Wrap.
	code := "import sys\n\ndef f(n):\n    if n == 2:\n        sys.exit(0)\n    if n == 3:\n        quit()\n    return n\n"
	w := NewWrapper(nil, 0)
	program := w.templates.Prelude(Python) + code + w.pythonDriver(problem)

	stdout := runPython(t, program)
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, DefaultMarker+" ") {
			lines = append(lines, line)
		}
	}
	if len(lines) != len(problem.TestCases) {
		t.Fatalf("expected %d marker lines, got %d\n%s", len(problem.TestCases), len(lines), stdout)
	}
	want := []string{"1", RuntimeErrorResult, RuntimeErrorResult}
	for i, line := range lines {
		head := DefaultMarker + " " + CaseLabel(i+1)
		if line != head+want[i] {
			t.Fatalf("case %d: expected %q, got %q", i+1, head+want[i], line)
		}
	}
}

func TestCheckContentRejectsEarlyExit(t *testing.T) {
	cases := map[string]string{
		"python sys.exit": "import sys\ndef f(n):\n    sys.exit(1)\n",
		"python exit":     "def f(n):\n    exit()\n",
		"python quit":     "def f(n):\n    quit()\n",
		"python raise":    "def f(n):\n    raise SystemExit\n",
		"cpp exit":        "int f(int n) { std::exit(0); }",
		"cpp abort":       "int f(int n) { abort(); }",
		"cpp quick exit":  "int f(int n) { _Exit(0); }",
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			if IsAllowed(code) {
				t.Fatalf("expected %q to be rejected", code)
			}
		})
	}
}
