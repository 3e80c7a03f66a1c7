package harness

import (
	"strings"
	"testing"

	"codearena/internal/problem/model"
	"codearena/internal/problem/repository"
	pkgerrors "codearena/pkg/errors"
)

func twoSum(t *testing.T) *model.Problem {
	t.Helper()
	for _, p := range repository.DefaultProblems() {
		if p.ID == "two-sum" {
			return p
		}
	}
	t.Fatal("two-sum not in defaults")
	return nil
}

func TestWrapEmitsOneLinePerCase(t *testing.T) {
	w := NewWrapper(nil, 0)
	problem := twoSum(t)
	sources := map[Language]string{
		Python:     "def twoSum(nums, target):\n    return [0, 1]\n",
		JavaScript: "function twoSum(nums, target) { return [0, 1]; }\n",
		Java:       "class Solution { public int[] twoSum(int[] nums, int target) { return new int[]{0, 1}; } }\n",
		Cpp:        "class Solution { public: vector<int> twoSum(vector<int>& nums, int target) { return {0, 1}; } };\n",
	}
	for _, lang := range Languages {
		out, err := w.Wrap(sources[lang], lang, problem)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", lang, err)
		}
		if !strings.Contains(out, sources[lang]) {
			t.Fatalf("%s: user code missing from harness", lang)
		}
		for i := range problem.TestCases {
			head := DefaultMarker + " " + CaseLabel(i+1)
			if strings.Count(out, `"`+head+`"`) != 1 {
				t.Fatalf("%s: expected exactly one result line for case %d\n%s", lang, i+1, out)
			}
		}
		if !strings.Contains(out, RuntimeErrorResult) {
			t.Fatalf("%s: runtime error fallback missing", lang)
		}
	}
}

func TestWrapLiterals(t *testing.T) {
	w := NewWrapper(nil, 0)
	problem := twoSum(t)

	py, _ := w.Wrap("def twoSum(nums, target):\n    return []\n", Python, problem)
	if !strings.Contains(py, "__arena_entry(\"twoSum\")([2, 7, 11, 15], 9)") {
		t.Fatalf("python call not rendered:\n%s", py)
	}
	java, _ := w.Wrap("class Solution { }", Java, problem)
	if !strings.Contains(java, "new Solution().twoSum(new int[]{2, 7, 11, 15}, 9)") {
		t.Fatalf("java call not rendered:\n%s", java)
	}
	cpp, _ := w.Wrap("class Solution { };", Cpp, problem)
	if !strings.Contains(cpp, "auto a0 = std::vector<int>{2, 7, 11, 15};") || !strings.Contains(cpp, "sol.twoSum(a0, a1)") {
		t.Fatalf("cpp call not rendered:\n%s", cpp)
	}
	if !strings.HasPrefix(cpp, "#include <bits/stdc++.h>") {
		t.Fatalf("cpp prelude missing")
	}
}

func TestDemoteJava(t *testing.T) {
	code := "package com.example;\npublic class Solution {\n    public int f() { return 1; }\n}\npublic final class Helper {}\n"
	got := demoteJava(code)
	if strings.Contains(got, "package com.example") {
		t.Fatalf("package line kept:\n%s", got)
	}
	if strings.Contains(got, "public class Solution") || strings.Contains(got, "public final class Helper") {
		t.Fatalf("public top-level class kept:\n%s", got)
	}
	if !strings.Contains(got, "class Solution") || !strings.Contains(got, "final class Helper") {
		t.Fatalf("class declarations lost:\n%s", got)
	}
	if !strings.Contains(got, "public int f()") {
		t.Fatalf("member visibility changed:\n%s", got)
	}
}

func TestWrapRejects(t *testing.T) {
	w := NewWrapper(nil, 32)
	problem := twoSum(t)
	tests := []struct {
		name string
		code string
		prob *model.Problem
		want pkgerrors.ErrorCode
	}{
		{name: "too large", code: strings.Repeat("x", 33), prob: problem, want: pkgerrors.CodeTooLarge},
		{name: "blank", code: "  \n", prob: problem, want: pkgerrors.ValidationFailed},
		{name: "denied token", code: "import os", prob: problem, want: pkgerrors.CodeRejected},
		{name: "bad entry point", code: "pass", prob: &model.Problem{ID: "p", EntryPoint: "x-y"}, want: pkgerrors.ProblemInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Wrap(tt.code, Python, tt.prob)
			if pkgerrors.GetCode(err) != tt.want {
				t.Fatalf("expected code %d, got %v", tt.want, err)
			}
		})
	}
}

func TestCustomHarnessSnippet(t *testing.T) {
	templates, err := NewTemplates(TemplateConfig{Marker: "@@"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := NewWrapper(templates, 0)
	problem := &model.Problem{
		ID:         "custom",
		EntryPoint: "solve",
		TestCases:  []model.TestCase{{Expected: "1"}},
		Harnesses:  map[string]string{"python": `print("{{MARKER}} Test Case 1: " + str(solve()))`},
	}
	out, err := w.Wrap("def solve():\n    return 1", Python, problem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(out, `print("@@ Test Case 1: " + str(solve()))`) {
		t.Fatalf("custom snippet not applied:\n%s", out)
	}
}

func TestNewTemplatesValidation(t *testing.T) {
	if _, err := NewTemplates(TemplateConfig{Marker: `a"b`}); err == nil {
		t.Fatal("expected quoted marker to be rejected")
	}
	if _, err := NewTemplates(TemplateConfig{Preludes: map[string]string{"cobol": ""}}); err == nil {
		t.Fatal("expected unknown prelude language to be rejected")
	}
	tpl, err := NewTemplates(TemplateConfig{Preludes: map[string]string{"py": "import math"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.Prelude(Python) != "import math\n" {
		t.Fatalf("unexpected prelude %q", tpl.Prelude(Python))
	}
}

func TestParseLanguage(t *testing.T) {
	for name, want := range map[string]Language{"Python3": Python, "js": JavaScript, "JAVA": Java, "c++": Cpp} {
		got, err := ParseLanguage(name)
		if err != nil || got != want {
			t.Fatalf("ParseLanguage(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseLanguage("ruby"); pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestQuoteEscapes(t *testing.T) {
	if got := quote("a\"b\\c\n\x01", false); got != `"a\"b\\c\n\001"` {
		t.Fatalf("unexpected quote %s", got)
	}
	if got := quote("\x01", true); got != `"\u0001"` {
		t.Fatalf("unexpected js quote %s", got)
	}
}

func TestIsAllowed(t *testing.T) {
	if IsAllowed("") {
		t.Fatal("blank code must not be allowed")
	}
	if IsAllowed("x = __import__('os')") {
		t.Fatal("dynamic import must not be allowed")
	}
	if !IsAllowed("def f(a):\n    return a[::-1]\n") {
		t.Fatal("plain code must be allowed")
	}
}
