package harness

import (
	"fmt"
	"strings"

	"codearena/internal/problem/model"
)

const jsSupport = `
function __arenaFmt(v) {
  if (v === null || v === undefined) return "null";
  if (Array.isArray(v) || ArrayBuffer.isView(v)) return "[" + Array.from(v, (x) => __arenaFmt(x)).join(",") + "]";
  if (typeof v === "boolean") return v ? "true" : "false";
  return String(v);
}

function __arenaRun(head, call) {
  let out;
  try {
    out = __arenaFmt(call());
  } catch (e) {
    out = %s;
  }
  console.log(head + out);
}
`

func (w *Wrapper) javascriptDriver(problem *model.Problem) string {
	var b strings.Builder
	fmt.Fprintf(&b, jsSupport, quote(RuntimeErrorResult, true))
	// typeof on an undeclared name is safe, so a missing function falls through to Solution.
	fmt.Fprintf(&b, "\nfunction __arenaEntry() {\n  if (typeof %[1]s === \"function\") return %[1]s;\n  const sol = new Solution();\n  return sol.%[1]s.bind(sol);\n}\n\n", problem.EntryPoint)
	for i, tc := range problem.TestCases {
		args := make([]string, len(tc.Params))
		for j, p := range tc.Params {
			args[j] = jsLiteral(p.Value)
		}
		fmt.Fprintf(&b, "__arenaRun(%s, () => __arenaEntry()(%s));\n", quote(w.templates.lineHead(i+1), true), strings.Join(args, ", "))
	}
	return b.String()
}
