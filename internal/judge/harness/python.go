package harness

import (
	"fmt"
	"strings"

	"codearena/internal/problem/model"
)

const pythonSupport = `
def __arena_fmt(v):
    if v is None:
        return "null"
    if isinstance(v, bool):
        return "true" if v else "false"
    if isinstance(v, (list, tuple)):
        return "[" + ",".join(__arena_fmt(x) for x in v) + "]"
    return str(v)


def __arena_entry(name):
    fn = globals().get(name)
    if callable(fn) and not isinstance(fn, type):
        return fn
    return getattr(Solution(), name)

`

func (w *Wrapper) pythonDriver(problem *model.Problem) string {
	var b strings.Builder
	b.WriteString(pythonSupport)
	for i, tc := range problem.TestCases {
		args := make([]string, len(tc.Params))
		for j, p := range tc.Params {
			args[j] = pythonLiteral(p.Value)
		}
		fmt.Fprintf(&b, "try:\n    __arena_out = __arena_fmt(__arena_entry(%s)(%s))\nexcept BaseException:\n    __arena_out = %s\n",
			quote(problem.EntryPoint, false), strings.Join(args, ", "), quote(RuntimeErrorResult, false))
		fmt.Fprintf(&b, "print(%s + __arena_out, flush=True)\n", quote(w.templates.lineHead(i+1), false))
	}
	return b.String()
}
