package harness

import (
	"fmt"
	"regexp"
	"strings"

	"codearena/internal/problem/model"
)

var (
	// Top-level public types would clash with the public Main class in the same file.
	javaPublicType  = regexp.MustCompile(`(?m)^(\s*)public\s+((?:(?:final|abstract|static|sealed|strictfp)\s+)*)(class|interface|enum|record)\b`)
	javaPackageLine = regexp.MustCompile(`(?m)^\s*package\s+[\w.]+\s*;\s*$`)
)

// demoteJava strips package declarations and public modifiers from top-level types.
// The rewrite is textual and can be fooled by matching text inside strings or comments.
func demoteJava(code string) string {
	code = javaPackageLine.ReplaceAllString(code, "")
	return javaPublicType.ReplaceAllString(code, "$1$2$3")
}

const javaSupport = `
public class Main {
    static String fmt(Object v) {
        if (v == null) return "null";
        if (v instanceof int[]) { int[] a = (int[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(a[i]); } return sb.append(']').toString(); }
        if (v instanceof long[]) { long[] a = (long[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(a[i]); } return sb.append(']').toString(); }
        if (v instanceof double[]) { double[] a = (double[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(a[i]); } return sb.append(']').toString(); }
        if (v instanceof boolean[]) { boolean[] a = (boolean[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(a[i]); } return sb.append(']').toString(); }
        if (v instanceof char[]) { char[] a = (char[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(a[i]); } return sb.append(']').toString(); }
        if (v instanceof Object[]) { Object[] a = (Object[]) v; StringBuilder sb = new StringBuilder("["); for (int i = 0; i < a.length; i++) { if (i > 0) sb.append(','); sb.append(fmt(a[i])); } return sb.append(']').toString(); }
        if (v instanceof Iterable) { StringBuilder sb = new StringBuilder("["); boolean first = true; for (Object x : (Iterable<?>) v) { if (!first) sb.append(','); first = false; sb.append(fmt(x)); } return sb.append(']').toString(); }
        return String.valueOf(v);
    }
`

func (w *Wrapper) javaDriver(problem *model.Problem) string {
	var b strings.Builder
	b.WriteString(javaSupport)
	// One method per case keeps main well below the JVM method size limit.
	for i, tc := range problem.TestCases {
		args := make([]string, len(tc.Params))
		for j, p := range tc.Params {
			args[j] = javaLiteral(p.Value, inferType(p.Value))
		}
		fmt.Fprintf(&b, "\n    static String case%d() {\n        try {\n            return fmt(new Solution().%s(%s));\n        } catch (Throwable t) {\n            return %s;\n        }\n    }\n",
			i+1, problem.EntryPoint, strings.Join(args, ", "), quote(RuntimeErrorResult, false))
	}
	b.WriteString("\n    public static void main(String[] args) {\n")
	for i := range problem.TestCases {
		fmt.Fprintf(&b, "        System.out.println(%s + case%d());\n", quote(w.templates.lineHead(i+1), false), i+1)
	}
	b.WriteString("        System.out.flush();\n    }\n}\n")
	return b.String()
}
