package harness

import (
	"fmt"
	"strings"

	"codearena/internal/problem/model"
)

const cppSupport = `
namespace arena_harness {
inline std::string fmt(const std::string& v) { return v; }
inline std::string fmt(const char* v) { return std::string(v); }
inline std::string fmt(char v) { return std::string(1, v); }
inline std::string fmt(bool v) { return v ? "true" : "false"; }
template <typename T>
typename std::enable_if<std::is_arithmetic<T>::value, std::string>::type fmt(T v) {
    std::ostringstream os;
    os << v;
    return os.str();
}
template <typename T>
std::string fmt(const std::vector<T>& v) {
    std::string s = "[";
    for (size_t i = 0; i < v.size(); ++i) {
        if (i > 0) s += ",";
        s += fmt(static_cast<T>(v[i]));
    }
    return s + "]";
}
}  // namespace arena_harness

`

func (w *Wrapper) cppDriver(problem *model.Problem) string {
	var b strings.Builder
	b.WriteString(cppSupport)
	b.WriteString("int main() {\n")
	for i, tc := range problem.TestCases {
		b.WriteString("    {\n")
		// Arguments are named locals so entry points taking non-const references compile.
		args := make([]string, len(tc.Params))
		for j, p := range tc.Params {
			args[j] = fmt.Sprintf("a%d", j)
			fmt.Fprintf(&b, "        auto a%d = %s;\n", j, cppLiteral(p.Value, inferType(p.Value)))
		}
		fmt.Fprintf(&b, "        std::string out;\n        try {\n            Solution sol;\n            out = arena_harness::fmt(sol.%s(%s));\n        } catch (...) {\n            out = %s;\n        }\n",
			problem.EntryPoint, strings.Join(args, ", "), quote(RuntimeErrorResult, false))
		fmt.Fprintf(&b, "        std::cout << %s << out << std::endl;\n    }\n", quote(w.templates.lineHead(i+1), false))
	}
	b.WriteString("    return 0;\n}\n")
	return b.String()
}
