package harness

import (
	"strings"

	pkgerrors "codearena/pkg/errors"
)

// Language is the closed set of languages the wrapper can generate harnesses for.
type Language int

const (
	Python Language = iota + 1
	JavaScript
	Java
	Cpp
)

// Languages lists every supported language in display order.
var Languages = []Language{Python, JavaScript, Java, Cpp}

var languageAliases = map[string]Language{
	"python":     Python,
	"python3":    Python,
	"py":         Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"node":       JavaScript,
	"java":       Java,
	"cpp":        Cpp,
	"c++":        Cpp,
}

// ParseLanguage resolves a request language name, case-insensitively.
func ParseLanguage(name string) (Language, error) {
	if lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lang, nil
	}
	return 0, pkgerrors.Newf(pkgerrors.LanguageNotSupported, "language %q is not supported", name).
		WithDetail("language", name)
}

// String returns the canonical language name.
func (l Language) String() string {
	switch l {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	case Java:
		return "java"
	case Cpp:
		return "cpp"
	default:
		return "unknown"
	}
}

// DefaultBackendID is the execution backend's language identifier.
func (l Language) DefaultBackendID() int {
	switch l {
	case Python:
		return 71
	case JavaScript:
		return 63
	case Java:
		return 62
	case Cpp:
		return 54
	default:
		return 0
	}
}

// FileExtension is used when naming stored artifacts.
func (l Language) FileExtension() string {
	switch l {
	case Python:
		return "py"
	case JavaScript:
		return "js"
	case Java:
		return "java"
	case Cpp:
		return "cpp"
	default:
		return "txt"
	}
}
