package harness

import (
	"strings"

	"codearena/internal/problem/model"
	pkgerrors "codearena/pkg/errors"
)

// DefaultMaxCodeBytes bounds the size of submitted source.
const DefaultMaxCodeBytes = 64 * 1024

// Wrapper turns user source plus a problem into a self-contained program that
// prints one marked result line per test case.
type Wrapper struct {
	templates    *Templates
	maxCodeBytes int
}

// NewWrapper creates a wrapper. A nil templates value selects the defaults.
func NewWrapper(templates *Templates, maxCodeBytes int) *Wrapper {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if maxCodeBytes <= 0 {
		maxCodeBytes = DefaultMaxCodeBytes
	}
	return &Wrapper{templates: templates, maxCodeBytes: maxCodeBytes}
}

// Templates returns the templates the wrapper renders with.
func (w *Wrapper) Templates() *Templates {
	return w.templates
}

// Check applies the size limit and content policy to user code.
func (w *Wrapper) Check(code string) error {
	if len(code) > w.maxCodeBytes {
		return pkgerrors.Newf(pkgerrors.CodeTooLarge, "code is %d bytes, limit is %d", len(code), w.maxCodeBytes)
	}
	return CheckContent(code)
}

// Wrap builds the harness program for lang.
func (w *Wrapper) Wrap(code string, lang Language, problem *model.Problem) (string, error) {
	if err := w.Check(code); err != nil {
		return "", err
	}
	if problem == nil {
		return "", pkgerrors.New(pkgerrors.ProblemInvalid)
	}
	if err := problem.Validate(); err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ProblemInvalid)
	}

	if lang == Java {
		code = demoteJava(code)
	}

	var driver string
	if custom, ok := problem.Harnesses[lang.String()]; ok && strings.TrimSpace(custom) != "" {
		driver = strings.ReplaceAll(custom, MarkerPlaceholder, w.templates.Marker())
	} else {
		switch lang {
		case Python:
			driver = w.pythonDriver(problem)
		case JavaScript:
			driver = w.javascriptDriver(problem)
		case Java:
			driver = w.javaDriver(problem)
		case Cpp:
			driver = w.cppDriver(problem)
		default:
			return "", pkgerrors.Newf(pkgerrors.LanguageNotSupported, "language %d is not supported", int(lang))
		}
	}

	var b strings.Builder
	b.Grow(len(code) + len(driver) + 256)
	b.WriteString(w.templates.Prelude(lang))
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(driver)
	return b.String(), nil
}
