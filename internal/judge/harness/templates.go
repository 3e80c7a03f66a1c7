package harness

import (
	"fmt"
	"strings"
)

const (
	DefaultMarker = "##ARENA##"
	// RuntimeErrorResult is printed in place of a result when invoking the entry point throws.
	RuntimeErrorResult = "ERROR_RUNTIME"
	// MarkerPlaceholder in a custom harness snippet is replaced with the marker prefix.
	MarkerPlaceholder = "{{MARKER}}"
)

// TemplateConfig is the YAML form of the harness templates.
type TemplateConfig struct {
	Marker   string            `yaml:"marker"`
	Preludes map[string]string `yaml:"preludes"`
}

// Templates holds the per-language harness fragments. It is built once at startup
// and never modified, so it is safe to share between goroutines.
type Templates struct {
	marker   string
	preludes map[Language]string
}

var defaultPreludes = map[Language]string{
	Python:     "",
	JavaScript: "",
	Java:       "import java.util.*;\n",
	Cpp:        "#include <bits/stdc++.h>\nusing namespace std;\n",
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() *Templates {
	t, _ := NewTemplates(TemplateConfig{})
	return t
}

// NewTemplates overlays cfg on the built-in templates.
func NewTemplates(cfg TemplateConfig) (*Templates, error) {
	marker := strings.TrimSpace(cfg.Marker)
	if marker == "" {
		marker = DefaultMarker
	}
	if strings.ContainsAny(marker, "\r\n\"'\\") {
		return nil, fmt.Errorf("harness marker %q must not contain quotes, backslashes or line breaks", marker)
	}

	preludes := make(map[Language]string, len(defaultPreludes))
	for lang, prelude := range defaultPreludes {
		preludes[lang] = prelude
	}
	for name, prelude := range cfg.Preludes {
		lang, err := ParseLanguage(name)
		if err != nil {
			return nil, fmt.Errorf("harness prelude: %w", err)
		}
		if prelude != "" && !strings.HasSuffix(prelude, "\n") {
			prelude += "\n"
		}
		preludes[lang] = prelude
	}
	return &Templates{marker: marker, preludes: preludes}, nil
}

// Marker is the prefix of every result line.
func (t *Templates) Marker() string {
	return t.marker
}

// Prelude is emitted ahead of the user code.
func (t *Templates) Prelude(lang Language) string {
	return t.preludes[lang]
}

// CaseLabel is the text following the marker for the given 1-based ordinal.
func CaseLabel(ordinal int) string {
	return fmt.Sprintf("Test Case %d: ", ordinal)
}

// lineHead is the literal prefix printed before a case result.
func (t *Templates) lineHead(ordinal int) string {
	return t.marker + " " + CaseLabel(ordinal)
}
