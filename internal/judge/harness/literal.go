package harness

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"codearena/internal/problem/model"
)

// valueType is the static type inferred for a parameter value in typed languages.
type valueType struct {
	base string // int, long, string, bool, null, object
	dims int
}

func inferType(v model.Value) valueType {
	switch v.Kind {
	case model.KindInt:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return valueType{base: "long"}
		}
		return valueType{base: "int"}
	case model.KindString:
		return valueType{base: "string"}
	case model.KindBool:
		return valueType{base: "bool"}
	case model.KindList:
		elem := valueType{base: "null"}
		for _, item := range v.List {
			elem = mergeTypes(elem, inferType(item))
		}
		if elem.base == "null" && elem.dims == 0 {
			elem.base = "int"
		}
		return valueType{base: elem.base, dims: elem.dims + 1}
	default:
		return valueType{base: "null"}
	}
}

func mergeTypes(a, b valueType) valueType {
	switch {
	case a.base == "null" && a.dims == 0:
		return b
	case b.base == "null" && b.dims == 0:
		return a
	case a == b:
		return a
	case a.dims == b.dims && isIntegral(a.base) && isIntegral(b.base):
		return valueType{base: "long", dims: a.dims}
	case a.dims == b.dims:
		return valueType{base: "object", dims: a.dims}
	default:
		return valueType{base: "object"}
	}
}

func isIntegral(base string) bool {
	return base == "int" || base == "long"
}

func (t valueType) elem() valueType {
	return valueType{base: t.base, dims: t.dims - 1}
}

// quote renders s as a double-quoted literal. Control characters use octal
// escapes unless unicodeEscapes is set.
func quote(s string, unicodeEscapes bool) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				if unicodeEscapes {
					fmt.Fprintf(&b, `\u%04x`, r)
				} else {
					fmt.Fprintf(&b, `\%03o`, r)
				}
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func joinValues(items []model.Value, render func(model.Value) string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = render(item)
	}
	return strings.Join(parts, ", ")
}

func pythonLiteral(v model.Value) string {
	switch v.Kind {
	case model.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case model.KindString:
		return quote(v.Str, false)
	case model.KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case model.KindList:
		return "[" + joinValues(v.List, pythonLiteral) + "]"
	default:
		return "None"
	}
}

func jsLiteral(v model.Value) string {
	switch v.Kind {
	case model.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case model.KindString:
		return quote(v.Str, true)
	case model.KindBool:
		return strconv.FormatBool(v.Bool)
	case model.KindList:
		return "[" + joinValues(v.List, jsLiteral) + "]"
	default:
		return "null"
	}
}

func javaTypeName(t valueType) string {
	var base string
	switch t.base {
	case "int":
		base = "int"
	case "long":
		base = "long"
	case "string":
		base = "String"
	case "bool":
		base = "boolean"
	default:
		base = "Object"
	}
	return base + strings.Repeat("[]", t.dims)
}

func javaLiteral(v model.Value, t valueType) string {
	switch v.Kind {
	case model.KindInt:
		if t.base == "long" || v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return strconv.FormatInt(v.Int, 10) + "L"
		}
		return strconv.FormatInt(v.Int, 10)
	case model.KindString:
		return quote(v.Str, false)
	case model.KindBool:
		return strconv.FormatBool(v.Bool)
	case model.KindList:
		if t.dims == 0 {
			t = inferType(v)
		}
		elemType := t.elem()
		return "new " + javaTypeName(t) + "{" + joinValues(v.List, func(item model.Value) string {
			return javaLiteral(item, elemType)
		}) + "}"
	default:
		return "null"
	}
}

func cppTypeName(t valueType) string {
	var name string
	switch t.base {
	case "int":
		name = "int"
	case "long":
		name = "long long"
	case "bool":
		name = "bool"
	default:
		name = "std::string"
	}
	for i := 0; i < t.dims; i++ {
		name = "std::vector<" + name + ">"
	}
	return name
}

func cppLiteral(v model.Value, t valueType) string {
	switch v.Kind {
	case model.KindInt:
		if t.base == "long" || v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return strconv.FormatInt(v.Int, 10) + "LL"
		}
		return strconv.FormatInt(v.Int, 10)
	case model.KindString:
		return "std::string(" + quote(v.Str, false) + ")"
	case model.KindBool:
		return strconv.FormatBool(v.Bool)
	case model.KindList:
		if t.dims == 0 {
			t = inferType(v)
		}
		elemType := t.elem()
		return cppTypeName(t) + "{" + joinValues(v.List, func(item model.Value) string {
			return cppLiteral(item, elemType)
		}) + "}"
	default:
		return "std::string()"
	}
}
