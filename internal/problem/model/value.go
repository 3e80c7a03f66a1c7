package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind enumerates the parameter value shapes a test case may carry.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindString
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a structured test-case argument: an integer, string, boolean,
// or ordered sequence of values.
type Value struct {
	Kind Kind
	Int  int64
	Str  string
	Bool bool
	List []Value
}

func Int(v int64) Value      { return Value{Kind: KindInt, Int: v} }
func String(v string) Value  { return Value{Kind: KindString, Str: v} }
func Bool(v bool) Value      { return Value{Kind: KindBool, Bool: v} }
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func Ints(vs ...int64) Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Int(v)
	}
	return List(out...)
}

// MarshalJSON renders the value as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		items := v.List
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts integers, strings, booleans, null and arrays of those.
// Fractional numbers and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func fromJSON(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parameter value %s is not an integer", t)
		}
		return Int(n), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			parsed, err := fromJSON(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, parsed)
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported parameter value of type %T", raw)
	}
}

// String renders the value the way the harness prints results.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindList:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(item.String())
		}
		b.WriteByte(']')
		return b.String()
	default:
		return "null"
	}
}
