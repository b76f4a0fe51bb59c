// Package dynval holds the tagged value type that record data is decoded into
// at the validation boundary. Payloads arrive as untyped JSON; every value that
// survives validation is carried as a Value with an explicit kind instead of a
// bare interface{}.
package dynval

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind tags the concrete type held by a Value
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindDate
	KindDateTime
	KindRef
	KindList
)

const dateLayout = "2006-01-02"

// datetime payloads accepted in order; first match wins
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindRef:
		return "reference"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is a tagged variant over the closed set of column data types.
// Exactly the field selected by Kind is meaningful.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Time  time.Time
	List  []Value
}

func Int(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value      { return Value{Kind: KindFloat, Float: v} }
func String(v string) Value      { return Value{Kind: KindString, Str: v} }
func Bool(v bool) Value          { return Value{Kind: KindBool, Bool: v} }
func Date(v time.Time) Value     { return Value{Kind: KindDate, Time: v} }
func DateTime(v time.Time) Value { return Value{Kind: KindDateTime, Time: v} }
func Ref(id int64) Value         { return Value{Kind: KindRef, Int: id} }
func List(vs []Value) Value      { return Value{Kind: KindList, List: vs} }

// Native converts a Value back into the plain JSON-shaped representation
func (v Value) Native() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Time.Format(dateLayout)
	case KindDateTime:
		return v.Time.Format(time.RFC3339)
	case KindRef:
		return v.Int
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, e := range v.List {
			out[i] = e.Native()
		}
		return out
	}
	return nil
}

// MarshalJSON serializes the native representation, so stored record data reads
// back as ordinary JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// DecodeInt accepts whole numbers only. JSON numbers arrive as float64, so a
// float with no fractional part is an integer.
func DecodeInt(raw interface{}) (Value, error) {
	switch n := raw.(type) {
	case int:
		return Int(int64(n)), nil
	case int64:
		return Int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return Value{}, fmt.Errorf("expected a whole number, got %v", n)
		}
		return Int(int64(n)), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("expected a whole number, got %v", n)
		}
		return Int(i), nil
	}
	return Value{}, fmt.Errorf("expected integer, got %T", raw)
}

// DecodeFloat accepts any numeric value
func DecodeFloat(raw interface{}) (Value, error) {
	switch n := raw.(type) {
	case int:
		return Float(float64(n)), nil
	case int64:
		return Float(float64(n)), nil
	case float64:
		return Float(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("expected numeric value, got %v", n)
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("expected numeric value, got %T", raw)
}

// DecodeString accepts strings only
func DecodeString(raw interface{}) (Value, error) {
	if s, ok := raw.(string); ok {
		return String(s), nil
	}
	return Value{}, fmt.Errorf("expected string, got %T", raw)
}

// DecodeBool accepts booleans only
func DecodeBool(raw interface{}) (Value, error) {
	if b, ok := raw.(bool); ok {
		return Bool(b), nil
	}
	return Value{}, fmt.Errorf("expected boolean, got %T", raw)
}

// DecodeDate accepts an ISO-8601 date string
func DecodeDate(raw interface{}) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("expected date string, got %T", raw)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Value{}, fmt.Errorf("expected ISO-8601 date (YYYY-MM-DD), got %q", s)
	}
	return Date(t), nil
}

// DecodeDateTime accepts an ISO-8601 datetime string
func DecodeDateTime(raw interface{}) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("expected datetime string, got %T", raw)
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime(t), nil
		}
	}
	return Value{}, fmt.Errorf("expected ISO-8601 datetime, got %q", s)
}

// DecodeRef accepts an integer record id
func DecodeRef(raw interface{}) (Value, error) {
	v, err := DecodeInt(raw)
	if err != nil {
		return Value{}, fmt.Errorf("expected record id: %v", err)
	}
	if v.Int <= 0 {
		return Value{}, fmt.Errorf("expected positive record id, got %d", v.Int)
	}
	return Ref(v.Int), nil
}

// DecodeList decodes each element of a homogeneous list with the element decoder
func DecodeList(raw interface{}, elem func(interface{}) (Value, error)) (Value, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return Value{}, fmt.Errorf("expected list, got %T", raw)
	}
	out := make([]Value, 0, len(items))
	for i, item := range items {
		v, err := elem(item)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %v", i, err)
		}
		out = append(out, v)
	}
	return List(out), nil
}
