package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns a string representation of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a JSON-safe property value. The zero value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
	m    map[string]Value
}

// Properties is a free-form property bag.
type Properties map[string]Value

func Null() Value                  { return Value{} }
func String(s string) Value        { return Value{kind: KindString, str: s} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func List(vs ...Value) Value       { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Number creates a numeric value. NaN and infinities have no JSON form and
// become strings.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Value{kind: KindNumber, num: f}
}

func Int(i int) Value { return Number(float64(i)) }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Str returns the string variant.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Float returns the number variant.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Boolean returns the bool variant.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Items returns the list variant.
func (v Value) Items() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Fields returns the map variant.
func (v Value) Fields() (map[string]Value, bool) {
	return v.m, v.kind == KindMap
}

// Interface converts back into plain Go values.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, e := range v.m {
			oe, ok := o.m[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value for humans.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNull:
		return "null"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(b)
	}
}

// MarshalJSON implements json.Marshaler. Map keys are written sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = CoerceValue(raw)
	return nil
}

// ParseValue interprets text as JSON when it parses, otherwise as a plain
// string. Used for command line property assignments.
func ParseValue(s string) Value {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return String(s)
	}
	return CoerceValue(raw)
}

// CoerceValue converts an arbitrary Go value into a Value. Numeric slices
// and nested structures are converted recursively; anything without a JSON
// representation becomes its string form.
func CoerceValue(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case time.Time:
		return String(t.UTC().Format(time.RFC3339Nano))
	case []byte:
		return String(string(t))
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = CoerceValue(e)
		}
		return List(out...)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = CoerceValue(e)
		}
		return Map(out)
	case fmt.Stringer:
		return String(t.String())
	}
	return coerceReflect(reflect.ValueOf(x))
}

func coerceReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.String:
		return String(rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return CoerceValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return List()
		}
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = CoerceValue(rv.Index(i).Interface())
		}
		return List(out...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = CoerceValue(iter.Value().Interface())
		}
		return Map(out)
	case reflect.Struct:
		// Structs go through their JSON form when they have one.
		if b, err := json.Marshal(rv.Interface()); err == nil {
			var raw any
			if json.Unmarshal(b, &raw) == nil {
				return CoerceValue(raw)
			}
		}
	}
	return String(fmt.Sprint(rv.Interface()))
}

// Clone returns a deep copy of the property bag.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every entry of o into p; entries of o win.
func (p Properties) Merge(o Properties) {
	for k, v := range o {
		p[k] = v
	}
}

// Keys returns the property names sorted.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
