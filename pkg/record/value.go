package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	// lit is the exact decimal text of an integer number, when known.
	lit string
	s   string
	obj map[string]Value
	arr []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns an integer value held exactly.
func Int(i int64) Value {
	return Value{kind: KindNumber, n: float64(i), lit: strconv.FormatInt(i, 10)}
}

// NumberLiteral returns the number written as text, which must be finite.
// Integer literals are kept exactly, so values beyond 2^53 keep every digit.
func NumberLiteral(text string) (Value, error) {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Value{}, fmt.Errorf("invalid number %q", text)
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return Value{}, fmt.Errorf("%w: %s", ErrNonFinite, text)
	}
	v := Value{kind: KindNumber, n: n}
	if isIntLiteral(text) {
		v.lit = text
		if v.lit == "-0" {
			v.lit = "0"
		}
	}
	return v, nil
}

// ErrNonFinite reports a number outside the float64 range.
var ErrNonFinite = errors.New("number is not finite")

func isIntLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Object returns an object value. The map is owned by the Value afterwards.
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindObject, obj: m}
}

// Array returns an array value. The slice is owned by the Value afterwards.
func Array(a []Value) Value {
	if a == nil {
		a = []Value{}
	}
	return Value{kind: KindArray, arr: a}
}

// FromAny converts plain Go values, as produced by encoding/json or yaml.v3,
// into a Value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		return NumberLiteral(strconv.FormatUint(t, 10))
	case float32:
		return finite(float64(t))
	case float64:
		return finite(t)
	case json.Number:
		return NumberLiteral(string(t))
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			cv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = cv
		}
		return Object(obj), nil
	case []any:
		arr := make([]Value, len(t))
		for i, item := range t {
			cv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return Array(arr), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func finite(f float64) (Value, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, fmt.Errorf("%w: %v", ErrNonFinite, f)
	}
	return Number(f), nil
}

// ParseLiteral interprets s as a JSON scalar (number, true, false, null or a
// quoted string). Anything else is taken as a plain string.
func ParseLiteral(s string) Value {
	switch s {
	case "null":
		return Null()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		if v, err := NumberLiteral(s); err == nil {
			return v
		}
	}
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		if unq, err := strconv.Unquote(s); err == nil {
			return String(unq)
		}
	}
	return String(s)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsObject returns a copy of the object held by v.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return maps.Clone(v.obj), true
}

// AsArray returns a copy of the array held by v.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return slices.Clone(v.arr), true
}

// Equal reports whether v and o hold the same variant and the same content.
// No coercion is performed: Number(200) is not equal to String("200").
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		vi, vok := v.intText()
		oi, ook := o.intText()
		if vok && ook {
			return vi == oi
		}
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindObject:
		return maps.EqualFunc(v.obj, o.obj, Value.Equal)
	case KindArray:
		return slices.EqualFunc(v.arr, o.arr, Value.Equal)
	}
	return false
}

// intText returns the exact decimal form of an integral number.
func (v Value) intText() (string, bool) {
	if v.lit != "" {
		return v.lit, true
	}
	if v.n == 0 {
		return "0", true
	}
	if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e21 {
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	}
	return "", false
}

// Lookup resolves a dotted path such as "request.headers.host" or
// "items[0].name" inside an object value.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		key, index, hasIndex, err := parsePathPart(part)
		if err != nil || cur.kind != KindObject {
			return Value{}, false
		}
		next, ok := cur.obj[key]
		if !ok {
			return Value{}, false
		}
		if hasIndex {
			if next.kind != KindArray || index >= len(next.arr) {
				return Value{}, false
			}
			next = next.arr[index]
		}
		cur = next
	}
	return cur, true
}

// Interface returns v as plain Go values (nil, bool, float64, string,
// map[string]any, []any). Integers beyond 2^53 lose precision here; use
// MarshalJSON or Equal to keep them exact.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			m[k] = item.Interface()
		}
		return m
	case KindArray:
		a := make([]any, len(v.arr))
		for i, item := range v.arr {
			a[i] = item.Interface()
		}
		return a
	default:
		return nil
	}
}

// MarshalJSON encodes v as JSON. Integer literals are written verbatim.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.jsonValue())
}

func (v Value) jsonValue() any {
	switch v.kind {
	case KindNumber:
		if v.lit != "" {
			return json.Number(v.lit)
		}
		return v.n
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			m[k] = item.jsonValue()
		}
		return m
	case KindArray:
		a := make([]any, len(v.arr))
		for i, item := range v.arr {
			a[i] = item.jsonValue()
		}
		return a
	default:
		return v.Interface()
	}
}

// String renders v as compact JSON.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(b)
}

// parsePathPart splits "items[0]" into ("items", 0, true).
func parsePathPart(part string) (key string, index int, hasIndex bool, err error) {
	open := strings.IndexByte(part, '[')
	if open == -1 {
		return part, -1, false, nil
	}
	end := strings.IndexByte(part, ']')
	if end != len(part)-1 || end < open+2 {
		return "", -1, false, fmt.Errorf("invalid array index in path segment %q", part)
	}
	index, err = strconv.Atoi(part[open+1 : end])
	if err != nil || index < 0 {
		return "", -1, false, fmt.Errorf("invalid array index in path segment %q", part)
	}
	return part[:open], index, true, nil
}

// ValidPath reports whether path is a well-formed dotted path.
func ValidPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	for _, part := range strings.Split(path, ".") {
		key, _, _, err := parsePathPart(part)
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("empty segment in path %q", path)
		}
	}
	return nil
}
