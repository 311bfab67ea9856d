package value

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies which variant a Value currently holds.
type Kind uint8

const (
	// KindNull is the zero value of Kind, representing JSON null.
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Object is a JSON-compatible mapping, the only Value variant that
// select and assign operate on.
type Object map[string]Value

// Value is a JSON-compatible dynamic value: Null, Bool, Number,
// String, Array, or Object. The zero Value is KindNull.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  Object
}

// Null returns the null Value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a float64.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String wraps a string.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array wraps a slice of values.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// FromObject wraps a mapping as an Object Value.
func FromObject(o Object) Value {
	if o == nil {
		o = Object{}
	}
	return Value{kind: KindObject, obj: o}
}

// NewObject returns an empty Object Value.
func NewObject() Value {
	return FromObject(Object{})
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is KindNull.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean payload and whether v is KindBool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric payload and whether v is KindNumber.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string payload and whether v is KindString.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray returns the array payload and whether v is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// AsObject returns the object payload and whether v is KindObject.
func (v Value) AsObject() (Object, bool) {
	return v.obj, v.kind == KindObject
}

// MustObject returns the object payload or panics if v is not
// KindObject. Intended for call sites that have already validated v's
// kind (e.g. pipeline primitives after a type_mismatch check).
func (v Value) MustObject() Object {
	if v.kind != KindObject {
		panic(fmt.Sprintf("value: MustObject on %s", v.kind))
	}
	return v.obj
}

// Get looks up key in an Object Value, returning Null if v is not an
// object or the key is absent.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Null()
	}
	val, ok := v.obj[key]
	if !ok {
		return Null()
	}
	return val
}

// Keys returns the sorted key set of o (an empty, non-nil slice for an
// empty Object).
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of o.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge returns a new Object containing o's entries overlaid with
// patch's entries. Neither input is mutated.
func (o Object) Merge(patch Object) Object {
	out := o.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Equal performs a deep structural comparison between two values.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler, decoding arbitrary JSON
// into the appropriate Value variant. Numbers are decoded as float64,
// matching encoding/json's default untyped behavior.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromAny(item)
		}
		return Array(items...)
	case map[string]any:
		obj := make(Object, len(t))
		for k, item := range t {
			obj[k] = fromAny(item)
		}
		return FromObject(obj)
	default:
		return Null()
	}
}

// ParseObject decodes a JSON document into an Object Value, returning
// an error if the top-level document is not a JSON object.
func ParseObject(data []byte) (Object, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("value: top-level document is %s, want object", v.Kind())
	}
	return obj, nil
}
