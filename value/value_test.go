package value

import (
	"encoding/json"
	"testing"
)

func TestEqual(t *testing.T) {
	a := FromObject(Object{"a": Number(1), "b": Array(String("x"), Bool(true))})
	b := FromObject(Object{"a": Number(1), "b": Array(String("x"), Bool(true))})
	if !Equal(a, b) {
		t.Fatalf("expected equal values")
	}
	c := FromObject(Object{"a": Number(2)})
	if Equal(a, c) {
		t.Fatalf("expected unequal values")
	}
}

func TestObjectMerge(t *testing.T) {
	base := Object{"a": Number(1), "c": Number(3)}
	patch := Object{"b": Number(2), "c": Number(4)}
	merged := base.Merge(patch)

	if len(base) != 2 {
		t.Fatalf("Merge mutated base: %v", base)
	}
	want := Object{"a": Number(1), "b": Number(2), "c": Number(4)}
	if !Equal(FromObject(merged), FromObject(want)) {
		t.Fatalf("Merge = %v, want %v", merged, want)
	}
}

func TestGetMissingKeyIsNull(t *testing.T) {
	o := FromObject(Object{"a": Number(1)})
	if got := o.Get("missing"); !got.IsNull() {
		t.Fatalf("Get(missing) = %v, want null", got)
	}
	if got := String("x").Get("a"); !got.IsNull() {
		t.Fatalf("Get on non-object = %v, want null", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	payload := `{"name":"Alice","age":30,"tags":["a","b"],"active":true,"meta":null}`
	var v Value
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var roundTripped Value
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("re-Unmarshal: %v", err)
	}
	if !Equal(v, roundTripped) {
		t.Fatalf("round trip mismatch: %v != %v", v, roundTripped)
	}

	obj, ok := v.AsObject()
	if !ok {
		t.Fatalf("expected object")
	}
	if name, ok := obj["name"].AsString(); !ok || name != "Alice" {
		t.Fatalf("name = %v, %v", name, ok)
	}
}

func TestParseObjectRejectsNonObject(t *testing.T) {
	if _, err := ParseObject([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected error for top-level array")
	}
	if _, err := ParseObject([]byte(`"scalar"`)); err == nil {
		t.Fatalf("expected error for top-level scalar")
	}
	obj, err := ParseObject([]byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	if n, ok := obj["x"].AsNumber(); !ok || n != 1 {
		t.Fatalf("x = %v, %v", n, ok)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindNull:   "null",
		KindBool:   "bool",
		KindNumber: "number",
		KindString: "string",
		KindArray:  "array",
		KindObject: "object",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
