package pipeline

import (
	"context"
	"testing"

	"github.com/aimq-dev/aimq/value"
)

func run(t *testing.T, r Runnable, in value.Value, pc Context) value.Value {
	t.Helper()
	out, err := r.Invoke(context.Background(), in, pc)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	return out
}

func TestEchoPassesThrough(t *testing.T) {
	in := value.FromObject(value.Object{"a": value.Number(1)})
	out := run(t, Echo(), in, Context{})
	if !value.Equal(in, out) {
		t.Fatalf("Echo() = %v, want %v", out, in)
	}
}

func TestSelectProjectsKeys(t *testing.T) {
	in := value.FromObject(value.Object{"a": value.Number(1), "c": value.Number(3)})
	out := run(t, Select("a"), in, Context{})
	want := value.FromObject(value.Object{"a": value.Number(1)})
	if !value.Equal(out, want) {
		t.Fatalf("Select(a) = %v, want %v", out, want)
	}
}

func TestSelectMissingKeyIsOmitted(t *testing.T) {
	in := value.FromObject(value.Object{"a": value.Number(1)})
	out := run(t, Select("a", "missing"), in, Context{})
	want := value.FromObject(value.Object{"a": value.Number(1)})
	if !value.Equal(out, want) {
		t.Fatalf("Select(a, missing) = %v, want %v", out, want)
	}
}

func TestSelectOnNonObjectIsTypeMismatch(t *testing.T) {
	_, err := Select("a").Invoke(context.Background(), value.Number(5), Context{})
	var pe *Error
	if !asError(err, &pe) || pe.Kind != TypeMismatch {
		t.Fatalf("err = %v, want TypeMismatch", err)
	}
}

func TestComposeSelectThenAssignConst(t *testing.T) {
	// Matches the spec's worked example: select(["a"]) | assign({"b": const(2)})
	p := Select("a").Then(Assign(map[string]Runnable{"b": Const(value.Number(2))}))
	in := value.FromObject(value.Object{"a": value.Number(1), "c": value.Number(3)})
	out := run(t, p, in, Context{})
	want := value.FromObject(value.Object{"a": value.Number(1), "b": value.Number(2)})
	if !value.Equal(out, want) {
		t.Fatalf("compose = %v, want %v", out, want)
	}
}

func TestOriginalReadsContext(t *testing.T) {
	pc := Context{Original: value.Object{"queue": value.String("emails")}}
	out := run(t, Original("queue"), value.NewObject(), pc)
	if s, ok := out.AsString(); !ok || s != "emails" {
		t.Fatalf("Original(queue) = %v", out)
	}
}

func TestOriginalMissingKeyFails(t *testing.T) {
	_, err := Original("missing").Invoke(context.Background(), value.NewObject(), Context{Original: value.Object{}})
	var pe *Error
	if !asError(err, &pe) || pe.Kind != MissingOriginal {
		t.Fatalf("err = %v, want MissingOriginal", err)
	}
}

func TestFuncLiftsPlainFunction(t *testing.T) {
	fn := Func(func(_ context.Context, in value.Object, _ Context) (value.Value, error) {
		n, _ := in["x"].AsNumber()
		return value.Number(n * 2), nil
	})
	in := value.FromObject(value.Object{"x": value.Number(21)})
	out := run(t, fn, in, Context{})
	if n, ok := out.AsNumber(); !ok || n != 42 {
		t.Fatalf("Func result = %v", out)
	}
}

func asError(err error, target **Error) bool {
	pe, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = pe
	return true
}
