// Package pipeline implements the Runnable algebra that binds a
// declaratively composed transform graph to a queue: the small set of
// primitives (echo, select, assign, const, original, function lifting)
// and their composition operator, modeled in Go as method chaining
// since there is no operator overloading to spell `A | B` directly.
package pipeline

import (
	"context"
	"fmt"

	"github.com/aimq-dev/aimq/value"
)

// Context is the read-only side channel available to a Runnable
// during Invoke: the Job's metadata (queue, message_id, read_count,
// enqueued_at, tags). Pipelines never write it; it is discarded once
// the job finalizes.
type Context struct {
	Original value.Object
}

// Get looks up a key in the original context, returning Null if
// absent.
func (c Context) Get(key string) value.Value {
	return c.Original[key]
}

// Lookup looks up a key in the original context, reporting whether it
// was present.
func (c Context) Lookup(key string) (value.Value, bool) {
	v, ok := c.Original[key]
	return v, ok
}

// Runnable is a single node (or composed graph of nodes) in a
// pipeline. Invoke receives the current value and the job's Context
// and produces the next value or an error.
type Runnable interface {
	Invoke(ctx context.Context, in value.Value, pc Context) (value.Value, error)
}

// RunnableFunc adapts a plain function to the Runnable interface.
type RunnableFunc func(ctx context.Context, in value.Value, pc Context) (value.Value, error)

func (f RunnableFunc) Invoke(ctx context.Context, in value.Value, pc Context) (value.Value, error) {
	return f(ctx, in, pc)
}

// ErrorKind classifies why a Runnable failed.
type ErrorKind uint8

const (
	// TypeMismatch indicates select or assign was invoked against a
	// non-Object value.
	TypeMismatch ErrorKind = iota
	// MissingOriginal indicates original referenced a key absent from
	// the job's side-channel context.
	MissingOriginal
	// Failed indicates a user-supplied function runnable returned an
	// error.
	Failed
)

func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "type_mismatch"
	case MissingOriginal:
		return "missing_original"
	default:
		return "failed"
	}
}

// Error is the structured failure a Runnable reports. The processor
// treats every Error as a pipeline failure: the job is archived, never
// deleted, and never retried automatically.
type Error struct {
	Kind  ErrorKind
	Key   string
	Cause error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("pipeline: %s: %q: %v", e.Kind, e.Key, e.Cause)
	}
	return fmt.Sprintf("pipeline: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func typeMismatch(got value.Kind) error {
	return &Error{Kind: TypeMismatch, Cause: fmt.Errorf("expected object, got %s", got)}
}

// chain composes two Runnables so that a's output becomes b's input:
// the Go equivalent of the spec's `a | b` operator.
type chain struct {
	a, b Runnable
}

func (c *chain) Invoke(ctx context.Context, in value.Value, pc Context) (value.Value, error) {
	mid, err := c.a.Invoke(ctx, in, pc)
	if err != nil {
		return value.Null(), err
	}
	return c.b.Invoke(ctx, mid, pc)
}

// Then composes a followed by b into a single Runnable.
func Then(a, b Runnable) Runnable {
	return &chain{a: a, b: b}
}

// chainable wraps any Runnable with a Then method, so calls can be
// written fluently as r.Then(other).Then(another).
type chainable struct {
	Runnable
}

// Then returns a Runnable equivalent to running r then next.
func (c chainable) Then(next Runnable) Runnable {
	return wrap(Then(c.Runnable, next))
}

func wrap(r Runnable) chainable {
	return chainable{Runnable: r}
}

// echo passes its input through unchanged.
type echo struct{}

func (echo) Invoke(_ context.Context, in value.Value, _ Context) (value.Value, error) {
	return in, nil
}

// Echo returns the identity Runnable.
func Echo() chainable {
	return wrap(echo{})
}

// selectOp projects a subset of keys from an Object input.
type selectOp struct {
	keys []string
}

func (s *selectOp) Invoke(_ context.Context, in value.Value, _ Context) (value.Value, error) {
	obj, ok := in.AsObject()
	if !ok {
		return value.Null(), typeMismatch(in.Kind())
	}
	out := make(value.Object, len(s.keys))
	for _, k := range s.keys {
		v, present := obj[k]
		if !present {
			continue
		}
		out[k] = v
	}
	return value.FromObject(out), nil
}

// Select projects the intersection of the given keys with the input
// object's own keys; keys absent from the input are omitted from the
// result rather than raising an error.
func Select(keys ...string) chainable {
	return wrap(&selectOp{keys: keys})
}

// assignOp computes a set of named fields from sub-Runnables run
// against the same input and merges them onto the input object.
type assignOp struct {
	fields map[string]Runnable
}

func (a *assignOp) Invoke(ctx context.Context, in value.Value, pc Context) (value.Value, error) {
	obj, ok := in.AsObject()
	if !ok {
		return value.Null(), typeMismatch(in.Kind())
	}
	out := obj.Clone()
	for name, source := range a.fields {
		v, err := source.Invoke(ctx, in, pc)
		if err != nil {
			return value.Null(), err
		}
		out[name] = v
	}
	return value.FromObject(out), nil
}

// Assign evaluates each named source Runnable against the current
// input and merges the results into the input object under the given
// field names, leaving existing fields not named in fields untouched.
func Assign(fields map[string]Runnable) chainable {
	return wrap(&assignOp{fields: fields})
}

// constOp always produces the same value, ignoring its input.
type constOp struct {
	v value.Value
}

func (c constOp) Invoke(_ context.Context, _ value.Value, _ Context) (value.Value, error) {
	return c.v, nil
}

// Const returns a Runnable that always produces v.
func Const(v value.Value) chainable {
	return wrap(constOp{v: v})
}

// originalOp reads a key out of the job's side-channel Context,
// ignoring the pipeline's current value.
type originalOp struct {
	key string
}

func (o originalOp) Invoke(_ context.Context, _ value.Value, pc Context) (value.Value, error) {
	v, ok := pc.Lookup(o.key)
	if !ok {
		return value.Null(), &Error{Kind: MissingOriginal, Key: o.key, Cause: fmt.Errorf("key %q not present in original context", o.key)}
	}
	return v, nil
}

// Original returns a Runnable that reads key from the job's original
// metadata (queue, message_id, read_count, enqueued_at, tags), failing
// with MissingOriginal if the key is absent.
func Original(key string) chainable {
	return wrap(originalOp{key: key})
}

// Adapter is a plain transform function: it receives the payload
// object and the side-channel context and returns a new value.
type Adapter func(ctx context.Context, in value.Object, pc Context) (value.Value, error)

type funcOp struct {
	fn Adapter
}

func (f funcOp) Invoke(ctx context.Context, in value.Value, pc Context) (value.Value, error) {
	obj, ok := in.AsObject()
	if !ok {
		return value.Null(), typeMismatch(in.Kind())
	}
	out, err := f.fn(ctx, obj, pc)
	if err != nil {
		return value.Null(), &Error{Kind: Failed, Cause: err}
	}
	return out, nil
}

// Func lifts a plain Go function into a Runnable, the pipeline
// equivalent of registering a bare handler via Worker.Task.
func Func(fn Adapter) chainable {
	return wrap(funcOp{fn: fn})
}
