package ogjson

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-json-experiment/json/jsontext"
)

// Codec encodes and decodes object graphs. Configure converters and
// constructors before first use; a Codec is safe for concurrent
// Encode/Decode calls afterwards.
type Codec struct {
	opts         Options
	converters   *ConverterRegistry
	constructors map[reflect.Type]reflect.Value

	// descriptors memoizes TypeDescriptors by reflect.Type. Reads are
	// lock-free; racing first builds converge via LoadOrStore.
	descriptors sync.Map
}

// New creates a codec with the given options and no converters.
func New(opts Options) *Codec {
	return NewWithConverters(opts, nil)
}

// NewWithConverters creates a codec borrowing a caller-owned registry.
// The registry must not be modified after this call.
func NewWithConverters(opts Options, reg *ConverterRegistry) *Codec {
	return &Codec{
		opts:         opts,
		converters:   reg,
		constructors: make(map[reflect.Type]reflect.Value),
	}
}

// RegisterConstructor binds a constructing function to its result type.
// fn must be a func whose single result is the struct type (or pointer
// to it); its parameters map positionally to the type's ctor-tagged
// fields. Call before the first Encode/Decode involving the type.
func (c *Codec) RegisterConstructor(fn any) error {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return fmt.Errorf("ogjson: constructor must be a func, got %T", fn)
	}
	ft := fv.Type()
	if ft.NumOut() != 1 {
		return fmt.Errorf("ogjson: constructor must return exactly one value, got %d", ft.NumOut())
	}
	t := ft.Out(0)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("ogjson: constructor must return a struct or struct pointer, got %s", ft.Out(0))
	}
	c.constructors[t] = fv
	return nil
}

// Encode renders a value as JSON text.
func (c *Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	var jopts []jsontext.Options
	if c.opts.Indent {
		jopts = append(jopts, jsontext.WithIndent("  "))
	}

	e := &encodeState{
		codec: c,
		enc:   jsontext.NewEncoder(&buf, jopts...),
		refs:  newReferenceTracker(),
	}
	if err := e.encodeValue(reflect.ValueOf(v), c.opts.NumberHandling); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses JSON text into target, which must be a non-nil pointer.
// On failure target is left untouched; no partial object escapes.
func (c *Codec) Decode(data []byte, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("ogjson: decode target must be a non-nil pointer, got %T", target)
	}

	d := &decodeState{
		codec: c,
		dec:   jsontext.NewDecoder(bytes.NewReader(data)),
		refs:  newReferenceTracker(),
	}
	scratch := reflect.New(rv.Type().Elem()).Elem()
	if err := d.decodeValue(scratch, fieldCtx{nums: c.opts.NumberHandling}); err != nil {
		return err
	}
	rv.Elem().Set(scratch)
	return nil
}

// Encode renders a value as JSON text with a one-shot codec. For
// converters or constructors, build a Codec with New and reuse it.
func Encode(v any, opts Options) ([]byte, error) {
	return New(opts).Encode(v)
}

// Decode parses JSON text into target with a one-shot codec.
func Decode(data []byte, target any, opts Options) error {
	return New(opts).Decode(data, target)
}

// constructorFor returns the registered constructing func for a struct
// type, if any.
func (c *Codec) constructorFor(t reflect.Type) (reflect.Value, bool) {
	fn, ok := c.constructors[t]
	return fn, ok
}
