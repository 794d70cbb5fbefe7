package ogjson

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-json-experiment/json/jsontext"
)

// decodeState carries the per-call collaborators of one Decode. Nested
// decoders created for buffered constructor members share the same
// reference tracker.
type decodeState struct {
	codec *Codec
	dec   *jsontext.Decoder
	refs  *referenceTracker
}

// fieldCtx names the member being decoded (for error reporting) and
// carries the numeric handling in effect.
type fieldCtx struct {
	name string
	nums NumberHandling
}

func (d *decodeState) decodeValue(v reflect.Value, ctx fieldCtx) error {
	if conv, ok := d.codec.converters.lookup(v.Type()); ok {
		raw, err := d.dec.ReadValue()
		if err != nil {
			return err
		}
		if raw.Kind() == 'n' && !conv.HandlesNull {
			v.SetZero()
			return nil
		}
		got, err := conv.Decode(raw)
		if err != nil {
			return fmt.Errorf("ogjson: converter for %s: %w", v.Type(), err)
		}
		return assign(v, got)
	}

	switch v.Kind() {
	case reflect.Pointer:
		if d.dec.PeekKind() == 'n' {
			if _, err := d.dec.ReadToken(); err != nil {
				return err
			}
			v.SetZero()
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Struct {
			if _, ok := d.codec.converters.lookup(v.Type().Elem()); !ok {
				return d.decodeStructPointer(v, ctx)
			}
		}
		elem := reflect.New(v.Type().Elem())
		if err := d.decodeValue(elem.Elem(), ctx); err != nil {
			return err
		}
		v.Set(elem)
		return nil

	case reflect.Struct:
		return d.decodeStruct(v, ctx)

	case reflect.Map:
		return d.decodeMap(v, ctx)

	case reflect.Slice:
		return d.decodeSlice(v, ctx)

	case reflect.Array:
		return d.decodeArray(v, ctx)

	case reflect.Interface:
		if v.NumMethod() != 0 {
			return &UnsupportedTypeError{Type: v.Type()}
		}
		got, err := d.decodeAny(ctx)
		if err != nil {
			return err
		}
		if got == nil {
			v.SetZero()
			return nil
		}
		v.Set(reflect.ValueOf(got))
		return nil

	case reflect.Bool:
		tok, err := d.dec.ReadToken()
		if err != nil {
			return err
		}
		switch tok.Kind() {
		case 't', 'f':
			v.SetBool(tok.Bool())
		case 'n':
			v.SetZero()
		default:
			return d.mismatch(ctx, "bool", tok.Kind())
		}
		return nil

	case reflect.String:
		tok, err := d.dec.ReadToken()
		if err != nil {
			return err
		}
		switch tok.Kind() {
		case '"':
			v.SetString(tok.String())
		case 'n':
			v.SetZero()
		default:
			return d.mismatch(ctx, "string", tok.Kind())
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return d.decodeNumber(v, ctx)

	default:
		return &UnsupportedTypeError{Type: v.Type()}
	}
}

// decodeNumber accepts a JSON number token, or a JSON string token when
// AllowReadingFromString is in effect for this field.
func (d *decodeState) decodeNumber(v reflect.Value, ctx fieldCtx) error {
	switch k := d.dec.PeekKind(); k {
	case '0':
		raw, err := d.dec.ReadValue()
		if err != nil {
			return err
		}
		return setNumber(v, string(raw), ctx.name)
	case '"':
		if ctx.nums&AllowReadingFromString == 0 {
			return d.mismatch(ctx, "number", k)
		}
		tok, err := d.dec.ReadToken()
		if err != nil {
			return err
		}
		return setNumber(v, tok.String(), ctx.name)
	case 'n':
		if _, err := d.dec.ReadToken(); err != nil {
			return err
		}
		v.SetZero()
		return nil
	default:
		return d.mismatch(ctx, "number", k)
	}
}

// setNumber parses a decimal literal into a numeric value.
func setNumber(v reflect.Value, lit, field string) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 10, v.Type().Bits())
		if err != nil {
			return &MalformedNumberError{Field: field, Literal: lit}
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(lit, 10, v.Type().Bits())
		if err != nil {
			return &MalformedNumberError{Field: field, Literal: lit}
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(lit, v.Type().Bits())
		if err != nil {
			return &MalformedNumberError{Field: field, Literal: lit}
		}
		v.SetFloat(n)
	}
	return nil
}

// decodeStructPointer allocates the target shell before filling fields,
// so a cyclic $ref inside the payload resolves to the partially filled
// object.
func (d *decodeState) decodeStructPointer(v reflect.Value, ctx fieldCtx) error {
	if err := d.expect('{', ctx); err != nil {
		return err
	}
	shell := reflect.New(v.Type().Elem())
	res, err := d.fillStructMembers(shell, ctx)
	if err != nil {
		return err
	}
	if !res.Type().AssignableTo(v.Type()) {
		return fmt.Errorf("ogjson: reference of type %s cannot be assigned to %s", res.Type(), v.Type())
	}
	v.Set(res)
	return nil
}

// decodeStruct fills a value struct in place. Back-references to value
// structs copy the referenced object; identity cannot survive a value
// assignment.
func (d *decodeState) decodeStruct(v reflect.Value, ctx fieldCtx) error {
	if d.dec.PeekKind() == 'n' {
		if _, err := d.dec.ReadToken(); err != nil {
			return err
		}
		v.SetZero()
		return nil
	}
	if err := d.expect('{', ctx); err != nil {
		return err
	}
	if !v.CanAddr() {
		return fmt.Errorf("ogjson: cannot decode into unaddressable %s", v.Type())
	}
	res, err := d.fillStructMembers(v.Addr(), ctx)
	if err != nil {
		return err
	}
	if res.Kind() == reflect.Pointer && res.Pointer() == v.Addr().Pointer() {
		return nil // filled in place
	}
	ref := res
	if ref.Kind() == reflect.Pointer {
		ref = ref.Elem()
	}
	if !ref.Type().AssignableTo(v.Type()) {
		return fmt.Errorf("ogjson: reference of type %s cannot be assigned to %s", res.Type(), v.Type())
	}
	v.Set(ref)
	return nil
}

// bufferedMember is one JSON member held back until the constructor has
// run.
type bufferedMember struct {
	name string
	raw  jsontext.Value
}

// fillStructMembers consumes members up to the closing brace, filling
// the struct behind shell. It returns the value the surrounding document
// should use: shell itself, or the resolved target of a $ref object.
//
// The object-start token has already been consumed.
func (d *decodeState) fillStructMembers(shell reflect.Value, ctx fieldCtx) (reflect.Value, error) {
	t := shell.Type().Elem()
	desc, err := d.codec.describe(t)
	if err != nil {
		return reflect.Value{}, err
	}
	ctorFn, hasCtor := d.codec.constructorFor(t)

	var buffered []bufferedMember
	seen := make(map[string]bool)
	anyMember := false

	for {
		tok, err := d.dec.ReadToken()
		if err != nil {
			return reflect.Value{}, err
		}
		if tok.Kind() == '}' {
			break
		}
		name := tok.String()

		switch {
		case name == refRefKey && d.codec.opts.PreserveReferences:
			if anyMember {
				return reflect.Value{}, fmt.Errorf("ogjson: $ref must be the only member of its object")
			}
			idTok, err := d.dec.ReadToken()
			if err != nil {
				return reflect.Value{}, err
			}
			if idTok.Kind() != '"' {
				return reflect.Value{}, fmt.Errorf("ogjson: $ref id must be a string")
			}
			resolved, err := d.refs.resolve(idTok.String())
			if err != nil {
				return reflect.Value{}, err
			}
			end, err := d.dec.ReadToken()
			if err != nil {
				return reflect.Value{}, err
			}
			if end.Kind() != '}' {
				return reflect.Value{}, fmt.Errorf("ogjson: $ref must be the only member of its object")
			}
			return resolved, nil

		case name == refIDKey && d.codec.opts.PreserveReferences:
			idTok, err := d.dec.ReadToken()
			if err != nil {
				return reflect.Value{}, err
			}
			if idTok.Kind() != '"' {
				return reflect.Value{}, fmt.Errorf("ogjson: $id must be a string")
			}
			d.refs.register(idTok.String(), shell)
			anyMember = true

		default:
			anyMember = true
			if hasCtor {
				raw, err := d.dec.ReadValue()
				if err != nil {
					return reflect.Value{}, err
				}
				buffered = append(buffered, bufferedMember{name: name, raw: raw})
				seen[name] = true
				continue
			}
			fd, ok := desc.Field(name)
			if !ok || fd.effectiveIgnore(d.codec.opts) == IgnoreAlways {
				if err := d.dec.SkipValue(); err != nil {
					return reflect.Value{}, err
				}
				continue
			}
			fctx := fieldCtx{name: fd.Name, nums: d.codec.opts.NumberHandling | fd.Numbers}
			if err := d.decodeValue(shell.Elem().Field(fd.Index), fctx); err != nil {
				return reflect.Value{}, err
			}
			seen[fd.Name] = true
		}
	}

	if hasCtor {
		if err := d.construct(shell, desc, ctorFn, buffered); err != nil {
			return reflect.Value{}, err
		}
	}
	if err := d.applyNullConverters(shell.Elem(), desc, seen); err != nil {
		return reflect.Value{}, err
	}
	return shell, nil
}

// construct invokes the registered constructor with the buffered ctor
// slots, copies the result into the shell (keeping any registered id
// valid), then assigns the remaining members.
func (d *decodeState) construct(shell reflect.Value, desc *TypeDescriptor, ctorFn reflect.Value, buffered []bufferedMember) error {
	t := shell.Type().Elem()
	ft := ctorFn.Type()
	if ft.NumIn() != len(desc.CtorSlots) {
		return &ConstructorArityError{
			Type:  t,
			Cause: fmt.Errorf("constructor takes %d parameters, type declares %d slots", ft.NumIn(), len(desc.CtorSlots)),
		}
	}

	byName := make(map[string]jsontext.Value, len(buffered))
	for _, m := range buffered {
		byName[m.name] = m.raw
	}

	args := make([]reflect.Value, 0, ft.NumIn())
	for si, fi := range desc.CtorSlots {
		fd := &desc.Fields[fi]
		raw, ok := byName[fd.Name]
		if !ok {
			return &ConstructorArityError{Type: t, Slot: fd.Name}
		}
		arg := reflect.New(ft.In(si)).Elem()
		fctx := fieldCtx{name: fd.Name, nums: d.codec.opts.NumberHandling | fd.Numbers}
		if err := d.decodeRaw(raw, arg, fctx); err != nil {
			return &ConstructorArityError{Type: t, Slot: fd.Name, Cause: err}
		}
		args = append(args, arg)
	}

	result := ctorFn.Call(args)[0]
	if result.Kind() == reflect.Pointer {
		if result.IsNil() {
			return fmt.Errorf("ogjson: constructor for %s returned nil", t)
		}
		result = result.Elem()
	}
	shell.Elem().Set(result)

	// Remaining members apply over the constructed value, in document
	// order.
	slotName := make(map[string]bool, len(desc.CtorSlots))
	for _, fi := range desc.CtorSlots {
		slotName[desc.Fields[fi].Name] = true
	}
	for _, m := range buffered {
		if slotName[m.name] {
			continue
		}
		fd, ok := desc.Field(m.name)
		if !ok || fd.effectiveIgnore(d.codec.opts) == IgnoreAlways {
			continue
		}
		fctx := fieldCtx{name: fd.Name, nums: d.codec.opts.NumberHandling | fd.Numbers}
		if err := d.decodeRaw(m.raw, shell.Elem().Field(fd.Index), fctx); err != nil {
			return err
		}
	}
	return nil
}

// applyNullConverters hands absent members to HandlesNull converters so
// they can supply substitutes.
func (d *decodeState) applyNullConverters(v reflect.Value, desc *TypeDescriptor, seen map[string]bool) error {
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		if seen[fd.Name] {
			continue
		}
		conv, ok := d.codec.converters.lookup(fd.Type)
		if !ok || !conv.HandlesNull {
			continue
		}
		got, err := conv.Decode(jsonNull)
		if err != nil {
			return fmt.Errorf("ogjson: converter for %s: %w", fd.Type, err)
		}
		if err := assign(v.Field(fd.Index), got); err != nil {
			return err
		}
	}
	return nil
}

// decodeRaw decodes a buffered raw value with a nested decoder sharing
// this call's reference tracker.
func (d *decodeState) decodeRaw(raw jsontext.Value, v reflect.Value, ctx fieldCtx) error {
	sub := &decodeState{
		codec: d.codec,
		dec:   jsontext.NewDecoder(bytes.NewReader(raw)),
		refs:  d.refs,
	}
	return sub.decodeValue(v, ctx)
}

func (d *decodeState) decodeMap(v reflect.Value, ctx fieldCtx) error {
	if d.dec.PeekKind() == 'n' {
		if _, err := d.dec.ReadToken(); err != nil {
			return err
		}
		v.SetZero()
		return nil
	}
	if err := d.expect('{', ctx); err != nil {
		return err
	}

	t := v.Type()
	m := reflect.MakeMap(t)
	anyMember := false

	for {
		tok, err := d.dec.ReadToken()
		if err != nil {
			return err
		}
		if tok.Kind() == '}' {
			break
		}
		name := tok.String()

		switch {
		case name == refRefKey && d.codec.opts.PreserveReferences:
			if anyMember {
				return fmt.Errorf("ogjson: $ref must be the only member of its object")
			}
			idTok, err := d.dec.ReadToken()
			if err != nil {
				return err
			}
			if idTok.Kind() != '"' {
				return fmt.Errorf("ogjson: $ref id must be a string")
			}
			resolved, err := d.refs.resolve(idTok.String())
			if err != nil {
				return err
			}
			end, err := d.dec.ReadToken()
			if err != nil {
				return err
			}
			if end.Kind() != '}' {
				return fmt.Errorf("ogjson: $ref must be the only member of its object")
			}
			if !resolved.Type().AssignableTo(t) {
				return fmt.Errorf("ogjson: reference of type %s cannot be assigned to %s", resolved.Type(), t)
			}
			v.Set(resolved)
			return nil

		case name == refIDKey && d.codec.opts.PreserveReferences:
			idTok, err := d.dec.ReadToken()
			if err != nil {
				return err
			}
			if idTok.Kind() != '"' {
				return fmt.Errorf("ogjson: $id must be a string")
			}
			d.refs.register(idTok.String(), m)
			anyMember = true

		default:
			anyMember = true
			key, err := parseKey(name, t.Key(), ctx)
			if err != nil {
				return err
			}
			val := reflect.New(t.Elem()).Elem()
			if err := d.decodeValue(val, fieldCtx{name: name, nums: ctx.nums}); err != nil {
				return err
			}
			m.SetMapIndex(key, val)
		}
	}
	v.Set(m)
	return nil
}

// parseKey reverses stringifyKey for a map key type.
func parseKey(name string, kt reflect.Type, ctx fieldCtx) (reflect.Value, error) {
	if reflect.PointerTo(kt).Implements(textUnmarshalerType) {
		key := reflect.New(kt)
		if err := key.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(name)); err != nil {
			return reflect.Value{}, fmt.Errorf("ogjson: map key %q: %w", name, err)
		}
		return key.Elem(), nil
	}
	key := reflect.New(kt).Elem()
	switch kt.Kind() {
	case reflect.String:
		key.SetString(name)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, &MalformedNumberError{Field: ctx.name, Literal: name}
		}
		key.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(name, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, &MalformedNumberError{Field: ctx.name, Literal: name}
		}
		key.SetUint(n)
	default:
		return reflect.Value{}, &UnsupportedKeyTypeError{KeyType: kt}
	}
	return key, nil
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func (d *decodeState) decodeSlice(v reflect.Value, ctx fieldCtx) error {
	if d.dec.PeekKind() == 'n' {
		if _, err := d.dec.ReadToken(); err != nil {
			return err
		}
		v.SetZero()
		return nil
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		tok, err := d.dec.ReadToken()
		if err != nil {
			return err
		}
		if tok.Kind() != '"' {
			return d.mismatch(ctx, "base64 string", tok.Kind())
		}
		b, err := base64.StdEncoding.DecodeString(tok.String())
		if err != nil {
			return fmt.Errorf("ogjson: field %s: %w", ctx.name, err)
		}
		v.SetBytes(b)
		return nil
	}

	if err := d.expect('[', ctx); err != nil {
		return err
	}
	out := reflect.MakeSlice(v.Type(), 0, 4)
	for d.dec.PeekKind() != ']' {
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := d.decodeValue(elem, ctx); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	if _, err := d.dec.ReadToken(); err != nil {
		return err
	}
	v.Set(out)
	return nil
}

func (d *decodeState) decodeArray(v reflect.Value, ctx fieldCtx) error {
	if err := d.expect('[', ctx); err != nil {
		return err
	}
	i := 0
	for d.dec.PeekKind() != ']' {
		if i < v.Len() {
			if err := d.decodeValue(v.Index(i), ctx); err != nil {
				return err
			}
		} else if err := d.dec.SkipValue(); err != nil {
			return err
		}
		i++
	}
	_, err := d.dec.ReadToken()
	return err
}

// decodeAny builds an untyped value: bool, float64, string, nil,
// []any, or map[string]any.
func (d *decodeState) decodeAny(ctx fieldCtx) (any, error) {
	switch k := d.dec.PeekKind(); k {
	case 'n':
		_, err := d.dec.ReadToken()
		return nil, err
	case 't', 'f':
		tok, err := d.dec.ReadToken()
		if err != nil {
			return nil, err
		}
		return tok.Bool(), nil
	case '"':
		tok, err := d.dec.ReadToken()
		if err != nil {
			return nil, err
		}
		return tok.String(), nil
	case '0':
		raw, err := d.dec.ReadValue()
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, &MalformedNumberError{Field: ctx.name, Literal: string(raw)}
		}
		return n, nil
	case '[':
		if _, err := d.dec.ReadToken(); err != nil {
			return nil, err
		}
		var out []any
		for d.dec.PeekKind() != ']' {
			elem, err := d.decodeAny(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		if _, err := d.dec.ReadToken(); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		if _, err := d.dec.ReadToken(); err != nil {
			return nil, err
		}
		out := make(map[string]any)
		for {
			tok, err := d.dec.ReadToken()
			if err != nil {
				return nil, err
			}
			if tok.Kind() == '}' {
				return out, nil
			}
			name := tok.String()
			val, err := d.decodeAny(fieldCtx{name: name, nums: ctx.nums})
			if err != nil {
				return nil, err
			}
			out[name] = val
		}
	default:
		return nil, fmt.Errorf("ogjson: unexpected token kind %q", byte(k))
	}
}

// expect consumes one token and checks its kind.
func (d *decodeState) expect(kind jsontext.Kind, ctx fieldCtx) error {
	tok, err := d.dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != kind {
		return d.mismatch(ctx, fmt.Sprintf("%q", byte(kind)), tok.Kind())
	}
	return nil
}

func (d *decodeState) mismatch(ctx fieldCtx, want string, got jsontext.Kind) error {
	if ctx.name != "" {
		return fmt.Errorf("ogjson: field %s: expected %s, got %q", ctx.name, want, byte(got))
	}
	return fmt.Errorf("ogjson: expected %s, got %q", want, byte(got))
}

// assign stores a converter result into a field, converting between
// compatible types.
func assign(v reflect.Value, got any) error {
	if got == nil {
		v.SetZero()
		return nil
	}
	rv := reflect.ValueOf(got)
	switch {
	case rv.Type().AssignableTo(v.Type()):
		v.Set(rv)
	case rv.Type().ConvertibleTo(v.Type()):
		v.Set(rv.Convert(v.Type()))
	default:
		return fmt.Errorf("ogjson: converter produced %s, want %s", rv.Type(), v.Type())
	}
	return nil
}
