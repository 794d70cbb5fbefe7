package ogjson

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/go-json-experiment/json/jsontext"
)

// encodeState carries the per-call collaborators of one Encode.
type encodeState struct {
	codec *Codec
	enc   *jsontext.Encoder
	refs  *referenceTracker
}

// encodeValue writes one value. nums is the numeric handling in effect,
// already merged with any per-field flags; it propagates into containers.
func (e *encodeState) encodeValue(v reflect.Value, nums NumberHandling) error {
	if !v.IsValid() {
		return e.enc.WriteToken(jsontext.Null)
	}

	if conv, ok := e.codec.converters.lookup(v.Type()); ok {
		raw, err := conv.Encode(v.Interface())
		if err != nil {
			return fmt.Errorf("ogjson: converter for %s: %w", v.Type(), err)
		}
		return e.enc.WriteValue(raw)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return e.enc.WriteToken(jsontext.Null)
		}
		return e.encodeValue(v.Elem(), nums)

	case reflect.Pointer:
		return e.encodePointer(v, nums)

	case reflect.Struct:
		return e.encodeStruct(v, "")

	case reflect.Map:
		if v.IsNil() {
			return e.enc.WriteToken(jsontext.Null)
		}
		if e.codec.opts.PreserveReferences && trackable(v) {
			id, isNew := e.refs.idFor(v)
			if !isNew {
				return e.writeBackReference(id)
			}
			return e.encodeMap(v, nums, id)
		}
		return e.encodeMap(v, nums, "")

	case reflect.Slice:
		if v.IsNil() {
			return e.enc.WriteToken(jsontext.Null)
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return e.enc.WriteToken(jsontext.String(base64.StdEncoding.EncodeToString(v.Bytes())))
		}
		return e.encodeArray(v, nums)

	case reflect.Array:
		return e.encodeArray(v, nums)

	case reflect.String:
		return e.enc.WriteToken(jsontext.String(v.String()))

	case reflect.Bool:
		return e.enc.WriteToken(jsontext.Bool(v.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if nums&WriteAsString != 0 {
			return e.enc.WriteToken(jsontext.String(strconv.FormatInt(v.Int(), 10)))
		}
		return e.enc.WriteToken(jsontext.Int(v.Int()))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if nums&WriteAsString != 0 {
			return e.enc.WriteToken(jsontext.String(strconv.FormatUint(v.Uint(), 10)))
		}
		return e.enc.WriteToken(jsontext.Uint(v.Uint()))

	case reflect.Float32, reflect.Float64:
		if nums&WriteAsString != 0 {
			bits := 64
			if v.Kind() == reflect.Float32 {
				bits = 32
			}
			return e.enc.WriteToken(jsontext.String(strconv.FormatFloat(v.Float(), 'g', -1, bits)))
		}
		return e.enc.WriteToken(jsontext.Float(v.Float()))

	default:
		return &UnsupportedTypeError{Type: v.Type()}
	}
}

// encodePointer tracks pointer-to-struct identities when reference
// preservation is on; all other pointers pass straight through.
func (e *encodeState) encodePointer(v reflect.Value, nums NumberHandling) error {
	if v.IsNil() {
		return e.enc.WriteToken(jsontext.Null)
	}
	elem := v.Elem()
	if e.codec.opts.PreserveReferences && trackable(v) && elem.Kind() == reflect.Struct {
		if _, ok := e.codec.converters.lookup(elem.Type()); !ok {
			id, isNew := e.refs.idFor(v)
			if !isNew {
				return e.writeBackReference(id)
			}
			return e.encodeStruct(elem, id)
		}
	}
	return e.encodeValue(elem, nums)
}

// encodeStruct writes the included fields of a struct. A non-empty id
// is emitted first as the $id member.
func (e *encodeState) encodeStruct(v reflect.Value, id string) error {
	desc, err := e.codec.describe(v.Type())
	if err != nil {
		return err
	}

	if err := e.enc.WriteToken(jsontext.ObjectStart); err != nil {
		return err
	}
	if id != "" {
		if err := e.writeMemberName(refIDKey); err != nil {
			return err
		}
		if err := e.enc.WriteToken(jsontext.String(id)); err != nil {
			return err
		}
	}

	for i := range desc.Fields {
		fd := &desc.Fields[i]
		fv := v.Field(fd.Index)
		if fd.omits(e.codec.opts, fv) {
			continue
		}
		if err := e.writeMemberName(fd.Name); err != nil {
			return err
		}
		if err := e.encodeValue(fv, e.codec.opts.NumberHandling|fd.Numbers); err != nil {
			return err
		}
	}
	return e.enc.WriteToken(jsontext.ObjectEnd)
}

// encodeMap writes a map as a JSON object, stringifying keys. Entries
// are emitted in sorted key order so output is deterministic.
func (e *encodeState) encodeMap(v reflect.Value, nums NumberHandling, id string) error {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := stringifyKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: k, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	if err := e.enc.WriteToken(jsontext.ObjectStart); err != nil {
		return err
	}
	if id != "" {
		if err := e.writeMemberName(refIDKey); err != nil {
			return err
		}
		if err := e.enc.WriteToken(jsontext.String(id)); err != nil {
			return err
		}
	}
	for _, en := range entries {
		if err := e.writeMemberName(en.key); err != nil {
			return err
		}
		if err := e.encodeValue(en.val, nums); err != nil {
			return err
		}
	}
	return e.enc.WriteToken(jsontext.ObjectEnd)
}

func (e *encodeState) encodeArray(v reflect.Value, nums NumberHandling) error {
	if err := e.enc.WriteToken(jsontext.ArrayStart); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if err := e.encodeValue(v.Index(i), nums); err != nil {
			return err
		}
	}
	return e.enc.WriteToken(jsontext.ArrayEnd)
}

// writeBackReference emits {"$ref":"N"} for an identity already
// serialized earlier in this document.
func (e *encodeState) writeBackReference(id string) error {
	if err := e.enc.WriteToken(jsontext.ObjectStart); err != nil {
		return err
	}
	if err := e.writeMemberName(refRefKey); err != nil {
		return err
	}
	if err := e.enc.WriteToken(jsontext.String(id)); err != nil {
		return err
	}
	return e.enc.WriteToken(jsontext.ObjectEnd)
}

func (e *encodeState) writeMemberName(name string) error {
	return e.enc.WriteToken(jsontext.String(name))
}

// stringifyKey converts a map key to its JSON member name. Integer keys
// use their decimal form; TextMarshaler keys use their text form.
func stringifyKey(k reflect.Value) (string, error) {
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return "", fmt.Errorf("ogjson: map key: %w", err)
		}
		return string(text), nil
	}
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	default:
		return "", &UnsupportedKeyTypeError{KeyType: k.Type()}
	}
}
