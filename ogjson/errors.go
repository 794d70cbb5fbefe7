package ogjson

import (
	"fmt"
	"reflect"
)

// UnsupportedTypeError reports a type the codec cannot encode or decode:
// no accessible fields, no registered converter, and not a primitive or
// container kind.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("ogjson: unsupported type %s", e.Type)
}

// DanglingReferenceError reports a $ref token whose id was never
// registered by a preceding $id in the same document.
type DanglingReferenceError struct {
	ID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("ogjson: dangling reference %q", e.ID)
}

// MalformedNumberError reports a string token that was accepted for a
// numeric field but does not parse as a number.
type MalformedNumberError struct {
	Field   string
	Literal string
}

func (e *MalformedNumberError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ogjson: malformed number %q", e.Literal)
	}
	return fmt.Sprintf("ogjson: malformed number %q for field %s", e.Literal, e.Field)
}

// UnsupportedKeyTypeError reports a map key type with no defined string
// conversion.
type UnsupportedKeyTypeError struct {
	KeyType reflect.Type
}

func (e *UnsupportedKeyTypeError) Error() string {
	return fmt.Sprintf("ogjson: unsupported map key type %s", e.KeyType)
}

// ConstructorArityError reports a constructor slot that is missing from
// the JSON object or whose value does not match the parameter type.
type ConstructorArityError struct {
	Type  reflect.Type
	Slot  string
	Cause error
}

func (e *ConstructorArityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ogjson: constructor slot %q of %s: %v", e.Slot, e.Type, e.Cause)
	}
	return fmt.Sprintf("ogjson: constructor slot %q of %s missing from input", e.Slot, e.Type)
}

func (e *ConstructorArityError) Unwrap() error { return e.Cause }
