package ogjson

import (
	"reflect"
	"strconv"
)

// Member names used on the wire for reference preservation.
const (
	refIDKey  = "$id"
	refRefKey = "$ref"
)

// identityKey names one tracked object. The address alone is not
// enough: a pointer to a struct and a pointer to its first field share
// an address but are distinct objects, so the dynamic type is part of
// the key.
type identityKey struct {
	addr uintptr
	typ  reflect.Type
}

// referenceTracker assigns and resolves reference ids within one
// top-level Encode or Decode call. Never shared across calls, so it
// needs no locking.
type referenceTracker struct {
	// Encode side: object identity -> id, first-seen order.
	ids  map[identityKey]string
	next int

	// Decode side: id -> registered shell or finished object.
	objects map[string]reflect.Value
}

func newReferenceTracker() *referenceTracker {
	return &referenceTracker{
		ids:     make(map[identityKey]string),
		objects: make(map[string]reflect.Value),
		next:    1,
	}
}

// trackable reports whether a value has a stable identity worth tracking.
// Only Go's reference kinds qualify; values are never tracked.
func trackable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		return !v.IsNil()
	}
	return false
}

// idFor returns the id for an identity, assigning a fresh sequential id
// on first sight. isNew reports whether this call assigned it.
func (t *referenceTracker) idFor(v reflect.Value) (id string, isNew bool) {
	key := identityKey{addr: v.Pointer(), typ: v.Type()}
	if id, ok := t.ids[key]; ok {
		return id, false
	}
	id = strconv.Itoa(t.next)
	t.next++
	t.ids[key] = id
	return id, true
}

// register records an object under an id read from a $id member. The
// object may still be a shell whose fields are filled afterwards; cyclic
// $ref tokens resolve to it either way.
func (t *referenceTracker) register(id string, v reflect.Value) {
	t.objects[id] = v
}

// resolve looks up a previously registered id.
func (t *referenceTracker) resolve(id string) (reflect.Value, error) {
	v, ok := t.objects[id]
	if !ok {
		return reflect.Value{}, &DanglingReferenceError{ID: id}
	}
	return v, nil
}
