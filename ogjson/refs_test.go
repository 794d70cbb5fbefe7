package ogjson

import (
	"errors"
	"reflect"
	"testing"
)

// ============================================================
// Reference Tracker
// ============================================================

func TestReferenceTracker_IDFor(t *testing.T) {
	tracker := newReferenceTracker()

	a := &employee{Name: "a"}
	b := &employee{Name: "b"}

	id, isNew := tracker.idFor(reflect.ValueOf(a))
	if id != "1" || !isNew {
		t.Errorf("first identity: got (%q, %v), want (1, true)", id, isNew)
	}
	id, isNew = tracker.idFor(reflect.ValueOf(b))
	if id != "2" || !isNew {
		t.Errorf("second identity: got (%q, %v), want (2, true)", id, isNew)
	}
	id, isNew = tracker.idFor(reflect.ValueOf(a))
	if id != "1" || isNew {
		t.Errorf("repeat identity: got (%q, %v), want (1, false)", id, isNew)
	}
}

// A struct pointer and a pointer to its first field share an address
// but are different objects; they must not share an id.
func TestReferenceTracker_SameAddressDifferentType(t *testing.T) {
	tracker := newReferenceTracker()

	type inner struct{ V int }
	type outer struct{ In inner }

	o := &outer{In: inner{V: 5}}

	outerID, isNew := tracker.idFor(reflect.ValueOf(o))
	if outerID != "1" || !isNew {
		t.Fatalf("outer identity: got (%q, %v), want (1, true)", outerID, isNew)
	}
	innerID, isNew := tracker.idFor(reflect.ValueOf(&o.In))
	if innerID == outerID {
		t.Error("inner field pointer collided with enclosing struct pointer")
	}
	if !isNew {
		t.Error("inner field pointer treated as already seen")
	}
}

func TestReferenceTracker_Resolve(t *testing.T) {
	tracker := newReferenceTracker()

	shell := reflect.ValueOf(&employee{})
	tracker.register("1", shell)

	got, err := tracker.resolve("1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Pointer() != shell.Pointer() {
		t.Error("resolve returned a different object")
	}

	_, err = tracker.resolve("2")
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
}

func TestTrackable(t *testing.T) {
	var nilPtr *employee
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"pointer", &employee{}, true},
		{"nil pointer", nilPtr, false},
		{"map", map[string]int{}, true},
		{"slice", []int{1}, false},
		{"struct value", employee{}, false},
		{"int", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trackable(reflect.ValueOf(tt.v)); got != tt.want {
				t.Errorf("trackable(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
