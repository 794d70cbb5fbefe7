package ogjson

import (
	"errors"
	"testing"
)

type point struct {
	X     int    `ogjson:"x,ctor"`
	Y     int    `ogjson:"y,ctor"`
	Label string `ogjson:"label"`
}

func newPoint(x, y int) point {
	return point{X: x, Y: y}
}

// ============================================================
// Constructor-Based Decoding
// ============================================================

func TestConstructor_Decode(t *testing.T) {
	codec := New(DefaultOptions())
	if err := codec.RegisterConstructor(newPoint); err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  point
	}{
		{"slots only", `{"x":3,"y":4}`, point{X: 3, Y: 4}},
		{"slots after other members", `{"label":"origin","x":3,"y":4}`, point{X: 3, Y: 4, Label: "origin"}},
		{"unknown members skipped", `{"x":1,"y":2,"z":99}`, point{X: 1, Y: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out point
			if err := codec.Decode([]byte(tt.input), &out); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %+v, want %+v", out, tt.want)
			}
		})
	}
}

func TestConstructor_PointerResult(t *testing.T) {
	type node struct {
		ID   string `ogjson:"id,ctor"`
		Note string `ogjson:"note"`
	}

	codec := New(DefaultOptions())
	err := codec.RegisterConstructor(func(id string) *node {
		return &node{ID: "built:" + id}
	})
	if err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	var out *node
	if err := codec.Decode([]byte(`{"id":"n1","note":"hi"}`), &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.ID != "built:n1" || out.Note != "hi" {
		t.Errorf("got %+v", out)
	}
}

func TestConstructor_MissingSlot(t *testing.T) {
	codec := New(DefaultOptions())
	if err := codec.RegisterConstructor(newPoint); err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	var out point
	err := codec.Decode([]byte(`{"x":3}`), &out)
	var arity *ConstructorArityError
	if !errors.As(err, &arity) {
		t.Fatalf("expected ConstructorArityError, got %v", err)
	}
	if arity.Slot != "y" {
		t.Errorf("expected slot y, got %q", arity.Slot)
	}
}

func TestConstructor_MismatchedSlot(t *testing.T) {
	codec := New(DefaultOptions())
	if err := codec.RegisterConstructor(newPoint); err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	var out point
	err := codec.Decode([]byte(`{"x":"oops","y":4}`), &out)
	var arity *ConstructorArityError
	if !errors.As(err, &arity) {
		t.Fatalf("expected ConstructorArityError, got %v", err)
	}
	if arity.Slot != "x" || arity.Cause == nil {
		t.Errorf("expected slot x with cause, got %+v", arity)
	}
}

func TestConstructor_ParameterCountMismatch(t *testing.T) {
	codec := New(DefaultOptions())
	if err := codec.RegisterConstructor(func(x int) point { return point{X: x} }); err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	var out point
	err := codec.Decode([]byte(`{"x":1,"y":2}`), &out)
	var arity *ConstructorArityError
	if !errors.As(err, &arity) {
		t.Fatalf("expected ConstructorArityError, got %v", err)
	}
}

func TestConstructor_RejectsNonFunc(t *testing.T) {
	codec := New(DefaultOptions())
	if err := codec.RegisterConstructor(42); err == nil {
		t.Fatal("expected error registering non-func constructor")
	}
	if err := codec.RegisterConstructor(func() (point, error) { return point{}, nil }); err == nil {
		t.Fatal("expected error registering multi-result constructor")
	}
}

// A constructor-built object can still carry an id and be the target of
// back-references.
func TestConstructor_WithReferencePreservation(t *testing.T) {
	type wrap struct {
		First  *point `ogjson:"first"`
		Second *point `ogjson:"second"`
	}

	opts := DefaultOptions()
	opts.PreserveReferences = true
	codec := New(opts)
	if err := codec.RegisterConstructor(newPoint); err != nil {
		t.Fatalf("RegisterConstructor failed: %v", err)
	}

	input := `{"first":{"$id":"1","x":3,"y":4},"second":{"$ref":"1"}}`
	var out wrap
	if err := codec.Decode([]byte(input), &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.First != out.Second {
		t.Error("identity lost through constructor path")
	}
	if out.First.X != 3 || out.First.Y != 4 {
		t.Errorf("constructed payload wrong: %+v", out.First)
	}
}
