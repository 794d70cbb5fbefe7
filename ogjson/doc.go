// Package ogjson implements OGJSON, a reference-preserving object-graph
// JSON codec.
//
// OGJSON maps Go values to and from standard JSON text while keeping the
// shape of the object graph intact: two fields that point at the same
// object before encoding point at the same object after decoding, and
// cyclic graphs round-trip without infinite recursion.
//
// # Features
//
//   - Reference preservation via $id / $ref members
//   - Per-field ignore conditions (never, always, when-null, when-zero)
//   - Numeric fields written as, or read from, JSON strings
//   - Maps with non-string keys (integer or TextMarshaler keys)
//   - Custom per-type converters with explicit null handling
//   - Constructor-based decoding for types built positionally
//
// # Wire Format
//
// With reference preservation enabled, the first encounter of a tracked
// object emits its id followed by the full payload; every later encounter
// emits only a back-reference:
//
//	{
//	  "$id": "1",
//	  "name": "Ana",
//	  "reports": [
//	    {"$id": "2", "name": "Bo", "manager": {"$ref": "1"}}
//	  ]
//	}
//
// A $ref may only point at an id emitted earlier in the same document.
//
// # Struct Tags
//
// Field behavior is controlled with the `ogjson` tag:
//
//	type Employee struct {
//	    Name    string         `ogjson:"name,ctor"`
//	    Level   int            `ogjson:"level,string,omitzero"`
//	    Manager *Employee      `ogjson:"manager,omitnull"`
//	    Reports []*Employee    `ogjson:"reports"`
//	    Secret  string         `ogjson:"-"`
//	}
//
// Recognized options: omitnull, omitzero, always, string, fromstring,
// ctor, and "-" (or "ignore") to exclude a field entirely.
//
// # Example
//
//	codec := ogjson.New(ogjson.Options{
//	    PreserveReferences: true,
//	    IncludeFields:      true,
//	})
//	data, err := codec.Encode(root)
//	...
//	var out *Employee
//	err = codec.Decode(data, &out)
//
// One Encode or Decode call is a single synchronous transformation with
// no I/O; a Codec is safe for concurrent use once configured.
package ogjson
