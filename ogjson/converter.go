package ogjson

import (
	"reflect"

	"github.com/go-json-experiment/json/jsontext"
)

// Converter owns encode and decode for one type, replacing the default
// reflection walk for values of that type.
type Converter struct {
	// Encode renders a value as a raw JSON value.
	Encode func(v any) (jsontext.Value, error)

	// Decode builds a value from a raw JSON value. When HandlesNull is
	// set it is also invoked with the null literal (including for object
	// members that are absent entirely) and decides the substitute.
	Decode func(data jsontext.Value) (any, error)

	// HandlesNull routes null tokens through Decode instead of
	// short-circuiting to the type's zero value.
	HandlesNull bool
}

// ConverterRegistry maps types to converters. Configure it fully before
// handing it to New; the codec only reads it afterwards.
type ConverterRegistry struct {
	entries map[reflect.Type]Converter
}

// NewConverterRegistry creates an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{entries: make(map[reflect.Type]Converter)}
}

// Register binds a converter to the type of prototype.
//
//	reg.Register(Description(""), ogjson.Converter{...})
func (r *ConverterRegistry) Register(prototype any, c Converter) {
	r.entries[reflect.TypeOf(prototype)] = c
}

// lookup returns the converter for a type, if any.
func (r *ConverterRegistry) lookup(t reflect.Type) (Converter, bool) {
	if r == nil {
		return Converter{}, false
	}
	c, ok := r.entries[t]
	return c, ok
}

// jsonNull is the raw null literal handed to HandlesNull converters.
var jsonNull = jsontext.Value("null")
