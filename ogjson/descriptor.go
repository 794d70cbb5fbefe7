package ogjson

import (
	"reflect"
	"strings"
)

// FieldDescriptor describes one struct field on the wire.
type FieldDescriptor struct {
	Name     string          // wire name, after tag and naming policy
	Index    int             // index into the struct's fields
	Type     reflect.Type    // field type
	Ignore   IgnoreCondition // per-field condition; ignoreUnset defers to Options
	Numbers  NumberHandling  // per-field flags, OR-ed with Options.NumberHandling
	CtorSlot int             // position among constructor slots, -1 if none
	Tagged   bool            // field carried an ogjson tag
}

// TypeDescriptor is the cached wire description of one struct type.
// Built once per type per Codec; immutable after creation.
type TypeDescriptor struct {
	Type      reflect.Type
	Fields    []FieldDescriptor
	CtorSlots []int // indices into Fields, in slot order

	byName map[string]int
}

// Field returns the descriptor for a wire name.
func (d *TypeDescriptor) Field(name string) (*FieldDescriptor, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[i], true
}

// describe builds or fetches the descriptor for a struct type. The cache
// is read-mostly: lookups are lock-free and racing first inserts converge
// on one canonical descriptor via LoadOrStore.
func (c *Codec) describe(t reflect.Type) (*TypeDescriptor, error) {
	if cached, ok := c.descriptors.Load(t); ok {
		return cached.(*TypeDescriptor), nil
	}

	d, err := buildDescriptor(t, c.opts)
	if err != nil {
		return nil, err
	}

	actual, _ := c.descriptors.LoadOrStore(t, d)
	return actual.(*TypeDescriptor), nil
}

func buildDescriptor(t reflect.Type, opts Options) (*TypeDescriptor, error) {
	d := &TypeDescriptor{
		Type:   t,
		byName: make(map[string]int),
	}

	ctorSlot := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag, tagged := sf.Tag.Lookup("ogjson")
		if !tagged && !opts.IncludeFields {
			continue
		}

		fd := FieldDescriptor{
			Index:    i,
			Type:     sf.Type,
			Ignore:   ignoreUnset,
			CtorSlot: -1,
			Tagged:   tagged,
		}

		name, tagOpts := splitTag(tag)
		if name == "-" && len(tagOpts) == 0 {
			continue
		}
		if name != "" && name != "-" {
			fd.Name = name
		} else if opts.NamingPolicy != nil {
			fd.Name = opts.NamingPolicy(sf.Name)
		} else {
			fd.Name = sf.Name
		}

		skip := false
		for _, opt := range tagOpts {
			switch opt {
			case "ignore":
				skip = true
			case "omitnull":
				fd.Ignore = IgnoreWhenNull
			case "omitzero":
				fd.Ignore = IgnoreWhenZero
			case "always":
				fd.Ignore = IgnoreNever
			case "string":
				fd.Numbers |= WriteAsString
			case "fromstring":
				fd.Numbers |= AllowReadingFromString
			case "ctor":
				fd.CtorSlot = ctorSlot
				ctorSlot++
			}
		}
		if skip {
			continue
		}

		d.byName[fd.Name] = len(d.Fields)
		if fd.CtorSlot >= 0 {
			d.CtorSlots = append(d.CtorSlots, len(d.Fields))
		}
		d.Fields = append(d.Fields, fd)
	}

	if len(d.Fields) == 0 && t.NumField() > 0 {
		// Every field was unexported, untagged, or excluded; the type has
		// no wire representation of its own.
		return nil, &UnsupportedTypeError{Type: t}
	}
	return d, nil
}

// splitTag separates the wire name from the option list.
func splitTag(tag string) (name string, opts []string) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, p := range parts[1:] {
		if p != "" {
			opts = append(opts, p)
		}
	}
	return name, opts
}

// effectiveIgnore resolves a field's condition against the global default.
func (f *FieldDescriptor) effectiveIgnore(opts Options) IgnoreCondition {
	if f.Ignore != ignoreUnset {
		return f.Ignore
	}
	return opts.DefaultIgnore
}

// omits reports whether the field should be left out for this value.
func (f *FieldDescriptor) omits(opts Options, v reflect.Value) bool {
	switch f.effectiveIgnore(opts) {
	case IgnoreAlways:
		return true
	case IgnoreWhenNull:
		switch v.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			return v.IsNil()
		}
		return false
	case IgnoreWhenZero:
		return v.IsZero()
	default:
		return false
	}
}
