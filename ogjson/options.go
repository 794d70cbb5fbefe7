package ogjson

import (
	"strings"
	"unicode"
)

// IgnoreCondition controls when a field is omitted from encoded output.
type IgnoreCondition uint8

const (
	// IgnoreNever always emits the field, overriding any global default.
	IgnoreNever IgnoreCondition = iota
	// IgnoreAlways excludes the field from both encode and decode.
	IgnoreAlways
	// IgnoreWhenNull omits nil pointers, maps, slices and interfaces.
	IgnoreWhenNull
	// IgnoreWhenZero omits the field when its value is the type's zero value.
	IgnoreWhenZero
	// ignoreUnset marks a field with no explicit condition; the Options
	// default applies.
	ignoreUnset
)

// String returns the condition name.
func (c IgnoreCondition) String() string {
	switch c {
	case IgnoreNever:
		return "never"
	case IgnoreAlways:
		return "always"
	case IgnoreWhenNull:
		return "when_null"
	case IgnoreWhenZero:
		return "when_zero"
	default:
		return "unset"
	}
}

// NumberHandling is a flag set controlling numeric coercion.
type NumberHandling uint8

const (
	// AllowReadingFromString accepts a JSON string containing a valid
	// decimal number wherever a JSON number is expected.
	AllowReadingFromString NumberHandling = 1 << iota
	// WriteAsString emits numeric values as JSON strings holding their
	// decimal representation.
	WriteAsString
)

// NamingPolicy converts a Go field name to its JSON member name.
// A nil policy uses the field name unchanged.
type NamingPolicy func(string) string

// CamelCase lower-cases the leading run of upper-case letters:
// "Name" -> "name", "URLPath" -> "urlPath".
func CamelCase(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	for i := range runes {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// Keep the last capital of an acronym run when a lower-case
		// letter follows it ("URLPath" -> "urlPath").
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// SnakeCase converts "CreatedAt" to "created_at".
func SnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Options configures a Codec. The zero value is usable but walks only
// ogjson-tagged fields; DefaultOptions is the common starting point.
type Options struct {
	// NamingPolicy renames untagged fields for the wire. Explicit tag
	// names are used verbatim.
	NamingPolicy NamingPolicy

	// DefaultIgnore applies to every field with no per-field condition.
	DefaultIgnore IgnoreCondition

	// NumberHandling applies to every numeric field; per-field "string"
	// and "fromstring" tag options add to it.
	NumberHandling NumberHandling

	// PreserveReferences tracks pointer and map identities and emits
	// $id / $ref members so shared and cyclic graphs round-trip.
	PreserveReferences bool

	// IncludeFields walks all exported fields. When false, only fields
	// carrying an ogjson tag participate.
	IncludeFields bool

	// Indent pretty-prints encoded output with two-space indentation.
	Indent bool
}

// DefaultOptions returns the options most callers want: all exported
// fields included, nothing omitted, compact output.
func DefaultOptions() Options {
	return Options{IncludeFields: true}
}
