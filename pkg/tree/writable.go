package tree

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValueType is the declared type of a writable attribute.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
)

// ParseValueType validates a declared type name. Empty means string.
func ParseValueType(s string) (ValueType, error) {
	switch t := ValueType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeString, nil
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return t, nil
	default:
		return "", fmt.Errorf("unknown value type %q: valid values are string, int, float, bool", s)
	}
}

// Writable declares an attribute that accepts writes and how raw input is
// checked before it is sent to the source.
type Writable struct {
	Path    string
	Type    ValueType
	Choices []string
	// Validate is an optional predicate run on the converted value.
	Validate func(value any) error
}

// convert parses raw according to the declared type and applies choices and
// the validation predicate.
func (w *Writable) convert(raw string) (any, error) {
	reject := func(reason string) error {
		return &ValidationError{Path: w.Path, Value: raw, Reason: reason}
	}
	if len(w.Choices) > 0 && !slices.Contains(w.Choices, raw) {
		return nil, reject("must be one of " + strings.Join(w.Choices, ", "))
	}

	var value any
	switch w.Type {
	case TypeInt:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, reject("not an integer")
		}
		value = i
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, reject("not a number")
		}
		value = f
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, reject("not a boolean")
		}
		value = b
	default:
		value = raw
	}

	if w.Validate != nil {
		if err := w.Validate(value); err != nil {
			return nil, reject(err.Error())
		}
	}
	return value, nil
}
