package problem

import (
	"fmt"
	"strconv"
)

// Kind identifies the value domain of a fluent.
type Kind int

const (
	// Bool fluents hold true/false.
	Bool Kind = iota
	// Int fluents hold 64-bit integers and use integer arithmetic.
	Int
	// Real fluents hold float64 values and use real arithmetic.
	Real
	// KindObject fluents hold the name of a declared object.
	KindObject
)

// String returns the yaml/CLI spelling of the kind.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Real:
		return "real"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the yaml/CLI spelling of a kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "":
		return Bool, nil
	case "int":
		return Int, nil
	case "real":
		return Real, nil
	case "object":
		return KindObject, nil
	default:
		return 0, fmt.Errorf("unknown fluent kind %q", s)
	}
}

// Value is an immutable fluent value. The zero Value is boolean false.
type Value struct {
	kind Kind
	b    bool
	i    int64
	r    float64
	o    string
}

// BoolValue returns a Bool Value.
func BoolValue(v bool) Value { return Value{kind: Bool, b: v} }

// IntValue returns an Int Value.
func IntValue(v int64) Value { return Value{kind: Int, i: v} }

// RealValue returns a Real Value.
func RealValue(v float64) Value { return Value{kind: Real, r: v} }

// ObjectValue returns an Object Value holding the given object name.
func ObjectValue(name string) Value { return Value{kind: KindObject, o: name} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload. Only meaningful for Bool values.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload. Only meaningful for Int values.
func (v Value) Int() int64 { return v.i }

// Real returns the float payload. Only meaningful for Real values.
func (v Value) Real() float64 { return v.r }

// Object returns the object name payload. Only meaningful for Object values.
func (v Value) Object() string { return v.o }

// Native returns the value as the Go type used in expression environments:
// bool, int64, float64, or string.
func (v Value) Native() any {
	switch v.kind {
	case Bool:
		return v.b
	case Int:
		return v.i
	case Real:
		return v.r
	case KindObject:
		return v.o
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool { return v == o }

// Encode returns a canonical, unambiguous string encoding. Distinct values
// always encode differently, which makes the encoding usable as a state
// identity component.
func (v Value) Encode() string {
	switch v.kind {
	case Bool:
		if v.b {
			return "b:1"
		}
		return "b:0"
	case Int:
		return "i:" + strconv.FormatInt(v.i, 10)
	case Real:
		return "r:" + strconv.FormatFloat(v.r, 'g', -1, 64)
	case KindObject:
		return "o:" + v.o
	default:
		return "?"
	}
}

// String returns a human-readable rendering.
func (v Value) String() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.b)
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Real:
		return strconv.FormatFloat(v.r, 'g', -1, 64)
	case KindObject:
		return v.o
	default:
		return "<invalid>"
	}
}

// FromNative converts a Go value produced by an expression or script
// evaluation into a Value. Integral Go types become Int, float64 becomes
// Real, bool becomes Bool, and string becomes Object.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int8:
		return IntValue(int64(t)), nil
	case int16:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint:
		return IntValue(int64(t)), nil
	case uint8:
		return IntValue(int64(t)), nil
	case uint16:
		return IntValue(int64(t)), nil
	case uint32:
		return IntValue(int64(t)), nil
	case uint64:
		return IntValue(int64(t)), nil
	case float32:
		return RealValue(float64(t)), nil
	case float64:
		return RealValue(t), nil
	case string:
		return ObjectValue(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// Coerce converts a Go value produced by an expression evaluation into a
// Value of the given kind. Int results are accepted for Real fluents (the
// payload is converted); Real results are never accepted for Int fluents.
func Coerce(x any, kind Kind) (Value, error) {
	v, err := FromNative(x)
	if err != nil {
		return Value{}, err
	}
	if v.kind == kind {
		return v, nil
	}
	if kind == Real && v.kind == Int {
		return RealValue(float64(v.i)), nil
	}
	return Value{}, fmt.Errorf("expected %s value, got %s (%v)", kind, v.kind, x)
}
