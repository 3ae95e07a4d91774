package editor

import (
	"fmt"
)

// PropertyKind is the type tag of a PropertyValue.
type PropertyKind int

const (
	KindBool PropertyKind = iota + 1
	KindNumber
	KindString
)

func (k PropertyKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// PropertyValue is a typed value for reflected actor properties.
type PropertyValue struct {
	Kind   PropertyKind
	Bool   bool
	Number float64
	String string
}

func BoolValue(b bool) PropertyValue      { return PropertyValue{Kind: KindBool, Bool: b} }
func NumberValue(n float64) PropertyValue { return PropertyValue{Kind: KindNumber, Number: n} }
func StringValue(s string) PropertyValue  { return PropertyValue{Kind: KindString, String: s} }

// PropertyValueFromJSON converts a decoded JSON scalar. Arrays, objects and
// null are rejected.
func PropertyValueFromJSON(v any) (PropertyValue, error) {
	switch x := v.(type) {
	case bool:
		return BoolValue(x), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case string:
		return StringValue(x), nil
	case nil:
		return PropertyValue{}, fmt.Errorf("null is not a property value")
	default:
		return PropertyValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// JSON returns the value as a plain JSON scalar.
func (p PropertyValue) JSON() any {
	switch p.Kind {
	case KindBool:
		return p.Bool
	case KindNumber:
		return p.Number
	case KindString:
		return p.String
	default:
		return nil
	}
}
