package device

import (
	"fmt"
	"strings"
)

// CtrlType tags the payload of a control Value.
type CtrlType int

const (
	TypeNone CtrlType = iota
	TypeBool
	TypeInt32
	TypeInt64
	TypeFloat
	TypeString
	TypeRectangle
	TypeSize
)

func (t CtrlType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeRectangle:
		return "rectangle"
	case TypeSize:
		return "size"
	}
	return "none"
}

// Rectangle is a crop/selection region in sensor coordinates.
type Rectangle struct {
	X, Y          int32
	Width, Height uint32
}

// Size is a width/height pair.
type Size struct {
	Width, Height uint32
}

// Value is a typed control value: a scalar or a fixed-length array of
// one of the CtrlType payloads. The zero Value has TypeNone.
type Value struct {
	typ   CtrlType
	array bool

	b    bool
	i    int64
	f    float64
	s    string
	rect Rectangle
	size Size
	ints []int64
	fls  []float64
}

func BoolValue(v bool) Value      { return Value{typ: TypeBool, b: v} }
func Int32Value(v int32) Value    { return Value{typ: TypeInt32, i: int64(v)} }
func Int64Value(v int64) Value    { return Value{typ: TypeInt64, i: v} }
func FloatValue(v float64) Value  { return Value{typ: TypeFloat, f: v} }
func StringValue(v string) Value  { return Value{typ: TypeString, s: v} }
func RectValue(v Rectangle) Value { return Value{typ: TypeRectangle, rect: v} }
func SizeValue(v Size) Value      { return Value{typ: TypeSize, size: v} }

func Int32ArrayValue(vs []int32) Value {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = int64(v)
	}
	return Value{typ: TypeInt32, array: true, ints: out}
}

func Int64ArrayValue(vs []int64) Value {
	return Value{typ: TypeInt64, array: true, ints: append([]int64(nil), vs...)}
}

func FloatArrayValue(vs []float64) Value {
	return Value{typ: TypeFloat, array: true, fls: append([]float64(nil), vs...)}
}

func (v Value) Type() CtrlType { return v.typ }
func (v Value) IsNone() bool   { return v.typ == TypeNone }
func (v Value) IsArray() bool  { return v.array }

// Elems is the element count: 1 for scalars, the length for arrays.
func (v Value) Elems() int {
	if !v.array {
		return 1
	}
	if v.ints != nil {
		return len(v.ints)
	}
	return len(v.fls)
}

func (v Value) Bool() bool            { return v.b }
func (v Value) Int() int64            { return v.i }
func (v Value) Float() float64        { return v.f }
func (v Value) Str() string           { return v.s }
func (v Value) Rect() Rectangle       { return v.rect }
func (v Value) Size() Size            { return v.size }
func (v Value) IntArray() []int64     { return v.ints }
func (v Value) FloatArray() []float64 { return v.fls }

// Numbers flattens a numeric Value to float64 elements for bound
// comparisons. Non-numeric values return nil and are never range
// checked.
func (v Value) Numbers() []float64 {
	switch v.typ {
	case TypeInt32, TypeInt64:
		if v.array {
			out := make([]float64, len(v.ints))
			for i, n := range v.ints {
				out[i] = float64(n)
			}
			return out
		}
		return []float64{float64(v.i)}
	case TypeFloat:
		if v.array {
			return append([]float64(nil), v.fls...)
		}
		return []float64{v.f}
	}
	return nil
}

func (v Value) String() string {
	switch {
	case v.IsNone():
		return "<none>"
	case v.array:
		var parts []string
		if v.ints != nil {
			for _, n := range v.ints {
				parts = append(parts, fmt.Sprintf("%d", n))
			}
		} else {
			for _, f := range v.fls {
				parts = append(parts, fmt.Sprintf("%g", f))
			}
		}
		return "[" + strings.Join(parts, " ") + "]"
	case v.typ == TypeBool:
		return fmt.Sprintf("%t", v.b)
	case v.typ == TypeInt32 || v.typ == TypeInt64:
		return fmt.Sprintf("%d", v.i)
	case v.typ == TypeFloat:
		return fmt.Sprintf("%g", v.f)
	case v.typ == TypeString:
		return v.s
	case v.typ == TypeRectangle:
		return fmt.Sprintf("(%d,%d)/%dx%d", v.rect.X, v.rect.Y, v.rect.Width, v.rect.Height)
	case v.typ == TypeSize:
		return fmt.Sprintf("%dx%d", v.size.Width, v.size.Height)
	}
	return "<none>"
}
