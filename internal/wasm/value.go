package wasm

import "math"

// Value is a host-visible Wasm value, tagged by its ValueType.
type Value struct {
	Type ValueType
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  RefValue // valid iff Type is FuncRef/ExternRef
}

func I32Value(v int32) Value   { return Value{Type: ValueTypeI32, I32: v} }
func I64Value(v int64) Value   { return Value{Type: ValueTypeI64, I64: v} }
func F32Value(v float32) Value { return Value{Type: ValueTypeF32, F32: v} }
func F64Value(v float64) Value { return Value{Type: ValueTypeF64, F64: v} }
func RefValueOf(ty ValueType, r RefValue) Value { return Value{Type: ty, Ref: r} }

// RefValue is a 32-bit handle identifying a function (funcref) or the
// null sentinel 0xFFFFFFFF.
type RefValue struct{ ID uint32 }

// NullRef is the canonical null reference.
var NullRef = RefValue{ID: 0xFFFFFFFF}

func (r RefValue) IsNull() bool { return r.ID == 0xFFFFFFFF }

// StackValue is the erased, 8-byte on-stack representation of a Value.
// Type correctness is guaranteed by validation, not by this type; callers
// must know the intended ValueType to interpret the bits.
type StackValue uint64

var ZeroStackValue StackValue

func StackValueFromI32(v int32) StackValue { return StackValue(uint32(v)) }
func StackValueFromI64(v int64) StackValue { return StackValue(uint64(v)) }
func StackValueFromF32(v float32) StackValue {
	return StackValue(math.Float32bits(v))
}
func StackValueFromF64(v float64) StackValue {
	return StackValue(math.Float64bits(v))
}
func StackValueFromRef(r RefValue) StackValue { return StackValue(r.ID) }

func (s StackValue) I32() int32 { return int32(uint32(s)) }
func (s StackValue) U32() uint32 { return uint32(s) }
func (s StackValue) I64() int64  { return int64(s) }
func (s StackValue) U64() uint64 { return uint64(s) }
func (s StackValue) F32() float32 { return math.Float32frombits(uint32(s)) }
func (s StackValue) F64() float64 { return math.Float64frombits(uint64(s)) }
func (s StackValue) Ref() RefValue { return RefValue{ID: uint32(s)} }

// FromValue erases a tagged Value into a raw StackValue.
func StackValueFromValue(v Value) StackValue {
	switch v.Type {
	case ValueTypeI32:
		return StackValueFromI32(v.I32)
	case ValueTypeI64:
		return StackValueFromI64(v.I64)
	case ValueTypeF32:
		return StackValueFromF32(v.F32)
	case ValueTypeF64:
		return StackValueFromF64(v.F64)
	case ValueTypeFuncRef, ValueTypeExternRef:
		return StackValueFromRef(v.Ref)
	default:
		panic("unreachable: unknown value type")
	}
}

// ToValue resurrects a tagged Value from a raw StackValue, given the
// declared result type (total).
func (s StackValue) ToValue(ty ValueType) Value {
	switch ty {
	case ValueTypeI32:
		return I32Value(s.I32())
	case ValueTypeI64:
		return I64Value(s.I64())
	case ValueTypeF32:
		return F32Value(s.F32())
	case ValueTypeF64:
		return F64Value(s.F64())
	case ValueTypeFuncRef, ValueTypeExternRef:
		return RefValueOf(ty, s.Ref())
	default:
		panic("unreachable: unknown value type")
	}
}
