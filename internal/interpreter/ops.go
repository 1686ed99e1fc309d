package interpreter

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/wazeroot/corewasm/internal/ir"
	"github.com/wazeroot/corewasm/internal/wasm"
	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

func loadValue(mem *wasm.MemoryInstance, base, offset uint32, op ir.Opcode, r *runner, opPC uint32) (wasm.StackValue, error) {
	size := ir.MemAccessSize(op)
	addr := uint64(base) + uint64(offset)
	if addr+uint64(size) > uint64(len(mem.Data)) {
		return 0, r.trap(wasmdebug.TrapMemoryBounds, opPC)
	}
	b := mem.Data[addr : addr+uint64(size)]

	switch op {
	case ir.OpI32Load:
		return wasm.StackValueFromI32(int32(binary.LittleEndian.Uint32(b))), nil
	case ir.OpI64Load:
		return wasm.StackValueFromI64(int64(binary.LittleEndian.Uint64(b))), nil
	case ir.OpF32Load:
		return wasm.StackValueFromF32(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case ir.OpF64Load:
		return wasm.StackValueFromF64(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case ir.OpI32Load8S:
		return wasm.StackValueFromI32(int32(int8(b[0]))), nil
	case ir.OpI32Load8U:
		return wasm.StackValueFromI32(int32(b[0])), nil
	case ir.OpI32Load16S:
		return wasm.StackValueFromI32(int32(int16(binary.LittleEndian.Uint16(b)))), nil
	case ir.OpI32Load16U:
		return wasm.StackValueFromI32(int32(binary.LittleEndian.Uint16(b))), nil
	case ir.OpI64Load8S:
		return wasm.StackValueFromI64(int64(int8(b[0]))), nil
	case ir.OpI64Load8U:
		return wasm.StackValueFromI64(int64(b[0])), nil
	case ir.OpI64Load16S:
		return wasm.StackValueFromI64(int64(int16(binary.LittleEndian.Uint16(b)))), nil
	case ir.OpI64Load16U:
		return wasm.StackValueFromI64(int64(binary.LittleEndian.Uint16(b))), nil
	case ir.OpI64Load32S:
		return wasm.StackValueFromI64(int64(int32(binary.LittleEndian.Uint32(b)))), nil
	case ir.OpI64Load32U:
		return wasm.StackValueFromI64(int64(binary.LittleEndian.Uint32(b))), nil
	default:
		panic("unreachable: not a load opcode")
	}
}

func storeValue(mem *wasm.MemoryInstance, base, offset uint32, op ir.Opcode, v wasm.StackValue, r *runner, opPC uint32) error {
	size := ir.MemAccessSize(op)
	addr := uint64(base) + uint64(offset)
	if addr+uint64(size) > uint64(len(mem.Data)) {
		return r.trap(wasmdebug.TrapMemoryBounds, opPC)
	}
	b := mem.Data[addr : addr+uint64(size)]

	switch op {
	case ir.OpI32Store:
		binary.LittleEndian.PutUint32(b, v.U32())
	case ir.OpI64Store:
		binary.LittleEndian.PutUint64(b, v.U64())
	case ir.OpF32Store:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.F32()))
	case ir.OpF64Store:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.F64()))
	case ir.OpI32Store8, ir.OpI64Store8:
		b[0] = byte(v.U64())
	case ir.OpI32Store16, ir.OpI64Store16:
		binary.LittleEndian.PutUint16(b, uint16(v.U64()))
	case ir.OpI64Store32:
		binary.LittleEndian.PutUint32(b, uint32(v.U64()))
	default:
		panic("unreachable: not a store opcode")
	}
	return nil
}

// runSimple executes every opcode whose operand signature is listed in
// ir.simpleOps: plain arithmetic, comparison, conversion, and
// reinterpretation ops that carry no compiled immediate.
func (r *runner) runSimple(op ir.Opcode, opPC uint32) error {
	switch op {
	case ir.OpI32Eqz:
		r.push(boolI32(r.pop().I32() == 0))
	case ir.OpI32Eq:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a == b))
	case ir.OpI32Ne:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a != b))
	case ir.OpI32LtS:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a < b))
	case ir.OpI32LtU:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(boolI32(a < b))
	case ir.OpI32GtS:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a > b))
	case ir.OpI32GtU:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(boolI32(a > b))
	case ir.OpI32LeS:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a <= b))
	case ir.OpI32LeU:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(boolI32(a <= b))
	case ir.OpI32GeS:
		b, a := r.pop().I32(), r.pop().I32()
		r.push(boolI32(a >= b))
	case ir.OpI32GeU:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(boolI32(a >= b))

	case ir.OpI64Eqz:
		r.push(boolI32(r.pop().I64() == 0))
	case ir.OpI64Eq:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a == b))
	case ir.OpI64Ne:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a != b))
	case ir.OpI64LtS:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a < b))
	case ir.OpI64LtU:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(boolI32(a < b))
	case ir.OpI64GtS:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a > b))
	case ir.OpI64GtU:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(boolI32(a > b))
	case ir.OpI64LeS:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a <= b))
	case ir.OpI64LeU:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(boolI32(a <= b))
	case ir.OpI64GeS:
		b, a := r.pop().I64(), r.pop().I64()
		r.push(boolI32(a >= b))
	case ir.OpI64GeU:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(boolI32(a >= b))

	case ir.OpF32Eq:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a == b))
	case ir.OpF32Ne:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a != b))
	case ir.OpF32Lt:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a < b))
	case ir.OpF32Gt:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a > b))
	case ir.OpF32Le:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a <= b))
	case ir.OpF32Ge:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(boolI32(a >= b))

	case ir.OpF64Eq:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a == b))
	case ir.OpF64Ne:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a != b))
	case ir.OpF64Lt:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a < b))
	case ir.OpF64Gt:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a > b))
	case ir.OpF64Le:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a <= b))
	case ir.OpF64Ge:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(boolI32(a >= b))

	case ir.OpI32Clz:
		r.push(wasm.StackValueFromI32(int32(bits.LeadingZeros32(r.pop().U32()))))
	case ir.OpI32Ctz:
		r.push(wasm.StackValueFromI32(int32(bits.TrailingZeros32(r.pop().U32()))))
	case ir.OpI32Popcnt:
		r.push(wasm.StackValueFromI32(int32(bits.OnesCount32(r.pop().U32()))))
	case ir.OpI32Add:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a + b)))
	case ir.OpI32Sub:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a - b)))
	case ir.OpI32Mul:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a * b)))
	case ir.OpI32DivS:
		b, a := r.pop().I32(), r.pop().I32()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		if a == math.MinInt32 && b == -1 {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI32(a / b))
	case ir.OpI32DivU:
		b, a := r.pop().U32(), r.pop().U32()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(a / b)))
	case ir.OpI32RemS:
		b, a := r.pop().I32(), r.pop().I32()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		if a == math.MinInt32 && b == -1 {
			r.push(wasm.StackValueFromI32(0))
		} else {
			r.push(wasm.StackValueFromI32(a % b))
		}
	case ir.OpI32RemU:
		b, a := r.pop().U32(), r.pop().U32()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(a % b)))
	case ir.OpI32And:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a & b)))
	case ir.OpI32Or:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a | b)))
	case ir.OpI32Xor:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a ^ b)))
	case ir.OpI32Shl:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a << (b & 31))))
	case ir.OpI32ShrS:
		b, a := r.pop().U32(), r.pop().I32()
		r.push(wasm.StackValueFromI32(a >> (b & 31)))
	case ir.OpI32ShrU:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(a >> (b & 31))))
	case ir.OpI32Rotl:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(bits.RotateLeft32(a, int(b&31)))))
	case ir.OpI32Rotr:
		b, a := r.pop().U32(), r.pop().U32()
		r.push(wasm.StackValueFromI32(int32(bits.RotateLeft32(a, -int(b&31)))))

	case ir.OpI64Clz:
		r.push(wasm.StackValueFromI64(int64(bits.LeadingZeros64(r.pop().U64()))))
	case ir.OpI64Ctz:
		r.push(wasm.StackValueFromI64(int64(bits.TrailingZeros64(r.pop().U64()))))
	case ir.OpI64Popcnt:
		r.push(wasm.StackValueFromI64(int64(bits.OnesCount64(r.pop().U64()))))
	case ir.OpI64Add:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a + b)))
	case ir.OpI64Sub:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a - b)))
	case ir.OpI64Mul:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a * b)))
	case ir.OpI64DivS:
		b, a := r.pop().I64(), r.pop().I64()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		if a == math.MinInt64 && b == -1 {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI64(a / b))
	case ir.OpI64DivU:
		b, a := r.pop().U64(), r.pop().U64()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		r.push(wasm.StackValueFromI64(int64(a / b)))
	case ir.OpI64RemS:
		b, a := r.pop().I64(), r.pop().I64()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		if a == math.MinInt64 && b == -1 {
			r.push(wasm.StackValueFromI64(0))
		} else {
			r.push(wasm.StackValueFromI64(a % b))
		}
	case ir.OpI64RemU:
		b, a := r.pop().U64(), r.pop().U64()
		if b == 0 {
			return r.trap(wasmdebug.TrapDivByZero, opPC)
		}
		r.push(wasm.StackValueFromI64(int64(a % b)))
	case ir.OpI64And:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a & b)))
	case ir.OpI64Or:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a | b)))
	case ir.OpI64Xor:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a ^ b)))
	case ir.OpI64Shl:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a << (b & 63))))
	case ir.OpI64ShrS:
		b, a := r.pop().U64(), r.pop().I64()
		r.push(wasm.StackValueFromI64(a >> (b & 63)))
	case ir.OpI64ShrU:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(a >> (b & 63))))
	case ir.OpI64Rotl:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(bits.RotateLeft64(a, int(b&63)))))
	case ir.OpI64Rotr:
		b, a := r.pop().U64(), r.pop().U64()
		r.push(wasm.StackValueFromI64(int64(bits.RotateLeft64(a, -int(b&63)))))

	case ir.OpF32Abs:
		r.push(wasm.StackValueFromF32(float32(math.Abs(float64(r.pop().F32())))))
	case ir.OpF32Neg:
		r.push(wasm.StackValueFromF32(-r.pop().F32()))
	case ir.OpF32Ceil:
		r.push(wasm.StackValueFromF32(float32(math.Ceil(float64(r.pop().F32())))))
	case ir.OpF32Floor:
		r.push(wasm.StackValueFromF32(float32(math.Floor(float64(r.pop().F32())))))
	case ir.OpF32Trunc:
		r.push(wasm.StackValueFromF32(float32(math.Trunc(float64(r.pop().F32())))))
	case ir.OpF32Nearest:
		r.push(wasm.StackValueFromF32(float32(math.RoundToEven(float64(r.pop().F32())))))
	case ir.OpF32Sqrt:
		r.push(wasm.StackValueFromF32(float32(math.Sqrt(float64(r.pop().F32())))))
	case ir.OpF32Add:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(a + b))
	case ir.OpF32Sub:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(a - b))
	case ir.OpF32Mul:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(a * b))
	case ir.OpF32Div:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(a / b))
	case ir.OpF32Min:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(wasmMinF32(a, b)))
	case ir.OpF32Max:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(wasmMaxF32(a, b)))
	case ir.OpF32Copysign:
		b, a := r.pop().F32(), r.pop().F32()
		r.push(wasm.StackValueFromF32(float32(math.Copysign(float64(a), float64(b)))))

	case ir.OpF64Abs:
		r.push(wasm.StackValueFromF64(math.Abs(r.pop().F64())))
	case ir.OpF64Neg:
		r.push(wasm.StackValueFromF64(-r.pop().F64()))
	case ir.OpF64Ceil:
		r.push(wasm.StackValueFromF64(math.Ceil(r.pop().F64())))
	case ir.OpF64Floor:
		r.push(wasm.StackValueFromF64(math.Floor(r.pop().F64())))
	case ir.OpF64Trunc:
		r.push(wasm.StackValueFromF64(math.Trunc(r.pop().F64())))
	case ir.OpF64Nearest:
		r.push(wasm.StackValueFromF64(math.RoundToEven(r.pop().F64())))
	case ir.OpF64Sqrt:
		r.push(wasm.StackValueFromF64(math.Sqrt(r.pop().F64())))
	case ir.OpF64Add:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(a + b))
	case ir.OpF64Sub:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(a - b))
	case ir.OpF64Mul:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(a * b))
	case ir.OpF64Div:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(a / b))
	case ir.OpF64Min:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(wasmMinF64(a, b)))
	case ir.OpF64Max:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(wasmMaxF64(a, b)))
	case ir.OpF64Copysign:
		b, a := r.pop().F64(), r.pop().F64()
		r.push(wasm.StackValueFromF64(math.Copysign(a, b)))

	case ir.OpI32WrapI64:
		r.push(wasm.StackValueFromI32(int32(r.pop().I64())))
	case ir.OpI64ExtendI32S:
		r.push(wasm.StackValueFromI64(int64(r.pop().I32())))
	case ir.OpI64ExtendI32U:
		r.push(wasm.StackValueFromI64(int64(r.pop().U32())))

	case ir.OpI32TruncF32S:
		v, ok := truncToI64(float64(r.pop().F32()), math.MinInt32, math.MaxInt32+1)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(v)))
	case ir.OpI32TruncF32U:
		v, ok := truncToI64(float64(r.pop().F32()), 0, math.MaxUint32+1)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(uint32(v))))
	case ir.OpI32TruncF64S:
		v, ok := truncToI64(r.pop().F64(), math.MinInt32, math.MaxInt32+1)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(v)))
	case ir.OpI32TruncF64U:
		v, ok := truncToI64(r.pop().F64(), 0, math.MaxUint32+1)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI32(int32(uint32(v))))
	case ir.OpI64TruncF32S:
		v, ok := truncToI64Wide(float64(r.pop().F32()), false)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI64(v))
	case ir.OpI64TruncF32U:
		v, ok := truncToU64Wide(float64(r.pop().F32()))
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI64(int64(v)))
	case ir.OpI64TruncF64S:
		v, ok := truncToI64Wide(r.pop().F64(), false)
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI64(v))
	case ir.OpI64TruncF64U:
		v, ok := truncToU64Wide(r.pop().F64())
		if !ok {
			return r.trap(wasmdebug.TrapIntOverflow, opPC)
		}
		r.push(wasm.StackValueFromI64(int64(v)))

	case ir.OpF32ConvertI32S:
		r.push(wasm.StackValueFromF32(float32(r.pop().I32())))
	case ir.OpF32ConvertI32U:
		r.push(wasm.StackValueFromF32(float32(r.pop().U32())))
	case ir.OpF32ConvertI64S:
		r.push(wasm.StackValueFromF32(float32(r.pop().I64())))
	case ir.OpF32ConvertI64U:
		r.push(wasm.StackValueFromF32(float32(r.pop().U64())))
	case ir.OpF32DemoteF64:
		r.push(wasm.StackValueFromF32(float32(r.pop().F64())))
	case ir.OpF64ConvertI32S:
		r.push(wasm.StackValueFromF64(float64(r.pop().I32())))
	case ir.OpF64ConvertI32U:
		r.push(wasm.StackValueFromF64(float64(r.pop().U32())))
	case ir.OpF64ConvertI64S:
		r.push(wasm.StackValueFromF64(float64(r.pop().I64())))
	case ir.OpF64ConvertI64U:
		r.push(wasm.StackValueFromF64(float64(r.pop().U64())))
	case ir.OpF64PromoteF32:
		r.push(wasm.StackValueFromF64(float64(r.pop().F32())))

	case ir.OpI32ReinterpretF32:
		r.push(wasm.StackValueFromI32(int32(math.Float32bits(r.pop().F32()))))
	case ir.OpI64ReinterpretF64:
		r.push(wasm.StackValueFromI64(int64(math.Float64bits(r.pop().F64()))))
	case ir.OpF32ReinterpretI32:
		r.push(wasm.StackValueFromF32(math.Float32frombits(r.pop().U32())))
	case ir.OpF64ReinterpretI64:
		r.push(wasm.StackValueFromF64(math.Float64frombits(r.pop().U64())))

	case ir.OpI32Extend8S:
		r.push(wasm.StackValueFromI32(int32(int8(r.pop().I32()))))
	case ir.OpI32Extend16S:
		r.push(wasm.StackValueFromI32(int32(int16(r.pop().I32()))))
	case ir.OpI64Extend8S:
		r.push(wasm.StackValueFromI64(int64(int8(r.pop().I64()))))
	case ir.OpI64Extend16S:
		r.push(wasm.StackValueFromI64(int64(int16(r.pop().I64()))))
	case ir.OpI64Extend32S:
		r.push(wasm.StackValueFromI64(int64(int32(r.pop().I64()))))

	default:
		panic("unreachable: unhandled simple opcode")
	}
	return nil
}

func boolI32(b bool) wasm.StackValue {
	if b {
		return wasm.StackValueFromI32(1)
	}
	return wasm.StackValueFromI32(0)
}

// truncToI64 validates a float is in [lo, hi) before truncating, for the
// i32 truncation opcodes (both bounds fit exactly in a float64).
func truncToI64(f float64, lo, hi float64) (int64, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < lo || f >= hi {
		return 0, false
	}
	return int64(f), true
}

// truncToI64Wide handles i64.trunc_f*_s, where math.MaxInt64 has no exact
// float64 representation: the valid range is [-2^63, 2^63).
func truncToI64Wide(f float64, _ bool) (int64, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, false
	}
	return int64(f), true
}

// truncToU64Wide handles i64.trunc_f*_u; valid range is [0, 2^64).
func truncToU64Wide(f float64) (uint64, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < 0 || f >= 18446744073709551616.0 {
		return 0, false
	}
	return uint64(f), true
}

// wasmMinF32/wasmMaxF32/wasmMinF64/wasmMaxF64 implement Wasm's NaN- and
// signed-zero-aware float min/max, which differ from Go's math.Min/Max.
func wasmMinF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func wasmMaxF32(a, b float32) float32 {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return float32(math.NaN())
	}
	if a == 0 && b == 0 {
		if !math.Signbit(float64(a)) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

func wasmMinF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

func wasmMaxF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a == 0 && b == 0 {
		if !math.Signbit(a) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}
