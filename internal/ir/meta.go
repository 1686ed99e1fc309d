package ir

import "github.com/wazeroot/corewasm/internal/wasm"

// opMeta is the static operand pop/push signature for an opcode whose
// runtime behavior needs no compile-time immediates beyond its own byte
// Opcodes absent
// from this table (control flow, memory access, calls, locals/globals,
// references, select) carry their own immediates and are handled
// directly by the compiler.
type opMeta struct {
	Pops   []wasm.ValueType
	Pushes []wasm.ValueType
}

var (
	i32T = wasm.ValueTypeI32
	i64T = wasm.ValueTypeI64
	f32T = wasm.ValueTypeF32
	f64T = wasm.ValueTypeF64
)

func t1(a wasm.ValueType) []wasm.ValueType             { return []wasm.ValueType{a} }
func t2(a, b wasm.ValueType) []wasm.ValueType           { return []wasm.ValueType{a, b} }

var simpleOps = map[Opcode]opMeta{
	OpI32Clz:    {t1(i32T), t1(i32T)},
	OpI32Ctz:    {t1(i32T), t1(i32T)},
	OpI32Popcnt: {t1(i32T), t1(i32T)},
	OpI32Add:    {t2(i32T, i32T), t1(i32T)},
	OpI32Sub:    {t2(i32T, i32T), t1(i32T)},
	OpI32Mul:    {t2(i32T, i32T), t1(i32T)},
	OpI32DivS:   {t2(i32T, i32T), t1(i32T)},
	OpI32DivU:   {t2(i32T, i32T), t1(i32T)},
	OpI32RemS:   {t2(i32T, i32T), t1(i32T)},
	OpI32RemU:   {t2(i32T, i32T), t1(i32T)},
	OpI32And:    {t2(i32T, i32T), t1(i32T)},
	OpI32Or:     {t2(i32T, i32T), t1(i32T)},
	OpI32Xor:    {t2(i32T, i32T), t1(i32T)},
	OpI32Shl:    {t2(i32T, i32T), t1(i32T)},
	OpI32ShrS:   {t2(i32T, i32T), t1(i32T)},
	OpI32ShrU:   {t2(i32T, i32T), t1(i32T)},
	OpI32Rotl:   {t2(i32T, i32T), t1(i32T)},
	OpI32Rotr:   {t2(i32T, i32T), t1(i32T)},
	OpI32Eqz:    {t1(i32T), t1(i32T)},
	OpI32Eq:     {t2(i32T, i32T), t1(i32T)},
	OpI32Ne:     {t2(i32T, i32T), t1(i32T)},
	OpI32LtS:    {t2(i32T, i32T), t1(i32T)},
	OpI32LtU:    {t2(i32T, i32T), t1(i32T)},
	OpI32GtS:    {t2(i32T, i32T), t1(i32T)},
	OpI32GtU:    {t2(i32T, i32T), t1(i32T)},
	OpI32LeS:    {t2(i32T, i32T), t1(i32T)},
	OpI32LeU:    {t2(i32T, i32T), t1(i32T)},
	OpI32GeS:    {t2(i32T, i32T), t1(i32T)},
	OpI32GeU:    {t2(i32T, i32T), t1(i32T)},

	OpI64Clz:    {t1(i64T), t1(i64T)},
	OpI64Ctz:    {t1(i64T), t1(i64T)},
	OpI64Popcnt: {t1(i64T), t1(i64T)},
	OpI64Add:    {t2(i64T, i64T), t1(i64T)},
	OpI64Sub:    {t2(i64T, i64T), t1(i64T)},
	OpI64Mul:    {t2(i64T, i64T), t1(i64T)},
	OpI64DivS:   {t2(i64T, i64T), t1(i64T)},
	OpI64DivU:   {t2(i64T, i64T), t1(i64T)},
	OpI64RemS:   {t2(i64T, i64T), t1(i64T)},
	OpI64RemU:   {t2(i64T, i64T), t1(i64T)},
	OpI64And:    {t2(i64T, i64T), t1(i64T)},
	OpI64Or:     {t2(i64T, i64T), t1(i64T)},
	OpI64Xor:    {t2(i64T, i64T), t1(i64T)},
	OpI64Shl:    {t2(i64T, i64T), t1(i64T)},
	OpI64ShrS:   {t2(i64T, i64T), t1(i64T)},
	OpI64ShrU:   {t2(i64T, i64T), t1(i64T)},
	OpI64Rotl:   {t2(i64T, i64T), t1(i64T)},
	OpI64Rotr:   {t2(i64T, i64T), t1(i64T)},
	OpI64Eqz:    {t1(i64T), t1(i32T)},
	OpI64Eq:     {t2(i64T, i64T), t1(i32T)},
	OpI64Ne:     {t2(i64T, i64T), t1(i32T)},
	OpI64LtS:    {t2(i64T, i64T), t1(i32T)},
	OpI64LtU:    {t2(i64T, i64T), t1(i32T)},
	OpI64GtS:    {t2(i64T, i64T), t1(i32T)},
	OpI64GtU:    {t2(i64T, i64T), t1(i32T)},
	OpI64LeS:    {t2(i64T, i64T), t1(i32T)},
	OpI64LeU:    {t2(i64T, i64T), t1(i32T)},
	OpI64GeS:    {t2(i64T, i64T), t1(i32T)},
	OpI64GeU:    {t2(i64T, i64T), t1(i32T)},

	OpF32Abs:      {t1(f32T), t1(f32T)},
	OpF32Neg:      {t1(f32T), t1(f32T)},
	OpF32Ceil:     {t1(f32T), t1(f32T)},
	OpF32Floor:    {t1(f32T), t1(f32T)},
	OpF32Trunc:    {t1(f32T), t1(f32T)},
	OpF32Nearest:  {t1(f32T), t1(f32T)},
	OpF32Sqrt:     {t1(f32T), t1(f32T)},
	OpF32Add:      {t2(f32T, f32T), t1(f32T)},
	OpF32Sub:      {t2(f32T, f32T), t1(f32T)},
	OpF32Mul:      {t2(f32T, f32T), t1(f32T)},
	OpF32Div:      {t2(f32T, f32T), t1(f32T)},
	OpF32Min:      {t2(f32T, f32T), t1(f32T)},
	OpF32Max:      {t2(f32T, f32T), t1(f32T)},
	OpF32Copysign: {t2(f32T, f32T), t1(f32T)},
	OpF32Eq:       {t2(f32T, f32T), t1(i32T)},
	OpF32Ne:       {t2(f32T, f32T), t1(i32T)},
	OpF32Lt:       {t2(f32T, f32T), t1(i32T)},
	OpF32Gt:       {t2(f32T, f32T), t1(i32T)},
	OpF32Le:       {t2(f32T, f32T), t1(i32T)},
	OpF32Ge:       {t2(f32T, f32T), t1(i32T)},

	OpF64Abs:      {t1(f64T), t1(f64T)},
	OpF64Neg:      {t1(f64T), t1(f64T)},
	OpF64Ceil:     {t1(f64T), t1(f64T)},
	OpF64Floor:    {t1(f64T), t1(f64T)},
	OpF64Trunc:    {t1(f64T), t1(f64T)},
	OpF64Nearest:  {t1(f64T), t1(f64T)},
	OpF64Sqrt:     {t1(f64T), t1(f64T)},
	OpF64Add:      {t2(f64T, f64T), t1(f64T)},
	OpF64Sub:      {t2(f64T, f64T), t1(f64T)},
	OpF64Mul:      {t2(f64T, f64T), t1(f64T)},
	OpF64Div:      {t2(f64T, f64T), t1(f64T)},
	OpF64Min:      {t2(f64T, f64T), t1(f64T)},
	OpF64Max:      {t2(f64T, f64T), t1(f64T)},
	OpF64Copysign: {t2(f64T, f64T), t1(f64T)},
	OpF64Eq:       {t2(f64T, f64T), t1(i32T)},
	OpF64Ne:       {t2(f64T, f64T), t1(i32T)},
	OpF64Lt:       {t2(f64T, f64T), t1(i32T)},
	OpF64Gt:       {t2(f64T, f64T), t1(i32T)},
	OpF64Le:       {t2(f64T, f64T), t1(i32T)},
	OpF64Ge:       {t2(f64T, f64T), t1(i32T)},

	OpI32WrapI64:     {t1(i64T), t1(i32T)},
	OpI32TruncF32S:   {t1(f32T), t1(i32T)},
	OpI32TruncF32U:   {t1(f32T), t1(i32T)},
	OpI32TruncF64S:   {t1(f64T), t1(i32T)},
	OpI32TruncF64U:   {t1(f64T), t1(i32T)},
	OpI64ExtendI32S:  {t1(i32T), t1(i64T)},
	OpI64ExtendI32U:  {t1(i32T), t1(i64T)},
	OpI64TruncF32S:   {t1(f32T), t1(i64T)},
	OpI64TruncF32U:   {t1(f32T), t1(i64T)},
	OpI64TruncF64S:   {t1(f64T), t1(i64T)},
	OpI64TruncF64U:   {t1(f64T), t1(i64T)},
	OpF32ConvertI32S: {t1(i32T), t1(f32T)},
	OpF32ConvertI32U: {t1(i32T), t1(f32T)},
	OpF32ConvertI64S: {t1(i64T), t1(f32T)},
	OpF32ConvertI64U: {t1(i64T), t1(f32T)},
	OpF32DemoteF64:   {t1(f64T), t1(f32T)},
	OpF64ConvertI32S: {t1(i32T), t1(f64T)},
	OpF64ConvertI32U: {t1(i32T), t1(f64T)},
	OpF64ConvertI64S: {t1(i64T), t1(f64T)},
	OpF64ConvertI64U: {t1(i64T), t1(f64T)},
	OpF64PromoteF32:  {t1(f32T), t1(f64T)},

	OpI32ReinterpretF32: {t1(f32T), t1(i32T)},
	OpI64ReinterpretF64: {t1(f64T), t1(i64T)},
	OpF32ReinterpretI32: {t1(i32T), t1(f32T)},
	OpF64ReinterpretI64: {t1(i64T), t1(f64T)},

	OpI32Extend8S:  {t1(i32T), t1(i32T)},
	OpI32Extend16S: {t1(i32T), t1(i32T)},
	OpI64Extend8S:  {t1(i64T), t1(i64T)},
	OpI64Extend16S: {t1(i64T), t1(i64T)},
	OpI64Extend32S: {t1(i64T), t1(i64T)},
}

// MaxAlign returns the largest legal alignment exponent for a memory
// access opcode (the "alignment immediate over the operator's
// max_align" validation error).
func MaxAlign(op Opcode) uint32 {
	switch op {
	case OpI32Load, OpI32Store, OpF32Load, OpF32Store,
		OpI64Load32S, OpI64Load32U, OpI64Store32:
		return 2
	case OpI64Load, OpI64Store, OpF64Load, OpF64Store:
		return 3
	case OpI32Load16S, OpI32Load16U, OpI32Store16,
		OpI64Load16S, OpI64Load16U, OpI64Store16:
		return 1
	case OpI32Load8S, OpI32Load8U, OpI32Store8,
		OpI64Load8S, OpI64Load8U, OpI64Store8:
		return 0
	default:
		return 0
	}
}

// LoadResultType and StoreValueType classify memory op operand/result
// types; both load and store opcodes are handled by one dispatch path
// in the compiler keyed off these two lookups.
func LoadResultType(op Opcode) wasm.ValueType {
	switch op {
	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U:
		return i32T
	case OpI64Load, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U:
		return i64T
	case OpF32Load:
		return f32T
	case OpF64Load:
		return f64T
	default:
		panic("unreachable: not a load opcode")
	}
}

func StoreValueType(op Opcode) wasm.ValueType {
	switch op {
	case OpI32Store, OpI32Store8, OpI32Store16:
		return i32T
	case OpI64Store, OpI64Store8, OpI64Store16, OpI64Store32:
		return i64T
	case OpF32Store:
		return f32T
	case OpF64Store:
		return f64T
	default:
		panic("unreachable: not a store opcode")
	}
}

// MemAccessSize is the number of bytes touched at the effective address,
// used for bounds checking.
func MemAccessSize(op Opcode) uint32 {
	switch op {
	case OpI32Load8S, OpI32Load8U, OpI32Store8, OpI64Load8S, OpI64Load8U, OpI64Store8:
		return 1
	case OpI32Load16S, OpI32Load16U, OpI32Store16, OpI64Load16S, OpI64Load16U, OpI64Store16:
		return 2
	case OpI32Load, OpI32Store, OpF32Load, OpF32Store, OpI64Load32S, OpI64Load32U, OpI64Store32:
		return 4
	case OpI64Load, OpI64Store, OpF64Load, OpF64Store:
		return 8
	default:
		panic("unreachable: not a memory access opcode")
	}
}
