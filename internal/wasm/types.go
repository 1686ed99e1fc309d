// Package wasm holds the validated, immutable domain model produced by the
// binary parser: value and function types, module-level declarations, and
// the runtime objects (instances, functions, tables, memories, globals)
// built from them by the store.
package wasm

import "fmt"

// ValueType is a Wasm value type as encoded in the binary format.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeFuncRef   ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6f
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExternRef:
		return "externref"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(v))
	}
}

// IsRef reports whether v is one of the two reference types.
func (v ValueType) IsRef() bool {
	return v == ValueTypeFuncRef || v == ValueTypeExternRef
}

// IsNumeric reports whether v is an i32/i64/f32/f64.
func (v ValueType) IsNumeric() bool {
	switch v {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// Index is a generic index into one of the module's index spaces.
type Index = uint32

// FuncType is an interned function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (t *FuncType) String() string {
	return fmt.Sprintf("%s_%s", valueTypesString(t.Params), valueTypesString(t.Results))
}

// Equal reports whether two function types have identical params/results.
func (t *FuncType) Equal(o *FuncType) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return sliceEqual(t.Params, o.Params) && sliceEqual(t.Results, o.Results)
}

func sliceEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func valueTypesString(vs []ValueType) string {
	if len(vs) == 0 {
		return "null"
	}
	s := ""
	for _, v := range vs {
		s += v.String()
	}
	return s
}

// BlockKind classifies the raw BlockType encoding.
type BlockKind byte

const (
	// BlockKindEmpty is a block with no params and no results.
	BlockKindEmpty BlockKind = iota
	// BlockKindValue is a block with no params and a single result.
	BlockKindValue
	// BlockKindFuncType is a block whose params/results come from an
	// interned FuncType, addressed by a (signed, LEB128) type index.
	BlockKindFuncType
)

// BlockType describes the parameter/result arity of a structured block.
type BlockType struct {
	Kind     BlockKind
	ValType  ValueType // valid iff Kind == BlockKindValue
	TypeIdx  Index     // valid iff Kind == BlockKindFuncType
}

// Params resolves the block's parameter types given the module's type section.
func (b BlockType) Params(types []*FuncType) []ValueType {
	if b.Kind == BlockKindFuncType {
		return types[b.TypeIdx].Params
	}
	return nil
}

// Results resolves the block's result types given the module's type section.
func (b BlockType) Results(types []*FuncType) []ValueType {
	switch b.Kind {
	case BlockKindValue:
		return []ValueType{b.ValType}
	case BlockKindFuncType:
		return types[b.TypeIdx].Results
	default:
		return nil
	}
}

// Limits bounds a table or memory's size, in table-elements or 64KiB pages
// respectively.
type Limits struct {
	Min uint32
	Max uint32 // valid iff HasMax
	HasMax bool
}

// RefType distinguishes the two reference value types usable in tables.
type RefType byte

const (
	RefTypeFunc   RefType = RefType(ValueTypeFuncRef)
	RefTypeExtern RefType = RefType(ValueTypeExternRef)
)

// TableType declares a table's element type and size limits.
type TableType struct {
	RefType RefType
	Limits  Limits
}

// MemoryType declares a memory's size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType declares a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// PageSize is the fixed linear-memory page granularity (64 KiB).
const PageSize = 64 * 1024

// MaxPages bounds the largest memory expressible in 32-bit addressing.
const MaxPages = (1 << 32) / PageSize
