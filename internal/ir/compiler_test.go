package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazeroot/corewasm/internal/wasm"
)

func newModule(types []*wasm.FuncType, funcTypeIdx []wasm.Index, bodies [][]byte) (*wasm.Module, []byte) {
	var buf []byte
	code := make([]wasm.CodeSubSection, len(bodies))
	for i, b := range bodies {
		code[i] = wasm.CodeSubSection{Offset: uint32(len(buf)), Length: uint32(len(b))}
		buf = append(buf, b...)
	}
	return &wasm.Module{
		Types:           types,
		FuncTypeIndexes: funcTypeIdx,
		Code:            code,
	}, buf
}

var limits = wasm.FuncLimits{StackLimit: 128, FrameLimit: 64}

func TestCompileSimpleAdd(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpLocalGet), 0x00,
		byte(OpLocalGet), 0x01,
		byte(OpI32Add),
		byte(OpEnd),
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	cf, err := Compile(mod, 0, limits, buf)
	require.NoError(t, err)
	require.Equal(t, uint32(2), cf.NumParams)
	require.Equal(t, uint32(2), cf.NumLocals)
	// local.get, local.get, i32.add each contribute one opcode byte plus
	// one LEB128 index byte for the two local.get ops.
	require.Equal(t, []byte{byte(OpLocalGet), 0x00, byte(OpLocalGet), 0x01, byte(OpI32Add)}, cf.Code)
	require.Empty(t, cf.Jumps)
}

func TestCompileRejectsTypeMismatch(t *testing.T) {
	ft := &wasm.FuncType{Params: nil, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpF32Const), 0x00, 0x00, 0x00, 0x00, // pushes f32, function wants i32
		byte(OpEnd),
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	_, err := Compile(mod, 0, limits, buf)
	require.Error(t, err)
	ve, ok := err.(*wasm.ValidationError)
	require.True(t, ok)
	require.Equal(t, wasm.ValidationErrTypeMismatch, ve.Kind)
}

func TestCompileRejectsStackUnderflow(t *testing.T) {
	ft := &wasm.FuncType{Params: nil, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpI32Add), // no operands pushed yet
		byte(OpEnd),
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	_, err := Compile(mod, 0, limits, buf)
	require.Error(t, err)
	ve, ok := err.(*wasm.ValidationError)
	require.True(t, ok)
	require.Equal(t, wasm.ValidationErrUnderflow, ve.Kind)
}

func TestCompileMemoryAccessWithoutMemory(t *testing.T) {
	ft := &wasm.FuncType{Params: nil, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpI32Const), 0x00,
		byte(OpI32Load), 0x00, 0x00, // align=0, offset=0
		byte(OpEnd),
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	_, err := Compile(mod, 0, limits, buf)
	require.Error(t, err)
	ve, ok := err.(*wasm.ValidationError)
	require.True(t, ok)
	require.Equal(t, wasm.ValidationErrIndexOutOfRange, ve.Kind)
}

func TestCompileAlignmentTooLarge(t *testing.T) {
	ft := &wasm.FuncType{Params: nil, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpI32Const), 0x00,
		byte(OpI32Load), 0x03, 0x00, // align=3 exceeds i32.load's max (2)
		byte(OpEnd),
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})
	mod.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}

	_, err := Compile(mod, 0, limits, buf)
	require.Error(t, err)
	ve, ok := err.(*wasm.ValidationError)
	require.True(t, ok)
	require.Equal(t, wasm.ValidationErrAlignmentTooLarge, ve.Kind)
}

func TestCompileIfElse(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(OpLocalGet), 0x00,
		byte(OpIf), 0x7F, // if (result i32)
		byte(OpI32Const), 0x01,
		byte(OpElse),
		byte(OpI32Const), 0x00,
		byte(OpEnd), // end if
		byte(OpEnd), // end function
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	cf, err := Compile(mod, 0, limits, buf)
	require.NoError(t, err)
	require.NotEmpty(t, cf.Jumps)
}

func TestCompileUnreachableTrailingBytesRejected(t *testing.T) {
	ft := &wasm.FuncType{Params: nil, Results: nil}
	body := []byte{
		byte(OpEnd),
		byte(OpNop), // trailing byte after function end
	}
	mod, buf := newModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]byte{body})

	_, err := Compile(mod, 0, limits, buf)
	require.Error(t, err)
}

func TestMaxAlignAndAccessSize(t *testing.T) {
	require.Equal(t, uint32(2), MaxAlign(OpI32Load))
	require.Equal(t, uint32(3), MaxAlign(OpI64Load))
	require.Equal(t, uint32(0), MaxAlign(OpI32Load8S))
	require.Equal(t, uint32(4), MemAccessSize(OpI32Load))
	require.Equal(t, uint32(8), MemAccessSize(OpI64Store))
	require.Equal(t, uint32(1), MemAccessSize(OpI32Store8))
	require.Equal(t, wasm.ValueTypeI32, LoadResultType(OpI32Load16U))
	require.Equal(t, wasm.ValueTypeI64, StoreValueType(OpI64Store32))
}
