package hostabi

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazeroot/corewasm/internal/wasm"
	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

func TestNewHostFuncBasicSignature(t *testing.T) {
	hf, err := NewHostFunc(func(a int32, b uint32) (int64, float64) { return int64(a) + int64(b), 0 })
	require.NoError(t, err)
	require.False(t, hf.NeedsCaller)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, hf.Type.Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI64, wasm.ValueTypeF64}, hf.Type.Results)
}

func TestNewHostFuncDetectsCaller(t *testing.T) {
	hf, err := NewHostFunc(func(c *Caller, x int32) int32 { return x })
	require.NoError(t, err)
	require.True(t, hf.NeedsCaller)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, hf.Type.Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, hf.Type.Results)
}

func TestNewHostFuncRejectsNonFunc(t *testing.T) {
	_, err := NewHostFunc(42)
	require.Error(t, err)
}

func TestNewHostFuncRejectsUnsupportedType(t *testing.T) {
	_, err := NewHostFunc(func(s string) int32 { return 0 })
	require.Error(t, err)
}

func TestInvokeRoundTrip(t *testing.T) {
	hf, err := NewHostFunc(func(a, b int32) int32 { return a + b })
	require.NoError(t, err)

	results, err := Invoke(hf, nil, []wasm.StackValue{wasm.StackValueFromI32(3), wasm.StackValueFromI32(4)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(7), results[0].I32())
}

func TestInvokeWideTypes(t *testing.T) {
	hf, err := NewHostFunc(func(a int64, b float64) float64 { return float64(a) + b })
	require.NoError(t, err)

	results, err := Invoke(hf, nil, []wasm.StackValue{wasm.StackValueFromI64(10), wasm.StackValueFromF64(0.5)})
	require.NoError(t, err)
	require.Equal(t, 10.5, results[0].F64())
}

func TestInvokeRequiresCallerWhenNeeded(t *testing.T) {
	hf, err := NewHostFunc(func(c *Caller, x int32) int32 { return x })
	require.NoError(t, err)

	_, err = Invoke(hf, nil, []wasm.StackValue{wasm.StackValueFromI32(1)})
	require.Error(t, err)
	re, ok := err.(*wasmdebug.RuntimeError)
	require.True(t, ok)
	require.Equal(t, wasmdebug.RuntimeErrCallerNotWasm, re.Kind)
}

func TestInvokePassesCallerThrough(t *testing.T) {
	hf, err := NewHostFunc(func(c *Caller, ptr int32) int32 {
		mem, err := c.Memory()
		require.NoError(t, err)
		return int32(mem.Data[ptr])
	})
	require.NoError(t, err)

	store := wasm.NewStore(nil)
	memID := store.AddMemory(wasm.MemoryInstance{Data: make([]byte, wasm.PageSize)})
	store.Memories[memID].Data[0] = 42
	instID := store.AddInstance(&wasm.Instance{Memories: []wasm.MemoryID{memID}})

	results, err := Invoke(hf, &Caller{Store: store, InstanceIdx: instID}, []wasm.StackValue{wasm.StackValueFromI32(0)})
	require.NoError(t, err)
	require.Equal(t, int32(42), results[0].I32())
}

func TestCallerMemoryMissing(t *testing.T) {
	store := wasm.NewStore(nil)
	instID := store.AddInstance(&wasm.Instance{})
	c := &Caller{Store: store, InstanceIdx: instID}

	_, err := c.Memory()
	require.Error(t, err)
	re, ok := err.(*wasmdebug.RuntimeError)
	require.True(t, ok)
	require.Equal(t, wasmdebug.RuntimeErrCallerNoMemory, re.Kind)
}

func TestCallerMemoryPresent(t *testing.T) {
	store := wasm.NewStore(nil)
	memID := store.AddMemory(wasm.MemoryInstance{Data: make([]byte, wasm.PageSize)})
	instID := store.AddInstance(&wasm.Instance{Memories: []wasm.MemoryID{memID}})
	c := &Caller{Store: store, InstanceIdx: instID}

	mem, err := c.Memory()
	require.NoError(t, err)
	require.Len(t, mem.Data, wasm.PageSize)
}

type innerPadded struct {
	A int32
	B int64
}

type outerPadded struct {
	X     byte
	Inner innerPadded
	Y     int32
}

func TestClearPaddingPreservesFieldValues(t *testing.T) {
	v := &outerPadded{X: 1, Inner: innerPadded{A: 2, B: 3}, Y: 4}
	ClearPadding(reflect.ValueOf(v))
	require.Equal(t, byte(1), v.X)
	require.Equal(t, int32(2), v.Inner.A)
	require.Equal(t, int64(3), v.Inner.B)
	require.Equal(t, int32(4), v.Y)
}

func TestClearPaddingNonStructIsNoop(t *testing.T) {
	x := 5
	require.NotPanics(t, func() { ClearPadding(reflect.ValueOf(&x)) })
	require.Equal(t, 5, x)

	require.NotPanics(t, func() { ClearPadding(reflect.ValueOf(x)) })
}
