package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazeroot/corewasm/internal/hostabi"
	"github.com/wazeroot/corewasm/internal/ir"
	"github.com/wazeroot/corewasm/internal/wasm"
	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

// buildModule lays out one or more function bodies back-to-back in a single
// byte buffer and returns the CodeSubSections bounding each, mirroring what
// the binary parser would hand the compiler.
func buildModule(types []*wasm.FuncType, funcTypeIdx []wasm.Index, locals [][]wasm.ValueType, bodies [][]byte) (*wasm.Module, []byte) {
	var buf []byte
	code := make([]wasm.CodeSubSection, len(bodies))
	for i, b := range bodies {
		code[i] = wasm.CodeSubSection{Locals: locals[i], Offset: uint32(len(buf)), Length: uint32(len(b))}
		buf = append(buf, b...)
	}
	return &wasm.Module{Types: types, FuncTypeIndexes: funcTypeIdx, Code: code}, buf
}

// compileAndRegister compiles every locally-defined function in mod and
// registers them as FuncKindInterp entries of a single fresh Instance,
// returning the store and the combined-index-space FuncIDs.
func compileAndRegister(t *testing.T, mod *wasm.Module, buf []byte) (*wasm.Store, []wasm.FuncID) {
	t.Helper()
	store := wasm.NewStore(NewEngine())
	instIdx := wasm.InstanceID(len(store.Instances))

	funcIDs := make([]wasm.FuncID, mod.NumImportedFuncs+len(mod.Code))
	for i := range mod.Code {
		combined := wasm.Index(mod.NumImportedFuncs + i)
		cf, err := ir.Compile(mod, combined, wasm.DefaultFuncLimits(), buf)
		require.NoError(t, err)
		funcIDs[combined] = store.AddFunc(wasm.Function{Type: cf.Type, Kind: wasm.FuncKindInterp, InstanceIdx: instIdx, Compiled: cf})
	}

	inst := &wasm.Instance{Module: mod, Funcs: funcIDs}
	store.AddInstance(inst)
	return store, funcIDs
}

func TestInterpSimpleAdd(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpI32Add),
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(3), wasm.I32Value(4)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(7)}, results)
}

// TestInterpLoopSum sums 1..n via a block-wrapped loop: br_if escapes to the
// wrapping block's end (preserving the accumulator below it on the stack),
// br loops back to the top.
func TestInterpLoopSum(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpBlock), 0x40,
		byte(ir.OpLoop), 0x40,
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpI32Eqz),
		byte(ir.OpBrIf), 0x01,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpI32Add),
		byte(ir.OpLocalSet), 0x01,
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpI32Const), 0x01,
		byte(ir.OpI32Sub),
		byte(ir.OpLocalSet), 0x00,
		byte(ir.OpBr), 0x00,
		byte(ir.OpEnd), // end loop
		byte(ir.OpEnd), // end block
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpEnd), // end function
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{{wasm.ValueTypeI32}}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	for _, tc := range []struct{ n, want int32 }{{0, 0}, {1, 1}, {5, 15}, {10, 55}} {
		results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(tc.n)})
		require.NoError(t, err)
		require.Equal(t, []wasm.Value{wasm.I32Value(tc.want)}, results, "n=%d", tc.n)
	}
}

// TestInterpCallBetweenFunctions compiles two locally defined functions into
// one module, the first calling the second by combined function index.
func TestInterpCallBetweenFunctions(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}

	addBody := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpI32Add),
		byte(ir.OpEnd),
	}
	doubleSumBody := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpCall), 0x01, // call addBody (func index 1)
		byte(ir.OpI32Const), 0x02,
		byte(ir.OpI32Mul),
		byte(ir.OpEnd),
	}
	mod, buf := buildModule(
		[]*wasm.FuncType{ft},
		[]wasm.Index{0, 0},
		[][]wasm.ValueType{nil, nil},
		[][]byte{doubleSumBody, addBody},
	)
	store, funcIDs := compileAndRegister(t, mod, buf)

	results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(3), wasm.I32Value(4)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(14)}, results)
}

// TestInterpCallIndirect exercises call_indirect through a funcref table:
// a correct type match, a type mismatch trap, and a null-element trap.
func TestInterpCallIndirect(t *testing.T) {
	addType := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	mismatchedType := &wasm.FuncType{Results: []wasm.ValueType{wasm.ValueTypeI32}}

	addBody := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpI32Add),
		byte(ir.OpEnd),
	}
	// callerOK(x, y) = call_indirect table[0] as addType
	callerOK := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpI32Const), 0x00,
		byte(ir.OpCallIndirect), 0x00, 0x00,
		byte(ir.OpEnd),
	}
	// callerMismatch() = call_indirect table[0] as mismatchedType (addType's
	// func lives there, wrong signature)
	callerMismatch := []byte{
		byte(ir.OpI32Const), 0x00,
		byte(ir.OpCallIndirect), 0x01, 0x00,
		byte(ir.OpEnd),
	}
	// callerNull() = call_indirect table[1] (null element)
	callerNull := []byte{
		byte(ir.OpI32Const), 0x01,
		byte(ir.OpCallIndirect), 0x01, 0x00,
		byte(ir.OpEnd),
	}

	mod, buf := buildModule(
		[]*wasm.FuncType{addType, mismatchedType},
		[]wasm.Index{0, 0, 1, 1},
		[][]wasm.ValueType{nil, nil, nil, nil},
		[][]byte{addBody, callerOK, callerMismatch, callerNull},
	)
	mod.Tables = []wasm.TableType{{RefType: wasm.RefTypeFunc, Limits: wasm.Limits{Min: 2, Max: 2, HasMax: true}}}

	store, funcIDs := compileAndRegister(t, mod, buf)

	table := wasm.TableInstance{
		RefType: wasm.RefTypeFunc,
		Limits:  wasm.Limits{Min: 2, Max: 2, HasMax: true},
		Elems:   []wasm.RefValue{{ID: uint32(funcIDs[0])}, wasm.NullRef},
	}
	tableID := store.AddTable(table)
	store.Instances[0].Tables = []wasm.TableID{tableID}

	results, err := store.CallFunc(funcIDs[1], []wasm.Value{wasm.I32Value(3), wasm.I32Value(4)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(7)}, results)

	_, err = store.CallFunc(funcIDs[2], nil)
	require.Error(t, err)
	trap, ok := err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapCallIndirectTypeMismatch, trap.Kind)

	_, err = store.CallFunc(funcIDs[3], nil)
	require.Error(t, err)
	trap, ok = err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapCallIndirectNullRef, trap.Kind)
}

// TestInterpHostFunctionReentrancy calls a host function that reenters the
// caller's own memory through *hostabi.Caller, mutating a byte a subsequent
// guest read would observe.
func TestInterpHostFunctionReentrancy(t *testing.T) {
	ftHost := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	ftGuest := &wasm.FuncType{Results: []wasm.ValueType{wasm.ValueTypeI32}}

	guestBody := []byte{
		byte(ir.OpI32Const), 0x00, // ptr
		byte(ir.OpCall), 0x00, // call the host import
		byte(ir.OpEnd),
	}
	mod := &wasm.Module{
		Types:            []*wasm.FuncType{ftHost, ftGuest},
		Imports:          []wasm.Import{{Module: "env", Name: "double", Type: wasm.ExternTypeFunc, DescFunc: 0}},
		NumImportedFuncs: 1,
		FuncTypeIndexes:  []wasm.Index{1},
		Code:             []wasm.CodeSubSection{{Offset: 0, Length: uint32(len(guestBody))}},
	}

	store := wasm.NewStore(NewEngine())
	instIdx := wasm.InstanceID(len(store.Instances))

	doubleByte := func(c *hostabi.Caller, ptr int32) int32 {
		mem, err := c.Memory()
		require.NoError(t, err)
		old := mem.Data[ptr]
		mem.Data[ptr] = old * 2
		return int32(old)
	}
	hf, err := hostabi.NewHostFunc(doubleByte)
	require.NoError(t, err)
	hostFuncID := store.AddFunc(wasm.Function{Type: hf.Type, Kind: wasm.FuncKindHost, InstanceIdx: instIdx, HostFunc: hf})

	cf, err := ir.Compile(mod, 1, wasm.DefaultFuncLimits(), guestBody)
	require.NoError(t, err)
	guestFuncID := store.AddFunc(wasm.Function{Type: cf.Type, Kind: wasm.FuncKindInterp, InstanceIdx: instIdx, Compiled: cf})

	mem := wasm.MemoryInstance{Data: make([]byte, wasm.PageSize), Limits: wasm.Limits{Min: 1}}
	mem.Data[0] = 5
	memID := store.AddMemory(mem)

	inst := &wasm.Instance{Module: mod, Funcs: []wasm.FuncID{hostFuncID, guestFuncID}, Memories: []wasm.MemoryID{memID}}
	store.AddInstance(inst)

	results, err := store.CallFunc(guestFuncID, nil)
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(5)}, results)

	got, err := store.Memory(memID)
	require.NoError(t, err)
	require.Equal(t, byte(10), got.Data[0])
}

func TestInterpTrapDivByZero(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpI32DivS),
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	_, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(10), wasm.I32Value(0)})
	require.Error(t, err)
	trap, ok := err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapDivByZero, trap.Kind)
}

func TestInterpTrapUnreachable(t *testing.T) {
	ft := &wasm.FuncType{}
	body := []byte{byte(ir.OpUnreachable), byte(ir.OpEnd)}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	_, err := store.CallFunc(funcIDs[0], nil)
	require.Error(t, err)
	trap, ok := err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapUnreachable, trap.Kind)
}

func TestInterpTrapMemoryBounds(t *testing.T) {
	ft := &wasm.FuncType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpI32Const), 0xFD, 0xFF, 0x03, // 65533, near the one-page end
		byte(ir.OpI32Load), 0x00, 0x04, // align 0, offset 4: reads [65537,65541)
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	mod.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	store, funcIDs := compileAndRegister(t, mod, buf)

	memID := store.AddMemory(wasm.MemoryInstance{Data: make([]byte, wasm.PageSize), Limits: wasm.Limits{Min: 1}})
	store.Instances[0].Memories = []wasm.MemoryID{memID}

	_, err := store.CallFunc(funcIDs[0], nil)
	require.Error(t, err)
	trap, ok := err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapMemoryBounds, trap.Kind)
}

// TestInterpCallStackExhausted self-recurses without a base case, tripping
// maxCallDepth rather than overrunning the Go call stack.
func TestInterpCallStackExhausted(t *testing.T) {
	ft := &wasm.FuncType{}
	body := []byte{
		byte(ir.OpCall), 0x00, // call self
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	_, err := store.CallFunc(funcIDs[0], nil)
	require.Error(t, err)
	trap, ok := err.(*wasmdebug.Trap)
	require.True(t, ok)
	require.Equal(t, wasmdebug.TrapCallStackExhausted, trap.Kind)
}

func TestInterpMemoryGrowAndSize(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpMemoryGrow), 0x00,
		byte(ir.OpMemorySize), 0x00,
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	mod.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: 4, HasMax: true}}}
	store, funcIDs := compileAndRegister(t, mod, buf)

	memID := store.AddMemory(wasm.MemoryInstance{Data: make([]byte, wasm.PageSize), Limits: wasm.Limits{Min: 1, Max: 4, HasMax: true}})
	store.Instances[0].Memories = []wasm.MemoryID{memID}

	results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(2)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(1), wasm.I32Value(3)}, results)
}

func TestInterpGlobals(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpGlobalGet), 0x00,
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpI32Add),
		byte(ir.OpGlobalSet), 0x00,
		byte(ir.OpGlobalGet), 0x00,
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	mod.Globals = []wasm.GlobalType{{ValType: wasm.ValueTypeI32, Mutable: true}}
	store, funcIDs := compileAndRegister(t, mod, buf)

	globalID := store.AddGlobal(wasm.GlobalInstance{Type: mod.Globals[0], Value: wasm.StackValueFromI32(100)})
	store.Instances[0].Globals = []wasm.GlobalID{globalID}

	results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(23)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(123)}, results)

	g, err := store.Global(globalID)
	require.NoError(t, err)
	require.Equal(t, int32(123), g.Value.I32())
}

func TestInterpSelect(t *testing.T) {
	ft := &wasm.FuncType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpLocalGet), 0x01,
		byte(ir.OpLocalGet), 0x02,
		byte(ir.OpSelect),
		byte(ir.OpEnd),
	}
	mod, buf := buildModule([]*wasm.FuncType{ft}, []wasm.Index{0}, [][]wasm.ValueType{nil}, [][]byte{body})
	store, funcIDs := compileAndRegister(t, mod, buf)

	results, err := store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(11), wasm.I32Value(22), wasm.I32Value(1)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(11)}, results)

	results, err = store.CallFunc(funcIDs[0], []wasm.Value{wasm.I32Value(11), wasm.I32Value(22), wasm.I32Value(0)})
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(22)}, results)
}
