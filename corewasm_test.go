package corewasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazeroot/corewasm/internal/ir"
	"github.com/wazeroot/corewasm/internal/leb128"
	"github.com/wazeroot/corewasm/internal/wasm"
)

// section frames body under id, length-prefixed per the binary format.
func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func u32(v uint32) []byte { return leb128.EncodeUint32(v) }

func name(s string) []byte { return append(u32(uint32(len(s))), s...) }

// buildWasmBinary assembles a module that imports a host function, declares
// a table, a memory, a mutable global, one active element segment, one
// active data segment, and an exported function exercising all of them:
//
//	(func $run (param i32) (result i32)
//	  local.get 0
//	  call $double   ;; imported
//	  global.get $g
//	  i32.add)
func buildWasmBinary() []byte {
	buf := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Type section: type0 (i32)->i32, used by both the import and $run.
	typeSec := append(u32(1),
		append([]byte{0x60}, append(append(u32(1), 0x7f), append(u32(1), 0x7f)...)...)...)
	buf = append(buf, section(1, typeSec)...)

	// Import section: "env"."double" : type0.
	importSec := append(u32(1), append(append(name("env"), name("double")...), 0x00)...)
	importSec = append(importSec, u32(0)...)
	buf = append(buf, section(2, importSec)...)

	// Function section: one local function, type0.
	buf = append(buf, section(3, append(u32(1), u32(0)...))...)

	// Table section: funcref, min 1 max 1.
	tableSec := append(u32(1), 0x70, 0x01)
	tableSec = append(tableSec, u32(1)...)
	tableSec = append(tableSec, u32(1)...)
	buf = append(buf, section(4, tableSec)...)

	// Memory section: min 1, no max.
	memSec := append(u32(1), 0x00)
	memSec = append(memSec, u32(1)...)
	buf = append(buf, section(5, memSec)...)

	// Global section: i32 mutable, init i32.const 100.
	globalSec := append(u32(1), 0x7f, 0x01)
	globalSec = append(globalSec, byte(ir.OpI32Const))
	globalSec = append(globalSec, leb128.EncodeInt32(100)...)
	globalSec = append(globalSec, byte(ir.OpEnd))
	buf = append(buf, section(6, globalSec)...)

	// Export section: "run" (func idx1), "mem" (mem idx0), "tbl" (table
	// idx0), "g" (global idx0).
	exportSec := u32(4)
	exportSec = append(exportSec, append(name("run"), 0x00)...)
	exportSec = append(exportSec, u32(1)...)
	exportSec = append(exportSec, append(name("mem"), 0x02)...)
	exportSec = append(exportSec, u32(0)...)
	exportSec = append(exportSec, append(name("tbl"), 0x01)...)
	exportSec = append(exportSec, u32(0)...)
	exportSec = append(exportSec, append(name("g"), 0x03)...)
	exportSec = append(exportSec, u32(0)...)
	buf = append(buf, section(7, exportSec)...)

	// Element section: active, table0, offset i32.const 0, funcidx [0]
	// (the imported "double"), so a funcref export could reach it.
	elemSec := u32(1)
	elemSec = append(elemSec, 0x00) // active, table index implied 0 (flag byte)
	elemSec = append(elemSec, byte(ir.OpI32Const))
	elemSec = append(elemSec, leb128.EncodeInt32(0)...)
	elemSec = append(elemSec, byte(ir.OpEnd))
	elemSec = append(elemSec, u32(1)...)
	elemSec = append(elemSec, u32(0)...)
	buf = append(buf, section(9, elemSec)...)

	// Code section: body of $run.
	runBody := []byte{
		byte(ir.OpLocalGet), 0x00,
		byte(ir.OpCall), 0x00,
		byte(ir.OpGlobalGet), 0x00,
		byte(ir.OpI32Add),
		byte(ir.OpEnd),
	}
	codeBody := append(u32(0), runBody...) // 0 local-decl runs
	codeSec := append(u32(1), append(u32(uint32(len(codeBody))), codeBody...)...)
	buf = append(buf, section(10, codeSec)...)

	// Data section: active, mem0, offset i32.const 0, bytes "hi".
	dataSec := u32(1)
	dataSec = append(dataSec, 0x00)
	dataSec = append(dataSec, byte(ir.OpI32Const))
	dataSec = append(dataSec, leb128.EncodeInt32(0)...)
	dataSec = append(dataSec, byte(ir.OpEnd))
	dataSec = append(dataSec, append(u32(2), 'h', 'i')...)
	buf = append(buf, section(11, dataSec)...)

	return buf
}

func TestEndToEndCompileInstantiateCall(t *testing.T) {
	rt := NewDefaultRuntime()

	hostMod, err := rt.NewHostModuleBuilder("env").
		NewFunction("double", func(x int32) int32 { return x * 2 }).
		Instantiate(rt)
	require.NoError(t, err)
	require.NotNil(t, hostMod)

	cm, err := rt.CompileModule(buildWasmBinary())
	require.NoError(t, err)
	require.Equal(t, 2, cm.NumFuncs())
	require.ElementsMatch(t, []string{"run", "mem", "tbl", "g"}, cm.ExportNames())

	inst, err := rt.InstantiateModule(cm, NewModuleConfig().WithName("main"))
	require.NoError(t, err)

	run, err := inst.ExportedFunction("run")
	require.NoError(t, err)
	results, err := run.Call(wasm.I32Value(5))
	require.NoError(t, err)
	require.Equal(t, []wasm.Value{wasm.I32Value(110)}, results) // double(5)=10, +global 100

	mem, err := inst.Memory("mem")
	require.NoError(t, err)
	require.Equal(t, byte('h'), mem.Data[0])
	require.Equal(t, byte('i'), mem.Data[1])

	_, ok := rt.Instance("main")
	require.True(t, ok)
}

func TestCompileModuleRejectsBadMagic(t *testing.T) {
	rt := NewDefaultRuntime()
	_, err := rt.CompileModule([]byte{0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
	var perr *wasm.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, wasm.ParseErrInvalidMagic, perr.Kind)
}

func TestInstantiateModuleMissingImportFails(t *testing.T) {
	rt := NewDefaultRuntime()
	cm, err := rt.CompileModule(buildWasmBinary())
	require.NoError(t, err)

	_, err = rt.InstantiateModule(cm, NewModuleConfig())
	require.Error(t, err)
}
