package corewasm

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wazeroot/corewasm/internal/binary"
	"github.com/wazeroot/corewasm/internal/ir"
	"github.com/wazeroot/corewasm/internal/wasm"
)

// CompiledModule is a parsed and fully compiled module, ready to be
// instantiated (possibly more than once, against different imports). It
// keeps the raw bytes alongside the decoded wasm.Module because
// CodeSubSection.Offset/Length point back into them (the compiler's
// pull-based design the binary decoder was built for).
type CompiledModule struct {
	module *wasm.Module
	bytes  []byte
}

// CompileModule decodes a binary Wasm module and compiles every locally
// defined function body, the load->validate->compile pipeline spec.md's
// new_module names. A decoding failure is returned as the bare
// *wasm.ParseError; a per-function compile failure is a *wasm.ValidationError
// wrapped with errors.Wrapf (naming the function index), so callers reach
// it with errors.As or errors.Cause rather than a direct type switch.
func (r *Runtime) CompileModule(wasmBytes []byte) (*CompiledModule, error) {
	m, err := binary.DecodeModule(wasmBytes, r.parseLimits)
	if err != nil {
		return nil, err
	}

	m.Compiled = make([]*wasm.CompiledFunc, len(m.Code))
	for i := range m.Code {
		funcIdx := wasm.Index(m.NumImportedFuncs + i)
		cf, err := ir.Compile(m, funcIdx, r.funcLimits, wasmBytes)
		if err != nil {
			r.logger.Warn("compile failed",
				zap.String("module", m.Name),
				zap.Uint32("func_idx", funcIdx),
				zap.Error(err))
			return nil, errors.Wrapf(err, "compiling function %d", funcIdx)
		}
		m.Compiled[i] = cf
	}

	r.logger.Debug("module compiled",
		zap.String("module", m.Name),
		zap.Int("num_funcs", m.NumFuncs()),
		zap.Int("num_defined_funcs", len(m.Code)))
	return &CompiledModule{module: m, bytes: wasmBytes}, nil
}

// NumFuncs is the size of the module's function index space (imported +
// defined), exposed for inspection tooling.
func (cm *CompiledModule) NumFuncs() int { return cm.module.NumFuncs() }

// ExportNames lists the module's export names, in declaration order.
func (cm *CompiledModule) ExportNames() []string {
	names := make([]string, len(cm.module.Exports))
	for i, e := range cm.module.Exports {
		names[i] = e.Name
	}
	return names
}

// FuncSignatures returns one func type string ("i32i32_i32"-style, via
// wasm.FuncType.String) per entry of the function index space, imported
// functions included.
func (cm *CompiledModule) FuncSignatures() []string {
	out := make([]string, cm.module.NumFuncs())
	for i := range out {
		out[i] = cm.module.FuncType(wasm.Index(i)).String()
	}
	return out
}
