// Package corewasm is the root façade over the internal parser, compiler,
// interpreter, and store: load a binary into a CompiledModule, instantiate
// it (resolving imports against previously instantiated modules), and call
// its exports. Everything below internal/ is an implementation detail; this
// package is the only one a host program needs to import.
package corewasm

import (
	"go.uber.org/zap"

	"github.com/wazeroot/corewasm/internal/interpreter"
	"github.com/wazeroot/corewasm/internal/wasm"
)

// Runtime owns one Store and the named instances registered into it.
// Instances register by ModuleConfig.Name and later modules resolve
// imports by (module name, field name) against that registry, mirroring
// wazero's Namespace.
type Runtime struct {
	store       *wasm.Store
	parseLimits wasm.ParseLimits
	funcLimits  wasm.FuncLimits
	logger      *zap.Logger

	named map[string]*Instance
}

// NewRuntime creates a Runtime backed by the register/stack interpreter
// engine.
func NewRuntime(config RuntimeConfig) *Runtime {
	return &Runtime{
		store:       wasm.NewStore(interpreter.NewEngine()),
		parseLimits: config.parseLimits,
		funcLimits:  config.funcLimits,
		logger:      config.logger,
		named:       make(map[string]*Instance),
	}
}

// NewDefaultRuntime is a convenience for NewRuntime(NewRuntimeConfig()).
func NewDefaultRuntime() *Runtime {
	return NewRuntime(NewRuntimeConfig())
}

// Instance looks up a previously instantiated, named module.
func (r *Runtime) Instance(name string) (*Instance, bool) {
	inst, ok := r.named[name]
	return inst, ok
}
