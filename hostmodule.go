package corewasm

import (
	"go.uber.org/zap"

	"github.com/wazeroot/corewasm/internal/hostabi"
	"github.com/wazeroot/corewasm/internal/wasm"
)

// HostModuleBuilder collects host functions under a module name so guest
// modules can import them by (name, field), mirroring the teacher's
// HostModuleBuilder/HostFunctionBuilder pair but built directly on
// hostabi.NewHostFunc instead of a context.Context-carrying interface,
// since this runtime has no ambient context to thread through a call.
type HostModuleBuilder struct {
	name  string
	names []string
	funcs []interface{}
}

// NewHostModuleBuilder starts a host module under the given name.
func (r *Runtime) NewHostModuleBuilder(name string) *HostModuleBuilder {
	return &HostModuleBuilder{name: name}
}

// NewFunction registers fn (see hostabi.NewHostFunc for the accepted Go
// signatures) as an export named exportName.
func (b *HostModuleBuilder) NewFunction(exportName string, fn interface{}) *HostModuleBuilder {
	b.names = append(b.names, exportName)
	b.funcs = append(b.funcs, fn)
	return b
}

// Instantiate wraps every registered function as a wasm.HostFunc,
// registers them all as one Instance in the Store, and names it in the
// Runtime's import-resolution registry.
func (b *HostModuleBuilder) Instantiate(r *Runtime) (*Instance, error) {
	instID := wasm.InstanceID(len(r.store.Instances))
	mod := &wasm.Module{Name: b.name}
	inst := &wasm.Instance{Module: mod, Exports: make(map[string]wasm.Export, len(b.funcs))}

	for idx, name := range b.names {
		hf, err := hostabi.NewHostFunc(b.funcs[idx])
		if err != nil {
			return nil, err
		}
		fid := r.store.AddFunc(wasm.Function{Type: hf.Type, Kind: wasm.FuncKindHost, InstanceIdx: instID, HostFunc: hf})
		inst.Funcs = append(inst.Funcs, fid)
		inst.Exports[name] = wasm.Export{Name: name, Type: wasm.ExternTypeFunc, Index: wasm.Index(idx)}
	}

	gotID := r.store.AddInstance(inst)
	result := &Instance{runtime: r, inst: inst, id: gotID}
	r.named[b.name] = result
	r.logger.Debug("host module instantiated", zap.String("name", b.name), zap.Int("num_funcs", len(b.funcs)))
	return result, nil
}
