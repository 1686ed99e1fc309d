package corewasm

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wazeroot/corewasm/internal/wasm"
)

// Instance is one instantiation of a CompiledModule: its own memories,
// tables, and globals, plus the Store it lives in. Calling an exported
// function and reading/writing exported memory both go through it.
type Instance struct {
	runtime *Runtime
	inst    *wasm.Instance
	id      wasm.InstanceID
}

// InstantiateModule resolves cm's imports against previously registered
// instances, allocates its own tables/memories/globals, applies active
// element and data segments, runs the start function if present, and
// registers the result under cfg.Name if non-empty. This is spec.md's
// new_instance.
func (r *Runtime) InstantiateModule(cm *CompiledModule, cfg ModuleConfig) (*Instance, error) {
	m := cm.module
	instID := wasm.InstanceID(len(r.store.Instances))

	funcs, err := r.resolveFuncImports(m)
	if err != nil {
		return nil, err
	}
	tables, err := r.resolveTableImports(m)
	if err != nil {
		return nil, err
	}
	mems, err := r.resolveMemoryImports(m)
	if err != nil {
		return nil, err
	}
	globals, err := r.resolveGlobalImports(m)
	if err != nil {
		return nil, err
	}

	for _, tt := range m.Tables {
		tables = append(tables, r.store.AddTable(wasm.TableInstance{
			RefType: tt.RefType,
			Limits:  tt.Limits,
			Elems:   make([]wasm.RefValue, tt.Limits.Min),
		}))
		t, _ := r.store.Table(tables[len(tables)-1])
		for j := range t.Elems {
			t.Elems[j] = wasm.NullRef
		}
	}
	for _, mt := range m.Memories {
		mems = append(mems, r.store.AddMemory(wasm.MemoryInstance{
			Data:   make([]byte, uint64(mt.Limits.Min)*wasm.PageSize),
			Limits: mt.Limits,
		}))
	}

	// Functions are registered before global initializers run: a ref.func
	// init expr may target a locally defined function index, which Wasm
	// allows referencing before any instantiation step links its body.
	for i := range m.Code {
		funcIdx := wasm.Index(m.NumImportedFuncs + i)
		funcs = append(funcs, r.store.AddFunc(wasm.Function{
			Type:        m.FuncType(funcIdx),
			Kind:        wasm.FuncKindInterp,
			InstanceIdx: instID,
			Compiled:    m.Compiled[i],
		}))
	}

	inst := &wasm.Instance{Module: m, Funcs: funcs, Tables: tables, Memories: mems, Globals: globals}

	for i, gt := range m.Globals {
		v, err := evalConstExpr(r.store, inst, m.GlobalInits[i])
		if err != nil {
			return nil, err
		}
		globals = append(globals, r.store.AddGlobal(wasm.GlobalInstance{Type: gt, Value: v}))
	}
	inst.Globals = globals

	if err := applyElements(r.store, inst, m); err != nil {
		return nil, err
	}
	if err := applyData(r.store, inst, m); err != nil {
		return nil, err
	}

	inst.Exports = make(map[string]wasm.Export, len(m.Exports))
	for _, e := range m.Exports {
		inst.Exports[e.Name] = e
	}

	gotID := r.store.AddInstance(inst)
	if gotID != instID {
		return nil, fmt.Errorf("corewasm: instance index race: expected %d, got %d", instID, gotID)
	}

	result := &Instance{runtime: r, inst: inst, id: instID}

	if m.HasStart {
		if _, err := r.store.CallFunc(funcs[m.StartFunc], nil); err != nil {
			return nil, errors.Wrap(err, "start function trapped")
		}
	}

	if cfg.Name != "" {
		r.named[cfg.Name] = result
	}
	r.logger.Debug("module instantiated",
		zap.String("name", cfg.Name),
		zap.Int("num_tables", len(tables)),
		zap.Int("num_memories", len(mems)))
	return result, nil
}

func (r *Runtime) resolveFuncImports(m *wasm.Module) ([]wasm.FuncID, error) {
	var out []wasm.FuncID
	for _, imp := range m.Imports {
		if imp.Type != wasm.ExternTypeFunc {
			continue
		}
		id, err := r.resolveImport(imp, wasm.ExternTypeFunc, func(src *Instance, e wasm.Export) (interface{}, error) {
			wantType := m.Types[imp.DescFunc]
			fid := src.inst.Funcs[e.Index]
			f, err := r.store.Func(fid)
			if err != nil {
				return nil, err
			}
			if !f.Type.Equal(wantType) {
				return nil, &wasm.ErrImportTypeMismatch{Module: imp.Module, Name: imp.Name, Detail: "function signature mismatch"}
			}
			return fid, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, id.(wasm.FuncID))
	}
	return out, nil
}

func (r *Runtime) resolveTableImports(m *wasm.Module) ([]wasm.TableID, error) {
	var out []wasm.TableID
	for _, imp := range m.Imports {
		if imp.Type != wasm.ExternTypeTable {
			continue
		}
		id, err := r.resolveImport(imp, wasm.ExternTypeTable, func(src *Instance, e wasm.Export) (interface{}, error) {
			tid := src.inst.Tables[e.Index]
			t, err := r.store.Table(tid)
			if err != nil {
				return nil, err
			}
			if t.RefType != imp.DescTable.RefType || !limitsCompatible(t.Limits, imp.DescTable.Limits) {
				return nil, &wasm.ErrImportTypeMismatch{Module: imp.Module, Name: imp.Name, Detail: "table type mismatch"}
			}
			return tid, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, id.(wasm.TableID))
	}
	return out, nil
}

func (r *Runtime) resolveMemoryImports(m *wasm.Module) ([]wasm.MemoryID, error) {
	var out []wasm.MemoryID
	for _, imp := range m.Imports {
		if imp.Type != wasm.ExternTypeMemory {
			continue
		}
		id, err := r.resolveImport(imp, wasm.ExternTypeMemory, func(src *Instance, e wasm.Export) (interface{}, error) {
			mid := src.inst.Memories[e.Index]
			mem, err := r.store.Memory(mid)
			if err != nil {
				return nil, err
			}
			if !limitsCompatible(mem.Limits, imp.DescMemory.Limits) {
				return nil, &wasm.ErrImportTypeMismatch{Module: imp.Module, Name: imp.Name, Detail: "memory limits mismatch"}
			}
			return mid, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, id.(wasm.MemoryID))
	}
	return out, nil
}

func (r *Runtime) resolveGlobalImports(m *wasm.Module) ([]wasm.GlobalID, error) {
	var out []wasm.GlobalID
	for _, imp := range m.Imports {
		if imp.Type != wasm.ExternTypeGlobal {
			continue
		}
		id, err := r.resolveImport(imp, wasm.ExternTypeGlobal, func(src *Instance, e wasm.Export) (interface{}, error) {
			gid := src.inst.Globals[e.Index]
			g, err := r.store.Global(gid)
			if err != nil {
				return nil, err
			}
			if g.Type.ValType != imp.DescGlobal.ValType || g.Type.Mutable != imp.DescGlobal.Mutable {
				return nil, &wasm.ErrImportTypeMismatch{Module: imp.Module, Name: imp.Name, Detail: "global type mismatch"}
			}
			return gid, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, id.(wasm.GlobalID))
	}
	return out, nil
}

// resolveImport looks up imp.Module in the runtime's named registry and
// imp.Name among its exports, delegating type-compatibility checking to
// check, which also extracts the concrete handle.
func (r *Runtime) resolveImport(imp wasm.Import, want wasm.ExternType, check func(*Instance, wasm.Export) (interface{}, error)) (interface{}, error) {
	src, ok := r.named[imp.Module]
	if !ok {
		return nil, &wasm.ErrImportNotFound{Module: imp.Module, Name: imp.Name}
	}
	e, ok := src.inst.ResolveExport(imp.Name)
	if !ok || e.Type != want {
		return nil, &wasm.ErrImportNotFound{Module: imp.Module, Name: imp.Name}
	}
	return check(src, e)
}

// limitsCompatible reports whether actual satisfies the bound required:
// actual.Min must cover required.Min, and if required bounds a max, actual
// must too, no looser.
func limitsCompatible(actual, required wasm.Limits) bool {
	if actual.Min < required.Min {
		return false
	}
	if required.HasMax {
		if !actual.HasMax || actual.Max > required.Max {
			return false
		}
	}
	return true
}

// evalConstExpr evaluates a single-instruction constant initializer
// against the instance under construction, whose Funcs/Globals slices are
// filled in exactly as far as the Wasm spec allows a const expr to
// reference (globals may only reference already-resolved imported
// globals; ref.func may reference any function index, imported or local).
func evalConstExpr(store *wasm.Store, inst *wasm.Instance, ce wasm.ConstExpr) (wasm.StackValue, error) {
	switch ce.Kind {
	case wasm.ConstExprI32:
		return wasm.StackValueFromI32(ce.I32), nil
	case wasm.ConstExprI64:
		return wasm.StackValueFromI64(ce.I64), nil
	case wasm.ConstExprF32:
		return wasm.StackValueFromF32(ce.F32), nil
	case wasm.ConstExprF64:
		return wasm.StackValueFromF64(ce.F64), nil
	case wasm.ConstExprGlobalGet:
		g, err := store.Global(inst.Globals[ce.GlobalIdx])
		if err != nil {
			return 0, err
		}
		return g.Value, nil
	case wasm.ConstExprRefNull:
		return wasm.StackValueFromRef(wasm.NullRef), nil
	case wasm.ConstExprRefFunc:
		return wasm.StackValueFromRef(wasm.RefValue{ID: uint32(inst.Funcs[ce.RefFuncIdx])}), nil
	default:
		return 0, fmt.Errorf("corewasm: unknown const expr kind %d", ce.Kind)
	}
}

// applyElements copies each active element segment's translated function
// references into its target table.
func applyElements(store *wasm.Store, inst *wasm.Instance, m *wasm.Module) error {
	for _, seg := range m.Elements {
		if seg.Kind != wasm.ElementActive {
			continue
		}
		off, err := evalConstExpr(store, inst, seg.Offset)
		if err != nil {
			return err
		}
		t, err := store.Table(inst.Tables[seg.TableIdx])
		if err != nil {
			return err
		}
		start := int(off.I32())
		if start < 0 || start+len(seg.FuncIndexes) > len(t.Elems) {
			return wasm.ErrElementOffsetOutOfBounds
		}
		for i, fi := range seg.FuncIndexes {
			t.Elems[start+i] = wasm.RefValue{ID: uint32(inst.Funcs[fi])}
		}
	}
	return nil
}

// applyData copies each active data segment's bytes into its target
// memory.
func applyData(store *wasm.Store, inst *wasm.Instance, m *wasm.Module) error {
	for _, seg := range m.Datas {
		if seg.Kind != wasm.DataActive {
			continue
		}
		off, err := evalConstExpr(store, inst, seg.Offset)
		if err != nil {
			return err
		}
		mem, err := store.Memory(inst.Memories[seg.MemIdx])
		if err != nil {
			return err
		}
		start := int(off.I32())
		if start < 0 || start+len(seg.Init) > len(mem.Data) {
			return wasm.ErrDataOffsetOutOfBounds
		}
		copy(mem.Data[start:], seg.Init)
	}
	return nil
}

// ExportedFunction resolves name to a callable handle.
func (i *Instance) ExportedFunction(name string) (*Func, error) {
	id, err := i.inst.ExportedFunc(name)
	if err != nil {
		return nil, err
	}
	f, err := i.runtime.store.Func(id)
	if err != nil {
		return nil, err
	}
	return &Func{runtime: i.runtime, id: id, fn: f}, nil
}

// Memory returns the instance's exported memory, or a nil memory and an
// error if it has none by that name.
func (i *Instance) Memory(name string) (*wasm.MemoryInstance, error) {
	id, err := i.inst.ExportedMemory(name)
	if err != nil {
		return nil, err
	}
	return i.runtime.store.Memory(id)
}

// Func is a callable, exported Wasm function.
type Func struct {
	runtime *Runtime
	id      wasm.FuncID
	fn      *wasm.Function
}

// Call invokes the function with tagged values, per spec.md's call_func.
func (f *Func) Call(args ...wasm.Value) ([]wasm.Value, error) {
	return f.runtime.store.CallFunc(f.id, args)
}

// Type is the function's signature.
func (f *Func) Type() *wasm.FuncType { return f.fn.Type }
