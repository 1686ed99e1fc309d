package wasm

import "reflect"

// InstanceID identifies an Instance within a Store.
type InstanceID uint32

// FuncID identifies a Function within a Store.
type FuncID uint32

// TableID identifies a TableInstance within a Store.
type TableID uint32

// MemoryID identifies a MemoryInstance within a Store.
type MemoryID uint32

// GlobalID identifies a GlobalInstance within a Store.
type GlobalID uint32

// FuncKindTag discriminates the three ways a FuncID can resolve to callable
// behavior.
type FuncKindTag byte

const (
	// FuncKindInterp runs compiled guest bytecode.
	FuncKindInterp FuncKindTag = iota
	// FuncKindHost invokes a reflect-wrapped Go function.
	FuncKindHost
	// FuncKindVar is an as-yet-unassigned indirection, bound later via
	// AssignFuncVariable. Used to tie host/guest call cycles together
	// before both sides exist.
	FuncKindVar
)

// Function is a single entry of a Store's function table. Its Kind selects
// which of Interp/Host/Var is meaningful.
type Function struct {
	Type *FuncType
	Kind FuncKindTag

	// InstanceIdx is the owning instance: for FuncKindInterp it supplies
	// the module context (locals' globals/tables/memories index space);
	// for FuncKindHost it is the instance a *Caller reenters the store
	// through. Unused for FuncKindVar.
	InstanceIdx InstanceID

	// Interp fields, valid iff Kind == FuncKindInterp.
	Compiled *CompiledFunc

	// Host fields, valid iff Kind == FuncKindHost.
	HostFunc *HostFunc

	// Var fields, valid iff Kind == FuncKindVar. Bound is NullFunc until
	// AssignFuncVariable resolves it.
	Bound FuncID
}

// NullFunc is the sentinel FuncID denoting "not yet assigned".
const NullFunc FuncID = 0xFFFFFFFF

// HostFunc is a reflect-wrapped Go callable usable as a Wasm import. See
// internal/hostabi for construction.
type HostFunc struct {
	Type    *FuncType
	Value   reflect.Value
	// NeedsCaller is true when the wrapped Go function's first parameter
	// is a *Caller, mirroring wenjin's per-function STORE flag: such
	// functions may reenter the store (read/write memory, call back into
	// guest code) during their call.
	NeedsCaller bool
}

// MemoryInstance is a growable linear memory.
type MemoryInstance struct {
	Data   []byte
	Limits Limits
}

// PageCount returns the current size in 64KiB pages.
func (m *MemoryInstance) PageCount() uint32 { return uint32(len(m.Data) / PageSize) }

// Grow attempts to grow the memory by delta pages, returning the previous
// page count, or ^uint32(0) if the growth would exceed Limits.Max or
// MaxPages.
func (m *MemoryInstance) Grow(delta uint32) uint32 {
	prev := m.PageCount()
	next := prev + delta
	if delta != 0 && next < prev {
		return 0xFFFFFFFF // overflow
	}
	if next > MaxPages {
		return 0xFFFFFFFF
	}
	if m.Limits.HasMax && next > m.Limits.Max {
		return 0xFFFFFFFF
	}
	grown := make([]byte, next*PageSize)
	copy(grown, m.Data)
	m.Data = grown
	return prev
}

// TableInstance is a growable table of reference values.
type TableInstance struct {
	Elems   []RefValue
	RefType RefType
	Limits  Limits
}

// Grow attempts to grow the table by delta elements, filling new slots with
// fillWith. Returns the previous size, or ^uint32(0) on failure.
func (t *TableInstance) Grow(delta uint32, fillWith RefValue) uint32 {
	prev := uint32(len(t.Elems))
	next := prev + delta
	if delta != 0 && next < prev {
		return 0xFFFFFFFF
	}
	if t.Limits.HasMax && next > t.Limits.Max {
		return 0xFFFFFFFF
	}
	grown := make([]RefValue, next)
	copy(grown, t.Elems)
	for i := prev; i < next; i++ {
		grown[i] = fillWith
	}
	t.Elems = grown
	return prev
}

// GlobalInstance is a single mutable or immutable global cell.
type GlobalInstance struct {
	Type  GlobalType
	Value StackValue
}

// Instance is one instantiation of a Module: its own memories, tables, and
// globals, plus the combined (imported+local) index-space mappings into the
// owning Store's tables of FuncID/TableID/MemoryID/GlobalID.
type Instance struct {
	Module *Module

	Funcs    []FuncID
	Tables   []TableID
	Memories []MemoryID
	Globals  []GlobalID

	Exports map[string]Export
}

// ResolveExport looks up an export by name.
func (inst *Instance) ResolveExport(name string) (Export, bool) {
	e, ok := inst.Exports[name]
	return e, ok
}

// ExportedFunc resolves a function export's Store-scoped FuncID.
func (inst *Instance) ExportedFunc(name string) (FuncID, error) {
	e, ok := inst.ResolveExport(name)
	if !ok || e.Type != ExternTypeFunc {
		return 0, &ErrImportNotFound{Module: inst.Module.Name, Name: name}
	}
	return inst.Funcs[e.Index], nil
}

// ExportedMemory resolves a memory export's Store-scoped MemoryID.
func (inst *Instance) ExportedMemory(name string) (MemoryID, error) {
	e, ok := inst.ResolveExport(name)
	if !ok || e.Type != ExternTypeMemory {
		return 0, &ErrImportNotFound{Module: inst.Module.Name, Name: name}
	}
	return inst.Memories[e.Index], nil
}

// ExportedGlobal resolves a global export's Store-scoped GlobalID.
func (inst *Instance) ExportedGlobal(name string) (GlobalID, error) {
	e, ok := inst.ResolveExport(name)
	if !ok || e.Type != ExternTypeGlobal {
		return 0, &ErrImportNotFound{Module: inst.Module.Name, Name: name}
	}
	return inst.Globals[e.Index], nil
}

// ExportedTable resolves a table export's Store-scoped TableID.
func (inst *Instance) ExportedTable(name string) (TableID, error) {
	e, ok := inst.ResolveExport(name)
	if !ok || e.Type != ExternTypeTable {
		return 0, &ErrImportNotFound{Module: inst.Module.Name, Name: name}
	}
	return inst.Tables[e.Index], nil
}
