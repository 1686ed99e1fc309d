package wasm

import (
	"fmt"

	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

// Store owns every live object across however many modules have been
// instantiated into it: the combined function/table/memory/global tables
// addressed by FuncID/TableID/MemoryID/GlobalID, and the Instances built
// from them. Parsing and instantiation orchestration (which need the
// binary decoder and the ir compiler, unavailable here without an import
// cycle) live one layer up; Store itself only holds state and dispatches
// calls through Engine.
type Store struct {
	Engine Engine

	Funcs     []Function
	Tables    []TableInstance
	Memories  []MemoryInstance
	Globals   []GlobalInstance
	Instances []*Instance
}

// NewStore creates an empty Store bound to the given Engine (normally
// interpreter.NewEngine()).
func NewStore(engine Engine) *Store {
	return &Store{Engine: engine}
}

func (s *Store) AddFunc(f Function) FuncID {
	s.Funcs = append(s.Funcs, f)
	return FuncID(len(s.Funcs) - 1)
}

func (s *Store) AddTable(t TableInstance) TableID {
	s.Tables = append(s.Tables, t)
	return TableID(len(s.Tables) - 1)
}

func (s *Store) AddMemory(m MemoryInstance) MemoryID {
	s.Memories = append(s.Memories, m)
	return MemoryID(len(s.Memories) - 1)
}

func (s *Store) AddGlobal(g GlobalInstance) GlobalID {
	s.Globals = append(s.Globals, g)
	return GlobalID(len(s.Globals) - 1)
}

func (s *Store) AddInstance(inst *Instance) InstanceID {
	s.Instances = append(s.Instances, inst)
	return InstanceID(len(s.Instances) - 1)
}

func (s *Store) Func(id FuncID) (*Function, error) {
	if int(id) >= len(s.Funcs) {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrInvalidHandle, Detail: fmt.Sprintf("func id %d", id)}
	}
	return &s.Funcs[id], nil
}

func (s *Store) Table(id TableID) (*TableInstance, error) {
	if int(id) >= len(s.Tables) {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrInvalidHandle, Detail: fmt.Sprintf("table id %d", id)}
	}
	return &s.Tables[id], nil
}

func (s *Store) Memory(id MemoryID) (*MemoryInstance, error) {
	if int(id) >= len(s.Memories) {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrInvalidHandle, Detail: fmt.Sprintf("memory id %d", id)}
	}
	return &s.Memories[id], nil
}

func (s *Store) Global(id GlobalID) (*GlobalInstance, error) {
	if int(id) >= len(s.Globals) {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrInvalidHandle, Detail: fmt.Sprintf("global id %d", id)}
	}
	return &s.Globals[id], nil
}

// AssignFuncVariable resolves a FuncKindVar entry to a concrete FuncID, per
// cyclic host/guest wiring: a host import that must call back
// into a not-yet-instantiated module is registered as a variable first,
// then bound once the real function exists. Binding a variable to itself
// or to any other variable (bound or not) is rejected to keep Call's
// resolution loop bounded to one indirection.
func (s *Store) AssignFuncVariable(v FuncID, target FuncID) error {
	f, err := s.Func(v)
	if err != nil {
		return err
	}
	if f.Kind != FuncKindVar {
		return &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrTypeMismatch, Detail: "AssignFuncVariable: not a variable function"}
	}
	if target == v {
		return &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrFuncVariableCycle}
	}
	if tf, err := s.Func(target); err == nil && tf.Kind == FuncKindVar {
		return &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrFuncVariableCycle, Detail: "cannot bind a variable to another variable"}
	}
	f.Bound = target
	return nil
}

// ResolveFunc follows a FuncKindVar indirection to the concrete function
// backing it.
func (s *Store) ResolveFunc(id FuncID) (FuncID, *Function, error) {
	f, err := s.Func(id)
	if err != nil {
		return 0, nil, err
	}
	if f.Kind != FuncKindVar {
		return id, f, nil
	}
	if f.Bound == NullFunc {
		return 0, nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrTypeMismatch, Detail: "call through unassigned function variable"}
	}
	bf, err := s.Func(f.Bound)
	if err != nil {
		return 0, nil, err
	}
	return f.Bound, bf, nil
}

// CallFunc invokes a function by its Store-scoped FuncID with tagged
// Values, converting to/from the engine's raw StackValue calling
// convention and validating arity/types at the boundary.
func (s *Store) CallFunc(id FuncID, args []Value) ([]Value, error) {
	_, f, err := s.ResolveFunc(id)
	if err != nil {
		return nil, err
	}
	if len(args) != len(f.Type.Params) {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrTypeMismatch, Detail: "argument count mismatch"}
	}
	raw := make([]StackValue, len(args))
	for i, a := range args {
		if a.Type != f.Type.Params[i] {
			return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrTypeMismatch, Detail: "argument type mismatch"}
		}
		raw[i] = StackValueFromValue(a)
	}
	rawResults, err := s.Engine.Call(s, id, raw)
	if err != nil {
		return nil, err
	}
	results := make([]Value, len(rawResults))
	for i, r := range rawResults {
		results[i] = r.ToValue(f.Type.Results[i])
	}
	return results, nil
}
