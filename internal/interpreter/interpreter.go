// Package interpreter is the wasm.Engine implementation: a flat stack
// machine that walks a CompiledFunc's bytecode, applying the jump
// resolution records the compiler attached to branch sites instead of
// recursing through a tree of control frames. Locals and the operand
// stack share one []wasm.StackValue slice per call, sized to
// CompiledFunc.StackSize so no reallocation happens mid-call.
package interpreter

import (
	"math"

	"github.com/wazeroot/corewasm/internal/hostabi"
	"github.com/wazeroot/corewasm/internal/ir"
	"github.com/wazeroot/corewasm/internal/leb128"
	"github.com/wazeroot/corewasm/internal/wasm"
	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

// maxCallDepth bounds guest-to-guest and guest-to-host-to-guest call
// recursion. Without it, a self-recursive function runs the Go call stack
// into the OS-level guard page, which panics the whole process instead of
// returning a trap the host can recover from.
const maxCallDepth = 2048

type engine struct {
	// active is the threadState of the outermost Call still running, so a
	// host function that reenters the same store continues its depth count.
	active *threadState
}

// NewEngine returns the interpreter's wasm.Engine.
func NewEngine() wasm.Engine { return &engine{} }

func (e *engine) Call(store *wasm.Store, id wasm.FuncID, args []wasm.StackValue) ([]wasm.StackValue, error) {
	if e.active != nil && e.active.store == store {
		return e.active.callFunc(id, args)
	}
	prev := e.active
	th := &threadState{store: store}
	e.active = th
	defer func() { e.active = prev }()
	return th.callFunc(id, args)
}

// threadState tracks call depth across one external Store.CallFunc
// invocation, including any guest-to-host-to-guest reentrancy.
type threadState struct {
	store *wasm.Store
	depth int
}

func (th *threadState) callFunc(id wasm.FuncID, args []wasm.StackValue) ([]wasm.StackValue, error) {
	rid, f, err := th.store.ResolveFunc(id)
	if err != nil {
		return nil, err
	}

	th.depth++
	defer func() { th.depth-- }()
	if th.depth > maxCallDepth {
		return nil, &wasmdebug.Trap{Kind: wasmdebug.TrapCallStackExhausted, FuncIdx: uint32(rid)}
	}

	switch f.Kind {
	case wasm.FuncKindHost:
		var caller *hostabi.Caller
		if f.HostFunc.NeedsCaller {
			caller = &hostabi.Caller{Store: th.store, InstanceIdx: f.InstanceIdx}
		}
		return hostabi.Invoke(f.HostFunc, caller, args)
	case wasm.FuncKindInterp:
		return th.runInterp(rid, f, args)
	default:
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrTypeMismatch, Detail: "call through unresolved function variable"}
	}
}

// applyJump discards the ShiftBy values immediately below the branch's
// preserved ShiftNum values, by sliding the preserved values down. Go's
// builtin copy is memmove-safe for this overlapping case.
func applyJump(stack []wasm.StackValue, sp int, j wasm.Jump) int {
	src := sp - int(j.ShiftNum)
	dst := src - int(j.ShiftBy)
	copy(stack[dst:dst+int(j.ShiftNum)], stack[src:src+int(j.ShiftNum)])
	return dst + int(j.ShiftNum)
}

func (th *threadState) runInterp(funcIdx wasm.FuncID, f *wasm.Function, args []wasm.StackValue) ([]wasm.StackValue, error) {
	cf := f.Compiled
	inst := th.store.Instances[f.InstanceIdx]

	stack := make([]wasm.StackValue, cf.StackSize)
	copy(stack[:cf.NumParams], args)

	r := &runner{
		th:      th,
		inst:    inst,
		funcIdx: funcIdx,
		code:    cf.Code,
		jumps:   cf.Jumps,
		stack:   stack,
		sp:      int(cf.NumLocals),
	}
	if err := r.run(); err != nil {
		return nil, err
	}

	results := make([]wasm.StackValue, len(cf.Type.Results))
	copy(results, r.stack[r.sp-len(results):r.sp])
	return results, nil
}

// runner executes one call's bytecode loop. It is not reused across calls.
type runner struct {
	th      *threadState
	inst    *wasm.Instance
	funcIdx wasm.FuncID

	code  []byte
	jumps map[uint32]wasm.Jump

	stack []wasm.StackValue
	sp    int
}

func (r *runner) trap(kind wasmdebug.TrapKind, pc uint32) error {
	return &wasmdebug.Trap{Kind: kind, FuncIdx: uint32(r.funcIdx), PC: pc}
}

func (r *runner) push(v wasm.StackValue) { r.stack[r.sp] = v; r.sp++ }
func (r *runner) pop() wasm.StackValue   { r.sp--; return r.stack[r.sp] }

func (r *runner) u32Imm(pc *uint32) uint32 {
	v, n, _ := leb128.LoadUint32(r.code[*pc:])
	*pc += uint32(n)
	return v
}

func (r *runner) i32Imm(pc *uint32) int32 {
	v, n, _ := leb128.LoadInt32(r.code[*pc:])
	*pc += uint32(n)
	return v
}

func (r *runner) i64Imm(pc *uint32) int64 {
	v, n, _ := leb128.LoadInt64(r.code[*pc:])
	*pc += uint32(n)
	return v
}

func (r *runner) f32Imm(pc *uint32) float32 {
	v := math.Float32frombits(uint32(r.code[*pc]) | uint32(r.code[*pc+1])<<8 | uint32(r.code[*pc+2])<<16 | uint32(r.code[*pc+3])<<24)
	*pc += 4
	return v
}

func (r *runner) f64Imm(pc *uint32) float64 {
	var bits64 uint64
	for i := 0; i < 8; i++ {
		bits64 |= uint64(r.code[*pc+uint32(i)]) << (8 * i)
	}
	*pc += 8
	return math.Float64frombits(bits64)
}

func (r *runner) memory() (*wasm.MemoryInstance, error) {
	if len(r.inst.Memories) == 0 {
		return nil, r.trap(wasmdebug.TrapMemoryBounds, 0)
	}
	return r.th.store.Memory(r.inst.Memories[0])
}

// run executes the function's bytecode to completion, leaving results on
// the top of r.stack.
func (r *runner) run() error {
	code := r.code
	pc := uint32(0)
	for pc < uint32(len(code)) {
		op := ir.Opcode(code[pc])
		opPC := pc
		pc++

		switch op {
		case ir.OpUnreachable:
			return r.trap(wasmdebug.TrapUnreachable, opPC)
		case ir.OpNop:

		case ir.OpIf:
			cond := r.pop()
			if cond.I32() == 0 {
				j := r.jumps[pc]
				r.sp = applyJump(r.stack, r.sp, j)
				pc = j.Target
			}

		case ir.OpElse:
			j := r.jumps[pc]
			r.sp = applyJump(r.stack, r.sp, j)
			pc = j.Target

		case ir.OpBr:
			j := r.jumps[pc]
			r.sp = applyJump(r.stack, r.sp, j)
			pc = j.Target

		case ir.OpBrIf:
			cond := r.pop()
			j := r.jumps[pc]
			if cond.I32() != 0 {
				r.sp = applyJump(r.stack, r.sp, j)
				pc = j.Target
			}

		case ir.OpBrTable:
			n := r.u32Imm(&pc)
			idx := r.pop().U32()
			if idx > n {
				idx = n
			}
			j := r.jumps[pc+idx]
			r.sp = applyJump(r.stack, r.sp, j)
			pc = j.Target

		case ir.OpReturn:
			j := r.jumps[pc]
			r.sp = applyJump(r.stack, r.sp, j)
			pc = j.Target

		case ir.OpCall:
			idx := r.u32Imm(&pc)
			if err := r.doCall(r.inst.Funcs[idx]); err != nil {
				return err
			}

		case ir.OpCallIndirect:
			typeIdx := r.u32Imm(&pc)
			tableIdx := r.u32Imm(&pc)
			elemIdx := r.pop().U32()
			table, err := r.th.store.Table(r.inst.Tables[tableIdx])
			if err != nil {
				return err
			}
			if elemIdx >= uint32(len(table.Elems)) {
				return r.trap(wasmdebug.TrapTableBounds, opPC)
			}
			ref := table.Elems[elemIdx]
			if ref.IsNull() {
				return r.trap(wasmdebug.TrapCallIndirectNullRef, opPC)
			}
			targetID := wasm.FuncID(ref.ID)
			target, err := r.th.store.Func(targetID)
			if err != nil {
				return err
			}
			wantType := targetFuncType(r.inst, typeIdx)
			if !target.Type.Equal(wantType) {
				return r.trap(wasmdebug.TrapCallIndirectTypeMismatch, opPC)
			}
			if err := r.doCall(targetID); err != nil {
				return err
			}

		case ir.OpDrop:
			r.sp--

		case ir.OpSelect, ir.OpTypedSelect:
			cond := r.pop()
			b := r.pop()
			a := r.pop()
			if cond.I32() != 0 {
				r.push(a)
			} else {
				r.push(b)
			}

		case ir.OpLocalGet:
			idx := r.u32Imm(&pc)
			r.push(r.stack[idx])
		case ir.OpLocalSet:
			idx := r.u32Imm(&pc)
			r.stack[idx] = r.pop()
		case ir.OpLocalTee:
			idx := r.u32Imm(&pc)
			r.stack[idx] = r.stack[r.sp-1]

		case ir.OpGlobalGet:
			idx := r.u32Imm(&pc)
			g, err := r.th.store.Global(r.inst.Globals[idx])
			if err != nil {
				return err
			}
			r.push(g.Value)
		case ir.OpGlobalSet:
			idx := r.u32Imm(&pc)
			g, err := r.th.store.Global(r.inst.Globals[idx])
			if err != nil {
				return err
			}
			g.Value = r.pop()

		case ir.OpTableGet:
			idx := r.u32Imm(&pc)
			table, err := r.th.store.Table(r.inst.Tables[idx])
			if err != nil {
				return err
			}
			elemIdx := r.pop().U32()
			if elemIdx >= uint32(len(table.Elems)) {
				return r.trap(wasmdebug.TrapTableBounds, opPC)
			}
			r.push(wasm.StackValueFromRef(table.Elems[elemIdx]))
		case ir.OpTableSet:
			idx := r.u32Imm(&pc)
			table, err := r.th.store.Table(r.inst.Tables[idx])
			if err != nil {
				return err
			}
			v := r.pop().Ref()
			elemIdx := r.pop().U32()
			if elemIdx >= uint32(len(table.Elems)) {
				return r.trap(wasmdebug.TrapTableBounds, opPC)
			}
			table.Elems[elemIdx] = v

		case ir.OpI32Load, ir.OpI64Load, ir.OpF32Load, ir.OpF64Load,
			ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Load16S, ir.OpI32Load16U,
			ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Load16S, ir.OpI64Load16U,
			ir.OpI64Load32S, ir.OpI64Load32U:
			offset := r.u32Imm(&pc)
			base := r.pop().U32()
			mem, err := r.memory()
			if err != nil {
				return err
			}
			v, err := loadValue(mem, base, offset, op, r, opPC)
			if err != nil {
				return err
			}
			r.push(v)

		case ir.OpI32Store, ir.OpI64Store, ir.OpF32Store, ir.OpF64Store,
			ir.OpI32Store8, ir.OpI32Store16, ir.OpI64Store8, ir.OpI64Store16, ir.OpI64Store32:
			offset := r.u32Imm(&pc)
			v := r.pop()
			base := r.pop().U32()
			mem, err := r.memory()
			if err != nil {
				return err
			}
			if err := storeValue(mem, base, offset, op, v, r, opPC); err != nil {
				return err
			}

		case ir.OpMemorySize:
			mem, err := r.memory()
			if err != nil {
				return err
			}
			r.push(wasm.StackValueFromI32(int32(mem.PageCount())))

		case ir.OpMemoryGrow:
			mem, err := r.memory()
			if err != nil {
				return err
			}
			delta := r.pop().U32()
			r.push(wasm.StackValueFromI32(int32(mem.Grow(delta))))

		case ir.OpI32Const:
			v := r.i32Imm(&pc)
			r.push(wasm.StackValueFromI32(v))
		case ir.OpI64Const:
			v := r.i64Imm(&pc)
			r.push(wasm.StackValueFromI64(v))
		case ir.OpF32Const:
			v := r.f32Imm(&pc)
			r.push(wasm.StackValueFromF32(v))
		case ir.OpF64Const:
			v := r.f64Imm(&pc)
			r.push(wasm.StackValueFromF64(v))

		case ir.OpRefNull:
			pc++ // ref type byte
			r.push(wasm.StackValueFromRef(wasm.NullRef))
		case ir.OpRefIsNull:
			v := r.pop().Ref()
			if v.IsNull() {
				r.push(wasm.StackValueFromI32(1))
			} else {
				r.push(wasm.StackValueFromI32(0))
			}
		case ir.OpRefFunc:
			idx := r.u32Imm(&pc)
			r.push(wasm.StackValueFromRef(wasm.RefValue{ID: uint32(r.inst.Funcs[idx])}))

		case ir.OpPrefixFC:
			subOp := r.u32Imm(&pc)
			if err := r.runBulkMemory(subOp, opPC); err != nil {
				return err
			}

		default:
			if err := r.runSimple(op, opPC); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runner) doCall(target wasm.FuncID) error {
	f, err := r.th.store.Func(target)
	if err != nil {
		return err
	}
	argc := len(f.Type.Params)
	args := make([]wasm.StackValue, argc)
	copy(args, r.stack[r.sp-argc:r.sp])
	r.sp -= argc

	results, err := r.th.callFunc(target, args)
	if err != nil {
		return err
	}
	for _, v := range results {
		r.push(v)
	}
	return nil
}

func targetFuncType(inst *wasm.Instance, typeIdx uint32) *wasm.FuncType {
	return inst.Module.Types[typeIdx]
}

func (r *runner) runBulkMemory(subOp uint32, opPC uint32) error {
	mem, err := r.memory()
	if err != nil {
		return err
	}
	n := r.pop().U32()
	switch subOp {
	case ir.SubOpMemoryCopy:
		src := r.pop().U32()
		dst := r.pop().U32()
		if uint64(src)+uint64(n) > uint64(len(mem.Data)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
			return r.trap(wasmdebug.TrapMemoryBounds, opPC)
		}
		copy(mem.Data[dst:dst+n], mem.Data[src:src+n])
		return nil
	case ir.SubOpMemoryFill:
		val := byte(r.pop().U32())
		dst := r.pop().U32()
		if uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
			return r.trap(wasmdebug.TrapMemoryBounds, opPC)
		}
		fillBytes := mem.Data[dst : dst+n]
		for i := range fillBytes {
			fillBytes[i] = val
		}
		return nil
	default:
		return r.trap(wasmdebug.TrapUnreachable, opPC)
	}
}
