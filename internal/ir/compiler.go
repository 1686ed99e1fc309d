// Package ir implements the opcode table, validator, and bytecode compiler
// that together lower a parsed function body into compact interpreter
// bytecode. Validation and compilation run as a single
// visitor pass: the operator stream is pulled from the module's raw
// bytes (per internal/binary's pull-based CodeSubSection), each operator
// updates the operand-stack/control-frame model, and on success emits
// bytecode plus jump-resolution records.
package ir

import (
	"encoding/binary"
	"math"

	wasmbinary "github.com/wazeroot/corewasm/internal/binary"
	"github.com/wazeroot/corewasm/internal/leb128"
	"github.com/wazeroot/corewasm/internal/wasm"
)

func f32LEBytes(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func f64LEBytes(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

type compiler struct {
	validator

	module      *wasm.Module
	globalTypes []wasm.GlobalType
	tableTypes  []wasm.TableType
	memTypes    []wasm.MemoryType

	r    *wasmbinary.Reader
	base uint32

	code  []byte
	jumps map[uint32]wasm.Jump

	curOpOffset uint32
}

func combinedGlobalTypes(m *wasm.Module) []wasm.GlobalType {
	out := make([]wasm.GlobalType, 0, m.NumGlobals())
	for _, imp := range m.Imports {
		if imp.Type == wasm.ExternTypeGlobal {
			out = append(out, imp.DescGlobal)
		}
	}
	return append(out, m.Globals...)
}

func combinedTableTypes(m *wasm.Module) []wasm.TableType {
	out := make([]wasm.TableType, 0, m.NumTables())
	for _, imp := range m.Imports {
		if imp.Type == wasm.ExternTypeTable {
			out = append(out, imp.DescTable)
		}
	}
	return append(out, m.Tables...)
}

func combinedMemoryTypes(m *wasm.Module) []wasm.MemoryType {
	out := make([]wasm.MemoryType, 0, m.NumMemories())
	for _, imp := range m.Imports {
		if imp.Type == wasm.ExternTypeMemory {
			out = append(out, imp.DescMemory)
		}
	}
	return append(out, m.Memories...)
}

func sliceEqualVT(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compile validates and compiles one locally-defined function, identified
// by its index in the combined function index space.
func Compile(module *wasm.Module, funcIdx wasm.Index, funcLimits wasm.FuncLimits, moduleBytes []byte) (*wasm.CompiledFunc, error) {
	ty := module.FuncType(funcIdx)
	localIdx := int(funcIdx) - module.NumImportedFuncs
	sub := module.Code[localIdx]

	locals := make([]wasm.ValueType, 0, len(ty.Params)+len(sub.Locals))
	locals = append(locals, ty.Params...)
	locals = append(locals, sub.Locals...)

	body := moduleBytes[sub.Offset : sub.Offset+sub.Length]
	r := wasmbinary.NewReader(body)

	c := &compiler{
		module:      module,
		globalTypes: combinedGlobalTypes(module),
		tableTypes:  combinedTableTypes(module),
		memTypes:    combinedMemoryTypes(module),
		r:           r,
		base:        sub.Offset,
		jumps:       make(map[uint32]wasm.Jump),
	}
	c.validator.locals = locals
	c.validator.limits = funcLimits
	c.validator.offset = func() uint32 { return c.curOpOffset }

	c.pushCtrl(frameBlock, wasm.BlockType{Kind: wasm.BlockKindFuncType}, nil, ty.Results)

	for len(c.ctrls) > 0 {
		c.curOpOffset = c.base + r.Offset()
		if r.Len() == 0 {
			return nil, c.errAt(wasm.ValidationErrUnreachableEnd, "function body ended without matching end")
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if err := c.compileOp(Opcode(b)); err != nil {
			return nil, err
		}
		if len(c.ctrls) > int(funcLimits.FrameLimit) {
			return nil, c.errAt(wasm.ValidationErrFrameTooDeep, "control frame depth limit exceeded")
		}
		if c.maxStack > int(funcLimits.StackLimit) {
			return nil, c.errAt(wasm.ValidationErrStackTooDeep, "operand stack depth limit exceeded")
		}
	}
	if r.Len() != 0 {
		return nil, c.errAt(wasm.ValidationErrUnreachableEnd, "trailing bytes after function end")
	}

	return &wasm.CompiledFunc{
		Type:      ty,
		Code:      c.code,
		Jumps:     c.jumps,
		StackSize: uint32(len(locals) + c.maxStack),
		NumLocals: uint32(len(locals)),
		NumParams: uint32(len(ty.Params)),
	}, nil
}

func (c *compiler) emit(b byte)           { c.code = append(c.code, b) }
func (c *compiler) emitBytes(bs []byte)   { c.code = append(c.code, bs...) }
func (c *compiler) pc() uint32            { return uint32(len(c.code)) }
func (c *compiler) emitU32(v uint32)      { c.emitBytes(leb128.EncodeUint32(v)) }
func (c *compiler) emitI32(v int32)       { c.emitBytes(leb128.EncodeInt32(v)) }
func (c *compiler) emitI64(v int64)       { c.emitBytes(leb128.EncodeInt64(v)) }

// registerBranch validates a branch to the frame `depth` labels up
// (consuming its label-arity operands from the stack) and records the
// jump at the current pc, resolving immediately for loops (whose target
// is already known) or deferring to the frame's matching End otherwise.
// Returns the label's arity types so callers needing fallthrough (br_if)
// can push them back.
func (c *compiler) registerBranch(depth uint32) ([]wasm.ValueType, error) {
	frame, err := c.frameAt(depth)
	if err != nil {
		return nil, err
	}
	target := frame.labelTypes()
	curHeight := len(c.opds)
	if err := c.popExpectAll(target); err != nil {
		return nil, err
	}
	shiftBy := uint32(curHeight - len(target) - frame.height)
	key := c.pc()
	if frame.kind == frameLoop {
		c.jumps[key] = wasm.Jump{Target: frame.loopEntryPC, ShiftNum: uint32(len(target)), ShiftBy: shiftBy}
	} else {
		c.jumps[key] = wasm.Jump{ShiftNum: uint32(len(target)), ShiftBy: shiftBy}
		frame.pendingExits = append(frame.pendingExits, key)
	}
	return target, nil
}

func (c *compiler) compileOp(op Opcode) error {
	r := c.r

	if meta, ok := simpleOps[op]; ok {
		if err := c.popExpectAll(meta.Pops); err != nil {
			return err
		}
		c.pushAll(meta.Pushes)
		c.emit(byte(op))
		return nil
	}

	switch op {
	case OpUnreachable:
		c.emit(byte(op))
		c.setUnreachable()

	case OpNop:
		c.emit(byte(op))

	case OpBlock, OpLoop, OpIf:
		bt, err := r.BlockType()
		if err != nil {
			return err
		}
		in := bt.Params(c.module.Types)
		out := bt.Results(c.module.Types)
		var kind frameKind
		switch op {
		case OpBlock:
			kind = frameBlock
		case OpLoop:
			kind = frameLoop
		case OpIf:
			kind = frameIf
			if err := c.popExpect(i32T); err != nil {
				return err
			}
		}
		if op == OpIf {
			c.emit(byte(op))
		}
		if err := c.popExpectAll(in); err != nil {
			return err
		}
		c.pushCtrl(kind, bt, in, out)
		f := c.curFrame()
		if kind == frameLoop {
			f.loopEntryPC = c.pc()
		}
		if kind == frameIf {
			f.hasIfJump = true
			f.ifJumpPC = c.pc()
			c.jumps[f.ifJumpPC] = wasm.Jump{}
		}

	case OpElse:
		f := c.curFrame()
		if f.kind != frameIf {
			return c.errAt(wasm.ValidationErrWrongFrameKind, "else outside if")
		}
		if err := c.popExpectAll(f.endTypes); err != nil {
			return err
		}
		if len(c.opds) != f.height {
			return c.errAt(wasm.ValidationErrUnusedOperands, "unused operands before else")
		}
		c.emit(byte(op))
		key := c.pc()
		c.jumps[key] = wasm.Jump{ShiftNum: uint32(len(f.endTypes))}
		f.pendingExits = append(f.pendingExits, key)
		if f.hasIfJump {
			c.jumps[f.ifJumpPC] = wasm.Jump{Target: c.pc()}
		}
		f.kind = frameElse
		f.unreachable = false
		c.opds = c.opds[:f.height]
		c.pushAll(f.startTypes)

	case OpEnd:
		f := c.curFrame()
		if f.kind == frameIf && !sliceEqualVT(f.startTypes, f.endTypes) {
			return c.errAt(wasm.ValidationErrTypeMismatch, "if without matching else must not change arity")
		}
		popped, err := c.popCtrl()
		if err != nil {
			return err
		}
		exitPC := c.pc()
		if popped.hasIfJump && popped.kind == frameIf {
			c.jumps[popped.ifJumpPC] = wasm.Jump{Target: exitPC}
		}
		for _, key := range popped.pendingExits {
			j := c.jumps[key]
			j.Target = exitPC
			c.jumps[key] = j
		}
		if len(c.ctrls) > 0 {
			c.pushAll(popped.endTypes)
		}

	case OpBr:
		depth, err := r.U32()
		if err != nil {
			return err
		}
		c.emit(byte(op))
		if _, err := c.registerBranch(depth); err != nil {
			return err
		}
		c.setUnreachable()

	case OpBrIf:
		depth, err := r.U32()
		if err != nil {
			return err
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		c.emit(byte(op))
		target, err := c.registerBranch(depth)
		if err != nil {
			return err
		}
		c.pushAll(target)

	case OpBrTable:
		n, err := r.U32()
		if err != nil {
			return err
		}
		depths := make([]uint32, n)
		for i := range depths {
			depths[i], err = r.U32()
			if err != nil {
				return err
			}
		}
		defaultDepth, err := r.U32()
		if err != nil {
			return err
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		curHeight := len(c.opds)
		defFrame, err := c.frameAt(defaultDepth)
		if err != nil {
			return err
		}
		target := defFrame.labelTypes()
		if err := c.popExpectAll(target); err != nil {
			return err
		}

		c.emit(byte(op))
		c.emitU32(n)
		base := c.pc()
		for i := uint32(0); i <= n; i++ {
			c.emit(0)
		}
		for i := uint32(0); i <= n; i++ {
			depth := defaultDepth
			if i < n {
				depth = depths[i]
			}
			frame, ferr := c.frameAt(depth)
			if ferr != nil {
				return ferr
			}
			if !sliceEqualVT(frame.labelTypes(), target) {
				return c.errAt(wasm.ValidationErrTypeMismatch, "br_table targets have mismatched arity")
			}
			shiftBy := uint32(curHeight - len(target) - frame.height)
			key := base + i
			if frame.kind == frameLoop {
				c.jumps[key] = wasm.Jump{Target: frame.loopEntryPC, ShiftNum: uint32(len(target)), ShiftBy: shiftBy}
			} else {
				c.jumps[key] = wasm.Jump{ShiftNum: uint32(len(target)), ShiftBy: shiftBy}
				frame.pendingExits = append(frame.pendingExits, key)
			}
		}
		c.setUnreachable()

	case OpReturn:
		outer := &c.ctrls[0]
		target := outer.endTypes
		curHeight := len(c.opds)
		if err := c.popExpectAll(target); err != nil {
			return err
		}
		shiftBy := uint32(curHeight - len(target) - outer.height)
		c.emit(byte(op))
		key := c.pc()
		c.jumps[key] = wasm.Jump{ShiftNum: uint32(len(target)), ShiftBy: shiftBy}
		outer.pendingExits = append(outer.pendingExits, key)
		c.setUnreachable()

	case OpCall:
		idx, err := r.U32()
		if err != nil {
			return err
		}
		if int(idx) >= c.module.NumFuncs() {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "call: function index out of range")
		}
		ft := c.module.FuncType(idx)
		if err := c.popExpectAll(ft.Params); err != nil {
			return err
		}
		c.pushAll(ft.Results)
		c.emit(byte(op))
		c.emitU32(idx)

	case OpCallIndirect:
		typeIdx, err := r.U32()
		if err != nil {
			return err
		}
		tableIdx, err := r.U32()
		if err != nil {
			return err
		}
		if int(typeIdx) >= len(c.module.Types) {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "call_indirect: type index out of range")
		}
		if int(tableIdx) >= len(c.tableTypes) {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "call_indirect: table index out of range")
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		ft := c.module.Types[typeIdx]
		if err := c.popExpectAll(ft.Params); err != nil {
			return err
		}
		c.pushAll(ft.Results)
		c.emit(byte(op))
		c.emitU32(typeIdx)
		c.emitU32(tableIdx)

	case OpDrop:
		if _, _, err := c.popOpd(); err != nil {
			return err
		}
		c.emit(byte(op))

	case OpSelect:
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		t2v, poly2, err := c.popOpd()
		if err != nil {
			return err
		}
		t1v, poly1, err := c.popOpd()
		if err != nil {
			return err
		}
		result := i32T
		switch {
		case !poly1:
			result = t1v
		case !poly2:
			result = t2v
		}
		if !poly1 && !poly2 && t1v != t2v {
			return c.errAt(wasm.ValidationErrTypeMismatch, "select operands differ")
		}
		if result.IsRef() {
			return c.errAt(wasm.ValidationErrRefTypeMismatch, "select requires numeric operands; use select_t for references")
		}
		c.pushOpd(result)
		c.emit(byte(op))

	case OpTypedSelect:
		n, err := r.U32()
		if err != nil {
			return err
		}
		if n != 1 {
			return c.errAt(wasm.ValidationErrTypeMismatch, "select_t expects exactly one result type")
		}
		vt, err := r.ValueType()
		if err != nil {
			return err
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		if err := c.popExpect(vt); err != nil {
			return err
		}
		if err := c.popExpect(vt); err != nil {
			return err
		}
		c.pushOpd(vt)
		c.emit(byte(op))

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := r.U32()
		if err != nil {
			return err
		}
		if int(idx) >= len(c.locals) {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "local index out of range")
		}
		ty := c.locals[idx]
		switch op {
		case OpLocalGet:
			c.pushOpd(ty)
		case OpLocalSet:
			if err := c.popExpect(ty); err != nil {
				return err
			}
		case OpLocalTee:
			if err := c.popExpect(ty); err != nil {
				return err
			}
			c.pushOpd(ty)
		}
		c.emit(byte(op))
		c.emitU32(idx)

	case OpGlobalGet, OpGlobalSet:
		idx, err := r.U32()
		if err != nil {
			return err
		}
		if int(idx) >= len(c.globalTypes) {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "global index out of range")
		}
		gt := c.globalTypes[idx]
		if op == OpGlobalGet {
			c.pushOpd(gt.ValType)
		} else {
			if !gt.Mutable {
				return c.errAt(wasm.ValidationErrImmutableGlobalSet, "global.set on immutable global")
			}
			if err := c.popExpect(gt.ValType); err != nil {
				return err
			}
		}
		c.emit(byte(op))
		c.emitU32(idx)

	case OpTableGet, OpTableSet:
		idx, err := r.U32()
		if err != nil {
			return err
		}
		if int(idx) >= len(c.tableTypes) {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "table index out of range")
		}
		rt := wasm.ValueType(c.tableTypes[idx].RefType)
		if op == OpTableGet {
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			c.pushOpd(rt)
		} else {
			if err := c.popExpect(rt); err != nil {
				return err
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
		}
		c.emit(byte(op))
		c.emitU32(idx)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U:
		align, err := r.U32()
		if err != nil {
			return err
		}
		off, err := r.U32()
		if err != nil {
			return err
		}
		if len(c.memTypes) == 0 {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory access without a memory")
		}
		if align > MaxAlign(op) {
			return c.errAt(wasm.ValidationErrAlignmentTooLarge, "alignment exceeds operator maximum")
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		c.pushOpd(LoadResultType(op))
		c.emit(byte(op))
		c.emitU32(off)

	case OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		align, err := r.U32()
		if err != nil {
			return err
		}
		off, err := r.U32()
		if err != nil {
			return err
		}
		if len(c.memTypes) == 0 {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory access without a memory")
		}
		if align > MaxAlign(op) {
			return c.errAt(wasm.ValidationErrAlignmentTooLarge, "alignment exceeds operator maximum")
		}
		if err := c.popExpect(StoreValueType(op)); err != nil {
			return err
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		c.emit(byte(op))
		c.emitU32(off)

	case OpMemorySize:
		memIdx, err := r.U32()
		if err != nil {
			return err
		}
		if memIdx != 0 || len(c.memTypes) == 0 {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory.size: no memory 0")
		}
		c.pushOpd(i32T)
		c.emit(byte(op))

	case OpMemoryGrow:
		memIdx, err := r.U32()
		if err != nil {
			return err
		}
		if memIdx != 0 || len(c.memTypes) == 0 {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory.grow: no memory 0")
		}
		if err := c.popExpect(i32T); err != nil {
			return err
		}
		c.pushOpd(i32T)
		c.emit(byte(op))

	case OpI32Const:
		v, err := r.I32()
		if err != nil {
			return err
		}
		c.pushOpd(i32T)
		c.emit(byte(op))
		c.emitI32(v)

	case OpI64Const:
		v, err := r.I64()
		if err != nil {
			return err
		}
		c.pushOpd(i64T)
		c.emit(byte(op))
		c.emitI64(v)

	case OpF32Const:
		v, err := r.F32()
		if err != nil {
			return err
		}
		c.pushOpd(f32T)
		c.emit(byte(op))
		c.emitBytes(f32LEBytes(v))

	case OpF64Const:
		v, err := r.F64()
		if err != nil {
			return err
		}
		c.pushOpd(f64T)
		c.emit(byte(op))
		c.emitBytes(f64LEBytes(v))

	case OpRefNull:
		rt, err := r.RefType()
		if err != nil {
			return err
		}
		c.pushOpd(wasm.ValueType(rt))
		c.emit(byte(op))
		c.emit(byte(rt))

	case OpRefIsNull:
		if _, err := c.popAnyRef(); err != nil {
			return err
		}
		c.pushOpd(i32T)
		c.emit(byte(op))

	case OpRefFunc:
		idx, err := r.U32()
		if err != nil {
			return err
		}
		if int(idx) >= c.module.NumFuncs() {
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "ref.func: function index out of range")
		}
		c.pushOpd(wasm.ValueTypeFuncRef)
		c.emit(byte(op))
		c.emitU32(idx)

	case OpPrefixFC:
		subOp, err := r.U32()
		if err != nil {
			return err
		}
		switch subOp {
		case SubOpMemoryCopy:
			for i := 0; i < 2; i++ {
				m, err := r.U32()
				if err != nil {
					return err
				}
				if m != 0 {
					return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory.copy: only memory 0 supported")
				}
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			c.emit(byte(op))
			c.emitU32(subOp)
		case SubOpMemoryFill:
			m, err := r.U32()
			if err != nil {
				return err
			}
			if m != 0 {
				return c.errAt(wasm.ValidationErrIndexOutOfRange, "memory.fill: only memory 0 supported")
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			if err := c.popExpect(i32T); err != nil {
				return err
			}
			c.emit(byte(op))
			c.emitU32(subOp)
		default:
			return c.errAt(wasm.ValidationErrIndexOutOfRange, "unsupported 0xfc sub-opcode")
		}

	default:
		return c.errAt(wasm.ValidationErrIndexOutOfRange, "unknown or unsupported opcode")
	}
	return nil
}
