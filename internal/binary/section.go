package binary

import "github.com/wazeroot/corewasm/internal/wasm"

func checkLimit(r *Reader, n, max uint32) error {
	if n > max {
		return &wasm.ParseError{Offset: r.Offset(), Kind: wasm.ParseErrLimitExceeded}
	}
	return nil
}

func decodeTypeSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxTypes); err != nil {
		return err
	}
	m.Types = make([]*wasm.FuncType, 0, n)
	for i := uint32(0); i < n; i++ {
		tag, err := r.ReadByte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return &wasm.ParseError{Offset: r.Offset() - 1, Kind: wasm.ParseErrInvalidValueType, Detail: "expected func type tag 0x60"}
		}
		params, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		results, err := decodeValueTypeVec(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, &wasm.FuncType{Params: params, Results: results})
	}
	return nil
}

func decodeValueTypeVec(r *Reader) ([]wasm.ValueType, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ValueType, n)
	for i := range out {
		vt, err := r.ValueType()
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func decodeImportSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxImports); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		mod, err := r.Name()
		if err != nil {
			return err
		}
		name, err := r.Name()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: mod, Name: name}
		switch kind {
		case 0x00:
			idx, err := r.U32()
			if err != nil {
				return err
			}
			imp.Type = wasm.ExternTypeFunc
			imp.DescFunc = idx
			m.NumImportedFuncs++
		case 0x01:
			rt, err := r.RefType()
			if err != nil {
				return err
			}
			lim, err := r.Limits()
			if err != nil {
				return err
			}
			imp.Type = wasm.ExternTypeTable
			imp.DescTable = wasm.TableType{RefType: rt, Limits: lim}
			m.NumImportedTables++
		case 0x02:
			lim, err := r.Limits()
			if err != nil {
				return err
			}
			imp.Type = wasm.ExternTypeMemory
			imp.DescMemory = wasm.MemoryType{Limits: lim}
			m.NumImportedMemories++
		case 0x03:
			vt, err := r.ValueType()
			if err != nil {
				return err
			}
			mutByte, err := r.ReadByte()
			if err != nil {
				return err
			}
			imp.Type = wasm.ExternTypeGlobal
			imp.DescGlobal = wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}
			m.NumImportedGlobals++
		default:
			return &wasm.ParseError{Offset: r.Offset() - 1, Kind: wasm.ParseErrInvalidImportKind}
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxFuncs); err != nil {
		return err
	}
	m.FuncTypeIndexes = make([]wasm.Index, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.U32()
		if err != nil {
			return err
		}
		m.FuncTypeIndexes[i] = idx
	}
	return nil
}

func decodeTableSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxTables); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		rt, err := r.RefType()
		if err != nil {
			return err
		}
		lim, err := r.Limits()
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, wasm.TableType{RefType: rt, Limits: lim})
	}
	return nil
}

func decodeMemorySection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxMemories); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		lim, err := r.Limits()
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, wasm.MemoryType{Limits: lim})
	}
	return nil
}

func decodeGlobalSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxGlobals); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		vt, err := r.ValueType()
		if err != nil {
			return err
		}
		mutByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, wasm.GlobalType{ValType: vt, Mutable: mutByte == 1})
		m.GlobalInits = append(m.GlobalInits, init)
	}
	return nil
}

func decodeExportSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxExports); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := r.Name()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.U32()
		if err != nil {
			return err
		}
		var ty wasm.ExternType
		switch kind {
		case 0x00:
			ty = wasm.ExternTypeFunc
		case 0x01:
			ty = wasm.ExternTypeTable
		case 0x02:
			ty = wasm.ExternTypeMemory
		case 0x03:
			ty = wasm.ExternTypeGlobal
		default:
			return &wasm.ParseError{Offset: r.Offset() - 1, Kind: wasm.ParseErrInvalidImportKind}
		}
		m.Exports = append(m.Exports, wasm.Export{Name: name, Type: ty, Index: idx})
	}
	return nil
}

func decodeConstExpr(r *Reader) (wasm.ConstExpr, error) {
	op, err := r.ReadByte()
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	var ce wasm.ConstExpr
	switch op {
	case 0x41:
		v, err := r.I32()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprI32, I32: v}
	case 0x42:
		v, err := r.I64()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprI64, I64: v}
	case 0x43:
		v, err := r.F32()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprF32, F32: v}
	case 0x44:
		v, err := r.F64()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprF64, F64: v}
	case 0x23:
		idx, err := r.U32()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprGlobalGet, GlobalIdx: idx}
	case 0xD0:
		rt, err := r.RefType()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprRefNull, RefNullTy: rt}
	case 0xD2:
		idx, err := r.U32()
		if err != nil {
			return ce, err
		}
		ce = wasm.ConstExpr{Kind: wasm.ConstExprRefFunc, RefFuncIdx: idx}
	default:
		return ce, &wasm.ParseError{Offset: r.Offset() - 1, Kind: wasm.ParseErrInvalidOpcode, Detail: "bad const expr opcode"}
	}
	end, err := r.ReadByte()
	if err != nil {
		return ce, err
	}
	if end != 0x0B {
		return ce, &wasm.ParseError{Offset: r.Offset() - 1, Kind: wasm.ParseErrInvalidOpcode, Detail: "const expr missing end"}
	}
	return ce, nil
}

func decodeElementSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxElements); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.U32()
		if err != nil {
			return err
		}
		seg := wasm.ElementSegment{RefType: wasm.RefTypeFunc}
		switch flags {
		case 0:
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Kind = wasm.ElementActive
			seg.Offset = off
			idxs, err := decodeIndexVec(r)
			if err != nil {
				return err
			}
			seg.FuncIndexes = idxs
		case 1:
			if _, err := r.ReadByte(); err != nil { // elemkind, funcref only supported
				return err
			}
			seg.Kind = wasm.ElementPassive
			idxs, err := decodeIndexVec(r)
			if err != nil {
				return err
			}
			seg.FuncIndexes = idxs
		case 2:
			tblIdx, err := r.U32()
			if err != nil {
				return err
			}
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			seg.Kind = wasm.ElementActive
			seg.TableIdx = tblIdx
			seg.Offset = off
			idxs, err := decodeIndexVec(r)
			if err != nil {
				return err
			}
			seg.FuncIndexes = idxs
		case 3:
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			seg.Kind = wasm.ElementDeclarative
			idxs, err := decodeIndexVec(r)
			if err != nil {
				return err
			}
			seg.FuncIndexes = idxs
		default:
			return &wasm.ParseError{Offset: r.Offset(), Kind: wasm.ParseErrInvalidImportKind, Detail: "unsupported element segment encoding (expr-init elements out of scope)"}
		}
		m.Elements = append(m.Elements, seg)
	}
	return nil
}

func decodeIndexVec(r *Reader) ([]wasm.Index, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Index, n)
	for i := range out {
		idx, err := r.U32()
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func decodeDataSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	if err := checkLimit(r, n, limits.MaxDatas); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.U32()
		if err != nil {
			return err
		}
		seg := wasm.DataSegment{}
		switch flags {
		case 0:
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Kind = wasm.DataActive
			seg.Offset = off
		case 1:
			seg.Kind = wasm.DataPassive
		case 2:
			memIdx, err := r.U32()
			if err != nil {
				return err
			}
			off, err := decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Kind = wasm.DataActive
			seg.MemIdx = memIdx
			seg.Offset = off
		default:
			return &wasm.ParseError{Offset: r.Offset(), Kind: wasm.ParseErrInvalidImportKind, Detail: "bad data segment encoding"}
		}
		sz, err := r.U32()
		if err != nil {
			return err
		}
		init, err := r.ReadN(sz)
		if err != nil {
			return err
		}
		seg.Init = init
		m.Datas = append(m.Datas, seg)
	}
	return nil
}

func decodeCodeSection(r *Reader, m *wasm.Module, sectionBase uint32, limits wasm.ParseLimits) error {
	n, err := r.U32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		size, err := r.U32()
		if err != nil {
			return err
		}
		bodyStart := sectionBase + r.Offset()
		body, err := r.ReadN(size)
		if err != nil {
			return err
		}
		br := NewReader(body)

		numLocalRuns, err := br.U32()
		if err != nil {
			return err
		}
		var locals []wasm.ValueType
		for j := uint32(0); j < numLocalRuns; j++ {
			count, err := br.U32()
			if err != nil {
				return err
			}
			vt, err := br.ValueType()
			if err != nil {
				return err
			}
			if err := checkLimit(br, uint32(len(locals))+count, limits.MaxLocals); err != nil {
				return err
			}
			for k := uint32(0); k < count; k++ {
				locals = append(locals, vt)
			}
		}

		opsOffset := bodyStart + br.Offset()
		opsLen := uint32(len(body)) - br.Offset()

		m.Code = append(m.Code, wasm.CodeSubSection{
			Locals: locals,
			Offset: opsOffset,
			Length: opsLen,
		})
	}
	return nil
}

func decodeCustomSection(r *Reader, m *wasm.Module, limits wasm.ParseLimits) error {
	name, err := r.Name()
	if err != nil {
		return err
	}
	if name == "name" && m.Name == "" {
		// best-effort: only the module-name subsection (id 0) is consumed.
		if r.Len() > 0 {
			subID, err := r.ReadByte()
			if err == nil && subID == 0 {
				if size, err := r.U32(); err == nil {
					if body, err := r.ReadN(size); err == nil {
						sr := NewReader(body)
						if modName, err := sr.Name(); err == nil {
							m.Name = modName
						}
					}
				}
			}
		}
	}
	return nil
}
