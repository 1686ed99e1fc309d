package binary

import "github.com/wazeroot/corewasm/internal/wasm"

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

// DecodeModule parses bytes into a wasm.Module, stopping at (but not
// compiling) function bodies: each is recorded as a wasm.CodeSubSection
// pointing back into buf, per this runtime's pull-based design. Compilation
// happens later, driven by internal/ir.
func DecodeModule(buf []byte, limits wasm.ParseLimits) (*wasm.Module, error) {
	r := NewReader(buf)

	hdr, err := r.ReadN(4)
	if err != nil {
		return nil, err
	}
	if [4]byte(hdr) != magic {
		return nil, &wasm.ParseError{Offset: 0, Kind: wasm.ParseErrInvalidMagic}
	}
	ver, err := r.ReadN(4)
	if err != nil {
		return nil, err
	}
	if ver[0] != 1 || ver[1] != 0 || ver[2] != 0 || ver[3] != 0 {
		return nil, &wasm.ParseError{Offset: 4, Kind: wasm.ParseErrInvalidVersion}
	}

	m := &wasm.Module{}
	var seenIDs []wasm.SectionID
	var dataCount uint32
	haveDataCount := false
	var numCustoms uint32

	for r.Len() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id := wasm.SectionID(idByte)
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		sectionBase := r.Offset()
		body, err := r.ReadN(size)
		if err != nil {
			return nil, err
		}
		sr := NewReader(body)

		if id != wasm.SectionIDCustom {
			for _, seen := range seenIDs {
				if seen == id {
					return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrDuplicateSection}
				}
				if seen > id {
					return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrInvalidSectionOrder}
				}
			}
			seenIDs = append(seenIDs, id)
		}

		switch id {
		case wasm.SectionIDCustom:
			numCustoms++
			if err := checkLimit(r, numCustoms, limits.MaxCustoms); err != nil {
				return nil, err
			}
			if err := decodeCustomSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDType:
			if err := decodeTypeSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDImport:
			if err := decodeImportSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDFunction:
			if err := decodeFunctionSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDTable:
			if err := decodeTableSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDMemory:
			if err := decodeMemorySection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDGlobal:
			if err := decodeGlobalSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDExport:
			if err := decodeExportSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDStart:
			idx, err := sr.U32()
			if err != nil {
				return nil, err
			}
			m.HasStart = true
			m.StartFunc = idx
		case wasm.SectionIDElement:
			if err := decodeElementSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDCode:
			if err := decodeCodeSection(sr, m, sectionBase, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDData:
			if err := decodeDataSection(sr, m, limits); err != nil {
				return nil, err
			}
		case wasm.SectionIDDataCount:
			n, err := sr.U32()
			if err != nil {
				return nil, err
			}
			dataCount = n
			haveDataCount = true
		default:
			return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrInvalidSectionOrder, Detail: "unknown section id"}
		}

		if id != wasm.SectionIDCustom && sr.Len() != 0 {
			return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrSectionLengthMismatch}
		}
	}

	if haveDataCount && uint32(len(m.Datas)) != dataCount {
		return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrSectionLengthMismatch, Detail: "data count mismatch"}
	}
	if len(m.FuncTypeIndexes) != len(m.Code) {
		return nil, &wasm.ParseError{Offset: r.pos, Kind: wasm.ParseErrSectionLengthMismatch, Detail: "function/code count mismatch"}
	}

	return m, nil
}
