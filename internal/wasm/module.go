package wasm

// SectionID identifies a Wasm binary section.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
)

func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	default:
		return "unknown"
	}
}

// ExternType classifies an import or export.
type ExternType byte

const (
	ExternTypeFunc ExternType = iota
	ExternTypeTable
	ExternTypeMemory
	ExternTypeGlobal
)

func ExternTypeName(e ExternType) string {
	switch e {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Type   ExternType
	// Exactly one of the following is meaningful, selected by Type.
	DescFunc   Index // index into Module.Types
	DescTable  TableType
	DescMemory MemoryType
	DescGlobal GlobalType
}

// Export is a single entry of the export section.
type Export struct {
	Name  string
	Type  ExternType
	Index Index
}

// ConstExprKind classifies a constant initializer expression.
type ConstExprKind byte

const (
	ConstExprI32 ConstExprKind = iota
	ConstExprI64
	ConstExprF32
	ConstExprF64
	ConstExprGlobalGet
	ConstExprRefNull
	ConstExprRefFunc
)

// ConstExpr is a single-instruction constant initializer, as used by
// global initializers and active element/data segment offsets.
type ConstExpr struct {
	Kind       ConstExprKind
	I32        int32
	I64        int64
	F32        float32
	F64        float64
	GlobalIdx  Index
	RefNullTy  RefType
	RefFuncIdx Index
}

// ElementKind classifies an element segment's binding.
type ElementKind byte

const (
	// ElementActive segments initialize a table range at instantiation.
	ElementActive ElementKind = iota
	// ElementPassive segments are only usable via bulk-memory ops (unused
	// by the interpreter; kept for parser completeness).
	ElementPassive
	// ElementDeclarative segments declare forward references only.
	ElementDeclarative
)

// ElementSegment is a single entry of the element section.
type ElementSegment struct {
	Kind      ElementKind
	RefType   RefType
	TableIdx  Index     // valid iff Kind == ElementActive
	Offset    ConstExpr // valid iff Kind == ElementActive
	FuncIndexes []Index // funcref indices (this runtime exercises only funcref tables)
}

// DataKind classifies a data segment's binding.
type DataKind byte

const (
	DataActive DataKind = iota
	DataPassive
)

// DataSegment is a single entry of the data section.
type DataSegment struct {
	Kind   DataKind
	MemIdx Index     // valid iff Kind == DataActive
	Offset ConstExpr // valid iff Kind == DataActive
	Init   []byte
}

// CodeSubSection locates one function body's operator stream within the
// original module bytes, for pull-based decoding by the validator/compiler.
type CodeSubSection struct {
	// Locals holds one entry per declared local slot; the decoder expands
	// the binary's (count, type) runs.
	Locals []ValueType
	// Offset/Length bound the operator byte stream (after locals, up to
	// and including the trailing 0x0B `end`) within the module's bytes.
	Offset uint32
	Length uint32
}

// CompiledFunc is the per-function output of validation+compilation.
type CompiledFunc struct {
	Type       *FuncType
	Code       []byte
	Jumps      map[uint32]Jump
	StackSize  uint32 // num_locals + peak operand-stack depth
	NumLocals  uint32 // params + declared locals
	NumParams  uint32
}

// Jump is the per-branch-site resolution record the compiler emits: the
// byte offset to continue at, and the operand-stack shift required to
// discard values below the branch's preserved arity.
type Jump struct {
	Target   uint32
	ShiftNum uint32
	ShiftBy  uint32
}

// ModuleID uniquely (within a Store) identifies a loaded Module.
type ModuleID uint32

// Module is a parsed, validated, compiled Wasm program. binary.DecodeModule
// fills in everything except Compiled, which the root package's
// CompileModule sets; the Module is not modified after that.
type Module struct {
	Types   []*FuncType
	Imports []Import

	// FuncTypeIndexes has one entry per *locally defined* function,
	// indexing Types. Imported functions are addressed separately via
	// Imports; the function index space is [imported funcs][defined funcs].
	FuncTypeIndexes []Index

	Tables  []TableType
	Memories []MemoryType
	Globals []GlobalType
	// GlobalInits holds one constant initializer per entry of Globals,
	// evaluated at instantiation time (imported globals have none here).
	GlobalInits []ConstExpr

	Exports []Export

	HasStart bool
	StartFunc Index

	Elements []ElementSegment
	Datas    []DataSegment

	// Code holds one entry per locally defined function, in declaration
	// order, locating the raw sub-section that ir.Compile re-reads;
	// Compiled holds the matching compiled results, filled in by the root
	// package's CompileModule.
	Code []CodeSubSection
	Compiled []*CompiledFunc

	// NumImportedFuncs/.../NumImportedGlobals let callers map between the
	// combined index space and the locally-declared slices above.
	NumImportedFuncs   int
	NumImportedTables  int
	NumImportedMemories int
	NumImportedGlobals int

	// Name is the optional custom "name" section's module name, used only
	// for diagnostics.
	Name string
}

// NumFuncs is the size of the function index space (imported + defined).
func (m *Module) NumFuncs() int { return m.NumImportedFuncs + len(m.FuncTypeIndexes) }

// NumTables is the size of the table index space (imported + defined).
func (m *Module) NumTables() int { return m.NumImportedTables + len(m.Tables) }

// NumMemories is the size of the memory index space (imported + defined).
func (m *Module) NumMemories() int { return m.NumImportedMemories + len(m.Memories) }

// NumGlobals is the size of the global index space (imported + defined).
func (m *Module) NumGlobals() int { return m.NumImportedGlobals + len(m.Globals) }

// FuncTypeIndex resolves the FuncType index for a function in the combined
// index space. Imported function types are carried on the Import entry
// itself; locally defined ones are in FuncTypeIndexes.
func (m *Module) FuncTypeIndex(funcIdx Index) Index {
	if int(funcIdx) < m.NumImportedFuncs {
		i := 0
		for _, imp := range m.Imports {
			if imp.Type != ExternTypeFunc {
				continue
			}
			if Index(i) == funcIdx {
				return imp.DescFunc
			}
			i++
		}
		panic("unreachable: funcIdx within imported range not found")
	}
	return m.FuncTypeIndexes[int(funcIdx)-m.NumImportedFuncs]
}

// FuncType resolves a function's signature in the combined index space.
func (m *Module) FuncType(funcIdx Index) *FuncType {
	return m.Types[m.FuncTypeIndex(funcIdx)]
}
