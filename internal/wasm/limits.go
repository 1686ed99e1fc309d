package wasm

// ParseLimits bounds the structural size of a module the parser will
// accept. Exceeding any of these rejects the module with a
// ParseError{Kind: ParseErrLimitExceeded}.
type ParseLimits struct {
	MaxTypes    uint32
	MaxImports  uint32
	MaxFuncs    uint32
	MaxTables   uint32
	MaxMemories uint32
	MaxGlobals  uint32
	MaxExports  uint32
	MaxElements uint32
	MaxLocals   uint32
	MaxDatas    uint32
	MaxCustoms  uint32
}

// DefaultParseLimits matches wazero's conservative defaults, generous
// enough for real-world modules while bounding worst-case allocation from
// an adversarial section-count LEB128.
func DefaultParseLimits() ParseLimits {
	return ParseLimits{
		MaxTypes:    10000,
		MaxImports:  10000,
		MaxFuncs:    10000,
		MaxTables:   10000,
		MaxMemories: 10000,
		MaxGlobals:  10000,
		MaxExports:  10000,
		MaxElements: 10000,
		MaxLocals:   50000,
		MaxDatas:    10000,
		MaxCustoms:  1000,
	}
}

// FuncLimits bounds validator resource usage per function body.
type FuncLimits struct {
	StackLimit uint32
	FrameLimit uint32
}

// DefaultFuncLimits returns the runtime's default per-function limits.
func DefaultFuncLimits() FuncLimits {
	return FuncLimits{StackLimit: 128, FrameLimit: 1024}
}
