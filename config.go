package corewasm

import (
	"go.uber.org/zap"

	"github.com/wazeroot/corewasm/internal/wasm"
)

// RuntimeConfig configures a Runtime before it is created. Immutable after
// NewRuntime returns, in the teacher's functional-builder style
// (RuntimeConfig.With* each return a new value rather than mutating in
// place).
type RuntimeConfig struct {
	parseLimits wasm.ParseLimits
	funcLimits  wasm.FuncLimits
	logger      *zap.Logger
}

// NewRuntimeConfig returns the default configuration: DefaultParseLimits,
// DefaultFuncLimits, and a no-op logger.
func NewRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		parseLimits: wasm.DefaultParseLimits(),
		funcLimits:  wasm.DefaultFuncLimits(),
		logger:      zap.NewNop(),
	}
}

// WithParseLimits overrides the structural limits the binary parser
// enforces against adversarial section counts.
func (c RuntimeConfig) WithParseLimits(l wasm.ParseLimits) RuntimeConfig {
	c.parseLimits = l
	return c
}

// WithFuncLimits overrides the per-function validator resource limits
// (operand stack depth, control frame depth).
func (c RuntimeConfig) WithFuncLimits(l wasm.FuncLimits) RuntimeConfig {
	c.funcLimits = l
	return c
}

// WithLogger attaches a structured logger. Compilation and instantiation
// log at Debug/Warn with module- and function-identifying fields; traps
// are returned to the caller and not logged. Logging never affects control
// flow. A nil logger is replaced with
// zap.NewNop().
func (c RuntimeConfig) WithLogger(logger *zap.Logger) RuntimeConfig {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
	return c
}

// ModuleConfig configures a single InstantiateModule call.
type ModuleConfig struct {
	// Name registers the resulting Instance in the Runtime's namespace
	// under this name, so later modules can import from it. Empty means
	// the instance is not registered for later import resolution.
	Name string
}

// NewModuleConfig returns an unnamed ModuleConfig.
func NewModuleConfig() ModuleConfig {
	return ModuleConfig{}
}

// WithName sets the registration name.
func (c ModuleConfig) WithName(name string) ModuleConfig {
	c.Name = name
	return c
}
