package wasmdebug

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrapError(t *testing.T) {
	tr := &Trap{Kind: TrapDivByZero, FuncIdx: 3, PC: 0x10}
	require.Contains(t, tr.Error(), "integer divide by zero")
	require.Contains(t, tr.Error(), "func 3")
}

func TestTrapCallStackExhausted(t *testing.T) {
	tr := &Trap{Kind: TrapCallStackExhausted, FuncIdx: 7}
	require.Contains(t, tr.Error(), "call stack exhausted")
}

func TestRuntimeErrorError(t *testing.T) {
	re := &RuntimeError{Kind: RuntimeErrInvalidHandle, Detail: "func id 42"}
	require.Equal(t, "invalid handle: func id 42", re.Error())

	re2 := &RuntimeError{Kind: RuntimeErrCallerNoMemory}
	require.Equal(t, "caller's instance has no memory 0", re2.Error())
}
