// Package hostabi builds wasm.HostFunc values out of ordinary Go functions
// via reflection, and provides the byte-level helpers (clear_padding) used
// when a host function's signature reaches into a struct the guest will
// eventually see the bytes of. This is the "typed host function" surface,
// plus a wenjin-derived clear_padding helper.
package hostabi

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/wazeroot/corewasm/internal/wasm"
	"github.com/wazeroot/corewasm/internal/wasmdebug"
)

// Caller is the first parameter of a host function that needs to reenter
// the store: read/write the calling instance's memory, or call back into
// guest code. Host functions whose first Go parameter is *Caller have
// wasm.HostFunc.NeedsCaller set, mirroring wenjin's per-function STORE
// flag.
type Caller struct {
	Store       *wasm.Store
	InstanceIdx wasm.InstanceID
}

// Memory returns the caller's memory 0, or a RuntimeErrCallerNoMemory
// error if the instance has none.
func (c *Caller) Memory() (*wasm.MemoryInstance, error) {
	inst := c.Store.Instances[c.InstanceIdx]
	if len(inst.Memories) == 0 {
		return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrCallerNoMemory}
	}
	return c.Store.Memory(inst.Memories[0])
}

var callerType = reflect.TypeOf((*Caller)(nil))

func goTypeToValueType(t reflect.Type) (wasm.ValueType, error) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return wasm.ValueTypeI32, nil
	case reflect.Int64, reflect.Uint64:
		return wasm.ValueTypeI64, nil
	case reflect.Float32:
		return wasm.ValueTypeF32, nil
	case reflect.Float64:
		return wasm.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("hostabi: unsupported Go type %s for a wasm value", t)
	}
}

func valueTypeToGoValue(rv reflect.Value, sv wasm.StackValue, t reflect.Type) {
	switch t.Kind() {
	case reflect.Int32:
		rv.SetInt(int64(sv.I32()))
	case reflect.Uint32:
		rv.SetUint(uint64(sv.U32()))
	case reflect.Int64:
		rv.SetInt(sv.I64())
	case reflect.Uint64:
		rv.SetUint(sv.U64())
	case reflect.Float32:
		rv.SetFloat(float64(sv.F32()))
	case reflect.Float64:
		rv.SetFloat(sv.F64())
	}
}

func goValueToStackValue(rv reflect.Value) wasm.StackValue {
	switch rv.Kind() {
	case reflect.Int32:
		return wasm.StackValueFromI32(int32(rv.Int()))
	case reflect.Uint32:
		return wasm.StackValueFromI32(int32(uint32(rv.Uint())))
	case reflect.Int64:
		return wasm.StackValueFromI64(rv.Int())
	case reflect.Uint64:
		return wasm.StackValueFromI64(int64(rv.Uint()))
	case reflect.Float32:
		return wasm.StackValueFromF32(float32(rv.Float()))
	case reflect.Float64:
		return wasm.StackValueFromF64(rv.Float())
	default:
		panic("unreachable: unsupported host function result type")
	}
}

// NewHostFunc wraps a Go function as a wasm.HostFunc. fn's signature must
// be func([*Caller,] numeric...) (numeric...) where each numeric type is
// one of int32/uint32/int64/uint64/float32/float64 (the Go-side mirror of
// wasm.ValueType, excluding reference types: host functions exchanging
// funcref/externref go through the Store's handle tables directly, not
// this reflect path).
func NewHostFunc(fn interface{}) (*wasm.HostFunc, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("hostabi: NewHostFunc requires a function, got %s", t)
	}

	needsCaller := t.NumIn() > 0 && t.In(0) == callerType
	firstParam := 0
	if needsCaller {
		firstParam = 1
	}

	params := make([]wasm.ValueType, 0, t.NumIn()-firstParam)
	for i := firstParam; i < t.NumIn(); i++ {
		vt, err := goTypeToValueType(t.In(i))
		if err != nil {
			return nil, err
		}
		params = append(params, vt)
	}
	results := make([]wasm.ValueType, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		vt, err := goTypeToValueType(t.Out(i))
		if err != nil {
			return nil, err
		}
		results = append(results, vt)
	}

	return &wasm.HostFunc{
		Type:        &wasm.FuncType{Params: params, Results: results},
		Value:       v,
		NeedsCaller: needsCaller,
	}, nil
}

// Invoke calls a HostFunc's wrapped Go function, marshalling args/results
// through reflection. caller is nil when NeedsCaller is false.
func Invoke(hf *wasm.HostFunc, caller *Caller, args []wasm.StackValue) ([]wasm.StackValue, error) {
	t := hf.Value.Type()
	firstParam := 0
	argv := make([]reflect.Value, t.NumIn())
	if hf.NeedsCaller {
		if caller == nil {
			return nil, &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrCallerNotWasm}
		}
		argv[0] = reflect.ValueOf(caller)
		firstParam = 1
	}
	for i := firstParam; i < t.NumIn(); i++ {
		pt := t.In(i)
		rv := reflect.New(pt).Elem()
		valueTypeToGoValue(rv, args[i-firstParam], pt)
		argv[i] = rv
	}

	outs, err := callRecovering(hf.Value, argv)
	if err != nil {
		return nil, err
	}
	results := make([]wasm.StackValue, len(outs))
	for i, o := range outs {
		results[i] = goValueToStackValue(o)
	}
	return results, nil
}

// callRecovering invokes fn and turns a panic into a RuntimeErrHostFuncPanic
// instead of unwinding through the interpreter's Go call stack, annotating
// the recovered value with errors.WithStack so the host sees where
// inside the embedder's function the panic originated, not just where the
// guest called into it.
func callRecovering(fn reflect.Value, argv []reflect.Value) (outs []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				rerr = fmt.Errorf("%v", r)
			}
			err = &wasmdebug.RuntimeError{Kind: wasmdebug.RuntimeErrHostFuncPanic, Cause: errors.WithStack(rerr)}
		}
	}()
	return fn.Call(argv), nil
}

// ClearPadding zeroes the padding bytes of v (a pointer to a struct) before
// it is copied into guest-visible linear memory, so host-allocated
// padding never leaks uninitialized host heap bytes to the guest. This is
// wenjin's clear_padding. Rust
// needs it because repr(Rust) structs carry compiler-chosen padding with
// unspecified bytes; Go's allocator already zeroes new memory, so this
// only matters when v aliases reused memory (a pooled buffer, an
// in-place field update) rather than a fresh allocation.
func ClearPadding(v reflect.Value) {
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	clearPaddingStruct(v.Elem())
}

func clearPaddingStruct(v reflect.Value) {
	t := v.Type()
	var offset uintptr
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Offset > offset {
			zeroRange(v, offset, f.Offset)
		}
		if f.Type.Kind() == reflect.Struct {
			clearPaddingStruct(v.Field(i))
		}
		offset = f.Offset + f.Type.Size()
	}
	if offset < t.Size() {
		zeroRange(v, offset, t.Size())
	}
}

// zeroRange writes zeros over bytes [from, to) of v's in-memory
// representation. ClearPadding only reaches structs through a pointer,
// so v and every nested field are addressable; a non-addressable v is
// left untouched.
func zeroRange(v reflect.Value, from, to uintptr) {
	if !v.CanAddr() {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(v.UnsafeAddr()), from)), to-from)
	for i := range b {
		b[i] = 0
	}
}
