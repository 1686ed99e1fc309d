package wasm

// Engine executes compiled guest bytecode on behalf of a Store. The
// interpreter package is the only implementation; Store depends on this
// interface (rather than importing internal/interpreter directly) to avoid
// a package cycle, since the interpreter itself operates on *Store.
type Engine interface {
	// Call invokes the function identified by id with args already
	// converted to StackValue form (one per Function.Type.Params), and
	// returns one StackValue per Function.Type.Results.
	Call(store *Store, id FuncID, args []StackValue) ([]StackValue, error)
}
