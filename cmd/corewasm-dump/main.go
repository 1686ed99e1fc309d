// Command corewasm-dump parses, validates, and compiles a Wasm binary, then
// prints its function count, export names, and each function's signature.
// It is an inspection tool,
// not a test-harness driver: it never executes guest code.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wazeroot/corewasm"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)
	var help bool
	flag.BoolVar(&help, "h", false, "Prints usage.")
	flag.Parse()

	if help || flag.NArg() != 1 {
		printUsage(stdErr)
		if help {
			return 0
		}
		return 1
	}

	path := flag.Arg(0)
	buf, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	rt := corewasm.NewDefaultRuntime()
	cm, err := rt.CompileModule(buf)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	fmt.Fprintf(stdOut, "%s: %d functions, exports: %v\n", path, cm.NumFuncs(), cm.ExportNames())
	for i, sig := range cm.FuncSignatures() {
		fmt.Fprintf(stdOut, "  func[%d]: %s\n", i, sig)
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "corewasm-dump: parse, validate, and compile a Wasm binary")
	fmt.Fprintln(w, "usage: corewasm-dump <path.wasm>")
}
