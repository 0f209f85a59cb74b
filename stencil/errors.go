package stencil

import (
	"fmt"
	"os"
)

// Terminate is the single injectable "fatal" function through which every
// invariant violation in this package (non-rectangular bounding box, an
// unimplemented temporal-blocking path, an inconsistent rank distance)
// exits the process: the default writes the message to stderr and exits
// with status 1. Tests replace it with a function that records the
// message and panics with a recoverable sentinel instead of calling
// os.Exit, so diagnostics can be observed without killing the test runner.
var Terminate = func(msg string) {
	fmt.Fprintf(os.Stderr, "stencil: fatal: %s\n", msg)
	os.Exit(1)
}

// Fatalf formats msg and routes it through Terminate. It has no return
// value, and it does not return as long as Terminate exits or panics, as
// the default and the test replacements both do.
func (ctx *StencilContext) Fatalf(format string, args ...any) {
	Terminate(fmt.Sprintf(format, args...))
}
