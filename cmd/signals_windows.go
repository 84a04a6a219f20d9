package cmd

import (
	"os"
	"syscall"
)

// TerminationSignals are those signals which watchit considers to be
// requesting termination. SIGINT is emulated by Go on Ctrl-C and Ctrl-Break.
var TerminationSignals = []os.Signal{
	syscall.SIGINT,
}
