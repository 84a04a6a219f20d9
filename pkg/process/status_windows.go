package process

import (
	"os"
)

// statusFromProcessState extracts a status from a process state.
func statusFromProcessState(state *os.ProcessState) Status {
	return Status{Code: state.ExitCode()}
}
