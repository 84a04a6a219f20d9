//go:build !windows

package process

import (
	"os"
	"syscall"
)

// statusFromProcessState extracts a status from a process state.
func statusFromProcessState(state *os.ProcessState) Status {
	if waitStatus, ok := state.Sys().(syscall.WaitStatus); ok && waitStatus.Signaled() {
		return Status{Code: -1, Signal: waitStatus.Signal().String()}
	}
	return Status{Code: state.ExitCode()}
}
