package process

import (
	"fmt"
)

// Status is the exit status of a child process.
type Status struct {
	// Code is the exit code. It is -1 if the process was terminated by a
	// signal.
	Code int
	// Signal is the name of the terminating signal, if any.
	Signal string
}

// Success indicates whether or not the process exited successfully.
func (s Status) Success() bool {
	return s.Code == 0 && s.Signal == ""
}

// String provides a human-readable representation of the status.
func (s Status) String() string {
	if s.Signal != "" {
		return fmt.Sprintf("signal (%s)", s.Signal)
	}
	return fmt.Sprintf("%d", s.Code)
}
