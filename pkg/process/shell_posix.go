//go:build !windows

package process

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultShell is the default shell invocation for running command strings.
var DefaultShell = []string{"/bin/sh", "-c"}

// Interrupt sends an interrupt signal (SIGINT) to the child. This is a request
// for graceful termination that the child is free to ignore. Interrupting a
// child that has already exited is not an error.
func (c *Child) Interrupt() error {
	err := c.command.Process.Signal(unix.SIGINT)
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
