package process

import (
	"errors"
)

// DefaultShell is the default shell invocation for running command strings.
var DefaultShell = []string{"cmd", "/C"}

// Interrupt would request graceful termination of the child, but Windows
// provides no way to deliver an interrupt to an arbitrary process.
func (c *Child) Interrupt() error {
	return errors.New("process interruption not supported on Windows")
}
