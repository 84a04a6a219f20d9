package process

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Child is a running shell command.
type Child struct {
	// command is the underlying command.
	command *exec.Cmd
}

// Start launches a command string through the specified shell invocation
// (e.g. ["/bin/sh", "-c"]). The child inherits the standard streams and the
// environment of the current process, extended with the specified
// environment entries (in "KEY=value" form), which take precedence.
func Start(shell []string, command string, environment []string) (*Child, error) {
	// Validate the shell invocation.
	if len(shell) == 0 {
		return nil, errors.New("empty shell invocation")
	}

	// Create the command.
	arguments := append(append([]string{}, shell[1:]...), command)
	cmd := exec.Command(shell[0], arguments...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(environment) > 0 {
		cmd.Env = append(os.Environ(), environment...)
	}

	// Start the process.
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start shell")
	}

	// Success.
	return &Child{command: cmd}, nil
}

// Wait blocks until the child exits and returns its exit status. A non-zero
// exit status is not an error; errors indicate that the status couldn't be
// obtained.
func (c *Child) Wait() (Status, error) {
	// Wait for termination. An exit error simply carries a non-zero status.
	if err := c.command.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return Status{}, errors.Wrap(err, "unable to wait for process")
		}
	}

	// Extract the status.
	return statusFromProcessState(c.command.ProcessState), nil
}
