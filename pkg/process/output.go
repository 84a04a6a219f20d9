package process

import (
	"bytes"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Output runs a helper command to completion in the specified directory and
// returns its standard output. Unlike the commands run by the supervisor,
// helper commands don't inherit standard streams. Error output is copied to
// diagnostics (if non-nil). If the command fails, then the first line of its
// error output (if any) is included in the error.
func Output(directory string, diagnostics io.Writer, name string, arguments ...string) ([]byte, error) {
	// Set up the command.
	command := exec.Command(name, arguments...)
	command.Dir = directory
	errorBuffer := &bytes.Buffer{}
	command.Stderr = errorBuffer
	if diagnostics != nil {
		command.Stderr = io.MultiWriter(errorBuffer, diagnostics)
	}

	// Run the command.
	output, err := command.Output()
	if err != nil {
		if message := firstLine(errorBuffer.String()); message != "" {
			return nil, errors.Errorf("%s failed: %s", name, message)
		}
		return nil, errors.Wrapf(err, "unable to run %s", name)
	}

	// Success.
	return output, nil
}

// firstLine returns the first non-empty line of output, with surrounding
// whitespace removed.
func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
