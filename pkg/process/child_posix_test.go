//go:build !windows

package process

import (
	"testing"
	"time"
)

// TestChildExitStatus tests that exit codes are reported without errors.
func TestChildExitStatus(t *testing.T) {
	// Set up test cases.
	testCases := []struct {
		command  string
		expected Status
	}{
		{"true", Status{Code: 0}},
		{"exit 1", Status{Code: 1}},
		{"watchit-test-nonexistent-command 2>/dev/null", Status{Code: 127}},
	}

	// Process test cases.
	for _, testCase := range testCases {
		child, err := Start(DefaultShell, testCase.command, nil)
		if err != nil {
			t.Fatal("unable to start command:", err)
		}
		if status, err := child.Wait(); err != nil {
			t.Errorf("unable to wait for %q: %v", testCase.command, err)
		} else if status != testCase.expected {
			t.Errorf("status (%s) for %q does not match expected (%s)", status, testCase.command, testCase.expected)
		}
	}
}

// TestChildEnvironment tests that additional environment entries are visible
// to the command.
func TestChildEnvironment(t *testing.T) {
	child, err := Start(DefaultShell, `test "$WATCHIT_TEST_VALUE" = expected`, []string{"WATCHIT_TEST_VALUE=expected"})
	if err != nil {
		t.Fatal("unable to start command:", err)
	}
	if status, err := child.Wait(); err != nil {
		t.Fatal("unable to wait for command:", err)
	} else if !status.Success() {
		t.Error("environment entry not visible to command:", status)
	}
}

// TestChildInterrupt tests that an interrupted command reports termination by
// signal.
func TestChildInterrupt(t *testing.T) {
	// Start a long-running command. We use exec so that the signal reaches
	// sleep directly rather than an intermediate shell.
	child, err := Start(DefaultShell, "exec sleep 30", nil)
	if err != nil {
		t.Fatal("unable to start command:", err)
	}

	// Wait for it in the background.
	statuses := make(chan Status, 1)
	go func() {
		status, _ := child.Wait()
		statuses <- status
	}()

	// Interrupt it.
	if err := child.Interrupt(); err != nil {
		t.Fatal("unable to interrupt command:", err)
	}
	select {
	case status := <-statuses:
		if status.Signal == "" || status.Success() {
			t.Error("interrupted command did not report signal termination:", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted command did not exit")
	}
}

// TestStartEmptyShell tests that an empty shell invocation is rejected.
func TestStartEmptyShell(t *testing.T) {
	if _, err := Start(nil, "true", nil); err == nil {
		t.Error("empty shell invocation accepted")
	}
}

// TestChildInterruptAfterExit tests that interrupting a command that has
// already exited is not an error.
func TestChildInterruptAfterExit(t *testing.T) {
	child, err := Start(DefaultShell, "true", nil)
	if err != nil {
		t.Fatal("unable to start command:", err)
	}
	if _, err := child.Wait(); err != nil {
		t.Fatal("unable to wait for command:", err)
	}
	if err := child.Interrupt(); err != nil {
		t.Error("interrupting exited command failed:", err)
	}
}
