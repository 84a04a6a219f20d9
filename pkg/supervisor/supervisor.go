// Package supervisor runs a command in response to change events, coalescing
// bursts of changes and optionally interrupting runs that are overtaken by new
// changes.
package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
	"github.com/mutagen-io/watchit/pkg/process"
)

const (
	// DefaultQuietPeriod is the default debounce window.
	DefaultQuietPeriod = 500 * time.Millisecond
	// RunIdentifierEnvironmentVariable is the environment variable through
	// which each run receives a unique identifier.
	RunIdentifierEnvironmentVariable = "WATCHIT_RUN_ID"
)

// Options configures a Supervisor.
type Options struct {
	// Command is the command string to run. If empty, the supervisor exits
	// successfully upon the first detected change.
	Command string
	// Interrupt indicates whether or not a running command should be sent an
	// interrupt signal when a change is detected.
	Interrupt bool
	// QuietPeriod is the debounce window applied before each run.
	QuietPeriod time.Duration
	// Shell is the shell invocation used to run the command. If empty,
	// process.DefaultShell is used.
	Shell []string
	// Environment contains additional environment entries (in "KEY=value"
	// form) for the command.
	Environment []string
}

// child is the interface to a running command.
type child interface {
	// Wait blocks until the command exits.
	Wait() (process.Status, error)
	// Interrupt requests graceful termination.
	Interrupt() error
}

// completion is the result of waiting for a child.
type completion struct {
	// status is the exit status.
	status process.Status
	// err is any error that occurred while waiting.
	err error
}

// Supervisor consumes watching events and manages command runs.
type Supervisor struct {
	// options are the supervisor options.
	options Options
	// logger is the underlying logger.
	logger *logging.Logger
	// launch starts the command with the specified environment additions.
	launch func(command string, environment []string) (child, error)
}

// New creates a new supervisor.
func New(options Options, logger *logging.Logger) *Supervisor {
	// Resolve the shell.
	shell := options.Shell
	if len(shell) == 0 {
		shell = process.DefaultShell
	}

	// Create the supervisor.
	return &Supervisor{
		options: options,
		logger:  logger,
		launch: func(command string, environment []string) (child, error) {
			c, err := process.Start(shell, command, environment)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// eventStream wraps the event channel so that its closure can be recorded.
// Once the channel has been observed closed, it's replaced by nil so that
// selects stop considering it.
type eventStream struct {
	// events is the event channel, or nil if it has been closed.
	events <-chan watching.Event
}

// Run consumes events until the first change (if no command is configured),
// until the event stream ends, until an error event is received, or until the
// context is cancelled. Error events are returned as the result. The command's
// own exit status never causes Run to return.
func (s *Supervisor) Run(ctx context.Context, events <-chan watching.Event) error {
	stream := &eventStream{events: events}
	for {
		// If the stream has ended, then there's nothing left to react to.
		if stream.events == nil {
			return nil
		}

		// Wait for the next event.
		var event watching.Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-stream.events:
			if !ok {
				return nil
			}
			event = e
		}

		// Decide whether or not to run.
		switch event.Kind {
		case watching.EventReady:
			s.logger.Info("Initial watches established")
			if s.options.Command == "" {
				continue
			}
		case watching.EventChangeDetected:
			if s.options.Command == "" {
				s.logger.Info("Changes were detected, exiting since no command was specified")
				return nil
			}
		case watching.EventError:
			return event.Err
		default:
			return errors.Errorf("unknown event kind: %d", event.Kind)
		}

		// Run the command, and keep re-running it for as long as changes are
		// observed during runs.
		for changed := true; changed; {
			if err := s.flush(ctx, stream); err != nil {
				return err
			}
			var err error
			if changed, err = s.execute(ctx, stream); err != nil {
				return err
			}
		}
	}
}

// flush waits for the quiet period and then discards any events that have
// accumulated in the meantime, since the upcoming run will cover them. An
// accumulated error event is returned.
func (s *Supervisor) flush(ctx context.Context, stream *eventStream) error {
	// Wait for the quiet period.
	timer := time.NewTimer(s.options.QuietPeriod)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	// Drain without blocking.
	for {
		select {
		case event, ok := <-stream.events:
			if !ok {
				stream.events = nil
				return nil
			}
			if event.Kind == watching.EventError {
				return event.Err
			}
		default:
			return nil
		}
	}
}

// execute performs a single run of the command, racing its completion against
// incoming events. It returns whether or not any change was observed during
// the run.
func (s *Supervisor) execute(ctx context.Context, stream *eventStream) (bool, error) {
	// Compute the run environment.
	identifier := uuid.New().String()
	environment := make([]string, 0, len(s.options.Environment)+1)
	environment = append(environment, s.options.Environment...)
	environment = append(environment, RunIdentifierEnvironmentVariable+"="+identifier)

	// Launch the command.
	s.logger.Infof("Running %s", s.options.Command)
	s.logger.Debugf("Run identifier is %s", identifier)
	start := time.Now()
	c, err := s.launch(s.options.Command, environment)
	if err != nil {
		return false, errors.Wrap(err, "unable to launch command")
	}

	// Wait for completion in a separate Goroutine. The channel is buffered so
	// that the waiter can always deliver its result and exit, even if we've
	// stopped listening.
	completions := make(chan completion, 1)
	go func() {
		status, err := c.Wait()
		completions <- completion{status, err}
	}()

	// Race completion against events.
	var changed, interrupted bool
	for {
		select {
		case result := <-completions:
			if result.err != nil {
				return false, errors.Wrap(result.err, "unable to wait for command")
			}
			s.report(result.status, time.Since(start))
			return changed, nil
		case event, ok := <-stream.events:
			if !ok {
				stream.events = nil
				continue
			}
			if event.Kind == watching.EventError {
				return false, event.Err
			}
			changed = true
			if s.options.Interrupt && !interrupted {
				s.logger.Info("Interrupting command so it can be restarted")
				if err := c.Interrupt(); err != nil {
					return false, errors.Wrap(err, "unable to interrupt command")
				}
				interrupted = true
			}
		case <-ctx.Done():
			// Don't leave the command running behind us. If it can't be
			// signaled, then we can't expect it to exit either.
			if !interrupted {
				if err := c.Interrupt(); err != nil {
					s.logger.Warn(errors.Wrap(err, "unable to interrupt command"))
					return false, ctx.Err()
				}
			}
			if result := <-completions; result.err == nil {
				s.report(result.status, time.Since(start))
			}
			return false, ctx.Err()
		}
	}
}

// report logs the exit status of a run.
func (s *Supervisor) report(status process.Status, elapsed time.Duration) {
	elapsed = elapsed.Round(time.Millisecond)
	if status.Success() {
		s.logger.Infof("Command finished with status %s after %s", status, elapsed)
		return
	}
	s.logger.Errorf("Command finished with status %s after %s", status, elapsed)
	if process.IsPOSIXShellCommandNotFound(status) {
		s.logger.Warnf("The shell was unable to find the command")
	} else if process.IsPOSIXShellInvalidCommand(status) {
		s.logger.Warnf("The shell was unable to execute the command")
	}
}
