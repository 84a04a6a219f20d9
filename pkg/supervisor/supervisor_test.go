package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mutagen-io/watchit/pkg/filesystem/watching"
	"github.com/mutagen-io/watchit/pkg/logging"
	"github.com/mutagen-io/watchit/pkg/process"
)

const (
	// testQuietPeriod is the quiet period used by tests.
	testQuietPeriod = 20 * time.Millisecond
	// maximumWaitTime bounds how long tests wait for supervisor activity.
	maximumWaitTime = 5 * time.Second
)

// fakeChild is a child whose exit is controlled by the test.
type fakeChild struct {
	// exit delivers the exit status.
	exit chan process.Status
	// interrupts counts interrupt requests.
	interrupts int32
	// exitOnInterrupt causes the first interrupt to terminate the child.
	exitOnInterrupt bool
	// interruptErr, if non-nil, causes interrupts to fail.
	interruptErr error
}

func (c *fakeChild) Wait() (process.Status, error) {
	return <-c.exit, nil
}

func (c *fakeChild) Interrupt() error {
	if c.interruptErr != nil {
		return c.interruptErr
	}
	if atomic.AddInt32(&c.interrupts, 1) == 1 && c.exitOnInterrupt {
		c.exit <- process.Status{Code: -1, Signal: "interrupt"}
	}
	return nil
}

func (c *fakeChild) interruptCount() int {
	return int(atomic.LoadInt32(&c.interrupts))
}

// fakeLauncher creates fake children and records their launches.
type fakeLauncher struct {
	// launched receives each launched child.
	launched chan *fakeChild
	// immediate, if non-nil, is the status with which children exit
	// immediately.
	immediate *process.Status
	// exitOnInterrupt is propagated to children.
	exitOnInterrupt bool
	// interruptErr is propagated to children.
	interruptErr error
	// err, if non-nil, causes launches to fail.
	err error
	// environments records the environment of each launch.
	environments chan []string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		launched:     make(chan *fakeChild, 64),
		environments: make(chan []string, 64),
	}
}

func (l *fakeLauncher) launch(_ string, environment []string) (child, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.environments <- environment
	c := &fakeChild{
		exit:            make(chan process.Status, 1),
		exitOnInterrupt: l.exitOnInterrupt,
		interruptErr:    l.interruptErr,
	}
	if l.immediate != nil {
		c.exit <- *l.immediate
	}
	l.launched <- c
	return c, nil
}

// next waits for the next launch.
func (l *fakeLauncher) next(t *testing.T) *fakeChild {
	t.Helper()
	select {
	case c := <-l.launched:
		return c
	case <-time.After(maximumWaitTime):
		t.Fatal("command not launched")
		return nil
	}
}

// count returns the number of launches that haven't been consumed by next.
func (l *fakeLauncher) count() int {
	return len(l.launched)
}

// newTestSupervisor creates a supervisor backed by a fake launcher.
func newTestSupervisor(options Options) (*Supervisor, *fakeLauncher) {
	if options.QuietPeriod == 0 {
		options.QuietPeriod = testQuietPeriod
	}
	launcher := newFakeLauncher()
	supervisor := New(options, nil)
	supervisor.launch = launcher.launch
	return supervisor, launcher
}

// start runs the supervisor in the background and returns a channel that will
// receive its result.
func start(ctx context.Context, supervisor *Supervisor, events <-chan watching.Event) <-chan error {
	results := make(chan error, 1)
	go func() {
		results <- supervisor.Run(ctx, events)
	}()
	return results
}

// result waits for the supervisor result.
func result(t *testing.T, results <-chan error) error {
	t.Helper()
	select {
	case err := <-results:
		return err
	case <-time.After(maximumWaitTime):
		t.Fatal("supervisor did not exit")
		return nil
	}
}

// send delivers an event to the supervisor.
func send(t *testing.T, events chan<- watching.Event, event watching.Event) {
	t.Helper()
	select {
	case events <- event:
	case <-time.After(maximumWaitTime):
		t.Fatal("supervisor did not accept event")
	}
}

var (
	ready   = watching.Event{Kind: watching.EventReady}
	changed = watching.Event{Kind: watching.EventChangeDetected}
)

func TestNoCommandExitsOnFirstChange(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{})
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	// Readiness alone doesn't terminate the supervisor.
	send(t, events, ready)
	select {
	case err := <-results:
		t.Fatal("supervisor exited after readiness:", err)
	case <-time.After(5 * testQuietPeriod):
	}

	// The first change does.
	send(t, events, changed)
	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
	if launcher.count() != 0 {
		t.Error("command launched without a command configured")
	}
}

func TestNoCommandStreamEnd(t *testing.T) {
	supervisor, _ := newTestSupervisor(Options{})
	events := make(chan watching.Event, 1)
	events <- ready
	close(events)
	if err := supervisor.Run(context.Background(), events); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
}

func TestErrorEventReturned(t *testing.T) {
	cause := errors.New("watch failure")
	supervisor, _ := newTestSupervisor(Options{})
	events := make(chan watching.Event, 1)
	events <- watching.Event{Kind: watching.EventError, Err: cause}
	if err := supervisor.Run(context.Background(), events); err != cause {
		t.Error("error event not returned:", err)
	}
}

func TestErrorDuringFlush(t *testing.T) {
	cause := errors.New("watch failure")
	supervisor, launcher := newTestSupervisor(Options{Command: "build"})
	events := make(chan watching.Event, 2)
	events <- ready
	events <- watching.Event{Kind: watching.EventError, Err: cause}
	if err := supervisor.Run(context.Background(), events); err != cause {
		t.Error("error event not returned:", err)
	}
	if launcher.count() != 0 {
		t.Error("command launched despite pending error")
	}
}

func TestChangesCoalesced(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "build"})
	launcher.immediate = &process.Status{}
	events := make(chan watching.Event, 4)
	events <- ready
	events <- changed
	events <- changed
	events <- changed
	close(events)
	if err := supervisor.Run(context.Background(), events); err != nil {
		t.Fatal("unexpected supervisor error:", err)
	}
	if count := launcher.count(); count != 1 {
		t.Error("unexpected launch count:", count, "!=", 1)
	}
}

func TestChangesDuringQuietPeriodCoalesced(t *testing.T) {
	// Use a quiet period long enough that changes sent at a quarter of its
	// length reliably arrive while it's running.
	const quietPeriod = 200 * time.Millisecond
	supervisor, launcher := newTestSupervisor(Options{Command: "build", QuietPeriod: quietPeriod})
	launcher.immediate = &process.Status{}
	events := make(chan watching.Event, 8)
	results := start(context.Background(), supervisor, events)

	// Start the quiet period and keep changing things while it runs.
	send(t, events, ready)
	ticker := time.NewTicker(quietPeriod / 4)
	for i := 0; i < 3; i++ {
		<-ticker.C
		if launcher.count() != 0 {
			t.Fatal("command launched before quiet period elapsed")
		}
		send(t, events, changed)
	}
	ticker.Stop()

	// Exactly one run should cover all of the changes.
	launcher.next(t)
	select {
	case <-launcher.launched:
		t.Error("changes during quiet period caused an additional launch")
	case <-time.After(2 * quietPeriod):
	}
	close(events)
	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
}

func TestSeparatedChangesLaunchSeparately(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "build"})
	launcher.immediate = &process.Status{}
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	send(t, events, ready)
	launcher.next(t)
	send(t, events, changed)
	launcher.next(t)
	send(t, events, changed)
	launcher.next(t)
	close(events)

	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
	if launcher.count() != 0 {
		t.Error("unexpected additional launches")
	}
}

func TestInterruptSentOncePerRun(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "serve", Interrupt: true})
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	// Start the first run and overtake it with several changes.
	send(t, events, ready)
	first := launcher.next(t)
	send(t, events, changed)
	send(t, events, changed)
	send(t, events, changed)
	if count := first.interruptCount(); count != 1 {
		t.Fatal("unexpected interrupt count:", count, "!=", 1)
	}

	// Let the first run exit and verify that a new run starts.
	first.exit <- process.Status{Code: -1, Signal: "interrupt"}
	second := launcher.next(t)

	// Let the second run exit normally after the stream ends.
	close(events)
	second.exit <- process.Status{}
	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
	if count := second.interruptCount(); count != 0 {
		t.Error("second run unexpectedly interrupted")
	}
}

func TestNoInterruptWaitsForRun(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "build"})
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	send(t, events, ready)
	first := launcher.next(t)
	send(t, events, changed)
	send(t, events, changed)

	// Nothing should happen until the first run exits.
	select {
	case <-launcher.launched:
		t.Fatal("command relaunched while still running")
	case <-time.After(5 * testQuietPeriod):
	}
	if first.interruptCount() != 0 {
		t.Fatal("command interrupted without interrupt mode")
	}

	// Once it does, changes during the run trigger exactly one new run.
	first.exit <- process.Status{}
	second := launcher.next(t)
	close(events)
	second.exit <- process.Status{}
	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
	if launcher.count() != 0 {
		t.Error("unexpected additional launches")
	}
}

func TestFailedRunDoesNotStopSupervisor(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "exit 1"})
	launcher.immediate = &process.Status{Code: 1}
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	send(t, events, ready)
	launcher.next(t)
	send(t, events, changed)
	launcher.next(t)
	close(events)

	if err := result(t, results); err != nil {
		t.Error("unexpected supervisor error:", err)
	}
}

func TestErrorDuringRun(t *testing.T) {
	cause := errors.New("watch failure")
	supervisor, launcher := newTestSupervisor(Options{Command: "serve", Interrupt: true})
	events := make(chan watching.Event)
	results := start(context.Background(), supervisor, events)

	send(t, events, ready)
	running := launcher.next(t)
	send(t, events, watching.Event{Kind: watching.EventError, Err: cause})

	if err := result(t, results); err != cause {
		t.Error("error event not returned:", err)
	}
	if running.interruptCount() != 0 {
		t.Error("command interrupted after error event")
	}
	running.exit <- process.Status{}
}

func TestLaunchFailure(t *testing.T) {
	cause := errors.New("no shell")
	supervisor, launcher := newTestSupervisor(Options{Command: "build"})
	launcher.err = cause
	events := make(chan watching.Event, 1)
	events <- ready
	if err := supervisor.Run(context.Background(), events); !errors.Is(err, cause) {
		t.Error("launch failure not returned:", err)
	}
}

func TestCancellationInterruptsRun(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{Command: "serve"})
	launcher.exitOnInterrupt = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan watching.Event)
	results := start(ctx, supervisor, events)

	send(t, events, ready)
	running := launcher.next(t)
	cancel()

	if err := result(t, results); err != context.Canceled {
		t.Error("unexpected supervisor result:", err)
	}
	if count := running.interruptCount(); count != 1 {
		t.Error("unexpected interrupt count:", count, "!=", 1)
	}
}

func TestCancellationInterruptFailure(t *testing.T) {
	buffer := &bytes.Buffer{}
	supervisor := New(Options{Command: "serve", QuietPeriod: testQuietPeriod}, logging.NewLogger(logging.LevelWarn, buffer))
	launcher := newFakeLauncher()
	launcher.interruptErr = errors.New("operation not permitted")
	supervisor.launch = launcher.launch
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan watching.Event)
	results := start(ctx, supervisor, events)

	send(t, events, ready)
	running := launcher.next(t)
	cancel()

	// The supervisor can't wait for a command that it couldn't signal.
	if err := result(t, results); err != context.Canceled {
		t.Error("unexpected supervisor result:", err)
	}
	if !strings.Contains(buffer.String(), "unable to interrupt command: operation not permitted") {
		t.Error("interrupt failure not logged:", buffer.String())
	}
	running.exit <- process.Status{}
}

func TestRunEnvironment(t *testing.T) {
	supervisor, launcher := newTestSupervisor(Options{
		Command:     "build",
		Environment: []string{"MODE=debug"},
	})
	launcher.immediate = &process.Status{}
	events := make(chan watching.Event, 1)
	events <- ready
	close(events)
	if err := supervisor.Run(context.Background(), events); err != nil {
		t.Fatal("unexpected supervisor error:", err)
	}

	environment := <-launcher.environments
	if len(environment) != 2 {
		t.Fatal("unexpected environment length:", len(environment))
	} else if environment[0] != "MODE=debug" {
		t.Error("configured environment not propagated:", environment[0])
	} else if !strings.HasPrefix(environment[1], RunIdentifierEnvironmentVariable+"=") {
		t.Error("run identifier not provided:", environment[1])
	} else if _, err := uuid.Parse(strings.TrimPrefix(environment[1], RunIdentifierEnvironmentVariable+"=")); err != nil {
		t.Error("run identifier is not a UUID:", err)
	}
}
