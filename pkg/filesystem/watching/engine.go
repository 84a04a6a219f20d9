package watching

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mutagen-io/watchit/pkg/filesystem"
	"github.com/mutagen-io/watchit/pkg/logging"
)

// Engine watches a directory tree and reports relevant changes. The set of
// relevant entries is determined by a Provider, which is consulted at startup
// and again for every batch of notifications.
type Engine struct {
	// root is the root of the watched tree.
	root string
	// provider supplies allowed set snapshots.
	provider Provider
	// logger is the underlying logger.
	logger *logging.Logger
	// newNotifier creates the notification backend.
	newNotifier func() (notifier, error)
}

// NewEngine creates a new engine for the tree rooted at the specified path.
func NewEngine(root string, provider Provider, logger *logging.Logger) *Engine {
	return &Engine{
		root:        root,
		provider:    provider,
		logger:      logger,
		newNotifier: newNotifier,
	}
}

// Run performs watching until the context is cancelled, the consumer closes
// the queue, or a failure occurs. The first event sent is EventReady. Failures
// are reported as a single terminal EventError. In all cases, Run marks the
// queue as finished before returning. Run should be invoked only once.
func (e *Engine) Run(ctx context.Context, queue *Queue) {
	// Ensure that the consumer sees the end of the stream.
	defer queue.Finish()

	// Perform watching. Cancellation and consumer departure aren't failures.
	err := e.run(ctx, queue)
	if err == nil || err == ErrQueueClosed || err == errNotifierInterrupted {
		return
	}

	// Report the failure. If the consumer has gone away, there's nobody left to
	// tell.
	e.logger.Debugf("Watching failed: %v", err)
	queue.Send(Event{Kind: EventError, Err: err})
}

// run implements the watching loop for Run.
func (e *Engine) run(ctx context.Context, queue *Queue) error {
	// Create the notification backend and defer its closure.
	n, err := e.newNotifier()
	if err != nil {
		return err
	}
	defer n.Close()

	// Interrupt reads on cancellation. We track termination of this Goroutine
	// so that it doesn't outlive the notifier.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			n.Interrupt()
		case <-stop:
		}
	}()

	// Grab the initial allowed set.
	previous, err := e.provider.Refresh()
	if err != nil {
		return errors.Wrap(err, "unable to compute allowed watch set")
	}

	// Resolve the root so that subscription paths are canonical.
	root, err := filesystem.Canonicalize(e.root)
	if err != nil {
		return errors.Wrap(err, "unable to canonicalize watch root")
	}

	// Subscribe to every allowed directory in the tree.
	subscriptions := make(map[Handle]string)
	allowed := func(path string) bool {
		return previous.Contains(Directory(path))
	}
	if err := e.subscribe(n, subscriptions, root, allowed); err != nil {
		return err
	}
	e.logger.Debugf("Established %s watches under %s", humanize.Comma(int64(len(subscriptions))), root)

	// Signal readiness.
	if err := queue.Send(Event{Kind: EventReady}); err != nil {
		return err
	}

	// Process notifications until failure or termination.
	for {
		// Wait for notifications.
		batch, err := n.Read()
		if err != nil {
			return err
		}

		// Grab the current allowed set for this batch.
		current, err := e.provider.Refresh()
		if err != nil {
			return errors.Wrap(err, "unable to compute allowed watch set")
		}

		// Classify the batch.
		changed, err := e.classify(n, subscriptions, batch, previous, current)
		if err != nil {
			return err
		}

		// Report changes.
		if changed {
			if err := queue.Send(Event{Kind: EventChangeDetected}); err != nil {
				return err
			}
		}

		// Rotate snapshots.
		previous = current
	}
}

// classify processes a batch of raw notifications, subscribing to any new
// directories, and returns whether or not any notification names a relevant
// file.
func (e *Engine) classify(n notifier, subscriptions map[Handle]string, batch []rawEvent, previous, current Set) (bool, error) {
	var changed bool
	for _, event := range batch {
		// An overflow means that notifications were lost, so we can't rule out
		// a relevant change.
		if event.op&opOverflow != 0 {
			e.logger.Warnf("Notification queue overflowed, assuming a change")
			changed = true
			continue
		}

		// Drop subscriptions that the OS has already discarded.
		parent, known := subscriptions[event.handle]
		if event.op&opHandleRemoved != 0 {
			if known {
				delete(subscriptions, event.handle)
				e.logger.Debugf("Watch on %s removed", parent)
			}
			continue
		}

		// Ignore events that we can't attribute to a path.
		if !known || event.name == "" {
			e.logger.Tracef("Ignoring %s event on watch %d", event.op, event.handle)
			continue
		}
		path := filepath.Join(parent, event.name)

		// New directories are always watched. The provider can't know about
		// their contents until after those contents exist, and by then events
		// inside the directory would already have been missed.
		if event.directory && event.op&(opCreate|opMovedTo) != 0 {
			if err := e.subscribe(n, subscriptions, path, nil); err != nil {
				return false, err
			}
			continue
		}

		// Check relevance against both snapshots.
		e.logger.Debugf("Candidate change event for %s (%s)", path, event.op)
		if Relevant(File(path), previous, current) {
			e.logger.Infof("Change detected in %s (%s)", path, event.op)
			changed = true
		}
	}
	return changed, nil
}

// subscribe walks the directory tree rooted at the specified path and
// subscribes to each directory for which allowed returns true. If allowed is
// nil, then every directory is subscribed. Symbolic links aren't followed.
// Entries that vanish or become inaccessible during the walk are skipped.
func (e *Engine) subscribe(n notifier, subscriptions map[Handle]string, root string, allowed func(string) bool) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		// Handle entries that couldn't be read. Anything other than the root
		// having gone missing is tolerated.
		if err != nil {
			if path == root && !os.IsNotExist(err) {
				return errors.Wrapf(err, "unable to read %s", path)
			}
			e.logger.Debugf("Ignoring %s since it cannot be accessed", path)
			return nil
		}

		// Only directories are subscribed.
		if !entry.IsDir() || (allowed != nil && !allowed(path)) {
			return nil
		}

		// Subscribe.
		handle, err := n.Add(path)
		if err != nil {
			if os.IsNotExist(err) {
				e.logger.Debugf("Ignoring %s since it no longer exists", path)
				return nil
			}
			return errors.Wrapf(err, "unable to create watch on %s", path)
		}
		subscriptions[handle] = path
		if allowed == nil {
			e.logger.Debugf("Added watch for new directory %s", path)
		} else {
			e.logger.Tracef("Added watch for %s", path)
		}
		return nil
	})
}
