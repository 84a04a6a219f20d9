//go:build !linux

package watching

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// fsnotifyNotifier implements notifier on top of fsnotify for platforms
// without inotify. fsnotify reports full paths, so the notifier maintains its
// own directory-to-handle mapping to produce handle-relative events.
type fsnotifyNotifier struct {
	// watcher is the underlying fsnotify watcher.
	watcher *fsnotify.Watcher
	// handles maps subscribed directories to their handles.
	handles map[string]Handle
	// nextHandle is the next handle to assign.
	nextHandle Handle
	// interrupted is closed by Interrupt.
	interrupted chan struct{}
	// interruptOnce guards closure of interrupted.
	interruptOnce sync.Once
}

// newNotifier creates the platform's notifier.
func newNotifier() (notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize fsnotify")
	}
	return &fsnotifyNotifier{
		watcher:     watcher,
		handles:     make(map[string]Handle),
		interrupted: make(chan struct{}),
	}, nil
}

// Add implements notifier.Add.
func (n *fsnotifyNotifier) Add(path string) (Handle, error) {
	// Re-use existing handles so that repeated subscriptions are idempotent.
	if handle, ok := n.handles[path]; ok {
		return handle, nil
	}

	// Establish the watch.
	if err := n.watcher.Add(path); err != nil {
		if os.IsNotExist(err) {
			return 0, &os.PathError{Op: "watch", Path: path, Err: os.ErrNotExist}
		}
		return 0, err
	}

	// Assign a handle.
	handle := n.nextHandle
	n.nextHandle++
	n.handles[path] = handle
	return handle, nil
}

// translate converts an fsnotify event into zero or more raw events.
func (n *fsnotifyNotifier) translate(event fsnotify.Event) []rawEvent {
	var result []rawEvent

	// If a subscribed directory itself has gone away, then its handle is
	// defunct.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if handle, ok := n.handles[event.Name]; ok {
			delete(n.handles, event.Name)
			result = append(result, rawEvent{handle: handle, op: opHandleRemoved})
		}
	}

	// Compute the parent handle. Events for entries whose parent we don't
	// track can't be attributed and are dropped.
	parent, ok := n.handles[filepath.Dir(event.Name)]
	if !ok {
		return result
	}

	// Convert the operation. Attribute-only changes aren't of interest.
	var op operation
	if event.Has(fsnotify.Create) {
		op |= opCreate
	}
	if event.Has(fsnotify.Write) {
		op |= opModify
	}
	if event.Has(fsnotify.Remove) {
		op |= opDelete
	}
	if event.Has(fsnotify.Rename) {
		op |= opMovedFrom
	}
	if op == 0 {
		return result
	}

	// fsnotify doesn't report entry types, so check created entries directly.
	var directory bool
	if op&opCreate != 0 {
		if metadata, err := os.Lstat(event.Name); err == nil {
			directory = metadata.IsDir()
		}
	}

	// Done.
	return append(result, rawEvent{
		handle:    parent,
		name:      filepath.Base(event.Name),
		op:        op,
		directory: directory,
	})
}

// Read implements notifier.Read.
func (n *fsnotifyNotifier) Read() ([]rawEvent, error) {
	var batch []rawEvent

	// Block until something is available.
	select {
	case event, ok := <-n.watcher.Events:
		if !ok {
			return nil, errors.New("fsnotify event stream closed")
		}
		batch = append(batch, n.translate(event)...)
	case err, ok := <-n.watcher.Errors:
		if !ok {
			return nil, errors.New("fsnotify error stream closed")
		} else if err == fsnotify.ErrEventOverflow {
			batch = append(batch, rawEvent{op: opOverflow})
		} else {
			return nil, errors.Wrap(err, "unable to read fsnotify events")
		}
	case <-n.interrupted:
		return nil, errNotifierInterrupted
	}

	// Drain whatever else is already queued.
	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return batch, nil
			}
			batch = append(batch, n.translate(event)...)
		default:
			return batch, nil
		}
	}
}

// Interrupt implements notifier.Interrupt.
func (n *fsnotifyNotifier) Interrupt() {
	n.interruptOnce.Do(func() {
		close(n.interrupted)
	})
}

// Close implements notifier.Close.
func (n *fsnotifyNotifier) Close() error {
	return n.watcher.Close()
}
