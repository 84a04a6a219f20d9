package watching

import (
	"errors"
	"strings"
)

// errNotifierInterrupted is returned by notifier.Read after notifier.Interrupt
// has been invoked.
var errNotifierInterrupted = errors.New("notifier interrupted")

// Handle is an opaque identifier for a directory subscription.
type Handle int

// operation is a bit set describing what happened to a directory entry.
type operation uint8

const (
	// opCreate indicates that an entry was created.
	opCreate operation = 1 << iota
	// opDelete indicates that an entry was deleted.
	opDelete
	// opModify indicates that an entry's contents were modified.
	opModify
	// opMovedFrom indicates that an entry was moved out of (or within) a
	// watched directory.
	opMovedFrom
	// opMovedTo indicates that an entry was moved into (or within) a watched
	// directory.
	opMovedTo
	// opOverflow indicates that the OS dropped notifications.
	opOverflow
	// opHandleRemoved indicates that the OS has discarded a subscription,
	// usually because its directory was deleted.
	opHandleRemoved
)

// operationNames are the names of individual operation bits, in bit order.
var operationNames = []string{
	"create", "delete", "modify", "moved-from", "moved-to", "overflow", "removed",
}

// String provides a human-readable representation of an operation set.
func (o operation) String() string {
	var names []string
	for i, name := range operationNames {
		if o&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// rawEvent is a single notification as reported by a notifier.
type rawEvent struct {
	// handle is the subscription on which the event was reported.
	handle Handle
	// name is the name of the affected entry relative to the subscribed
	// directory. It is empty for events concerning the directory itself.
	name string
	// op describes what happened.
	op operation
	// directory indicates whether or not the affected entry is a directory.
	directory bool
}

// notifier is the interface implemented by OS notification backends. Add and
// Read are only ever invoked from a single Goroutine, but Interrupt may be
// invoked concurrently with Read.
type notifier interface {
	// Add subscribes to create, delete, modify, and move notifications for the
	// entries of a directory. Non-existence errors satisfy os.IsNotExist.
	Add(path string) (Handle, error)
	// Read blocks until at least one notification is available and returns
	// the batch of available notifications.
	Read() ([]rawEvent, error)
	// Interrupt unblocks any current or future Read call, which will return
	// errNotifierInterrupted.
	Interrupt()
	// Close releases the notifier's resources.
	Close() error
}
