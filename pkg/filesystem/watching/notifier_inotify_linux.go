package watching

import (
	"encoding/binary"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

const (
	// inotifyMask is the set of inotify events requested for each directory.
	inotifyMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MODIFY | unix.IN_MOVED_FROM | unix.IN_MOVED_TO
	// inotifyBufferSize is the size of the read buffer. It can hold at least
	// 64 events with maximum-length names.
	inotifyBufferSize = 64 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)
)

// inotifyNotifier implements notifier using raw inotify. The inotify
// descriptor is non-blocking and polled alongside a wake pipe so that reads
// can be interrupted.
type inotifyNotifier struct {
	// descriptor is the inotify file descriptor.
	descriptor int
	// wake is the interruption pipe (read end, write end).
	wake [2]int
	// buffer is the event read buffer.
	buffer []byte
	// lock serializes Interrupt and Close.
	lock sync.Mutex
	// closed indicates whether or not Close has been invoked.
	closed bool
}

// newNotifier creates the platform's notifier.
func newNotifier() (notifier, error) {
	// Create the inotify descriptor.
	descriptor, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize inotify")
	}

	// Create the wake pipe.
	var wake [2]int
	if err := unix.Pipe2(wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(descriptor)
		return nil, errors.Wrap(err, "unable to create wake pipe")
	}

	// Success.
	return &inotifyNotifier{
		descriptor: descriptor,
		wake:       wake,
		buffer:     make([]byte, inotifyBufferSize),
	}, nil
}

// Add implements notifier.Add.
func (n *inotifyNotifier) Add(path string) (Handle, error) {
	descriptor, err := unix.InotifyAddWatch(n.descriptor, path, inotifyMask)
	if err != nil {
		return 0, &os.PathError{Op: "inotify_add_watch", Path: path, Err: err}
	}
	return Handle(descriptor), nil
}

// Read implements notifier.Read.
func (n *inotifyNotifier) Read() ([]rawEvent, error) {
	for {
		// Wait for either descriptor to become readable.
		descriptors := []unix.PollFd{
			{Fd: int32(n.descriptor), Events: unix.POLLIN},
			{Fd: int32(n.wake[0]), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(descriptors, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, errors.Wrap(err, "unable to poll inotify descriptor")
		}

		// Interruption takes precedence. We never drain the wake pipe, so
		// subsequent reads are interrupted as well.
		if descriptors[1].Revents != 0 {
			return nil, errNotifierInterrupted
		}

		// Read the available events.
		count, err := unix.Read(n.descriptor, n.buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return nil, errors.Wrap(err, "unable to read inotify events")
		} else if count < unix.SizeofInotifyEvent {
			return nil, errors.New("short inotify read")
		}

		// Decode them.
		return decodeInotifyEvents(n.buffer[:count]), nil
	}
}

// decodeInotifyEvents decodes a buffer of packed inotify_event records.
func decodeInotifyEvents(buffer []byte) []rawEvent {
	var events []rawEvent
	for len(buffer) >= unix.SizeofInotifyEvent {
		// Extract the fixed-size header. The layout is wd, mask, cookie, len,
		// each 32 bits wide in native byte order.
		descriptor := int32(binary.NativeEndian.Uint32(buffer[0:4]))
		mask := binary.NativeEndian.Uint32(buffer[4:8])
		length := int(binary.NativeEndian.Uint32(buffer[12:16]))
		if unix.SizeofInotifyEvent+length > len(buffer) {
			break
		}

		// Extract the name, which is padded with null bytes.
		name := strings.TrimRight(string(buffer[unix.SizeofInotifyEvent:unix.SizeofInotifyEvent+length]), "\x00")

		// Record the event.
		events = append(events, rawEvent{
			handle:    Handle(descriptor),
			name:      name,
			op:        inotifyOperation(mask),
			directory: mask&unix.IN_ISDIR != 0,
		})

		// Advance.
		buffer = buffer[unix.SizeofInotifyEvent+length:]
	}
	return events
}

// inotifyOperation converts an inotify event mask to an operation set.
func inotifyOperation(mask uint32) operation {
	var result operation
	if mask&unix.IN_CREATE != 0 {
		result |= opCreate
	}
	if mask&unix.IN_DELETE != 0 {
		result |= opDelete
	}
	if mask&unix.IN_MODIFY != 0 {
		result |= opModify
	}
	if mask&unix.IN_MOVED_FROM != 0 {
		result |= opMovedFrom
	}
	if mask&unix.IN_MOVED_TO != 0 {
		result |= opMovedTo
	}
	if mask&unix.IN_Q_OVERFLOW != 0 {
		result |= opOverflow
	}
	if mask&unix.IN_IGNORED != 0 {
		result |= opHandleRemoved
	}
	return result
}

// Interrupt implements notifier.Interrupt.
func (n *inotifyNotifier) Interrupt() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if !n.closed {
		unix.Write(n.wake[1], []byte{0})
	}
}

// Close implements notifier.Close.
func (n *inotifyNotifier) Close() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	unix.Close(n.wake[0])
	unix.Close(n.wake[1])
	if err := unix.Close(n.descriptor); err != nil {
		return errors.Wrap(err, "unable to close inotify descriptor")
	}
	return nil
}
