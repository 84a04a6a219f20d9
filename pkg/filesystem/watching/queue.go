package watching

import (
	"errors"
	"sync"
)

// ErrQueueClosed indicates that the consumer of a Queue has gone away.
var ErrQueueClosed = errors.New("event queue closed")

// Queue is an unbounded, ordered event queue connecting a single producer to a
// single consumer. Sends never block on the consumer, and events are delivered
// in the order in which they were sent.
type Queue struct {
	// input receives events from the producer.
	input chan Event
	// output delivers events to the consumer. It is closed once the producer
	// has finished and all pending events have been delivered, or once the
	// consumer has closed the queue.
	output chan Event
	// finished is closed when the producer is done sending.
	finished chan struct{}
	// finishOnce guards closure of finished.
	finishOnce sync.Once
	// closed is closed when the consumer is no longer receiving.
	closed chan struct{}
	// closeOnce guards closure of closed.
	closeOnce sync.Once
}

// NewQueue creates a new queue and starts its delivery loop.
func NewQueue() *Queue {
	// Create the queue.
	queue := &Queue{
		input:    make(chan Event),
		output:   make(chan Event),
		finished: make(chan struct{}),
		closed:   make(chan struct{}),
	}

	// Start delivery.
	go queue.run()

	// Done.
	return queue
}

// run implements the delivery loop, buffering events between producer and
// consumer.
func (q *Queue) run() {
	// Ensure that the consumer sees the end of the stream once we return.
	defer close(q.output)

	// Track pending events and the producer's state. We nil out finished once
	// it's been observed so that we stop selecting on it.
	var pending []Event
	finished := q.finished
	for {
		// If the producer is done and there's nothing left to deliver, then
		// the stream is complete.
		if finished == nil && len(pending) == 0 {
			return
		}

		// Only enable the delivery case if there's something to deliver.
		var target chan<- Event
		var next Event
		if len(pending) > 0 {
			target = q.output
			next = pending[0]
		}

		// Wait for something to happen.
		select {
		case event := <-q.input:
			pending = append(pending, event)
		case target <- next:
			pending[0] = Event{}
			pending = pending[1:]
		case <-finished:
			finished = nil
		case <-q.closed:
			return
		}
	}
}

// Send enqueues an event. It returns ErrQueueClosed if the consumer has closed
// the queue, in which case the event is discarded.
func (q *Queue) Send(event Event) error {
	// Give closure precedence so that a closed queue never accepts events.
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	// Hand the event to the delivery loop.
	select {
	case q.input <- event:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	}
}

// Finish indicates that the producer won't send any further events. Pending
// events are still delivered. It is safe to call more than once.
func (q *Queue) Finish() {
	q.finishOnce.Do(func() {
		close(q.finished)
	})
}

// Events returns the consumer's event channel.
func (q *Queue) Events() <-chan Event {
	return q.output
}

// Close indicates that the consumer is no longer receiving events. Subsequent
// sends fail with ErrQueueClosed. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}
