package processor

import "flag-events/internal/event"

type messageKind int

const (
	messageEvent messageKind = iota
	messageFlush
	messageShutdown
)

// message is what travels through the queue: a user event or one of the two
// control signals.
type message struct {
	kind  messageKind
	event event.UserEvent
}

// queue is a fixed-capacity FIFO between producers and the worker. Inserts
// never block: when the buffer is full the item is refused and the caller
// decides what to log.
type queue struct {
	ch chan message
}

func newQueue(capacity int) *queue {
	return &queue{ch: make(chan message, capacity)}
}

// offer inserts at the tail, reporting false when the queue is full. A
// successful insert also wakes the worker if it is waiting.
func (q *queue) offer(m message) bool {
	select {
	case q.ch <- m:
		return true
	default:
		return false
	}
}

func (q *queue) depth() int {
	return len(q.ch)
}

// purgeControls strips control signals left over from a previous lifecycle,
// keeping queued events in order. Only called while no worker is running.
// Returns the number of events dropped because producers refilled the queue
// mid-purge.
func (q *queue) purgeControls() int {
	dropped := 0
	n := len(q.ch)
	for i := 0; i < n; i++ {
		select {
		case m := <-q.ch:
			if m.kind == messageEvent && !q.offer(m) {
				dropped++
			}
		default:
			return dropped
		}
	}
	return dropped
}
