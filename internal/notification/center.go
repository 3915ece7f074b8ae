package notification

import (
	"sync"

	"flag-events/internal/event"
	"flag-events/internal/processor"
	"flag-events/pkg/logger"
)

// Handler receives dispatched-batch notifications.
type Handler func(kind processor.NotificationKind, le event.LogEvent)

// Center fans notifications out to registered handlers. A panicking handler
// is logged and does not affect the other handlers or the worker.
type Center struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

func NewCenter() *Center {
	return &Center{handlers: make(map[int]Handler)}
}

// AddHandler registers h and returns an id usable with RemoveHandler.
func (c *Center) AddHandler(h Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[c.nextID] = h
	return c.nextID
}

// RemoveHandler unregisters the handler with the given id, if present.
func (c *Center) RemoveHandler(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
}

// Notify implements processor.NotificationSink. Handlers run on the caller's
// goroutine, outside the center's lock.
func (c *Center) Notify(kind processor.NotificationKind, le event.LogEvent) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		safeCall(h, kind, le)
	}
}

func safeCall(h Handler, kind processor.NotificationKind, le event.LogEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Errorw("notification handler panicked",
				"kind", kind, "panic", r)
		}
	}()
	h(kind, le)
}
