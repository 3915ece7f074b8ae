package processor

import (
	"context"
	"sync"
	"time"

	"flag-events/internal/config"
	"flag-events/internal/event"
	"flag-events/pkg/logger"
)

// pollInterval bounds how long the worker sleeps between deadline checks
// when the queue is idle.
const pollInterval = 50 * time.Millisecond

// BatchProcessor buffers user events and delivers them to the dispatcher in
// batches, triggered by a size threshold or a flush deadline. Producers call
// Process from any goroutine; a single worker goroutine owns all batch state,
// so currentBatch and the deadline need no locking.
type BatchProcessor struct {
	queue      *queue
	dispatcher Dispatcher
	sink       NotificationSink
	factory    PayloadFactory
	metrics    *Metrics
	cfg        *config.Config

	// Owned exclusively by the worker goroutine.
	currentBatch []event.UserEvent
	deadline     time.Time

	mu      sync.Mutex
	started bool
	done    chan struct{}
	stop    chan struct{}
}

// NewBatchProcessor wires the processor up. sink may be nil when no one
// cares about dispatch notifications. Out-of-range config values are
// replaced with defaults.
func NewBatchProcessor(d Dispatcher, sink NotificationSink, f PayloadFactory, m *Metrics, cfg *config.Config) *BatchProcessor {
	cfg.Normalize()
	return &BatchProcessor{
		queue:      newQueue(cfg.QueueCapacity),
		dispatcher: d,
		sink:       sink,
		factory:    f,
		metrics:    m,
		cfg:        cfg,
	}
}

// Start spawns the worker. Calling Start on a running processor is a no-op.
// On a restart after Stop, the new worker does not touch any batch state
// until the previous worker has fully exited, and control signals left over
// from the previous lifecycle are cleared from the queue first.
func (p *BatchProcessor) Start() {
	p.mu.Lock()
	log := logger.Get()
	if p.started {
		p.mu.Unlock()
		log.Debug("batch processor already started")
		return
	}

	p.started = true
	prev := p.done
	done := make(chan struct{})
	stop := make(chan struct{})
	p.done = done
	p.stop = stop
	p.mu.Unlock()

	go func() {
		if prev != nil {
			// currentBatch and deadline belong to the previous worker
			// until this closes
			<-prev
		}
		if n := p.queue.purgeControls(); n > 0 {
			log.Warnw("events dropped while clearing stale control signals", "count", n)
		}

		p.mu.Lock()
		stopped := !p.started
		p.mu.Unlock()
		if stopped {
			// Stop arrived before the worker could spawn
			close(done)
			return
		}

		p.run(context.Background(), done, stop)
	}()

	log.Infow("batch processor started",
		"batch_size", p.cfg.BatchSize,
		"flush_interval_ms", p.cfg.FlushInterval.Milliseconds(),
		"queue_capacity", p.cfg.QueueCapacity,
	)
}

// Process hands an event to the pipeline. It never blocks and never fails
// the caller: when the processor is stopped, the worker is gone, or the
// queue is full, the event is dropped with a warning.
func (p *BatchProcessor) Process(ev event.UserEvent) {
	p.mu.Lock()
	started := p.started
	done := p.done
	p.mu.Unlock()

	log := logger.Get()
	if !started {
		p.metrics.Dropped.WithLabelValues("not_started").Inc()
		log.Warnw("event dropped, processor not started", "event_id", ev.EventID())
		return
	}
	select {
	case <-done:
		p.metrics.Dropped.WithLabelValues("worker_dead").Inc()
		log.Warnw("event dropped, worker no longer running", "event_id", ev.EventID())
		return
	default:
	}

	if !p.queue.offer(message{kind: messageEvent, event: ev}) {
		p.metrics.Dropped.WithLabelValues("queue_full").Inc()
		log.Warnw("event dropped, queue full",
			"event_id", ev.EventID(),
			"capacity", p.cfg.QueueCapacity,
		)
		return
	}

	p.metrics.Received.Inc()
	log.Debugw("event queued",
		"event_id", ev.EventID(),
		"project_id", ev.EventContext().ProjectID,
		"revision", ev.EventContext().Revision,
		"queue_depth", p.queue.depth(),
	)
}

// Flush asks the worker to dispatch whatever is currently batched. It
// returns before the flush necessarily ran. On a stopped processor there is
// nothing to flush and the signal is not queued.
func (p *BatchProcessor) Flush() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		logger.Get().Debug("flush ignored, processor not started")
		return
	}
	if !p.queue.offer(message{kind: messageFlush}) {
		logger.Get().Warn("flush signal dropped, queue full")
	}
}

// Stop requests shutdown and returns without waiting for the final drain.
// The worker dispatches everything already pulled into the accumulator, plus
// everything ahead of the shutdown signal in the queue, before exiting.
// Events arriving after Stop are dropped.
func (p *BatchProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.started = false

	// The shutdown signal rides the queue so events enqueued before Stop
	// are still consumed, in order, ahead of it. A full queue falls back
	// to the stop channel.
	if !p.queue.offer(message{kind: messageShutdown}) {
		close(p.stop)
	}
	logger.Get().Info("batch processor stop requested")
}

// StopAndWait requests shutdown like Stop, then waits up to timeout for the
// worker's final drain to complete. Returns false when the timeout elapsed
// first.
func (p *BatchProcessor) StopAndWait(timeout time.Duration) bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	p.Stop()
	if done == nil {
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		logger.Get().Warnw("timed out waiting for worker drain",
			"timeout_ms", timeout.Milliseconds())
		return false
	}
}

// Running reports whether the worker is alive and accepting events.
func (p *BatchProcessor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// run is the worker loop. It alternates between a deadline check and a
// bounded wait on the queue, and performs one final flush on the way out no
// matter how it exits.
func (p *BatchProcessor) run(ctx context.Context, done, stop chan struct{}) {
	log := logger.Get().With("component", "batch_worker")

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("worker terminated by panic", "panic", r)
		}
		// The final flush runs under its own recover: a dispatcher panic
		// here must not keep done from closing.
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("final flush panicked, batch lost", "panic", r)
					p.currentBatch = nil
				}
			}()
			p.flushBatch(ctx, "shutdown")
		}()
		close(done)
		log.Info("worker exited")
	}()

	p.deadline = time.Now().Add(p.cfg.FlushInterval)

	for {
		if time.Now().After(p.deadline) {
			if len(p.currentBatch) > 0 {
				log.Debugw("flush deadline exceeded", "batched", len(p.currentBatch))
			}
			p.flushBatch(ctx, "deadline")
			p.deadline = time.Now().Add(p.cfg.FlushInterval)
		}

		select {
		case msg := <-p.queue.ch:
			switch msg.kind {
			case messageShutdown:
				log.Info("shutdown signal received")
				if p.cfg.DrainOnStop {
					p.drain(ctx)
				}
				return
			case messageFlush:
				p.flushBatch(ctx, "explicit")
			default:
				p.addToBatch(ctx, msg.event)
			}
		case <-stop:
			// Only reachable when Stop could not enqueue its signal.
			log.Warn("stop forced with full queue")
			if p.cfg.DrainOnStop {
				p.drain(ctx)
			}
			return
		case <-time.After(pollInterval):
		}
	}
}

// addToBatch appends ev to the open batch, splitting first when the event
// belongs to a different configuration epoch, and flushing when the batch
// reaches the size threshold.
func (p *BatchProcessor) addToBatch(ctx context.Context, ev event.UserEvent) {
	if len(p.currentBatch) > 0 && shouldSplit(p.currentBatch[len(p.currentBatch)-1], ev) {
		logger.Get().Debugw("event context changed, splitting batch",
			"project_id", ev.EventContext().ProjectID,
			"revision", ev.EventContext().Revision,
		)
		p.flushBatch(ctx, "split")
	}
	if len(p.currentBatch) == 0 {
		// The deadline tracks time since the first event of this batch.
		p.deadline = time.Now().Add(p.cfg.FlushInterval)
	}

	p.currentBatch = append(p.currentBatch, ev)

	if len(p.currentBatch) >= p.cfg.BatchSize {
		p.flushBatch(ctx, "size")
	}
}

// shouldSplit forces a batch boundary when two adjacent events disagree on
// revision or project id. A batch is one wire payload tagged with a single
// revision and project; the remaining context fields are process-wide
// constants and do not participate.
func shouldSplit(last, next event.UserEvent) bool {
	a, b := last.EventContext(), next.EventContext()
	return a.Revision != b.Revision || a.ProjectID != b.ProjectID
}

// flushBatch finalizes the open batch and hands it to the dispatcher.
// Dispatch errors are logged and the batch is discarded either way; the
// sink is notified only when dispatch returned nil.
func (p *BatchProcessor) flushBatch(ctx context.Context, trigger string) {
	if len(p.currentBatch) == 0 {
		return
	}
	log := logger.Get().With("component", "batch_worker")

	le, err := p.factory.Build(p.currentBatch)
	if err != nil {
		log.Errorw("building batch payload failed, batch discarded",
			"trigger", trigger,
			"count", len(p.currentBatch),
			"error", err,
		)
		p.currentBatch = nil
		return
	}
	p.metrics.Flushes.WithLabelValues(trigger).Inc()

	if err := p.dispatcher.Dispatch(ctx, le); err != nil {
		p.metrics.DispatchFailures.Inc()
		log.Errorw("dispatch failed, batch discarded",
			"trigger", trigger,
			"count", le.Count,
			"error", err,
		)
	} else {
		if p.sink != nil {
			p.sink.Notify(LogEventDispatched, le)
		}
		log.Infow("batch dispatched", "trigger", trigger, "count", le.Count)
	}

	p.currentBatch = nil
}

// drain pulls everything still queued into the accumulator so the final
// flush loses nothing. Bounded by the queue capacity.
func (p *BatchProcessor) drain(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue.ch:
			if msg.kind == messageEvent {
				p.addToBatch(ctx, msg.event)
			}
		default:
			return
		}
	}
}
