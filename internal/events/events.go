package events

import (
	"context"
	"sync"
	"time"

	"agora/internal/models"

	"go.uber.org/zap"
)

// Handler consumes domain events delivered by the bus.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event models.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event models.Event) error
}

func (f HandlerFunc) Name() string { return f.ID }

func (f HandlerFunc) Handle(ctx context.Context, event models.Event) error {
	return f.Func(ctx, event)
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published  int64 `json:"published"`
	Dropped    int64 `json:"dropped"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	QueueDepth int   `json:"queue_depth"`
}

// Bus is an in-process, asynchronous event bus. Publish never blocks
// the caller: when the queue is full the event is dropped and logged,
// honoring the fire-and-forget contract of domain event emission.
type Bus struct {
	queue    chan models.Event
	handlers []Handler
	logger   *zap.Logger
	workers  int

	mu        sync.RWMutex
	published int64
	dropped   int64
	processed int64
	failed    int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBus creates a bus with the given queue size and worker count.
func NewBus(logger *zap.Logger, bufferSize, workers int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if workers <= 0 {
		workers = 4
	}
	return &Bus{
		queue:   make(chan models.Event, bufferSize),
		logger:  logger,
		workers: workers,
	}
}

// Subscribe registers a handler. Must be called before Start.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Start launches the worker goroutines.
func (b *Bus) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}
	b.logger.Info("event bus started",
		zap.Int("workers", b.workers),
		zap.Int("buffer", cap(b.queue)),
	)
}

// Stop drains in-flight work and shuts the workers down. Events still
// queued when the timeout expires are lost; this is acceptable for a
// best-effort sink.
func (b *Bus) Stop(timeout time.Duration) {
	if b.cancel != nil {
		b.cancel()
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("event bus stop timed out", zap.Int("queued", len(b.queue)))
	}
}

// Publish enqueues the event without blocking. It reports whether the
// event was accepted; a full queue drops the event.
func (b *Bus) Publish(event models.Event) bool {
	select {
	case b.queue <- event:
		b.count(&b.published)
		return true
	default:
		b.count(&b.dropped)
		b.logger.Warn("event queue full, dropping event",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID),
		)
		return false
	}
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.queue:
			b.dispatch(ctx, event)
		case <-ctx.Done():
			// drain whatever is already queued
			for {
				select {
				case event := <-b.queue:
					b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event models.Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.count(&b.failed)
			b.logger.Error("event handler failed",
				zap.String("handler", h.Name()),
				zap.String("type", event.Type),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
	}
	b.count(&b.processed)
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Published:  b.published,
		Dropped:    b.dropped,
		Processed:  b.processed,
		Failed:     b.failed,
		QueueDepth: len(b.queue),
	}
}

func (b *Bus) count(field *int64) {
	b.mu.Lock()
	*field++
	b.mu.Unlock()
}
