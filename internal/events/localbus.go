package events

import (
	"context"
	"log"
	"sync"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// Dispatcher routes an event to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType models.EventType, evt models.Event)
}

// LocalBus is a bounded in-process queue drained by worker goroutines into a
// Dispatcher. Events from one publisher are queued in publish order; with more
// than one worker they may be applied out of order, like broker deliveries.
type LocalBus struct {
	dispatcher Dispatcher
	queue      chan models.Event
	workers    int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewLocalBus creates a bus with the given buffer size and worker count.
func NewLocalBus(d Dispatcher, buffer, workers int) *LocalBus {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &LocalBus{
		dispatcher: d,
		queue:      make(chan models.Event, buffer),
		workers:    workers,
	}
}

// Start launches the workers. Handlers run with ctx.
func (b *LocalBus) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for evt := range b.queue {
				b.dispatcher.Dispatch(ctx, evt.Type(), evt)
			}
		}()
	}
	log.Printf("[LocalBus] Started %d workers", b.workers)
}

// Enqueue queues evt for the workers. It blocks while the buffer is full and
// returns false if the bus is stopped or ctx ends first.
func (b *LocalBus) Enqueue(ctx context.Context, evt models.Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return false
	}
	select {
	case b.queue <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop rejects new events and waits for queued ones to be dispatched.
func (b *LocalBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	log.Println("[LocalBus] Stopped")
}
