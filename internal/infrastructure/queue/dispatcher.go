package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/core/domain"
	"github.com/customersms/customer-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrStopped is returned by InsertEvent once Stop has been called.
var ErrStopped = errors.New("audit dispatcher stopped")

// Dispatcher writes grant audit events in the background. Events are routed
// to a fixed set of workers by hashing the user id, so the events of one
// user reach the store in the order they were committed.
type Dispatcher struct {
	workers []chan *domain.GrantEvent
	store   ports.GrantAuditRepository
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, store ports.GrantAuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan *domain.GrantEvent, numWorkers),
		store:   store,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan *domain.GrantEvent, channelBuffer)
	}
	return d
}

var _ ports.GrantAuditRepository = (*Dispatcher)(nil)

// Start launches all worker goroutines. Writes use ctx, so cancelling it
// aborts in-flight inserts; call Stop to drain the queue instead.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// InsertEvent queues event for the worker responsible for its user. It
// blocks only while that worker's buffer is full.
func (d *Dispatcher) InsertEvent(ctx context.Context, event *domain.GrantEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.workers[d.shardIndex(event.UserID)] <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queues and waits until every queued event is written.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan *domain.GrantEvent) {
	defer d.wg.Done()
	for event := range ch {
		if err := d.store.InsertEvent(ctx, event); err != nil {
			d.log.Error().Err(err).
				Str("user_id", event.UserID).
				Str("action", string(event.Action)).
				Int("worker_id", id).
				Msg("grant audit write failed")
		}
	}
}
