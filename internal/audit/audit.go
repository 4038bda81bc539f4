// Package audit provides a fire-and-forget sink for admin-action audit
// entries. Writes are decoupled from the request path through a buffered
// channel and a single background worker, so a slow or failing audit store
// never delays or fails the action being audited.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/store"
)

const defaultBuffer = 256

// Recorder accepts audit entries and persists them asynchronously.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger

	entries chan model.AuditEntry
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates a Recorder with the given channel buffer (0 uses the
// default) and starts its worker.
func NewRecorder(st *store.Store, logger *slog.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	r := &Recorder{
		store:   st,
		logger:  logger,
		entries: make(chan model.AuditEntry, buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for entry := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), store.DefaultTimeout)
		if err := r.store.InsertAudit(ctx, &entry); err != nil {
			r.logger.Warn("audit write failed",
				"action", entry.Action,
				"actor_id", entry.ActorID,
				"error", err)
		}
		cancel()
	}
}

// Record enqueues an entry without blocking. If the buffer is full the
// entry is dropped with a warning; audit is best-effort and must never
// apply backpressure to the request path.
func (r *Recorder) Record(entry model.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("audit buffer full, dropping entry",
			"action", entry.Action,
			"actor_id", entry.ActorID)
	}
}

// Stop drains buffered entries and shuts the worker down. It returns early
// if ctx expires before the drain completes.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
