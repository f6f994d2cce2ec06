package settingsgateway

import (
	"context"
	"strings"
	"sync"
)

// PushResult is the outcome of one Push: the fetched row (when Found), and
// whether this caller was the primary waiter for the physical fetch. Exactly
// one waiter per physical fetch is primary; the gateway uses it to notify a
// sync exactly once no matter how many callers collapsed onto the fetch.
type PushResult struct {
	Row     Row
	Found   bool
	Primary bool
}

type pendingFetch struct {
	id      string
	done    chan struct{}
	waiters int
	row     Row
	found   bool
	err     error

	// primaryTaken marks that a waiter has claimed this fetch's sync
	// notification; guarded by the handler mutex.
	primaryTaken bool
}

// RequestHandler minimizes and deduplicates reads against Provider.GetAll for
// one table. Concurrent pushes for the same id share a single storage call;
// pushes for distinct ids accumulated before a flush are served by one bulk
// GetAll round trip. No id is ever fetched from storage more than once
// concurrently.
type RequestHandler struct {
	table    string
	provider Provider

	mu          sync.Mutex
	pending     map[string]*pendingFetch
	queue       []*pendingFetch
	dispatching bool
}

func newRequestHandler(table string, provider Provider) *RequestHandler {
	return &RequestHandler{
		table:    table,
		provider: provider,
		pending:  map[string]*pendingFetch{},
	}
}

// Push requests the row for id. If a fetch for id is already queued or in
// flight the caller joins it; otherwise the id is added to the batch that
// will be dispatched next. Every waiter of a failed batch receives the same
// error; nothing is retried.
func (h *RequestHandler) Push(ctx context.Context, id string) (PushResult, error) {
	if h == nil || strings.TrimSpace(id) == "" {
		return PushResult{}, ErrInvalidInput
	}

	h.mu.Lock()
	if h.provider == nil {
		h.mu.Unlock()
		return PushResult{}, ErrNoProvider
	}
	fetch, joined := h.pending[id]
	if !joined {
		fetch = &pendingFetch{id: id, done: make(chan struct{})}
		h.pending[id] = fetch
		h.queue = append(h.queue, fetch)
		if !h.dispatching {
			h.dispatching = true
			go h.dispatch()
		}
	}
	fetch.waiters++
	h.mu.Unlock()

	select {
	case <-fetch.done:
	case <-ctx.Done():
		return PushResult{}, ctx.Err()
	}
	if fetch.err != nil {
		return PushResult{}, fetch.err
	}
	// Primacy is claimed at consumption so a canceled waiter never strands
	// a completed fetch without a primary; the first survivor takes it.
	h.mu.Lock()
	primary := !fetch.primaryTaken
	fetch.primaryTaken = true
	h.mu.Unlock()
	return PushResult{
		Row:     fetch.row.Clone(),
		Found:   fetch.found,
		Primary: primary,
	}, nil
}

// Pending reports how many ids are currently queued or in flight.
func (h *RequestHandler) Pending() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// dispatch drains accumulated batches one bulk fetch at a time. Pushes that
// arrive while a batch is in flight accumulate the next one.
func (h *RequestHandler) dispatch() {
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.dispatching = false
			h.mu.Unlock()
			return
		}
		batch := h.queue
		h.queue = nil
		provider := h.provider
		h.mu.Unlock()

		ids := make([]string, len(batch))
		for i, fetch := range batch {
			ids[i] = fetch.id
		}
		// The batch outlives any single waiter's context.
		rows, err := provider.GetAll(context.Background(), h.table, ids)
		byID := make(map[string]Row, len(rows))
		if err == nil {
			for _, row := range rows {
				byID[row.ID] = row
			}
		}

		h.mu.Lock()
		for _, fetch := range batch {
			if err != nil {
				fetch.err = err
			} else if row, ok := byID[fetch.id]; ok {
				fetch.row = row
				fetch.found = true
			}
			delete(h.pending, fetch.id)
			close(fetch.done)
		}
		h.mu.Unlock()
	}
}
