package ws

import (
	"context"
	"sync"
	"time"

	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

// Registry tracks which clients are in a live session and when they were
// last heard from. The sweeper expires clients that miss heartbeats, so a
// wedged connection cannot hold a story lock forever.
type Registry struct {
	mu       sync.Mutex
	lastSeen map[*Client]time.Time

	timeout  time.Duration
	interval time.Duration
	onExpire func(ctx context.Context, c *Client)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRegistry creates a session registry. onExpire is invoked outside the
// registry lock for every client whose last heartbeat is older than
// timeout.
func NewRegistry(interval, timeout time.Duration, onExpire func(ctx context.Context, c *Client)) *Registry {
	return &Registry{
		lastSeen: make(map[*Client]time.Time),
		timeout:  timeout,
		interval: interval,
		onExpire: onExpire,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Track registers the client with a fresh lastSeen timestamp
func (r *Registry) Track(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[c] = time.Now()
}

// Touch refreshes the client's lastSeen timestamp. Called on heartbeat
// and on every command, since any traffic proves liveness.
func (r *Registry) Touch(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lastSeen[c]; ok {
		r.lastSeen[c] = time.Now()
	}
}

// Forget removes the client from the registry
func (r *Registry) Forget(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSeen, c)
}

// Size returns the number of tracked clients
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastSeen)
}

// Start begins the background liveness sweep loop
func (r *Registry) Start(ctx context.Context) error {
	logging.Default().Info("session liveness sweeper starting",
		"interval", r.interval.String(),
		"timeout", r.timeout.String())

	go r.run(ctx)

	return nil
}

// Stop signals the sweeper to stop and waits for completion
func (r *Registry) Stop() {
	close(r.stopCh)
	<-r.doneCh
	logging.Default().Info("session liveness sweeper stopped")
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)

		case <-r.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("session liveness sweeper context cancelled")
			return
		}
	}
}

// Sweep expires every client whose last heartbeat is older than the
// timeout. Exported for tests.
func (r *Registry) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.timeout)

	r.mu.Lock()
	var expired []*Client
	for c, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			expired = append(expired, c)
			delete(r.lastSeen, c)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		logging.From(ctx).Info("session expired by liveness sweep",
			"tester_id", c.TesterID(),
			"release_id", c.ReleaseID())
		if r.onExpire != nil {
			r.onExpire(ctx, c)
		}
	}
}
