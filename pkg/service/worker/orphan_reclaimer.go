package worker

import (
	"context"
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

// OrphanReclaimer manages background reclamation of executions left
// in-progress by crashed or vanished testers. It deletes any in-progress
// execution whose StartedAt is older than the threshold, returning the
// story to the assignable pool.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - The liveness sweeper handles connected-but-silent testers; this worker
//   is the safety net for executions that outlive their session entirely
type OrphanReclaimer struct {
	repo      interfaces.Repository
	interval  time.Duration
	threshold time.Duration
	onReclaim func(ctx context.Context)
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type ReclaimerOption func(*OrphanReclaimer)

// WithReclaimHook registers a callback invoked after a sweep that reclaimed
// at least one execution, so connected dashboards can be refreshed.
func WithReclaimHook(fn func(ctx context.Context)) ReclaimerOption {
	return func(w *OrphanReclaimer) {
		w.onReclaim = fn
	}
}

// NewOrphanReclaimer creates a new worker that sweeps stale in-progress
// executions every interval
func NewOrphanReclaimer(repo interfaces.Repository, interval, threshold time.Duration, opts ...ReclaimerOption) *OrphanReclaimer {
	w := &OrphanReclaimer{
		repo:      repo,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background reclamation loop
// - Initial sweep and periodic sweeps both run in a background goroutine
// - Does not block server startup
func (w *OrphanReclaimer) Start(ctx context.Context) error {
	logging.Default().Info("orphan reclaimer starting",
		"interval", w.interval.String(),
		"threshold", w.threshold.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *OrphanReclaimer) Stop() {
	logging.Default().Info("orphan reclaimer stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("orphan reclaimer stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *OrphanReclaimer) run(ctx context.Context) {
	defer close(w.doneCh)

	// Startup sweep reclaims executions orphaned while the server was down
	if err := w.Sweep(ctx); err != nil {
		logging.Default().Error("initial orphan sweep failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("orphan sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("orphan reclaimer received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("orphan reclaimer context cancelled")
			return
		}
	}
}

// Sweep performs a single reclamation cycle. Exported so the CLI can run
// one-shot sweeps.
func (w *OrphanReclaimer) Sweep(ctx context.Context) error {
	startTime := time.Now()
	cutoff := startTime.Add(-w.threshold)

	reclaimed, err := w.repo.Execution().DeleteStaleInProgress(ctx, cutoff)
	if err != nil {
		return err
	}

	if len(reclaimed) > 0 {
		logging.Default().Info("orphaned executions reclaimed",
			"count", len(reclaimed),
			"cutoff", cutoff.Format(time.RFC3339),
			"duration", time.Since(startTime).String())

		if w.onReclaim != nil {
			w.onReclaim(ctx)
		}
	}

	return nil
}
