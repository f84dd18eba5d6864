package attribution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// VisitorStore is the retention side of the visitor repository.
type VisitorStore interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ForwardLogStore is the retention side of the forward log.
type ForwardLogStore interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// RunnerConfig carries the runner's schedule and retention windows.
type RunnerConfig struct {
	PollInterval        time.Duration
	TelemetryRetention  time.Duration
	ForwardLogRetention time.Duration
}

// Runner drives the attribution service on a fixed tick: poll for new
// sales, then purge records past retention.
type Runner struct {
	service    *Service
	visitors   VisitorStore
	forwardLog ForwardLogStore
	logger     *slog.Logger
	cfg        RunnerConfig

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(service *Service, visitors VisitorStore, forwardLog ForwardLogStore, logger *slog.Logger, cfg RunnerConfig) *Runner {
	return &Runner{
		service:    service,
		visitors:   visitors,
		forwardLog: forwardLog,
		logger:     logger.With("component", "attribution.runner"),
		cfg:        cfg,
	}
}

// Run starts the tick loop. Blocks until the context is cancelled.
// The first tick fires immediately so a restart does not wait a full
// interval before catching up on recent sales.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("runner already started")
	}
	r.started = true
	r.done = make(chan struct{})
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	defer close(r.done)

	r.logger.Info("attribution runner started", "poll_interval", r.cfg.PollInterval)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("attribution runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Shutdown gracefully stops the runner, letting an in-flight tick finish.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	r.logger.Info("attribution runner shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			r.logger.Info("attribution runner shutdown complete")
			return nil
		case <-ctx.Done():
			r.logger.Warn("attribution runner shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// tick runs one poll-and-purge cycle. Failures are logged, never fatal;
// the next tick retries from scratch.
func (r *Runner) tick(ctx context.Context) {
	start := time.Now()

	processed, err := r.service.Poll(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("sales poll failed", "error", err)
	} else {
		r.logger.Info("sales poll complete",
			"processed", processed,
			"duration_ms", float64(time.Since(start).Microseconds())/1000)
	}

	if purged, err := r.visitors.PurgeOlderThan(ctx, r.cfg.TelemetryRetention); err != nil {
		r.logger.Error("visitor purge failed", "error", err)
	} else if purged > 0 {
		r.logger.Info("visitors purged", "count", purged)
	}

	if purged, err := r.forwardLog.PurgeOlderThan(ctx, r.cfg.ForwardLogRetention); err != nil {
		r.logger.Error("forward log purge failed", "error", err)
	} else if purged > 0 {
		r.logger.Info("forward attempts purged", "count", purged)
	}
}
