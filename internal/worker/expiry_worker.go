package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"movie-ticket-booking/internal/dto/response"
	"movie-ticket-booking/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaseKey = "booking:expiry:lease"

// Sweeper reclaims stale unpaid bookings
type Sweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (usecase.SweepResult, error)
}

// LeaseClient is the part of the Redis client used for the sweep lease
type LeaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// Lease, when set, lets only one instance sweep per interval
	Lease LeaseClient
	// Owner identifies this instance in the lease value
	Owner string
	Clock func() time.Time
}

// ExpiryWorker periodically deletes unpaid bookings past their hold
type ExpiryWorker struct {
	sweeper Sweeper
	config  ExpiryWorkerConfig
	log     *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	runs         int64
	skipped      int64
	totalExpired int64
	totalFailed  int64
	lastRunAt    time.Time
	lastDuration time.Duration
	lastErr      error
}

func NewExpiryWorker(sweeper Sweeper, config ExpiryWorkerConfig, log *zap.Logger) *ExpiryWorker {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Owner == "" {
		host, _ := os.Hostname()
		config.Owner = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &ExpiryWorker{
		sweeper: sweeper,
		config:  config,
		log:     log.With(zap.String("worker", "expiry")),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the sweep loop. It returns immediately.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker", zap.Duration("interval", w.config.Interval))

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the worker and waits for an in-flight sweep to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep unless another instance holds the lease
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	if !w.acquireLease(ctx) {
		w.mu.Lock()
		w.skipped++
		w.mu.Unlock()
		return
	}

	start := w.config.Clock()
	result, err := w.sweeper.ExpireStale(ctx, start)
	elapsed := time.Since(start)

	w.mu.Lock()
	w.runs++
	w.totalExpired += int64(result.Expired)
	w.totalFailed += int64(result.Failed)
	w.lastRunAt = start
	w.lastDuration = elapsed
	w.lastErr = err
	w.mu.Unlock()

	switch {
	case err != nil:
		w.log.Error("Expiry sweep failed", zap.Error(err))
	case result.Expired > 0 || result.Failed > 0:
		w.log.Info("Expiry sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", elapsed),
		)
	default:
		w.log.Debug("Expiry sweep found nothing")
	}
}

// acquireLease holds the sweep for one interval. Redis errors fall through to
// sweeping, since every expiry is a conditional delete anyway.
func (w *ExpiryWorker) acquireLease(ctx context.Context) bool {
	if w.config.Lease == nil {
		return true
	}

	ok, err := w.config.Lease.SetNX(ctx, leaseKey, w.config.Owner, w.config.Interval).Result()
	if err != nil {
		w.log.Warn("Sweep lease unavailable, sweeping anyway", zap.Error(err))
		return true
	}
	if !ok {
		w.log.Debug("Sweep lease held by another instance")
	}
	return ok
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *response.SchedulerStatsResponse {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := &response.SchedulerStatsResponse{
		Running:   w.running,
		Runs:      w.runs,
		Skipped:   w.skipped,
		Expired:   w.totalExpired,
		Failed:    w.totalFailed,
		LastRunAt: w.lastRunAt,
	}
	if w.runs > 0 {
		stats.LastDuration = w.lastDuration.String()
	}
	if w.lastErr != nil {
		stats.LastError = w.lastErr.Error()
	}
	return stats
}
