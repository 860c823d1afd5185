package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

const JobRetentionPurge = "retention_purge"

// ErrAlreadyRunning is returned when a purge run is requested while a
// previous run is still in flight. Concurrent purge runs are not safe; the
// scheduler enforces at-most-one-in-flight.
var ErrAlreadyRunning = errors.New("jobs: run already in flight")

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

// Service runs compliance background work on a single worker goroutine with
// interval scheduling for the retention purge.
type Service struct {
	interval     time.Duration
	queue        chan job
	purgeRunning atomic.Bool
}

func New(retentionInterval time.Duration) *Service {
	return &Service{
		interval: retentionInterval,
		queue:    make(chan job, 32),
	}
}

func (s *Service) Start(ctx context.Context, purge func(context.Context) (any, error)) {
	go s.worker(ctx)
	if s.interval > 0 {
		go s.schedulePurge(ctx, purge)
	}
}

// RunPurgeNow executes a purge synchronously, refusing to overlap a run
// already in flight.
func (s *Service) RunPurgeNow(ctx context.Context, purge func(context.Context) (any, error)) (any, error) {
	if !s.purgeRunning.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.purgeRunning.Store(false)
	return s.runJob(ctx, job{Type: JobRetentionPurge, Run: purge})
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) schedulePurge(ctx context.Context, purge func(context.Context) (any, error)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunPurgeNow(ctx, purge); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				slog.Warn("scheduled purge failed", "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	start := time.Now()
	details, err := j.Run(ctx)
	if err != nil {
		slog.Warn("job completed with error", "jobType", j.Type, "durationMs", time.Since(start).Milliseconds(), "err", err)
		return details, err
	}
	slog.Info("job completed", "jobType", j.Type, "durationMs", time.Since(start).Milliseconds())
	return details, nil
}
