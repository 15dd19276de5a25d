// Package cleanup runs the periodic purges of stale refresh-token records.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/echofyteam/echofy-auth/internal/logging"
)

// Store is the subset of the refresh-token repository the purges need.
type Store interface {
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	DeleteAllRevoked(ctx context.Context) (int64, error)
}

type Config struct {
	ExpiredInterval time.Duration
	RevokedInterval time.Duration

	// JobTimeout bounds a single purge run.
	JobTimeout time.Duration

	// RunOnStart runs both purges once before the first tick.
	RunOnStart bool
}

// Scheduler owns two independent ticker loops, one per purge job.
// The jobs share nothing but the store.
type Scheduler struct {
	store  Store
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

func NewScheduler(store Store, cfg Config, logger logging.Logger) *Scheduler {
	if cfg.ExpiredInterval <= 0 {
		cfg.ExpiredInterval = 24 * time.Hour
	}
	if cfg.RevokedInterval <= 0 {
		cfg.RevokedInterval = 24 * time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Scheduler{
		store:  store,
		cfg:    cfg,
		logger: logger.With("module", "cleanup"),
		now:    time.Now,
	}
}

// PurgeExpired deletes every record whose expiry is before now.
func (s *Scheduler) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	n, err := s.store.DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "purge expired tokens failed", "error", err)
		return 0, err
	}
	s.logger.Info(ctx, "purged expired tokens", "deleted", n)
	return n, nil
}

// PurgeRevoked deletes every revoked record.
func (s *Scheduler) PurgeRevoked(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	n, err := s.store.DeleteAllRevoked(ctx)
	if err != nil {
		s.logger.Error(ctx, "purge revoked tokens failed", "error", err)
		return 0, err
	}
	s.logger.Info(ctx, "purged revoked tokens", "deleted", n)
	return n, nil
}

// Run blocks until ctx is cancelled and both loops have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.loop(ctx, "purge-expired", s.cfg.ExpiredInterval, s.PurgeExpired)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, "purge-revoked", s.cfg.RevokedInterval, s.PurgeRevoked)
	}()

	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) (int64, error)) {
	s.logger.Info(ctx, "cleanup job started", "job", name, "interval", interval.String())

	if s.cfg.RunOnStart {
		_, _ = job(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// errors are logged by the job; the next tick retries
			_, _ = job(ctx)

		case <-ctx.Done():
			s.logger.Info(context.Background(), "cleanup job stopped", "job", name)
			return
		}
	}
}
