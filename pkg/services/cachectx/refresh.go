package cachectx

import (
	"context"
	"time"
)

// Refresher extends the TTL of a cached content on its own schedule.
// It only knows the cache name; failures are logged and the job goes on.
type Refresher struct {
	up    Updater
	name  string
	ttl   time.Duration
	every time.Duration
}

// NewRefresher ...
func NewRefresher(up Updater, name string, ttl, every time.Duration) *Refresher {
	if every <= 0 {
		every = ttl / 2
	}
	return &Refresher{up: up, name: name, ttl: ttl, every: every}
}

// Run blocks until ctx is done
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.name) == 0 || r.every <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	logger().Infow("cache refresher started", "name", r.name, "every", r.every)
	for {
		select {
		case <-ctx.Done():
			logger().Info("cache refresher stopped")
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.up.UpdateCache(ctx, r.name, r.ttl); err != nil {
		logger().Infow("refresh cache ttl fail", "name", r.name, "err", err)
		return
	}
	logger().Debugw("refreshed cache ttl", "name", r.name, "ttl", r.ttl)
}
