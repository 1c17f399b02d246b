package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Sweeper is implemented by backends that can bulk-remove expired entries.
// Redis handles expiry natively and does not need sweeping.
type Sweeper interface {
	Sweep(ctx context.Context) (removed int64, err error)
}

// Janitor periodically sweeps expired entries from a backend.
type Janitor struct {
	scheduler gocron.Scheduler
	logger    zerolog.Logger
}

// StartJanitor schedules a recurring sweep of the given backend. The caller
// owns the returned Janitor and must Stop it on shutdown.
func StartJanitor(sweeper Sweeper, interval time.Duration, logger zerolog.Logger) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create cache janitor scheduler: %w", err)
	}

	log := logger.With().Str("component", "cache-janitor").Logger()

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			removed, err := sweeper.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("cache sweep failed")
				return
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("swept expired cache entries")
			}
		}),
		gocron.WithName("cache-sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweep: %w", err)
	}

	scheduler.Start()
	return &Janitor{scheduler: scheduler, logger: log}, nil
}

// Stop shuts the janitor down.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}
