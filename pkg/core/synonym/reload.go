package synonym

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// EntrySource supplies dictionary entries, typically from the database.
type EntrySource interface {
	LoadEntries(ctx context.Context) ([]Entry, error)
}

// Reload fetches entries from src and swaps them into r. An empty result keeps
// the current dictionary.
func Reload(ctx context.Context, r *Resolver, src EntrySource) error {
	entries, err := src.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("load synonym entries: %w", err)
	}
	if len(entries) == 0 {
		r.log.Warn().Msg("synonym source returned no entries, keeping current dictionary")
		return nil
	}
	r.Swap(NewDictionary(entries))
	return nil
}

// StartReloader schedules Reload on a cron spec (e.g. "*/15 * * * *"). Stop the
// returned cron to end the job.
func StartReloader(r *Resolver, src EntrySource, schedule string, timeout time.Duration) (*cron.Cron, error) {
	if schedule == "" {
		schedule = "*/15 * * * *"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := Reload(ctx, r, src); err != nil {
			r.log.Error().Err(err).Msg("synonym reload failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule synonym reload: %w", err)
	}

	c.Start()
	r.log.Info().Str("schedule", schedule).Msg("synonym reloader started")
	return c, nil
}
