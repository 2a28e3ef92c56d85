package janitor

import (
	"context"
	"log"
	"time"
)

type Store interface {
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor periodically deletes reservations that ended longer than
// Retention ago. A zero Retention disables the sweep entirely.
type Janitor struct {
	Store     Store
	Retention time.Duration
	Interval  time.Duration

	Now func() time.Time
}

func (j *Janitor) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *Janitor) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}

	t := time.NewTicker(j.Interval)
	defer t.Stop()

	// kick immediately
	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := j.now().Add(-j.Retention)
	n, err := j.Store.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: purge failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("janitor: purged %d reservations ended before %s", n, cutoff.Format(time.RFC3339))
	}
}
