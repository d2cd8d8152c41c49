package inventory

import (
	"context"
	"log"
	"time"
)

// Source releases every reservation lapsed at the given instant and reports
// how many went. *Reservations is the pgx implementation.
type Source interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically releases expired reservations, freeing their held
// quantity for new orders. The sweep is the only actor allowed to release a
// hold purely because of time.
type Sweeper struct {
	Reservations Source
	Interval     time.Duration
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			n, err := s.Reservations.SweepExpired(ctx, now)
			if err != nil {
				log.Printf("reservation sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("released %d expired reservations", n)
			}
		}
	}
}
