// Package feed delivers live request snapshots to subscribers. It listens on
// the requests_changed channel the schema trigger fires for every insert or
// update, and re-queries the full collection on each wake-up, so consumers
// always see a complete, eventually-consistent snapshot rather than deltas.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"careflow/request"
)

// Channel is the Postgres NOTIFY channel the requests trigger fires on.
const Channel = "requests_changed"

// Snapshotter produces the full ordered collection on demand.
type Snapshotter interface {
	ListSnapshot(ctx context.Context) ([]request.Request, error)
}

type Subscriber struct {
	pool     *pgxpool.Pool
	source   Snapshotter
	debounce time.Duration
}

func NewSubscriber(pool *pgxpool.Pool, source Snapshotter) *Subscriber {
	return &Subscriber{
		pool:     pool,
		source:   source,
		debounce: 50 * time.Millisecond,
	}
}

func (s *Subscriber) WithDebounce(d time.Duration) *Subscriber {
	s.debounce = d
	return s
}

// Run pushes an initial snapshot, then one snapshot per burst of change
// notifications, until ctx is cancelled. The callback runs on the
// subscriber's goroutine; a slow callback delays the next snapshot but never
// loses one, because each wake-up re-reads current state.
func (s *Subscriber) Run(ctx context.Context, onSnapshot func([]request.Request)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("feed: acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("feed: listen: %w", err)
	}

	if err := s.push(ctx, onSnapshot); err != nil {
		return err
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("feed: wait for notification: %w", err)
		}
		s.drain(ctx, conn)

		if err := s.push(ctx, onSnapshot); err != nil {
			return err
		}
	}
}

// drain coalesces a burst of notifications into a single snapshot.
func (s *Subscriber) drain(ctx context.Context, conn *pgxpool.Conn) {
	deadline, cancel := context.WithTimeout(ctx, s.debounce)
	defer cancel()
	for {
		if _, err := conn.Conn().WaitForNotification(deadline); err != nil {
			return
		}
	}
}

func (s *Subscriber) push(ctx context.Context, onSnapshot func([]request.Request)) error {
	snap, err := s.source.ListSnapshot(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("feed: snapshot: %w", err)
	}
	onSnapshot(snap)
	return nil
}
