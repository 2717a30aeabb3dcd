package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var categories = []struct {
	name    string
	urgency string
}{
	{"water", "normal"},
	{"food", "high"},
	{"bathroom", "high"},
	{"help", "high"},
	{"emergency", "emergency"},
}

// Requester raises requests in random categories. Under contention only one
// active request per category can exist; the duplicate guard rejects the rest.
func Requester(ctx context.Context, pool *pgxpool.Pool, recipientID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		c := categories[rand.Intn(len(categories))]
		_, err := pool.Exec(ctx, `INSERT INTO requests (category, urgency, status, created_by)
                                   VALUES ($1,$2,'pending',$3)`, c.name, c.urgency, recipientID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // duplicate active, expected under contention
			} else {
				return fmt.Errorf("requester insert: %w", err)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Acceptor races to claim pending requests with the same conditional update
// the repository uses. Losing the race matches zero rows and is not an error.
func Acceptor(ctx context.Context, pool *pgxpool.Pool, responderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var id string
		err := pool.QueryRow(ctx, `SELECT id FROM requests WHERE status='pending' ORDER BY random() LIMIT 1`).Scan(&id)
		if err == nil {
			_, err = pool.Exec(ctx, `UPDATE requests
                                      SET status='accepted', accepted_by=$2, accepted_at=get_tx_timestamp()
                                      WHERE id=$1 AND status='pending'`, id, responderID)
			if err != nil {
				return fmt.Errorf("acceptor update: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("acceptor pick: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Completer closes accepted requests. Any actor may complete, not only the
// claimant, so it sometimes closes as the overseer.
func Completer(ctx context.Context, pool *pgxpool.Pool, responderID, overseerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		closer := responderID
		if rand.Intn(4) == 0 {
			closer = overseerID
		}
		_, err := pool.Exec(ctx, `UPDATE requests
                                   SET status='completed', completed_by=$1, completed_at=get_tx_timestamp()
                                   WHERE id = (SELECT id FROM requests WHERE status='accepted' ORDER BY random() LIMIT 1)
                                     AND status='accepted'`, closer)
		if err != nil {
			return fmt.Errorf("completer update: %w", err)
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// ShiftToggler flips a responder's shift flag and re-registers their notify
// address, exercising the presence upsert path under churn.
func ShiftToggler(ctx context.Context, pool *pgxpool.Pool, responderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		on := rand.Intn(2) == 0
		_, err := pool.Exec(ctx, `INSERT INTO responder_presence (responder_id, on_shift, last_updated)
                                   VALUES ($1,$2,get_tx_timestamp())
                                   ON CONFLICT (responder_id) DO UPDATE
                                   SET on_shift=EXCLUDED.on_shift, last_updated=get_tx_timestamp()`, responderID, on)
		if err != nil {
			return fmt.Errorf("shift toggle: %w", err)
		}
		if rand.Intn(3) == 0 {
			_, err = pool.Exec(ctx, `INSERT INTO responder_presence (responder_id, notify_address, last_updated)
                                      VALUES ($1,$2,get_tx_timestamp())
                                      ON CONFLICT (responder_id) DO UPDATE
                                      SET notify_address=EXCLUDED.notify_address, last_updated=get_tx_timestamp()`,
				responderID, fmt.Sprintf("tok-%s-%d", responderID[:8], rand.Intn(100)))
			if err != nil {
				return fmt.Errorf("address register: %w", err)
			}
		}
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
	}
}

// Escalator claims every pending emergency it can see, racing other viewers
// the way the auto-surfacing path does. At most one claim wins per request.
func Escalator(ctx context.Context, pool *pgxpool.Pool, responderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		rows, err := pool.Query(ctx, `SELECT id FROM requests WHERE status='pending' AND urgency='emergency'`)
		if err != nil {
			return fmt.Errorf("escalator scan: %w", err)
		}
		ids := make([]string, 0, 4)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				ids = append(ids, id)
			}
		}
		rows.Close()
		for _, id := range ids {
			if _, err := pool.Exec(ctx, `UPDATE requests
                                          SET status='accepted', accepted_by=$2, accepted_at=get_tx_timestamp()
                                          WHERE id=$1 AND status='pending'`, id, responderID); err != nil {
				return fmt.Errorf("escalator claim: %w", err)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// Mutator hammers the guard triggers with illegal transitions: reverting
// accepted rows, rewriting completed rows, deleting. Every attempt must fail.
func Mutator(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		// all three are expected to error; swallowing proves nothing leaked through
		_, _ = pool.Exec(ctx, `UPDATE requests SET status='pending', accepted_by=NULL, accepted_at=NULL
                                WHERE id = (SELECT id FROM requests WHERE status='accepted' LIMIT 1)`)
		_, _ = pool.Exec(ctx, `UPDATE requests SET completed_by=NULL
                                WHERE id = (SELECT id FROM requests WHERE status='completed' LIMIT 1)`)
		_, _ = pool.Exec(ctx, `DELETE FROM requests WHERE status='completed'`)
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}
