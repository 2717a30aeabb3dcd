package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("request: not found")
	// ErrDuplicateActive signals another request of the same category is
	// still pending or accepted.
	ErrDuplicateActive = errors.New("request: duplicate active request")
	// ErrAlreadyClaimed is returned to the loser of an accept race.
	ErrAlreadyClaimed = errors.New("request: already claimed")
	// ErrAlreadyCompleted is returned for any transition on a terminal row.
	ErrAlreadyCompleted = errors.New("request: already completed")
	// ErrNotAccepted rejects completion of a request nobody has claimed.
	ErrNotAccepted = errors.New("request: not accepted")
)

type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	GetByID(ctx context.Context, id string) (Request, error)
	ListSnapshot(ctx context.Context) ([]Request, error)
	ListHistory(ctx context.Context, actorID string) ([]Request, error)
	Accept(ctx context.Context, id, actorID string) (Request, error)
	Complete(ctx context.Context, id, actorID string) (Request, error)
	ActiveExists(ctx context.Context, category Category) (bool, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `id, category::text, urgency::text, status::text, created_by, created_at, accepted_by, accepted_at, completed_by, completed_at`

// Create inserts a pending request unless an active request of the same
// category already exists. The guard runs inside the insert statement and the
// partial unique index on active categories backs it up under concurrent
// creates, so two racing creators cannot both slip through.
func (r *PGRepository) Create(ctx context.Context, req Request) (Request, error) {
	const query = `
		INSERT INTO requests (id, category, urgency, status, created_by)
		SELECT COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2::request_category, $3::request_urgency, 'pending', $4
		WHERE NOT EXISTS (
			SELECT 1 FROM requests
			WHERE category = $2::request_category AND status IN ('pending','accepted')
		)
		RETURNING ` + requestColumns

	row := r.pool.QueryRow(ctx, query, req.ID, req.Category, req.Urgency, req.CreatedBy)
	created, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrDuplicateActive
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Request{}, ErrDuplicateActive
		}
		return Request{}, fmt.Errorf("request: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get by id: %w", err)
	}
	return req, nil
}

// ListSnapshot returns the full collection ordered by creation time
// descending, the shape the live feed pushes to subscribers.
func (r *PGRepository) ListSnapshot(ctx context.Context) ([]Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("request: list snapshot: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func (r *PGRepository) ListHistory(ctx context.Context, actorID string) ([]Request, error) {
	const query = `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE status = 'completed' AND accepted_by = $1
		ORDER BY completed_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("request: list history: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// Accept claims a pending request for actorID. The update is conditional on
// the stored status still being pending, so concurrent acceptors resolve to
// exactly one winner; the loser never overwrites accepted_by.
func (r *PGRepository) Accept(ctx context.Context, id, actorID string) (Request, error) {
	const query = `
		UPDATE requests
		SET status = 'accepted',
		    accepted_by = $2,
		    accepted_at = get_tx_timestamp()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns

	row := r.pool.QueryRow(ctx, query, id, actorID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, r.classifyConflict(ctx, id, StatusPending)
		}
		return Request{}, fmt.Errorf("request: accept: %w", err)
	}
	return req, nil
}

// Complete closes an accepted request. Any actor may close it, not only the
// claimant; an overseer closing a responder's request is legal.
func (r *PGRepository) Complete(ctx context.Context, id, actorID string) (Request, error) {
	const query = `
		UPDATE requests
		SET status = 'completed',
		    completed_by = $2,
		    completed_at = get_tx_timestamp()
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + requestColumns

	row := r.pool.QueryRow(ctx, query, id, actorID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, r.classifyConflict(ctx, id, StatusAccepted)
		}
		return Request{}, fmt.Errorf("request: complete: %w", err)
	}
	return req, nil
}

func (r *PGRepository) ActiveExists(ctx context.Context, category Category) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM requests
			WHERE category = $1::request_category AND status IN ('pending','accepted')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, category).Scan(&exists); err != nil {
		return false, fmt.Errorf("request: active exists: %w", err)
	}
	return exists, nil
}

// classifyConflict turns a zero-row conditional update into the sentinel the
// caller can act on, based on the status the row actually holds.
func (r *PGRepository) classifyConflict(ctx context.Context, id string, expected Status) error {
	var current Status
	err := r.pool.QueryRow(ctx, `SELECT status::text FROM requests WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("request: inspect status: %w", err)
	}

	switch current {
	case StatusCompleted:
		return ErrAlreadyCompleted
	case StatusAccepted:
		if expected == StatusPending {
			return ErrAlreadyClaimed
		}
	case StatusPending:
		if expected == StatusAccepted {
			return ErrNotAccepted
		}
	}
	return fmt.Errorf("request: unexpected status %s for %s", current, id)
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	list := make([]Request, 0, 16)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("request: scan row: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request: iterate rows: %w", err)
	}
	return list, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	return req, row.Scan(
		&req.ID,
		&req.Category,
		&req.Urgency,
		&req.Status,
		&req.CreatedBy,
		&req.CreatedAt,
		&req.AcceptedBy,
		&req.AcceptedAt,
		&req.CompletedBy,
		&req.CompletedAt,
	)
}
