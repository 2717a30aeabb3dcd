package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the responder has no presence record yet.
var ErrNotFound = errors.New("presence: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const presenceColumns = `responder_id, on_shift, notify_address, last_updated`

// SetShift upserts the responder's shift flag, leaving the notify address
// untouched.
func (r *Repository) SetShift(ctx context.Context, responderID string, onShift bool) (Record, error) {
	const query = `
		INSERT INTO responder_presence (responder_id, on_shift, last_updated)
		VALUES ($1, $2, get_tx_timestamp())
		ON CONFLICT (responder_id) DO UPDATE
		SET on_shift = EXCLUDED.on_shift,
		    last_updated = get_tx_timestamp()
		RETURNING ` + presenceColumns

	row := r.pool.QueryRow(ctx, query, responderID, onShift)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("presence: set shift: %w", err)
	}
	return rec, nil
}

// RegisterAddress upserts the responder's notification address, leaving the
// shift flag untouched.
func (r *Repository) RegisterAddress(ctx context.Context, responderID, address string) (Record, error) {
	const query = `
		INSERT INTO responder_presence (responder_id, notify_address, last_updated)
		VALUES ($1, $2, get_tx_timestamp())
		ON CONFLICT (responder_id) DO UPDATE
		SET notify_address = EXCLUDED.notify_address,
		    last_updated = get_tx_timestamp()
		RETURNING ` + presenceColumns

	row := r.pool.QueryRow(ctx, query, responderID, address)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("presence: register address: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetByID(ctx context.Context, responderID string) (Record, error) {
	const query = `SELECT ` + presenceColumns + ` FROM responder_presence WHERE responder_id = $1`

	row := r.pool.QueryRow(ctx, query, responderID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("presence: get by id: %w", err)
	}
	return rec, nil
}

// List returns every presence record, the aggregate view the routing policy
// and the dispatcher read.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	const query = `SELECT ` + presenceColumns + ` FROM responder_presence ORDER BY responder_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("presence: list: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("presence: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence: iterate records: %w", err)
	}
	return records, nil
}

// AnyOnShift reports whether at least one responder is currently on shift.
func (r *Repository) AnyOnShift(ctx context.Context) (bool, error) {
	var any bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM responder_presence WHERE on_shift)`).Scan(&any); err != nil {
		return false, fmt.Errorf("presence: any on shift: %w", err)
	}
	return any, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	return rec, row.Scan(
		&rec.ResponderID,
		&rec.OnShift,
		&rec.NotifyAddress,
		&rec.LastUpdated,
	)
}
