package database

import (
	"context"
	"fmt"
	"time"

	"github.com/flowpbx/remotecc/internal/database/models"
)

// callEventRepo implements CallEventRepository.
type callEventRepo struct {
	db *DB
}

// NewCallEventRepository creates a new CallEventRepository.
func NewCallEventRepository(db *DB) CallEventRepository {
	return &callEventRepo{db: db}
}

const callEventColumns = `id, source, pbx_id, call_id, dialed_number, caller_id_number,
	 caller_id_name, caller_area_code, matched_state, matched_extension, created_at`

// Create appends an event as a single row. CreatedAt is stamped here when the
// caller left it zero and ID is taken from the insert.
func (r *callEventRepo) Create(ctx context.Context, ev *models.CallEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO call_events (source, pbx_id, call_id, dialed_number, caller_id_number,
		 caller_id_name, caller_area_code, matched_state, matched_extension, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Source, ev.PBXID, ev.CallID, ev.DialedNumber, ev.CallerIDNumber,
		ev.CallerIDName, ev.CallerAreaCode, ev.MatchedState, ev.MatchedExtension,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting call event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	ev.ID = id
	return nil
}

// List returns events for the filter's source, newest first.
func (r *callEventRepo) List(ctx context.Context, filter CallEventFilter) ([]models.CallEvent, error) {
	query := `SELECT ` + callEventColumns + ` FROM call_events WHERE source = ? ORDER BY id DESC`
	args := []any{filter.Source}
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing call events: %w", err)
	}
	defer rows.Close()

	events := []models.CallEvent{}
	for rows.Next() {
		var e models.CallEvent
		if err := rows.Scan(&e.ID, &e.Source, &e.PBXID, &e.CallID, &e.DialedNumber,
			&e.CallerIDNumber, &e.CallerIDName, &e.CallerAreaCode,
			&e.MatchedState, &e.MatchedExtension, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning call event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call event rows: %w", err)
	}
	return events, nil
}

// Count returns the number of logged events for a source.
func (r *callEventRepo) Count(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_events WHERE source = ?`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting call events: %w", err)
	}
	return count, nil
}
