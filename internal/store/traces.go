// ABOUTME: Execution trace persistence forming a forest via parent references
// ABOUTME: Parent references are validated at creation and immutable afterwards

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTrace appends one execution trace. A supplied parent must already
// exist (ErrParentNotFound otherwise) and can never be changed later, which
// is what keeps the structure a forest: a trace cannot gain an ancestor after
// the fact, so it can never become its own.
func (s *SQLiteStore) CreateTrace(ctx context.Context, trace *Trace) error {
	if trace.ID == "" {
		return fmt.Errorf("%w: trace id is required", ErrValidation)
	}
	if trace.ParentTraceID == trace.ID {
		return fmt.Errorf("trace %q: %w", trace.ID, ErrCycleDetected)
	}

	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now().UTC()
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if trace.ParentTraceID != "" {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM traces WHERE id = ?`, trace.ParentTraceID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("trace %q: %w", trace.ParentTraceID, ErrParentNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking parent trace: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces (id, parent_trace_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`,
		trace.ID,
		nullString(trace.ParentTraceID),
		trace.Payload,
		formatTime(trace.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: trace %q", ErrDuplicate, trace.ID)
		}
		return fmt.Errorf("inserting trace: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace: %w", err)
	}

	s.logger.Debug("created trace", "id", trace.ID, "parent", trace.ParentTraceID)
	return nil
}

func scanTrace(row interface{ Scan(...any) error }) (*Trace, error) {
	var t Trace
	var parent sql.NullString
	var createdAtStr string

	err := row.Scan(&t.ID, &parent, &t.Payload, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}

	if parent.Valid {
		t.ParentTraceID = parent.String
	}
	t.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &t, nil
}

// GetTrace retrieves a trace by ID.
// Returns ErrNotFound if the trace doesn't exist.
func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (*Trace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_trace_id, payload, created_at FROM traces WHERE id = ?
	`, id)
	return scanTrace(row)
}

// ListChildren returns the direct children of a trace in creation order.
func (s *SQLiteStore) ListChildren(ctx context.Context, traceID string) ([]*Trace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_trace_id, payload, created_at
		FROM traces
		WHERE parent_trace_id = ?
		ORDER BY created_at ASC, id ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("querying trace children: %w", err)
	}
	defer rows.Close()

	var children []*Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, t)
	}
	return children, rows.Err()
}
