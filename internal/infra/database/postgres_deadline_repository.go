package database

import (
	"context"
	"database/sql"
	"fmt"

	"filing_compliance_bot/internal/domain/deadline"
)

// Custom errors specific to deadline repository
var ErrDeadlineNotFound = fmt.Errorf("deadline not found")

type PostgresDeadlineRepository struct {
	db *sql.DB
}

func NewPostgresDeadlineRepository(db *sql.DB) *PostgresDeadlineRepository {
	return &PostgresDeadlineRepository{db: db}
}

const deadlineColumns = `id, subject_id, obligation, period, due_date, completed,
       reminders_sent, last_notified_status, created_at, updated_at`

func scanDeadline(row interface{ Scan(...any) error }) (*deadline.Deadline, error) {
	d := deadline.Deadline{}
	err := row.Scan(
		&d.ID, &d.SubjectID, &d.Obligation, &d.Period, &d.DueDate, &d.Completed,
		&d.RemindersSent, &d.LastNotifiedStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert inserts the deadline or refreshes the due date of the existing row
// for the same (subject, obligation, period). The unique index backs the
// at-most-one-open-deadline-per-period invariant; completion only ever
// moves forward. The merged row state is scanned back into d.
func (r *PostgresDeadlineRepository) Upsert(ctx context.Context, d *deadline.Deadline) error {
	query := `INSERT INTO deadlines (subject_id, obligation, period, due_date, completed)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (subject_id, obligation, period)
               DO UPDATE SET due_date = EXCLUDED.due_date,
                             completed = deadlines.completed OR EXCLUDED.completed,
                             updated_at = NOW()
               RETURNING ` + deadlineColumns
	merged, err := scanDeadline(r.db.QueryRowContext(ctx, query,
		d.SubjectID, d.Obligation, d.Period, d.DueDate, d.Completed,
	))
	if err != nil {
		return fmt.Errorf("error upserting deadline: %w", err)
	}
	*d = *merged
	return nil
}

func (r *PostgresDeadlineRepository) GetByID(ctx context.Context, id int64) (*deadline.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE id = $1`
	d, err := scanDeadline(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeadlineNotFound
		}
		return nil, fmt.Errorf("error getting deadline by ID: %w", err)
	}
	return d, nil
}

func (r *PostgresDeadlineRepository) Get(ctx context.Context, subjectID int64, obligation deadline.ObligationType, period string) (*deadline.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines
               WHERE subject_id = $1 AND obligation = $2 AND period = $3`
	d, err := scanDeadline(r.db.QueryRowContext(ctx, query, subjectID, obligation, period))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeadlineNotFound
		}
		return nil, fmt.Errorf("error getting deadline: %w", err)
	}
	return d, nil
}

func (r *PostgresDeadlineRepository) listWhere(ctx context.Context, where string, args ...any) ([]*deadline.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines ` + where + ` ORDER BY due_date`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying deadlines: %w", err)
	}
	defer rows.Close()

	deadlines := make([]*deadline.Deadline, 0)
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning deadline row: %w", err)
		}
		deadlines = append(deadlines, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deadline rows: %w", err)
	}
	return deadlines, nil
}

func (r *PostgresDeadlineRepository) ListOpen(ctx context.Context) ([]*deadline.Deadline, error) {
	return r.listWhere(ctx, `WHERE NOT completed`)
}

func (r *PostgresDeadlineRepository) ListBySubject(ctx context.Context, subjectID int64) ([]*deadline.Deadline, error) {
	return r.listWhere(ctx, `WHERE subject_id = $1`, subjectID)
}

// MarkCompleted is idempotent: completing an already-completed deadline is
// a no-op.
func (r *PostgresDeadlineRepository) MarkCompleted(ctx context.Context, subjectID int64, obligation deadline.ObligationType, period string) error {
	query := `UPDATE deadlines SET completed = TRUE, updated_at = NOW()
               WHERE subject_id = $1 AND obligation = $2 AND period = $3`
	if _, err := r.db.ExecContext(ctx, query, subjectID, obligation, period); err != nil {
		return fmt.Errorf("error marking deadline completed: %w", err)
	}
	return nil
}

// RecordAlert bumps the reminder counter (monotonically increasing) and
// remembers the status the alert was sent for.
func (r *PostgresDeadlineRepository) RecordAlert(ctx context.Context, id int64, notifiedStatus deadline.Status) error {
	query := `UPDATE deadlines
               SET reminders_sent = reminders_sent + 1,
                   last_notified_status = $1,
                   updated_at = NOW()
               WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, string(notifiedStatus), id)
	if err != nil {
		return fmt.Errorf("error recording deadline alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDeadlineNotFound
	}
	return nil
}
