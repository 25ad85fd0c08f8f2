package deadline

import (
	"context"
)

// Repository defines persistence for Deadline rows maintained by the sweep.
type Repository interface {
	// Upsert inserts the deadline or refreshes the due date of the existing
	// row for the same (subject, obligation, period). Reminder counters and
	// notification tracking on the existing row are preserved.
	Upsert(ctx context.Context, d *Deadline) error

	GetByID(ctx context.Context, id int64) (*Deadline, error)
	Get(ctx context.Context, subjectID int64, obligation ObligationType, period string) (*Deadline, error)
	ListOpen(ctx context.Context) ([]*Deadline, error)
	ListBySubject(ctx context.Context, subjectID int64) ([]*Deadline, error)

	// MarkCompleted is idempotent: completing an already-completed deadline
	// is a no-op.
	MarkCompleted(ctx context.Context, subjectID int64, obligation ObligationType, period string) error

	// RecordAlert bumps the reminder counter and remembers the status the
	// alert was sent for, so a sweep never re-alerts on an unchanged status.
	RecordAlert(ctx context.Context, id int64, notifiedStatus Status) error
}
