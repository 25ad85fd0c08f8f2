package deadline

import (
	"database/sql"
	"time"
)

// ObligationType identifies a category of recurring regulatory filing.
type ObligationType string

const (
	ObligationAnnualReturn        ObligationType = "ANNUAL_RETURN"
	ObligationBeneficialOwnership ObligationType = "BENEFICIAL_OWNERSHIP"
	ObligationDirectorAmendment   ObligationType = "DIRECTOR_AMENDMENT"
	ObligationFinancialStatements ObligationType = "FINANCIAL_STATEMENTS"
)

// Status represents the state of one obligation instance.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDueSoon   Status = "DUE_SOON"
	StatusOverdue   Status = "OVERDUE"
	StatusCompleted Status = "COMPLETED"
)

// dueSoonWindowDays is the number of days before the due date at which a
// pending deadline becomes DUE_SOON.
const dueSoonWindowDays = 14

// Deadline is one obligation instance for a subject. At most one
// non-completed deadline exists per (subject, obligation, period).
type Deadline struct {
	ID                 int64
	SubjectID          int64
	Obligation         ObligationType
	Period             string // e.g. "2024"
	DueDate            time.Time
	Completed          bool
	RemindersSent      int            // monotonically increasing
	LastNotifiedStatus sql.NullString // last status an alert was sent for
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusAt computes the deadline status as a pure function of the due date,
// the current time and the completion flag. It is recomputed on every read
// rather than stored.
func StatusAt(due, now time.Time, completed bool) Status {
	if completed {
		return StatusCompleted
	}
	daysLeft := daysBetween(now, due)
	switch {
	case daysLeft < 0:
		return StatusOverdue
	case daysLeft <= dueSoonWindowDays:
		return StatusDueSoon
	default:
		return StatusPending
	}
}

// Status returns the deadline's status at the given time.
func (d *Deadline) Status(now time.Time) Status {
	return StatusAt(d.DueDate, now, d.Completed)
}

// daysBetween returns whole calendar days from a to b, negative when b is
// before a. Both are truncated to their dates so that time-of-day does not
// shift the boundary.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
