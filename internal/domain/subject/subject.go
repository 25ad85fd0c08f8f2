package subject

import (
	"database/sql"
	"time"
)

// Subject represents a regulated company tracked by the system.
// A subject is created on first reference and never deleted; its filing
// history only grows.
type Subject struct {
	ID                int64
	RegNumber         string         // company registration number, unique
	SenderID          sql.NullString // channel identity of the person acting for the company
	IncorporationDate sql.NullTime   // must be supplied explicitly, never derived from RegNumber
	History           []FilingRecord // completed obligation records, append-only
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FilingRecord is one completed filing in a subject's history.
type FilingRecord struct {
	ID          int64
	SubjectID   int64
	Obligation  string // deadline.ObligationType value
	Period      string // e.g. "2024"
	ExternalRef string // reference returned by the fulfillment backend
	FiledAt     time.Time
}

// HasFiled reports whether the history contains a completed filing for the
// given obligation and period.
func (s *Subject) HasFiled(obligation, period string) bool {
	for _, rec := range s.History {
		if rec.Obligation == obligation && rec.Period == period {
			return true
		}
	}
	return false
}

// CompletedCount returns the number of completed filings for an obligation
// type across all periods.
func (s *Subject) CompletedCount(obligation string) int {
	n := 0
	for _, rec := range s.History {
		if rec.Obligation == obligation {
			n++
		}
	}
	return n
}
