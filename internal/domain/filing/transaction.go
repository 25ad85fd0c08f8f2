package filing

import (
	"database/sql"
	"fmt"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
)

// Status represents the lifecycle state of a filing transaction.
type Status string

const (
	StatusQuoted     Status = "QUOTED"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED" // quoted transaction unused past its TTL
)

// transitions is the closed set of legal status moves. Everything moves
// forward except FAILED -> PROCESSING, the operator-triggered retry.
var transitions = map[Status][]Status{
	StatusQuoted:     {StatusPaid, StatusExpired},
	StatusPaid:       {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusProcessing},
}

// CanTransitionTo reports whether a move from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionName is the stable name of a status move, used in notification
// dedupe keys.
func TransitionName(target Status) string {
	return string(target)
}

// Transaction is one paid service request from quote to completion.
// QuotedAmount is immutable once the transaction is paid.
type Transaction struct {
	ID           string // uuid
	SubjectID    int64
	Obligation   deadline.ObligationType
	Period       string
	QuotedAmount int64 // minor currency units
	Urgent       bool
	Status       Status
	PaymentRef   sql.NullString // external payment provider reference
	ExternalRef  sql.NullString // fulfillment backend reference
	FailReason   sql.NullString
	Recipient    string // channel identity to notify about this transaction
	CreatedAt    time.Time
	CompletedAt  sql.NullTime
}

// AmountMismatchError is raised when a payment webhook carries an amount
// that differs from the quoted amount. The transition is rejected, never
// auto-corrected.
type AmountMismatchError struct {
	TransactionID string
	Quoted        int64
	Received      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %d does not match quoted amount %d for transaction %s",
		e.Received, e.Quoted, e.TransactionID)
}
