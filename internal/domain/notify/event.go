package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TemplateKind selects the outbound message template for an event.
type TemplateKind string

const (
	TemplateQuote          TemplateKind = "QUOTE"
	TemplatePaymentReceipt TemplateKind = "PAYMENT_RECEIPT"
	TemplateProcessing     TemplateKind = "PROCESSING"
	TemplateCompleted      TemplateKind = "COMPLETED"
	TemplateFailed         TemplateKind = "FAILED"
	TemplateDeadlineAlert  TemplateKind = "DEADLINE_ALERT"
)

// Event is one outbound notification. The dedupe key guarantees
// at-most-once delivery per transition: for transaction moves it is
// "<transactionID>:<transitionName>", for deadline alerts
// "deadline:<id>:<status>".
type Event struct {
	ID            int64
	Channel       string
	Recipient     string
	Template      TemplateKind
	TransactionID sql.NullString
	DeadlineID    sql.NullInt64
	DedupeKey     string
	Body          string
	SentAt        time.Time
}

// TransactionDedupeKey builds the dedupe key for a transaction transition.
func TransactionDedupeKey(transactionID, transitionName string) string {
	return fmt.Sprintf("%s:%s", transactionID, transitionName)
}

// DeadlineDedupeKey builds the dedupe key for a deadline status alert.
func DeadlineDedupeKey(deadlineID int64, status string) string {
	return fmt.Sprintf("deadline:%d:%s", deadlineID, status)
}

// Repository records sent notifications and enforces dedupe-key uniqueness.
type Repository interface {
	// Record persists the event. Returns the repository's duplicate error
	// when the dedupe key has been seen before.
	Record(ctx context.Context, event *Event) error

	// Exists reports whether a notification with the dedupe key was sent.
	Exists(ctx context.Context, dedupeKey string) (bool, error)
}
