package review

import (
	"context"
	"time"
)

// Kind classifies why a record landed in the operator queue.
type Kind string

const (
	KindAmountMismatch     Kind = "AMOUNT_MISMATCH"
	KindFulfillmentFailure Kind = "FULFILLMENT_FAILURE"
)

// ManualReview is one item awaiting operator attention. Amount mismatches
// and fulfillment failures are never surfaced to the end user directly;
// they are escalated here instead.
type ManualReview struct {
	ID            int64
	Kind          Kind
	TransactionID string
	Detail        string
	Resolved      bool
	CreatedAt     time.Time
}

// Repository defines persistence for the operator review queue.
type Repository interface {
	Create(ctx context.Context, r *ManualReview) error
	ListOpen(ctx context.Context) ([]*ManualReview, error)
	Resolve(ctx context.Context, id int64) error
}
