package filing

import (
	"context"
	"time"
)

// TransitionRequest carries the inputs for one status move. Only the field
// relevant to the target status is consulted.
type TransitionRequest struct {
	TransactionID string
	Target        Status
	PaymentRef    string // for PAID
	ExternalRef   string // for COMPLETED
	FailReason    string // for FAILED
}

// Repository defines persistence for filing transactions.
//
// Transition must serialize concurrent moves on the same transaction id
// (row-level lock or equivalent) so a duplicate payment webhook cannot
// double-apply a move.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// Transition atomically applies the status move. It returns
	// ErrAlreadyInStatus when the transaction already holds the target
	// status (replay), and ErrInvalidTransition when the move is illegal
	// from the current status.
	Transition(ctx context.Context, req TransitionRequest) (*Transaction, error)

	// ExpireStale moves QUOTED transactions created before the cutoff to
	// EXPIRED and returns the affected ids.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
