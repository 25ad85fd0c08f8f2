package subject

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Subject
// entities. Implementations must load History on every read.
type Repository interface {
	Create(ctx context.Context, subj *Subject) error
	GetByID(ctx context.Context, id int64) (*Subject, error)
	GetByRegNumber(ctx context.Context, regNumber string) (*Subject, error)
	GetBySenderID(ctx context.Context, senderID string) (*Subject, error)
	Update(ctx context.Context, subj *Subject) error
	ListAll(ctx context.Context) ([]*Subject, error)

	// AppendFiling adds a completed filing to the subject's history.
	// History rows are never updated or removed.
	AppendFiling(ctx context.Context, rec *FilingRecord) error
}
