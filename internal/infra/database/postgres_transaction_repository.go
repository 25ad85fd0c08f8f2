package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filing_compliance_bot/internal/domain/filing"
)

// Custom errors specific to transaction repository
var ErrTransactionNotFound = fmt.Errorf("filing transaction not found")
var ErrAlreadyInStatus = fmt.Errorf("transaction already holds the target status")
var ErrInvalidTransition = fmt.Errorf("illegal status transition")

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, subject_id, obligation, period, quoted_amount, urgent, status,
       payment_ref, external_ref, fail_reason, recipient, created_at, completed_at`

func scanTransaction(row interface{ Scan(...any) error }) (*filing.Transaction, error) {
	tx := filing.Transaction{}
	err := row.Scan(
		&tx.ID, &tx.SubjectID, &tx.Obligation, &tx.Period, &tx.QuotedAmount, &tx.Urgent, &tx.Status,
		&tx.PaymentRef, &tx.ExternalRef, &tx.FailReason, &tx.Recipient, &tx.CreatedAt, &tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *filing.Transaction) error {
	query := `INSERT INTO filing_transactions
               (id, subject_id, obligation, period, quoted_amount, urgent, status, recipient)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		tx.ID, tx.SubjectID, tx.Obligation, tx.Period, tx.QuotedAmount, tx.Urgent, tx.Status, tx.Recipient,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating filing transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*filing.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM filing_transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("error getting filing transaction: %w", err)
	}
	return tx, nil
}

// Transition applies one status move under a row lock so that concurrent
// webhooks for the same transaction id serialize and a duplicate webhook
// cannot double-apply.
func (r *PostgresTransactionRepository) Transition(ctx context.Context, req filing.TransitionRequest) (*filing.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition tx: %w", err)
	}
	defer dbTx.Rollback()

	query := `SELECT ` + transactionColumns + ` FROM filing_transactions WHERE id = $1 FOR UPDATE`
	current, err := scanTransaction(dbTx.QueryRowContext(ctx, query, req.TransactionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("error locking filing transaction: %w", err)
	}

	if current.Status == req.Target {
		return nil, ErrAlreadyInStatus
	}
	if !current.Status.CanTransitionTo(req.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, req.Target)
	}

	switch req.Target {
	case filing.StatusPaid:
		current.PaymentRef = sql.NullString{String: req.PaymentRef, Valid: req.PaymentRef != ""}
	case filing.StatusCompleted:
		current.ExternalRef = sql.NullString{String: req.ExternalRef, Valid: req.ExternalRef != ""}
		current.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	case filing.StatusFailed:
		current.FailReason = sql.NullString{String: req.FailReason, Valid: req.FailReason != ""}
	}
	current.Status = req.Target

	update := `UPDATE filing_transactions
               SET status = $1, payment_ref = $2, external_ref = $3, fail_reason = $4, completed_at = $5
               WHERE id = $6`
	if _, err := dbTx.ExecContext(ctx, update,
		current.Status, current.PaymentRef, current.ExternalRef, current.FailReason, current.CompletedAt, current.ID,
	); err != nil {
		return nil, fmt.Errorf("error updating filing transaction status: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return current, nil
}

// ExpireStale moves quoted transactions created before the cutoff to
// EXPIRED and returns the affected ids.
func (r *PostgresTransactionRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `UPDATE filing_transactions
               SET status = $1
               WHERE status = $2 AND created_at < $3
               RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, filing.StatusExpired, filing.StatusQuoted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error expiring stale quotes: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning expired quote id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired quote rows: %w", err)
	}
	return ids, nil
}
