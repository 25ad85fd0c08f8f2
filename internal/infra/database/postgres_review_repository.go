package database

import (
	"context"
	"database/sql"
	"fmt"

	"filing_compliance_bot/internal/domain/review"
)

// Custom errors specific to review repository
var ErrReviewNotFound = fmt.Errorf("manual review not found")

type PostgresReviewRepository struct {
	db *sql.DB
}

func NewPostgresReviewRepository(db *sql.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

func (r *PostgresReviewRepository) Create(ctx context.Context, rev *review.ManualReview) error {
	query := `INSERT INTO manual_reviews (kind, transaction_id, detail)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, rev.Kind, rev.TransactionID, rev.Detail).
		Scan(&rev.ID, &rev.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating manual review: %w", err)
	}
	return nil
}

func (r *PostgresReviewRepository) ListOpen(ctx context.Context) ([]*review.ManualReview, error) {
	query := `SELECT id, kind, transaction_id, detail, resolved, created_at
               FROM manual_reviews WHERE NOT resolved ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying manual reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*review.ManualReview, 0)
	for rows.Next() {
		rev := review.ManualReview{}
		if err := rows.Scan(&rev.ID, &rev.Kind, &rev.TransactionID, &rev.Detail, &rev.Resolved, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning manual review row: %w", err)
		}
		reviews = append(reviews, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manual review rows: %w", err)
	}
	return reviews, nil
}

func (r *PostgresReviewRepository) Resolve(ctx context.Context, id int64) error {
	query := `UPDATE manual_reviews SET resolved = TRUE WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error resolving manual review: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReviewNotFound
	}
	return nil
}
