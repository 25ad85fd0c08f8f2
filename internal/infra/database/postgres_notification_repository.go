package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"filing_compliance_bot/internal/domain/notify"
)

// Custom errors specific to notification repository
var ErrDuplicateNotification = fmt.Errorf("notification with this dedupe key already sent")

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// Record persists the sent notification. The unique index on dedupe_key is
// the hard at-most-once guarantee under concurrent sends.
func (r *PostgresNotificationRepository) Record(ctx context.Context, event *notify.Event) error {
	query := `INSERT INTO notification_events
               (channel, recipient, template, transaction_id, deadline_id, dedupe_key, body, sent_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		event.Channel, event.Recipient, event.Template, event.TransactionID,
		event.DeadlineID, event.DedupeKey, event.Body, event.SentAt,
	).Scan(&event.ID)
	if err != nil {
		if strings.Contains(err.Error(), "notification_events_dedupe_key_key") {
			return ErrDuplicateNotification
		}
		return fmt.Errorf("error recording notification event: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) Exists(ctx context.Context, dedupeKey string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notification_events WHERE dedupe_key = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, dedupeKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking notification dedupe key: %w", err)
	}
	return exists, nil
}
