package app

import (
	"context"
	"fmt"
	"time"

	"filing_compliance_bot/internal/domain/channel"
	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/notify"
	idb "filing_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// ErrAlreadySent indicates the dedupe key was used before; the channel was
// not called.
var ErrAlreadySent = fmt.Errorf("notification already sent for this dedupe key")

// Dispatcher emits outbound notifications with at-most-once delivery per
// dedupe key. It never retries on its own: channel errors go back to the
// caller, and a failed notification must never roll back a state-machine
// transition.
type Dispatcher struct {
	repo    notify.Repository
	client  channel.Client
	channel string
	log     *logrus.Entry
	now     deadline.Clock
}

func NewDispatcher(repo notify.Repository, client channel.Client, channelName string, log *logrus.Entry, now deadline.Clock) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{repo: repo, client: client, channel: channelName, log: log, now: now}
}

// Notify sends the event unless its dedupe key was seen before. The key is
// checked against prior sends before any channel call; the unique index on
// the store backs the check under races.
func (d *Dispatcher) Notify(ctx context.Context, event *notify.Event) error {
	seen, err := d.repo.Exists(ctx, event.DedupeKey)
	if err != nil {
		return fmt.Errorf("failed to check dedupe key %q: %w", event.DedupeKey, err)
	}
	if seen {
		d.log.WithField("dedupe_key", event.DedupeKey).Info("Notification already sent, skipping channel call")
		return ErrAlreadySent
	}

	if err := d.client.Send(event.Recipient, event.Body); err != nil {
		return fmt.Errorf("channel send failed for dedupe key %q: %w", event.DedupeKey, err)
	}

	event.Channel = d.channel
	event.SentAt = d.now()
	if err := d.repo.Record(ctx, event); err != nil {
		if err == idb.ErrDuplicateNotification {
			// Lost a race after sending; the transition was still announced
			// at most once per key by the store's unique index.
			return ErrAlreadySent
		}
		return fmt.Errorf("failed to record notification %q: %w", event.DedupeKey, err)
	}

	d.log.WithFields(logrus.Fields{
		"dedupe_key": event.DedupeKey,
		"template":   event.Template,
		"recipient":  event.Recipient,
	}).Info("Notification sent")
	return nil
}
