package app

import (
	"context"
	"database/sql"
	"fmt"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/review"
	"filing_compliance_bot/internal/domain/subject"
	idb "filing_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// FulfillmentService applies the terminal moves of the filing state machine
// from fulfillment acknowledgments, and the operator retry path.
type FulfillmentService struct {
	transactions filing.Repository
	subjects     subject.Repository
	deadlines    deadline.Repository
	reviews      review.Repository
	dispatcher   *Dispatcher
	fulfiller    Fulfiller
	operator     *OperatorNotifier
	log          *logrus.Entry
	now          deadline.Clock
}

func NewFulfillmentService(
	transactions filing.Repository,
	subjects subject.Repository,
	deadlines deadline.Repository,
	reviews review.Repository,
	dispatcher *Dispatcher,
	fulfiller Fulfiller,
	operator *OperatorNotifier,
	log *logrus.Entry,
	now deadline.Clock,
) *FulfillmentService {
	return &FulfillmentService{
		transactions: transactions,
		subjects:     subjects,
		deadlines:    deadlines,
		reviews:      reviews,
		dispatcher:   dispatcher,
		fulfiller:    fulfiller,
		operator:     operator,
		log:          log,
		now:          now,
	}
}

// Complete moves a processing transaction to completed on a fulfillment
// acknowledgment carrying the external reference number. The subject's
// filing history and the matching deadline are updated in the same pass.
func (s *FulfillmentService) Complete(ctx context.Context, transactionID, externalRef string) error {
	logCtx := s.log.WithField("transaction_id", transactionID)

	tx, err := s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: transactionID,
		Target:        filing.StatusCompleted,
		ExternalRef:   externalRef,
	})
	if err == idb.ErrAlreadyInStatus {
		logCtx.Info("Transaction already completed, no-op")
		return nil
	}
	if err == idb.ErrTransactionNotFound {
		logCtx.Warn("Fulfillment ack references unknown transaction")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to complete transaction %s: %w", transactionID, err)
	}
	logCtx.WithField("external_ref", externalRef).Info("Transaction completed")

	if err := s.subjects.AppendFiling(ctx, &subject.FilingRecord{
		SubjectID:   tx.SubjectID,
		Obligation:  string(tx.Obligation),
		Period:      tx.Period,
		ExternalRef: externalRef,
		FiledAt:     s.now(),
	}); err != nil {
		logCtx.WithError(err).Error("Failed to append filing history")
	}
	if err := s.deadlines.MarkCompleted(ctx, tx.SubjectID, tx.Obligation, tx.Period); err != nil {
		logCtx.WithError(err).Error("Failed to mark deadline completed")
	}

	s.notifyTransition(ctx, tx, filing.StatusCompleted, notify.TemplateCompleted,
		fmt.Sprintf("Your %s filing for %s is complete. Reference: %s.", tx.Obligation, tx.Period, externalRef))
	return nil
}

// Fail moves a processing transaction to failed with a human-readable
// reason and escalates to the operator queue.
func (s *FulfillmentService) Fail(ctx context.Context, transactionID, reason string) error {
	logCtx := s.log.WithField("transaction_id", transactionID)
	if reason == "" {
		reason = "fulfillment backend reported an unspecified error"
	}

	tx, err := s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: transactionID,
		Target:        filing.StatusFailed,
		FailReason:    reason,
	})
	if err == idb.ErrAlreadyInStatus {
		logCtx.Info("Transaction already failed, no-op")
		return nil
	}
	if err == idb.ErrTransactionNotFound {
		logCtx.Warn("Fulfillment failure references unknown transaction")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fail transaction %s: %w", transactionID, err)
	}
	logCtx.WithField("reason", reason).Error("Transaction failed")

	if err := s.reviews.Create(ctx, &review.ManualReview{
		Kind:          review.KindFulfillmentFailure,
		TransactionID: tx.ID,
		Detail:        reason,
	}); err != nil {
		logCtx.WithError(err).Error("Failed to record fulfillment failure review")
	}
	s.operator.Alert(fmt.Sprintf("Filing %s failed: %s", tx.ID, reason))

	s.notifyTransition(ctx, tx, filing.StatusFailed, notify.TemplateFailed,
		"We hit a snag processing your filing. Our team is on it and will follow up shortly.")
	return nil
}

// Retry re-queues a failed transaction for processing. Operator-only; the
// transition notification for PROCESSING was already sent on the first pass
// and is deliberately not repeated.
func (s *FulfillmentService) Retry(ctx context.Context, transactionID string) error {
	tx, err := s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: transactionID,
		Target:        filing.StatusProcessing,
	})
	if err != nil {
		return fmt.Errorf("failed to re-queue transaction %s: %w", transactionID, err)
	}
	s.log.WithField("transaction_id", tx.ID).Info("Transaction re-queued for processing")

	subj, err := s.subjects.GetByID(ctx, tx.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to load subject %d: %w", tx.SubjectID, err)
	}
	if err := s.fulfiller.Enqueue(ctx, FulfillmentRequest{
		TransactionID: tx.ID,
		RegNumber:     subj.RegNumber,
		Obligation:    string(tx.Obligation),
		Period:        tx.Period,
		Urgent:        tx.Urgent,
	}); err != nil {
		return fmt.Errorf("failed to re-enqueue fulfillment for %s: %w", tx.ID, err)
	}
	return nil
}

func (s *FulfillmentService) notifyTransition(ctx context.Context, tx *filing.Transaction, target filing.Status, template notify.TemplateKind, body string) {
	event := &notify.Event{
		Recipient:     tx.Recipient,
		Template:      template,
		TransactionID: sql.NullString{String: tx.ID, Valid: true},
		DedupeKey:     notify.TransactionDedupeKey(tx.ID, filing.TransitionName(target)),
		Body:          body,
	}
	if err := s.dispatcher.Notify(ctx, event); err != nil && err != ErrAlreadySent {
		s.log.WithError(err).WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"transition":     target,
		}).Error("Failed to send transition notification")
	}
}
