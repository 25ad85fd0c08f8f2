package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/review"
	"filing_compliance_bot/internal/domain/subject"
	idb "filing_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Fulfiller hands a paid transaction to the external filing backend. Calls
// are expected to be bounded by the implementation's own timeout.
type Fulfiller interface {
	Enqueue(ctx context.Context, req FulfillmentRequest) error
}

// FulfillmentRequest is the narrow payload the backend needs.
type FulfillmentRequest struct {
	TransactionID string
	RegNumber     string
	Obligation    string
	Period        string
	Urgent        bool
}

// PaymentEvent is a payment webhook normalized for the service.
type PaymentEvent struct {
	TransactionRef string
	Status         string
	Amount         int64 // gross amount in minor currency units
	PaymentRef     string
}

// PaymentService applies the quoted -> paid -> processing moves driven by
// authenticated payment webhooks. Replayed webhooks for an already-applied
// transition are recognized as no-ops.
type PaymentService struct {
	transactions filing.Repository
	subjects     subject.Repository
	reviews      review.Repository
	dispatcher   *Dispatcher
	fulfiller    Fulfiller
	operator     *OperatorNotifier
	log          *logrus.Entry
}

func NewPaymentService(
	transactions filing.Repository,
	subjects subject.Repository,
	reviews review.Repository,
	dispatcher *Dispatcher,
	fulfiller Fulfiller,
	operator *OperatorNotifier,
	log *logrus.Entry,
) *PaymentService {
	return &PaymentService{
		transactions: transactions,
		subjects:     subjects,
		reviews:      reviews,
		dispatcher:   dispatcher,
		fulfiller:    fulfiller,
		operator:     operator,
		log:          log,
	}
}

// HandlePaymentEvent processes one verified payment webhook. Errors that
// need operator attention (amount mismatch, fulfillment failure) are
// recorded and escalated, not returned: the provider must see success so it
// stops retrying.
func (s *PaymentService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) error {
	logCtx := s.log.WithField("transaction_id", event.TransactionRef)

	if !strings.EqualFold(event.Status, "complete") {
		logCtx.WithField("provider_status", event.Status).Info("Ignoring non-complete payment event")
		return nil
	}

	tx, err := s.transactions.GetByID(ctx, event.TransactionRef)
	if err == idb.ErrTransactionNotFound {
		logCtx.Warn("Payment event references unknown transaction")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", event.TransactionRef, err)
	}

	switch tx.Status {
	case filing.StatusPaid, filing.StatusProcessing, filing.StatusCompleted:
		// Duplicate webhook; the transition was already applied.
		logCtx.WithField("status", tx.Status).Info("Duplicate payment event, treating as no-op")
		return nil
	}

	if event.Amount != tx.QuotedAmount {
		mismatch := &filing.AmountMismatchError{
			TransactionID: tx.ID,
			Quoted:        tx.QuotedAmount,
			Received:      event.Amount,
		}
		logCtx.WithError(mismatch).Error("Payment amount mismatch, flagging for manual review")
		if err := s.reviews.Create(ctx, &review.ManualReview{
			Kind:          review.KindAmountMismatch,
			TransactionID: tx.ID,
			Detail:        mismatch.Error(),
		}); err != nil {
			return fmt.Errorf("failed to record amount mismatch review: %w", err)
		}
		s.operator.Alert(fmt.Sprintf("Manual review needed: %s", mismatch.Error()))
		return nil
	}

	tx, err = s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: tx.ID,
		Target:        filing.StatusPaid,
		PaymentRef:    event.PaymentRef,
	})
	if err == idb.ErrAlreadyInStatus {
		logCtx.Info("Transaction already paid, no-op")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark transaction %s paid: %w", event.TransactionRef, err)
	}
	logCtx.Info("Transaction paid")
	s.notifyTransition(ctx, tx, filing.StatusPaid, notify.TemplatePaymentReceipt,
		fmt.Sprintf("Payment received for %s %s. We're starting your filing now.", tx.Obligation, tx.Period))

	// Payment confirmation immediately moves the transaction to processing
	// and enqueues fulfillment.
	tx, err = s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: tx.ID,
		Target:        filing.StatusProcessing,
	})
	if err != nil && err != idb.ErrAlreadyInStatus {
		return fmt.Errorf("failed to move transaction %s to processing: %w", tx.ID, err)
	}
	s.notifyTransition(ctx, tx, filing.StatusProcessing, notify.TemplateProcessing,
		fmt.Sprintf("Your %s filing for %s is being processed.", tx.Obligation, tx.Period))

	if err := s.enqueueFulfillment(ctx, tx); err != nil {
		logCtx.WithError(err).Error("Fulfillment enqueue failed")
		return s.failTransaction(ctx, tx, fmt.Sprintf("fulfillment enqueue failed: %v", err))
	}
	return nil
}

func (s *PaymentService) enqueueFulfillment(ctx context.Context, tx *filing.Transaction) error {
	subj, err := s.subjects.GetByID(ctx, tx.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to load subject %d: %w", tx.SubjectID, err)
	}
	return s.fulfiller.Enqueue(ctx, FulfillmentRequest{
		TransactionID: tx.ID,
		RegNumber:     subj.RegNumber,
		Obligation:    string(tx.Obligation),
		Period:        tx.Period,
		Urgent:        tx.Urgent,
	})
}

// notifyTransition emits the single notification attached to a transition.
// AlreadySent is expected on replays; channel errors are logged and left for
// the operator, never rolled back into the state machine.
func (s *PaymentService) notifyTransition(ctx context.Context, tx *filing.Transaction, target filing.Status, template notify.TemplateKind, body string) {
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

func (s *PaymentService) failTransaction(ctx context.Context, tx *filing.Transaction, reason string) error {
	failed, err := s.transactions.Transition(ctx, filing.TransitionRequest{
		TransactionID: tx.ID,
		Target:        filing.StatusFailed,
		FailReason:    reason,
	})
	if err != nil && err != idb.ErrAlreadyInStatus {
		return fmt.Errorf("failed to mark transaction %s failed: %w", tx.ID, err)
	}
	if failed != nil {
		tx = failed
	}

	if err := s.reviews.Create(ctx, &review.ManualReview{
		Kind:          review.KindFulfillmentFailure,
		TransactionID: tx.ID,
		Detail:        reason,
	}); err != nil {
		s.log.WithError(err).WithField("transaction_id", tx.ID).Error("Failed to record fulfillment failure review")
	}
	s.operator.Alert(fmt.Sprintf("Filing %s failed: %s", tx.ID, reason))
	s.notifyTransition(ctx, tx, filing.StatusFailed, notify.TemplateFailed,
		"We hit a snag processing your filing. Our team is on it and will follow up shortly.")
	return nil
}

// OperatorNotifier pushes escalation messages to the operator chat. Send
// failures are logged only; escalations must never fail a webhook.
type OperatorNotifier struct {
	client    operatorChannel
	recipient string
	log       *logrus.Entry
}

type operatorChannel interface {
	Send(recipient string, text string) error
}

func NewOperatorNotifier(client operatorChannel, recipient string, log *logrus.Entry) *OperatorNotifier {
	return &OperatorNotifier{client: client, recipient: recipient, log: log}
}

func (o *OperatorNotifier) Alert(text string) {
	if o == nil || o.recipient == "" {
		return
	}
	if err := o.client.Send(o.recipient, text); err != nil {
		o.log.WithError(err).Error("Failed to alert operator")
	}
}
