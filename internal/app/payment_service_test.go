package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/review"
	"filing_compliance_bot/internal/domain/subject"
)

type paymentFixture struct {
	service       *PaymentService
	subjects      *fakeSubjectRepo
	transactions  *fakeTransactionRepo
	reviews       *fakeReviewRepo
	notifications *fakeNotificationRepo
	channel       *fakeChannel
	operator      *fakeChannel
	fulfiller     *fakeFulfiller
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		subjects:      newFakeSubjectRepo(),
		transactions:  newFakeTransactionRepo(),
		reviews:       newFakeReviewRepo(),
		notifications: newFakeNotificationRepo(),
		channel:       &fakeChannel{},
		operator:      &fakeChannel{},
		fulfiller:     &fakeFulfiller{},
	}
	dispatcher := NewDispatcher(f.notifications, f.channel, "telegram", testLog(),
		fixedClock(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)))
	operator := NewOperatorNotifier(f.operator, "900", testLog())
	f.service = NewPaymentService(f.transactions, f.subjects, f.reviews, dispatcher,
		f.fulfiller, operator, testLog())
	return f
}

func (f *paymentFixture) seedQuotedTransaction(t *testing.T, amount int64) *filing.Transaction {
	t.Helper()
	subj := &subject.Subject{
		RegNumber: "12345678",
		SenderID:  sql.NullString{String: "100", Valid: true},
	}
	if err := f.subjects.Create(context.Background(), subj); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	tx := &filing.Transaction{
		ID:           "tx-1",
		SubjectID:    subj.ID,
		Obligation:   deadline.ObligationBeneficialOwnership,
		Period:       "2024",
		QuotedAmount: amount,
		Status:       filing.StatusQuoted,
		Recipient:    "100",
	}
	if err := f.transactions.Create(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return tx
}

func TestHandlePaymentEvent_HappyPath(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)

	event := PaymentEvent{TransactionRef: "tx-1", Status: "complete", Amount: 149, PaymentRef: "pay-77"}
	if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := f.transactions.GetByID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if tx.Status != filing.StatusProcessing {
		t.Errorf("status = %s, want %s", tx.Status, filing.StatusProcessing)
	}
	if !tx.PaymentRef.Valid || tx.PaymentRef.String != "pay-77" {
		t.Errorf("payment ref = %+v, want pay-77", tx.PaymentRef)
	}

	if len(f.fulfiller.enqueued) != 1 {
		t.Fatalf("fulfillment enqueued %d times, want 1", len(f.fulfiller.enqueued))
	}
	req := f.fulfiller.enqueued[0]
	if req.TransactionID != "tx-1" || req.RegNumber != "12345678" || req.Period != "2024" {
		t.Errorf("unexpected fulfillment request: %+v", req)
	}

	// One receipt and one processing notification.
	if got := f.notifications.countByKey(notify.TransactionDedupeKey("tx-1", "PAID")); got != 1 {
		t.Errorf("PAID notifications = %d, want 1", got)
	}
	if got := f.notifications.countByKey(notify.TransactionDedupeKey("tx-1", "PROCESSING")); got != 1 {
		t.Errorf("PROCESSING notifications = %d, want 1", got)
	}
}

func TestHandlePaymentEvent_ReplayIsNoOp(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)

	event := PaymentEvent{TransactionRef: "tx-1", Status: "complete", Amount: 149, PaymentRef: "pay-77"}
	for i := 0; i < 3; i++ {
		if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	tx, _ := f.transactions.GetByID(context.Background(), "tx-1")
	if tx.Status != filing.StatusProcessing {
		t.Errorf("status after replays = %s, want %s", tx.Status, filing.StatusProcessing)
	}
	if len(f.fulfiller.enqueued) != 1 {
		t.Errorf("fulfillment enqueued %d times, want exactly 1", len(f.fulfiller.enqueued))
	}
	if got := f.notifications.countByKey(notify.TransactionDedupeKey("tx-1", "PAID")); got != 1 {
		t.Errorf("PAID notifications = %d, want exactly 1 across replays", got)
	}
	if f.channel.sentCount() != 2 {
		t.Errorf("channel sends = %d, want 2 (receipt + processing)", f.channel.sentCount())
	}
}

func TestHandlePaymentEvent_AmountMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)

	event := PaymentEvent{TransactionRef: "tx-1", Status: "complete", Amount: 99, PaymentRef: "pay-77"}
	if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
		t.Fatalf("mismatch must not surface as an error: %v", err)
	}

	tx, _ := f.transactions.GetByID(context.Background(), "tx-1")
	if tx.Status != filing.StatusQuoted {
		t.Errorf("status = %s, want %s (no transition on mismatch)", tx.Status, filing.StatusQuoted)
	}

	open, _ := f.reviews.ListOpen(context.Background())
	if len(open) != 1 {
		t.Fatalf("open reviews = %d, want 1", len(open))
	}
	if open[0].Kind != review.KindAmountMismatch || open[0].TransactionID != "tx-1" {
		t.Errorf("unexpected review: %+v", open[0])
	}

	if f.channel.sentCount() != 0 {
		t.Errorf("user notified %d times on mismatch, want 0", f.channel.sentCount())
	}
	if f.operator.sentCount() != 1 {
		t.Errorf("operator alerts = %d, want 1", f.operator.sentCount())
	}
	if len(f.fulfiller.enqueued) != 0 {
		t.Errorf("fulfillment enqueued on mismatch")
	}
}

func TestHandlePaymentEvent_NonCompleteIgnored(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)

	for _, status := range []string{"pending", "failed", "refunded", ""} {
		event := PaymentEvent{TransactionRef: "tx-1", Status: status, Amount: 149}
		if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
			t.Fatalf("status %q: unexpected error: %v", status, err)
		}
	}
	tx, _ := f.transactions.GetByID(context.Background(), "tx-1")
	if tx.Status != filing.StatusQuoted {
		t.Errorf("status = %s, want untouched %s", tx.Status, filing.StatusQuoted)
	}
}

func TestHandlePaymentEvent_UnknownTransaction(t *testing.T) {
	f := newPaymentFixture(t)
	event := PaymentEvent{TransactionRef: "ghost", Status: "complete", Amount: 99}
	if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
		t.Errorf("unknown transaction must be acknowledged, got error: %v", err)
	}
}

func TestHandlePaymentEvent_EnqueueFailureFailsTransaction(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)
	f.fulfiller.enqueueErr = errors.New("backend unavailable")

	event := PaymentEvent{TransactionRef: "tx-1", Status: "complete", Amount: 149, PaymentRef: "pay-77"}
	if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, _ := f.transactions.GetByID(context.Background(), "tx-1")
	if tx.Status != filing.StatusFailed {
		t.Errorf("status = %s, want %s", tx.Status, filing.StatusFailed)
	}
	if !tx.FailReason.Valid {
		t.Error("fail reason not recorded")
	}

	open, _ := f.reviews.ListOpen(context.Background())
	if len(open) != 1 || open[0].Kind != review.KindFulfillmentFailure {
		t.Errorf("expected one fulfillment-failure review, got %+v", open)
	}
	if f.operator.sentCount() != 1 {
		t.Errorf("operator alerts = %d, want 1", f.operator.sentCount())
	}
	if got := f.notifications.countByKey(notify.TransactionDedupeKey("tx-1", "FAILED")); got != 1 {
		t.Errorf("FAILED notifications = %d, want 1", got)
	}
}

func TestHandlePaymentEvent_ChannelFailureDoesNotBlockTransition(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedQuotedTransaction(t, 149)
	f.channel.sendErr = errors.New("telegram down")

	event := PaymentEvent{TransactionRef: "tx-1", Status: "complete", Amount: 149, PaymentRef: "pay-77"}
	if err := f.service.HandlePaymentEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx, _ := f.transactions.GetByID(context.Background(), "tx-1")
	if tx.Status != filing.StatusProcessing {
		t.Errorf("status = %s, want %s despite channel failure", tx.Status, filing.StatusProcessing)
	}
}
