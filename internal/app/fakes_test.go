package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/review"
	"filing_compliance_bot/internal/domain/subject"
	idb "filing_compliance_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func fixedClock(t time.Time) deadline.Clock {
	return func() time.Time { return t }
}

// --- subject repository ---

type fakeSubjectRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*subject.Subject
}

func newFakeSubjectRepo() *fakeSubjectRepo {
	return &fakeSubjectRepo{items: make(map[int64]*subject.Subject)}
}

func (r *fakeSubjectRepo) Create(_ context.Context, subj *subject.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	subj.ID = r.nextID
	r.items[subj.ID] = subj
	return nil
}

func (r *fakeSubjectRepo) GetByID(_ context.Context, id int64) (*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subj, ok := r.items[id]; ok {
		return subj, nil
	}
	return nil, idb.ErrSubjectNotFound
}

func (r *fakeSubjectRepo) GetByRegNumber(_ context.Context, regNumber string) (*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, subj := range r.items {
		if subj.RegNumber == regNumber {
			return subj, nil
		}
	}
	return nil, idb.ErrSubjectNotFound
}

func (r *fakeSubjectRepo) GetBySenderID(_ context.Context, senderID string) (*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, subj := range r.items {
		if subj.SenderID.Valid && subj.SenderID.String == senderID {
			return subj, nil
		}
	}
	return nil, idb.ErrSubjectNotFound
}

func (r *fakeSubjectRepo) Update(_ context.Context, subj *subject.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[subj.ID]; !ok {
		return idb.ErrSubjectNotFound
	}
	r.items[subj.ID] = subj
	return nil
}

func (r *fakeSubjectRepo) ListAll(_ context.Context) ([]*subject.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subject.Subject, 0, len(r.items))
	for _, subj := range r.items {
		out = append(out, subj)
	}
	return out, nil
}

func (r *fakeSubjectRepo) AppendFiling(_ context.Context, rec *subject.FilingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subj, ok := r.items[rec.SubjectID]
	if !ok {
		return idb.ErrSubjectNotFound
	}
	subj.History = append(subj.History, *rec)
	return nil
}

// --- transaction repository ---

type fakeTransactionRepo struct {
	mu    sync.Mutex
	items map[string]*filing.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{items: make(map[string]*filing.Transaction)}
}

func (r *fakeTransactionRepo) Create(_ context.Context, tx *filing.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	cp := *tx
	r.items[tx.ID] = &cp
	return nil
}

func (r *fakeTransactionRepo) GetByID(_ context.Context, id string) (*filing.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[id]
	if !ok {
		return nil, idb.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeTransactionRepo) Transition(_ context.Context, req filing.TransitionRequest) (*filing.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[req.TransactionID]
	if !ok {
		return nil, idb.ErrTransactionNotFound
	}
	if tx.Status == req.Target {
		return nil, idb.ErrAlreadyInStatus
	}
	if !tx.Status.CanTransitionTo(req.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", idb.ErrInvalidTransition, tx.Status, req.Target)
	}
	switch req.Target {
	case filing.StatusPaid:
		tx.PaymentRef.String, tx.PaymentRef.Valid = req.PaymentRef, req.PaymentRef != ""
	case filing.StatusCompleted:
		tx.ExternalRef.String, tx.ExternalRef.Valid = req.ExternalRef, req.ExternalRef != ""
		tx.CompletedAt.Time, tx.CompletedAt.Valid = time.Now(), true
	case filing.StatusFailed:
		tx.FailReason.String, tx.FailReason.Valid = req.FailReason, req.FailReason != ""
	}
	tx.Status = req.Target
	cp := *tx
	return &cp, nil
}

func (r *fakeTransactionRepo) ExpireStale(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, tx := range r.items {
		if tx.Status == filing.StatusQuoted && tx.CreatedAt.Before(cutoff) {
			tx.Status = filing.StatusExpired
			ids = append(ids, tx.ID)
		}
	}
	return ids, nil
}

// --- notification repository ---

type fakeNotificationRepo struct {
	mu        sync.Mutex
	recorded  []*notify.Event
	recordErr error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Record(_ context.Context, event *notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	for _, e := range r.recorded {
		if e.DedupeKey == event.DedupeKey {
			return idb.ErrDuplicateNotification
		}
	}
	r.recorded = append(r.recorded, event)
	return nil
}

func (r *fakeNotificationRepo) Exists(_ context.Context, dedupeKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.recorded {
		if e.DedupeKey == dedupeKey {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) countByKey(dedupeKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.recorded {
		if e.DedupeKey == dedupeKey {
			n++
		}
	}
	return n
}

// --- deadline repository ---

type fakeDeadlineRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[string]*deadline.Deadline // keyed subject/obligation/period
}

func newFakeDeadlineRepo() *fakeDeadlineRepo {
	return &fakeDeadlineRepo{items: make(map[string]*deadline.Deadline)}
}

func deadlineKey(subjectID int64, obligation deadline.ObligationType, period string) string {
	return fmt.Sprintf("%d/%s/%s", subjectID, obligation, period)
}

func (r *fakeDeadlineRepo) Upsert(_ context.Context, d *deadline.Deadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deadlineKey(d.SubjectID, d.Obligation, d.Period)
	if existing, ok := r.items[key]; ok {
		existing.DueDate = d.DueDate
		existing.Completed = existing.Completed || d.Completed
		*d = *existing
		return nil
	}
	r.nextID++
	d.ID = r.nextID
	cp := *d
	r.items[key] = &cp
	return nil
}

func (r *fakeDeadlineRepo) GetByID(_ context.Context, id int64) (*deadline.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, idb.ErrDeadlineNotFound
}

func (r *fakeDeadlineRepo) Get(_ context.Context, subjectID int64, obligation deadline.ObligationType, period string) (*deadline.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.items[deadlineKey(subjectID, obligation, period)]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, idb.ErrDeadlineNotFound
}

func (r *fakeDeadlineRepo) ListOpen(_ context.Context) ([]*deadline.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*deadline.Deadline
	for _, d := range r.items {
		if !d.Completed {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeadlineRepo) ListBySubject(_ context.Context, subjectID int64) ([]*deadline.Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*deadline.Deadline
	for _, d := range r.items {
		if d.SubjectID == subjectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeadlineRepo) MarkCompleted(_ context.Context, subjectID int64, obligation deadline.ObligationType, period string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.items[deadlineKey(subjectID, obligation, period)]; ok {
		d.Completed = true
	}
	return nil
}

func (r *fakeDeadlineRepo) RecordAlert(_ context.Context, id int64, notifiedStatus deadline.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.ID == id {
			d.RemindersSent++
			d.LastNotifiedStatus.String = string(notifiedStatus)
			d.LastNotifiedStatus.Valid = true
			return nil
		}
	}
	return idb.ErrDeadlineNotFound
}

// --- review repository ---

type fakeReviewRepo struct {
	mu    sync.Mutex
	items []*review.ManualReview
}

func newFakeReviewRepo() *fakeReviewRepo { return &fakeReviewRepo{} }

func (r *fakeReviewRepo) Create(_ context.Context, rev *review.ManualReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev.ID = int64(len(r.items) + 1)
	r.items = append(r.items, rev)
	return nil
}

func (r *fakeReviewRepo) ListOpen(_ context.Context) ([]*review.ManualReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*review.ManualReview
	for _, rev := range r.items {
		if !rev.Resolved {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) Resolve(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rev := range r.items {
		if rev.ID == id {
			rev.Resolved = true
			return nil
		}
	}
	return idb.ErrReviewNotFound
}

// --- channel, fulfiller, responder ---

type fakeChannel struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (c *fakeChannel) Send(recipient string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, recipient+": "+text)
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeFulfiller struct {
	mu         sync.Mutex
	enqueued   []FulfillmentRequest
	enqueueErr error
}

func (f *fakeFulfiller) Enqueue(_ context.Context, req FulfillmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, req)
	return nil
}

type fakeResponder struct {
	reply string
	err   error
	calls int
}

func (r *fakeResponder) Respond(_ context.Context, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}
