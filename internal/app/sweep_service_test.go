package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/subject"
)

type sweepFixture struct {
	service       *SweepService
	subjects      *fakeSubjectRepo
	deadlines     *fakeDeadlineRepo
	transactions  *fakeTransactionRepo
	notifications *fakeNotificationRepo
	channel       *fakeChannel
	now           time.Time
}

func newSweepFixture(t *testing.T, now time.Time) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		subjects:      newFakeSubjectRepo(),
		deadlines:     newFakeDeadlineRepo(),
		transactions:  newFakeTransactionRepo(),
		notifications: newFakeNotificationRepo(),
		channel:       &fakeChannel{},
		now:           now,
	}
	clock := func() time.Time { return f.now }
	engine := deadline.NewEngine(clock)
	dispatcher := NewDispatcher(f.notifications, f.channel, "telegram", testLog(), clock)
	f.service = NewSweepService(f.subjects, f.deadlines, f.transactions, engine,
		dispatcher, 72*time.Hour, testLog(), clock)
	return f
}

func (f *sweepFixture) seedSubject(t *testing.T, incorporated time.Time) *subject.Subject {
	t.Helper()
	subj := &subject.Subject{
		RegNumber:         "12345678",
		SenderID:          sql.NullString{String: "100", Valid: true},
		IncorporationDate: sql.NullTime{Time: incorporated, Valid: true},
	}
	if err := f.subjects.Create(context.Background(), subj); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	return subj
}

func TestRunDeadlineSweep_AlertsOncePerStatus(t *testing.T) {
	// 2021-02-10: the 2021 annual return (due 2021-01-31) is overdue.
	now := time.Date(2021, time.February, 10, 9, 0, 0, 0, time.UTC)
	f := newSweepFixture(t, now)
	f.seedSubject(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if f.channel.sentCount() != 1 {
		t.Fatalf("alerts = %d, want 1 overdue alert", f.channel.sentCount())
	}

	// Same status on the next sweep: nothing new goes out.
	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if f.channel.sentCount() != 1 {
		t.Errorf("alerts after repeat sweep = %d, want still 1", f.channel.sentCount())
	}

	d, err := f.deadlines.Get(context.Background(), 1, deadline.ObligationAnnualReturn, "2021")
	if err != nil {
		t.Fatalf("load deadline: %v", err)
	}
	if d.RemindersSent != 1 {
		t.Errorf("reminders sent = %d, want 1", d.RemindersSent)
	}
	if d.LastNotifiedStatus.String != string(deadline.StatusOverdue) {
		t.Errorf("last notified status = %q, want %s", d.LastNotifiedStatus.String, deadline.StatusOverdue)
	}
}

func TestRunDeadlineSweep_AlertsAgainOnStatusChange(t *testing.T) {
	// Ten days before the due date: DUE_SOON.
	f := newSweepFixture(t, time.Date(2021, time.January, 21, 9, 0, 0, 0, time.UTC))
	f.seedSubject(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if f.channel.sentCount() != 1 {
		t.Fatalf("alerts = %d, want 1 due-soon alert", f.channel.sentCount())
	}

	// Cross the due date: a second, distinct alert for OVERDUE.
	f.now = time.Date(2021, time.February, 10, 9, 0, 0, 0, time.UTC)
	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if f.channel.sentCount() != 2 {
		t.Errorf("alerts = %d, want 2 after status change", f.channel.sentCount())
	}
}

func TestRunDeadlineSweep_SkipsSubjectsWithoutData(t *testing.T) {
	f := newSweepFixture(t, time.Date(2021, time.February, 10, 9, 0, 0, 0, time.UTC))

	// No incorporation date on record.
	subj := &subject.Subject{RegNumber: "99999999", SenderID: sql.NullString{String: "200", Valid: true}}
	if err := f.subjects.Create(context.Background(), subj); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if f.channel.sentCount() != 0 {
		t.Errorf("alerts = %d, want 0", f.channel.sentCount())
	}
}

func TestRunDeadlineSweep_SkipsUnreachableSubjects(t *testing.T) {
	f := newSweepFixture(t, time.Date(2021, time.February, 10, 9, 0, 0, 0, time.UTC))
	subj := f.seedSubject(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	subj.SenderID = sql.NullString{}
	if err := f.subjects.Update(context.Background(), subj); err != nil {
		t.Fatalf("update subject: %v", err)
	}

	if err := f.service.RunDeadlineSweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if f.channel.sentCount() != 0 {
		t.Errorf("alerts = %d, want 0 for subject without a channel identity", f.channel.sentCount())
	}
}

func TestRunQuoteExpiry(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	f := newSweepFixture(t, now)

	stale := &filing.Transaction{
		ID: "tx-stale", Status: filing.StatusQuoted, Recipient: "100",
		CreatedAt: now.Add(-100 * time.Hour),
	}
	fresh := &filing.Transaction{
		ID: "tx-fresh", Status: filing.StatusQuoted, Recipient: "100",
		CreatedAt: now.Add(-1 * time.Hour),
	}
	paid := &filing.Transaction{
		ID: "tx-paid", Status: filing.StatusPaid, Recipient: "100",
		CreatedAt: now.Add(-100 * time.Hour),
	}
	for _, tx := range []*filing.Transaction{stale, fresh, paid} {
		if err := f.transactions.Create(context.Background(), tx); err != nil {
			t.Fatalf("seed %s: %v", tx.ID, err)
		}
	}

	if err := f.service.RunQuoteExpiry(context.Background()); err != nil {
		t.Fatalf("expiry failed: %v", err)
	}

	got, _ := f.transactions.GetByID(context.Background(), "tx-stale")
	if got.Status != filing.StatusExpired {
		t.Errorf("stale quote status = %s, want %s", got.Status, filing.StatusExpired)
	}
	got, _ = f.transactions.GetByID(context.Background(), "tx-fresh")
	if got.Status != filing.StatusQuoted {
		t.Errorf("fresh quote status = %s, want %s", got.Status, filing.StatusQuoted)
	}
	got, _ = f.transactions.GetByID(context.Background(), "tx-paid")
	if got.Status != filing.StatusPaid {
		t.Errorf("paid transaction status = %s, want untouched %s", got.Status, filing.StatusPaid)
	}

	// Expiry is silent.
	if f.channel.sentCount() != 0 {
		t.Errorf("expiry sent %d notifications, want 0", f.channel.sentCount())
	}
}
