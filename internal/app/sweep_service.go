package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/subject"

	"github.com/sirupsen/logrus"
)

// SweepService runs the scheduled maintenance passes: recompute deadline
// statuses and alert on changes, and expire stale quotes.
type SweepService struct {
	subjects     subject.Repository
	deadlines    deadline.Repository
	transactions filing.Repository
	engine       *deadline.Engine
	dispatcher   *Dispatcher
	quoteTTL     time.Duration
	log          *logrus.Entry
	now          deadline.Clock
}

func NewSweepService(
	subjects subject.Repository,
	deadlines deadline.Repository,
	transactions filing.Repository,
	engine *deadline.Engine,
	dispatcher *Dispatcher,
	quoteTTL time.Duration,
	log *logrus.Entry,
	now deadline.Clock,
) *SweepService {
	if now == nil {
		now = time.Now
	}
	return &SweepService{
		subjects:     subjects,
		deadlines:    deadlines,
		transactions: transactions,
		engine:       engine,
		dispatcher:   dispatcher,
		quoteTTL:     quoteTTL,
		log:          log,
		now:          now,
	}
}

// RunDeadlineSweep refreshes every subject's deadlines and emits a due-soon
// or overdue alert exactly once per status change. The last notified status
// is tracked per deadline so an unchanged status never re-alerts.
func (s *SweepService) RunDeadlineSweep(ctx context.Context) error {
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects for sweep: %w", err)
	}
	now := s.now()

	for _, subj := range subjects {
		computed, err := s.engine.ComputeDeadlines(subj)
		if err == deadline.ErrInsufficientData {
			continue
		}
		if err != nil {
			s.log.WithError(err).WithField("reg_number", subj.RegNumber).Error("Failed to compute deadlines")
			continue
		}

		for _, d := range computed {
			if err := s.deadlines.Upsert(ctx, d); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"reg_number": subj.RegNumber,
					"obligation": d.Obligation,
					"period":     d.Period,
				}).Error("Failed to upsert deadline")
				continue
			}

			status := d.Status(now)
			if status != deadline.StatusDueSoon && status != deadline.StatusOverdue {
				continue
			}
			if d.LastNotifiedStatus.Valid && d.LastNotifiedStatus.String == string(status) {
				continue
			}
			if !subj.SenderID.Valid {
				continue
			}

			body := deadlineAlertBody(d, status, now)
			event := &notify.Event{
				Recipient:  subj.SenderID.String,
				Template:   notify.TemplateDeadlineAlert,
				DeadlineID: sql.NullInt64{Int64: d.ID, Valid: true},
				DedupeKey:  notify.DeadlineDedupeKey(d.ID, string(status)),
				Body:       body,
			}
			err := s.dispatcher.Notify(ctx, event)
			if err != nil && err != ErrAlreadySent {
				s.log.WithError(err).WithField("deadline_id", d.ID).Error("Failed to send deadline alert")
				continue
			}
			if err := s.deadlines.RecordAlert(ctx, d.ID, status); err != nil {
				s.log.WithError(err).WithField("deadline_id", d.ID).Error("Failed to record deadline alert")
			}
		}
	}
	return nil
}

// RunQuoteExpiry marks quoted transactions older than the TTL as expired.
// Expiry has no side effects: no notifications, no history.
func (s *SweepService) RunQuoteExpiry(ctx context.Context) error {
	cutoff := s.now().Add(-s.quoteTTL)
	ids, err := s.transactions.ExpireStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to expire stale quotes: %w", err)
	}
	if len(ids) > 0 {
		s.log.WithField("count", len(ids)).Info("Expired stale quotes")
	}
	return nil
}

func deadlineAlertBody(d *deadline.Deadline, status deadline.Status, now time.Time) string {
	due := d.DueDate.Format("2006-01-02")
	if status == deadline.StatusOverdue {
		return fmt.Sprintf("Your %s for %s was due on %s and is now overdue. Reply %s to file it.",
			d.Obligation, d.Period, due, shortcodeFor(d.Obligation))
	}
	return fmt.Sprintf("Your %s for %s is due on %s. Reply %s to file it before the deadline.",
		d.Obligation, d.Period, due, shortcodeFor(d.Obligation))
}

func shortcodeFor(obligation deadline.ObligationType) filing.ServiceCode {
	switch obligation {
	case deadline.ObligationAnnualReturn:
		return filing.ServiceAnnualReturn
	case deadline.ObligationBeneficialOwnership:
		return filing.ServiceBeneficialOwnership
	case deadline.ObligationDirectorAmendment:
		return filing.ServiceDirectorAmendment
	default:
		return filing.ServiceAnnualReturn
	}
}
