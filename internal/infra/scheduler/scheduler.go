package scheduler

import (
	"context"
	"time"

	"filing_compliance_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepScheduler drives the periodic maintenance passes: the deadline
// status sweep, quote expiry and conversation-context pruning.
type SweepScheduler struct {
	cronEngine           *cron.Cron
	sweeps               *app.SweepService
	contexts             *app.ContextStore
	log                  *logrus.Entry
	cronSpecSweep        string
	cronSpecQuoteExpiry  string
	cronSpecContextPrune string
}

func NewSweepScheduler(
	sweeps *app.SweepService,
	contexts *app.ContextStore,
	log *logrus.Entry,
	cronSpecSweep string,
	cronSpecQuoteExpiry string,
	cronSpecContextPrune string,
) *SweepScheduler {
	return &SweepScheduler{
		cronEngine:           cron.New(cron.WithLocation(time.Local)),
		sweeps:               sweeps,
		contexts:             contexts,
		log:                  log,
		cronSpecSweep:        cronSpecSweep,
		cronSpecQuoteExpiry:  cronSpecQuoteExpiry,
		cronSpecContextPrune: cronSpecContextPrune,
	}
}

func (s *SweepScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.cronSpecSweep, func() {
		s.log.Info("Cron job triggered: deadline sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.sweeps.RunDeadlineSweep(ctx); err != nil {
			s.log.WithError(err).Error("Deadline sweep failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cronEngine.AddFunc(s.cronSpecQuoteExpiry, func() {
		s.log.Info("Cron job triggered: quote expiry")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := s.sweeps.RunQuoteExpiry(ctx); err != nil {
			s.log.WithError(err).Error("Quote expiry failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cronEngine.AddFunc(s.cronSpecContextPrune, func() {
		if removed := s.contexts.Prune(); removed > 0 {
			s.log.WithField("removed", removed).Debug("Pruned idle conversation contexts")
		}
	}); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.log.Info("Sweep scheduler started")
	return nil
}

func (s *SweepScheduler) Stop() {
	s.log.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.log.Info("Sweep scheduler gracefully stopped")
}
