package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filing_compliance_bot/internal/domain/deadline"
	"filing_compliance_bot/internal/domain/filing"
	"filing_compliance_bot/internal/domain/notify"
	"filing_compliance_bot/internal/domain/subject"
	idb "filing_compliance_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConversationService handles one inbound message end to end: classify,
// consult deadlines, quote and create a transaction, reply.
type ConversationService struct {
	subjects     subject.Repository
	transactions filing.Repository
	engine       *deadline.Engine
	router       *Router
	dispatcher   *Dispatcher
	contexts     *ContextStore
	log          *logrus.Entry
	now          deadline.Clock
}

func NewConversationService(
	subjects subject.Repository,
	transactions filing.Repository,
	engine *deadline.Engine,
	router *Router,
	dispatcher *Dispatcher,
	contexts *ContextStore,
	log *logrus.Entry,
	now deadline.Clock,
) *ConversationService {
	if now == nil {
		now = time.Now
	}
	return &ConversationService{
		subjects:     subjects,
		transactions: transactions,
		engine:       engine,
		router:       router,
		dispatcher:   dispatcher,
		contexts:     contexts,
		log:          log,
		now:          now,
	}
}

// HandleMessage processes a text message from a sender and returns the reply
// to surface on the channel.
func (s *ConversationService) HandleMessage(ctx context.Context, senderID, text string) (string, error) {
	conv := s.contexts.Get(senderID)
	intent := s.router.Classify(ctx, text, conv)

	logCtx := s.log.WithFields(logrus.Fields{
		"sender_id":     senderID,
		"intent":        intent.Kind,
		"deterministic": intent.Deterministic,
	})
	logCtx.Info("Inbound message classified")

	var reply string
	var err error
	switch intent.Kind {
	case IntentRegisterSubject:
		reply, err = s.registerSubject(ctx, senderID, intent)
	case IntentGetComplianceScore:
		reply, err = s.complianceScore(ctx, senderID)
	case IntentRequestService:
		reply, err = s.requestService(ctx, senderID, intent)
	default:
		reply = intent.Reply
	}
	if err != nil {
		return "", err
	}

	conv.LastIntent = intent.Kind
	if intent.RegNumber != "" {
		conv.RegNumber = intent.RegNumber
	}
	s.contexts.Put(conv)
	return reply, nil
}

func (s *ConversationService) registerSubject(ctx context.Context, senderID string, intent Intent) (string, error) {
	subj, err := s.subjects.GetByRegNumber(ctx, intent.RegNumber)
	if err != nil && err != idb.ErrSubjectNotFound {
		return "", fmt.Errorf("failed to look up subject %s: %w", intent.RegNumber, err)
	}

	if subj == nil {
		subj = &subject.Subject{RegNumber: intent.RegNumber}
	}
	subj.SenderID = sql.NullString{String: senderID, Valid: true}
	if intent.IncorporationDate != nil {
		subj.IncorporationDate = sql.NullTime{Time: *intent.IncorporationDate, Valid: true}
	}

	if subj.ID == 0 {
		err = s.subjects.Create(ctx, subj)
	} else {
		err = s.subjects.Update(ctx, subj)
	}
	if err != nil {
		return "", fmt.Errorf("failed to save subject %s: %w", intent.RegNumber, err)
	}

	s.log.WithField("reg_number", subj.RegNumber).Info("Subject registered")
	if !subj.IncorporationDate.Valid {
		return fmt.Sprintf("Company %s registered. Send REG %s <yyyy-mm-dd> with your incorporation date so I can track your deadlines.",
			subj.RegNumber, subj.RegNumber), nil
	}
	return fmt.Sprintf("Company %s registered with incorporation date %s. Send SCORE to check your compliance.",
		subj.RegNumber, subj.IncorporationDate.Time.Format("2006-01-02")), nil
}

func (s *ConversationService) complianceScore(ctx context.Context, senderID string) (string, error) {
	subj, err := s.subjects.GetBySenderID(ctx, senderID)
	if err == idb.ErrSubjectNotFound {
		return "I don't have a company on file for you yet. Send REG <company number> <yyyy-mm-dd> to register.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up subject for sender: %w", err)
	}

	score, err := s.engine.Score(subj)
	if err == deadline.ErrInsufficientData {
		return fmt.Sprintf("I can't compute deadlines for %s without an incorporation date. Send REG %s <yyyy-mm-dd> to complete your registration.",
			subj.RegNumber, subj.RegNumber), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to score subject %s: %w", subj.RegNumber, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Compliance score for %s: %d/100.", subj.RegNumber, score.Value)
	if len(score.Issues) == 0 {
		b.WriteString(" All filings are on track.")
	}
	for _, issue := range score.Issues {
		fmt.Fprintf(&b, "\n- %s %s is %s (-%d)", issue.Obligation, issue.Period, issue.Status, issue.Penalty)
	}
	return b.String(), nil
}

func (s *ConversationService) requestService(ctx context.Context, senderID string, intent Intent) (string, error) {
	subj, err := s.subjects.GetBySenderID(ctx, senderID)
	if err == idb.ErrSubjectNotFound {
		return "Please register your company first: REG <company number> <yyyy-mm-dd>.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up subject for sender: %w", err)
	}

	now := s.now()
	urgent := intent.Urgent
	period := fmt.Sprintf("%d", now.Year())

	// An imminent or missed deadline makes the request urgent even when the
	// requester didn't flag it.
	if computed, err := s.engine.ComputeDeadlines(subj); err == nil {
		for _, d := range computed {
			if d.Obligation != intent.Service.Obligation() {
				continue
			}
			period = d.Period
			switch d.Status(now) {
			case deadline.StatusDueSoon, deadline.StatusOverdue:
				urgent = true
			}
		}
	} else if err != deadline.ErrInsufficientData {
		return "", fmt.Errorf("failed to compute deadlines for %s: %w", subj.RegNumber, err)
	}

	amount := deadline.QuoteAmount(intent.Service.BasePrice(), urgent)
	tx := &filing.Transaction{
		ID:           uuid.NewString(),
		SubjectID:    subj.ID,
		Obligation:   intent.Service.Obligation(),
		Period:       period,
		QuotedAmount: amount,
		Urgent:       urgent,
		Status:       filing.StatusQuoted,
		Recipient:    senderID,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to create transaction for %s: %w", subj.RegNumber, err)
	}
	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"service":        intent.Service,
		"amount":         amount,
		"urgent":         urgent,
	}).Info("Transaction quoted")

	quoteBody := fmt.Sprintf("Quote for %s (%s %s): %d. Pay with reference %s to proceed.",
		intent.Service, tx.Obligation, tx.Period, amount, tx.ID)
	event := &notify.Event{
		Recipient:     senderID,
		Template:      notify.TemplateQuote,
		TransactionID: sql.NullString{String: tx.ID, Valid: true},
		DedupeKey:     notify.TransactionDedupeKey(tx.ID, filing.TransitionName(filing.StatusQuoted)),
		Body:          quoteBody,
	}
	if err := s.dispatcher.Notify(ctx, event); err != nil && err != ErrAlreadySent {
		// The quote stands even if the notification channel hiccups; the
		// reply below still carries the quote.
		s.log.WithError(err).WithField("transaction_id", tx.ID).Error("Failed to send quote notification")
	}

	return quoteBody, nil
}
