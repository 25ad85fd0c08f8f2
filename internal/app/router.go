package app

import (
	"context"
	"regexp"
	"strings"
	"time"

	"filing_compliance_bot/internal/domain/filing"

	"github.com/sirupsen/logrus"
)

// IntentKind is the closed set of actions the router can produce.
type IntentKind string

const (
	IntentGetComplianceScore IntentKind = "GET_COMPLIANCE_SCORE"
	IntentRequestService     IntentKind = "REQUEST_SERVICE"
	IntentRegisterSubject    IntentKind = "REGISTER_SUBJECT"
	IntentGeneralInquiry     IntentKind = "GENERAL_INQUIRY"
)

// Intent is the classified result for one inbound message.
//
// Deterministic reports whether the intent came from a pattern rule.
// Only deterministic intents may trigger payment or filing side effects;
// the generative fallback is presentation-only and always yields
// IntentGeneralInquiry.
type Intent struct {
	Kind              IntentKind
	Service           filing.ServiceCode
	RegNumber         string
	IncorporationDate *time.Time
	Urgent            bool
	Reply             string
	Deterministic     bool
}

// Responder produces a free-text answer for messages no deterministic rule
// matched. Implementations are expected to be slow and unreliable; the
// router degrades to a static reply when they fail.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

const helpText = "I can help you stay compliant. Send AR (annual return), " +
	"BO (beneficial ownership) or DA (director amendment) to request a filing, " +
	"SCORE for your compliance score, or REG <company number> <yyyy-mm-dd> to register your company."

var (
	regNumberPattern = regexp.MustCompile(`^[0-9]{6,14}$`)
	incDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	greetings = map[string]bool{
		"HI": true, "HELLO": true, "HEY": true, "HELP": true,
		"START": true, "/START": true, "/HELP": true, "MENU": true,
	}
)

// Router classifies inbound messages. Pattern rules run first and are never
// overridden by the fallback responder.
type Router struct {
	responder Responder
	log       *logrus.Entry
}

func NewRouter(responder Responder, log *logrus.Entry) *Router {
	return &Router{responder: responder, log: log}
}

// Classify maps free text to an Intent. It never returns an error: when the
// fallback responder is unavailable the message still resolves to a general
// inquiry with a static help reply.
func (r *Router) Classify(ctx context.Context, text string, conv *Conversation) Intent {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	tokens := strings.Fields(normalized)

	if len(tokens) == 0 {
		return Intent{Kind: IntentGeneralInquiry, Reply: helpText, Deterministic: true}
	}

	urgent := false
	for _, tok := range tokens {
		if tok == "URGENT" || tok == "RUSH" {
			urgent = true
		}
	}

	// Service shortcodes. SCORE is a free query, routed separately.
	if code, ok := filing.ParseServiceCode(tokens[0]); ok {
		if code == filing.ServiceComplianceScore {
			return Intent{Kind: IntentGetComplianceScore, Deterministic: true}
		}
		return Intent{Kind: IntentRequestService, Service: code, Urgent: urgent, Deterministic: true}
	}

	// Explicit registration: REG <number> [yyyy-mm-dd].
	if tokens[0] == "REG" && len(tokens) >= 2 && regNumberPattern.MatchString(tokens[1]) {
		intent := Intent{Kind: IntentRegisterSubject, RegNumber: tokens[1], Deterministic: true}
		if len(tokens) >= 3 && incDatePattern.MatchString(tokens[2]) {
			if d, err := time.Parse("2006-01-02", tokens[2]); err == nil {
				intent.IncorporationDate = &d
			}
		}
		return intent
	}

	// A bare registration-number-shaped token registers the company too.
	if len(tokens) == 1 && regNumberPattern.MatchString(tokens[0]) {
		return Intent{Kind: IntentRegisterSubject, RegNumber: tokens[0], Deterministic: true}
	}

	if greetings[tokens[0]] {
		return Intent{Kind: IntentGeneralInquiry, Reply: helpText, Deterministic: true}
	}

	return r.fallback(ctx, text)
}

// fallback asks the generative responder for a reply. The resulting intent
// label is best-effort and presentation-only, so the kind is always
// IntentGeneralInquiry regardless of what the responder says.
func (r *Router) fallback(ctx context.Context, text string) Intent {
	if r.responder == nil {
		return Intent{Kind: IntentGeneralInquiry, Reply: helpText}
	}

	reply, err := r.responder.Respond(ctx, text)
	if err != nil {
		r.log.WithError(err).Warn("Fallback responder unavailable, serving static help text")
		return Intent{Kind: IntentGeneralInquiry, Reply: helpText}
	}
	if strings.TrimSpace(reply) == "" {
		return Intent{Kind: IntentGeneralInquiry, Reply: helpText}
	}
	return Intent{Kind: IntentGeneralInquiry, Reply: reply}
}
