package deadline

import (
	"fmt"
	"time"

	"filing_compliance_bot/internal/domain/subject"
)

// ErrInsufficientData is returned when a subject has no recorded
// incorporation date. Deadlines are never computed from a guessed date.
var ErrInsufficientData = fmt.Errorf("subject has no incorporation date on record")

const (
	// graceWindowDays is added to the incorporation anniversary to form the
	// annual-return due date.
	graceWindowDays = 30

	// Beneficial-ownership declarations fall due on a fixed calendar date
	// each year regardless of incorporation date.
	boDueMonth = time.March
	boDueDay   = 31

	penaltyOverdue = 30
	penaltyDueSoon = 10
)

// Issue explains one deduction from the compliance score.
type Issue struct {
	Obligation ObligationType
	Period     string
	Status     Status
	Penalty    int
}

// Score is an explainable 0..100 compliance metric. Every deduction is
// itemized so the number can be defended on dispute.
type Score struct {
	Value  int
	Issues []Issue
}

// Clock supplies the current time. Injected so deadline computation is
// deterministic under test.
type Clock func() time.Time

// Engine computes outstanding obligations, due dates and compliance scores
// for regulatory subjects.
type Engine struct {
	now Clock
}

func NewEngine(now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// ComputeDeadlines returns the current obligation instances for the subject.
// The annual-return period advances with each completed filing; beneficial
// ownership tracks the current calendar year.
func (e *Engine) ComputeDeadlines(subj *subject.Subject) ([]*Deadline, error) {
	if !subj.IncorporationDate.Valid {
		return nil, ErrInsufficientData
	}
	now := e.now()
	inc := subj.IncorporationDate.Time

	var deadlines []*Deadline

	// Annual return: anniversary of incorporation plus the grace window.
	// The next unfiled anniversary is one year past the last filed one.
	arYears := subj.CompletedCount(string(ObligationAnnualReturn)) + 1
	arDue := inc.AddDate(arYears, 0, graceWindowDays)
	arPeriod := fmt.Sprintf("%d", inc.Year()+arYears)
	deadlines = append(deadlines, &Deadline{
		SubjectID:  subj.ID,
		Obligation: ObligationAnnualReturn,
		Period:     arPeriod,
		DueDate:    arDue,
		Completed:  subj.HasFiled(string(ObligationAnnualReturn), arPeriod),
	})

	// Beneficial ownership: fixed date per calendar year.
	boPeriod := fmt.Sprintf("%d", now.Year())
	boDue := time.Date(now.Year(), boDueMonth, boDueDay, 0, 0, 0, 0, time.UTC)
	deadlines = append(deadlines, &Deadline{
		SubjectID:  subj.ID,
		Obligation: ObligationBeneficialOwnership,
		Period:     boPeriod,
		DueDate:    boDue,
		Completed:  subj.HasFiled(string(ObligationBeneficialOwnership), boPeriod),
	})

	return deadlines, nil
}

// Score computes the compliance score from the subject's outstanding
// deadlines. Starts at 100, subtracts a fixed penalty per overdue and
// per due-soon item, floors at 0.
func (e *Engine) Score(subj *subject.Subject) (*Score, error) {
	deadlines, err := e.ComputeDeadlines(subj)
	if err != nil {
		return nil, err
	}
	now := e.now()

	score := &Score{Value: 100}
	for _, d := range deadlines {
		var penalty int
		status := d.Status(now)
		switch status {
		case StatusOverdue:
			penalty = penaltyOverdue
		case StatusDueSoon:
			penalty = penaltyDueSoon
		default:
			continue
		}
		score.Value -= penalty
		score.Issues = append(score.Issues, Issue{
			Obligation: d.Obligation,
			Period:     d.Period,
			Status:     status,
			Penalty:    penalty,
		})
	}
	if score.Value < 0 {
		score.Value = 0
	}
	return score, nil
}

// urgencyNumerator / urgencyDenominator encode the 1.5x urgency multiplier
// in integer arithmetic over minor currency units.
const (
	urgencyNumerator   = 3
	urgencyDenominator = 2
)

// QuoteAmount prices a service request in minor currency units. Urgent
// requests pay the base price times the urgency multiplier, rounded to the
// nearest unit.
func QuoteAmount(basePrice int64, urgent bool) int64 {
	if !urgent {
		return basePrice
	}
	return (basePrice*urgencyNumerator + urgencyDenominator/2) / urgencyDenominator
}
