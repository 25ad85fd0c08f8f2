package filing

import "filing_compliance_bot/internal/domain/deadline"

// ServiceCode is a shortcode a user can send over the conversational
// channel to request a paid filing service or a free query.
type ServiceCode string

const (
	ServiceAnnualReturn        ServiceCode = "AR"
	ServiceBeneficialOwnership ServiceCode = "BO"
	ServiceDirectorAmendment   ServiceCode = "DA"
	ServiceComplianceScore     ServiceCode = "SCORE"
)

// serviceInfo keeps pricing and obligation mapping in one closed table so
// adding a service code is a single-spot change.
var serviceInfo = map[ServiceCode]struct {
	basePrice  int64 // minor currency units
	obligation deadline.ObligationType
}{
	ServiceAnnualReturn:        {199, deadline.ObligationAnnualReturn},
	ServiceBeneficialOwnership: {99, deadline.ObligationBeneficialOwnership},
	ServiceDirectorAmendment:   {79, deadline.ObligationDirectorAmendment},
	ServiceComplianceScore:     {0, ""},
}

// ParseServiceCode returns the service code for a shortcode token, and
// whether the token is one.
func ParseServiceCode(token string) (ServiceCode, bool) {
	code := ServiceCode(token)
	_, ok := serviceInfo[code]
	return code, ok
}

// BasePrice returns the fixed base price of the service in minor units.
func (c ServiceCode) BasePrice() int64 {
	return serviceInfo[c].basePrice
}

// Obligation returns the obligation type this service files, empty for
// query-only codes.
func (c ServiceCode) Obligation() deadline.ObligationType {
	return serviceInfo[c].obligation
}
