package enums

import "fmt"

// OutcomeStatus is the canonical payment result vocabulary every gateway
// adapter normalizes into. Approved, Failed and Cancelled are final;
// Pending means another callback or poll decides later.
type OutcomeStatus string

const (
	OutcomeApproved  OutcomeStatus = "approved"
	OutcomePending   OutcomeStatus = "pending"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

var validOutcomeStatuses = []OutcomeStatus{
	OutcomeApproved,
	OutcomePending,
	OutcomeFailed,
	OutcomeCancelled,
}

// String implements fmt.Stringer.
func (s OutcomeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OutcomeStatus.
func (s OutcomeStatus) IsValid() bool {
	for _, candidate := range validOutcomeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether the outcome ends the intent's lifecycle.
func (s OutcomeStatus) IsFinal() bool {
	return s == OutcomeApproved || s == OutcomeFailed || s == OutcomeCancelled
}

// ParseOutcomeStatus converts raw input into an OutcomeStatus.
func ParseOutcomeStatus(value string) (OutcomeStatus, error) {
	for _, candidate := range validOutcomeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome status %q", value)
}
