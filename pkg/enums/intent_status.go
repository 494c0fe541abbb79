package enums

import "fmt"

// IntentStatus tracks the lifecycle of a payment intent.
// Settled and Rejected are terminal.
type IntentStatus string

const (
	IntentStatusCreated  IntentStatus = "created"
	IntentStatusAwaiting IntentStatus = "awaiting_confirmation"
	IntentStatusSettled  IntentStatus = "settled"
	IntentStatusRejected IntentStatus = "rejected"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusCreated,
	IntentStatusAwaiting,
	IntentStatusSettled,
	IntentStatusRejected,
}

// String implements fmt.Stringer.
func (s IntentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentStatus.
func (s IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the intent can no longer transition.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusSettled || s == IntentStatusRejected
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
