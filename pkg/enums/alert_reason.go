package enums

import "fmt"

// AlertReason classifies why a settlement needs operator attention.
type AlertReason string

const (
	// AlertReasonStockShort means the gateway approved the charge but at
	// least one line could not reserve stock; the buyer likely needs a refund.
	AlertReasonStockShort AlertReason = "stock_short"
	// AlertReasonSettlementError means settlement aborted for an unexpected
	// reason after the gateway reported the charge approved.
	AlertReasonSettlementError AlertReason = "settlement_error"
	// AlertReasonUnknownIntent means an approved outcome arrived for a
	// transaction no stored intent matches.
	AlertReasonUnknownIntent AlertReason = "unknown_intent"
)

var validAlertReasons = []AlertReason{
	AlertReasonStockShort,
	AlertReasonSettlementError,
	AlertReasonUnknownIntent,
}

// String implements fmt.Stringer.
func (a AlertReason) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AlertReason.
func (a AlertReason) IsValid() bool {
	for _, candidate := range validAlertReasons {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertReason converts raw input into an AlertReason.
func ParseAlertReason(value string) (AlertReason, error) {
	for _, candidate := range validAlertReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert reason %q", value)
}
