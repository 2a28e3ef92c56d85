package schedule

import "errors"

// Reason discriminates the business rule a candidate reservation broke.
type Reason string

const (
	ReasonEndBeforeStart   Reason = "end_before_start"
	ReasonDurationExceeded Reason = "duration_exceeded"
	ReasonInPast           Reason = "in_past"
	ReasonClosedDay        Reason = "closed_day"
	ReasonOutsideHours     Reason = "outside_opening_hours"
	ReasonMisaligned       Reason = "misaligned_slot"
	ReasonConflict         Reason = "slot_conflict"
)

// RuleError is a business-rule violation: expected, recoverable, and meant
// for user display. Infrastructure failures (query errors, lost
// connections) are never wrapped in a RuleError.
type RuleError struct {
	Reason  Reason
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleErr(reason Reason, msg string) error {
	return &RuleError{Reason: reason, Message: msg}
}

// AsRuleError unwraps err into a RuleError, or returns nil if err is an
// infrastructure fault (or nil).
func AsRuleError(err error) *RuleError {
	var re *RuleError
	if errors.As(err, &re) {
		return re
	}
	return nil
}
