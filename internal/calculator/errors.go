package calculator

import (
	"errors"
	"fmt"

	"github.com/mmynk/tripsplit/internal/models"
)

// ValidationCode identifies the user-correctable problem.
type ValidationCode string

const (
	CodeNoParticipants       ValidationCode = "no_participants"
	CodeEmptyManualList      ValidationCode = "empty_manual_list"
	CodeUnknownParticipant   ValidationCode = "unknown_participant"
	CodeDuplicateParticipant ValidationCode = "duplicate_participant"
	CodeInvalidAmount        ValidationCode = "invalid_amount"
	CodeCustomSumMismatch    ValidationCode = "custom_sum_mismatch"
	CodePercentSumMismatch   ValidationCode = "percent_sum_mismatch"
	CodeConfirmationRequired ValidationCode = "confirmation_required"
	CodeExpenseCancelled     ValidationCode = "expense_cancelled"
	CodeInvalidMode          ValidationCode = "invalid_mode"
	CodeInvalidExpense       ValidationCode = "invalid_expense"
)

// ValidationError blocks the triggering action. Difference carries the
// exact signed amount for sum mismatches: positive is a shortfall still to
// be assigned, negative an overage.
type ValidationError struct {
	Code       ValidationCode
	Message    string
	Difference int64
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code ValidationCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsValidation returns the ValidationError in err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// WarningKind identifies a non-fatal integrity problem.
type WarningKind string

const (
	WarningUngroupedTraveler   WarningKind = "ungrouped_traveler"
	WarningOwedTotalMismatch   WarningKind = "owed_total_mismatch"
	WarningPaidReimbursement   WarningKind = "paid_reimbursement_inconsistent"
	WarningUnattributedPayment WarningKind = "unattributed_payment"
)

// IntegrityWarning is shown to the user but never blocks an action.
type IntegrityWarning struct {
	Kind        WarningKind
	Participant models.Participant
	Message     string
}

func (w IntegrityWarning) String() string {
	return string(w.Kind) + ": " + w.Message
}
