// Package ledger aggregates the append-only payments of an expense.
package ledger

import (
	"fmt"

	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/models"
)

// Ledger is a read-only view over the payments of one expense.
type Ledger struct {
	payments []models.Payment
}

// New returns a ledger over payments. The slice is copied.
func New(payments []models.Payment) *Ledger {
	cp := make([]models.Payment, len(payments))
	copy(cp, payments)
	return &Ledger{payments: cp}
}

// Append returns a new ledger with p added. The receiver is unchanged.
func (l *Ledger) Append(p models.Payment) *Ledger {
	next := make([]models.Payment, len(l.payments), len(l.payments)+1)
	copy(next, l.payments)
	return &Ledger{payments: append(next, p)}
}

// Payments returns the recorded payments in order.
func (l *Ledger) Payments() []models.Payment {
	cp := make([]models.Payment, len(l.payments))
	copy(cp, l.payments)
	return cp
}

// TotalPaid is the sum of all payment amounts.
func (l *Ledger) TotalPaid() int64 {
	var sum int64
	for _, p := range l.payments {
		sum += p.Amount
	}
	return sum
}

// PaidBy returns the amount paid per participant key.
func (l *Ledger) PaidBy() map[string]int64 {
	out := make(map[string]int64)
	for _, p := range l.payments {
		out[p.PaidBy.Key()] += p.Amount
	}
	return out
}

// IsComplete reports whether the payments cover total, allowing for one
// minor unit of rounding.
func (l *Ledger) IsComplete(total int64) bool {
	return l.TotalPaid() >= total-calculator.Tolerance
}

// NextStatus is the status an expense moves to given this ledger.
// Cancelled expenses never change; complete ledgers make an expense paid.
func (l *Ledger) NextStatus(e *models.Expense) models.ExpenseStatus {
	if e.Status == models.StatusCancelled || e.Status == models.StatusPaid {
		return e.Status
	}
	if len(l.payments) > 0 && l.IsComplete(e.Total) {
		return models.StatusPaid
	}
	return e.Status
}

// Attribute maps payments onto the split unit of mode. Under BY_GROUP a
// traveler's payment counts for their group; travelers without an active
// group keep paying as themselves and are reported.
func (l *Ledger) Attribute(roster models.Roster, mode models.SplitMode) ([]models.Payment, []calculator.IntegrityWarning) {
	out := make([]models.Payment, len(l.payments))
	copy(out, l.payments)
	if mode != models.SplitByGroup {
		return out, nil
	}

	var warnings []calculator.IntegrityWarning
	warned := make(map[string]bool)
	for i, p := range out {
		if p.PaidBy.Kind != models.KindTraveler {
			continue
		}
		if g, ok := roster.ActiveGroupOf(p.PaidBy.ID); ok {
			out[i].PaidBy = models.GroupRef(g.ID)
			continue
		}
		if !warned[p.PaidBy.Key()] {
			warned[p.PaidBy.Key()] = true
			warnings = append(warnings, calculator.IntegrityWarning{
				Kind:        calculator.WarningUnattributedPayment,
				Participant: p.PaidBy,
				Message:     fmt.Sprintf("payment by %s cannot be credited to a group", roster.Name(p.PaidBy)),
			})
		}
	}
	return out, warnings
}

// Validate checks a payment before it is appended.
func Validate(e *models.Expense, roster models.Roster, p models.Payment) error {
	if e.Status == models.StatusCancelled {
		return &calculator.ValidationError{
			Code:    calculator.CodeExpenseCancelled,
			Message: "cannot record a payment against a cancelled expense",
		}
	}
	if p.Amount <= 0 {
		return &calculator.ValidationError{
			Code:    calculator.CodeInvalidAmount,
			Message: "payment amount must be positive",
		}
	}
	if err := p.PaidBy.Validate(); err != nil {
		return &calculator.ValidationError{Code: calculator.CodeUnknownParticipant, Message: err.Error()}
	}
	if !roster.Has(p.PaidBy) {
		return &calculator.ValidationError{
			Code:    calculator.CodeUnknownParticipant,
			Message: fmt.Sprintf("payer %s is not on the trip roster", p.PaidBy),
		}
	}
	return nil
}
