package models

import "fmt"

// SplitMode is the rule used to divide an expense among participants.
type SplitMode string

const (
	SplitByGroup   SplitMode = "BY_GROUP"
	SplitPerPerson SplitMode = "PER_PERSON"
	SplitCustom    SplitMode = "CUSTOM"
)

// ParseSplitMode validates s as a split mode.
func ParseSplitMode(s string) (SplitMode, error) {
	switch m := SplitMode(s); m {
	case SplitByGroup, SplitPerPerson, SplitCustom:
		return m, nil
	}
	return "", fmt.Errorf("unknown split mode %q", s)
}

// IsRule reports whether the mode computes rows automatically.
func (m SplitMode) IsRule() bool {
	return m == SplitByGroup || m == SplitPerPerson
}

// ParticipationMode selects which participants take part in a split.
type ParticipationMode string

const (
	ParticipationInherit    ParticipationMode = "INHERIT"
	ParticipationAll        ParticipationMode = "ALL"
	ParticipationPayingOnly ParticipationMode = "PAYING_ONLY"
	ParticipationManual     ParticipationMode = "MANUAL"
)

// ParseParticipationMode validates s as a participation mode.
func ParseParticipationMode(s string) (ParticipationMode, error) {
	switch m := ParticipationMode(s); m {
	case ParticipationInherit, ParticipationAll, ParticipationPayingOnly, ParticipationManual:
		return m, nil
	}
	return "", fmt.Errorf("unknown participation mode %q", s)
}

// ExpenseStatus is the lifecycle state of an expense.
type ExpenseStatus string

const (
	StatusPlanned   ExpenseStatus = "planned"
	StatusConfirmed ExpenseStatus = "confirmed"
	StatusPaid      ExpenseStatus = "paid"
	StatusCancelled ExpenseStatus = "cancelled"
)

// RecalcState tracks whether derived rows are up to date.
type RecalcState string

const (
	RecalcClean       RecalcState = "CLEAN"
	RecalcNeedsRecalc RecalcState = "NEEDS_RECALC"
)

// Expense is a shared cost of a trip.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// TripID is the trip the expense belongs to.
	TripID string

	// QuoteID is the accepted quote the expense was created from, if any.
	QuoteID string

	// Title is the human-readable name, usually the vendor or quote title.
	Title string

	// Total is the amount to split, in minor units of Currency.
	Total int64

	// Currency is the ISO 4217 code of Total.
	Currency string

	SplitMode         SplitMode
	ParticipationMode ParticipationMode

	// ManualParticipants is the caller-chosen participant list, used only
	// when ParticipationMode is MANUAL.
	ManualParticipants []Participant

	Status      ExpenseStatus
	RecalcState RecalcState

	// Version is bumped on every update and checked optimistically.
	Version int64

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// SplitType records how a split row amount was obtained.
type SplitType string

const (
	SplitTypeEqual   SplitType = "equal"
	SplitTypeFixed   SplitType = "fixed"
	SplitTypePercent SplitType = "percent"
)

// SplitRow is what one participant owes for one expense.
type SplitRow struct {
	ExpenseID   string
	Participant Participant
	Owed        int64
	Type        SplitType

	// BasisPoints is the requested share for percent rows (10000 = 100%).
	BasisPoints int64
}

// Payment is money actually paid towards an expense. Payments are never
// edited; corrections are new payments.
type Payment struct {
	ID        string
	ExpenseID string
	PaidBy    Participant
	Amount    int64
	Method    string

	// PaidAt is a Unix timestamp.
	PaidAt int64
}

// ReimbursementStatus tells whether a transfer has happened.
type ReimbursementStatus string

const (
	ReimbursementPending ReimbursementStatus = "pending"
	ReimbursementPaid    ReimbursementStatus = "paid"
)

// Reimbursement is an instruction that From should transfer Amount to To.
// Pending rows are recomputed on every recalculation; paid rows record
// money that already moved and are never touched again.
type Reimbursement struct {
	ID        string
	ExpenseID string
	From      Participant
	To        Participant
	Amount    int64
	Status    ReimbursementStatus

	// Seq orders the reimbursements of one recalculation.
	Seq int

	// PaidAt is a Unix timestamp, zero while pending.
	PaidAt int64
}
