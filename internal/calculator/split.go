package calculator

import (
	"math"
	"sort"
	"strconv"

	"github.com/mmynk/tripsplit/internal/models"
)

// Tolerance is the largest difference, in minor units, accepted between a
// custom split and the expense total.
const Tolerance int64 = 1

// FullPercent is 100% expressed in basis points.
const FullPercent int64 = 10000

// MaxPercentTotal is the largest total PercentSplit can scale by basis
// points without overflowing.
const MaxPercentTotal = math.MaxInt64 / FullPercent

// AutoDistribute divides total into n shares that sum to total exactly.
// When total is not divisible by n, the first total mod n shares carry one
// extra minor unit.
func AutoDistribute(total int64, n int) ([]int64, error) {
	if n <= 0 {
		return nil, invalid(CodeNoParticipants, "cannot split among nobody")
	}
	if total < 0 {
		return nil, invalid(CodeInvalidAmount, "total cannot be negative")
	}
	share := total / int64(n)
	remainder := total % int64(n)

	shares := make([]int64, n)
	for i := range shares {
		shares[i] = share
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares, nil
}

// EqualSplit divides total equally among participants. Rows come back
// sorted by participant key, so remainder units always land on the same
// participants for the same input.
func EqualSplit(expenseID string, total int64, participants []models.Participant) ([]models.SplitRow, error) {
	unique := models.UniqueParticipants(participants)
	if len(unique) != len(participants) {
		return nil, invalid(CodeDuplicateParticipant, "participants must be unique")
	}
	shares, err := AutoDistribute(total, len(unique))
	if err != nil {
		return nil, err
	}

	rows := make([]models.SplitRow, len(unique))
	for i, p := range unique {
		rows[i] = models.SplitRow{
			ExpenseID:   expenseID,
			Participant: p,
			Owed:        shares[i],
			Type:        models.SplitTypeEqual,
		}
	}
	return rows, nil
}

// CustomSplit accepts caller-supplied amounts. The rows must sum to total
// within Tolerance; otherwise the ValidationError carries total minus the
// sum of the rows.
func CustomSplit(expenseID string, total int64, rows []models.SplitRow) ([]models.SplitRow, error) {
	if len(rows) == 0 {
		return nil, invalid(CodeNoParticipants, "cannot split among nobody")
	}

	seen := make(map[string]bool, len(rows))
	var sum int64
	out := make([]models.SplitRow, len(rows))
	for i, r := range rows {
		if err := r.Participant.Validate(); err != nil {
			return nil, invalid(CodeUnknownParticipant, "row %d: %v", i+1, err)
		}
		if seen[r.Participant.Key()] {
			return nil, invalid(CodeDuplicateParticipant, "participant %s appears more than once", r.Participant)
		}
		seen[r.Participant.Key()] = true
		if r.Owed < 0 {
			return nil, invalid(CodeInvalidAmount, "amount for %s cannot be negative", r.Participant)
		}
		sum += r.Owed
		out[i] = models.SplitRow{
			ExpenseID:   expenseID,
			Participant: r.Participant,
			Owed:        r.Owed,
			Type:        models.SplitTypeFixed,
		}
	}

	diff := total - sum
	if diff > Tolerance || diff < -Tolerance {
		return nil, &ValidationError{
			Code:       CodeCustomSumMismatch,
			Message:    mismatchMessage(diff),
			Difference: diff,
		}
	}

	sortRows(out)
	return out, nil
}

func mismatchMessage(diff int64) string {
	if diff > 0 {
		return "custom split is short of the total by " + strconv.FormatInt(diff, 10) + " minor units"
	}
	return "custom split exceeds the total by " + strconv.FormatInt(-diff, 10) + " minor units"
}

// PercentShare is one participant's requested share in basis points.
type PercentShare struct {
	Participant models.Participant
	BasisPoints int64
}

// PercentSplit divides total by percentage shares that must add up to
// 100%. Rounding uses the largest remainder method, ties broken by
// participant key, so the rows always sum to total exactly.
func PercentSplit(expenseID string, total int64, shares []PercentShare) ([]models.SplitRow, error) {
	if len(shares) == 0 {
		return nil, invalid(CodeNoParticipants, "cannot split among nobody")
	}
	if total < 0 {
		return nil, invalid(CodeInvalidAmount, "total cannot be negative")
	}
	if total > MaxPercentTotal {
		return nil, invalid(CodeInvalidAmount, "total %d is too large for a percent split", total)
	}

	sorted := make([]PercentShare, len(shares))
	copy(sorted, shares)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Participant.Key() < sorted[j].Participant.Key() })

	var points int64
	for i, s := range sorted {
		if err := s.Participant.Validate(); err != nil {
			return nil, invalid(CodeUnknownParticipant, "share %d: %v", i+1, err)
		}
		if i > 0 && sorted[i-1].Participant == s.Participant {
			return nil, invalid(CodeDuplicateParticipant, "participant %s appears more than once", s.Participant)
		}
		if s.BasisPoints < 0 {
			return nil, invalid(CodeInvalidAmount, "share for %s cannot be negative", s.Participant)
		}
		points += s.BasisPoints
	}
	if points != FullPercent {
		return nil, &ValidationError{
			Code:       CodePercentSumMismatch,
			Message:    "percent shares must add up to 100%",
			Difference: FullPercent - points,
		}
	}

	rows := make([]models.SplitRow, len(sorted))
	remainders := make([]int64, len(sorted))
	var assigned int64
	for i, s := range sorted {
		product := total * s.BasisPoints
		rows[i] = models.SplitRow{
			ExpenseID:   expenseID,
			Participant: s.Participant,
			Owed:        product / FullPercent,
			Type:        models.SplitTypePercent,
			BasisPoints: s.BasisPoints,
		}
		remainders[i] = product % FullPercent
		assigned += rows[i].Owed
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for k := int64(0); k < total-assigned; k++ {
		rows[order[k]].Owed++
	}
	return rows, nil
}

// SumOwed returns the total owed over rows.
func SumOwed(rows []models.SplitRow) int64 {
	var sum int64
	for _, r := range rows {
		sum += r.Owed
	}
	return sum
}

func sortRows(rows []models.SplitRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Participant.Key() < rows[j].Participant.Key() })
}
