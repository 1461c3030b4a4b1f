package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/tripsplit/internal/models"
)

// Balance is the position of one participant on one expense.
type Balance struct {
	Participant models.Participant
	Owed        int64 // From split rows
	Paid        int64 // From payments
	Sent        int64 // Paid reimbursements sent
	Received    int64 // Paid reimbursements received

	// Net is Paid - Owed + Sent - Received. Positive = creditor, negative = debtor.
	Net int64
}

// Transfer is a computed instruction that From pays To.
type Transfer struct {
	From   models.Participant
	To     models.Participant
	Amount int64
}

// Settlement is the output of Settle.
type Settlement struct {
	Balances  []Balance
	Transfers []Transfer
	Creditors int
	Debtors   int
	Warnings  []IntegrityWarning
}

// Epsilon is the largest imbalance, in minor units, Settle leaves
// unsettled. Rounding a split to minor units can leave a participant one
// unit off, and that is not worth a transfer.
const Epsilon int64 = 1

type position struct {
	participant models.Participant
	remaining   int64
}

// Settle nets what each participant owes against what they paid and
// returns the transfers that zero every balance.
//
// Algorithm:
//   - balance = paid - owed + sent - received, where sent/received come
//     from reimbursements already paid (money that has moved)
//   - creditors (balance > Epsilon) and debtors (balance < -Epsilon) are
//     ordered by participant key
//   - greedy two-pointer matching: each step transfers min(credit, debt)
//     from the current debtor to the current creditor and advances the
//     side that reached zero, stopping when either side runs out
//
// At most creditors + debtors - 1 transfers are emitted. Only
// reimbursements with status paid are taken from settled.
func Settle(owed []models.SplitRow, payments []models.Payment, settled []models.Reimbursement) Settlement {
	balances := make(map[string]*Balance)
	get := func(p models.Participant) *Balance {
		b, ok := balances[p.Key()]
		if !ok {
			b = &Balance{Participant: p}
			balances[p.Key()] = b
		}
		return b
	}

	for _, r := range owed {
		get(r.Participant).Owed += r.Owed
	}
	for _, p := range payments {
		get(p.PaidBy).Paid += p.Amount
	}

	var paidBack []models.Reimbursement
	for _, r := range settled {
		if r.Status != models.ReimbursementPaid {
			continue
		}
		paidBack = append(paidBack, r)
	}

	// Positions before any paid reimbursement, to check them for consistency.
	before := make(map[string]int64, len(balances))
	for k, b := range balances {
		before[k] = b.Paid - b.Owed
	}

	var warnings []IntegrityWarning
	for _, r := range paidBack {
		get(r.From).Sent += r.Amount
		get(r.To).Received += r.Amount
		if before[r.From.Key()] >= 0 || before[r.To.Key()] <= 0 {
			warnings = append(warnings, IntegrityWarning{
				Kind:        WarningPaidReimbursement,
				Participant: r.From,
				Message: fmt.Sprintf("paid reimbursement %s -> %s of %d no longer matches an outstanding imbalance",
					r.From, r.To, r.Amount),
			})
		}
	}

	keys := make([]string, 0, len(balances))
	for k := range balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := Settlement{Warnings: warnings}
	var creditors, debtors []position
	for _, k := range keys {
		b := balances[k]
		b.Net = b.Paid - b.Owed + b.Sent - b.Received
		result.Balances = append(result.Balances, *b)

		switch {
		case b.Net > Epsilon:
			creditors = append(creditors, position{participant: b.Participant, remaining: b.Net})
		case b.Net < -Epsilon:
			debtors = append(debtors, position{participant: b.Participant, remaining: -b.Net})
		}
	}
	result.Creditors = len(creditors)
	result.Debtors = len(debtors)

	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := &debtors[i], &creditors[j]

		amount := d.remaining
		if c.remaining < amount {
			amount = c.remaining
		}
		result.Transfers = append(result.Transfers, Transfer{
			From:   d.participant,
			To:     c.participant,
			Amount: amount,
		})

		d.remaining -= amount
		c.remaining -= amount
		if d.remaining == 0 {
			i++
		}
		if c.remaining == 0 {
			j++
		}
	}

	return result
}

// Residual returns, per participant key, the balance left after applying
// transfers to the settlement balances. When the expense is fully paid,
// entries are non-zero only where a balance within Epsilon was left alone,
// or on the participant that absorbed such a balance on the other side.
func (s Settlement) Residual() map[string]int64 {
	left := make(map[string]int64, len(s.Balances))
	for _, b := range s.Balances {
		left[b.Participant.Key()] = b.Net
	}
	for _, t := range s.Transfers {
		left[t.From.Key()] += t.Amount
		left[t.To.Key()] -= t.Amount
	}
	return left
}
