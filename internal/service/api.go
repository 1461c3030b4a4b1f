package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/money"
)

// Participants cross the wire in their "kind:id" form, e.g. "group:g1".
// Amounts go in as decimal strings in major units ("300.00") and come back
// as an Amount carrying both minor units and a display string.

// Amount is a money value in a response.
type Amount struct {
	Minor   int64  `json:"minor"`
	Display string `json:"display"`
}

func newAmount(minor int64, currency string) Amount {
	return Amount{Minor: minor, Display: money.Format(minor, currency)}
}

// Expense messages

type ExpenseMessage struct {
	ID                 string   `json:"id"`
	TripID             string   `json:"trip_id"`
	QuoteID            string   `json:"quote_id,omitempty"`
	Title              string   `json:"title"`
	Total              Amount   `json:"total"`
	Currency           string   `json:"currency"`
	SplitMode          string   `json:"split_mode"`
	ParticipationMode  string   `json:"participation_mode"`
	ManualParticipants []string `json:"manual_participants,omitempty"`
	Status             string   `json:"status"`
	RecalcState        string   `json:"recalc_state"`
	Version            int64    `json:"version"`
	CreatedAt          int64    `json:"created_at"`
	UpdatedAt          int64    `json:"updated_at"`
}

type SplitRowMessage struct {
	Participant string `json:"participant"`
	Owed        Amount `json:"owed"`
	Type        string `json:"type"`
	BasisPoints int64  `json:"basis_points,omitempty"`
}

type PaymentMessage struct {
	ID     string `json:"id"`
	PaidBy string `json:"paid_by"`
	Amount Amount `json:"amount"`
	Method string `json:"method"`
	PaidAt int64  `json:"paid_at"`
}

type ReimbursementMessage struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
	Status string `json:"status"`
	Seq    int    `json:"seq"`
	PaidAt int64  `json:"paid_at,omitempty"`
}

type BalanceMessage struct {
	Participant string `json:"participant"`
	Owed        Amount `json:"owed"`
	Paid        Amount `json:"paid"`
	Sent        Amount `json:"sent"`
	Received    Amount `json:"received"`
	Net         Amount `json:"net"`
}

type WarningMessage struct {
	Kind        string `json:"kind"`
	Participant string `json:"participant,omitempty"`
	Message     string `json:"message"`
}

// ExpenseSummary is the response of every call that returns an expense.
type ExpenseSummary struct {
	Expense        ExpenseMessage         `json:"expense"`
	Rows           []SplitRowMessage      `json:"rows"`
	Payments       []PaymentMessage       `json:"payments"`
	Reimbursements []ReimbursementMessage `json:"reimbursements"`
	Balances       []BalanceMessage       `json:"balances"`
	Warnings       []WarningMessage       `json:"warnings,omitempty"`
	TotalPaid      Amount                 `json:"total_paid"`
}

// Requests and responses

type CreateExpenseRequest struct {
	TripID             string   `json:"trip_id"`
	QuoteID            string   `json:"quote_id,omitempty"`
	Title              string   `json:"title,omitempty"`
	Total              string   `json:"total"`
	Currency           string   `json:"currency"`
	SplitMode          string   `json:"split_mode"`
	ParticipationMode  string   `json:"participation_mode,omitempty"`
	ManualParticipants []string `json:"manual_participants,omitempty"`
	Status             string   `json:"status,omitempty"`
}

// ExpenseRequest addresses one expense.
type ExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type ListExpensesRequest struct {
	TripID string `json:"trip_id"`
}

type ListExpensesResponse struct {
	Expenses []ExpenseMessage `json:"expenses"`
}

type ResolveParticipantsResponse struct {
	Participants []string         `json:"participants"`
	Warnings     []WarningMessage `json:"warnings,omitempty"`
}

// CustomRow is one caller-entered row: either an amount or a percentage.
type CustomRow struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount,omitempty"`
	Percent     string `json:"percent,omitempty"`
}

type ComputeSplitRequest struct {
	ExpenseID    string      `json:"expense_id"`
	SplitMode    string      `json:"split_mode,omitempty"`
	Participants []string    `json:"participants,omitempty"`
	Rows         []CustomRow `json:"rows,omitempty"`
}

type ComputeSplitResponse struct {
	Rows  []SplitRowMessage `json:"rows"`
	Total Amount            `json:"total"`
}

type ChangeSplitModeRequest struct {
	ExpenseID string `json:"expense_id"`
	SplitMode string `json:"split_mode"`

	// Confirm acknowledges that leaving CUSTOM discards the entered rows.
	Confirm bool `json:"confirm,omitempty"`
}

type ChangeParticipationModeRequest struct {
	ExpenseID         string   `json:"expense_id"`
	ParticipationMode string   `json:"participation_mode"`
	Participants      []string `json:"participants,omitempty"`
}

type SaveCustomSplitRequest struct {
	ExpenseID string      `json:"expense_id"`
	Rows      []CustomRow `json:"rows"`
}

type RecordPaymentRequest struct {
	ExpenseID string `json:"expense_id"`
	PaidBy    string `json:"paid_by"`
	Amount    string `json:"amount"`
	Method    string `json:"method,omitempty"`
	PaidAt    int64  `json:"paid_at,omitempty"`
}

type RecordPaymentResponse struct {
	PaymentID string                 `json:"payment_id"`
	Status    string                 `json:"status"`
	Pending   []ReimbursementMessage `json:"pending"`
	Summary   ExpenseSummary         `json:"summary"`
}

type MarkReimbursementPaidRequest struct {
	ExpenseID       string `json:"expense_id"`
	ReimbursementID string `json:"reimbursement_id"`
}

// Roster messages

type GroupMessage struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsPayer       bool   `json:"is_payer"`
	CountsInSplit bool   `json:"counts_in_split"`
	Active        bool   `json:"active"`
}

type TravelerMessage struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	GroupID       string `json:"group_id,omitempty"`
	IsPayer       bool   `json:"is_payer"`
	CountsInSplit bool   `json:"counts_in_split"`
	Active        bool   `json:"active"`
}

type RosterMessage struct {
	TripID    string            `json:"trip_id"`
	Groups    []GroupMessage    `json:"groups"`
	Travelers []TravelerMessage `json:"travelers"`
}

type SyncRosterResponse struct {
	// FlaggedExpenses lists the expenses marked NEEDS_RECALC.
	FlaggedExpenses []string `json:"flagged_expenses"`
}

type GetRosterRequest struct {
	TripID string `json:"trip_id"`
}

// Conversions

func badInput(format string, args ...any) error {
	return &calculator.ValidationError{Code: calculator.CodeInvalidAmount, Message: fmt.Sprintf(format, args...)}
}

func parseParticipant(s string) (models.Participant, error) {
	p, err := models.ParseParticipant(strings.TrimSpace(s))
	if err != nil {
		return models.Participant{}, &calculator.ValidationError{Code: calculator.CodeUnknownParticipant, Message: err.Error()}
	}
	return p, nil
}

func parseParticipants(keys []string) ([]models.Participant, error) {
	out := make([]models.Participant, 0, len(keys))
	for _, k := range keys {
		p, err := parseParticipant(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseAmount(s, currency string) (int64, error) {
	minor, err := money.Parse(s, currency)
	if err != nil {
		return 0, badInput("amount %q: %v", s, err)
	}
	return minor, nil
}

// parsePercent turns "33.5" into 3350 basis points.
func parsePercent(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, badInput("percent %q is not a number", s)
	}
	bp := d.Shift(2)
	if !bp.Equal(bp.Truncate(0)) {
		return 0, badInput("percent %q has more than two decimals", s)
	}
	return bp.IntPart(), nil
}

// parseCustomRows reads caller rows as amounts, or as percentages when the
// first row carries one. Mixing both is rejected.
func parseCustomRows(rows []CustomRow, currency string) ([]models.SplitRow, []calculator.PercentShare, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	byPercent := rows[0].Percent != ""

	var (
		fixed  []models.SplitRow
		shares []calculator.PercentShare
	)
	for _, r := range rows {
		if (r.Percent != "") != byPercent || (r.Amount != "") == byPercent {
			return nil, nil, badInput("every row needs exactly one of amount or percent, used the same way")
		}
		p, err := parseParticipant(r.Participant)
		if err != nil {
			return nil, nil, err
		}
		if byPercent {
			bp, err := parsePercent(r.Percent)
			if err != nil {
				return nil, nil, err
			}
			shares = append(shares, calculator.PercentShare{Participant: p, BasisPoints: bp})
			continue
		}
		minor, err := parseAmount(r.Amount, currency)
		if err != nil {
			return nil, nil, err
		}
		fixed = append(fixed, models.SplitRow{Participant: p, Owed: minor, Type: models.SplitTypeFixed})
	}
	return fixed, shares, nil
}

func keysOf(ps []models.Participant) []string {
	if len(ps) == 0 {
		return nil
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

func toExpenseMessage(e *models.Expense) ExpenseMessage {
	return ExpenseMessage{
		ID:                 e.ID,
		TripID:             e.TripID,
		QuoteID:            e.QuoteID,
		Title:              e.Title,
		Total:              newAmount(e.Total, e.Currency),
		Currency:           e.Currency,
		SplitMode:          string(e.SplitMode),
		ParticipationMode:  string(e.ParticipationMode),
		ManualParticipants: keysOf(e.ManualParticipants),
		Status:             string(e.Status),
		RecalcState:        string(e.RecalcState),
		Version:            e.Version,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func toRowMessages(rows []models.SplitRow, currency string) []SplitRowMessage {
	out := make([]SplitRowMessage, len(rows))
	for i, r := range rows {
		out[i] = SplitRowMessage{
			Participant: r.Participant.Key(),
			Owed:        newAmount(r.Owed, currency),
			Type:        string(r.Type),
			BasisPoints: r.BasisPoints,
		}
	}
	return out
}

func toReimbursementMessages(rs []models.Reimbursement, currency string) []ReimbursementMessage {
	out := make([]ReimbursementMessage, len(rs))
	for i, r := range rs {
		out[i] = ReimbursementMessage{
			ID:     r.ID,
			From:   r.From.Key(),
			To:     r.To.Key(),
			Amount: newAmount(r.Amount, currency),
			Status: string(r.Status),
			Seq:    r.Seq,
			PaidAt: r.PaidAt,
		}
	}
	return out
}

func toWarningMessages(ws []calculator.IntegrityWarning) []WarningMessage {
	out := make([]WarningMessage, 0, len(ws))
	for _, w := range ws {
		msg := WarningMessage{Kind: string(w.Kind), Message: w.Message}
		if !w.Participant.IsZero() {
			msg.Participant = w.Participant.Key()
		}
		out = append(out, msg)
	}
	return out
}

func toSummary(res *Result) ExpenseSummary {
	currency := res.Expense.Currency

	payments := make([]PaymentMessage, len(res.Payments))
	for i, p := range res.Payments {
		payments[i] = PaymentMessage{
			ID:     p.ID,
			PaidBy: p.PaidBy.Key(),
			Amount: newAmount(p.Amount, currency),
			Method: p.Method,
			PaidAt: p.PaidAt,
		}
	}

	balances := make([]BalanceMessage, len(res.Settlement.Balances))
	for i, b := range res.Settlement.Balances {
		balances[i] = BalanceMessage{
			Participant: b.Participant.Key(),
			Owed:        newAmount(b.Owed, currency),
			Paid:        newAmount(b.Paid, currency),
			Sent:        newAmount(b.Sent, currency),
			Received:    newAmount(b.Received, currency),
			Net:         newAmount(b.Net, currency),
		}
	}

	return ExpenseSummary{
		Expense:        toExpenseMessage(res.Expense),
		Rows:           toRowMessages(res.Rows, currency),
		Payments:       payments,
		Reimbursements: toReimbursementMessages(res.Reimbursements, currency),
		Balances:       balances,
		Warnings:       toWarningMessages(res.Warnings),
		TotalPaid:      newAmount(res.TotalPaid(), currency),
	}
}

func fromRosterMessage(m *RosterMessage) models.Roster {
	roster := models.Roster{TripID: m.TripID}
	for _, g := range m.Groups {
		roster.Groups = append(roster.Groups, models.Group{
			ID:            g.ID,
			TripID:        m.TripID,
			Name:          g.Name,
			IsPayer:       g.IsPayer,
			CountsInSplit: g.CountsInSplit,
			Active:        g.Active,
		})
	}
	for _, t := range m.Travelers {
		roster.Travelers = append(roster.Travelers, models.Traveler{
			ID:            t.ID,
			TripID:        m.TripID,
			Name:          t.Name,
			GroupID:       t.GroupID,
			IsPayer:       t.IsPayer,
			CountsInSplit: t.CountsInSplit,
			Active:        t.Active,
		})
	}
	return roster
}

func toRosterMessage(r models.Roster) *RosterMessage {
	m := &RosterMessage{
		TripID:    r.TripID,
		Groups:    make([]GroupMessage, len(r.Groups)),
		Travelers: make([]TravelerMessage, len(r.Travelers)),
	}
	for i, g := range r.Groups {
		m.Groups[i] = GroupMessage{
			ID:            g.ID,
			Name:          g.Name,
			IsPayer:       g.IsPayer,
			CountsInSplit: g.CountsInSplit,
			Active:        g.Active,
		}
	}
	for i, t := range r.Travelers {
		m.Travelers[i] = TravelerMessage{
			ID:            t.ID,
			Name:          t.Name,
			GroupID:       t.GroupID,
			IsPayer:       t.IsPayer,
			CountsInSplit: t.CountsInSplit,
			Active:        t.Active,
		}
	}
	return m
}
