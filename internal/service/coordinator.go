package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/ledger"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/money"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Trigger names the event that caused a recalculation.
type Trigger string

const (
	TriggerCreate            Trigger = "create"
	TriggerSplitMode         Trigger = "split_mode"
	TriggerParticipation     Trigger = "participation"
	TriggerPayment           Trigger = "payment"
	TriggerCustomSplit       Trigger = "custom_split"
	TriggerRecalculate       Trigger = "recalculate"
	TriggerStatus            Trigger = "status"
	TriggerReimbursementPaid Trigger = "reimbursement_paid"
)

var (
	// expenseNamespace derives expense IDs from (trip, quote).
	expenseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:tripsplit:expense"))

	// reimbursementNamespace derives pending reimbursement IDs from the
	// inputs of the settlement that produced them.
	reimbursementNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:tripsplit:reimbursement"))
)

// ExpenseIDForQuote is the ID an expense created from the quote receives.
func ExpenseIDForQuote(tripID, quoteID string) string {
	return uuid.NewSHA1(expenseNamespace, []byte(tripID+"/"+quoteID)).String()
}

// Coordinator reruns the split and settlement pipeline whenever an input
// of an expense changes and persists the outcome in one transaction.
//
// It does not serialize callers: two concurrent calls on the same expense
// race on the version column and the loser gets storage.ErrConflict. Wrap
// calls in a lock.Locker to queue them instead.
type Coordinator struct {
	store   storage.Store
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMetrics records recalculation metrics on m.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// WithStoreTimeout bounds the store work of each operation.
func WithStoreTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store storage.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   store,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the state of an expense after an operation.
type Result struct {
	Expense  *models.Expense
	Rows     []models.SplitRow
	Payments []models.Payment

	// Reimbursements lists paid history first, then the pending set.
	Reimbursements []models.Reimbursement

	Settlement calculator.Settlement
	Warnings   []calculator.IntegrityWarning
}

// Pending returns the pending reimbursements of the result.
func (r *Result) Pending() []models.Reimbursement {
	var out []models.Reimbursement
	for _, rb := range r.Reimbursements {
		if rb.Status == models.ReimbursementPending {
			out = append(out, rb)
		}
	}
	return out
}

// TotalPaid is the sum of the recorded payments.
func (r *Result) TotalPaid() int64 {
	return ledger.New(r.Payments).TotalPaid()
}

// expenseState is everything a recalculation reads.
type expenseState struct {
	expense        *models.Expense
	roster         models.Roster
	rows           []models.SplitRow
	payments       []models.Payment
	reimbursements []models.Reimbursement
}

// outcome is everything a recalculation writes.
type outcome struct {
	rows       []models.SplitRow
	pending    []models.Reimbursement
	status     models.ExpenseStatus
	settlement calculator.Settlement
	warnings   []calculator.IntegrityWarning
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// load reads the expense, then its roster, rows, payments and
// reimbursements concurrently.
func (c *Coordinator) load(ctx context.Context, expenseID string) (*expenseState, error) {
	expense, err := c.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	st := &expenseState{expense: expense}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.roster, err = c.store.GetRoster(gctx, expense.TripID)
		return err
	})
	g.Go(func() error {
		var err error
		st.rows, err = c.store.ListSplitRows(gctx, expenseID)
		return err
	})
	g.Go(func() error {
		var err error
		st.payments, err = c.store.ListPayments(gctx, expenseID)
		return err
	})
	g.Go(func() error {
		var err error
		st.reimbursements, err = c.store.ListReimbursements(gctx, expenseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

// compute runs resolve, split and settle over st. It never writes.
func (c *Coordinator) compute(st *expenseState) (*outcome, error) {
	e := st.expense
	out := &outcome{status: ledger.New(st.payments).NextStatus(e)}

	if e.Status == models.StatusCancelled {
		out.rows = st.rows
		return out, nil
	}

	if e.SplitMode == models.SplitCustom {
		out.rows = st.rows
	} else {
		res, err := calculator.ResolveParticipants(st.roster, e.SplitMode, e.ParticipationMode, e.ManualParticipants)
		if err != nil {
			return nil, err
		}
		out.warnings = append(out.warnings, res.Warnings...)
		out.rows, err = calculator.EqualSplit(e.ID, e.Total, res.Participants)
		if err != nil {
			return nil, err
		}
	}

	if owed := calculator.SumOwed(out.rows); owed != e.Total {
		out.warnings = append(out.warnings, calculator.IntegrityWarning{
			Kind: calculator.WarningOwedTotalMismatch,
			Message: fmt.Sprintf("split rows add up to %s but the expense total is %s",
				money.Format(owed, e.Currency), money.Format(e.Total, e.Currency)),
		})
	}

	payments, warnings := ledger.New(st.payments).Attribute(st.roster, e.SplitMode)
	out.warnings = append(out.warnings, warnings...)

	out.settlement = calculator.Settle(out.rows, payments, st.reimbursements)
	out.warnings = append(out.warnings, out.settlement.Warnings...)
	out.pending = pendingReimbursements(e.ID, st, out.settlement.Transfers)
	return out, nil
}

// pendingReimbursements turns transfers into pending rows whose IDs depend
// only on the settlement inputs, so an unchanged expense yields the same
// rows on every run.
func pendingReimbursements(expenseID string, st *expenseState, transfers []calculator.Transfer) []models.Reimbursement {
	var paid int
	for _, r := range st.reimbursements {
		if r.Status == models.ReimbursementPaid {
			paid++
		}
	}

	out := make([]models.Reimbursement, len(transfers))
	for i, t := range transfers {
		name := fmt.Sprintf("%s/%d/%d/%d/%s/%s/%d", expenseID, paid, len(st.payments), i, t.From.Key(), t.To.Key(), t.Amount)
		out[i] = models.Reimbursement{
			ID:        uuid.NewSHA1(reimbursementNamespace, []byte(name)).String(),
			ExpenseID: expenseID,
			From:      t.From,
			To:        t.To,
			Amount:    t.Amount,
			Status:    models.ReimbursementPending,
			Seq:       i,
		}
	}
	return out
}

// save writes out for e: expense row (version checked), split rows and a
// fresh pending set.
func save(ctx context.Context, tx storage.Tx, e *models.Expense, out *outcome) error {
	e.Status = out.status
	e.RecalcState = models.RecalcClean
	if err := tx.UpdateExpense(ctx, e); err != nil {
		return err
	}
	if err := tx.ReplaceSplitRows(ctx, e.ID, out.rows); err != nil {
		return err
	}
	if err := tx.DeleteReimbursements(ctx, e.ID, models.ReimbursementPending); err != nil {
		return err
	}
	return tx.InsertReimbursements(ctx, out.pending)
}

// recompute loads the expense, applies change, reruns the pipeline and
// persists the outcome. write runs first inside the same transaction.
//
// A ValidationError from change or the pipeline leaves the store as it
// was, except for an explicit Recalculate which flags the expense
// NEEDS_RECALC. Failed writes flag it NEEDS_RECALC too.
func (c *Coordinator) recompute(
	ctx context.Context,
	expenseID string,
	trigger Trigger,
	change func(st *expenseState) error,
	write func(ctx context.Context, tx storage.Tx) error,
) (*Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	st, err := c.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if change != nil {
		if err := change(st); err != nil {
			c.metrics.Recalculation(string(trigger), metrics.OutcomeRejected)
			return nil, err
		}
	}

	out, err := c.compute(st)
	if err != nil {
		c.metrics.Recalculation(string(trigger), metrics.OutcomeRejected)
		if trigger == TriggerRecalculate {
			c.markNeedsRecalc(ctx, expenseID)
		}
		return nil, err
	}

	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		if write != nil {
			if err := write(ctx, tx); err != nil {
				return err
			}
		}
		return save(ctx, tx, st.expense, out)
	})
	if err != nil {
		c.metrics.Recalculation(string(trigger), metrics.OutcomeFailed)
		if !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrNotFound) {
			c.markNeedsRecalc(ctx, expenseID)
		}
		return nil, err
	}

	c.observe(st.expense, trigger, out)
	return newResult(st, out), nil
}

// markNeedsRecalc flags the stored expense after a failed recompute. It is
// best effort: the original error is what the caller sees.
func (c *Coordinator) markNeedsRecalc(ctx context.Context, expenseID string) {
	ctx, cancel := c.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	err := c.store.WithTx(ctx, func(tx storage.Tx) error {
		e, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if e.RecalcState == models.RecalcNeedsRecalc {
			return nil
		}
		e.RecalcState = models.RecalcNeedsRecalc
		return tx.UpdateExpense(ctx, e)
	})
	if err != nil {
		slog.Error("Failed to flag expense for recalculation", "expense_id", expenseID, "error", err)
	}
}

func (c *Coordinator) observe(e *models.Expense, trigger Trigger, out *outcome) {
	c.metrics.Recalculation(string(trigger), metrics.OutcomeOK)
	c.metrics.Settlement(len(out.pending))
	for _, w := range out.warnings {
		c.metrics.Warning(string(w.Kind))
		slog.Warn("Integrity warning",
			"expense_id", e.ID,
			"kind", w.Kind,
			"participant", w.Participant.Key(),
			"message", w.Message,
		)
	}
	slog.Info("Expense recalculated",
		"expense_id", e.ID,
		"trigger", trigger,
		"status", e.Status,
		"version", e.Version,
		"rows", len(out.rows),
		"pending", len(out.pending),
		"warnings", len(out.warnings),
	)
}

func newResult(st *expenseState, out *outcome) *Result {
	res := &Result{
		Expense:    st.expense,
		Rows:       out.rows,
		Payments:   st.payments,
		Settlement: out.settlement,
		Warnings:   out.warnings,
	}
	for _, r := range st.reimbursements {
		if r.Status == models.ReimbursementPaid {
			res.Reimbursements = append(res.Reimbursements, r)
		}
	}
	res.Reimbursements = append(res.Reimbursements, out.pending...)
	return res
}

func rejectCancelled(e *models.Expense) error {
	if e.Status == models.StatusCancelled {
		return &calculator.ValidationError{
			Code:    calculator.CodeExpenseCancelled,
			Message: fmt.Sprintf("expense %s is cancelled", e.ID),
		}
	}
	return nil
}

// QuoteInput describes an accepted quote being turned into an expense.
type QuoteInput struct {
	TripID  string
	QuoteID string
	Title   string

	// Total is in minor units of Currency.
	Total    int64
	Currency string

	SplitMode          models.SplitMode
	ParticipationMode  models.ParticipationMode
	ManualParticipants []models.Participant

	// Status is planned or confirmed; empty means confirmed.
	Status models.ExpenseStatus
}

func (in QuoteInput) expense(now time.Time) (*models.Expense, error) {
	if strings.TrimSpace(in.TripID) == "" {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidExpense, Message: "trip is required"}
	}
	if in.Total < 0 {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidAmount, Message: "total cannot be negative"}
	}
	currency, err := money.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidExpense, Message: err.Error()}
	}
	if _, err := models.ParseSplitMode(string(in.SplitMode)); err != nil {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidMode, Message: err.Error()}
	}
	policy := in.ParticipationMode
	if policy == "" {
		policy = models.ParticipationInherit
	}
	if _, err := models.ParseParticipationMode(string(policy)); err != nil {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidMode, Message: err.Error()}
	}
	status := in.Status
	switch status {
	case "":
		status = models.StatusConfirmed
	case models.StatusPlanned, models.StatusConfirmed:
	default:
		return nil, &calculator.ValidationError{
			Code:    calculator.CodeInvalidExpense,
			Message: fmt.Sprintf("a new expense cannot start as %s", status),
		}
	}

	id := uuid.New().String()
	if in.QuoteID != "" {
		id = ExpenseIDForQuote(in.TripID, in.QuoteID)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("Expense - %s", now.Format("Jan 2, 2006"))
	}

	var manual []models.Participant
	if policy == models.ParticipationManual {
		manual = models.UniqueParticipants(in.ManualParticipants)
	}

	return &models.Expense{
		ID:                 id,
		TripID:             in.TripID,
		QuoteID:            in.QuoteID,
		Title:              title,
		Total:              in.Total,
		Currency:           currency,
		SplitMode:          in.SplitMode,
		ParticipationMode:  policy,
		ManualParticipants: manual,
		Status:             status,
		RecalcState:        models.RecalcClean,
		Version:            1,
		CreatedAt:          now.Unix(),
		UpdatedAt:          now.Unix(),
	}, nil
}

// CreateFromQuote creates an expense and runs its first recalculation.
// Creating the same quote twice returns the existing expense.
func (c *Coordinator) CreateFromQuote(ctx context.Context, in QuoteInput) (*Result, error) {
	e, err := in.expense(c.now())
	if err != nil {
		c.metrics.Recalculation(string(TriggerCreate), metrics.OutcomeRejected)
		return nil, err
	}

	if in.QuoteID != "" {
		if _, err := c.store.GetExpense(ctx, e.ID); err == nil {
			slog.Info("Quote already converted", "quote_id", in.QuoteID, "expense_id", e.ID)
			return c.GetExpenseSummary(ctx, e.ID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	roster, err := c.store.GetRoster(ctx, e.TripID)
	if err != nil {
		return nil, err
	}
	st := &expenseState{expense: e, roster: roster}
	if e.SplitMode == models.SplitCustom {
		st.rows, err = seedCustomRows(st)
		if err != nil {
			c.metrics.Recalculation(string(TriggerCreate), metrics.OutcomeRejected)
			return nil, err
		}
	}
	out, err := c.compute(st)
	if err != nil {
		c.metrics.Recalculation(string(TriggerCreate), metrics.OutcomeRejected)
		return nil, err
	}
	e.Status = out.status

	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateExpense(ctx, e); err != nil {
			return err
		}
		if err := tx.ReplaceSplitRows(ctx, e.ID, out.rows); err != nil {
			return err
		}
		return tx.InsertReimbursements(ctx, out.pending)
	})
	if err != nil {
		c.metrics.Recalculation(string(TriggerCreate), metrics.OutcomeFailed)
		return nil, err
	}

	c.observe(e, TriggerCreate, out)
	return newResult(st, out), nil
}

// ResolveParticipants resolves the expense's participation policy against
// the current roster.
func (c *Coordinator) ResolveParticipants(ctx context.Context, expenseID string) (calculator.Resolution, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	e, err := c.store.GetExpense(ctx, expenseID)
	if err != nil {
		return calculator.Resolution{}, err
	}
	roster, err := c.store.GetRoster(ctx, e.TripID)
	if err != nil {
		return calculator.Resolution{}, err
	}
	return calculator.ResolveParticipants(roster, e.SplitMode, e.ParticipationMode, e.ManualParticipants)
}

// SplitRequest asks for a split preview of an expense.
type SplitRequest struct {
	ExpenseID string
	Mode      models.SplitMode

	// Participants overrides the expense policy for rule modes.
	Participants []models.Participant

	// Rows or Percent carry CUSTOM input; Percent wins when both are set.
	Rows    []models.SplitRow
	Percent []calculator.PercentShare
}

// ComputeSplit returns the rows a split would produce without saving them.
func (c *Coordinator) ComputeSplit(ctx context.Context, req SplitRequest) ([]models.SplitRow, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	e, err := c.store.GetExpense(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	roster, err := c.store.GetRoster(ctx, e.TripID)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = e.SplitMode
	}
	if _, err := models.ParseSplitMode(string(mode)); err != nil {
		return nil, &calculator.ValidationError{Code: calculator.CodeInvalidMode, Message: err.Error()}
	}

	if mode == models.SplitCustom {
		return customRows(e, roster, req.Rows, req.Percent)
	}

	participants := req.Participants
	if len(participants) == 0 {
		res, err := calculator.ResolveParticipants(roster, mode, e.ParticipationMode, e.ManualParticipants)
		if err != nil {
			return nil, err
		}
		participants = res.Participants
	} else {
		if len(models.UniqueParticipants(participants)) != len(participants) {
			return nil, &calculator.ValidationError{
				Code:    calculator.CodeDuplicateParticipant,
				Message: "participants must be unique",
			}
		}
		res, err := calculator.ResolveParticipants(roster, mode, models.ParticipationManual, participants)
		if err != nil {
			return nil, err
		}
		participants = res.Participants
	}
	return calculator.EqualSplit(e.ID, e.Total, participants)
}

// customRows validates caller-entered rows or percentages for e.
func customRows(e *models.Expense, roster models.Roster, rows []models.SplitRow, percent []calculator.PercentShare) ([]models.SplitRow, error) {
	check := func(p models.Participant) error {
		if p.Kind != models.KindTraveler || !roster.Has(p) {
			return &calculator.ValidationError{
				Code:    calculator.CodeUnknownParticipant,
				Message: fmt.Sprintf("participant %s is not a traveler on the trip roster", p),
			}
		}
		return nil
	}

	if len(percent) > 0 {
		for _, s := range percent {
			if err := check(s.Participant); err != nil {
				return nil, err
			}
		}
		return calculator.PercentSplit(e.ID, e.Total, percent)
	}
	for _, r := range rows {
		if err := check(r.Participant); err != nil {
			return nil, err
		}
	}
	return calculator.CustomSplit(e.ID, e.Total, rows)
}

// ChangeSplitMode switches the split rule. Leaving CUSTOM while custom
// rows exist discards them and needs confirm.
func (c *Coordinator) ChangeSplitMode(ctx context.Context, expenseID string, mode models.SplitMode, confirm bool) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerSplitMode, func(st *expenseState) error {
		e := st.expense
		if err := rejectCancelled(e); err != nil {
			return err
		}
		if _, err := models.ParseSplitMode(string(mode)); err != nil {
			return &calculator.ValidationError{Code: calculator.CodeInvalidMode, Message: err.Error()}
		}
		if e.SplitMode == models.SplitCustom && mode.IsRule() && len(st.rows) > 0 && !confirm {
			return &calculator.ValidationError{
				Code: calculator.CodeConfirmationRequired,
				Message: fmt.Sprintf("switching to %s replaces %d custom rows; confirm to proceed",
					mode, len(st.rows)),
			}
		}
		if mode == models.SplitCustom && e.SplitMode != models.SplitCustom {
			rows, err := seedCustomRows(st)
			if err != nil {
				return err
			}
			st.rows = rows
		}
		e.SplitMode = mode
		return nil
	}, nil)
}

// seedCustomRows gives a fresh CUSTOM expense editable starting rows: the
// current per-traveler rows when there are some, else an equal split over
// the travelers the policy selects.
func seedCustomRows(st *expenseState) ([]models.SplitRow, error) {
	e := st.expense

	perTraveler := len(st.rows) > 0
	for _, r := range st.rows {
		if r.Participant.Kind != models.KindTraveler {
			perTraveler = false
			break
		}
	}
	if perTraveler {
		return asFixed(st.rows), nil
	}

	res, err := calculator.ResolveParticipants(st.roster, models.SplitCustom, e.ParticipationMode, e.ManualParticipants)
	if err != nil {
		return nil, err
	}
	rows, err := calculator.EqualSplit(e.ID, e.Total, res.Participants)
	if err != nil {
		return nil, err
	}
	return asFixed(rows), nil
}

func asFixed(rows []models.SplitRow) []models.SplitRow {
	out := make([]models.SplitRow, len(rows))
	for i, r := range rows {
		r.Type = models.SplitTypeFixed
		r.BasisPoints = 0
		out[i] = r
	}
	return out
}

// ChangeParticipationMode switches who takes part in the split. manual is
// used only with MANUAL.
func (c *Coordinator) ChangeParticipationMode(ctx context.Context, expenseID string, mode models.ParticipationMode, manual []models.Participant) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerParticipation, func(st *expenseState) error {
		e := st.expense
		if err := rejectCancelled(e); err != nil {
			return err
		}
		if _, err := models.ParseParticipationMode(string(mode)); err != nil {
			return &calculator.ValidationError{Code: calculator.CodeInvalidMode, Message: err.Error()}
		}
		e.ParticipationMode = mode
		e.ManualParticipants = nil
		if mode == models.ParticipationManual {
			if len(manual) == 0 {
				return &calculator.ValidationError{
					Code:    calculator.CodeEmptyManualList,
					Message: "manual participation requires at least one participant",
				}
			}
			e.ManualParticipants = models.UniqueParticipants(manual)
		}
		return nil
	}, nil)
}

// SaveCustomSplit stores caller-entered rows (or percentages) and switches
// the expense to CUSTOM.
func (c *Coordinator) SaveCustomSplit(ctx context.Context, expenseID string, rows []models.SplitRow, percent []calculator.PercentShare) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerCustomSplit, func(st *expenseState) error {
		e := st.expense
		if err := rejectCancelled(e); err != nil {
			return err
		}
		saved, err := customRows(e, st.roster, rows, percent)
		if err != nil {
			return err
		}
		st.rows = saved
		e.SplitMode = models.SplitCustom
		return nil
	}, nil)
}

// PaymentInput is a payment to append to an expense ledger.
type PaymentInput struct {
	ExpenseID string
	PaidBy    models.Participant
	Amount    int64
	Method    string

	// PaidAt is a Unix timestamp; zero means now.
	PaidAt int64
}

// PaymentResult is what recording a payment returns.
type PaymentResult struct {
	*Result
	Payment models.Payment
}

// Status is the expense status after the payment.
func (r *PaymentResult) Status() models.ExpenseStatus {
	return r.Expense.Status
}

// RecordPayment appends a payment and recalculates in the same transaction.
func (c *Coordinator) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	p := models.Payment{
		ID:        uuid.New().String(),
		ExpenseID: in.ExpenseID,
		PaidBy:    in.PaidBy,
		Amount:    in.Amount,
		Method:    strings.TrimSpace(in.Method),
		PaidAt:    in.PaidAt,
	}
	if p.PaidAt == 0 {
		p.PaidAt = c.now().Unix()
	}
	if p.Method == "" {
		p.Method = "other"
	}

	res, err := c.recompute(ctx, in.ExpenseID, TriggerPayment, func(st *expenseState) error {
		if err := ledger.Validate(st.expense, st.roster, p); err != nil {
			return err
		}
		st.payments = ledger.New(st.payments).Append(p).Payments()
		return nil
	}, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertPayment(ctx, &p)
	})
	if err != nil {
		return nil, err
	}

	c.metrics.PaymentRecorded()
	slog.Info("Payment recorded",
		"expense_id", in.ExpenseID,
		"payment_id", p.ID,
		"paid_by", p.PaidBy.Key(),
		"amount", p.Amount,
		"status", res.Expense.Status,
	)
	return &PaymentResult{Result: res, Payment: p}, nil
}

// Recalculate reruns the pipeline on unchanged inputs. Running it twice in
// a row yields identical pending reimbursements.
func (c *Coordinator) Recalculate(ctx context.Context, expenseID string) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerRecalculate, nil, nil)
}

// ConfirmExpense moves a planned expense to confirmed.
func (c *Coordinator) ConfirmExpense(ctx context.Context, expenseID string) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerStatus, func(st *expenseState) error {
		e := st.expense
		if err := rejectCancelled(e); err != nil {
			return err
		}
		if e.Status == models.StatusPlanned {
			e.Status = models.StatusConfirmed
		}
		return nil
	}, nil)
}

// CancelExpense cancels an expense and drops its pending reimbursements.
// Paid expenses cannot be cancelled.
func (c *Coordinator) CancelExpense(ctx context.Context, expenseID string) (*Result, error) {
	return c.recompute(ctx, expenseID, TriggerStatus, func(st *expenseState) error {
		e := st.expense
		if e.Status == models.StatusPaid {
			return &calculator.ValidationError{
				Code:    calculator.CodeInvalidExpense,
				Message: fmt.Sprintf("expense %s is already paid", e.ID),
			}
		}
		e.Status = models.StatusCancelled
		return nil
	}, nil)
}

// MarkReimbursementPaid records that a pending reimbursement was paid. The
// following settlement counts it as money that moved.
func (c *Coordinator) MarkReimbursementPaid(ctx context.Context, expenseID, reimbursementID string) (*Result, error) {
	paidAt := c.now().Unix()
	return c.recompute(ctx, expenseID, TriggerReimbursementPaid, func(st *expenseState) error {
		for i, r := range st.reimbursements {
			if r.ID == reimbursementID && r.Status == models.ReimbursementPending {
				st.reimbursements[i].Status = models.ReimbursementPaid
				st.reimbursements[i].PaidAt = paidAt
				return nil
			}
		}
		return fmt.Errorf("pending reimbursement %s: %w", reimbursementID, storage.ErrNotFound)
	}, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.MarkReimbursementPaid(ctx, reimbursementID, paidAt)
		return err
	})
}

// GetExpenseSummary returns the stored state of an expense with balances
// computed from it. Nothing is written.
func (c *Coordinator) GetExpenseSummary(ctx context.Context, expenseID string) (*Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	st, err := c.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	payments, warnings := ledger.New(st.payments).Attribute(st.roster, st.expense.SplitMode)
	settlement := calculator.Settle(st.rows, payments, st.reimbursements)
	return &Result{
		Expense:        st.expense,
		Rows:           st.rows,
		Payments:       st.payments,
		Reimbursements: st.reimbursements,
		Settlement:     settlement,
		Warnings:       append(warnings, settlement.Warnings...),
	}, nil
}

// ListExpenses returns the expenses of a trip.
func (c *Coordinator) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.store.ListExpenses(ctx, tripID)
}

// GetExpense returns the stored expense row.
func (c *Coordinator) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.store.GetExpense(ctx, expenseID)
}

// Roster returns the stored roster of a trip.
func (c *Coordinator) Roster(ctx context.Context, tripID string) (models.Roster, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.store.GetRoster(ctx, tripID)
}

// SyncRoster replaces the roster of a trip and flags every open expense of
// the trip NEEDS_RECALC. It returns the IDs of the flagged expenses.
func (c *Coordinator) SyncRoster(ctx context.Context, roster models.Roster) ([]string, error) {
	if err := validateRoster(roster); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var flagged []string
	err := c.store.WithTx(ctx, func(tx storage.Tx) error {
		flagged = nil
		if err := tx.ReplaceRoster(ctx, roster); err != nil {
			return err
		}
		expenses, err := tx.ListExpenses(ctx, roster.TripID)
		if err != nil {
			return err
		}
		for i := range expenses {
			e := &expenses[i]
			if e.Status == models.StatusCancelled || e.RecalcState == models.RecalcNeedsRecalc {
				continue
			}
			full, err := tx.GetExpense(ctx, e.ID)
			if err != nil {
				return err
			}
			full.RecalcState = models.RecalcNeedsRecalc
			if err := tx.UpdateExpense(ctx, full); err != nil {
				return err
			}
			flagged = append(flagged, e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Roster synced",
		"trip_id", roster.TripID,
		"groups", len(roster.Groups),
		"travelers", len(roster.Travelers),
		"flagged_expenses", len(flagged),
	)
	return flagged, nil
}

func validateRoster(roster models.Roster) error {
	invalidRoster := func(format string, args ...any) error {
		return &calculator.ValidationError{Code: calculator.CodeInvalidExpense, Message: fmt.Sprintf(format, args...)}
	}
	if strings.TrimSpace(roster.TripID) == "" {
		return invalidRoster("trip is required")
	}
	groups := make(map[string]bool, len(roster.Groups))
	for _, g := range roster.Groups {
		if strings.TrimSpace(g.ID) == "" {
			return invalidRoster("group id is required")
		}
		if groups[g.ID] {
			return invalidRoster("group %s appears more than once", g.ID)
		}
		groups[g.ID] = true
	}
	travelers := make(map[string]bool, len(roster.Travelers))
	for _, t := range roster.Travelers {
		if strings.TrimSpace(t.ID) == "" {
			return invalidRoster("traveler id is required")
		}
		if travelers[t.ID] {
			return invalidRoster("traveler %s appears more than once", t.ID)
		}
		travelers[t.ID] = true
		if t.GroupID != "" && !groups[t.GroupID] {
			return invalidRoster("traveler %s belongs to unknown group %s", t.ID, t.GroupID)
		}
	}
	return nil
}
