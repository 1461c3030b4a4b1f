package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/events"
	"github.com/mmynk/tripsplit/internal/lock"
	"github.com/mmynk/tripsplit/internal/middleware"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

const ExpenseServiceName = "tripsplit.v1.ExpenseService"

const (
	CreateExpenseProcedure           = "/tripsplit.v1.ExpenseService/CreateExpense"
	GetExpenseProcedure              = "/tripsplit.v1.ExpenseService/GetExpense"
	ListExpensesProcedure            = "/tripsplit.v1.ExpenseService/ListExpenses"
	ResolveParticipantsProcedure     = "/tripsplit.v1.ExpenseService/ResolveParticipants"
	ComputeSplitProcedure            = "/tripsplit.v1.ExpenseService/ComputeSplit"
	ChangeSplitModeProcedure         = "/tripsplit.v1.ExpenseService/ChangeSplitMode"
	ChangeParticipationModeProcedure = "/tripsplit.v1.ExpenseService/ChangeParticipationMode"
	SaveCustomSplitProcedure         = "/tripsplit.v1.ExpenseService/SaveCustomSplit"
	RecordPaymentProcedure           = "/tripsplit.v1.ExpenseService/RecordPayment"
	RecalculateProcedure             = "/tripsplit.v1.ExpenseService/Recalculate"
	ConfirmExpenseProcedure          = "/tripsplit.v1.ExpenseService/ConfirmExpense"
	CancelExpenseProcedure           = "/tripsplit.v1.ExpenseService/CancelExpense"
	MarkReimbursementPaidProcedure   = "/tripsplit.v1.ExpenseService/MarkReimbursementPaid"
)

// Error metadata keys.
const (
	// ValidationCodeKey carries calculator.ValidationCode.
	ValidationCodeKey = "Validation-Code"

	// SplitDifferenceKey carries the signed shortfall (positive) or overage
	// (negative) of a rejected custom split, in minor units.
	SplitDifferenceKey = "Split-Difference"
)

// ExpenseService implements the Connect ExpenseService on top of a
// Coordinator. Every mutating call holds the expense lock and announces
// the change once committed.
type ExpenseService struct {
	coordinator *Coordinator
	locker      lock.Locker
	publisher   events.Publisher
}

// NewExpenseService creates an ExpenseService. A nil locker serializes
// within this process only; a nil publisher drops events.
func NewExpenseService(coordinator *Coordinator, locker lock.Locker, publisher events.Publisher) *ExpenseService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ExpenseService{coordinator: coordinator, locker: locker, publisher: publisher}
}

// NewExpenseServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path to mount the handler on.
func NewExpenseServiceHandler(svc *ExpenseService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateExpenseProcedure, connect.NewUnaryHandler(CreateExpenseProcedure, svc.CreateExpense, opts...))
	mux.Handle(GetExpenseProcedure, connect.NewUnaryHandler(GetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(ListExpensesProcedure, connect.NewUnaryHandler(ListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(ResolveParticipantsProcedure, connect.NewUnaryHandler(ResolveParticipantsProcedure, svc.ResolveParticipants, opts...))
	mux.Handle(ComputeSplitProcedure, connect.NewUnaryHandler(ComputeSplitProcedure, svc.ComputeSplit, opts...))
	mux.Handle(ChangeSplitModeProcedure, connect.NewUnaryHandler(ChangeSplitModeProcedure, svc.ChangeSplitMode, opts...))
	mux.Handle(ChangeParticipationModeProcedure, connect.NewUnaryHandler(ChangeParticipationModeProcedure, svc.ChangeParticipationMode, opts...))
	mux.Handle(SaveCustomSplitProcedure, connect.NewUnaryHandler(SaveCustomSplitProcedure, svc.SaveCustomSplit, opts...))
	mux.Handle(RecordPaymentProcedure, connect.NewUnaryHandler(RecordPaymentProcedure, svc.RecordPayment, opts...))
	mux.Handle(RecalculateProcedure, connect.NewUnaryHandler(RecalculateProcedure, svc.Recalculate, opts...))
	mux.Handle(ConfirmExpenseProcedure, connect.NewUnaryHandler(ConfirmExpenseProcedure, svc.ConfirmExpense, opts...))
	mux.Handle(CancelExpenseProcedure, connect.NewUnaryHandler(CancelExpenseProcedure, svc.CancelExpense, opts...))
	mux.Handle(MarkReimbursementPaidProcedure, connect.NewUnaryHandler(MarkReimbursementPaidProcedure, svc.MarkReimbursementPaid, opts...))
	return "/" + ExpenseServiceName + "/", mux
}

// toConnectError maps engine errors onto Connect codes.
func toConnectError(op string, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	if ve, ok := calculator.AsValidation(err); ok {
		code := connect.CodeInvalidArgument
		if ve.Code == calculator.CodeConfirmationRequired {
			code = connect.CodeFailedPrecondition
		}
		connectErr = connect.NewError(code, err)
		connectErr.Meta().Set(ValidationCodeKey, string(ve.Code))
		if ve.Difference != 0 {
			connectErr.Meta().Set(SplitDifferenceKey, strconv.FormatInt(ve.Difference, 10))
		}
		return connectErr
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, lock.ErrBusy):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}

	slog.Error(op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}

// authorize loads the expense and checks the caller may touch its trip.
func (s *ExpenseService) authorize(ctx context.Context, expenseID string) (*models.Expense, error) {
	if expenseID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense_id is required"))
	}
	e, err := s.coordinator.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := middleware.CheckTrip(ctx, e.TripID); err != nil {
		return nil, err
	}
	return e, nil
}

// mutate runs fn under the expense lock and publishes typ on success.
func (s *ExpenseService) mutate(ctx context.Context, expenseID string, typ events.Type, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	var res *Result
	err := s.locker.WithLock(ctx, lock.ExpenseKey(expenseID), func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, typ, res)
	return res, nil
}

func (s *ExpenseService) publish(ctx context.Context, typ events.Type, res *Result) {
	e := events.Event{
		Type:      typ,
		ExpenseID: res.Expense.ID,
		TripID:    res.Expense.TripID,
		Version:   res.Expense.Version,
		Status:    string(res.Expense.Status),
		Pending:   len(res.Pending()),
		Warnings:  len(res.Warnings),
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("Failed to publish event", "type", typ, "expense_id", e.ExpenseID, "error", err)
	}
}

// CreateExpense closes an accepted quote into an expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	msg := req.Msg
	if err := middleware.CheckTrip(ctx, msg.TripID); err != nil {
		return nil, err
	}

	currency := msg.Currency
	total, err := parseAmount(msg.Total, currency)
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	manual, err := parseParticipants(msg.ManualParticipants)
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	in := QuoteInput{
		TripID:             msg.TripID,
		QuoteID:            msg.QuoteID,
		Title:              msg.Title,
		Total:              total,
		Currency:           currency,
		SplitMode:          models.SplitMode(msg.SplitMode),
		ParticipationMode:  models.ParticipationMode(msg.ParticipationMode),
		ManualParticipants: manual,
		Status:             models.ExpenseStatus(msg.Status),
	}

	var res *Result
	create := func(ctx context.Context) error {
		var err error
		res, err = s.coordinator.CreateFromQuote(ctx, in)
		return err
	}
	if msg.QuoteID != "" {
		// Converting the same quote twice must not race past the existence check.
		err = s.locker.WithLock(ctx, lock.ExpenseKey(ExpenseIDForQuote(msg.TripID, msg.QuoteID)), create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	s.publish(ctx, events.ExpenseCreated, res)

	slog.Info("Expense created", "expense_id", res.Expense.ID, "trip_id", res.Expense.TripID, "actor", middleware.GetActor(ctx))
	return connect.NewResponse(ptr(toSummary(res))), nil
}

// GetExpense returns an expense with its rows, payments, reimbursements
// and balances.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	if _, err := s.authorize(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("GetExpense", err)
	}
	res, err := s.coordinator.GetExpenseSummary(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("GetExpense", err)
	}
	return connect.NewResponse(ptr(toSummary(res))), nil
}

// ListExpenses returns the expenses of a trip.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	if err := middleware.CheckTrip(ctx, req.Msg.TripID); err != nil {
		return nil, err
	}
	expenses, err := s.coordinator.ListExpenses(ctx, req.Msg.TripID)
	if err != nil {
		return nil, toConnectError("ListExpenses", err)
	}

	out := make([]ExpenseMessage, len(expenses))
	for i := range expenses {
		out[i] = toExpenseMessage(&expenses[i])
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: out}), nil
}

// ResolveParticipants shows who the expense's policy selects right now.
func (s *ExpenseService) ResolveParticipants(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ResolveParticipantsResponse], error) {
	if _, err := s.authorize(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError("ResolveParticipants", err)
	}
	res, err := s.coordinator.ResolveParticipants(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("ResolveParticipants", err)
	}
	return connect.NewResponse(&ResolveParticipantsResponse{
		Participants: keysOf(res.Participants),
		Warnings:     toWarningMessages(res.Warnings),
	}), nil
}

// ComputeSplit previews a split without saving it.
func (s *ExpenseService) ComputeSplit(ctx context.Context, req *connect.Request[ComputeSplitRequest]) (*connect.Response[ComputeSplitResponse], error) {
	msg := req.Msg
	e, err := s.authorize(ctx, msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("ComputeSplit", err)
	}
	participants, err := parseParticipants(msg.Participants)
	if err != nil {
		return nil, toConnectError("ComputeSplit", err)
	}
	rows, percent, err := parseCustomRows(msg.Rows, e.Currency)
	if err != nil {
		return nil, toConnectError("ComputeSplit", err)
	}

	out, err := s.coordinator.ComputeSplit(ctx, SplitRequest{
		ExpenseID:    msg.ExpenseID,
		Mode:         models.SplitMode(msg.SplitMode),
		Participants: participants,
		Rows:         rows,
		Percent:      percent,
	})
	if err != nil {
		return nil, toConnectError("ComputeSplit", err)
	}
	return connect.NewResponse(&ComputeSplitResponse{
		Rows:  toRowMessages(out, e.Currency),
		Total: newAmount(calculator.SumOwed(out), e.Currency),
	}), nil
}

// ChangeSplitMode switches the split rule and recalculates.
func (s *ExpenseService) ChangeSplitMode(ctx context.Context, req *connect.Request[ChangeSplitModeRequest]) (*connect.Response[ExpenseSummary], error) {
	msg := req.Msg
	if _, err := s.authorize(ctx, msg.ExpenseID); err != nil {
		return nil, toConnectError("ChangeSplitMode", err)
	}
	res, err := s.mutate(ctx, msg.ExpenseID, events.ExpenseRecalculated, func(ctx context.Context) (*Result, error) {
		return s.coordinator.ChangeSplitMode(ctx, msg.ExpenseID, models.SplitMode(msg.SplitMode), msg.Confirm)
	})
	if err != nil {
		return nil, toConnectError("ChangeSplitMode", err)
	}
	return connect.NewResponse(ptr(toSummary(res))), nil
}

// ChangeParticipationMode switches who takes part and recalculates.
func (s *ExpenseService) ChangeParticipationMode(ctx context.Context, req *connect.Request[ChangeParticipationModeRequest]) (*connect.Response[ExpenseSummary], error) {
	msg := req.Msg
	if _, err := s.authorize(ctx, msg.ExpenseID); err != nil {
		return nil, toConnectError("ChangeParticipationMode", err)
	}
	manual, err := parseParticipants(msg.Participants)
	if err != nil {
		return nil, toConnectError("ChangeParticipationMode", err)
	}
	res, err := s.mutate(ctx, msg.ExpenseID, events.ExpenseRecalculated, func(ctx context.Context) (*Result, error) {
		return s.coordinator.ChangeParticipationMode(ctx, msg.ExpenseID, models.ParticipationMode(msg.ParticipationMode), manual)
	})
	if err != nil {
		return nil, toConnectError("ChangeParticipationMode", err)
	}
	return connect.NewResponse(ptr(toSummary(res))), nil
}

// SaveCustomSplit stores caller-entered rows and recalculates.
func (s *ExpenseService) SaveCustomSplit(ctx context.Context, req *connect.Request[SaveCustomSplitRequest]) (*connect.Response[ExpenseSummary], error) {
	msg := req.Msg
	e, err := s.authorize(ctx, msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("SaveCustomSplit", err)
	}
	rows, percent, err := parseCustomRows(msg.Rows, e.Currency)
	if err != nil {
		return nil, toConnectError("SaveCustomSplit", err)
	}
	res, err := s.mutate(ctx, msg.ExpenseID, events.ExpenseRecalculated, func(ctx context.Context) (*Result, error) {
		return s.coordinator.SaveCustomSplit(ctx, msg.ExpenseID, rows, percent)
	})
	if err != nil {
		return nil, toConnectError("SaveCustomSplit", err)
	}
	return connect.NewResponse(ptr(toSummary(res))), nil
}

// RecordPayment appends a payment and returns the new status and pending
// reimbursements.
func (s *ExpenseService) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	msg := req.Msg
	e, err := s.authorize(ctx, msg.ExpenseID)
	if err != nil {
		return nil, toConnectError("RecordPayment", err)
	}
	payer, err := parseParticipant(msg.PaidBy)
	if err != nil {
		return nil, toConnectError("RecordPayment", err)
	}
	amount, err := parseAmount(msg.Amount, e.Currency)
	if err != nil {
		return nil, toConnectError("RecordPayment", err)
	}

	var payment models.Payment
	res, err := s.mutate(ctx, msg.ExpenseID, events.PaymentRecorded, func(ctx context.Context) (*Result, error) {
		pr, err := s.coordinator.RecordPayment(ctx, PaymentInput{
			ExpenseID: msg.ExpenseID,
			PaidBy:    payer,
			Amount:    amount,
			Method:    msg.Method,
			PaidAt:    msg.PaidAt,
		})
		if err != nil {
			return nil, err
		}
		payment = pr.Payment
		return pr.Result, nil
	})
	if err != nil {
		return nil, toConnectError("RecordPayment", err)
	}

	return connect.NewResponse(&RecordPaymentResponse{
		PaymentID: payment.ID,
		Status:    string(res.Expense.Status),
		Pending:   toReimbursementMessages(res.Pending(), res.Expense.Currency),
		Summary:   toSummary(res),
	}), nil
}

// Recalculate reruns the pipeline on unchanged inputs.
func (s *ExpenseService) Recalculate(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return s.simple(ctx, "Recalculate", req.Msg.ExpenseID, events.ExpenseRecalculated, s.coordinator.Recalculate)
}

// ConfirmExpense moves a planned expense to confirmed.
func (s *ExpenseService) ConfirmExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return s.simple(ctx, "ConfirmExpense", req.Msg.ExpenseID, events.ExpenseRecalculated, s.coordinator.ConfirmExpense)
}

// CancelExpense cancels an expense.
func (s *ExpenseService) CancelExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return s.simple(ctx, "CancelExpense", req.Msg.ExpenseID, events.ExpenseCancelled, s.coordinator.CancelExpense)
}

// MarkReimbursementPaid records that a pending reimbursement was paid.
func (s *ExpenseService) MarkReimbursementPaid(ctx context.Context, req *connect.Request[MarkReimbursementPaidRequest]) (*connect.Response[ExpenseSummary], error) {
	msg := req.Msg
	return s.simple(ctx, "MarkReimbursementPaid", msg.ExpenseID, events.ReimbursementPaid, func(ctx context.Context, id string) (*Result, error) {
		return s.coordinator.MarkReimbursementPaid(ctx, id, msg.ReimbursementID)
	})
}

func (s *ExpenseService) simple(ctx context.Context, op, expenseID string, typ events.Type, fn func(ctx context.Context, expenseID string) (*Result, error)) (*connect.Response[ExpenseSummary], error) {
	if _, err := s.authorize(ctx, expenseID); err != nil {
		return nil, toConnectError(op, err)
	}
	res, err := s.mutate(ctx, expenseID, typ, func(ctx context.Context) (*Result, error) {
		return fn(ctx, expenseID)
	})
	if err != nil {
		return nil, toConnectError(op, err)
	}
	return connect.NewResponse(ptr(toSummary(res))), nil
}

func ptr[T any](v T) *T {
	return &v
}
