package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// ExpenseServiceClient is a typed client for ExpenseService.
type ExpenseServiceClient struct {
	createExpense           *connect.Client[CreateExpenseRequest, ExpenseSummary]
	getExpense              *connect.Client[ExpenseRequest, ExpenseSummary]
	listExpenses            *connect.Client[ListExpensesRequest, ListExpensesResponse]
	resolveParticipants     *connect.Client[ExpenseRequest, ResolveParticipantsResponse]
	computeSplit            *connect.Client[ComputeSplitRequest, ComputeSplitResponse]
	changeSplitMode         *connect.Client[ChangeSplitModeRequest, ExpenseSummary]
	changeParticipationMode *connect.Client[ChangeParticipationModeRequest, ExpenseSummary]
	saveCustomSplit         *connect.Client[SaveCustomSplitRequest, ExpenseSummary]
	recordPayment           *connect.Client[RecordPaymentRequest, RecordPaymentResponse]
	recalculate             *connect.Client[ExpenseRequest, ExpenseSummary]
	confirmExpense          *connect.Client[ExpenseRequest, ExpenseSummary]
	cancelExpense           *connect.Client[ExpenseRequest, ExpenseSummary]
	markReimbursementPaid   *connect.Client[MarkReimbursementPaidRequest, ExpenseSummary]
}

// NewExpenseServiceClient creates a client for the server at baseURL.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &ExpenseServiceClient{
		createExpense:           connect.NewClient[CreateExpenseRequest, ExpenseSummary](httpClient, baseURL+CreateExpenseProcedure, opts...),
		getExpense:              connect.NewClient[ExpenseRequest, ExpenseSummary](httpClient, baseURL+GetExpenseProcedure, opts...),
		listExpenses:            connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ListExpensesProcedure, opts...),
		resolveParticipants:     connect.NewClient[ExpenseRequest, ResolveParticipantsResponse](httpClient, baseURL+ResolveParticipantsProcedure, opts...),
		computeSplit:            connect.NewClient[ComputeSplitRequest, ComputeSplitResponse](httpClient, baseURL+ComputeSplitProcedure, opts...),
		changeSplitMode:         connect.NewClient[ChangeSplitModeRequest, ExpenseSummary](httpClient, baseURL+ChangeSplitModeProcedure, opts...),
		changeParticipationMode: connect.NewClient[ChangeParticipationModeRequest, ExpenseSummary](httpClient, baseURL+ChangeParticipationModeProcedure, opts...),
		saveCustomSplit:         connect.NewClient[SaveCustomSplitRequest, ExpenseSummary](httpClient, baseURL+SaveCustomSplitProcedure, opts...),
		recordPayment:           connect.NewClient[RecordPaymentRequest, RecordPaymentResponse](httpClient, baseURL+RecordPaymentProcedure, opts...),
		recalculate:             connect.NewClient[ExpenseRequest, ExpenseSummary](httpClient, baseURL+RecalculateProcedure, opts...),
		confirmExpense:          connect.NewClient[ExpenseRequest, ExpenseSummary](httpClient, baseURL+ConfirmExpenseProcedure, opts...),
		cancelExpense:           connect.NewClient[ExpenseRequest, ExpenseSummary](httpClient, baseURL+CancelExpenseProcedure, opts...),
		markReimbursementPaid:   connect.NewClient[MarkReimbursementPaidRequest, ExpenseSummary](httpClient, baseURL+MarkReimbursementPaidProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ResolveParticipants(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ResolveParticipantsResponse], error) {
	return c.resolveParticipants.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ComputeSplit(ctx context.Context, req *connect.Request[ComputeSplitRequest]) (*connect.Response[ComputeSplitResponse], error) {
	return c.computeSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ChangeSplitMode(ctx context.Context, req *connect.Request[ChangeSplitModeRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.changeSplitMode.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ChangeParticipationMode(ctx context.Context, req *connect.Request[ChangeParticipationModeRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.changeParticipationMode.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SaveCustomSplit(ctx context.Context, req *connect.Request[SaveCustomSplitRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.saveCustomSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[RecordPaymentResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) Recalculate(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.recalculate.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ConfirmExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.confirmExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) CancelExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.cancelExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) MarkReimbursementPaid(ctx context.Context, req *connect.Request[MarkReimbursementPaidRequest]) (*connect.Response[ExpenseSummary], error) {
	return c.markReimbursementPaid.CallUnary(ctx, req)
}

// RosterServiceClient is a typed client for RosterService.
type RosterServiceClient struct {
	syncRoster *connect.Client[RosterMessage, SyncRosterResponse]
	getRoster  *connect.Client[GetRosterRequest, RosterMessage]
}

// NewRosterServiceClient creates a client for the server at baseURL.
func NewRosterServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RosterServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &RosterServiceClient{
		syncRoster: connect.NewClient[RosterMessage, SyncRosterResponse](httpClient, baseURL+SyncRosterProcedure, opts...),
		getRoster:  connect.NewClient[GetRosterRequest, RosterMessage](httpClient, baseURL+GetRosterProcedure, opts...),
	}
}

func (c *RosterServiceClient) SyncRoster(ctx context.Context, req *connect.Request[RosterMessage]) (*connect.Response[SyncRosterResponse], error) {
	return c.syncRoster.CallUnary(ctx, req)
}

func (c *RosterServiceClient) GetRoster(ctx context.Context, req *connect.Request[GetRosterRequest]) (*connect.Response[RosterMessage], error) {
	return c.getRoster.CallUnary(ctx, req)
}
