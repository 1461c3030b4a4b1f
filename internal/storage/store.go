// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/tripsplit/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an expense was updated concurrently and
	// the optimistic version check failed.
	ErrConflict = errors.New("version conflict")
)

// PersistenceError wraps any failure of the underlying store. The engine
// propagates it unchanged and never tries to repair partial state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a PersistenceError for op. Sentinel errors of this
// package and nil pass through untouched.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Reader defines the read side of the store.
type Reader interface {
	// GetExpense retrieves an expense by ID.
	// Returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns the expenses of a trip, oldest first.
	ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error)

	// ListSplitRows returns the split rows of an expense ordered by participant.
	ListSplitRows(ctx context.Context, expenseID string) ([]models.SplitRow, error)

	// ListPayments returns the payments of an expense in recording order.
	ListPayments(ctx context.Context, expenseID string) ([]models.Payment, error)

	// ListReimbursements returns the reimbursements of an expense with one
	// of the given statuses (all when none given), ordered by status then Seq.
	ListReimbursements(ctx context.Context, expenseID string, statuses ...models.ReimbursementStatus) ([]models.Reimbursement, error)

	// GetRoster returns the travelers and groups of a trip.
	GetRoster(ctx context.Context, tripID string) (models.Roster, error)
}

// Tx defines the write operations available inside a transaction.
type Tx interface {
	Reader

	// CreateExpense persists a new expense. ID, CreatedAt and Version are
	// assigned when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense writes the expense if its stored version still equals
	// expense.Version, then bumps the version.
	// Returns ErrConflict when the version moved.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// ReplaceSplitRows deletes all split rows of the expense and inserts rows.
	ReplaceSplitRows(ctx context.Context, expenseID string, rows []models.SplitRow) error

	// InsertPayment appends a payment. ID is assigned when empty.
	InsertPayment(ctx context.Context, payment *models.Payment) error

	// DeleteReimbursements removes the reimbursements of the expense with the status.
	DeleteReimbursements(ctx context.Context, expenseID string, status models.ReimbursementStatus) error

	// InsertReimbursements bulk-inserts reimbursements.
	InsertReimbursements(ctx context.Context, reimbursements []models.Reimbursement) error

	// MarkReimbursementPaid moves a pending reimbursement to paid.
	// Returns ErrNotFound when no pending reimbursement has the ID.
	MarkReimbursementPaid(ctx context.Context, reimbursementID string, paidAt int64) (*models.Reimbursement, error)

	// ReplaceRoster swaps the stored roster of a trip for roster.
	ReplaceRoster(ctx context.Context, roster models.Roster) error
}

// Store defines the interface for expense storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Reader

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}
