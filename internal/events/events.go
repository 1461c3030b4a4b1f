// Package events announces expense changes to other services.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names what happened to an expense.
type Type string

const (
	ExpenseCreated      Type = "expense.created"
	ExpenseRecalculated Type = "expense.recalculated"
	PaymentRecorded     Type = "expense.payment_recorded"
	ReimbursementPaid   Type = "expense.reimbursement_paid"
	ExpenseCancelled    Type = "expense.cancelled"
)

// Event is a lightweight notification. Consumers fetch the full expense
// when they need more than the counters carried here.
type Event struct {
	Type      Type   `json:"type"`
	ExpenseID string `json:"expense_id"`
	TripID    string `json:"trip_id"`
	Version   int64  `json:"version"`
	Status    string `json:"status"`

	// Pending is the number of pending reimbursements after the change.
	Pending  int `json:"pending"`
	Warnings int `json:"warnings"`

	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher delivers events. Publishing is best effort: callers log
// failures and carry on, since the change itself is already committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
