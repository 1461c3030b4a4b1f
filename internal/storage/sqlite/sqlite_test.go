package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createExpense(t *testing.T, store *SQLiteStore, e *models.Expense) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.CreateExpense(context.Background(), e)
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
}

func testExpense() *models.Expense {
	return &models.Expense{
		TripID:            "trip-1",
		QuoteID:           "quote-1",
		Title:             "Boat tour",
		Total:             30000,
		Currency:          "EUR",
		SplitMode:         models.SplitByGroup,
		ParticipationMode: models.ParticipationManual,
		ManualParticipants: []models.Participant{
			models.GroupRef("g2"), models.GroupRef("g1"),
		},
		Status: models.StatusConfirmed,
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateExpense assigns ID and version", func(t *testing.T) {
		e := testExpense()
		createExpense(t, store, e)

		if e.ID == "" {
			t.Error("Expected expense ID to be generated")
		}
		if e.Version != 1 {
			t.Errorf("Version = %d, want 1", e.Version)
		}
		if e.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}
		if e.RecalcState != models.RecalcClean {
			t.Errorf("RecalcState = %s, want CLEAN", e.RecalcState)
		}
	})

	t.Run("GetExpense retrieves complete expense", func(t *testing.T) {
		original := testExpense()
		createExpense(t, store, original)

		got, err := store.GetExpense(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Title != original.Title || got.Total != original.Total || got.QuoteID != "quote-1" {
			t.Errorf("GetExpense = %+v, want %+v", got, original)
		}
		if got.SplitMode != models.SplitByGroup || got.ParticipationMode != models.ParticipationManual {
			t.Errorf("modes = %s/%s", got.SplitMode, got.ParticipationMode)
		}
		want := []models.Participant{models.GroupRef("g1"), models.GroupRef("g2")}
		if len(got.ManualParticipants) != 2 || got.ManualParticipants[0] != want[0] || got.ManualParticipants[1] != want[1] {
			t.Errorf("ManualParticipants = %v, want %v", got.ManualParticipants, want)
		}
	})

	t.Run("GetExpense returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetExpense(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateExpense checks version", func(t *testing.T) {
		e := testExpense()
		createExpense(t, store, e)

		stale := *e
		e.SplitMode = models.SplitPerPerson
		e.ManualParticipants = []models.Participant{models.TravelerRef("t1")}
		err := store.WithTx(ctx, func(tx storage.Tx) error { return tx.UpdateExpense(ctx, e) })
		if err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}
		if e.Version != 2 {
			t.Errorf("Version = %d, want 2", e.Version)
		}

		err = store.WithTx(ctx, func(tx storage.Tx) error { return tx.UpdateExpense(ctx, &stale) })
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("stale update err = %v, want ErrConflict", err)
		}

		got, err := store.GetExpense(ctx, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.SplitMode != models.SplitPerPerson || len(got.ManualParticipants) != 1 {
			t.Errorf("stored expense = %+v", got)
		}

		missing := &models.Expense{ID: "missing", Version: 1}
		err = store.WithTx(ctx, func(tx storage.Tx) error { return tx.UpdateExpense(ctx, missing) })
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("missing update err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListExpenses filters by trip", func(t *testing.T) {
		other := testExpense()
		other.TripID = "trip-2"
		createExpense(t, store, other)

		list, err := store.ListExpenses(ctx, "trip-2")
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != other.ID {
			t.Errorf("ListExpenses = %+v, want only %s", list, other.ID)
		}
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		e := testExpense()
		e.ID = "rolled-back"
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			if err := tx.CreateExpense(ctx, e); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx err = %v, want boom", err)
		}
		if _, err := store.GetExpense(ctx, "rolled-back"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expense survived rollback: %v", err)
		}
	})
}

func TestSQLiteStore_RowsPaymentsReimbursements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testExpense()
	createExpense(t, store, e)

	rows := []models.SplitRow{
		{Participant: models.GroupRef("g1"), Owed: 15000, Type: models.SplitTypeEqual},
		{Participant: models.GroupRef("g2"), Owed: 15000, Type: models.SplitTypeEqual},
	}
	payment := &models.Payment{ExpenseID: e.ID, PaidBy: models.GroupRef("g1"), Amount: 30000, Method: "card"}
	pending := []models.Reimbursement{
		{ID: "r1", ExpenseID: e.ID, From: models.GroupRef("g2"), To: models.GroupRef("g1"), Amount: 15000, Status: models.ReimbursementPending, Seq: 0},
	}

	err := store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.ReplaceSplitRows(ctx, e.ID, rows); err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		return tx.InsertReimbursements(ctx, pending)
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	gotRows, err := store.ListSplitRows(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListSplitRows failed: %v", err)
	}
	if len(gotRows) != 2 || gotRows[0].Participant != models.GroupRef("g1") || gotRows[1].Owed != 15000 {
		t.Errorf("ListSplitRows = %+v", gotRows)
	}

	payments, err := store.ListPayments(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(payments) != 1 || payments[0].ID == "" || payments[0].PaidAt == 0 || payments[0].Amount != 30000 {
		t.Errorf("ListPayments = %+v", payments)
	}

	paid, err := func() (*models.Reimbursement, error) {
		var r *models.Reimbursement
		err := store.WithTx(ctx, func(tx storage.Tx) error {
			var err error
			r, err = tx.MarkReimbursementPaid(ctx, "r1", 1700000000)
			return err
		})
		return r, err
	}()
	if err != nil {
		t.Fatalf("MarkReimbursementPaid failed: %v", err)
	}
	if paid.Status != models.ReimbursementPaid || paid.PaidAt != 1700000000 || paid.Amount != 15000 {
		t.Errorf("MarkReimbursementPaid = %+v", paid)
	}

	err = store.WithTx(ctx, func(tx storage.Tx) error {
		_, err := tx.MarkReimbursementPaid(ctx, "r1", 1700000001)
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second MarkReimbursementPaid err = %v, want ErrNotFound", err)
	}

	err = store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.DeleteReimbursements(ctx, e.ID, models.ReimbursementPending); err != nil {
			return err
		}
		return tx.InsertReimbursements(ctx, []models.Reimbursement{
			{ID: "r2", ExpenseID: e.ID, From: models.GroupRef("g2"), To: models.GroupRef("g1"), Amount: 10, Status: models.ReimbursementPending, Seq: 0},
		})
	})
	if err != nil {
		t.Fatalf("replace pending failed: %v", err)
	}

	all, err := store.ListReimbursements(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListReimbursements failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "r1" || all[1].ID != "r2" {
		t.Errorf("ListReimbursements = %+v, want paid r1 then pending r2", all)
	}

	onlyPending, err := store.ListReimbursements(ctx, e.ID, models.ReimbursementPending)
	if err != nil {
		t.Fatalf("ListReimbursements failed: %v", err)
	}
	if len(onlyPending) != 1 || onlyPending[0].ID != "r2" || onlyPending[0].PaidAt != 0 {
		t.Errorf("pending = %+v", onlyPending)
	}
}

func TestSQLiteStore_Roster(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	roster := models.Roster{
		TripID: "trip-1",
		Groups: []models.Group{{ID: "g1", Name: "Family", IsPayer: true, CountsInSplit: true, Active: true}},
		Travelers: []models.Traveler{
			{ID: "t2", Name: "Bob", Active: true, CountsInSplit: true},
			{ID: "t1", Name: "Alice", GroupID: "g1", IsPayer: true, CountsInSplit: true, Active: true},
		},
	}
	if err := store.WithTx(ctx, func(tx storage.Tx) error { return tx.ReplaceRoster(ctx, roster) }); err != nil {
		t.Fatalf("ReplaceRoster failed: %v", err)
	}

	got, err := store.GetRoster(ctx, "trip-1")
	if err != nil {
		t.Fatalf("GetRoster failed: %v", err)
	}
	if len(got.Groups) != 1 || !got.Groups[0].IsPayer || got.Groups[0].Name != "Family" {
		t.Errorf("Groups = %+v", got.Groups)
	}
	if len(got.Travelers) != 2 || got.Travelers[0].ID != "t1" || got.Travelers[0].GroupID != "g1" {
		t.Errorf("Travelers = %+v", got.Travelers)
	}
	if got.Travelers[1].GroupID != "" || got.Travelers[1].IsPayer {
		t.Errorf("ungrouped traveler = %+v", got.Travelers[1])
	}

	// Replacing drops travelers that left the roster.
	roster.Travelers = roster.Travelers[1:]
	if err := store.WithTx(ctx, func(tx storage.Tx) error { return tx.ReplaceRoster(ctx, roster) }); err != nil {
		t.Fatalf("ReplaceRoster failed: %v", err)
	}
	got, err = store.GetRoster(ctx, "trip-1")
	if err != nil {
		t.Fatalf("GetRoster failed: %v", err)
	}
	if len(got.Travelers) != 1 {
		t.Errorf("Travelers = %+v, want one", got.Travelers)
	}

	empty, err := store.GetRoster(ctx, "other-trip")
	if err != nil || len(empty.Travelers) != 0 || empty.TripID != "other-trip" {
		t.Errorf("GetRoster(other) = %+v, %v", empty, err)
	}
}
