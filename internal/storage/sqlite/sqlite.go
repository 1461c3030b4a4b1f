// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// queryer is the part of *sql.DB and *sql.Tx the queries need.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements storage.Tx on top of either the pool or a transaction.
type queries struct {
	q queryer
}

var _ storage.Tx = queries{}

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	queries
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Write transactions take the lock up front so busy_timeout applies
	// instead of failing on lock upgrade.
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStore{queries: queries{q: db}, db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storage.Wrap("commit transaction", err)
	}
	return nil
}

const expenseColumns = `id, trip_id, COALESCE(quote_id, ''), title, total, currency, split_mode,
	participation_mode, status, recalc_state, version, created_at, updated_at`

// GetExpense retrieves an expense by ID, including its manual participants.
func (q queries) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e := &models.Expense{}
	err := q.q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	).Scan(&e.ID, &e.TripID, &e.QuoteID, &e.Title, &e.Total, &e.Currency, &e.SplitMode,
		&e.ParticipationMode, &e.Status, &e.RecalcState, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Wrap("get expense", err)
	}

	rows, err := q.q.QueryContext(ctx,
		"SELECT kind, participant_id FROM expense_manual_participants WHERE expense_id = ? ORDER BY kind, participant_id",
		expenseID,
	)
	if err != nil {
		return nil, storage.Wrap("get manual participants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.Kind, &p.ID); err != nil {
			return nil, storage.Wrap("scan manual participant", err)
		}
		e.ManualParticipants = append(e.ManualParticipants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate manual participants", err)
	}
	return e, nil
}

// ListExpenses returns the expenses of a trip without manual participants.
func (q queries) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE trip_id = ? ORDER BY created_at, id",
		tripID,
	)
	if err != nil {
		return nil, storage.Wrap("list expenses", err)
	}
	defer rows.Close()

	var out []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.TripID, &e.QuoteID, &e.Title, &e.Total, &e.Currency, &e.SplitMode,
			&e.ParticipationMode, &e.Status, &e.RecalcState, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, storage.Wrap("scan expense", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate expenses", err)
	}
	return out, nil
}

// CreateExpense persists a new expense.
func (q queries) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Version == 0 {
		e.Version = 1
	}
	if e.RecalcState == "" {
		e.RecalcState = models.RecalcClean
	}

	_, err := q.q.ExecContext(ctx,
		`INSERT INTO expenses (id, trip_id, quote_id, title, total, currency, split_mode,
			participation_mode, status, recalc_state, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TripID, nullString(e.QuoteID), e.Title, e.Total, e.Currency, e.SplitMode,
		e.ParticipationMode, e.Status, e.RecalcState, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return storage.Wrap("insert expense", err)
	}
	return q.replaceManualParticipants(ctx, e.ID, e.ManualParticipants)
}

// UpdateExpense writes e when the stored version still matches e.Version.
func (q queries) UpdateExpense(ctx context.Context, e *models.Expense) error {
	updatedAt := time.Now().Unix()
	res, err := q.q.ExecContext(ctx,
		`UPDATE expenses SET title = ?, total = ?, currency = ?, split_mode = ?, participation_mode = ?,
			status = ?, recalc_state = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		e.Title, e.Total, e.Currency, e.SplitMode, e.ParticipationMode,
		e.Status, e.RecalcState, updatedAt, e.ID, e.Version,
	)
	if err != nil {
		return storage.Wrap("update expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("update expense", err)
	}
	if n == 0 {
		var exists int
		err := q.q.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", e.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("expense %s: %w", e.ID, storage.ErrNotFound)
		}
		if err != nil {
			return storage.Wrap("update expense", err)
		}
		return fmt.Errorf("expense %s at version %d: %w", e.ID, e.Version, storage.ErrConflict)
	}

	e.Version++
	e.UpdatedAt = updatedAt
	return q.replaceManualParticipants(ctx, e.ID, e.ManualParticipants)
}

func (q queries) replaceManualParticipants(ctx context.Context, expenseID string, ps []models.Participant) error {
	if _, err := q.q.ExecContext(ctx,
		"DELETE FROM expense_manual_participants WHERE expense_id = ?", expenseID,
	); err != nil {
		return storage.Wrap("delete manual participants", err)
	}
	for _, p := range ps {
		if _, err := q.q.ExecContext(ctx,
			"INSERT INTO expense_manual_participants (expense_id, kind, participant_id) VALUES (?, ?, ?)",
			expenseID, p.Kind, p.ID,
		); err != nil {
			return storage.Wrap("insert manual participant", err)
		}
	}
	return nil
}

// ListSplitRows returns the split rows of an expense ordered by participant.
func (q queries) ListSplitRows(ctx context.Context, expenseID string) ([]models.SplitRow, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT kind, participant_id, owed, split_type, basis_points
		FROM split_rows WHERE expense_id = ? ORDER BY kind, participant_id`,
		expenseID,
	)
	if err != nil {
		return nil, storage.Wrap("list split rows", err)
	}
	defer rows.Close()

	var out []models.SplitRow
	for rows.Next() {
		r := models.SplitRow{ExpenseID: expenseID}
		if err := rows.Scan(&r.Participant.Kind, &r.Participant.ID, &r.Owed, &r.Type, &r.BasisPoints); err != nil {
			return nil, storage.Wrap("scan split row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate split rows", err)
	}
	return out, nil
}

// ReplaceSplitRows swaps all split rows of an expense.
func (q queries) ReplaceSplitRows(ctx context.Context, expenseID string, rows []models.SplitRow) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM split_rows WHERE expense_id = ?", expenseID); err != nil {
		return storage.Wrap("delete split rows", err)
	}
	for _, r := range rows {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO split_rows (expense_id, kind, participant_id, owed, split_type, basis_points)
			VALUES (?, ?, ?, ?, ?, ?)`,
			expenseID, r.Participant.Kind, r.Participant.ID, r.Owed, r.Type, r.BasisPoints,
		); err != nil {
			return storage.Wrap("insert split row", err)
		}
	}
	return nil
}

// ListPayments returns the payments of an expense in recording order.
func (q queries) ListPayments(ctx context.Context, expenseID string) ([]models.Payment, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, kind, participant_id, amount, method, paid_at
		FROM payments WHERE expense_id = ? ORDER BY rowid`,
		expenseID,
	)
	if err != nil {
		return nil, storage.Wrap("list payments", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p := models.Payment{ExpenseID: expenseID}
		if err := rows.Scan(&p.ID, &p.PaidBy.Kind, &p.PaidBy.ID, &p.Amount, &p.Method, &p.PaidAt); err != nil {
			return nil, storage.Wrap("scan payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate payments", err)
	}
	return out, nil
}

// InsertPayment appends a payment to the expense.
func (q queries) InsertPayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PaidAt == 0 {
		p.PaidAt = time.Now().Unix()
	}
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO payments (id, expense_id, kind, participant_id, amount, method, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ExpenseID, p.PaidBy.Kind, p.PaidBy.ID, p.Amount, p.Method, p.PaidAt,
	)
	if err != nil {
		return storage.Wrap("insert payment", err)
	}
	return nil
}

// ListReimbursements returns reimbursements with any of statuses, or all of them.
func (q queries) ListReimbursements(ctx context.Context, expenseID string, statuses ...models.ReimbursementStatus) ([]models.Reimbursement, error) {
	query := `SELECT id, from_kind, from_id, to_kind, to_id, amount, status, seq, paid_at
		FROM reimbursements WHERE expense_id = ?`
	args := []any{expenseID}
	if len(statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(statuses)-1) + ")"
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += " ORDER BY status, seq"

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap("list reimbursements", err)
	}
	defer rows.Close()

	var out []models.Reimbursement
	for rows.Next() {
		r := models.Reimbursement{ExpenseID: expenseID}
		var paidAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.From.Kind, &r.From.ID, &r.To.Kind, &r.To.ID,
			&r.Amount, &r.Status, &r.Seq, &paidAt); err != nil {
			return nil, storage.Wrap("scan reimbursement", err)
		}
		r.PaidAt = paidAt.Int64
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate reimbursements", err)
	}
	return out, nil
}

// DeleteReimbursements removes the reimbursements of an expense with status.
func (q queries) DeleteReimbursements(ctx context.Context, expenseID string, status models.ReimbursementStatus) error {
	_, err := q.q.ExecContext(ctx,
		"DELETE FROM reimbursements WHERE expense_id = ? AND status = ?",
		expenseID, status,
	)
	if err != nil {
		return storage.Wrap("delete reimbursements", err)
	}
	return nil
}

// InsertReimbursements inserts rs in order.
func (q queries) InsertReimbursements(ctx context.Context, rs []models.Reimbursement) error {
	for _, r := range rs {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		var paidAt sql.NullInt64
		if r.PaidAt != 0 {
			paidAt = sql.NullInt64{Int64: r.PaidAt, Valid: true}
		}
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO reimbursements (id, expense_id, from_kind, from_id, to_kind, to_id, amount, status, seq, paid_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ExpenseID, r.From.Kind, r.From.ID, r.To.Kind, r.To.ID, r.Amount, r.Status, r.Seq, paidAt,
		); err != nil {
			return storage.Wrap("insert reimbursement", err)
		}
	}
	return nil
}

// MarkReimbursementPaid moves a pending reimbursement to paid and returns it.
func (q queries) MarkReimbursementPaid(ctx context.Context, reimbursementID string, paidAt int64) (*models.Reimbursement, error) {
	res, err := q.q.ExecContext(ctx,
		"UPDATE reimbursements SET status = ?, paid_at = ? WHERE id = ? AND status = ?",
		models.ReimbursementPaid, paidAt, reimbursementID, models.ReimbursementPending,
	)
	if err != nil {
		return nil, storage.Wrap("mark reimbursement paid", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storage.Wrap("mark reimbursement paid", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("pending reimbursement %s: %w", reimbursementID, storage.ErrNotFound)
	}

	r := &models.Reimbursement{ID: reimbursementID, PaidAt: paidAt}
	err = q.q.QueryRowContext(ctx,
		`SELECT expense_id, from_kind, from_id, to_kind, to_id, amount, status, seq
		FROM reimbursements WHERE id = ?`,
		reimbursementID,
	).Scan(&r.ExpenseID, &r.From.Kind, &r.From.ID, &r.To.Kind, &r.To.ID, &r.Amount, &r.Status, &r.Seq)
	if err != nil {
		return nil, storage.Wrap("get reimbursement", err)
	}
	return r, nil
}

// GetRoster returns the groups and travelers of a trip ordered by ID.
func (q queries) GetRoster(ctx context.Context, tripID string) (models.Roster, error) {
	roster := models.Roster{TripID: tripID}

	groupRows, err := q.q.QueryContext(ctx,
		"SELECT id, name, is_payer, counts_in_split, active FROM trip_groups WHERE trip_id = ? ORDER BY id",
		tripID,
	)
	if err != nil {
		return roster, storage.Wrap("list groups", err)
	}
	defer groupRows.Close()

	for groupRows.Next() {
		g := models.Group{TripID: tripID}
		if err := groupRows.Scan(&g.ID, &g.Name, &g.IsPayer, &g.CountsInSplit, &g.Active); err != nil {
			return roster, storage.Wrap("scan group", err)
		}
		roster.Groups = append(roster.Groups, g)
	}
	if err := groupRows.Err(); err != nil {
		return roster, storage.Wrap("iterate groups", err)
	}

	travelerRows, err := q.q.QueryContext(ctx,
		`SELECT id, name, COALESCE(group_id, ''), is_payer, counts_in_split, active
		FROM travelers WHERE trip_id = ? ORDER BY id`,
		tripID,
	)
	if err != nil {
		return roster, storage.Wrap("list travelers", err)
	}
	defer travelerRows.Close()

	for travelerRows.Next() {
		t := models.Traveler{TripID: tripID}
		if err := travelerRows.Scan(&t.ID, &t.Name, &t.GroupID, &t.IsPayer, &t.CountsInSplit, &t.Active); err != nil {
			return roster, storage.Wrap("scan traveler", err)
		}
		roster.Travelers = append(roster.Travelers, t)
	}
	if err := travelerRows.Err(); err != nil {
		return roster, storage.Wrap("iterate travelers", err)
	}
	return roster, nil
}

// ReplaceRoster swaps the stored groups and travelers of roster.TripID.
func (q queries) ReplaceRoster(ctx context.Context, roster models.Roster) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM travelers WHERE trip_id = ?", roster.TripID); err != nil {
		return storage.Wrap("delete travelers", err)
	}
	if _, err := q.q.ExecContext(ctx, "DELETE FROM trip_groups WHERE trip_id = ?", roster.TripID); err != nil {
		return storage.Wrap("delete groups", err)
	}

	for _, g := range roster.Groups {
		if _, err := q.q.ExecContext(ctx,
			"INSERT INTO trip_groups (trip_id, id, name, is_payer, counts_in_split, active) VALUES (?, ?, ?, ?, ?, ?)",
			roster.TripID, g.ID, g.Name, g.IsPayer, g.CountsInSplit, g.Active,
		); err != nil {
			return storage.Wrap("insert group", err)
		}
	}
	for _, t := range roster.Travelers {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO travelers (trip_id, id, name, group_id, is_payer, counts_in_split, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			roster.TripID, t.ID, t.Name, nullString(t.GroupID), t.IsPayer, t.CountsInSplit, t.Active,
		); err != nil {
			return storage.Wrap("insert traveler", err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
