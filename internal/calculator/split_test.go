package calculator

import (
	"testing"

	"github.com/mmynk/tripsplit/internal/models"
)

func travelers(ids ...string) []models.Participant {
	ps := make([]models.Participant, len(ids))
	for i, id := range ids {
		ps[i] = models.TravelerRef(id)
	}
	return ps
}

func TestAutoDistribute(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		n       int
		want    []int64
		wantErr bool
	}{
		{name: "divisible", total: 30000, n: 3, want: []int64{10000, 10000, 10000}},
		{name: "remainder goes to first shares", total: 10000, n: 3, want: []int64{3334, 3333, 3333}},
		{name: "two units left over", total: 11, n: 3, want: []int64{4, 4, 3}},
		{name: "less than one unit each", total: 2, n: 5, want: []int64{1, 1, 0, 0, 0}},
		{name: "zero total", total: 0, n: 2, want: []int64{0, 0}},
		{name: "nobody", total: 100, n: 0, wantErr: true},
		{name: "negative total", total: -1, n: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AutoDistribute(tt.total, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AutoDistribute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("share %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEqualSplit_ExactSum(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for _, total := range []int64{0, 1, 99, 100, 10001, 30000, 99999, 123456789} {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = string(rune('a' + i))
			}
			rows, err := EqualSplit("exp", total, travelers(ids...))
			if err != nil {
				t.Fatalf("n=%d total=%d: %v", n, total, err)
			}
			if got := SumOwed(rows); got != total {
				t.Fatalf("n=%d total=%d: rows sum to %d", n, total, got)
			}
			for _, r := range rows {
				if r.Type != models.SplitTypeEqual {
					t.Fatalf("row type = %s, want equal", r.Type)
				}
			}
		}
	}
}

func TestEqualSplit_DeterministicOrder(t *testing.T) {
	a, err := EqualSplit("exp", 100, travelers("carol", "alice", "bob"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := EqualSplit("exp", 100, travelers("bob", "carol", "alice"))
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if a[0].Participant.ID != "alice" || a[0].Owed != 34 {
		t.Errorf("first row = %+v, want alice owing 34", a[0])
	}
}

func TestEqualSplit_RejectsDuplicates(t *testing.T) {
	_, err := EqualSplit("exp", 100, travelers("alice", "alice"))
	ve, ok := AsValidation(err)
	if !ok || ve.Code != CodeDuplicateParticipant {
		t.Fatalf("err = %v, want duplicate participant", err)
	}
}

func TestCustomSplit(t *testing.T) {
	row := func(id string, owed int64) models.SplitRow {
		return models.SplitRow{Participant: models.TravelerRef(id), Owed: owed}
	}

	tests := []struct {
		name     string
		total    int64
		rows     []models.SplitRow
		wantCode ValidationCode
		wantDiff int64
	}{
		{name: "exact", total: 25000, rows: []models.SplitRow{row("a", 12500), row("b", 12500)}},
		{name: "one unit short is accepted", total: 25000, rows: []models.SplitRow{row("a", 12500), row("b", 12499)}},
		{name: "one unit over is accepted", total: 25000, rows: []models.SplitRow{row("a", 12501), row("b", 12500)}},
		{
			name:     "shortfall reported",
			total:    25000,
			rows:     []models.SplitRow{row("a", 10000), row("b", 10000)},
			wantCode: CodeCustomSumMismatch,
			wantDiff: 5000,
		},
		{
			name:     "overage reported",
			total:    25000,
			rows:     []models.SplitRow{row("a", 15000), row("b", 12000)},
			wantCode: CodeCustomSumMismatch,
			wantDiff: -2000,
		},
		{
			name:     "two units off is rejected",
			total:    100,
			rows:     []models.SplitRow{row("a", 98)},
			wantCode: CodeCustomSumMismatch,
			wantDiff: 2,
		},
		{name: "no rows", total: 100, wantCode: CodeNoParticipants},
		{name: "negative row", total: 100, rows: []models.SplitRow{row("a", 150), row("b", -50)}, wantCode: CodeInvalidAmount},
		{name: "duplicate row", total: 100, rows: []models.SplitRow{row("a", 50), row("a", 50)}, wantCode: CodeDuplicateParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CustomSplit("exp", tt.total, tt.rows)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("CustomSplit() error = %v", err)
				}
				if d := tt.total - SumOwed(got); d > Tolerance || d < -Tolerance {
					t.Errorf("accepted rows are %d away from total", d)
				}
				for _, r := range got {
					if r.Type != models.SplitTypeFixed || r.ExpenseID != "exp" {
						t.Errorf("row = %+v, want fixed row of exp", r)
					}
				}
				return
			}
			ve, ok := AsValidation(err)
			if !ok {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", ve.Code, tt.wantCode)
			}
			if ve.Difference != tt.wantDiff {
				t.Errorf("difference = %d, want %d", ve.Difference, tt.wantDiff)
			}
		})
	}
}

func TestPercentSplit(t *testing.T) {
	share := func(id string, bp int64) PercentShare {
		return PercentShare{Participant: models.TravelerRef(id), BasisPoints: bp}
	}

	t.Run("thirds sum exactly", func(t *testing.T) {
		rows, err := PercentSplit("exp", 10000, []PercentShare{share("a", 3333), share("b", 3333), share("c", 3334)})
		if err != nil {
			t.Fatal(err)
		}
		if SumOwed(rows) != 10000 {
			t.Fatalf("sum = %d, want 10000", SumOwed(rows))
		}
		want := map[string]int64{"a": 3333, "b": 3333, "c": 3334}
		for _, r := range rows {
			if r.Owed != want[r.Participant.ID] {
				t.Errorf("%s owes %d, want %d", r.Participant.ID, r.Owed, want[r.Participant.ID])
			}
			if r.Type != models.SplitTypePercent {
				t.Errorf("type = %s, want percent", r.Type)
			}
		}
	})

	t.Run("largest remainder gets the extra unit", func(t *testing.T) {
		// 101 * 0.6 = 60.6, 101 * 0.4 = 40.4 -> 61/40
		rows, err := PercentSplit("exp", 101, []PercentShare{share("a", 6000), share("b", 4000)})
		if err != nil {
			t.Fatal(err)
		}
		if rows[0].Owed != 61 || rows[1].Owed != 40 {
			t.Errorf("got %d/%d, want 61/40", rows[0].Owed, rows[1].Owed)
		}
	})

	t.Run("shares must add up to 100%", func(t *testing.T) {
		_, err := PercentSplit("exp", 100, []PercentShare{share("a", 5000), share("b", 4000)})
		ve, ok := AsValidation(err)
		if !ok || ve.Code != CodePercentSumMismatch || ve.Difference != 1000 {
			t.Fatalf("err = %v, want percent mismatch of 1000", err)
		}
	})

	t.Run("largest representable total", func(t *testing.T) {
		rows, err := PercentSplit("exp", MaxPercentTotal, []PercentShare{share("a", 5000), share("b", 5000)})
		if err != nil {
			t.Fatal(err)
		}
		if SumOwed(rows) != MaxPercentTotal {
			t.Errorf("sum = %d, want %d", SumOwed(rows), MaxPercentTotal)
		}
	})

	t.Run("total too large", func(t *testing.T) {
		_, err := PercentSplit("exp", MaxPercentTotal+1, []PercentShare{share("a", 5000), share("b", 5000)})
		ve, ok := AsValidation(err)
		if !ok || ve.Code != CodeInvalidAmount {
			t.Fatalf("err = %v, want invalid_amount", err)
		}
	})
}
