package calculator

import (
	"testing"

	"github.com/mmynk/tripsplit/internal/models"
)

func testRoster() models.Roster {
	return models.Roster{
		TripID: "trip",
		Groups: []models.Group{
			{ID: "g-b", Name: "Bianchi", IsPayer: false, CountsInSplit: true, Active: true},
			{ID: "g-a", Name: "Rossi", IsPayer: true, CountsInSplit: true, Active: true},
			{ID: "g-c", Name: "Verdi", IsPayer: false, CountsInSplit: false, Active: true},
			{ID: "g-old", Name: "Gone", IsPayer: true, CountsInSplit: true, Active: false},
		},
		Travelers: []models.Traveler{
			{ID: "t1", Name: "Anna", GroupID: "g-a", IsPayer: true, CountsInSplit: true, Active: true},
			{ID: "t2", Name: "Bruno", GroupID: "g-b", CountsInSplit: true, Active: true},
			{ID: "t3", Name: "Carla", GroupID: "g-c", Active: true},
			{ID: "t4", Name: "Dario", GroupID: "", IsPayer: true, CountsInSplit: true, Active: true},
			{ID: "t5", Name: "Elena", GroupID: "g-old", CountsInSplit: true, Active: true},
			{ID: "t6", Name: "Fabio", GroupID: "g-a", IsPayer: true, CountsInSplit: true, Active: false},
		},
	}
}

func keys(ps []models.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolveParticipants(t *testing.T) {
	roster := testRoster()

	tests := []struct {
		name         string
		mode         models.SplitMode
		policy       models.ParticipationMode
		manual       []models.Participant
		want         []string
		wantWarnings int
		wantCode     ValidationCode
	}{
		{
			name:         "by group inherit",
			mode:         models.SplitByGroup,
			policy:       models.ParticipationInherit,
			want:         []string{"group:g-a", "group:g-b"},
			wantWarnings: 2, // Dario has no group, Elena's group is inactive
		},
		{
			name:         "by group all",
			mode:         models.SplitByGroup,
			policy:       models.ParticipationAll,
			want:         []string{"group:g-a", "group:g-b", "group:g-c"},
			wantWarnings: 2,
		},
		{
			name:         "by group paying only",
			mode:         models.SplitByGroup,
			policy:       models.ParticipationPayingOnly,
			want:         []string{"group:g-a"},
			wantWarnings: 1, // Dario
		},
		{
			name:   "per person inherit",
			mode:   models.SplitPerPerson,
			policy: models.ParticipationInherit,
			want:   []string{"traveler:t1", "traveler:t2", "traveler:t4", "traveler:t5"},
		},
		{
			name:   "per person all skips inactive",
			mode:   models.SplitPerPerson,
			policy: models.ParticipationAll,
			want:   []string{"traveler:t1", "traveler:t2", "traveler:t3", "traveler:t4", "traveler:t5"},
		},
		{
			name:   "per person paying only",
			mode:   models.SplitPerPerson,
			policy: models.ParticipationPayingOnly,
			want:   []string{"traveler:t1", "traveler:t4"},
		},
		{
			name:   "manual deduplicates and sorts",
			mode:   models.SplitPerPerson,
			policy: models.ParticipationManual,
			manual: []models.Participant{models.TravelerRef("t3"), models.TravelerRef("t1"), models.TravelerRef("t3")},
			want:   []string{"traveler:t1", "traveler:t3"},
		},
		{
			name:     "manual empty",
			mode:     models.SplitPerPerson,
			policy:   models.ParticipationManual,
			wantCode: CodeEmptyManualList,
		},
		{
			name:   "manual travelers under by group map to their groups",
			mode:   models.SplitByGroup,
			policy: models.ParticipationManual,
			manual: []models.Participant{
				models.TravelerRef("t1"), models.TravelerRef("t4"), models.TravelerRef("t2"), models.GroupRef("g-a"),
			},
			want:         []string{"group:g-a", "group:g-b"},
			wantWarnings: 1, // Dario
		},
		{
			name:     "manual only ungrouped travelers under by group",
			mode:     models.SplitByGroup,
			policy:   models.ParticipationManual,
			manual:   []models.Participant{models.TravelerRef("t4")},
			wantCode: CodeNoParticipants,
		},
		{
			name:   "manual groups per person expand to active members",
			mode:   models.SplitPerPerson,
			policy: models.ParticipationManual,
			manual: []models.Participant{models.GroupRef("g-a"), models.GroupRef("g-b"), models.TravelerRef("t1")},
			want:   []string{"traveler:t1", "traveler:t2"},
		},
		{
			name:     "manual inactive traveler",
			mode:     models.SplitPerPerson,
			policy:   models.ParticipationManual,
			manual:   []models.Participant{models.TravelerRef("t1"), models.TravelerRef("t6")},
			wantCode: CodeUnknownParticipant,
		},
		{
			name:     "manual inactive group",
			mode:     models.SplitByGroup,
			policy:   models.ParticipationManual,
			manual:   []models.Participant{models.GroupRef("g-old")},
			wantCode: CodeUnknownParticipant,
		},
		{
			name:     "manual unknown id",
			mode:     models.SplitPerPerson,
			policy:   models.ParticipationManual,
			manual:   []models.Participant{models.TravelerRef("nobody")},
			wantCode: CodeUnknownParticipant,
		},
		{
			name:     "unknown policy",
			mode:     models.SplitPerPerson,
			policy:   "SOME",
			wantCode: CodeInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveParticipants(roster, tt.mode, tt.policy, tt.manual)
			if tt.wantCode != "" {
				ve, ok := AsValidation(err)
				if !ok || ve.Code != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveParticipants() error = %v", err)
			}
			if got := keys(res.Participants); !equalStrings(got, tt.want) {
				t.Errorf("participants = %v, want %v", got, tt.want)
			}
			if len(res.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", res.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestResolveParticipants_UngroupedTravelerWarning(t *testing.T) {
	roster := models.Roster{
		Groups: []models.Group{
			{ID: "g1", Name: "A", CountsInSplit: true, Active: true},
		},
		Travelers: []models.Traveler{
			{ID: "t1", Name: "Anna", GroupID: "g1", CountsInSplit: true, Active: true},
			{ID: "t2", Name: "Solo", CountsInSplit: true, Active: true},
		},
	}

	res, err := ResolveParticipants(roster, models.SplitByGroup, models.ParticipationInherit, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", res.Warnings)
	}
	w := res.Warnings[0]
	if w.Kind != WarningUngroupedTraveler || w.Participant != models.TravelerRef("t2") {
		t.Errorf("warning = %+v", w)
	}
	for _, p := range res.Participants {
		if p.Kind == models.KindTraveler {
			t.Errorf("traveler %s must not be a BY_GROUP participant", p)
		}
	}

	rows, err := EqualSplit("exp", 1000, res.Participants)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Participant != models.GroupRef("g1") {
		t.Errorf("rows = %+v, want a single row for g1", rows)
	}
}

func TestResolveParticipants_Nobody(t *testing.T) {
	roster := models.Roster{
		Travelers: []models.Traveler{{ID: "t1", Active: true}},
	}
	_, err := ResolveParticipants(roster, models.SplitPerPerson, models.ParticipationPayingOnly, nil)
	ve, ok := AsValidation(err)
	if !ok || ve.Code != CodeNoParticipants {
		t.Fatalf("err = %v, want no participants", err)
	}
}
