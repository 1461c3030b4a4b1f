package calculator

import (
	"fmt"

	"github.com/mmynk/tripsplit/internal/models"
)

// Resolution is the outcome of resolving a participation policy.
type Resolution struct {
	Participants []models.Participant
	Warnings     []IntegrityWarning
}

// unitKind returns the participant kind a split mode divides among.
// CUSTOM rows are edited per traveler.
func unitKind(mode models.SplitMode) models.ParticipantKind {
	if mode == models.SplitByGroup {
		return models.KindGroup
	}
	return models.KindTraveler
}

// selects reports whether a unit with the given flags passes the policy.
func selects(policy models.ParticipationMode, isPayer, countsInSplit bool) bool {
	switch policy {
	case models.ParticipationInherit:
		return countsInSplit
	case models.ParticipationAll:
		return true
	case models.ParticipationPayingOnly:
		return isPayer
	}
	return false
}

// ResolveParticipants turns a participation policy into the concrete,
// deduplicated set of participants of one expense, sorted by key.
//
// Under BY_GROUP, active travelers the policy would select but who have no
// active group are left out and reported as warnings.
func ResolveParticipants(roster models.Roster, mode models.SplitMode, policy models.ParticipationMode, manual []models.Participant) (Resolution, error) {
	kind := unitKind(mode)

	if policy == models.ParticipationManual {
		return resolveManual(roster, kind, manual)
	}
	switch policy {
	case models.ParticipationInherit, models.ParticipationAll, models.ParticipationPayingOnly:
	default:
		return Resolution{}, invalid(CodeInvalidMode, "unknown participation mode %q", policy)
	}

	var res Resolution
	if kind == models.KindGroup {
		for _, g := range roster.Groups {
			if g.Active && selects(policy, g.IsPayer, g.CountsInSplit) {
				res.Participants = append(res.Participants, models.GroupRef(g.ID))
			}
		}
		for _, t := range roster.Travelers {
			if !t.Active || !selects(policy, t.IsPayer, t.CountsInSplit) {
				continue
			}
			if _, ok := roster.ActiveGroupOf(t.ID); !ok {
				p := models.TravelerRef(t.ID)
				res.Warnings = append(res.Warnings, IntegrityWarning{
					Kind:        WarningUngroupedTraveler,
					Participant: p,
					Message:     fmt.Sprintf("traveler %s has no group and is excluded from the split", roster.Name(p)),
				})
			}
		}
	} else {
		for _, t := range roster.Travelers {
			if t.Active && selects(policy, t.IsPayer, t.CountsInSplit) {
				res.Participants = append(res.Participants, models.TravelerRef(t.ID))
			}
		}
	}

	res.Participants = models.UniqueParticipants(res.Participants)
	if len(res.Participants) == 0 {
		return res, invalid(CodeNoParticipants, "cannot split among nobody: %s selects no participants", policy)
	}
	return res, nil
}

// resolveManual maps the caller's list onto the split unit: travelers stand
// for their group under BY_GROUP, and groups stand for their active members
// otherwise. Ungrouped travelers under BY_GROUP are warned about and left out.
func resolveManual(roster models.Roster, kind models.ParticipantKind, manual []models.Participant) (Resolution, error) {
	if len(manual) == 0 {
		return Resolution{}, invalid(CodeEmptyManualList, "manual participation requires at least one participant")
	}

	var res Resolution
	for _, p := range manual {
		if !roster.Has(p) {
			return Resolution{}, invalid(CodeUnknownParticipant, "participant %s is not on the trip roster", p)
		}
		if !roster.IsActive(p) {
			return Resolution{}, invalid(CodeUnknownParticipant, "participant %s is no longer active on the trip", p)
		}

		switch {
		case p.Kind == kind:
			res.Participants = append(res.Participants, p)
		case kind == models.KindGroup:
			g, ok := roster.ActiveGroupOf(p.ID)
			if !ok {
				res.Warnings = append(res.Warnings, IntegrityWarning{
					Kind:        WarningUngroupedTraveler,
					Participant: p,
					Message:     fmt.Sprintf("traveler %s has no group and is excluded from the split", roster.Name(p)),
				})
				continue
			}
			res.Participants = append(res.Participants, models.GroupRef(g.ID))
		default:
			res.Participants = append(res.Participants, roster.ActiveMembers(p.ID)...)
		}
	}

	res.Participants = models.UniqueParticipants(res.Participants)
	if len(res.Participants) == 0 {
		return res, invalid(CodeNoParticipants, "cannot split among nobody: the manual list selects no participants")
	}
	return res, nil
}
