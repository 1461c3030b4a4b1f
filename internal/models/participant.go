package models

import (
	"fmt"
	"sort"
	"strings"
)

// ParticipantKind tells whether a participant is an individual or a group.
type ParticipantKind string

const (
	KindTraveler ParticipantKind = "traveler"
	KindGroup    ParticipantKind = "group"
)

// Valid reports whether k is a known kind.
func (k ParticipantKind) Valid() bool {
	return k == KindTraveler || k == KindGroup
}

// Participant is a tagged reference to a traveler or a group.
type Participant struct {
	Kind ParticipantKind
	ID   string
}

// TravelerRef returns a participant referring to the traveler id.
func TravelerRef(id string) Participant {
	return Participant{Kind: KindTraveler, ID: id}
}

// GroupRef returns a participant referring to the group id.
func GroupRef(id string) Participant {
	return Participant{Kind: KindGroup, ID: id}
}

// Key is the stable identity of the participant, "kind:id".
// All ordering in the engine is by Key.
func (p Participant) Key() string {
	return string(p.Kind) + ":" + p.ID
}

func (p Participant) String() string {
	return p.Key()
}

// IsZero reports whether p is the empty participant.
func (p Participant) IsZero() bool {
	return p.Kind == "" && p.ID == ""
}

// Validate checks that the participant has a known kind and an ID.
func (p Participant) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown participant kind %q", p.Kind)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("participant id required")
	}
	return nil
}

// ParseParticipant parses the "kind:id" form produced by Key.
func ParseParticipant(s string) (Participant, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Participant{}, fmt.Errorf("invalid participant %q: want kind:id", s)
	}
	p := Participant{Kind: ParticipantKind(kind), ID: id}
	if err := p.Validate(); err != nil {
		return Participant{}, fmt.Errorf("invalid participant %q: %w", s, err)
	}
	return p, nil
}

// SortParticipants sorts ps in place by Key.
func SortParticipants(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Key() < ps[j].Key() })
}

// UniqueParticipants returns ps without duplicates, sorted by Key.
func UniqueParticipants(ps []Participant) []Participant {
	seen := make(map[string]bool, len(ps))
	out := make([]Participant, 0, len(ps))
	for _, p := range ps {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	SortParticipants(out)
	return out
}
