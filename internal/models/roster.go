package models

// Traveler is an individual on a trip.
type Traveler struct {
	// ID is the traveler identifier assigned by the trip application.
	ID string

	// TripID is the trip the traveler belongs to.
	TripID string

	// Name is the display name.
	Name string

	// GroupID is the group the traveler belongs to. Empty when the traveler
	// has not been assigned to a group yet.
	GroupID string

	// IsPayer marks travelers who pay for shared costs.
	IsPayer bool

	// CountsInSplit marks travelers included in the trip's default split.
	CountsInSplit bool

	// Active is false for travelers who left the trip.
	Active bool
}

// Group is a named cluster of travelers sharing one split unit.
type Group struct {
	ID            string
	TripID        string
	Name          string
	IsPayer       bool
	CountsInSplit bool
	Active        bool
}

// Roster is the set of travelers and groups of one trip.
type Roster struct {
	TripID    string
	Groups    []Group
	Travelers []Traveler
}

// Group returns the group with the given id.
func (r Roster) Group(id string) (Group, bool) {
	for _, g := range r.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Traveler returns the traveler with the given id.
func (r Roster) Traveler(id string) (Traveler, bool) {
	for _, t := range r.Travelers {
		if t.ID == id {
			return t, true
		}
	}
	return Traveler{}, false
}

// Has reports whether p refers to a traveler or group of the roster.
func (r Roster) Has(p Participant) bool {
	switch p.Kind {
	case KindTraveler:
		_, ok := r.Traveler(p.ID)
		return ok
	case KindGroup:
		_, ok := r.Group(p.ID)
		return ok
	}
	return false
}

// IsActive reports whether p refers to an active traveler or group.
func (r Roster) IsActive(p Participant) bool {
	switch p.Kind {
	case KindTraveler:
		t, ok := r.Traveler(p.ID)
		return ok && t.Active
	case KindGroup:
		g, ok := r.Group(p.ID)
		return ok && g.Active
	}
	return false
}

// ActiveMembers returns the active travelers of group groupID.
func (r Roster) ActiveMembers(groupID string) []Participant {
	var out []Participant
	for _, t := range r.Travelers {
		if t.Active && t.GroupID == groupID {
			out = append(out, TravelerRef(t.ID))
		}
	}
	return out
}

// ActiveGroupOf returns the active group of a traveler, if any.
func (r Roster) ActiveGroupOf(travelerID string) (Group, bool) {
	t, ok := r.Traveler(travelerID)
	if !ok || t.GroupID == "" {
		return Group{}, false
	}
	g, ok := r.Group(t.GroupID)
	if !ok || !g.Active {
		return Group{}, false
	}
	return g, true
}

// Name returns the display name of p, or its ID when unknown.
func (r Roster) Name(p Participant) string {
	switch p.Kind {
	case KindTraveler:
		if t, ok := r.Traveler(p.ID); ok && t.Name != "" {
			return t.Name
		}
	case KindGroup:
		if g, ok := r.Group(p.ID); ok && g.Name != "" {
			return g.Name
		}
	}
	return p.ID
}
