// Package selection holds the two-slot endpoint state: which node is
// the route source, which is the target, and which slot the next map
// click fills.
package selection

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/bosth/ottoman-routing/internal/corpus"
)

// ClickTolerance is the hit-test radius for map clicks, in degrees.
const ClickTolerance = 0.006

// ErrDuplicateEndpoint rejects assigning the node already held by the
// other slot.
var ErrDuplicateEndpoint = errors.New("node already selected for the other endpoint")

// ErrUnknownNode rejects identifiers the corpus cannot resolve.
var ErrUnknownNode = errors.New("unknown node")

// Role names one of the two endpoint slots.
type Role int

const (
	RoleSource Role = iota
	RoleTarget
)

// Other returns the complementary role.
func (r Role) Other() Role {
	if r == RoleSource {
		return RoleTarget
	}
	return RoleSource
}

func (r Role) String() string {
	if r == RoleSource {
		return "source"
	}
	return "target"
}

// ParseRole maps the wire name of a slot to its Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "source":
		return RoleSource, nil
	case "target":
		return RoleTarget, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Surface receives marker updates as slots change. The map layer
// implements it; tests substitute a recorder.
type Surface interface {
	PlaceMarker(role Role, loc corpus.Location)
	RemoveMarker(role Role)
}

// Machine is the two-slot selection state. One slot may hold focus,
// meaning the next map click or suggestion pick fills it. Not safe for
// concurrent use; the owning control serializes access.
type Machine struct {
	c       *corpus.Corpus
	surface Surface

	slots    [2]*corpus.Location
	active   Role
	hasFocus bool

	onChange func()
}

// NewMachine builds a selection machine over a corpus and map surface.
// A nil surface is allowed; marker updates are then dropped.
func NewMachine(c *corpus.Corpus, surface Surface) *Machine {
	return &Machine{c: c, surface: surface}
}

// SetOnChange installs the callback fired after any slot changes.
func (m *Machine) SetOnChange(f func()) {
	m.onChange = f
}

// Activate gives a slot focus.
func (m *Machine) Activate(role Role) {
	m.active = role
	m.hasFocus = true
}

// Blur drops focus; map clicks become no-ops until a slot is activated
// again.
func (m *Machine) Blur() {
	m.hasFocus = false
}

// Active returns the focused slot, if any.
func (m *Machine) Active() (Role, bool) {
	return m.active, m.hasFocus
}

// Set assigns a record to a slot. The same node cannot occupy both
// slots. On success the marker is placed and focus moves to the
// complementary slot when that slot is still empty, so a source pick
// flows straight into choosing the target.
func (m *Machine) Set(role Role, loc corpus.Location) error {
	if other := m.slots[role.Other()]; other != nil && other.ID == loc.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, loc.ID)
	}

	cp := loc
	m.slots[role] = &cp
	if m.surface != nil {
		m.surface.PlaceMarker(role, cp)
	}

	if m.slots[role.Other()] == nil {
		m.Activate(role.Other())
	} else {
		m.Blur()
	}
	m.fire()
	return nil
}

// ResolveAndSet assigns a slot by identifier, resolving the record
// against the corpus.
func (m *Machine) ResolveAndSet(role Role, id string) error {
	loc, ok := m.c.Resolve(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return m.Set(role, loc)
}

// Clear empties a slot and removes its marker.
func (m *Machine) Clear(role Role) {
	if m.slots[role] == nil {
		return
	}
	m.slots[role] = nil
	if m.surface != nil {
		m.surface.RemoveMarker(role)
	}
	m.fire()
}

// Reset empties both slots.
func (m *Machine) Reset() {
	m.Clear(RoleSource)
	m.Clear(RoleTarget)
	m.Blur()
}

// Slot returns the record held by a slot.
func (m *Machine) Slot(role Role) (corpus.Location, bool) {
	if m.slots[role] == nil {
		return corpus.Location{}, false
	}
	return *m.slots[role], true
}

// Lookup returns the slot record matching an identifier, whichever slot
// holds it. The route pipeline uses it so itinerary endpoints show the
// exact record the user picked.
func (m *Machine) Lookup(id string) (corpus.Location, bool) {
	for _, s := range m.slots {
		if s != nil && s.ID == id {
			return *s, true
		}
	}
	return corpus.Location{}, false
}

// Complete reports whether both endpoints are chosen.
func (m *Machine) Complete() bool {
	return m.slots[RoleSource] != nil && m.slots[RoleTarget] != nil
}

// Pair returns both endpoints when the selection is complete.
func (m *Machine) Pair() (source, target corpus.Location, ok bool) {
	if !m.Complete() {
		return corpus.Location{}, corpus.Location{}, false
	}
	return *m.slots[RoleSource], *m.slots[RoleTarget], true
}

// Click hit-tests a map click against the corpus and fills the focused
// slot. Without focus, without a node inside the tolerance, or when the
// hit duplicates the other endpoint, the click changes nothing.
func (m *Machine) Click(pt orb.Point) (Role, corpus.Location, bool) {
	role, ok := m.Active()
	if !ok {
		return 0, corpus.Location{}, false
	}
	loc, ok := m.c.NearestWithin(pt, ClickTolerance)
	if !ok {
		return 0, corpus.Location{}, false
	}
	if err := m.Set(role, loc); err != nil {
		return 0, corpus.Location{}, false
	}
	return role, loc, true
}

func (m *Machine) fire() {
	if m.onChange != nil {
		m.onChange()
	}
}
