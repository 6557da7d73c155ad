package coordinator

import (
	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// FrontGap is the front gap coordinator of one vehicle: it owns the
// membership state with respect to the vehicle's leader.
type FrontGap struct {
	id       vehicle.ID
	cfg      config.Protocol
	state    vehicle.MembershipState
	previous vehicle.MembershipState
}

// NewFrontGap returns a coordinator in the StandAlone state.
func NewFrontGap(id vehicle.ID, cfg config.Protocol) *FrontGap {
	return &FrontGap{
		id:       id,
		cfg:      cfg,
		state:    vehicle.StandAlone,
		previous: vehicle.StandAlone,
	}
}

// State returns the current membership state.
func (f *FrontGap) State() vehicle.MembershipState { return f.state }

// Previous returns the state held before the last applied change.
func (f *FrontGap) Previous() vehicle.MembershipState { return f.previous }

// Evaluate returns the next membership state of ego given its leader. It does
// not modify the coordinator or its inputs.
//
// A missing leader, or one in another lane, forces StandAlone whatever the
// current state: a platoon head is never in Join or Platoon.
func (f *FrontGap) Evaluate(ego vehicle.State, leader *vehicle.State) vehicle.MembershipState {
	if leader == nil || !vehicle.SameLane(ego, *leader) {
		return vehicle.StandAlone
	}
	return Transition(f.cfg, ego, *leader)
}

// Apply records next as the coordinator state. It returns the resulting
// event and true when the state changed.
func (f *FrontGap) Apply(next vehicle.MembershipState, tick uint64) (Event, bool) {
	return f.set(next, tick, false)
}

// Force overwrites the state on behalf of the leader's rear coordinator. It
// runs after Apply within the same tick, so the state held at the start of
// the tick is kept as Previous.
func (f *FrontGap) Force(next vehicle.MembershipState, tick uint64) (Event, bool) {
	return f.set(next, tick, true)
}

func (f *FrontGap) set(next vehicle.MembershipState, tick uint64, forced bool) (Event, bool) {
	old := f.state
	if !forced {
		f.previous = old
	}
	f.state = next
	if old == next {
		return Event{}, false
	}
	return Event{
		Tick:        tick,
		VehicleID:   f.id,
		Coordinator: Front,
		From:        string(old),
		To:          string(next),
		Forced:      forced,
	}, true
}
