package coordinator

import "github.com/licit-lab/ensemble-sub000/internal/vehicle"

// RearDecision is the outcome of one rear coordinator evaluation.
type RearDecision struct {
	State vehicle.RearGapState
	// ForceFollowerSplit asks the caller to move the follower's front
	// coordinator to Split in the same pass.
	ForceFollowerSplit bool
}

// RearGap is the rear gap coordinator of one vehicle. It mirrors the front
// coordinator of the follower and only initiates a back split.
type RearGap struct {
	id    vehicle.ID
	state vehicle.RearGapState
}

// NewRearGap returns a coordinator in the standalone state.
func NewRearGap(id vehicle.ID) *RearGap {
	return &RearGap{id: id, state: vehicle.RearStandAlone}
}

// State returns the current rear gap state.
func (r *RearGap) State() vehicle.RearGapState { return r.state }

// Evaluate returns the next rear gap state of ego given the state its
// follower's front coordinator reached in the current tick. A nil follower
// means there is none. RearPlatoon is entered only when the follower is
// already in Platoon, and a vehicle that cannot platoon never leads one.
//
// A follower that is a member in any form (cut in or cutting through
// included) keeps the rear coordinator in Join until it settles in Platoon.
func (r *RearGap) Evaluate(ego vehicle.State, follower *vehicle.MembershipState) RearDecision {
	if follower == nil {
		return RearDecision{State: vehicle.RearStandAlone}
	}
	f := *follower
	joining := f == vehicle.Join || f.InPlatoon()

	switch r.state {
	case vehicle.RearStandAlone:
		if ego.PCMCapable && joining {
			return RearDecision{State: vehicle.RearJoin}
		}

	case vehicle.RearJoin:
		if !ego.PCMCapable || !joining {
			return RearDecision{State: vehicle.RearStandAlone}
		}
		if f == vehicle.Platoon {
			return RearDecision{State: vehicle.RearPlatoon}
		}

	case vehicle.RearPlatoon:
		if ego.SplitRequested {
			return RearDecision{State: vehicle.BackSplit, ForceFollowerSplit: f.InPlatoon()}
		}
		if !f.InPlatoon() {
			return RearDecision{State: vehicle.BackSplit}
		}

	case vehicle.BackSplit:
		if f == vehicle.Split {
			break
		}
		// The follower re-formed behind ego once the split was over.
		if ego.PCMCapable && !ego.SplitRequested && f.InPlatoon() {
			return RearDecision{State: vehicle.RearJoin}
		}
		return RearDecision{State: vehicle.RearStandAlone}
	}
	return RearDecision{State: r.state}
}

// Apply records next as the coordinator state and returns the event when it
// changed.
func (r *RearGap) Apply(next vehicle.RearGapState, tick uint64) (Event, bool) {
	old := r.state
	r.state = next
	if old == next {
		return Event{}, false
	}
	return Event{
		Tick:        tick,
		VehicleID:   r.id,
		Coordinator: Rear,
		From:        string(old),
		To:          string(next),
	}, true
}
