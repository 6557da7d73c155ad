// Package coordinator implements the platoon membership automaton and the two
// per-vehicle coordinators built on it.
//
// The Front Gap Coordinator decides a vehicle's membership state from its
// relation to its leader. The Rear Gap Coordinator follows the decision taken
// by the follower's front coordinator and never advances on its own, except to
// start a back split when the vehicle itself asks to leave.
package coordinator

import (
	"math"

	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// Transition evaluates one step of the membership automaton for ego with
// respect to leader. Guards are checked in table order and the first match
// wins, so at most one edge is taken per call. leader must be non-nil; the
// no-leader case is handled by FrontGap.Evaluate.
func Transition(p config.Protocol, ego, leader vehicle.State) vehicle.MembershipState {
	gap := vehicle.GapDistance(ego, leader)

	switch ego.MembershipState {
	case vehicle.StandAlone:
		if CanConnect(p, ego, leader) {
			return vehicle.Join
		}

	case vehicle.Join:
		if !CanConnect(p, ego, leader) {
			return vehicle.StandAlone
		}
		if gapClosed(p, ego, leader) {
			return vehicle.Platoon
		}

	case vehicle.Platoon:
		if leaderLost(ego, leader) {
			return vehicle.Split
		}
		if ego.Intruder {
			return vehicle.CutIn
		}

	case vehicle.CutIn:
		if !ego.Intruder {
			return vehicle.CutThrough
		}

	case vehicle.CutThrough:
		if leaderLost(ego, leader) {
			return vehicle.Split
		}
		if gapClosed(p, ego, leader) {
			return vehicle.Platoon
		}

	case vehicle.Split:
		if canRejoin(p, ego, leader) {
			return vehicle.Platoon
		}
		if gap > p.StandaloneGapThreshold {
			return vehicle.StandAlone
		}
	}
	return ego.MembershipState
}

// CanConnect is the StandAlone→Join guard. It also keeps a joining vehicle
// in Join; once it fails the join is cancelled, which is how a chain that
// grew past the length limit sheds its surplus joiners.
func CanConnect(p config.Protocol, ego, leader vehicle.State) bool {
	if !leader.PCMCapable || leader.Intruder || leader.SplitRequested {
		return false
	}
	if !ego.PCMCapable || ego.SplitRequested {
		return false
	}
	if vehicle.GapDistance(ego, leader) >= p.MaxConnectionDistance {
		return false
	}
	return leader.ChainLength()+1 <= p.MaxPlatoonLength
}

// leaderLost reports whether a platoon member has to split from its leader:
// either side asks for it, the leader cannot platoon, or the leader is
// neither a member nor the head of this chain. The last case also covers a
// leader that just dropped out and a vehicle that moved into the gap.
func leaderLost(ego, leader vehicle.State) bool {
	if ego.SplitRequested || leader.SplitRequested || !leader.PCMCapable {
		return true
	}
	if leader.LeftPlatoon() {
		return true
	}
	return !leader.MembershipState.InPlatoon() && !leader.Heads()
}

// gapClosed reports whether ego sits at the platoon spacing behind leader and
// matches its speed.
func gapClosed(p config.Protocol, ego, leader vehicle.State) bool {
	gap := vehicle.GapDistance(ego, leader)
	return math.Abs(vehicle.RelativeSpeed(ego, leader)) < p.MaxRelativeSpeedError &&
		math.Abs(gap-p.DesiredGap) < p.MaxGapDistanceError
}

// canRejoin lets a split vehicle re-form behind a leader that has itself
// dropped out of its platoon, as long as nobody still asks to split.
func canRejoin(p config.Protocol, ego, leader vehicle.State) bool {
	if ego.SplitRequested || leader.SplitRequested || !leader.PCMCapable {
		return false
	}
	if leader.MembershipState.InPlatoon() {
		return false
	}
	return vehicle.GapDistance(ego, leader) < p.StandaloneGapThreshold
}

// edges lists every single-step transition of the membership automaton,
// self-loops excluded.
var edges = map[vehicle.MembershipState][]vehicle.MembershipState{
	vehicle.StandAlone: {vehicle.Join},
	vehicle.Join:       {vehicle.StandAlone, vehicle.Platoon},
	vehicle.Platoon:    {vehicle.Split, vehicle.CutIn},
	vehicle.CutIn:      {vehicle.CutThrough},
	vehicle.CutThrough: {vehicle.Platoon, vehicle.Split},
	vehicle.Split:      {vehicle.Platoon, vehicle.StandAlone},
}

// Adjacent reports whether to is reachable from from in at most one edge.
// Losing the leader leads to StandAlone from any state.
func Adjacent(from, to vehicle.MembershipState) bool {
	if from == to || to == vehicle.StandAlone {
		return true
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}
