// Package vehicle defines the per-vehicle snapshot exchanged between the tick
// driver and the platoon coordinators, along with the membership state enums
// and the gap metrics derived from a pair of snapshots.
package vehicle

import "fmt"

// ID is the stable identity of a vehicle for its whole presence in the scene.
type ID int

// Ref returns a neighbour reference to id.
func Ref(id ID) *ID { return &id }

// MembershipState is the front-side platooning intent of a single vehicle.
type MembershipState string

const (
	StandAlone MembershipState = "standalone"
	Join       MembershipState = "join"
	Platoon    MembershipState = "platoon"
	CutIn      MembershipState = "cutin"
	CutThrough MembershipState = "cutthrough"
	Split      MembershipState = "split"
)

// InPlatoon reports whether the vehicle still counts as a platoon member.
// CutIn and CutThrough keep membership while a third party occupies the gap.
func (s MembershipState) InPlatoon() bool {
	switch s {
	case Platoon, CutIn, CutThrough:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the declared membership states.
func (s MembershipState) Valid() bool {
	switch s {
	case StandAlone, Join, Platoon, CutIn, CutThrough, Split:
		return true
	default:
		return false
	}
}

// RearGapState is the state of a vehicle's relation to its follower.
type RearGapState string

const (
	RearStandAlone RearGapState = "standalone"
	RearJoin       RearGapState = "join"
	RearPlatoon    RearGapState = "platoon"
	BackSplit      RearGapState = "backsplit"
)

// Valid reports whether s is one of the declared rear gap states.
func (s RearGapState) Valid() bool {
	switch s {
	case RearStandAlone, RearJoin, RearPlatoon, BackSplit:
		return true
	default:
		return false
	}
}

// State is a point-in-time snapshot of one vehicle.
//
// LeaderID and FollowerID are weak references resolved by id against the
// snapshot of the same tick; nil means no neighbour.
type State struct {
	ID           ID      `json:"id"`
	Position     float64 `json:"position"`     // metres
	Speed        float64 `json:"speed"`        // m/s
	Acceleration float64 `json:"acceleration"` // m/s²
	Length       float64 `json:"length"`       // metres
	Lane         int     `json:"lane"`
	LeaderID     *ID     `json:"leader_id,omitempty"`
	FollowerID   *ID     `json:"follower_id,omitempty"`

	PCMCapable     bool `json:"pcm_capable"`
	SplitRequested bool `json:"split_requested"`
	Intruder       bool `json:"intruder"`

	MembershipState MembershipState `json:"membership_state"`
	// PreviousMembershipState is the state held before the most recent tick.
	PreviousMembershipState MembershipState `json:"previous_membership_state,omitempty"`
	RearGapState            RearGapState    `json:"rear_gap_state"`

	// PlatoonID is the id of the platoon head and PlatoonPosition the 1-based
	// rank in the chain, the head being 1. Both are only meaningful while
	// MembershipState.InPlatoon() or while the vehicle heads a platoon.
	PlatoonID       ID  `json:"platoon_id,omitempty"`
	PlatoonPosition int `json:"platoon_position,omitempty"`

	// Chain is the number of vehicles from the head of the vehicle's leader
	// chain down to and including itself, counting joiners. The registry
	// fills it at the start of every tick.
	Chain int `json:"-"`
}

// New returns a snapshot with both coordinators in their initial state.
func New(id ID) State {
	return State{
		ID:              id,
		MembershipState: StandAlone,
		RearGapState:    RearStandAlone,
	}
}

// LeftPlatoon reports whether the vehicle dropped out of a platoon during its
// most recent evaluation.
func (s State) LeftPlatoon() bool {
	return s.PreviousMembershipState.InPlatoon() && !s.MembershipState.InPlatoon()
}

// ChainLength is the number of vehicles from the chain head down to and
// including s. A vehicle that was not measured heads a chain of one.
func (s State) ChainLength() int {
	return max(s.Chain, 1)
}

// Heads reports whether the vehicle is outside any platoon itself but holds
// a follower that is joining or in its platoon.
func (s State) Heads() bool {
	if s.MembershipState.InPlatoon() {
		return false
	}
	return s.RearGapState == RearJoin || s.RearGapState == RearPlatoon
}

func (s State) String() string {
	return fmt.Sprintf("vehicle %d (lane %d, x=%.2f, v=%.2f, %s/%s)",
		s.ID, s.Lane, s.Position, s.Speed, s.MembershipState, s.RearGapState)
}
