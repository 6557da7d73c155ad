// Package truck defines the static truck definitions read from a scenario
// and the SimTruck carrying each truck's live kinematic state.
package truck

import (
	"encoding/json"
	"fmt"

	"github.com/licit-lab/ensemble-sub000/internal/kinematics"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// Truck is the static definition of a truck in a scenario.
// The physics of acceleration and braking are encapsulated by the Kinem field.
type Truck struct {
	ID              vehicle.ID             `json:"id"`
	Length          float64                `json:"length"` // metres
	InitialLane     int                    `json:"lane"`
	InitialPosition float64                `json:"position"`      // metres, at departure
	InitialSpeed    float64                `json:"speed"`         // m/s, at departure
	DesiredSpeed    float64                `json:"desired_speed"` // m/s
	PCMCapable      bool                   `json:"pcm_capable"`
	Kinem           kinematics.MotionModel `json:"-"` // set by UnmarshalJSON
	// DepartureDelay is the simulation time at which the truck enters the
	// scene. Zero = present from the start.
	DepartureDelay float64 `json:"departure_delay,omitempty"` // seconds
	// ExitTime, when set, is the simulation time at which the truck leaves
	// the scene.
	ExitTime *float64 `json:"exit_time,omitempty"` // seconds
}

// UnmarshalJSON reads a Truck and resolves its "kinematics" object through
// kinematics.Decode.
func (t *Truck) UnmarshalJSON(data []byte) error {
	type plain Truck
	aux := struct {
		*plain
		Kinem json.RawMessage `json:"kinematics"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	k, err := kinematics.Decode(aux.Kinem)
	if err != nil {
		return fmt.Errorf("truck %d: %w", t.ID, err)
	}
	t.Kinem = k
	return nil
}

// Validate checks the static parameters of a truck.
func (t Truck) Validate() error {
	if t.Length <= 0 {
		return fmt.Errorf("truck %d: length must be positive", t.ID)
	}
	if t.Kinem == nil {
		return fmt.Errorf("truck %d: no kinematics model", t.ID)
	}
	if t.Kinem.MaxAcceleration() <= 0 || t.Kinem.MaxDeceleration() <= 0 {
		return fmt.Errorf("truck %d: acceleration limits must be positive", t.ID)
	}
	if t.DesiredSpeed <= 0 || t.DesiredSpeed > t.Kinem.VMax() {
		return fmt.Errorf("truck %d: desired speed %.2f outside (0, %.2f]", t.ID, t.DesiredSpeed, t.Kinem.VMax())
	}
	if t.ExitTime != nil && *t.ExitTime <= t.DepartureDelay {
		return fmt.Errorf("truck %d: exit time before departure", t.ID)
	}
	return nil
}

// SimTruck is a Truck enriched with live simulation state.
type SimTruck struct {
	Truck
	Position     float64 `json:"position"`     // metres
	Speed        float64 `json:"speed"`        // m/s
	Acceleration float64 `json:"acceleration"` // m/s², last applied
	Lane         int     `json:"lane"`
	// Protocol is the snapshot returned by the registry on the last tick.
	Protocol vehicle.State `json:"-"`
}

// NewSimTruck places a truck at its departure position.
func NewSimTruck(t Truck) *SimTruck {
	return &SimTruck{
		Truck:    t,
		Position: t.InitialPosition,
		Speed:    t.InitialSpeed,
		Lane:     t.InitialLane,
		Protocol: vehicle.New(t.ID),
	}
}

// Active reports whether the truck is in the scene at time now.
func (s *SimTruck) Active(now float64) bool {
	if now < s.DepartureDelay {
		return false
	}
	return s.ExitTime == nil || now < *s.ExitTime
}

// Advance applies the acceleration command a for dt seconds.
func (s *SimTruck) Advance(a, dt float64) {
	dist, v, applied := s.Kinem.Step(s.Speed, a, dt)
	s.Position += dist
	s.Speed = v
	s.Acceleration = applied
}

// Snapshot returns the kinematic part of the truck's protocol snapshot.
// Neighbour references and protocol flags are filled in by the caller.
func (s *SimTruck) Snapshot() vehicle.State {
	return vehicle.State{
		ID:           s.ID,
		Position:     s.Position,
		Speed:        s.Speed,
		Acceleration: s.Acceleration,
		Length:       s.Length,
		Lane:         s.Lane,
		PCMCapable:   s.PCMCapable,
	}
}

// TruckLog is a point-in-time snapshot of a SimTruck's state.
type TruckLog struct {
	ID              vehicle.ID              `json:"id"`
	Lane            int                     `json:"lane"`
	Position        float64                 `json:"position"`
	Speed           float64                 `json:"speed"`
	Acceleration    float64                 `json:"acceleration"`
	LeaderID        *vehicle.ID             `json:"leader_id,omitempty"`
	Gap             *float64                `json:"gap,omitempty"`
	MembershipState vehicle.MembershipState `json:"membership_state"`
	RearGapState    vehicle.RearGapState    `json:"rear_gap_state"`
	PlatoonID       vehicle.ID              `json:"platoon_id,omitempty"`
	PlatoonPosition int                     `json:"platoon_position,omitempty"`
	Mode            kinematics.Mode         `json:"mode"`
}

// GetLog returns a point-in-time snapshot of the truck state.
func (s *SimTruck) GetLog(gap *float64, mode kinematics.Mode) TruckLog {
	return TruckLog{
		ID:              s.ID,
		Lane:            s.Lane,
		Position:        s.Position,
		Speed:           s.Speed,
		Acceleration:    s.Acceleration,
		LeaderID:        s.Protocol.LeaderID,
		Gap:             gap,
		MembershipState: s.Protocol.MembershipState,
		RearGapState:    s.Protocol.RearGapState,
		PlatoonID:       s.Protocol.PlatoonID,
		PlatoonPosition: s.Protocol.PlatoonPosition,
		Mode:            mode,
	}
}
