package coordinator

import "github.com/licit-lab/ensemble-sub000/internal/vehicle"

// Side names the coordinator that produced an event.
type Side string

const (
	Front Side = "front"
	Rear  Side = "rear"
)

// Event records a coordinator state change. Events are returned to the host
// in evaluation order rather than pushed to subscribers.
type Event struct {
	Tick        uint64     `json:"tick"`
	VehicleID   vehicle.ID `json:"vehicle_id"`
	Coordinator Side       `json:"coordinator"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	// Forced is set when the change was written by the leader's rear
	// coordinator rather than decided by the vehicle itself.
	Forced bool `json:"forced,omitempty"`
}
