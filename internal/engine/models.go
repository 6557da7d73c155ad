package engine

import (
	"go.uber.org/zap"

	"github.com/licit-lab/ensemble-sub000/internal/coordinator"
	"github.com/licit-lab/ensemble-sub000/internal/kinematics"
	"github.com/licit-lab/ensemble-sub000/internal/registry"
	"github.com/licit-lab/ensemble-sub000/internal/truck"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"` // a fresh uuid when empty
	RunTime      float64 `json:"run_time"`      // seconds
	TimeStep     float64 `json:"time_step"`     // seconds
}

// EventKind names a scripted host action.
type EventKind string

const (
	// EventSplit raises the truck's split request for the event window.
	EventSplit EventKind = "split"
	// EventCutIn marks a non-platoon vehicle in the truck's front gap for the
	// event window.
	EventCutIn EventKind = "cutin"
	// EventLaneChange moves the truck to Lane at Start.
	EventLaneChange EventKind = "lane_change"
)

// Event is a scripted host action applied to one truck.
type Event struct {
	Truck vehicle.ID `json:"truck"`
	Kind  EventKind  `json:"kind"`
	Start float64    `json:"start"` // seconds
	// End closes the window of split and cutin events. Nil = until the end
	// of the run.
	End  *float64 `json:"end,omitempty"`  // seconds
	Lane *int     `json:"lane,omitempty"` // lane_change only
}

// active reports whether the event window covers now.
func (e Event) active(now float64) bool {
	return now >= e.Start && (e.End == nil || now < *e.End)
}

// SimulationInput is the JSON-serialisable input to the engine.
type SimulationInput struct {
	Meta   SimulationMeta `json:"simulation_meta"`
	Trucks []truck.Truck  `json:"trucks"`
	Events []Event        `json:"events,omitempty"`
}

// SimulationLogRow is the state of all trucks in the scene at a single
// simulation timestep.
type SimulationLogRow struct {
	Timestamp float64          `json:"timestamp"` // seconds
	Tick      uint64           `json:"tick"`
	Trucks    []truck.TruckLog `json:"trucks"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta     SimulationMeta      `json:"simulation_meta"`
	Output   []SimulationLogRow  `json:"output"`
	Events   []coordinator.Event `json:"events"`
	Warnings []registry.Warning  `json:"warnings"`
}

// neighbours holds the perception result for one truck: the nearest truck
// ahead and behind in the same lane.
type neighbours struct {
	leader, follower *truck.SimTruck
}

// Engine is the simulation state.
type Engine struct {
	meta     SimulationMeta
	log      *zap.Logger
	ctrl     kinematics.GapController
	registry *registry.Registry
	trucks   []*truck.SimTruck
	events   []Event
	applied  map[int]bool // lane_change events already carried out, by index
	curTime  float64
}
