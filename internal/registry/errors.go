package registry

import (
	"errors"

	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

var (
	ErrAlreadyRegistered = errors.New("vehicle already registered")
	ErrNotRegistered     = errors.New("vehicle not registered")
)

// WarningKind classifies a recovered per-vehicle anomaly.
type WarningKind string

const (
	// UnknownVehicleReference: a leader or follower id that does not
	// resolve in the same snapshot. The neighbour is treated as absent.
	UnknownVehicleReference WarningKind = "unknown_vehicle_reference"
	// InvariantViolation: diagnostic only, the tick output is kept.
	InvariantViolation WarningKind = "invariant_violation"
)

// Warning reports an anomaly found while evaluating one vehicle. It never
// stops evaluation of the rest of the population.
type Warning struct {
	Tick      uint64      `json:"tick"`
	VehicleID vehicle.ID  `json:"vehicle_id"`
	Kind      WarningKind `json:"kind"`
	Detail    string      `json:"detail"`
}
