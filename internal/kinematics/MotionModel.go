// Package kinematics defines the MotionModel interface for truck traction and
// braking physics, the built-in implementations, and the gap controller that
// turns a platooning mode into an acceleration command.
//
// Adding a new physics model requires only implementing MotionModel and
// registering it in Decode.
package kinematics

// MotionModel is the physics contract every kinematics implementation must satisfy.
// All distance values are in metres, velocities in m/s, and time in seconds.
type MotionModel interface {
	// VMax returns the vehicle's maximum permissible speed (m/s).
	VMax() float64

	// MaxAcceleration returns the traction limit (m/s², positive).
	MaxAcceleration() float64

	// MaxDeceleration returns the braking limit (m/s², positive).
	MaxDeceleration() float64

	// BrakingDistance returns the minimum distance needed to stop from velocity v.
	BrakingDistance(v float64) float64

	// Step applies the commanded acceleration a for dt seconds. The command is
	// clamped to the model's limits and the speed stays within [0, VMax].
	// Returns (distance travelled, new velocity, applied acceleration).
	Step(v, a, dt float64) (dist, newV, applied float64)
}
