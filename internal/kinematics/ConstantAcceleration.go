package kinematics

import (
	"math"

	"github.com/samber/lo"
)

// ConstantModelName is the JSON discriminator string for the Constant model.
const ConstantModelName = "constant"

// ConstantAcceleration implements MotionModel with fixed traction and braking
// limits. This is the default and simplest kinematics model.
//
// JSON discriminator: "model": "constant"
type ConstantAcceleration struct {
	AAcc    float64 `json:"a_acc"` // traction acceleration, m/s²
	ADcc    float64 `json:"a_dcc"` // service braking deceleration, m/s² (positive)
	VMaxVal float64 `json:"v_max"` // maximum speed, m/s
}

func (c ConstantAcceleration) VMax() float64 { return c.VMaxVal }

func (c ConstantAcceleration) MaxAcceleration() float64 { return c.AAcc }

func (c ConstantAcceleration) MaxDeceleration() float64 { return c.ADcc }

func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * c.ADcc)
}

func (c ConstantAcceleration) Step(v, a, dt float64) (float64, float64, float64) {
	a = lo.Clamp(a, -c.ADcc, c.AAcc)
	newV := v + a*dt

	switch {
	case newV < 0:
		// Stops mid-step and stays stopped for the remainder.
		tStop := v / -a
		return v*tStop + 0.5*a*tStop*tStop, 0, a
	case newV > c.VMaxVal:
		if a <= 0 || v >= c.VMaxVal {
			return c.VMaxVal * dt, c.VMaxVal, 0
		}
		// Reaches VMax mid-step, then cruises.
		tMax := (c.VMaxVal - v) / a
		s1 := v*tMax + 0.5*a*tMax*tMax
		return s1 + c.VMaxVal*(dt-tMax), c.VMaxVal, a
	}
	return v*dt + 0.5*a*dt*dt, newV, a
}
