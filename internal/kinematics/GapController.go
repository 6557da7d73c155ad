package kinematics

import (
	"math"

	"github.com/samber/lo"

	"github.com/licit-lab/ensemble-sub000/internal/config"
)

// Mode selects the control law applied to a truck.
type Mode string

const (
	// ModeCruise: no leader to follow, track the desired speed.
	ModeCruise Mode = "cruise"
	// ModeACC: follow the leader at a time headway.
	ModeACC Mode = "acc"
	// ModeCACC: cooperative following at the constant platoon spacing.
	ModeCACC Mode = "cacc"
	// ModeSplit: fall back until the split gap is open.
	ModeSplit Mode = "split"
)

// GapController computes acceleration commands from the gap to the leader.
type GapController struct {
	Gains      config.Control
	DesiredGap float64 // metres, CACC spacing
}

// NewGapController builds a controller from the run configuration.
func NewGapController(cfg config.Config) GapController {
	return GapController{Gains: cfg.Control, DesiredGap: cfg.Protocol.DesiredGap}
}

// TargetGap is the spacing the controller regulates to in the given mode.
func (g GapController) TargetGap(mode Mode, v float64) float64 {
	switch mode {
	case ModeCACC:
		return g.DesiredGap
	case ModeSplit:
		return g.Gains.SplitGap
	}
	return g.Gains.StandstillGap + g.Gains.TimeHeadway*v
}

// SafeGap is the gap that still lets a truck driving at v stop behind a
// leader at vLeader braking at the same rate, plus the standstill margin.
func (g GapController) SafeGap(m MotionModel, v, vLeader float64) float64 {
	return g.Gains.StandstillGap + math.Max(0, m.BrakingDistance(v)-m.BrakingDistance(vLeader))
}

// FollowGap is the gap the controller regulates to for a truck with motion
// model m. Headway following never settles inside SafeGap; CACC and split
// spacing are fixed.
func (g GapController) FollowGap(m MotionModel, mode Mode, v, vLeader float64) float64 {
	target := g.TargetGap(mode, v)
	if mode == ModeACC {
		return math.Max(target, g.SafeGap(m, v, vLeader))
	}
	return target
}

// Cruise returns the acceleration that tracks vDesired on a free road.
func (g GapController) Cruise(v, vDesired float64) float64 {
	return g.Gains.CruiseGain * (vDesired - v)
}

// Command returns the acceleration for a truck with motion model m travelling
// at v behind a leader at vLeader with the given gap. In ACC mode the result
// never exceeds the free road command; in CACC mode the truck may exceed
// vDesired to close up on its leader. The command stays within the traction
// and braking limits of m.
func (g GapController) Command(m MotionModel, mode Mode, v, vDesired, gap, vLeader float64) float64 {
	a := g.Cruise(v, vDesired)
	if mode != ModeCruise {
		follow := g.Gains.GapGain*(gap-g.FollowGap(m, mode, v, vLeader)) + g.Gains.SpeedGain*(vLeader-v)
		if mode == ModeCACC {
			a = follow
		} else {
			a = math.Min(a, follow)
		}
	}
	return lo.Clamp(a, -m.MaxDeceleration(), m.MaxAcceleration())
}
