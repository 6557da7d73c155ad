package kinematics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licit-lab/ensemble-sub000/internal/config"
)

var truckModel = ConstantAcceleration{AAcc: 1, ADcc: 4, VMaxVal: 25}

func TestConstantAccelerationStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		v, a, dt               float64
		dist, newV, appliedAcc float64
	}{
		{"cruise", 20, 0, 1, 20, 20, 0},
		{"accelerate", 20, 0.5, 2, 41, 21, 0.5},
		{"traction limit", 20, 3, 1, 20.5, 21, 1},
		{"braking limit", 20, -10, 1, 18, 16, -4},
		{"stops mid step", 2, -4, 1, 0.5, 0, -4},
		{"reaches vmax mid step", 24, 1, 2, 49.5, 25, 1},
		{"held at vmax", 25, 1, 1, 25, 25, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dist, newV, applied := truckModel.Step(tc.v, tc.a, tc.dt)
			assert.InDelta(t, tc.dist, dist, 1e-9)
			assert.InDelta(t, tc.newV, newV, 1e-9)
			assert.InDelta(t, tc.appliedAcc, applied, 1e-9)
		})
	}
}

func TestBrakingDistance(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 50.0, truckModel.BrakingDistance(20), 1e-9)
	assert.True(t, ConstantAcceleration{}.BrakingDistance(1) > 1e300)
}

func TestGapController(t *testing.T) {
	t.Parallel()
	g := NewGapController(config.Default())

	assert.Equal(t, 10.0, g.TargetGap(ModeCACC, 20))
	assert.InDelta(t, 5+1.4*20, g.TargetGap(ModeACC, 20), 1e-9)

	// free road
	assert.InDelta(t, 0.3*2, g.Command(truckModel, ModeCruise, 20, 22, 0, 0), 1e-9)

	// at the CACC spacing and matched speed nothing happens
	assert.InDelta(t, 0, g.Command(truckModel, ModeCACC, 20, 20, 10, 20), 1e-9)

	// CACC closes a gap even at the desired speed, ACC does not
	assert.Positive(t, g.Command(truckModel, ModeCACC, 20, 20, 30, 20))
	assert.InDelta(t, 0, g.Command(truckModel, ModeACC, 20, 20, 60, 20), 1e-9)

	// too close: both brake
	assert.Negative(t, g.Command(truckModel, ModeACC, 20, 20, 10, 20))
	assert.Negative(t, g.Command(truckModel, ModeCACC, 20, 20, 5, 20))
}

func TestGapControllerSplitOpensGap(t *testing.T) {
	t.Parallel()
	g := NewGapController(config.Default())

	assert.Equal(t, 110.0, g.TargetGap(ModeSplit, 20))
	assert.Negative(t, g.Command(truckModel, ModeSplit, 20, 20, 10, 20))
	assert.InDelta(t, 0, g.Command(truckModel, ModeSplit, 20, 20, 110, 20), 1e-9)
}

func TestGapControllerRespectsModelLimits(t *testing.T) {
	t.Parallel()
	g := NewGapController(config.Default())

	// far behind in CACC: traction limited
	assert.Equal(t, 1.0, g.Command(truckModel, ModeCACC, 20, 20, 100, 20))
	// nose to tail in ACC: braking limited
	assert.Equal(t, -4.0, g.Command(truckModel, ModeACC, 20, 20, 0, 20))
	// free road far below the desired speed
	assert.Equal(t, 1.0, g.Command(truckModel, ModeCruise, 5, 25, 0, 0))
}

func TestFollowGap(t *testing.T) {
	t.Parallel()
	g := NewGapController(config.Default())
	weakBrakes := ConstantAcceleration{AAcc: 1, ADcc: 1, VMaxVal: 40}

	assert.InDelta(t, 5, g.SafeGap(truckModel, 20, 20), 1e-9)
	assert.InDelta(t, 5, g.SafeGap(truckModel, 10, 20), 1e-9, "a faster leader adds no margin")
	assert.InDelta(t, 405, g.SafeGap(weakBrakes, 30, 10), 1e-9)

	assert.InDelta(t, 33, g.FollowGap(truckModel, ModeACC, 20, 20), 1e-9)
	assert.InDelta(t, 405, g.FollowGap(weakBrakes, ModeACC, 30, 10), 1e-9, "headway overridden by braking distance")
	assert.InDelta(t, 10, g.FollowGap(weakBrakes, ModeCACC, 30, 10), 1e-9)
	assert.InDelta(t, 110, g.FollowGap(weakBrakes, ModeSplit, 30, 10), 1e-9)

	// 100 m is outside the safe gap of the weak truck, so it brakes
	assert.Negative(t, g.Command(weakBrakes, ModeACC, 30, 30, 100, 10))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	m, err := Decode([]byte(`{"model": "constant", "a_acc": 1, "a_dcc": 4, "v_max": 25}`))
	require.NoError(t, err)
	assert.Equal(t, truckModel, m)

	_, err = Decode(nil)
	assert.ErrorContains(t, err, "missing \"kinematics\"")
	_, err = Decode([]byte(`{"model": "jerk"}`))
	assert.ErrorContains(t, err, "unknown kinematics model \"jerk\"")
}
