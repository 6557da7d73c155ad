package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// pairAt returns an ego/leader pair in lane 0 separated by gap metres, both
// travelling at 20 m/s. The leader heads the pair on its rear side.
func pairAt(gap float64) (ego, leader vehicle.State) {
	leader = vehicle.New(1)
	leader.Position = 200
	leader.Length = 10
	leader.Speed = 20
	leader.PCMCapable = true
	leader.FollowerID = vehicle.Ref(2)
	leader.RearGapState = vehicle.RearPlatoon

	ego = vehicle.New(2)
	ego.Position = 200 - 10 - gap
	ego.Length = 10
	ego.Speed = 20
	ego.PCMCapable = true
	ego.LeaderID = vehicle.Ref(1)
	return ego, leader
}

func TestTransition(t *testing.T) {
	t.Parallel()
	p := config.Default().Protocol

	tests := []struct {
		name   string
		from   vehicle.MembershipState
		gap    float64
		setup  func(ego, leader *vehicle.State)
		expect vehicle.MembershipState
	}{
		{
			name:   "standalone joins capable leader in range",
			from:   vehicle.StandAlone,
			gap:    50,
			expect: vehicle.Join,
		},
		{
			name:   "standalone ignores leader out of range",
			from:   vehicle.StandAlone,
			gap:    100,
			expect: vehicle.StandAlone,
		},
		{
			name:   "standalone ignores leader without pcm",
			from:   vehicle.StandAlone,
			gap:    50,
			setup:  func(_, l *vehicle.State) { l.PCMCapable = false },
			expect: vehicle.StandAlone,
		},
		{
			name:   "standalone ignores leader with intruder",
			from:   vehicle.StandAlone,
			gap:    50,
			setup:  func(_, l *vehicle.State) { l.Intruder = true },
			expect: vehicle.StandAlone,
		},
		{
			name:   "standalone ignores leader requesting split",
			from:   vehicle.StandAlone,
			gap:    50,
			setup:  func(_, l *vehicle.State) { l.SplitRequested = true },
			expect: vehicle.StandAlone,
		},
		{
			name:   "standalone does not join while requesting split",
			from:   vehicle.StandAlone,
			gap:    50,
			setup:  func(e, _ *vehicle.State) { e.SplitRequested = true },
			expect: vehicle.StandAlone,
		},
		{
			name: "standalone refuses a full platoon",
			from: vehicle.StandAlone,
			gap:  50,
			setup: func(_, l *vehicle.State) {
				l.MembershipState = vehicle.Platoon
				l.Chain = p.MaxPlatoonLength
			},
			expect: vehicle.StandAlone,
		},
		{
			name: "standalone joins the tail of a platoon with room",
			from: vehicle.StandAlone,
			gap:  50,
			setup: func(_, l *vehicle.State) {
				l.MembershipState = vehicle.Platoon
				l.Chain = p.MaxPlatoonLength - 1
			},
			expect: vehicle.Join,
		},
		{
			name:   "standalone without pcm does not join",
			from:   vehicle.StandAlone,
			gap:    50,
			setup:  func(e, _ *vehicle.State) { e.PCMCapable = false },
			expect: vehicle.StandAlone,
		},
		{
			name:   "join cancelled when the chain ahead filled up",
			from:   vehicle.Join,
			gap:    10.05,
			setup:  func(_, l *vehicle.State) { l.Chain = p.MaxPlatoonLength },
			expect: vehicle.StandAlone,
		},
		{
			name:   "join cancelled when leader drops pcm",
			from:   vehicle.Join,
			gap:    10.05,
			setup:  func(_, l *vehicle.State) { l.PCMCapable = false },
			expect: vehicle.StandAlone,
		},
		{
			name:   "join cancelled when gap opens",
			from:   vehicle.Join,
			gap:    120,
			expect: vehicle.StandAlone,
		},
		{
			name:   "join holds while closing",
			from:   vehicle.Join,
			gap:    30,
			expect: vehicle.Join,
		},
		{
			name:   "join holds while speed differs",
			from:   vehicle.Join,
			gap:    10.05,
			setup:  func(e, _ *vehicle.State) { e.Speed = 20.5 },
			expect: vehicle.Join,
		},
		{
			name:   "join enters platoon inside tolerances",
			from:   vehicle.Join,
			gap:    10.05,
			setup:  func(e, _ *vehicle.State) { e.Speed = 20.05 },
			expect: vehicle.Platoon,
		},
		{
			name:   "platoon splits on own request",
			from:   vehicle.Platoon,
			gap:    10,
			setup:  func(e, _ *vehicle.State) { e.SplitRequested = true },
			expect: vehicle.Split,
		},
		{
			name:   "platoon splits on leader request",
			from:   vehicle.Platoon,
			gap:    10,
			setup:  func(_, l *vehicle.State) { l.SplitRequested = true },
			expect: vehicle.Split,
		},
		{
			name: "platoon splits when leader leaves its platoon",
			from: vehicle.Platoon,
			gap:  10,
			setup: func(_, l *vehicle.State) {
				l.PreviousMembershipState = vehicle.Platoon
				l.MembershipState = vehicle.Split
			},
			expect: vehicle.Split,
		},
		{
			name: "platoon stays behind a head",
			from: vehicle.Platoon,
			gap:  10,
			setup: func(_, l *vehicle.State) {
				l.PreviousMembershipState = vehicle.StandAlone
				l.RearGapState = vehicle.RearPlatoon
			},
			expect: vehicle.Platoon,
		},
		{
			name:   "platoon splits behind a leader without pcm",
			from:   vehicle.Platoon,
			gap:    10,
			setup:  func(_, l *vehicle.State) { l.PCMCapable = false },
			expect: vehicle.Split,
		},
		{
			name:   "platoon splits behind a standalone leader that heads nothing",
			from:   vehicle.Platoon,
			gap:    10,
			setup:  func(_, l *vehicle.State) { l.RearGapState = vehicle.RearStandAlone },
			expect: vehicle.Split,
		},
		{
			name: "platoon stays behind a member",
			from: vehicle.Platoon,
			gap:  10,
			setup: func(_, l *vehicle.State) {
				l.MembershipState = vehicle.Platoon
				l.RearGapState = vehicle.RearJoin
			},
			expect: vehicle.Platoon,
		},
		{
			name:   "platoon detects cut in",
			from:   vehicle.Platoon,
			gap:    10,
			setup:  func(e, _ *vehicle.State) { e.Intruder = true },
			expect: vehicle.CutIn,
		},
		{
			name: "split wins over cut in",
			from: vehicle.Platoon,
			gap:  10,
			setup: func(e, _ *vehicle.State) {
				e.Intruder = true
				e.SplitRequested = true
			},
			expect: vehicle.Split,
		},
		{
			name:   "cut in holds while intruder present",
			from:   vehicle.CutIn,
			gap:    25,
			setup:  func(e, _ *vehicle.State) { e.Intruder = true },
			expect: vehicle.CutIn,
		},
		{
			name:   "cut in becomes cut through when intruder clears",
			from:   vehicle.CutIn,
			gap:    25,
			expect: vehicle.CutThrough,
		},
		{
			name:   "cut through waits for gap to close",
			from:   vehicle.CutThrough,
			gap:    25,
			expect: vehicle.CutThrough,
		},
		{
			name:   "cut through splits on leader request",
			from:   vehicle.CutThrough,
			gap:    25,
			setup:  func(_, l *vehicle.State) { l.SplitRequested = true },
			expect: vehicle.Split,
		},
		{
			name:   "cut through splits behind a leader without pcm",
			from:   vehicle.CutThrough,
			gap:    10.02,
			setup:  func(_, l *vehicle.State) { l.PCMCapable = false },
			expect: vehicle.Split,
		},
		{
			name:   "cut through returns to platoon",
			from:   vehicle.CutThrough,
			gap:    10.02,
			expect: vehicle.Platoon,
		},
		{
			name: "split rejoins a leader that left its platoon",
			from: vehicle.Split,
			gap:  12,
			setup: func(_, l *vehicle.State) {
				l.MembershipState = vehicle.Split
			},
			expect: vehicle.Platoon,
		},
		{
			name: "split does not rejoin a platoon member",
			from: vehicle.Split,
			gap:  12,
			setup: func(_, l *vehicle.State) {
				l.MembershipState = vehicle.Platoon
			},
			expect: vehicle.Split,
		},
		{
			name:   "split holds while still requested",
			from:   vehicle.Split,
			gap:    12,
			setup:  func(e, _ *vehicle.State) { e.SplitRequested = true },
			expect: vehicle.Split,
		},
		{
			name:   "split becomes standalone beyond threshold",
			from:   vehicle.Split,
			gap:    150,
			expect: vehicle.StandAlone,
		},
		{
			name:   "split holds exactly at threshold",
			from:   vehicle.Split,
			gap:    100,
			setup:  func(e, _ *vehicle.State) { e.SplitRequested = true },
			expect: vehicle.Split,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ego, leader := pairAt(tc.gap)
			ego.MembershipState = tc.from
			if tc.setup != nil {
				tc.setup(&ego, &leader)
			}
			assert.Equal(t, tc.expect, Transition(p, ego, leader))
		})
	}
}

func TestTransitionNeverSkipsAState(t *testing.T) {
	t.Parallel()
	p := config.Default().Protocol

	states := []vehicle.MembershipState{
		vehicle.StandAlone, vehicle.Join, vehicle.Platoon,
		vehicle.CutIn, vehicle.CutThrough, vehicle.Split,
	}
	gaps := []float64{-5, 0, 9.95, 10, 10.05, 50, 99.9, 100, 150}
	speeds := []float64{19, 20, 20.05, 21}

	for _, from := range states {
		for _, gap := range gaps {
			for _, speed := range speeds {
				for flags := 0; flags < 16; flags++ {
					ego, leader := pairAt(gap)
					ego.MembershipState = from
					ego.Speed = speed
					ego.SplitRequested = flags&1 != 0
					ego.Intruder = flags&2 != 0
					leader.SplitRequested = flags&4 != 0
					leader.PCMCapable = flags&8 != 0

					to := Transition(p, ego, leader)
					assert.Truef(t, Adjacent(from, to),
						"%s -> %s (gap %.2f, speed %.2f, flags %04b)", from, to, gap, speed, flags)
					if from == vehicle.StandAlone {
						assert.NotEqual(t, vehicle.Platoon, to)
					}
				}
			}
		}
	}
}

func TestAdjacent(t *testing.T) {
	t.Parallel()

	assert.True(t, Adjacent(vehicle.StandAlone, vehicle.Join))
	assert.True(t, Adjacent(vehicle.Join, vehicle.Platoon))
	assert.True(t, Adjacent(vehicle.Platoon, vehicle.StandAlone), "losing the leader")
	assert.False(t, Adjacent(vehicle.StandAlone, vehicle.Platoon))
	assert.False(t, Adjacent(vehicle.Join, vehicle.Split))
	assert.True(t, Adjacent(vehicle.CutThrough, vehicle.Split))
	assert.False(t, Adjacent(vehicle.CutIn, vehicle.Platoon))
}
