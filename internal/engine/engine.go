// Package engine implements the platoon simulation loop.
//
// The simulation advances in fixed timesteps. Each step has three parts:
//
//  1. Perception pass - trucks enter and leave the scene, scripted events are
//     applied, and every truck resolves its nearest leader and follower in
//     its lane. The result is the protocol snapshot for the step.
//
//  2. Coordination - the registry ticks every coordinator pair against the
//     snapshot and returns the membership state of each truck.
//
//  3. Control pass - every truck picks a control mode from its membership
//     state, computes its acceleration against the pre-move positions, and
//     all trucks then advance together.
package engine

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/coordinator"
	"github.com/licit-lab/ensemble-sub000/internal/kinematics"
	"github.com/licit-lab/ensemble-sub000/internal/registry"
	"github.com/licit-lab/ensemble-sub000/internal/truck"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// NewEngine constructs an Engine from a SimulationInput, validating the
// timing, trucks, and scripted events against each other.
func NewEngine(input SimulationInput, cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	meta := input.Meta
	if meta.TimeStep <= 0 {
		return nil, errors.New("time_step must be positive")
	}
	if meta.RunTime < 0 {
		return nil, errors.New("run_time must not be negative")
	}
	if meta.SimulationID == "" {
		meta.SimulationID = uuid.NewString()
	}

	trucks := make([]*truck.SimTruck, 0, len(input.Trucks))
	seen := make(map[vehicle.ID]bool, len(input.Trucks))
	for _, t := range input.Trucks {
		if seen[t.ID] {
			return nil, fmt.Errorf("truck %d: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if err := t.Validate(); err != nil {
			return nil, err
		}
		trucks = append(trucks, truck.NewSimTruck(t))
	}

	for i, ev := range input.Events {
		if err := validateEvent(ev, seen); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}

	reg, err := registry.New(cfg.Protocol, logger)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	return &Engine{
		meta:     meta,
		log:      logger.Named("engine").With(zap.String("simulation_id", meta.SimulationID)),
		ctrl:     kinematics.NewGapController(cfg),
		registry: reg,
		trucks:   trucks,
		events:   input.Events,
		applied:  make(map[int]bool),
	}, nil
}

func validateEvent(ev Event, trucks map[vehicle.ID]bool) error {
	if !trucks[ev.Truck] {
		return fmt.Errorf("unknown truck %d", ev.Truck)
	}
	if ev.End != nil && *ev.End < ev.Start {
		return fmt.Errorf("truck %d: %s ends before it starts", ev.Truck, ev.Kind)
	}
	switch ev.Kind {
	case EventSplit, EventCutIn:
	case EventLaneChange:
		if ev.Lane == nil {
			return fmt.Errorf("truck %d: lane_change without a target lane", ev.Truck)
		}
	default:
		return fmt.Errorf("truck %d: unknown event kind %q", ev.Truck, ev.Kind)
	}
	return nil
}

// Run executes the full simulation and returns the log.
func (e *Engine) Run() SimulationLog {
	out := SimulationLog{
		Meta:     e.meta,
		Events:   []coordinator.Event{},
		Warnings: []registry.Warning{},
	}
	e.log.Info("simulation started",
		zap.Int("trucks", len(e.trucks)),
		zap.Int("events", len(e.events)),
		zap.Float64("run_time", e.meta.RunTime),
		zap.Float64("time_step", e.meta.TimeStep),
	)

	steps := int(math.Floor(e.meta.RunTime/e.meta.TimeStep + 1e-9))
	for i := 0; i <= steps; i++ {
		e.curTime = float64(i) * e.meta.TimeStep
		row, res := e.step()
		out.Output = append(out.Output, row)
		out.Events = append(out.Events, res.Events...)
		out.Warnings = append(out.Warnings, res.Warnings...)
	}

	e.log.Info("simulation finished",
		zap.Int("steps", len(out.Output)),
		zap.Int("transitions", len(out.Events)),
		zap.Int("warnings", len(out.Warnings)),
	)
	return out
}

// step advances the simulation by one timestep and returns the resulting log
// row together with the registry outcome of the step.
func (e *Engine) step() (SimulationLogRow, registry.TickResult) {
	now := e.curTime
	dt := e.meta.TimeStep

	// Pass 1: perception.
	e.applyLaneChanges(now)
	active := lo.Filter(e.trucks, func(s *truck.SimTruck, _ int) bool { return s.Active(now) })
	near := perceive(active)

	snapshot := make(map[vehicle.ID]vehicle.State, len(active))
	for _, s := range active {
		st := s.Snapshot()
		nb := near[s.ID]
		if nb.leader != nil {
			st.LeaderID = vehicle.Ref(nb.leader.ID)
		}
		if nb.follower != nil {
			st.FollowerID = vehicle.Ref(nb.follower.ID)
		}
		st.SplitRequested = e.flagged(s.ID, EventSplit, now)
		st.Intruder = e.flagged(s.ID, EventCutIn, now)
		snapshot[s.ID] = st
	}

	res := e.registry.Tick(snapshot)

	// Pass 2: control. Commands are computed against the pre-move state of
	// every truck before any truck moves.
	modes := make([]kinematics.Mode, len(active))
	commands := make([]float64, len(active))
	for i, s := range active {
		s.Protocol = res.Snapshot[s.ID]
		modes[i], commands[i] = e.command(s, near[s.ID].leader)
	}
	for i, s := range active {
		s.Advance(commands[i], dt)
	}

	logs := make([]truck.TruckLog, len(active))
	for i, s := range active {
		var gap *float64
		if l := near[s.ID].leader; l != nil {
			g := vehicle.GapDistance(s.Snapshot(), l.Snapshot())
			gap = &g
		}
		logs[i] = s.GetLog(gap, modes[i])
	}
	return SimulationLogRow{Timestamp: now, Tick: res.Tick, Trucks: logs}, res
}

// command returns the control mode and acceleration of s behind leader.
func (e *Engine) command(s *truck.SimTruck, leader *truck.SimTruck) (kinematics.Mode, float64) {
	mode := controlMode(s.Protocol.MembershipState, leader != nil)
	if mode == kinematics.ModeCruise {
		return mode, e.ctrl.Command(s.Kinem, mode, s.Speed, s.DesiredSpeed, 0, 0)
	}
	gap := vehicle.GapDistance(s.Snapshot(), leader.Snapshot())
	return mode, e.ctrl.Command(s.Kinem, mode, s.Speed, s.DesiredSpeed, gap, leader.Speed)
}

// controlMode maps a membership state to the control law that serves it.
func controlMode(m vehicle.MembershipState, hasLeader bool) kinematics.Mode {
	if !hasLeader {
		return kinematics.ModeCruise
	}
	switch m {
	case vehicle.Join, vehicle.Platoon, vehicle.CutThrough:
		return kinematics.ModeCACC
	case vehicle.Split:
		return kinematics.ModeSplit
	default:
		return kinematics.ModeACC
	}
}

// applyLaneChanges moves trucks whose lane_change event has started.
func (e *Engine) applyLaneChanges(now float64) {
	for i, ev := range e.events {
		if ev.Kind != EventLaneChange || e.applied[i] || now < ev.Start {
			continue
		}
		s, ok := lo.Find(e.trucks, func(s *truck.SimTruck) bool { return s.ID == ev.Truck })
		if !ok {
			continue
		}
		e.log.Debug("lane change",
			zap.Int("truck", int(s.ID)),
			zap.Int("from", s.Lane),
			zap.Int("to", *ev.Lane),
			zap.Float64("t", now),
		)
		s.Lane = *ev.Lane
		e.applied[i] = true
	}
}

// flagged reports whether an event of kind covers truck id at time now.
func (e *Engine) flagged(id vehicle.ID, kind EventKind, now float64) bool {
	return lo.ContainsBy(e.events, func(ev Event) bool {
		return ev.Truck == id && ev.Kind == kind && ev.active(now)
	})
}

// perceive resolves the nearest truck ahead and behind of every active truck
// in its lane. Trucks level with each other are ordered by id.
func perceive(active []*truck.SimTruck) map[vehicle.ID]neighbours {
	out := make(map[vehicle.ID]neighbours, len(active))
	lanes := lo.GroupBy(active, func(s *truck.SimTruck) int { return s.Lane })
	for _, lane := range lanes {
		slices.SortFunc(lane, func(a, b *truck.SimTruck) int {
			if c := cmp.Compare(b.Position, a.Position); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for i, s := range lane {
			var nb neighbours
			if i > 0 {
				nb.leader = lane[i-1]
			}
			if i+1 < len(lane) {
				nb.follower = lane[i+1]
			}
			out[s.ID] = nb
		}
	}
	return out
}

// RunJSON is the primary entry point for both compilation targets (CLI, WASM).
// It accepts a JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string, cfg config.Config, logger *zap.Logger) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	eng, err := NewEngine(input, cfg, logger)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(eng.Run())
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
