// Package registry holds the coordinator pair of every vehicle in the scene
// and evaluates them once per simulation step.
//
// A tick has two passes. Pass 1 evaluates every front gap coordinator against
// the snapshot as it was at the start of the tick. Pass 2 evaluates every rear
// gap coordinator against the front states produced by pass 1, so a rear
// coordinator can never run ahead of its follower. Within a pass vehicles are
// visited in ascending id order.
//
// A Registry is not safe for concurrent use.
package registry

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/licit-lab/ensemble-sub000/internal/config"
	"github.com/licit-lab/ensemble-sub000/internal/coordinator"
	"github.com/licit-lab/ensemble-sub000/internal/telemetry"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// pair is the coordinator state kept for one vehicle between ticks.
type pair struct {
	front     *coordinator.FrontGap
	rear      *coordinator.RearGap
	platoonID vehicle.ID
	position  int
}

// Registry maps vehicle ids to their coordinator pairs.
type Registry struct {
	cfg   config.Protocol
	log   *zap.Logger
	pairs map[vehicle.ID]*pair
	tick  uint64
}

// TickResult is the outcome of one Tick.
type TickResult struct {
	Tick uint64
	// Snapshot is the input snapshot with the protocol fields updated.
	Snapshot map[vehicle.ID]vehicle.State
	Events   []coordinator.Event
	Warnings []Warning
}

// New returns an empty registry. The thresholds are validated here and copied;
// a configuration error is fatal.
func New(cfg config.Protocol, logger *zap.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:   cfg,
		log:   logger.Named("registry"),
		pairs: make(map[vehicle.ID]*pair),
	}, nil
}

// Register creates a coordinator pair in the standalone state for id.
func (r *Registry) Register(id vehicle.ID) error {
	if _, exists := r.pairs[id]; exists {
		telemetry.RegistryMisuse.WithLabelValues("register").Inc()
		r.log.Warn("register rejected", zap.Int("vehicle", int(id)))
		return fmt.Errorf("register vehicle %d: %w", id, ErrAlreadyRegistered)
	}
	r.pairs[id] = &pair{
		front: coordinator.NewFrontGap(id, r.cfg),
		rear:  coordinator.NewRearGap(id),
	}
	telemetry.RegisteredVehicles.Set(float64(len(r.pairs)))
	r.log.Debug("vehicle registered", zap.Int("vehicle", int(id)))
	return nil
}

// Unregister drops the coordinator pair of id.
func (r *Registry) Unregister(id vehicle.ID) error {
	if _, exists := r.pairs[id]; !exists {
		telemetry.RegistryMisuse.WithLabelValues("unregister").Inc()
		r.log.Warn("unregister rejected", zap.Int("vehicle", int(id)))
		return fmt.Errorf("unregister vehicle %d: %w", id, ErrNotRegistered)
	}
	delete(r.pairs, id)
	telemetry.RegisteredVehicles.Set(float64(len(r.pairs)))
	r.log.Debug("vehicle unregistered", zap.Int("vehicle", int(id)))
	return nil
}

// Contains reports whether id holds a coordinator pair.
func (r *Registry) Contains(id vehicle.ID) bool {
	_, ok := r.pairs[id]
	return ok
}

// Len returns the number of registered vehicles.
func (r *Registry) Len() int { return len(r.pairs) }

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []vehicle.ID {
	ids := lo.Keys(r.pairs)
	slices.Sort(ids)
	return ids
}

// State returns the coordinator states held for id.
func (r *Registry) State(id vehicle.ID) (vehicle.MembershipState, vehicle.RearGapState, bool) {
	p, ok := r.pairs[id]
	if !ok {
		return "", "", false
	}
	return p.front.State(), p.rear.State(), true
}

// Tick evaluates every vehicle of snapshot once. Vehicles missing from the
// registry are registered first; registered vehicles missing from snapshot
// have left the scene and are unregistered.
//
// The protocol fields of the snapshot entries (membership and rear gap state,
// platoon id and position) are ignored on input: the registry holds them.
func (r *Registry) Tick(snapshot map[vehicle.ID]vehicle.State) TickResult {
	start := time.Now()
	defer func() { telemetry.TickDuration.Observe(time.Since(start).Seconds()) }()

	r.tick++
	t := &tick{reg: r, n: r.tick}

	r.reconcile(snapshot)
	cur := r.overlay(snapshot)
	ids := lo.Keys(cur)
	slices.Sort(ids)

	t.measure(ids, cur)
	t.frontPass(ids, cur)
	t.rearPass(ids, cur)
	numbers := t.number(ids, cur)

	out := make(map[vehicle.ID]vehicle.State, len(ids))
	for _, id := range ids {
		p := r.pairs[id]
		s := cur[id]
		s.MembershipState = p.front.State()
		s.PreviousMembershipState = p.front.Previous()
		s.RearGapState = p.rear.State()
		p.platoonID, p.position = numbers[id].platoonID, numbers[id].position
		s.PlatoonID, s.PlatoonPosition = p.platoonID, p.position
		out[id] = s
	}

	return TickResult{
		Tick:     r.tick,
		Snapshot: out,
		Events:   t.events,
		Warnings: t.warnings,
	}
}

func (r *Registry) reconcile(snapshot map[vehicle.ID]vehicle.State) {
	for _, id := range r.IDs() {
		if _, present := snapshot[id]; !present {
			_ = r.Unregister(id)
		}
	}
	for id := range snapshot {
		if !r.Contains(id) {
			_ = r.Register(id)
		}
	}
}

// overlay copies snapshot with the protocol fields taken from the
// coordinators.
func (r *Registry) overlay(snapshot map[vehicle.ID]vehicle.State) map[vehicle.ID]vehicle.State {
	cur := make(map[vehicle.ID]vehicle.State, len(snapshot))
	for id, s := range snapshot {
		p := r.pairs[id]
		s.ID = id
		s.MembershipState = p.front.State()
		s.PreviousMembershipState = p.front.Previous()
		s.RearGapState = p.rear.State()
		s.PlatoonID, s.PlatoonPosition = p.platoonID, p.position
		cur[id] = s
	}
	return cur
}
