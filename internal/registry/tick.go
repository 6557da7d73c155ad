package registry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/licit-lab/ensemble-sub000/internal/coordinator"
	"github.com/licit-lab/ensemble-sub000/internal/telemetry"
	"github.com/licit-lab/ensemble-sub000/internal/vehicle"
)

// tick collects the events and warnings of one Registry.Tick.
type tick struct {
	reg      *Registry
	n        uint64
	events   []coordinator.Event
	warnings []Warning
}

// measure fills the Chain field of every vehicle in cur. A vehicle that is
// joining or a member extends the chain of its leader in the same lane; any
// other vehicle starts a chain of its own.
func (t *tick) measure(ids []vehicle.ID, cur map[vehicle.ID]vehicle.State) {
	depth := make(map[vehicle.ID]int, len(ids))
	visiting := make(map[vehicle.ID]bool)

	var measure func(id vehicle.ID) int
	measure = func(id vehicle.ID) int {
		if n, done := depth[id]; done {
			return n
		}
		if visiting[id] {
			return 1
		}
		ego := cur[id]
		n := 1
		if ego.MembershipState == vehicle.Join || ego.MembershipState.InPlatoon() {
			leader, found := lookup(cur, ego.LeaderID)
			if found && leader.ID != id && vehicle.SameLane(ego, leader) {
				visiting[id] = true
				n = measure(leader.ID) + 1
				delete(visiting, id)
			}
		}
		depth[id] = n
		return n
	}

	for _, id := range ids {
		s := cur[id]
		s.Chain = measure(id)
		cur[id] = s
	}
}

// frontPass evaluates every front coordinator against cur, then applies the
// results. No evaluation sees another vehicle's result from this tick.
func (t *tick) frontPass(ids []vehicle.ID, cur map[vehicle.ID]vehicle.State) {
	next := make(map[vehicle.ID]vehicle.MembershipState, len(ids))
	for _, id := range ids {
		ego := cur[id]
		leader := t.resolve(cur, ego, ego.LeaderID, "leader")
		if leader != nil && vehicle.SameLane(ego, *leader) {
			if gap := vehicle.GapDistance(ego, *leader); gap < 0 {
				t.warn(id, InvariantViolation, fmt.Sprintf("negative gap %.2f m to leader %d", gap, leader.ID))
			}
		}
		next[id] = t.reg.pairs[id].front.Evaluate(ego, leader)
	}
	for _, id := range ids {
		if ev, changed := t.reg.pairs[id].front.Apply(next[id], t.n); changed {
			t.emit(ev)
		}
	}
}

// rearPass evaluates every rear coordinator against the front states
// produced by frontPass. A requested back split is written into the
// follower's front coordinator together with the rear transition.
func (t *tick) rearPass(ids []vehicle.ID, cur map[vehicle.ID]vehicle.State) {
	for _, id := range ids {
		ego := cur[id]
		p := t.reg.pairs[id]

		var followerPair *pair
		var followerState *vehicle.MembershipState
		if follower := t.resolve(cur, ego, ego.FollowerID, "follower"); follower != nil && vehicle.SameLane(ego, *follower) {
			followerPair = t.reg.pairs[follower.ID]
			s := followerPair.front.State()
			followerState = &s
		}

		before := p.rear.State()
		d := p.rear.Evaluate(ego, followerState)
		if d.State == vehicle.RearPlatoon && before != vehicle.RearPlatoon &&
			(followerState == nil || *followerState != vehicle.Platoon) {
			t.warn(id, InvariantViolation, "rear coordinator reached platoon ahead of its follower")
		}
		if ev, changed := p.rear.Apply(d.State, t.n); changed {
			t.emit(ev)
		}
		if d.ForceFollowerSplit && followerPair != nil {
			if ev, changed := followerPair.front.Force(vehicle.Split, t.n); changed {
				t.emit(ev)
			}
		}
	}
}

type numbering struct {
	platoonID vehicle.ID
	position  int
}

// number assigns platoon id and position along leader links so that a
// member's position is its leader's plus one within the same tick. The head
// of a platoon is not itself a member; it takes position 1 and lends its id
// to the platoon.
func (t *tick) number(ids []vehicle.ID, cur map[vehicle.ID]vehicle.State) map[vehicle.ID]numbering {
	out := make(map[vehicle.ID]numbering, len(ids))
	visiting := make(map[vehicle.ID]bool)

	var visit func(id vehicle.ID) numbering
	visit = func(id vehicle.ID) numbering {
		if n, done := out[id]; done {
			return n
		}
		p, ok := t.reg.pairs[id]
		if !ok {
			return numbering{}
		}
		ego := cur[id]
		if !p.front.State().InPlatoon() {
			if t.heads(ego, cur) {
				return numbering{platoonID: id, position: 1}
			}
			return numbering{}
		}
		if visiting[id] {
			t.warn(id, InvariantViolation, "leader references form a cycle")
			return numbering{platoonID: id, position: 1}
		}
		visiting[id] = true
		defer delete(visiting, id)

		var n numbering
		leader, found := lookup(cur, ego.LeaderID)
		switch {
		case !found:
			n = numbering{platoonID: id, position: 1}
		case t.reg.pairs[leader.ID].front.State().InPlatoon() || t.heads(leader, cur):
			ln := visit(leader.ID)
			n = numbering{platoonID: ln.platoonID, position: ln.position + 1}
		default:
			n = numbering{platoonID: leader.ID, position: 2}
		}
		out[id] = n
		return n
	}

	for _, id := range ids {
		out[id] = visit(id)
	}
	return out
}

// heads reports whether s, not itself a member, leads a member after this
// tick's passes: its rear coordinator is engaged and its follower is a member
// that follows s.
func (t *tick) heads(s vehicle.State, cur map[vehicle.ID]vehicle.State) bool {
	if rear := t.reg.pairs[s.ID].rear.State(); rear != vehicle.RearJoin && rear != vehicle.RearPlatoon {
		return false
	}
	follower, found := lookup(cur, s.FollowerID)
	if !found || follower.LeaderID == nil || *follower.LeaderID != s.ID {
		return false
	}
	fp, ok := t.reg.pairs[follower.ID]
	return ok && fp.front.State().InPlatoon()
}

// resolve looks up a neighbour reference of ego in cur. A reference that does
// not resolve is reported and treated as no neighbour.
func (t *tick) resolve(cur map[vehicle.ID]vehicle.State, ego vehicle.State, ref *vehicle.ID, role string) *vehicle.State {
	if ref == nil {
		return nil
	}
	if *ref == ego.ID {
		t.warn(ego.ID, InvariantViolation, fmt.Sprintf("%s references itself", role))
		return nil
	}
	s, ok := lookup(cur, ref)
	if !ok {
		t.warn(ego.ID, UnknownVehicleReference, fmt.Sprintf("%s %d not in snapshot", role, *ref))
		return nil
	}
	return &s
}

func lookup(cur map[vehicle.ID]vehicle.State, ref *vehicle.ID) (vehicle.State, bool) {
	if ref == nil {
		return vehicle.State{}, false
	}
	s, ok := cur[*ref]
	return s, ok
}

func (t *tick) emit(ev coordinator.Event) {
	t.events = append(t.events, ev)
	telemetry.Transitions.WithLabelValues(string(ev.Coordinator), ev.From, ev.To).Inc()
	t.reg.log.Debug("state changed",
		zap.Uint64("tick", ev.Tick),
		zap.Int("vehicle", int(ev.VehicleID)),
		zap.String("coordinator", string(ev.Coordinator)),
		zap.String("from", ev.From),
		zap.String("to", ev.To),
		zap.Bool("forced", ev.Forced),
	)
}

func (t *tick) warn(id vehicle.ID, kind WarningKind, detail string) {
	t.warnings = append(t.warnings, Warning{Tick: t.n, VehicleID: id, Kind: kind, Detail: detail})
	telemetry.Warnings.WithLabelValues(string(kind)).Inc()
	t.reg.log.Warn("protocol anomaly",
		zap.Uint64("tick", t.n),
		zap.Int("vehicle", int(id)),
		zap.String("kind", string(kind)),
		zap.String("detail", detail),
	)
}
