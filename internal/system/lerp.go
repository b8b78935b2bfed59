package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/event"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
)

const LerpName = "lerp"

// Property is a value a lerp can drive.
type Property uint8

const (
	PropX Property = iota
	PropY
	PropAngle
)

func (p Property) String() string {
	switch p {
	case PropX:
		return "x"
	case PropY:
		return "y"
	case PropAngle:
		return "angle"
	}
	return fmt.Sprintf("property(%d)", uint8(p))
}

// ParseProperty maps the script-facing names to properties.
func ParseProperty(s string) (Property, error) {
	switch s {
	case "x":
		return PropX, nil
	case "y":
		return PropY, nil
	case "angle":
		return PropAngle, nil
	}
	return 0, fmt.Errorf("unknown lerp property %q", s)
}

type lerp struct {
	entity   ecs.EntityID
	prop     Property
	from     float64
	to       float64
	duration time.Duration
	elapsed  time.Duration
	done     func(ecs.EntityID)
}

// LerpSystem tweens positions and angles linearly over time. It owns no
// component; lerps for an entity die with the entity.
// Phase 3 (PostUpdate).
type LerpSystem struct {
	coresys.Base
	positions *PositionSystem
	rotations *RotateSystem
	lerps     []lerp
}

func NewLerpSystem(positions *PositionSystem, rotations *RotateSystem) *LerpSystem {
	return &LerpSystem{
		Base:      coresys.NewBase(LerpName, coresys.PhasePostUpdate),
		positions: positions,
		rotations: rotations,
	}
}

// Registered drops an entity's lerps once its removal is announced.
func (s *LerpSystem) Registered(w *coresys.GameWorld) error {
	event.Subscribe(w.Bus(), func(e event.EntityRemoved) {
		s.ClearLerps(e.Entity)
	})
	return nil
}

func (s *LerpSystem) current(id ecs.EntityID, prop Property) (float64, bool) {
	switch prop {
	case PropX, PropY:
		p, ok := s.positions.Get(id)
		if !ok {
			return 0, false
		}
		if prop == PropX {
			return p.X, true
		}
		return p.Y, true
	case PropAngle:
		if s.rotations == nil {
			return 0, false
		}
		r, ok := s.rotations.Get(id)
		if !ok {
			return 0, false
		}
		return r.Angle, true
	}
	return 0, false
}

func (s *LerpSystem) apply(l *lerp, v float64) {
	switch l.prop {
	case PropX:
		if p, ok := s.positions.Get(l.entity); ok {
			p.X = v
		}
	case PropY:
		if p, ok := s.positions.Get(l.entity); ok {
			p.Y = v
		}
	case PropAngle:
		s.rotations.Set(l.entity, v)
	}
}

// AddLerp tweens prop of id from its current value to `to` over d. done,
// if set, runs once the target is reached; it may add lerps or schedule
// the entity's removal.
func (s *LerpSystem) AddLerp(id ecs.EntityID, prop Property, to float64, d time.Duration, done func(ecs.EntityID)) error {
	from, ok := s.current(id, prop)
	if !ok {
		return fmt.Errorf("add lerp %s on %s: %w", prop, id, ecs.ErrUnknownEntity)
	}
	if d <= 0 {
		return fmt.Errorf("add lerp %s on %s: duration %s", prop, id, d)
	}
	s.lerps = append(s.lerps, lerp{entity: id, prop: prop, from: from, to: to, duration: d, done: done})
	return nil
}

// ClearLerps cancels every lerp of id. Safe to call for entities without
// lerps and for dead ids.
func (s *LerpSystem) ClearLerps(id ecs.EntityID) int {
	kept := s.lerps[:0]
	for _, l := range s.lerps {
		if l.entity != id {
			kept = append(kept, l)
		}
	}
	n := len(s.lerps) - len(kept)
	clear(s.lerps[len(kept):])
	s.lerps = kept
	return n
}

// Active is the number of running lerps.
func (s *LerpSystem) Active() int { return len(s.lerps) }

func (s *LerpSystem) Update(dt time.Duration) {
	w := s.World()
	var finished []lerp
	kept := s.lerps[:0]
	for _, l := range s.lerps {
		if w != nil && !w.Alive(l.entity) {
			continue
		}
		l.elapsed += dt
		if l.elapsed >= l.duration {
			s.apply(&l, l.to)
			finished = append(finished, l)
			continue
		}
		t := float64(l.elapsed) / float64(l.duration)
		s.apply(&l, l.from+(l.to-l.from)*t)
		kept = append(kept, l)
	}
	clear(s.lerps[len(kept):])
	s.lerps = kept

	// Callbacks run after the sweep so they can add lerps safely.
	for _, l := range finished {
		if l.done != nil {
			l.done(l.entity)
		}
	}
}
