package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"github.com/l1jgo/gameworld/internal/physics"
)

const PhysicsName = "physics"

// PhysicsSystem mirrors entities into a physics space. Bodies are created
// at the entity's position; after each step, body positions are written
// back through the position system. Positions changed by other systems
// between steps are pushed to the bodies first. Collision callbacks receive entity ids
// and must use TimedRemoveEntity to remove anything.
// Phase 2 (Update).
type PhysicsSystem struct {
	coresys.Base
	pool      *mem.Pool[component.Body]
	positions *PositionSystem
	space     physics.Space
	byRef     map[physics.BodyRef]ecs.EntityID
}

func NewPhysicsSystem(opts mem.Options, positions *PositionSystem, space physics.Space) (*PhysicsSystem, error) {
	if space == nil {
		return nil, fmt.Errorf("physics: nil space")
	}
	pool, err := mem.NewPool[component.Body](PhysicsName, opts)
	if err != nil {
		return nil, fmt.Errorf("physics pool: %w", err)
	}
	return &PhysicsSystem{
		Base:      coresys.NewBase(PhysicsName, coresys.PhaseUpdate),
		pool:      pool,
		positions: positions,
		space:     space,
		byRef:     make(map[physics.BodyRef]ecs.EntityID, 256),
	}, nil
}

func (s *PhysicsSystem) Pool() mem.Allocator  { return s.pool }
func (s *PhysicsSystem) Space() physics.Space { return s.space }

func (s *PhysicsSystem) CreateComponent(id ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.PhysicsConfig](PhysicsName, cfg)
	if err != nil {
		return err
	}
	pos, ok := s.positions.Get(id)
	if !ok {
		return fmt.Errorf("%w: physics needs a position component first", coresys.ErrBadConfig)
	}
	ref, err := s.space.AddBody(physics.BodyDef{
		Entity: id,
		X:      pos.X,
		Y:      pos.Y,
		W:      c.Width,
		H:      c.Height,
		VX:     c.VX,
		VY:     c.VY,
		Mass:   c.Mass,
		Static: c.Static,
		Type:   c.CollisionType,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", coresys.ErrBadConfig, err)
	}
	*s.pool.At(slot) = component.Body{Ref: ref, Type: c.CollisionType, X: pos.X, Y: pos.Y}
	s.byRef[ref] = id
	return nil
}

func (s *PhysicsSystem) RemoveComponent(_ ecs.EntityID, slot mem.Slot) {
	b := s.pool.At(slot)
	s.space.RemoveBody(b.Ref)
	delete(s.byRef, b.Ref)
	*b = component.Body{}
}

func (s *PhysicsSystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.PhysicsConfig](decode)
}

// ExportConfig reads the body back from the space, so the snapshot holds
// the current velocity rather than the spawn one.
func (s *PhysicsSystem) ExportConfig(id ecs.EntityID) (any, bool) {
	b, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	body, ok := s.space.Body(b.Ref)
	if !ok {
		return nil, false
	}
	return component.PhysicsConfig{
		Width:         body.W,
		Height:        body.H,
		VX:            body.VX,
		VY:            body.VY,
		Mass:          body.Mass,
		Static:        body.Static,
		CollisionType: body.Type,
	}, true
}

func (s *PhysicsSystem) Get(id ecs.EntityID) (*component.Body, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

// EntityOf resolves a body back-reference.
func (s *PhysicsSystem) EntityOf(ref physics.BodyRef) (ecs.EntityID, bool) {
	id, ok := s.byRef[ref]
	return id, ok
}

func (s *PhysicsSystem) SetVelocity(id ecs.EntityID, vx, vy float64) bool {
	b, ok := s.Get(id)
	if !ok {
		return false
	}
	s.space.SetVelocity(b.Ref, vx, vy)
	return true
}

// Teleport moves both the body and the position component.
func (s *PhysicsSystem) Teleport(id ecs.EntityID, x, y float64) bool {
	b, ok := s.Get(id)
	if !ok {
		return false
	}
	s.space.SetPosition(b.Ref, x, y)
	s.positions.Set(id, x, y)
	b.X, b.Y = x, y
	return true
}

// AddCollisionHandler registers h for the type pair. Callbacks for
// entities already scheduled for removal are skipped and count as Ignore.
func (s *PhysicsSystem) AddCollisionHandler(a, b physics.CollisionType, h physics.Handler) {
	s.space.AddHandler(a, b, physics.Handler{
		Begin:     s.guard(h.Begin),
		PreSolve:  s.guard(h.PreSolve),
		PostSolve: s.guard(h.PostSolve),
		Separate:  s.guard(h.Separate),
	})
}

func (s *PhysicsSystem) guard(cb physics.Callback) physics.Callback {
	if cb == nil {
		return nil
	}
	return func(a, b ecs.EntityID) physics.Outcome {
		if w := s.World(); w != nil && (w.PendingRemoval(a) || w.PendingRemoval(b)) {
			return physics.Ignore
		}
		return cb(a, b)
	}
}

func (s *PhysicsSystem) View() coresys.View[component.Body] {
	return coresys.NewView(&s.Base, s.pool)
}

func (s *PhysicsSystem) Update(dt time.Duration) {
	bodies, positions := s.View(), s.positions.View()
	coresys.Each2(bodies, positions, func(_ ecs.EntityID, b *component.Body, pos *component.Position) {
		if pos.X != b.X || pos.Y != b.Y {
			s.space.SetPosition(b.Ref, pos.X, pos.Y)
		}
	})

	s.space.Step(dt.Seconds())

	coresys.Each2(bodies, positions, func(_ ecs.EntityID, b *component.Body, pos *component.Position) {
		body, ok := s.space.Body(b.Ref)
		if !ok {
			return
		}
		b.X, b.Y = body.X, body.Y
		pos.X, pos.Y = body.X, body.Y
	})
}
