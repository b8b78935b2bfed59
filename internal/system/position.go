package system

import (
	"fmt"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
)

const (
	PositionName = "position"
	RotateName   = "rotate"
	VelocityName = "velocity"
)

// PositionSystem owns 2D positions. It has no per-frame work; other
// systems read and write positions through Get, Set and Translate.
// Phase 1 (PreUpdate).
type PositionSystem struct {
	coresys.Base
	pool *mem.Pool[component.Position]
}

func NewPositionSystem(opts mem.Options) (*PositionSystem, error) {
	pool, err := mem.NewPool[component.Position](PositionName, opts)
	if err != nil {
		return nil, fmt.Errorf("position pool: %w", err)
	}
	return &PositionSystem{Base: coresys.NewBase(PositionName, coresys.PhasePreUpdate), pool: pool}, nil
}

func (s *PositionSystem) Pool() mem.Allocator { return s.pool }

func (s *PositionSystem) CreateComponent(_ ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.PositionConfig](PositionName, cfg)
	if err != nil {
		return err
	}
	*s.pool.At(slot) = component.Position{X: c.X, Y: c.Y}
	return nil
}

func (s *PositionSystem) RemoveComponent(_ ecs.EntityID, slot mem.Slot) {
	*s.pool.At(slot) = component.Position{}
}

func (s *PositionSystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.PositionConfig](decode)
}

func (s *PositionSystem) ExportConfig(id ecs.EntityID) (any, bool) {
	p, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return component.PositionConfig{X: p.X, Y: p.Y}, true
}

func (s *PositionSystem) View() coresys.View[component.Position] {
	return coresys.NewView(&s.Base, s.pool)
}

func (s *PositionSystem) Get(id ecs.EntityID) (*component.Position, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

// Set moves id to (x, y). Returns false if id has no position.
func (s *PositionSystem) Set(id ecs.EntityID, x, y float64) bool {
	p, ok := s.Get(id)
	if !ok {
		return false
	}
	p.X, p.Y = x, y
	return true
}

func (s *PositionSystem) Translate(id ecs.EntityID, dx, dy float64) bool {
	p, ok := s.Get(id)
	if !ok {
		return false
	}
	p.X += dx
	p.Y += dy
	return true
}

// RotateSystem owns rotation angles in radians.
// Phase 1 (PreUpdate).
type RotateSystem struct {
	coresys.Base
	pool *mem.Pool[component.Rotation]
}

func NewRotateSystem(opts mem.Options) (*RotateSystem, error) {
	pool, err := mem.NewPool[component.Rotation](RotateName, opts)
	if err != nil {
		return nil, fmt.Errorf("rotate pool: %w", err)
	}
	return &RotateSystem{Base: coresys.NewBase(RotateName, coresys.PhasePreUpdate), pool: pool}, nil
}

func (s *RotateSystem) Pool() mem.Allocator { return s.pool }

func (s *RotateSystem) CreateComponent(_ ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.RotateConfig](RotateName, cfg)
	if err != nil {
		return err
	}
	*s.pool.At(slot) = component.Rotation{Angle: c.Angle}
	return nil
}

func (s *RotateSystem) RemoveComponent(_ ecs.EntityID, slot mem.Slot) {
	*s.pool.At(slot) = component.Rotation{}
}

func (s *RotateSystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.RotateConfig](decode)
}

func (s *RotateSystem) ExportConfig(id ecs.EntityID) (any, bool) {
	r, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return component.RotateConfig{Angle: r.Angle}, true
}

func (s *RotateSystem) View() coresys.View[component.Rotation] {
	return coresys.NewView(&s.Base, s.pool)
}

func (s *RotateSystem) Get(id ecs.EntityID) (*component.Rotation, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

func (s *RotateSystem) Set(id ecs.EntityID, angle float64) bool {
	r, ok := s.Get(id)
	if !ok {
		return false
	}
	r.Angle = angle
	return true
}

func (s *RotateSystem) Rotate(id ecs.EntityID, delta float64) bool {
	r, ok := s.Get(id)
	if !ok {
		return false
	}
	r.Angle += delta
	return true
}
