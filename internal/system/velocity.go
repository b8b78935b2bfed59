package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
)

// VelocitySystem moves entities by their velocity each frame through the
// position and rotate systems. Entities must be given a position before
// a velocity.
// Phase 2 (Update).
type VelocitySystem struct {
	coresys.Base
	pool      *mem.Pool[component.Velocity]
	positions *PositionSystem
	rotations *RotateSystem // optional
}

func NewVelocitySystem(opts mem.Options, positions *PositionSystem, rotations *RotateSystem) (*VelocitySystem, error) {
	pool, err := mem.NewPool[component.Velocity](VelocityName, opts)
	if err != nil {
		return nil, fmt.Errorf("velocity pool: %w", err)
	}
	return &VelocitySystem{
		Base:      coresys.NewBase(VelocityName, coresys.PhaseUpdate),
		pool:      pool,
		positions: positions,
		rotations: rotations,
	}, nil
}

func (s *VelocitySystem) Pool() mem.Allocator { return s.pool }

func (s *VelocitySystem) CreateComponent(id ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.VelocityConfig](VelocityName, cfg)
	if err != nil {
		return err
	}
	if _, ok := s.positions.Get(id); !ok {
		return fmt.Errorf("%w: velocity needs a position component first", coresys.ErrBadConfig)
	}
	*s.pool.At(slot) = component.Velocity{VX: c.VX, VY: c.VY, VAngle: c.VAngle}
	return nil
}

func (s *VelocitySystem) RemoveComponent(_ ecs.EntityID, slot mem.Slot) {
	*s.pool.At(slot) = component.Velocity{}
}

func (s *VelocitySystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.VelocityConfig](decode)
}

func (s *VelocitySystem) ExportConfig(id ecs.EntityID) (any, bool) {
	v, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return component.VelocityConfig{VX: v.VX, VY: v.VY, VAngle: v.VAngle}, true
}

func (s *VelocitySystem) Get(id ecs.EntityID) (*component.Velocity, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

func (s *VelocitySystem) View() coresys.View[component.Velocity] {
	return coresys.NewView(&s.Base, s.pool)
}

func (s *VelocitySystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	vel := s.View()
	coresys.Each2(vel, s.positions.View(), func(_ ecs.EntityID, v *component.Velocity, p *component.Position) {
		p.X += v.VX * sec
		p.Y += v.VY * sec
	})
	if s.rotations == nil {
		return
	}
	coresys.Each2(vel, s.rotations.View(), func(_ ecs.EntityID, v *component.Velocity, r *component.Rotation) {
		r.Angle += v.VAngle * sec
	})
}
