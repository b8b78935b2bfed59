package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
)

// Phase defines execution ordering within a single frame. Systems in the
// same phase run in registration order.
type Phase int

const (
	PhaseInput      Phase = iota // 0: host input, camera
	PhasePreUpdate               // 1: plain data owners (position, rotate)
	PhaseUpdate                  // 2: simulation: velocity, physics, scripts
	PhasePostUpdate              // 3: lerps, animation
	PhaseRender                  // 4: renderers
	PhaseCleanup                 // 5: bookkeeping after everything else
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseRender:
		return "render"
	case PhaseCleanup:
		return "cleanup"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// System is the interface every registered system implements. All of them
// embed Base, which carries the name, phase and tracked entities.
type System interface {
	Name() string
	Phase() Phase
}

// Updater systems are driven once per frame by GameWorld.Update.
type Updater interface {
	System
	Update(dt time.Duration)
}

// Drawer systems produce rendering output in GameWorld.Draw.
type Drawer interface {
	System
	Draw()
}

// ComponentOwner systems own one component pool. The gameworld allocates
// the slot in the entity's zone; CreateComponent initializes it from cfg
// (nil means defaults) and may read sibling components attached earlier.
// RemoveComponent must release any sub-resources before returning; the
// gameworld frees the slot afterwards.
type ComponentOwner interface {
	System
	Pool() mem.Allocator
	CreateComponent(id ecs.EntityID, slot mem.Slot, cfg any) error
	RemoveComponent(id ecs.EntityID, slot mem.Slot)
}

// ConfigDecoder systems can build their typed config from a data file.
// decode fills a pointer to the system's config struct; it is nil when
// the data file gives no options.
type ConfigDecoder interface {
	DecodeConfig(decode func(any) error) (any, error)
}

// ConfigExporter systems can describe an entity's component as the config
// that would recreate it, used for snapshots.
type ConfigExporter interface {
	ExportConfig(id ecs.EntityID) (any, bool)
}

// ZoneClearer systems release per-entity sub-resources for a whole zone
// at once instead of receiving RemoveComponent per entity.
type ZoneClearer interface {
	ClearZone(zone mem.ZoneID, entities []ecs.EntityID)
}

// Registrar systems are told once they are bound to a gameworld, the place
// to subscribe to bus events or look up sibling systems.
type Registrar interface {
	Registered(w *GameWorld) error
}

// Base is embedded by every system.
type Base struct {
	name     string
	phase    Phase
	id       ecs.SystemID
	world    *GameWorld
	entities *ecs.EntitySet
}

func NewBase(name string, phase Phase) Base {
	return Base{name: name, phase: phase, entities: ecs.NewEntitySet(64)}
}

func (b *Base) Name() string      { return b.name }
func (b *Base) Phase() Phase      { return b.phase }
func (b *Base) ID() ecs.SystemID  { return b.id }
func (b *Base) World() *GameWorld { return b.world }

// Entities is the set of entities holding a component of this system.
// Do not remove entities while walking it; use TimedRemoveEntity.
func (b *Base) Entities() *ecs.EntitySet { return b.entities }

// SlotOf returns the component slot id holds in this system.
func (b *Base) SlotOf(id ecs.EntityID) (mem.Slot, bool) {
	if b.world == nil {
		return mem.InvalidSlot, false
	}
	return b.world.table.Slot(id, b.id)
}

func (b *Base) base() *Base { return b }

type bound interface {
	base() *Base
}

// Component is the typed accessor systems build their Get methods on.
func Component[T any](b *Base, p *mem.Pool[T], id ecs.EntityID) (*T, bool) {
	slot, ok := b.SlotOf(id)
	if !ok {
		return nil, false
	}
	return p.At(slot), true
}
