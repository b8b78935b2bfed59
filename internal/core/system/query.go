package system

import (
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
)

// View pairs a system's tracked entities with its component pool.
type View[T any] struct {
	base *Base
	pool *mem.Pool[T]
}

func NewView[T any](b *Base, p *mem.Pool[T]) View[T] {
	return View[T]{base: b, pool: p}
}

func (v View[T]) Len() int { return v.base.entities.Len() }

func (v View[T]) Get(id ecs.EntityID) (*T, bool) {
	return Component(v.base, v.pool, id)
}

func (v View[T]) ids() []ecs.EntityID { return v.base.entities.Entities() }

// Each2 iterates over entities that have both component A and B.
// It walks the smaller tracked set and looks the other component up.
// fn may change component values but must not add or remove entities;
// use TimedRemoveEntity.
func Each2[A, B any](va View[A], vb View[B], fn func(ecs.EntityID, *A, *B)) {
	ids := va.ids()
	if vb.Len() < va.Len() {
		ids = vb.ids()
	}
	for _, id := range ids {
		a, ok := va.Get(id)
		if !ok {
			continue
		}
		if b, ok := vb.Get(id); ok {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](va View[A], vb View[B], vc View[C], fn func(ecs.EntityID, *A, *B, *C)) {
	// Iterate the smallest set
	ids := va.ids()
	smallest := va.Len()
	if vb.Len() < smallest {
		ids, smallest = vb.ids(), vb.Len()
	}
	if vc.Len() < smallest {
		ids = vc.ids()
	}
	for _, id := range ids {
		a, ok := va.Get(id)
		if !ok {
			continue
		}
		b, ok := vb.Get(id)
		if !ok {
			continue
		}
		if c, ok := vc.Get(id); ok {
			fn(id, a, b, c)
		}
	}
}
