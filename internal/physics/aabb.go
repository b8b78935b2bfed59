package physics

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/l1jgo/gameworld/internal/spatial"
)

type pairKey struct{ a, b BodyRef } // a < b

type contact struct {
	begin Outcome
	step  uint64
}

// AABBSpace integrates velocities and separates overlapping boxes along
// the axis of least penetration. Broadphase is a quad-tree over the
// space bounds. Not safe for concurrent use.
type AABBSpace struct {
	bodies   map[BodyRef]*Body
	next     BodyRef
	tree     *spatial.QuadTree
	handlers map[[2]CollisionType]Handler
	contacts map[pairKey]*contact

	step     uint64
	inStep   bool
	deferred []BodyRef
}

func NewAABBSpace(bounds spatial.Rect, maxDepth int) *AABBSpace {
	return &AABBSpace{
		bodies:   make(map[BodyRef]*Body, 256),
		tree:     spatial.New(bounds, maxDepth),
		handlers: make(map[[2]CollisionType]Handler, 8),
		contacts: make(map[pairKey]*contact, 64),
	}
}

func (s *AABBSpace) Len() int      { return len(s.bodies) }
func (s *AABBSpace) Contacts() int { return len(s.contacts) }

func boxOf(b *Body) spatial.Rect { return spatial.RectAt(b.X, b.Y, b.W, b.H) }

func (s *AABBSpace) AddBody(def BodyDef) (BodyRef, error) {
	if def.W <= 0 || def.H <= 0 {
		return 0, fmt.Errorf("add body: size %gx%g", def.W, def.H)
	}
	if def.Mass <= 0 {
		def.Mass = 1
	}
	s.next++
	ref := s.next
	b := &Body{
		Entity: def.Entity,
		X:      def.X, Y: def.Y,
		W: def.W, H: def.H,
		VX: def.VX, VY: def.VY,
		Mass:   def.Mass,
		Static: def.Static,
		Type:   def.Type,
	}
	s.bodies[ref] = b
	s.tree.AddItems(spatial.Item{ID: uint64(ref), Box: boxOf(b)})
	return ref, nil
}

// RemoveBody drops the body and its contacts without Separate callbacks.
// Removal requested inside Step is applied when the step ends.
func (s *AABBSpace) RemoveBody(ref BodyRef) {
	if s.inStep {
		s.deferred = append(s.deferred, ref)
		return
	}
	if _, ok := s.bodies[ref]; !ok {
		return
	}
	delete(s.bodies, ref)
	s.tree.Remove(uint64(ref))
	for k := range s.contacts {
		if k.a == ref || k.b == ref {
			delete(s.contacts, k)
		}
	}
}

func (s *AABBSpace) Body(ref BodyRef) (Body, bool) {
	b, ok := s.bodies[ref]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

func (s *AABBSpace) SetVelocity(ref BodyRef, vx, vy float64) {
	if b, ok := s.bodies[ref]; ok {
		b.VX, b.VY = vx, vy
	}
}

func (s *AABBSpace) SetPosition(ref BodyRef, x, y float64) {
	if b, ok := s.bodies[ref]; ok {
		b.X, b.Y = x, y
		s.tree.Move(uint64(ref), boxOf(b))
	}
}

// AddHandler registers h for the pair (a, b). Registering (b, a) later
// replaces it, with callbacks then receiving entities in (b, a) order.
func (s *AABBSpace) AddHandler(a, b CollisionType, h Handler) {
	delete(s.handlers, [2]CollisionType{b, a})
	s.handlers[[2]CollisionType{a, b}] = h
}

// handler finds the handler for two bodies and orders them to match it.
func (s *AABBSpace) handler(x, y *Body) (Handler, *Body, *Body, bool) {
	if h, ok := s.handlers[[2]CollisionType{x.Type, y.Type}]; ok {
		return h, x, y, true
	}
	if h, ok := s.handlers[[2]CollisionType{y.Type, x.Type}]; ok {
		return h, y, x, true
	}
	return Handler{}, x, y, false
}

func call(cb Callback, a, b *Body) Outcome {
	if cb == nil {
		return Resolve
	}
	return cb(a.Entity, b.Entity)
}

func (s *AABBSpace) sortedRefs() []BodyRef {
	refs := make([]BodyRef, 0, len(s.bodies))
	for ref := range s.bodies {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	return refs
}

// Step advances the space by dt seconds and runs collision callbacks in
// ascending body order.
func (s *AABBSpace) Step(dt float64) {
	s.step++
	s.inStep = true
	refs := s.sortedRefs()

	for _, ref := range refs {
		b := s.bodies[ref]
		if b.Static || (b.VX == 0 && b.VY == 0) {
			continue
		}
		b.X += b.VX * dt
		b.Y += b.VY * dt
		s.tree.Move(uint64(ref), boxOf(b))
	}
	s.tree.UpdateQuads()

	var pairs []pairKey
	for _, ref := range refs {
		b := s.bodies[ref]
		s.tree.Query(boxOf(b), func(id uint64) {
			other := BodyRef(id)
			if other <= ref {
				return
			}
			if b.Static && s.bodies[other].Static {
				return
			}
			pairs = append(pairs, pairKey{ref, other})
		})
	}
	slices.SortFunc(pairs, func(p, q pairKey) int {
		if c := cmp.Compare(p.a, q.a); c != 0 {
			return c
		}
		return cmp.Compare(p.b, q.b)
	})

	for _, k := range pairs {
		s.touch(k)
	}
	s.separate()

	s.inStep = false
	for _, ref := range s.deferred {
		s.RemoveBody(ref)
	}
	s.deferred = s.deferred[:0]
}

func (s *AABBSpace) touch(k pairKey) {
	x, y := s.bodies[k.a], s.bodies[k.b]
	h, a, b, found := s.handler(x, y)
	c, ok := s.contacts[k]
	if !ok {
		c = &contact{begin: Resolve}
		if found {
			c.begin = call(h.Begin, a, b)
		}
		s.contacts[k] = c
	}
	c.step = s.step
	if c.begin == Ignore {
		return
	}
	pre := Resolve
	if found {
		pre = call(h.PreSolve, a, b)
	}
	if pre == Ignore {
		return
	}
	if c.begin == Resolve && pre == Resolve {
		s.resolve(k.a, x, k.b, y)
	}
	if found {
		call(h.PostSolve, a, b)
	}
}

// separate ends contacts that were not touched this step.
func (s *AABBSpace) separate() {
	var ended []pairKey
	for k, c := range s.contacts {
		if c.step != s.step {
			ended = append(ended, k)
		}
	}
	slices.SortFunc(ended, func(p, q pairKey) int {
		if c := cmp.Compare(p.a, q.a); c != 0 {
			return c
		}
		return cmp.Compare(p.b, q.b)
	})
	for _, k := range ended {
		delete(s.contacts, k)
		x, y := s.bodies[k.a], s.bodies[k.b]
		if x == nil || y == nil {
			continue
		}
		if h, a, b, found := s.handler(x, y); found {
			call(h.Separate, a, b)
		}
	}
}

// resolve pushes x and y apart along the axis of least penetration,
// splitting the correction by mass, and stops their motion on that axis.
func (s *AABBSpace) resolve(xr BodyRef, x *Body, yr BodyRef, y *Body) {
	bx, by := boxOf(x), boxOf(y)
	ox := math.Min(bx.MaxX, by.MaxX) - math.Max(bx.MinX, by.MinX)
	oy := math.Min(bx.MaxY, by.MaxY) - math.Max(bx.MinY, by.MinY)
	if ox <= 0 || oy <= 0 {
		return
	}
	var wx, wy float64
	switch {
	case x.Static:
		wy = 1
	case y.Static:
		wx = 1
	default:
		wx = y.Mass / (x.Mass + y.Mass)
		wy = 1 - wx
	}
	if ox < oy {
		dir := 1.0
		if x.X < y.X {
			dir = -1
		}
		x.X += dir * ox * wx
		y.X -= dir * ox * wy
		if !x.Static {
			x.VX = 0
		}
		if !y.Static {
			y.VX = 0
		}
	} else {
		dir := 1.0
		if x.Y < y.Y {
			dir = -1
		}
		x.Y += dir * oy * wx
		y.Y -= dir * oy * wy
		if !x.Static {
			x.VY = 0
		}
		if !y.Static {
			y.VY = 0
		}
	}
	s.tree.Move(uint64(xr), boxOf(x))
	s.tree.Move(uint64(yr), boxOf(y))
}
