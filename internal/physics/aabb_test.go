package physics

import (
	"testing"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/spatial"
)

const (
	typeShip CollisionType = iota + 1
	typeRock
)

type calls struct {
	begin, pre, post, sep int
	order                 [][2]ecs.EntityID
}

func (c *calls) handler(begin, pre Outcome) Handler {
	return Handler{
		Begin: func(a, b ecs.EntityID) Outcome {
			c.begin++
			c.order = append(c.order, [2]ecs.EntityID{a, b})
			return begin
		},
		PreSolve:  func(a, b ecs.EntityID) Outcome { c.pre++; return pre },
		PostSolve: func(a, b ecs.EntityID) Outcome { c.post++; return Resolve },
		Separate:  func(a, b ecs.EntityID) Outcome { c.sep++; return Resolve },
	}
}

func newSpace() *AABBSpace {
	return NewAABBSpace(spatial.Rect{MinX: -100, MinY: -100, MaxX: 100, MaxY: 100}, 4)
}

// headOn adds two 10x20 bodies 20 apart closing at 20 units/s.
func headOn(t *testing.T, s *AABBSpace) (BodyRef, BodyRef) {
	t.Helper()
	a, err := s.AddBody(BodyDef{Entity: ecs.NewEntityID(1, 1), X: 0, Y: 0, W: 10, H: 20, VX: 10, Type: typeShip})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AddBody(BodyDef{Entity: ecs.NewEntityID(2, 1), X: 20, Y: 0, W: 10, H: 20, VX: -10, Type: typeRock})
	if err != nil {
		t.Fatal(err)
	}
	return a, b
}

func TestResolveSeparatesBodies(t *testing.T) {
	s := newSpace()
	a, b := headOn(t, s)
	for i := 0; i < 4; i++ {
		s.Step(0.25)
	}
	ba, _ := s.Body(a)
	bb, _ := s.Body(b)
	if ba.X != 5 || bb.X != 15 {
		t.Fatalf("positions %v %v, want 5 15", ba.X, bb.X)
	}
	if ba.VX != 0 || bb.VX != 0 {
		t.Errorf("velocities %v %v, want 0", ba.VX, bb.VX)
	}
}

func TestBeginIgnorePassesThrough(t *testing.T) {
	s := newSpace()
	var c calls
	s.AddHandler(typeShip, typeRock, c.handler(Ignore, Resolve))
	a, _ := headOn(t, s)
	for i := 0; i < 12; i++ {
		s.Step(0.25)
	}
	if c.begin != 1 || c.pre != 0 || c.post != 0 {
		t.Errorf("begin=%d pre=%d post=%d, want 1 0 0", c.begin, c.pre, c.post)
	}
	if c.sep != 1 {
		t.Errorf("separate=%d, want 1", c.sep)
	}
	if ba, _ := s.Body(a); ba.X != 30 {
		t.Errorf("a.X = %v, want 30", ba.X)
	}
}

func TestNotifyOnlyKeepsCallbacks(t *testing.T) {
	s := newSpace()
	var c calls
	s.AddHandler(typeShip, typeRock, c.handler(NotifyOnly, Resolve))
	a, b := headOn(t, s)
	for i := 0; i < 4; i++ {
		s.Step(0.25)
	}
	if c.begin != 1 {
		t.Fatalf("begin=%d", c.begin)
	}
	// touching at step 2, overlapping at 3 and 4
	if c.pre != 3 || c.post != 3 {
		t.Errorf("pre=%d post=%d, want 3 3", c.pre, c.post)
	}
	ba, _ := s.Body(a)
	bb, _ := s.Body(b)
	if ba.X != 10 || bb.X != 10 {
		t.Errorf("bodies corrected: %v %v", ba.X, bb.X)
	}
}

func TestPreSolveIgnoreSkipsPostSolve(t *testing.T) {
	s := newSpace()
	var c calls
	s.AddHandler(typeShip, typeRock, c.handler(Resolve, Ignore))
	headOn(t, s)
	for i := 0; i < 4; i++ {
		s.Step(0.25)
	}
	if c.pre == 0 || c.post != 0 {
		t.Errorf("pre=%d post=%d", c.pre, c.post)
	}
}

func TestHandlerArgumentOrder(t *testing.T) {
	s := newSpace()
	var c calls
	s.AddHandler(typeRock, typeShip, c.handler(NotifyOnly, Resolve))
	headOn(t, s)
	for i := 0; i < 3; i++ {
		s.Step(0.25)
	}
	if len(c.order) != 1 {
		t.Fatalf("begin calls %d", len(c.order))
	}
	rock, ship := c.order[0][0], c.order[0][1]
	if rock != ecs.NewEntityID(2, 1) || ship != ecs.NewEntityID(1, 1) {
		t.Errorf("order %s %s, want rock then ship", rock, ship)
	}
}

func TestStaticBodyDoesNotMove(t *testing.T) {
	s := newSpace()
	wall, _ := s.AddBody(BodyDef{X: 10, Y: 0, W: 10, H: 40, Static: true})
	ball, _ := s.AddBody(BodyDef{X: 0, Y: 0, W: 4, H: 4, VX: 20})
	for i := 0; i < 5; i++ {
		s.Step(0.1)
	}
	w, _ := s.Body(wall)
	b, _ := s.Body(ball)
	if w.X != 10 {
		t.Errorf("wall moved to %v", w.X)
	}
	if b.X+b.W/2 > w.X-w.W/2 {
		t.Errorf("ball at %v overlaps wall", b.X)
	}
}

func TestRemoveBodyDuringStep(t *testing.T) {
	s := newSpace()
	var removed bool
	var ship BodyRef
	s.AddHandler(typeShip, typeRock, Handler{
		Begin: func(a, b ecs.EntityID) Outcome {
			s.RemoveBody(ship)
			removed = true
			return Ignore
		},
	})
	ship, _ = headOn(t, s)
	for i := 0; i < 3; i++ {
		s.Step(0.25)
	}
	if !removed {
		t.Fatal("begin not called")
	}
	if _, ok := s.Body(ship); ok {
		t.Error("body still present after step")
	}
	if s.Len() != 1 || s.Contacts() != 0 {
		t.Errorf("len=%d contacts=%d", s.Len(), s.Contacts())
	}
}

func TestAddBodyRejectsEmptyBox(t *testing.T) {
	if _, err := newSpace().AddBody(BodyDef{W: 0, H: 1}); err == nil {
		t.Fatal("zero width accepted")
	}
}
