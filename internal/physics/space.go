// Package physics is the contract between the physics system and a 2D
// physics space, plus AABBSpace, a small axis-aligned reference space.
package physics

import "github.com/l1jgo/gameworld/internal/core/ecs"

// CollisionType tags bodies; handlers are keyed by a pair of tags.
type CollisionType uint8

// Outcome is what a collision callback asks the space to do.
//
// The same rule holds for every callback that can decide: Resolve lets
// the contact proceed to position correction, NotifyOnly keeps the
// callbacks coming but skips correction, Ignore stops both. A Begin
// result lasts for the contact's lifetime (until Separate); a PreSolve
// result lasts for one step. PostSolve and Separate results are unused.
type Outcome uint8

const (
	Resolve Outcome = iota
	NotifyOnly
	Ignore
)

func (o Outcome) String() string {
	switch o {
	case Resolve:
		return "resolve"
	case NotifyOnly:
		return "notify-only"
	case Ignore:
		return "ignore"
	}
	return "outcome(?)"
}

// Callback receives the colliding entities in the order of the handler's
// registered type pair.
type Callback func(a, b ecs.EntityID) Outcome

// Handler callbacks are all optional; a nil callback counts as Resolve.
type Handler struct {
	Begin     Callback
	PreSolve  Callback
	PostSolve Callback
	Separate  Callback
}

type BodyRef uint32

// BodyDef describes a new body. Entity is the back-reference handed to
// collision callbacks.
type BodyDef struct {
	Entity ecs.EntityID
	X, Y   float64 // centre
	W, H   float64
	VX, VY float64
	Mass   float64 // <= 0 means 1
	Static bool
	Type   CollisionType
}

// Body is a snapshot of a body's state.
type Body struct {
	Entity ecs.EntityID
	X, Y   float64
	W, H   float64
	VX, VY float64
	Mass   float64
	Static bool
	Type   CollisionType
}

// Space is the physics collaborator the physics system drives. Step is
// called once per frame with the elapsed seconds. Callbacks run inside
// Step and must not remove bodies directly; entity removal from a
// callback goes through GameWorld.TimedRemoveEntity.
type Space interface {
	AddBody(def BodyDef) (BodyRef, error)
	RemoveBody(ref BodyRef)
	Body(ref BodyRef) (Body, bool)
	SetVelocity(ref BodyRef, vx, vy float64)
	SetPosition(ref BodyRef, x, y float64)
	AddHandler(a, b CollisionType, h Handler)
	Step(dt float64)
}
