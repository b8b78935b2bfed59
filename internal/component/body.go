package component

import "github.com/l1jgo/gameworld/internal/physics"

// Body is owned by the physics system and back-references a body in the
// physics space.
type Body struct {
	Ref  physics.BodyRef
	Type physics.CollisionType
	// X, Y is the position last exchanged with the space. A position
	// component that differs was moved by someone else and is pushed to
	// the body before the next step.
	X, Y float64
}

type PhysicsConfig struct {
	Width         float64               `yaml:"width"`
	Height        float64               `yaml:"height"`
	VX            float64               `yaml:"vx"`
	VY            float64               `yaml:"vy"`
	Mass          float64               `yaml:"mass"`
	Static        bool                  `yaml:"static"`
	CollisionType physics.CollisionType `yaml:"collision_type"`
}
