package component

// Position is owned by the position system. Other systems read it through
// PositionSystem.Get and write it through PositionSystem.Set/Translate.
type Position struct {
	X float64
	Y float64
}

type PositionConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Rotation is owned by the rotate system. Angle is in radians.
type Rotation struct {
	Angle float64
}

type RotateConfig struct {
	Angle float64 `yaml:"angle"`
}

// Velocity is owned by the velocity system: units and radians per second.
type Velocity struct {
	VX     float64
	VY     float64
	VAngle float64
}

type VelocityConfig struct {
	VX     float64 `yaml:"vx"`
	VY     float64 `yaml:"vy"`
	VAngle float64 `yaml:"vangle"`
}
