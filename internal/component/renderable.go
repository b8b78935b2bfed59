package component

import (
	"github.com/l1jgo/gameworld/internal/render"
	"github.com/l1jgo/gameworld/internal/spatial"
)

// Renderable is owned by the renderer system.
type Renderable struct {
	Texture string
	Model   string
	Width   float64
	Height  float64
	Hidden  bool

	// Handle is the live canvas instruction, zero while off-screen.
	Handle render.Handle
	// Box is the bounding box last pushed into the visibility index.
	Box spatial.Rect
}

type RendererConfig struct {
	Texture string  `yaml:"texture"`
	Model   string  `yaml:"model"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Hidden  bool    `yaml:"hidden"`
}
