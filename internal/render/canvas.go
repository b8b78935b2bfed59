// Package render defines what the renderer system needs from a drawing
// backend: a canvas that owns per-entity draw instructions, and a library
// of textures and models referenced by string key.
package render

// Handle identifies one live draw instruction on a canvas. Zero is no
// instruction.
type Handle uint32

// Instance is the per-frame data for one drawn entity.
type Instance struct {
	Entity uint64
	X      float64
	Y      float64
	Angle  float64
	Width  float64
	Height float64
}

// Batch groups instances sharing a texture and model. The renderer never
// emits a batch longer than its configured maximum.
type Batch struct {
	Texture   string
	Model     string
	Instances []Instance
}

// Canvas is the drawing backend. Instructions are created when an entity
// becomes visible and released when it leaves the viewport or is removed.
type Canvas interface {
	Create(inst Instance, texture, model string) Handle
	Update(h Handle, inst Instance)
	Release(h Handle)
	// Submit hands over the frame's batches, ordered by texture then model.
	Submit(batches []Batch)
}

// BulkReleaser canvases can drop many instructions in one call, used when
// a zone is cleared.
type BulkReleaser interface {
	ReleaseAll(handles []Handle)
}
