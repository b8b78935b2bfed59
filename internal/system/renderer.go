package system

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"github.com/l1jgo/gameworld/internal/render"
	"github.com/l1jgo/gameworld/internal/spatial"
	"go.uber.org/zap"
)

const (
	RendererName        = "renderer"
	DefaultMaxBatchSize = 1000
)

// RendererOptions configures the renderer's visibility index and batching.
type RendererOptions struct {
	Pool         mem.Options
	Bounds       spatial.Rect // quad-tree root bounds
	MaxDepth     int
	Viewport     spatial.Rect
	MaxBatchSize int
}

// FrameStats counts what the last Draw did.
type FrameStats struct {
	Visible  int
	Created  int
	Released int
	Batches  int
}

// RendererSystem keeps a canvas instruction for every visible entity.
// Each Draw refreshes moved boxes in the quad-tree, queries the viewport,
// creates instructions for entities that came into view, updates those
// still in view, releases the rest, and submits the visible instances in
// batches grouped by texture and model.
// Phase 4 (Render).
type RendererSystem struct {
	coresys.Base
	pool      *mem.Pool[component.Renderable]
	positions *PositionSystem
	rotations *RotateSystem // optional
	canvas    render.Canvas
	library   *render.Library // optional; validates keys when set
	tree      *spatial.QuadTree
	viewport  spatial.Rect
	maxBatch  int

	onScreen *ecs.EntitySet
	seen     map[ecs.EntityID]struct{}
	stats    FrameStats
}

func NewRendererSystem(opts RendererOptions, positions *PositionSystem, rotations *RotateSystem,
	canvas render.Canvas, library *render.Library) (*RendererSystem, error) {
	if canvas == nil {
		return nil, fmt.Errorf("renderer: nil canvas")
	}
	pool, err := mem.NewPool[component.Renderable](RendererName, opts.Pool)
	if err != nil {
		return nil, fmt.Errorf("renderer pool: %w", err)
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 6
	}
	return &RendererSystem{
		Base:      coresys.NewBase(RendererName, coresys.PhaseRender),
		pool:      pool,
		positions: positions,
		rotations: rotations,
		canvas:    canvas,
		library:   library,
		tree:      spatial.New(opts.Bounds, opts.MaxDepth),
		viewport:  opts.Viewport,
		maxBatch:  opts.MaxBatchSize,
		onScreen:  ecs.NewEntitySet(256),
		seen:      make(map[ecs.EntityID]struct{}, 256),
	}, nil
}

func (s *RendererSystem) Pool() mem.Allocator { return s.pool }

func (s *RendererSystem) CreateComponent(id ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.RendererConfig](RendererName, cfg)
	if err != nil {
		return err
	}
	if c.Texture == "" && c.Model == "" {
		return fmt.Errorf("%w: renderer needs a texture or a model", coresys.ErrBadConfig)
	}
	if s.library != nil {
		if c.Texture != "" && !s.library.HasTexture(c.Texture) {
			return fmt.Errorf("%w: unknown texture %q", coresys.ErrBadConfig, c.Texture)
		}
		if c.Model != "" && !s.library.HasModel(c.Model) {
			return fmt.Errorf("%w: unknown model %q", coresys.ErrBadConfig, c.Model)
		}
	}
	pos, ok := s.positions.Get(id)
	if !ok {
		return fmt.Errorf("%w: renderer needs a position component first", coresys.ErrBadConfig)
	}
	box := spatial.RectAt(pos.X, pos.Y, c.Width, c.Height)
	*s.pool.At(slot) = component.Renderable{
		Texture: c.Texture,
		Model:   c.Model,
		Width:   c.Width,
		Height:  c.Height,
		Hidden:  c.Hidden,
		Box:     box,
	}
	s.tree.AddItems(spatial.Item{ID: uint64(id), Box: box})
	return nil
}

func (s *RendererSystem) RemoveComponent(id ecs.EntityID, slot mem.Slot) {
	r := s.pool.At(slot)
	if r.Handle != 0 {
		s.canvas.Release(r.Handle)
	}
	s.tree.Remove(uint64(id))
	s.onScreen.Remove(id)
	*r = component.Renderable{}
}

// ClearZone drops every instruction held by entities of zone with a
// single walk over the zone's slots.
func (s *RendererSystem) ClearZone(zone mem.ZoneID, entities []ecs.EntityID) {
	var handles []render.Handle
	s.pool.EachInZone(zone, func(_ mem.Slot, r *component.Renderable) {
		if r.Handle != 0 {
			handles = append(handles, r.Handle)
		}
		*r = component.Renderable{}
	})
	if br, ok := s.canvas.(render.BulkReleaser); ok {
		br.ReleaseAll(handles)
	} else {
		for _, h := range handles {
			s.canvas.Release(h)
		}
	}
	for _, id := range entities {
		s.tree.Remove(uint64(id))
		s.onScreen.Remove(id)
	}
	if log := s.log(); log != nil {
		log.Debug("renderer zone cleared",
			zap.Uint16("zone", uint16(zone)),
			zap.Int("entities", len(entities)),
			zap.Int("instructions", len(handles)))
	}
}

func (s *RendererSystem) log() *zap.Logger {
	if w := s.World(); w != nil {
		return w.Log()
	}
	return nil
}

func (s *RendererSystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.RendererConfig](decode)
}

func (s *RendererSystem) ExportConfig(id ecs.EntityID) (any, bool) {
	r, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return component.RendererConfig{
		Texture: r.Texture,
		Model:   r.Model,
		Width:   r.Width,
		Height:  r.Height,
		Hidden:  r.Hidden,
	}, true
}

func (s *RendererSystem) View() coresys.View[component.Renderable] {
	return coresys.NewView(&s.Base, s.pool)
}

func (s *RendererSystem) Get(id ecs.EntityID) (*component.Renderable, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

// SetHidden keeps id out of the draw output without removing it.
func (s *RendererSystem) SetHidden(id ecs.EntityID, hidden bool) bool {
	r, ok := s.Get(id)
	if !ok {
		return false
	}
	r.Hidden = hidden
	return true
}

func (s *RendererSystem) SetViewport(r spatial.Rect) { s.viewport = r }
func (s *RendererSystem) Viewport() spatial.Rect     { return s.viewport }
func (s *RendererSystem) Stats() FrameStats          { return s.stats }

// OnScreen reports whether id holds a live canvas instruction.
func (s *RendererSystem) OnScreen(id ecs.EntityID) bool { return s.onScreen.Has(id) }

func (s *RendererSystem) Draw() {
	s.stats = FrameStats{}

	coresys.Each2(s.View(), s.positions.View(), func(id ecs.EntityID, r *component.Renderable, pos *component.Position) {
		box := spatial.RectAt(pos.X, pos.Y, r.Width, r.Height)
		if box != r.Box {
			r.Box = box
			s.tree.Move(uint64(id), box)
		}
	})
	s.tree.UpdateQuads()

	groups := make(map[[2]string][]render.Instance)
	clear(s.seen)
	for _, raw := range s.tree.BBHit(s.viewport) {
		id := ecs.EntityID(raw)
		r, ok := s.Get(id)
		if !ok || r.Hidden {
			continue
		}
		inst := s.instance(id, r)
		if r.Handle == 0 {
			r.Handle = s.canvas.Create(inst, r.Texture, r.Model)
			s.onScreen.Add(id)
			s.stats.Created++
		} else {
			s.canvas.Update(r.Handle, inst)
		}
		s.seen[id] = struct{}{}
		key := [2]string{r.Texture, r.Model}
		groups[key] = append(groups[key], inst)
	}
	s.stats.Visible = len(s.seen)

	for _, id := range s.onScreen.Copy() {
		if _, ok := s.seen[id]; ok {
			continue
		}
		if r, ok := s.Get(id); ok && r.Handle != 0 {
			s.canvas.Release(r.Handle)
			r.Handle = 0
		}
		s.onScreen.Remove(id)
		s.stats.Released++
	}

	batches := s.batch(groups)
	s.stats.Batches = len(batches)
	s.canvas.Submit(batches)
}

func (s *RendererSystem) instance(id ecs.EntityID, r *component.Renderable) render.Instance {
	x, y := r.Box.Center()
	inst := render.Instance{Entity: uint64(id), X: x, Y: y, Width: r.Width, Height: r.Height}
	if s.rotations != nil {
		if rot, ok := s.rotations.Get(id); ok {
			inst.Angle = rot.Angle
		}
	}
	return inst
}

// batch orders groups by texture then model and splits any group longer
// than the batch limit.
func (s *RendererSystem) batch(groups map[[2]string][]render.Instance) []render.Batch {
	keys := make([][2]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]string) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	var out []render.Batch
	for _, k := range keys {
		insts := groups[k]
		for len(insts) > 0 {
			n := min(len(insts), s.maxBatch)
			out = append(out, render.Batch{Texture: k[0], Model: k[1], Instances: insts[:n:n]})
			insts = insts[n:]
		}
	}
	return out
}
