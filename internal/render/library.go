package render

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// Texture is a rectangular region of an image file, in pixels.
type Texture struct {
	Key    string
	Source string
	X, Y   int
	W, H   int
	PageW  int
	PageH  int
}

// UV returns the normalized texture coordinates (u0, v0, u1, v1).
func (t Texture) UV() [4]float32 {
	if t.PageW == 0 || t.PageH == 0 {
		return [4]float32{0, 0, 1, 1}
	}
	pw, ph := float32(t.PageW), float32(t.PageH)
	return [4]float32{
		float32(t.X) / pw,
		float32(t.Y) / ph,
		float32(t.X+t.W) / pw,
		float32(t.Y+t.H) / ph,
	}
}

type Vertex struct {
	X, Y float32
	U, V float32
}

// Model is an indexed triangle mesh, optionally bound to a texture.
type Model struct {
	Key      string
	Texture  string
	Vertices []Vertex
	Indices  []uint16
}

// Library holds textures and models by key. Keys are stable: loading the
// same image or rectangle twice returns the same key.
type Library struct {
	fsys     fs.FS
	textures map[string]Texture
	models   map[string]Model
}

// NewLibrary reads assets from fsys (os.DirFS(assetDir) in the host).
func NewLibrary(fsys fs.FS) *Library {
	return &Library{
		fsys:     fsys,
		textures: make(map[string]Texture, 64),
		models:   make(map[string]Model, 64),
	}
}

func (l *Library) Texture(key string) (Texture, bool) {
	t, ok := l.textures[key]
	return t, ok
}

func (l *Library) Model(key string) (Model, bool) {
	m, ok := l.models[key]
	return m, ok
}

func (l *Library) HasTexture(key string) bool {
	_, ok := l.textures[key]
	return ok
}

func (l *Library) HasModel(key string) bool {
	_, ok := l.models[key]
	return ok
}

func (l *Library) TextureCount() int { return len(l.textures) }
func (l *Library) ModelCount() int   { return len(l.models) }

func (l *Library) pageSize(name string) (int, int, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", name, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image %s: %w", name, err)
	}
	return cfg.Width, cfg.Height, nil
}

// checkTexture fails when t.Key is already taken by a different texture.
func (l *Library) checkTexture(t Texture) error {
	if prev, ok := l.textures[t.Key]; ok && prev != t {
		return fmt.Errorf("texture %q already loaded from %s", t.Key, prev.Source)
	}
	return nil
}

func (l *Library) addTexture(t Texture) error {
	if err := l.checkTexture(t); err != nil {
		return err
	}
	l.textures[t.Key] = t
	return nil
}

// LoadImage registers a whole image as one texture keyed by its base
// name without extension ("sprites/ship.png" -> "ship").
func (l *Library) LoadImage(name string) (string, error) {
	w, h, err := l.pageSize(name)
	if err != nil {
		return "", err
	}
	key := strings.TrimSuffix(path.Base(name), path.Ext(name))
	t := Texture{Key: key, Source: name, W: w, H: h, PageW: w, PageH: h}
	if err := l.addTexture(t); err != nil {
		return "", err
	}
	return key, nil
}

// LoadAtlas reads a JSON atlas of the form
//
//	{"page.png": {"region": [x, y, w, h], ...}, ...}
//
// where page paths are relative to the atlas file. Every region becomes
// a texture keyed by its region name. Returns the keys, sorted.
func (l *Library) LoadAtlas(name string) ([]string, error) {
	raw, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read atlas %s: %w", name, err)
	}
	var pages map[string]map[string][4]int
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("parse atlas %s: %w", name, err)
	}
	dir := path.Dir(name)

	// Every region is checked before any is registered, so a bad atlas
	// leaves the library untouched.
	staged := make(map[string]Texture)
	for page, regions := range pages {
		src := path.Join(dir, page)
		pw, ph, err := l.pageSize(src)
		if err != nil {
			return nil, fmt.Errorf("atlas %s: %w", name, err)
		}
		for region, r := range regions {
			if r[2] <= 0 || r[3] <= 0 || r[0]+r[2] > pw || r[1]+r[3] > ph {
				return nil, fmt.Errorf("atlas %s: region %q %v outside %dx%d page", name, region, r, pw, ph)
			}
			t := Texture{Key: region, Source: src, X: r[0], Y: r[1], W: r[2], H: r[3], PageW: pw, PageH: ph}
			if prev, ok := staged[region]; ok {
				return nil, fmt.Errorf("atlas %s: region %q on both %s and %s", name, region, prev.Source, src)
			}
			if err := l.checkTexture(t); err != nil {
				return nil, fmt.Errorf("atlas %s: %w", name, err)
			}
			staged[region] = t
		}
	}
	keys := make([]string, 0, len(staged))
	for key, t := range staged {
		l.textures[key] = t
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// LoadTexturedRectangle builds a w×h quad centred on the origin, mapped
// to texture. The key is derived from the arguments.
func (l *Library) LoadTexturedRectangle(texture string, w, h float64) (string, error) {
	t, ok := l.textures[texture]
	if !ok {
		return "", fmt.Errorf("textured rectangle: unknown texture %q", texture)
	}
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("textured rectangle %s: size %gx%g", texture, w, h)
	}
	key := fmt.Sprintf("%s_%gx%g", texture, w, h)
	if _, ok := l.models[key]; ok {
		return key, nil
	}
	uv := t.UV()
	hw, hh := float32(w/2), float32(h/2)
	l.models[key] = Model{
		Key:     key,
		Texture: texture,
		Vertices: []Vertex{
			{X: -hw, Y: -hh, U: uv[0], V: uv[1]},
			{X: hw, Y: -hh, U: uv[2], V: uv[1]},
			{X: hw, Y: hh, U: uv[2], V: uv[3]},
			{X: -hw, Y: hh, U: uv[0], V: uv[3]},
		},
		Indices: []uint16{0, 1, 2, 2, 3, 0},
	}
	return key, nil
}

// LoadModel registers an arbitrary mesh under m.Key.
func (l *Library) LoadModel(m Model) (string, error) {
	if m.Key == "" {
		return "", fmt.Errorf("load model: empty key")
	}
	if _, ok := l.models[m.Key]; ok {
		return "", fmt.Errorf("load model: %q already loaded", m.Key)
	}
	if m.Texture != "" && !l.HasTexture(m.Texture) {
		return "", fmt.Errorf("load model %s: unknown texture %q", m.Key, m.Texture)
	}
	if len(m.Indices)%3 != 0 {
		return "", fmt.Errorf("load model %s: %d indices is not a triangle list", m.Key, len(m.Indices))
	}
	for _, i := range m.Indices {
		if int(i) >= len(m.Vertices) {
			return "", fmt.Errorf("load model %s: index %d out of %d vertices", m.Key, i, len(m.Vertices))
		}
	}
	m.Vertices = slices.Clone(m.Vertices)
	m.Indices = slices.Clone(m.Indices)
	l.models[m.Key] = m
	return m.Key, nil
}
