// Package spatial answers "which items intersect this rectangle" queries
// for the renderer and the physics broadphase.
package spatial

import "slices"

// Rect is an axis-aligned box. Boxes touching on an edge overlap.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// RectAt builds the box of size w×h centred on (x, y).
func RectAt(x, y, w, h float64) Rect {
	return Rect{MinX: x - w/2, MinY: y - h/2, MaxX: x + w/2, MaxY: y + h/2}
}

func (r Rect) Overlaps(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.MinX >= r.MinX && o.MaxX <= r.MaxX && o.MinY >= r.MinY && o.MaxY <= r.MaxY
}

func (r Rect) Center() (float64, float64) {
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2
}

// Item is an id with its bounding box.
type Item struct {
	ID  uint64
	Box Rect
}

type node struct {
	bounds   Rect
	depth    int
	items    map[uint64]Rect
	children [4]*node // created on demand
}

func newNode(bounds Rect, depth int) *node {
	return &node{bounds: bounds, depth: depth, items: make(map[uint64]Rect)}
}

// quadrant returns the child bounds for q (0 = SW, 1 = SE, 2 = NW, 3 = NE).
func (n *node) quadrant(q int) Rect {
	cx, cy := n.bounds.Center()
	b := n.bounds
	switch q {
	case 0:
		return Rect{b.MinX, b.MinY, cx, cy}
	case 1:
		return Rect{cx, b.MinY, b.MaxX, cy}
	case 2:
		return Rect{b.MinX, cy, cx, b.MaxY}
	default:
		return Rect{cx, cy, b.MaxX, b.MaxY}
	}
}

// fit returns the quadrant that fully contains box, or -1 when box
// straddles the centre (or n is at the depth limit).
func (n *node) fit(box Rect, maxDepth int) int {
	if n.depth >= maxDepth {
		return -1
	}
	for q := 0; q < 4; q++ {
		if n.quadrant(q).Contains(box) {
			return q
		}
	}
	return -1
}

// QuadTree is a depth-bounded region quad-tree. An item lives at the
// deepest node whose quadrant fully contains it, so an item straddling a
// node's centre stays at that node and is never stored twice.
// Accessed only from the game loop goroutine, no locks.
type QuadTree struct {
	root     *node
	maxDepth int
	where    map[uint64]*node
	dirty    map[uint64]struct{}
	visits   int // nodes visited by the last BBHit
}

// New builds a tree over bounds and partitions items into it. Items
// outside bounds are kept at the root.
func New(bounds Rect, maxDepth int, items ...Item) *QuadTree {
	if maxDepth < 0 {
		maxDepth = 0
	}
	t := &QuadTree{
		root:     newNode(bounds, 0),
		maxDepth: maxDepth,
		where:    make(map[uint64]*node, len(items)),
		dirty:    make(map[uint64]struct{}),
	}
	t.AddItems(items...)
	return t
}

func (t *QuadTree) Len() int      { return len(t.where) }
func (t *QuadTree) MaxDepth() int { return t.maxDepth }
func (t *QuadTree) Bounds() Rect  { return t.root.bounds }

// AddItems inserts items, descending from the root. Adding an id that is
// already present moves it.
func (t *QuadTree) AddItems(items ...Item) {
	for _, it := range items {
		if n, ok := t.where[it.ID]; ok {
			delete(n.items, it.ID)
		}
		t.insert(t.root, it)
	}
}

func (t *QuadTree) insert(n *node, it Item) {
	for {
		q := n.fit(it.Box, t.maxDepth)
		if q < 0 {
			break
		}
		if n.children[q] == nil {
			n.children[q] = newNode(n.quadrant(q), n.depth+1)
		}
		n = n.children[q]
	}
	n.items[it.ID] = it.Box
	t.where[it.ID] = n
}

// Remove deletes id. Returns false if it was not present.
func (t *QuadTree) Remove(id uint64) bool {
	n, ok := t.where[id]
	if !ok {
		return false
	}
	delete(n.items, id)
	delete(t.where, id)
	delete(t.dirty, id)
	return true
}

// Box returns the stored box of id.
func (t *QuadTree) Box(id uint64) (Rect, bool) {
	n, ok := t.where[id]
	if !ok {
		return Rect{}, false
	}
	return n.items[id], true
}

// Move records a new box for id. The tree is not restructured until
// UpdateQuads; queries in between see the new box at the old node.
func (t *QuadTree) Move(id uint64, box Rect) bool {
	n, ok := t.where[id]
	if !ok {
		return false
	}
	n.items[id] = box
	t.dirty[id] = struct{}{}
	return true
}

// misplaced reports whether box no longer belongs at n: it left n's
// bounds, or it now fits a child quadrant.
func (t *QuadTree) misplaced(n *node, box Rect) bool {
	if n != t.root && !n.bounds.Contains(box) {
		return true
	}
	return n.fit(box, t.maxDepth) >= 0
}

// UpdateQuads re-homes items moved since the last call. Items that still
// belong at their node are left in place. Returns the number re-inserted.
func (t *QuadTree) UpdateQuads() int {
	moved := 0
	for id := range t.dirty {
		n := t.where[id]
		box := n.items[id]
		if t.misplaced(n, box) {
			delete(n.items, id)
			t.insert(t.root, Item{ID: id, Box: box})
			moved++
		}
	}
	clear(t.dirty)
	return moved
}

// CheckItems walks every node and re-homes any misplaced item, including
// ones whose boxes were changed without Move. Returns the number re-inserted.
func (t *QuadTree) CheckItems() int {
	var evicted []Item
	var walk func(n *node)
	walk = func(n *node) {
		for id, box := range n.items {
			if t.misplaced(n, box) {
				delete(n.items, id)
				evicted = append(evicted, Item{ID: id, Box: box})
			}
		}
		for _, c := range n.children {
			if c != nil {
				walk(c)
			}
		}
	}
	walk(t.root)
	clear(t.dirty)
	t.AddItems(evicted...)
	return len(evicted)
}

// BBHit returns the ids of items whose boxes overlap region, sorted.
// Child quadrants that do not overlap region are skipped.
func (t *QuadTree) BBHit(region Rect) []uint64 {
	var out []uint64
	t.visits = 0
	t.hit(t.root, region, func(id uint64) { out = append(out, id) })
	slices.Sort(out)
	return out
}

// Query calls fn for every item overlapping region.
func (t *QuadTree) Query(region Rect, fn func(id uint64)) {
	t.visits = 0
	t.hit(t.root, region, fn)
}

func (t *QuadTree) hit(n *node, region Rect, fn func(uint64)) {
	t.visits++
	for id, box := range n.items {
		if box.Overlaps(region) {
			fn(id)
		}
	}
	for q, c := range n.children {
		if c == nil {
			continue
		}
		if n.quadrant(q).Overlaps(region) {
			t.hit(c, region, fn)
		}
	}
}

// Visits is the number of nodes the last query touched.
func (t *QuadTree) Visits() int { return t.visits }
