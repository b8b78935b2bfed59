package mem

import (
	"fmt"
	"math"
)

// Slot is a flattened index into a pool: block*BlockSize + offset.
type Slot uint32

// InvalidSlot is never handed out by Alloc.
const InvalidSlot Slot = math.MaxUint32

// DefaultBlockSize is used when Options.BlockSize is zero.
const DefaultBlockSize = 64

// Options configures a pool at creation time.
//
// MaxSlots caps the slots backed by blocks across all zones, not the live
// count. A zone grows a whole block at a time and keeps its blocks, so
// with several zones Alloc can report ErrOutOfMemory while other zones
// still hold free slots: BlockSize 64 and MaxSlots 100 give zone 0 a
// 64-slot block and zone 1 the last 36, leaving nothing for zone 2.
// Size MaxSlots as zones × BlockSize when every zone must get a block.
type Options struct {
	BlockSize int  // slots per block, grown one block at a time
	MaxSlots  int  // ceiling on backed slots; 0 means unbounded
	Checked   bool // report double frees instead of ignoring them
}

// Allocator is the type-erased view of a Pool used by the zone layer and
// the gameworld, which never touch component memory directly.
type Allocator interface {
	Name() string
	Alloc(zone ZoneID) (Slot, error)
	Free(s Slot) error
	ClearZone(zone ZoneID) int
	ReserveZone(zone ZoneID, hint int)
	ZoneOf(s Slot) ZoneID
	InUse(s Slot) bool
	Live() int
	Capacity() int
}

// Pool is a block allocator for fixed-layout records of type T.
//
// Blocks are allocated once and never moved, so a Slot and the pointer
// returned by At stay valid until the slot is freed. Every block belongs
// to exactly one zone; a zone only ever allocates from its own blocks.
// Not safe for concurrent use.
type Pool[T any] struct {
	name      string
	blockSize int
	maxSlots  int
	checked   bool

	blocks    [][]T
	blockZone []ZoneID

	free      [][]Slot // per zone, LIFO
	members   [][]Slot // per zone, live slots
	memberPos []int32  // slot -> index in members[zone], -1 when free
	gen       []uint32 // bumped on every free

	live int
}

// NewPool creates an empty pool. No memory is reserved until the first Alloc.
func NewPool[T any](name string, opts Options) (*Pool[T], error) {
	if opts.BlockSize < 0 || opts.MaxSlots < 0 {
		return nil, fmt.Errorf("pool %s: negative size in options %+v", name, opts)
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	return &Pool[T]{
		name:      name,
		blockSize: opts.BlockSize,
		maxSlots:  opts.MaxSlots,
		checked:   opts.Checked,
	}, nil
}

func (p *Pool[T]) Name() string   { return p.name }
func (p *Pool[T]) Live() int      { return p.live }
func (p *Pool[T]) Blocks() int    { return len(p.blocks) }
func (p *Pool[T]) BlockSize() int { return p.blockSize }
func (p *Pool[T]) Checked() bool  { return p.checked }

// Capacity is the number of slots backed by allocated blocks.
func (p *Pool[T]) Capacity() int { return len(p.memberPos) }

// Alloc returns a free slot belonging to zone, growing the zone by one
// block when its free list is empty.
func (p *Pool[T]) Alloc(zone ZoneID) (Slot, error) {
	p.ensureZone(zone)
	if len(p.free[zone]) == 0 {
		if err := p.grow(zone); err != nil {
			return InvalidSlot, err
		}
	}
	fl := p.free[zone]
	s := fl[len(fl)-1]
	p.free[zone] = fl[:len(fl)-1]

	p.memberPos[s] = int32(len(p.members[zone]))
	p.members[zone] = append(p.members[zone], s)
	p.live++
	return s, nil
}

func (p *Pool[T]) grow(zone ZoneID) error {
	base := len(p.memberPos)
	n := p.blockSize
	if p.maxSlots > 0 {
		if base >= p.maxSlots {
			return fmt.Errorf("%w: %s at %d slots", ErrOutOfMemory, p.name, p.maxSlots)
		}
		if base+n > p.maxSlots {
			n = p.maxSlots - base
		}
	}
	// A short final block keeps Capacity equal to the ceiling. Offsets are
	// computed with blockSize, so the short block must be the last one.
	p.blocks = append(p.blocks, make([]T, n))
	p.blockZone = append(p.blockZone, zone)
	for i := 0; i < n; i++ {
		p.memberPos = append(p.memberPos, -1)
		p.gen = append(p.gen, 0)
	}

	fl := p.free[zone]
	for i := n - 1; i >= 0; i-- {
		fl = append(fl, Slot(base+i))
	}
	p.free[zone] = fl
	return nil
}

// Free releases s back to its zone. Component memory is not cleared;
// the owning system re-initializes it on the next allocation.
func (p *Pool[T]) Free(s Slot) error {
	if int(s) >= len(p.memberPos) {
		return fmt.Errorf("%w: %s slot %d", ErrInvalidSlot, p.name, s)
	}
	pos := p.memberPos[s]
	if pos < 0 {
		if p.checked {
			return fmt.Errorf("%w: %s slot %d", ErrDoubleFree, p.name, s)
		}
		return nil
	}
	zone := p.blockZone[int(s)/p.blockSize]

	m := p.members[zone]
	last := m[len(m)-1]
	m[pos] = last
	p.memberPos[last] = pos
	p.members[zone] = m[:len(m)-1]

	p.release(zone, s)
	return nil
}

func (p *Pool[T]) release(zone ZoneID, s Slot) {
	p.memberPos[s] = -1
	p.gen[s]++
	p.free[zone] = append(p.free[zone], s)
	p.live--
}

// ClearZone frees every live slot of zone. It only visits that zone's
// members. Returns the number of slots released.
func (p *Pool[T]) ClearZone(zone ZoneID) int {
	if int(zone) >= len(p.members) {
		return 0
	}
	m := p.members[zone]
	for _, s := range m {
		p.release(zone, s)
	}
	p.members[zone] = m[:0]
	return len(m)
}

// ReserveZone pre-sizes the bookkeeping for zone.
func (p *Pool[T]) ReserveZone(zone ZoneID, hint int) {
	p.ensureZone(zone)
	if hint > cap(p.members[zone]) {
		m := make([]Slot, len(p.members[zone]), hint)
		copy(m, p.members[zone])
		p.members[zone] = m
	}
}

func (p *Pool[T]) ensureZone(zone ZoneID) {
	for int(zone) >= len(p.free) {
		p.free = append(p.free, nil)
		p.members = append(p.members, nil)
	}
}

// At returns the record stored at s without checking that s is in use.
func (p *Pool[T]) At(s Slot) *T {
	return &p.blocks[int(s)/p.blockSize][int(s)%p.blockSize]
}

// Lookup is the checked form of At.
func (p *Pool[T]) Lookup(s Slot) (*T, error) {
	if int(s) >= len(p.memberPos) {
		return nil, fmt.Errorf("%w: %s slot %d", ErrInvalidSlot, p.name, s)
	}
	if p.memberPos[s] < 0 {
		return nil, fmt.Errorf("%w: %s slot %d", ErrUseAfterFree, p.name, s)
	}
	return p.At(s), nil
}

func (p *Pool[T]) InUse(s Slot) bool {
	return int(s) < len(p.memberPos) && p.memberPos[s] >= 0
}

// Generation counts how many times s has been freed.
func (p *Pool[T]) Generation(s Slot) uint32 {
	if int(s) >= len(p.gen) {
		return 0
	}
	return p.gen[s]
}

// Locate splits s into its zone, block index and offset within the block.
func (p *Pool[T]) Locate(s Slot) (zone ZoneID, block, offset int) {
	block = int(s) / p.blockSize
	return p.blockZone[block], block, int(s) % p.blockSize
}

func (p *Pool[T]) ZoneOf(s Slot) ZoneID {
	return p.blockZone[int(s)/p.blockSize]
}

// Each calls fn for every live slot, zone by zone.
func (p *Pool[T]) Each(fn func(Slot, *T)) {
	for z := range p.members {
		p.EachInZone(ZoneID(z), fn)
	}
}

// EachInZone calls fn for every live slot of zone. fn must not free slots.
func (p *Pool[T]) EachInZone(zone ZoneID, fn func(Slot, *T)) {
	if int(zone) >= len(p.members) {
		return
	}
	for _, s := range p.members[zone] {
		fn(s, p.At(s))
	}
}

// ZoneLive is the number of live slots in zone.
func (p *Pool[T]) ZoneLive(zone ZoneID) int {
	if int(zone) >= len(p.members) {
		return 0
	}
	return len(p.members[zone])
}
