package mem

import "fmt"

// ZoneID identifies a partition of every registered pool.
type ZoneID uint16

// DefaultZone is created by NewZones and used when no zone is named.
const (
	DefaultZone     ZoneID = 0
	DefaultZoneName        = "general"
)

type zoneInfo struct {
	name string
	hint int
}

// Zones groups allocations so a whole region of the gameworld (a level,
// a room) can be released in one pass over its own members.
type Zones struct {
	zones  []zoneInfo
	byName map[string]ZoneID
	pools  []Allocator
}

func NewZones() *Zones {
	z := &Zones{byName: make(map[string]ZoneID, 8)}
	z.zones = append(z.zones, zoneInfo{name: DefaultZoneName})
	z.byName[DefaultZoneName] = DefaultZone
	return z
}

// Create adds a named zone. capacityHint pre-sizes the zone's bookkeeping
// in every registered pool; it is not a ceiling.
func (z *Zones) Create(name string, capacityHint int) (ZoneID, error) {
	if _, ok := z.byName[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrZoneExists, name)
	}
	if len(z.zones) > int(^ZoneID(0)) {
		return 0, fmt.Errorf("create zone %s: zone table full", name)
	}
	id := ZoneID(len(z.zones))
	z.zones = append(z.zones, zoneInfo{name: name, hint: capacityHint})
	z.byName[name] = id
	if capacityHint > 0 {
		for _, p := range z.pools {
			p.ReserveZone(id, capacityHint)
		}
	}
	return id, nil
}

// Lookup resolves a zone name.
func (z *Zones) Lookup(name string) (ZoneID, bool) {
	id, ok := z.byName[name]
	return id, ok
}

func (z *Zones) Name(id ZoneID) string {
	if !z.Valid(id) {
		return ""
	}
	return z.zones[id].name
}

func (z *Zones) Valid(id ZoneID) bool { return int(id) < len(z.zones) }
func (z *Zones) Len() int             { return len(z.zones) }

// Register attaches a pool so Clear reaches it. Hints of zones created
// earlier are applied immediately.
func (z *Zones) Register(p Allocator) {
	z.pools = append(z.pools, p)
	for id, info := range z.zones {
		if info.hint > 0 {
			p.ReserveZone(ZoneID(id), info.hint)
		}
	}
}

// Unregister detaches p. Its slots are no longer reached by Clear.
func (z *Zones) Unregister(p Allocator) {
	for i, q := range z.pools {
		if q == p {
			z.pools = append(z.pools[:i], z.pools[i+1:]...)
			return
		}
	}
}

// Alloc allocates a slot of p in zone.
func (z *Zones) Alloc(zone ZoneID, p Allocator) (Slot, error) {
	if !z.Valid(zone) {
		return InvalidSlot, fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	return p.Alloc(zone)
}

// Clear releases every live slot of zone in every registered pool.
// The caller must not be iterating the zone's entities.
func (z *Zones) Clear(zone ZoneID) (int, error) {
	if !z.Valid(zone) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	n := 0
	for _, p := range z.pools {
		n += p.ClearZone(zone)
	}
	return n, nil
}
