package ecs

import (
	"fmt"

	"github.com/l1jgo/gameworld/internal/core/mem"
)

// Attachment records that an entity holds a component slot in a system.
type Attachment struct {
	System SystemID
	Slot   mem.Slot
}

type record struct {
	zone        mem.ZoneID
	attachments []Attachment // in attach order
}

// Table owns the set of live entities and their component attachments.
// It is indexed by EntityID.Index(); a record is only meaningful while the
// id's generation is alive in the pool.
type Table struct {
	pool    *EntityPool
	records []record
	zones   []*EntitySet
}

func NewTable() *Table {
	return &Table{
		pool:    NewEntityPool(),
		records: make([]record, 0, 1024),
	}
}

// Create allocates a fresh entity in zone.
func (t *Table) Create(zone mem.ZoneID) EntityID {
	id := t.pool.Create()
	idx := int(id.Index())
	for idx >= len(t.records) {
		t.records = append(t.records, record{})
	}
	rec := &t.records[idx]
	rec.zone = zone
	rec.attachments = rec.attachments[:0]
	t.zoneSet(zone).Add(id)
	return id
}

func (t *Table) zoneSet(zone mem.ZoneID) *EntitySet {
	for int(zone) >= len(t.zones) {
		t.zones = append(t.zones, NewEntitySet(64))
	}
	return t.zones[zone]
}

func (t *Table) Alive(id EntityID) bool { return t.pool.Alive(id) }
func (t *Table) Len() int               { return t.pool.Len() }

func (t *Table) record(id EntityID) (*record, error) {
	if !t.pool.Alive(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return &t.records[id.Index()], nil
}

// Attach records slot for sys. Attaching the same system twice is an error.
func (t *Table) Attach(id EntityID, sys SystemID, slot mem.Slot) error {
	rec, err := t.record(id)
	if err != nil {
		return err
	}
	for _, a := range rec.attachments {
		if a.System == sys {
			return fmt.Errorf("entity %s already attached to system %d", id, sys)
		}
	}
	rec.attachments = append(rec.attachments, Attachment{System: sys, Slot: slot})
	return nil
}

// Detach forgets the attachment for sys and returns its slot.
func (t *Table) Detach(id EntityID, sys SystemID) (mem.Slot, bool) {
	rec, err := t.record(id)
	if err != nil {
		return mem.InvalidSlot, false
	}
	for i, a := range rec.attachments {
		if a.System == sys {
			rec.attachments = append(rec.attachments[:i], rec.attachments[i+1:]...)
			return a.Slot, true
		}
	}
	return mem.InvalidSlot, false
}

// Slot returns the component slot id holds in sys.
func (t *Table) Slot(id EntityID, sys SystemID) (mem.Slot, bool) {
	if !t.pool.Alive(id) {
		return mem.InvalidSlot, false
	}
	for _, a := range t.records[id.Index()].attachments {
		if a.System == sys {
			return a.Slot, true
		}
	}
	return mem.InvalidSlot, false
}

// Attachments returns a copy of id's attachments in attach order.
func (t *Table) Attachments(id EntityID) []Attachment {
	if !t.pool.Alive(id) {
		return nil
	}
	atts := t.records[id.Index()].attachments
	out := make([]Attachment, len(atts))
	copy(out, atts)
	return out
}

func (t *Table) Zone(id EntityID) (mem.ZoneID, bool) {
	if !t.pool.Alive(id) {
		return 0, false
	}
	return t.records[id.Index()].zone, true
}

// EntitiesInZone returns a snapshot of the live entities created in zone.
func (t *Table) EntitiesInZone(zone mem.ZoneID) []EntityID {
	if int(zone) >= len(t.zones) {
		return nil
	}
	return t.zones[zone].Copy()
}

// Destroy retires id. Attachments must already have been released.
func (t *Table) Destroy(id EntityID) error {
	rec, err := t.record(id)
	if err != nil {
		return err
	}
	if len(rec.attachments) != 0 {
		return fmt.Errorf("destroy entity %s: %d components still attached", id, len(rec.attachments))
	}
	t.zoneSet(rec.zone).Remove(id)
	t.pool.Destroy(id)
	return nil
}

// DetachAll forgets every attachment of id and returns them in attach order.
func (t *Table) DetachAll(id EntityID) []Attachment {
	rec, err := t.record(id)
	if err != nil {
		return nil
	}
	out := make([]Attachment, len(rec.attachments))
	copy(out, rec.attachments)
	rec.attachments = rec.attachments[:0]
	return out
}
