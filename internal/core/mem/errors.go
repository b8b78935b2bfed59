package mem

import "errors"

var (
	// ErrOutOfMemory is returned when a pool has reached its MaxSlots ceiling.
	// Callers treat it as "spawn skipped", not as a fatal condition.
	ErrOutOfMemory = errors.New("pool out of memory")

	// ErrDoubleFree is returned by checked pools when a slot is freed twice.
	ErrDoubleFree = errors.New("slot freed twice")

	// ErrUseAfterFree is returned by Lookup for a slot that is not in use.
	ErrUseAfterFree = errors.New("slot used after free")

	ErrInvalidSlot = errors.New("slot out of range")
	ErrUnknownZone = errors.New("unknown zone")
	ErrZoneExists  = errors.New("zone already exists")
)
