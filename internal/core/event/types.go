package event

import (
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
)

// Gameworld lifecycle events.

type EntityCreated struct {
	Entity ecs.EntityID
	Zone   mem.ZoneID
}

type EntityRemoved struct {
	Entity ecs.EntityID
}

type StateChanged struct {
	From   string
	To     string
	Screen string
}

type ZoneCleared struct {
	Zone     mem.ZoneID
	Entities int
	Slots    int
}

// SpawnSkipped is emitted when InitEntity fails with ErrOutOfMemory.
type SpawnSkipped struct {
	Systems []string
	Reason  string
}
