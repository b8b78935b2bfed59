package persist

import (
	"context"
	"time"

	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"go.uber.org/zap"
)

const AutosaveName = "autosave"

// AutosaveSystem periodically captures the gameworld into a store. Entities
// scheduled for removal this frame are left out of the snapshot. A nil
// store disables it.
// Phase 5 (Cleanup).
type AutosaveSystem struct {
	coresys.Base
	store    Store
	name     string
	interval time.Duration
	elapsed  time.Duration
	saves    int
	timeout  time.Duration
}

func NewAutosaveSystem(store Store, snapshot string, interval time.Duration) *AutosaveSystem {
	return &AutosaveSystem{
		Base:     coresys.NewBase(AutosaveName, coresys.PhaseCleanup),
		store:    store,
		name:     snapshot,
		interval: interval,
		timeout:  5 * time.Second,
	}
}

func (s *AutosaveSystem) Update(dt time.Duration) {
	if s.store == nil || s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	if err := s.SaveNow(); err != nil {
		s.World().Log().Error("autosave failed", zap.String("snapshot", s.name), zap.Error(err))
	}
}

// SaveNow captures and stores a snapshot immediately. Called for graceful
// shutdown as well as from Update.
func (s *AutosaveSystem) SaveNow() error {
	if s.store == nil {
		return nil
	}
	snap, err := Capture(s.World(), s.name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	s.saves++
	s.World().Log().Info("snapshot saved",
		zap.String("snapshot", s.name),
		zap.Int("entities", len(snap.Entities)),
		zap.Uint64("frame", snap.Frame))
	return nil
}

// Saves is the number of snapshots written so far.
func (s *AutosaveSystem) Saves() int { return s.saves }
