package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	ErrCorrupt  = errors.New("snapshot corrupt")
)

// Store keeps named world snapshots.
type Store interface {
	Load(ctx context.Context, name string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// Snapshot is the saved form of a gameworld: its current state and every
// entity as the system order plus per-system config that recreates it.
type Snapshot struct {
	Name     string         `yaml:"name" json:"name"`
	State    string         `yaml:"state" json:"state"`
	Frame    uint64         `yaml:"frame" json:"frame"`
	SavedAt  time.Time      `yaml:"saved_at" json:"saved_at"`
	Entities []EntityRecord `yaml:"entities" json:"entities"`
}

type EntityRecord struct {
	Zone       string                    `yaml:"zone,omitempty" json:"zone,omitempty"`
	Systems    []string                  `yaml:"systems" json:"systems"`
	Components map[string]map[string]any `yaml:"components,omitempty" json:"components,omitempty"`
}

// toFields flattens a config struct into its yaml field map.
func toFields(cfg any) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Capture records every live entity of w. Systems that cannot export
// their component are listed without options and come back with defaults.
func Capture(w *coresys.GameWorld, name string) (*Snapshot, error) {
	snap := &Snapshot{
		Name:    name,
		State:   w.State(),
		Frame:   w.Frame(),
		SavedAt: time.Now().UTC(),
	}
	for _, id := range w.Entities() {
		if w.PendingRemoval(id) {
			continue
		}
		rec, err := captureEntity(w, id)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", id, err)
		}
		snap.Entities = append(snap.Entities, rec)
	}
	return snap, nil
}

func captureEntity(w *coresys.GameWorld, id ecs.EntityID) (EntityRecord, error) {
	rec := EntityRecord{Systems: w.Components(id)}
	if zone, ok := w.Table().Zone(id); ok && zone != 0 {
		rec.Zone = w.Zones().Name(zone)
	}
	for _, name := range rec.Systems {
		sys, _ := w.System(name)
		ex, ok := sys.(coresys.ConfigExporter)
		if !ok {
			continue
		}
		cfg, ok := ex.ExportConfig(id)
		if !ok {
			continue
		}
		fields, err := toFields(cfg)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", name, err)
		}
		if rec.Components == nil {
			rec.Components = make(map[string]map[string]any, len(rec.Systems))
		}
		rec.Components[name] = fields
	}
	return rec, nil
}

// Restore spawns every entity of snap into w, creating missing zones, and
// switches to the saved state if w knows it. Returns the number spawned.
func Restore(w *coresys.GameWorld, snap *Snapshot) (int, error) {
	n := 0
	for i, rec := range snap.Entities {
		if rec.Zone != "" {
			if _, ok := w.Zones().Lookup(rec.Zone); !ok {
				if _, err := w.Zones().Create(rec.Zone, 0); err != nil {
					return n, err
				}
			}
		}
		decoders := make(map[string]func(any) error, len(rec.Components))
		for name, fields := range rec.Components {
			fields := fields
			decoders[name] = func(v any) error {
				raw, err := yaml.Marshal(fields)
				if err != nil {
					return err
				}
				return yaml.Unmarshal(raw, v)
			}
		}
		if _, err := w.Spawn(rec.Zone, rec.Systems, decoders); err != nil {
			return n, fmt.Errorf("restore entity %d: %w", i, err)
		}
		n++
	}
	if snap.State != "" && snap.State != w.State() {
		if err := w.SetState(snap.State); err != nil {
			return n, fmt.Errorf("restore state: %w", err)
		}
	}
	return n, nil
}
