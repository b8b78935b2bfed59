package data

import (
	"fmt"
	"os"
	"slices"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"gopkg.in/yaml.v3"
)

// Prefab is an entity template. Systems lists the component order;
// Components holds per-system options decoded by the owning system.
type Prefab struct {
	Name       string               `yaml:"name"`
	Zone       string               `yaml:"zone"`
	Systems    []string             `yaml:"systems"`
	Components map[string]yaml.Node `yaml:"components"`
}

// Decoders returns one decode function per configured system.
func (p *Prefab) Decoders() map[string]func(any) error {
	out := make(map[string]func(any) error, len(p.Components))
	for name, node := range p.Components {
		n := node
		out[name] = n.Decode
	}
	return out
}

// Spawn creates one entity from the prefab. zone overrides the prefab's
// zone when non-empty.
func (p *Prefab) Spawn(w *coresys.GameWorld, zone string) (ecs.EntityID, error) {
	if zone == "" {
		zone = p.Zone
	}
	id, err := w.Spawn(zone, p.Systems, p.Decoders())
	if err != nil {
		return ecs.NoEntity, fmt.Errorf("prefab %s: %w", p.Name, err)
	}
	return id, nil
}

// PrefabTable provides lookup of prefabs by name.
type PrefabTable struct {
	prefabs map[string]*Prefab
}

// LoadPrefabTable loads prefabs.yaml.
func LoadPrefabTable(path string) (*PrefabTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefab list: %w", err)
	}
	var entries []Prefab
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse prefab list: %w", err)
	}
	t := &PrefabTable{prefabs: make(map[string]*Prefab, len(entries))}
	for i := range entries {
		p := &entries[i]
		if p.Name == "" {
			return nil, fmt.Errorf("prefab list: entry %d has no name", i)
		}
		if _, dup := t.prefabs[p.Name]; dup {
			return nil, fmt.Errorf("prefab list: duplicate prefab %q", p.Name)
		}
		if len(p.Systems) == 0 {
			return nil, fmt.Errorf("prefab %s: no systems", p.Name)
		}
		for name := range p.Components {
			if !slices.Contains(p.Systems, name) {
				return nil, fmt.Errorf("prefab %s: options for %q which is not in systems", p.Name, name)
			}
		}
		t.prefabs[p.Name] = p
	}
	return t, nil
}

// Get returns the prefab called name, or nil if none.
func (t *PrefabTable) Get(name string) *Prefab {
	return t.prefabs[name]
}

// Names returns prefab names, sorted.
func (t *PrefabTable) Names() []string {
	names := make([]string, 0, len(t.prefabs))
	for n := range t.prefabs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Count returns the total number of prefabs loaded.
func (t *PrefabTable) Count() int {
	return len(t.prefabs)
}
