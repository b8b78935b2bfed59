package data

import (
	"fmt"
	"os"

	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"gopkg.in/yaml.v3"
)

// StateTable is a set of game-state recipes plus the state to enter first.
type StateTable struct {
	Initial string          `yaml:"initial"`
	States  []coresys.State `yaml:"states"`
}

// LoadStateTable loads states.yaml.
func LoadStateTable(path string) (*StateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state table: %w", err)
	}
	var t StateTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse state table: %w", err)
	}
	seen := make(map[string]bool, len(t.States))
	for _, s := range t.States {
		if seen[s.Name] {
			return nil, fmt.Errorf("state table: duplicate state %q", s.Name)
		}
		seen[s.Name] = true
	}
	if t.Initial != "" && !seen[t.Initial] {
		return nil, fmt.Errorf("state table: initial state %q not defined", t.Initial)
	}
	return &t, nil
}

// Install adds every state to w and switches to the initial one.
func (t *StateTable) Install(w *coresys.GameWorld) error {
	for _, s := range t.States {
		if err := w.AddState(s); err != nil {
			return err
		}
	}
	if t.Initial == "" {
		return nil
	}
	return w.SetState(t.Initial)
}

// Count returns the number of states loaded.
func (t *StateTable) Count() int {
	return len(t.States)
}
