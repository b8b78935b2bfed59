package system

import (
	"fmt"
	"slices"
)

// State is a declarative recipe applied when the gameworld switches to it.
//
// Removed systems lose every component they hold and stop accepting new
// entities. Added systems accept entities again. After the switch exactly
// the Unpaused systems receive Update and Draw; every other system is
// paused (data kept) or removed.
type State struct {
	Name     string   `yaml:"name"`
	Added    []string `yaml:"systems_added"`
	Removed  []string `yaml:"systems_removed"`
	Paused   []string `yaml:"systems_paused"`
	Unpaused []string `yaml:"systems_unpaused"`
	Screen   string   `yaml:"screen"`
}

func (s State) clone() State {
	s.Added = slices.Clone(s.Added)
	s.Removed = slices.Clone(s.Removed)
	s.Paused = slices.Clone(s.Paused)
	s.Unpaused = slices.Clone(s.Unpaused)
	return s
}

// validate checks that the recipe only names registered systems and does
// not contradict itself.
func (s State) validate(known func(string) bool) error {
	if s.Name == "" {
		return fmt.Errorf("%w: state without a name", ErrInvalidStateTransition)
	}
	lists := []struct {
		field string
		names []string
	}{
		{"systems_added", s.Added},
		{"systems_removed", s.Removed},
		{"systems_paused", s.Paused},
		{"systems_unpaused", s.Unpaused},
	}
	for _, l := range lists {
		for _, name := range l.names {
			if !known(name) {
				return fmt.Errorf("%w: state %s %s names unregistered system %q",
					ErrInvalidStateTransition, s.Name, l.field, name)
			}
		}
	}
	for _, name := range s.Removed {
		if slices.Contains(s.Added, name) || slices.Contains(s.Unpaused, name) {
			return fmt.Errorf("%w: state %s both removes and enables %q",
				ErrInvalidStateTransition, s.Name, name)
		}
	}
	for _, name := range s.Paused {
		if slices.Contains(s.Unpaused, name) {
			return fmt.Errorf("%w: state %s both pauses and unpauses %q",
				ErrInvalidStateTransition, s.Name, name)
		}
	}
	return nil
}
