package system

import (
	"sort"
	"time"
)

// entry is the gameworld's bookkeeping for one registered system.
type entry struct {
	sys     System
	base    *Base
	owner   ComponentOwner
	updater Updater
	drawer  Drawer
	order   int

	active  bool // accepts InitEntity
	running bool // receives Update/Draw
}

// Runner executes systems in (phase, registration) order each frame.
type Runner struct {
	entries []*entry
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		entries: make([]*entry, 0, 16),
	}
}

func (r *Runner) add(e *entry) {
	e.order = len(r.entries)
	r.entries = append(r.entries, e)
	r.sorted = false
}

func (r *Runner) remove(e *entry) {
	for i, x := range r.entries {
		if x == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.entries {
		if e.updater != nil && e.active && e.running {
			e.updater.Update(dt)
		}
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.entries {
		if e.updater != nil && e.active && e.running && e.sys.Phase() == phase {
			e.updater.Update(dt)
		}
	}
}

func (r *Runner) Draw() {
	r.ensureSorted()
	for _, e := range r.entries {
		if e.drawer != nil && e.active && e.running {
			e.drawer.Draw()
		}
	}
}

// Order returns system names in execution order.
func (r *Runner) Order() []string {
	r.ensureSorted()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.base.name
	}
	return names
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.entries, func(i, j int) bool {
			pi, pj := r.entries[i].sys.Phase(), r.entries[j].sys.Phase()
			if pi != pj {
				return pi < pj
			}
			return r.entries[i].order < r.entries[j].order
		})
		r.sorted = true
	}
}
