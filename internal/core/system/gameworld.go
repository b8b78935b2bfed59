package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/event"
	"github.com/l1jgo/gameworld/internal/core/mem"
	"go.uber.org/zap"
)

// GameWorld owns the registered systems, the entity table and the zone
// layer, and drives the per-frame update and draw passes.
// Accessed only from the game loop goroutine, no locks.
type GameWorld struct {
	log      *zap.Logger
	registry *ecs.Registry
	table    *ecs.Table
	zones    *mem.Zones
	bus      *event.Bus
	runner   *Runner
	removals *ecs.RemovalQueue

	entries []*entry // indexed by SystemID
	states  map[string]State
	current string
	staged  string
	screen  string

	onScreen func(screen string)
	inFrame  bool
	frame    uint64
}

// New creates an empty gameworld. zones may be nil, in which case only
// the default zone exists until more are created through Zones().
func New(log *zap.Logger, zones *mem.Zones) *GameWorld {
	if log == nil {
		log = zap.NewNop()
	}
	if zones == nil {
		zones = mem.NewZones()
	}
	return &GameWorld{
		log:      log,
		registry: ecs.NewRegistry(),
		table:    ecs.NewTable(),
		zones:    zones,
		bus:      event.NewBus(),
		runner:   NewRunner(),
		removals: ecs.NewRemovalQueue(),
		states:   make(map[string]State, 8),
	}
}

func (w *GameWorld) Bus() *event.Bus   { return w.bus }
func (w *GameWorld) Zones() *mem.Zones { return w.zones }
func (w *GameWorld) Table() *ecs.Table { return w.table }
func (w *GameWorld) Log() *zap.Logger  { return w.log }
func (w *GameWorld) State() string     { return w.current }
func (w *GameWorld) Screen() string    { return w.screen }
func (w *GameWorld) Frame() uint64     { return w.frame }
func (w *GameWorld) EntityCount() int  { return w.table.Len() }

func (w *GameWorld) Alive(id ecs.EntityID) bool { return w.table.Alive(id) }

// Entities returns every live entity, zone by zone.
func (w *GameWorld) Entities() []ecs.EntityID {
	var out []ecs.EntityID
	for z := 0; z < w.zones.Len(); z++ {
		out = append(out, w.table.EntitiesInZone(mem.ZoneID(z))...)
	}
	return out
}

// Components returns the systems id holds a component in, in attach order.
func (w *GameWorld) Components(id ecs.EntityID) []string {
	atts := w.table.Attachments(id)
	names := make([]string, len(atts))
	for i, a := range atts {
		names[i] = w.entries[a.System].base.name
	}
	return names
}

// OnScreen sets the callback invoked with the screen of each applied state.
func (w *GameWorld) OnScreen(fn func(screen string)) { w.onScreen = fn }

// InitGameWorld registers the initial systems in order and then calls
// callback once, the host's hook for adding states and first entities.
func (w *GameWorld) InitGameWorld(systems []System, callback func(*GameWorld) error) error {
	if err := w.Register(systems...); err != nil {
		return fmt.Errorf("init gameworld: %w", err)
	}
	if callback != nil {
		if err := callback(w); err != nil {
			return fmt.Errorf("init gameworld callback: %w", err)
		}
	}
	return nil
}

// Register adds systems. Registration order is the execution order
// within a phase. New systems are active and running.
func (w *GameWorld) Register(systems ...System) error {
	if w.inFrame {
		return errors.New("register: called during a frame")
	}
	for _, s := range systems {
		b, ok := s.(bound)
		if !ok {
			return fmt.Errorf("register %s: system does not embed system.Base", s.Name())
		}
		base := b.base()
		if base.name == "" {
			return errors.New("register: system without a name")
		}
		if _, exists := w.registry.Lookup(base.name); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSystem, base.name)
		}
		id, _ := w.registry.Intern(base.name)
		base.id = id
		base.world = w
		if base.entities == nil {
			base.entities = ecs.NewEntitySet(64)
		}

		e := &entry{sys: s, base: base, active: true, running: true}
		if o, ok := s.(ComponentOwner); ok {
			e.owner = o
			w.zones.Register(o.Pool())
		}
		e.updater, _ = s.(Updater)
		e.drawer, _ = s.(Drawer)

		w.entries = append(w.entries, e)
		w.runner.add(e)
		if r, ok := s.(Registrar); ok {
			if err := r.Registered(w); err != nil {
				w.unregister(e)
				return fmt.Errorf("register %s: %w", base.name, err)
			}
		}
		w.log.Debug("system registered",
			zap.String("system", base.name),
			zap.Stringer("phase", base.phase),
			zap.Bool("owner", e.owner != nil))
	}
	return nil
}

// unregister undoes the last registration. Bus subscriptions made by a
// failing Registered hook are not undone.
func (w *GameWorld) unregister(e *entry) {
	w.runner.remove(e)
	w.entries = w.entries[:len(w.entries)-1]
	w.registry.Forget(e.base.name)
	if e.owner != nil {
		w.zones.Unregister(e.owner.Pool())
	}
	e.base.world = nil
	e.base.id = 0
}

func (w *GameWorld) lookup(name string) (*entry, bool) {
	id, ok := w.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	return w.entries[id], true
}

// System returns the registered system called name.
func (w *GameWorld) System(name string) (System, bool) {
	e, ok := w.lookup(name)
	if !ok {
		return nil, false
	}
	return e.sys, true
}

// Systems returns system names in execution order.
func (w *GameWorld) Systems() []string { return w.runner.Order() }

// Active reports whether name accepts new entities.
func (w *GameWorld) Active(name string) bool {
	e, ok := w.lookup(name)
	return ok && e.active
}

// Running reports whether name receives Update and Draw.
func (w *GameWorld) Running(name string) bool {
	e, ok := w.lookup(name)
	return ok && e.active && e.running
}

// InitEntity creates an entity in the default zone. See InitEntityInZone.
func (w *GameWorld) InitEntity(components map[string]any, order []string) (ecs.EntityID, error) {
	return w.InitEntityInZone(mem.DefaultZone, components, order)
}

// InitEntityInZone creates an entity and attaches one component per
// system in order. components maps system name to that system's config;
// a missing entry means defaults. Systems are initialized in the given
// order so later ones can read components attached before them. Any
// failure releases everything attached so far.
func (w *GameWorld) InitEntityInZone(zone mem.ZoneID, components map[string]any, order []string) (ecs.EntityID, error) {
	if !w.zones.Valid(zone) {
		return ecs.NoEntity, fmt.Errorf("init entity: %w: %d", mem.ErrUnknownZone, zone)
	}
	entries := make([]*entry, 0, len(order))
	for _, name := range order {
		e, ok := w.lookup(name)
		if !ok {
			return ecs.NoEntity, fmt.Errorf("init entity: %w: %s", ErrUnknownSystem, name)
		}
		if e.owner == nil {
			return ecs.NoEntity, fmt.Errorf("init entity: %w: %s", ErrNotComponentOwner, name)
		}
		if !e.active {
			return ecs.NoEntity, fmt.Errorf("init entity: %w: %s", ErrInactiveSystem, name)
		}
		for _, prev := range entries {
			if prev == e {
				return ecs.NoEntity, fmt.Errorf("init entity: system %s listed twice", name)
			}
		}
		entries = append(entries, e)
	}

	id := w.table.Create(zone)
	for _, e := range entries {
		if err := w.attach(id, zone, e, components[e.base.name]); err != nil {
			if rerr := w.teardown(id); rerr != nil {
				w.log.Error("rollback failed", zap.Stringer("entity", id), zap.Error(rerr))
			}
			_ = w.table.Destroy(id)
			if errors.Is(err, mem.ErrOutOfMemory) {
				w.log.Debug("spawn skipped", zap.String("system", e.base.name), zap.Error(err))
				event.Emit(w.bus, event.SpawnSkipped{Systems: order, Reason: err.Error()})
			}
			return ecs.NoEntity, fmt.Errorf("init entity: %s: %w", e.base.name, err)
		}
	}
	event.Emit(w.bus, event.EntityCreated{Entity: id, Zone: zone})
	return id, nil
}

// Spawn creates an entity from data-file configuration. decoders maps a
// system name to a function that decodes that system's options; systems
// implementing ConfigDecoder turn it into their typed config.
func (w *GameWorld) Spawn(zoneName string, order []string, decoders map[string]func(any) error) (ecs.EntityID, error) {
	zone := mem.DefaultZone
	if zoneName != "" {
		z, ok := w.zones.Lookup(zoneName)
		if !ok {
			return ecs.NoEntity, fmt.Errorf("spawn: %w: %s", mem.ErrUnknownZone, zoneName)
		}
		zone = z
	}
	components := make(map[string]any, len(order))
	for _, name := range order {
		e, ok := w.lookup(name)
		if !ok {
			return ecs.NoEntity, fmt.Errorf("spawn: %w: %s", ErrUnknownSystem, name)
		}
		dec, ok := e.sys.(ConfigDecoder)
		if !ok {
			continue
		}
		cfg, err := dec.DecodeConfig(decoders[name])
		if err != nil {
			return ecs.NoEntity, fmt.Errorf("spawn: decode %s config: %w", name, err)
		}
		components[name] = cfg
	}
	return w.InitEntityInZone(zone, components, order)
}

func (w *GameWorld) attach(id ecs.EntityID, zone mem.ZoneID, e *entry, cfg any) error {
	pool := e.owner.Pool()
	slot, err := w.zones.Alloc(zone, pool)
	if err != nil {
		return err
	}
	if err := e.owner.CreateComponent(id, slot, cfg); err != nil {
		_ = pool.Free(slot)
		return err
	}
	if err := w.table.Attach(id, e.base.id, slot); err != nil {
		e.owner.RemoveComponent(id, slot)
		_ = pool.Free(slot)
		return err
	}
	e.base.entities.Add(id)
	return nil
}

func (w *GameWorld) detach(id ecs.EntityID, e *entry, slot mem.Slot) error {
	e.owner.RemoveComponent(id, slot)
	e.base.entities.Remove(id)
	w.table.Detach(id, e.base.id)
	return e.owner.Pool().Free(slot)
}

// teardown detaches every component of id, last attached first.
func (w *GameWorld) teardown(id ecs.EntityID) error {
	atts := w.table.Attachments(id)
	var errs []error
	for i := len(atts) - 1; i >= 0; i-- {
		e := w.entries[atts[i].System]
		if err := w.detach(id, e, atts[i].Slot); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.base.name, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveEntity releases every component of id and retires the id. Must not
// be called while a system is walking a tracked set that contains id; use
// TimedRemoveEntity from update code and collision callbacks.
func (w *GameWorld) RemoveEntity(id ecs.EntityID) error {
	if !w.table.Alive(id) {
		return fmt.Errorf("remove entity: %w: %s", ecs.ErrUnknownEntity, id)
	}
	w.removals.Cancel(id)
	err := w.teardown(id)
	if derr := w.table.Destroy(id); derr != nil {
		err = errors.Join(err, derr)
	}
	event.Emit(w.bus, event.EntityRemoved{Entity: id})
	if err != nil {
		return fmt.Errorf("remove entity %s: %w", id, err)
	}
	return nil
}

// TimedRemoveEntity schedules id for removal at the end of the current
// frame (or the next one when called between frames). Scheduling an id
// twice removes it once. Returns false for dead or already scheduled ids.
func (w *GameWorld) TimedRemoveEntity(id ecs.EntityID) bool {
	if !w.table.Alive(id) {
		return false
	}
	return w.removals.Schedule(id)
}

// PendingRemoval reports whether id is scheduled for removal.
func (w *GameWorld) PendingRemoval(id ecs.EntityID) bool { return w.removals.Pending(id) }

// FlushRemovals runs every scheduled removal now. Update calls it at the
// end of each frame.
func (w *GameWorld) FlushRemovals() int {
	return w.removals.Drain(func(id ecs.EntityID) {
		if !w.table.Alive(id) {
			return
		}
		if err := w.RemoveEntity(id); err != nil {
			w.log.Error("deferred removal failed", zap.Stringer("entity", id), zap.Error(err))
		}
	})
}

// Update runs one frame: delivers last frame's events, updates every
// active running system in order, drains deferred removals, then applies
// a state switch requested during the frame.
func (w *GameWorld) Update(dt time.Duration) {
	w.bus.SwapBuffers()
	w.bus.DispatchAll()

	w.inFrame = true
	w.runner.Tick(dt)
	w.inFrame = false

	w.FlushRemovals()
	w.applyStaged()
	w.frame++
}

// Draw runs every active running Drawer in order.
func (w *GameWorld) Draw() {
	w.inFrame = true
	w.runner.Draw()
	w.inFrame = false
	w.applyStaged()
}

func (w *GameWorld) applyStaged() {
	if w.staged == "" {
		return
	}
	name := w.staged
	w.staged = ""
	if err := w.applyState(name); err != nil {
		w.log.Error("staged state switch failed", zap.String("state", name), zap.Error(err))
	}
}

// AddState stores a recipe. Every system it names must be registered.
// It does not change the current state.
func (w *GameWorld) AddState(s State) error {
	known := func(name string) bool {
		_, ok := w.registry.Lookup(name)
		return ok
	}
	if err := s.validate(known); err != nil {
		return err
	}
	w.states[s.Name] = s.clone()
	return nil
}

// SetState switches to a stored state. Called during a frame, the switch
// is staged and applied once the frame's removals have run.
func (w *GameWorld) SetState(name string) error {
	if _, ok := w.states[name]; !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidStateTransition, name)
	}
	if w.inFrame {
		w.staged = name
		return nil
	}
	return w.applyState(name)
}

func (w *GameWorld) applyState(name string) error {
	st, ok := w.states[name]
	if !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidStateTransition, name)
	}

	var errs []error
	for _, sys := range st.Removed {
		e, _ := w.lookup(sys)
		if err := w.deactivate(e); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sys := range st.Added {
		e, _ := w.lookup(sys)
		e.active = true
	}
	unpaused := make(map[string]bool, len(st.Unpaused))
	for _, sys := range st.Unpaused {
		unpaused[sys] = true
	}
	for _, e := range w.entries {
		if unpaused[e.base.name] {
			e.active = true
			e.running = true
		} else {
			e.running = false
		}
	}

	from := w.current
	w.current = name
	w.screen = st.Screen
	event.Emit(w.bus, event.StateChanged{From: from, To: name, Screen: st.Screen})
	w.log.Info("state changed",
		zap.String("from", from),
		zap.String("to", name),
		zap.String("screen", st.Screen))
	if w.onScreen != nil {
		w.onScreen(st.Screen)
	}
	if len(errs) > 0 {
		return fmt.Errorf("apply state %s: %w", name, errors.Join(errs...))
	}
	return nil
}

// deactivate strips every component of e from its entities. Entities left
// without components are retired.
func (w *GameWorld) deactivate(e *entry) error {
	var errs []error
	if e.owner != nil {
		for _, id := range e.base.entities.Copy() {
			slot, ok := w.table.Slot(id, e.base.id)
			if !ok {
				continue
			}
			if err := w.detach(id, e, slot); err != nil {
				errs = append(errs, err)
			}
			if len(w.table.Attachments(id)) == 0 {
				w.removals.Cancel(id)
				_ = w.table.Destroy(id)
				event.Emit(w.bus, event.EntityRemoved{Entity: id})
			}
		}
	}
	e.active = false
	e.running = false
	return errors.Join(errs...)
}

// ClearZone removes every entity created in zone. Systems implementing
// ZoneClearer release their sub-resources in one call; pool slots are
// returned with a single pass over the zone's members. Must not be called
// during a frame.
func (w *GameWorld) ClearZone(zone mem.ZoneID) (int, error) {
	if !w.zones.Valid(zone) {
		return 0, fmt.Errorf("clear zone: %w: %d", mem.ErrUnknownZone, zone)
	}
	if w.inFrame {
		return 0, fmt.Errorf("clear zone %s: called during a frame", w.zones.Name(zone))
	}
	ids := w.table.EntitiesInZone(zone)

	type member struct {
		id   ecs.EntityID
		slot mem.Slot
	}
	members := make(map[ecs.SystemID][]member, len(w.entries))
	for _, id := range ids {
		for _, a := range w.table.DetachAll(id) {
			members[a.System] = append(members[a.System], member{id: id, slot: a.Slot})
		}
	}
	for _, e := range w.entries {
		ms := members[e.base.id]
		if len(ms) == 0 {
			continue
		}
		if zc, ok := e.sys.(ZoneClearer); ok {
			ents := make([]ecs.EntityID, len(ms))
			for i, m := range ms {
				ents[i] = m.id
			}
			zc.ClearZone(zone, ents)
		} else {
			for _, m := range ms {
				e.owner.RemoveComponent(m.id, m.slot)
			}
		}
		for _, m := range ms {
			e.base.entities.Remove(m.id)
		}
	}

	slots, err := w.zones.Clear(zone)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		w.removals.Cancel(id)
		_ = w.table.Destroy(id)
	}
	event.Emit(w.bus, event.ZoneCleared{Zone: zone, Entities: len(ids), Slots: slots})
	w.log.Info("zone cleared",
		zap.String("zone", w.zones.Name(zone)),
		zap.Int("entities", len(ids)),
		zap.Int("slots", slots))
	return len(ids), nil
}
