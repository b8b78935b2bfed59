package system

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/event"
	"github.com/l1jgo/gameworld/internal/core/mem"
)

type valueConfig struct{ V int }

// valueSystem owns a pool of ints and records hook calls.
type valueSystem struct {
	Base
	pool    *mem.Pool[int]
	removed []ecs.EntityID
	updates int
	log     *[]string
	cleared int

	// read, when set, names a sibling whose value is copied on create.
	read *valueSystem
}

func newValueSystem(t *testing.T, name string, phase Phase, opts mem.Options) *valueSystem {
	t.Helper()
	p, err := mem.NewPool[int](name, opts)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return &valueSystem{Base: NewBase(name, phase), pool: p}
}

func (s *valueSystem) Pool() mem.Allocator { return s.pool }

func (s *valueSystem) CreateComponent(id ecs.EntityID, slot mem.Slot, cfg any) error {
	v := 0
	switch c := cfg.(type) {
	case nil:
	case valueConfig:
		v = c.V
	default:
		return ErrBadConfig
	}
	if s.read != nil {
		sib, ok := s.read.Get(id)
		if !ok {
			return errors.New("sibling component missing")
		}
		v += *sib
	}
	*s.pool.At(slot) = v
	return nil
}

func (s *valueSystem) RemoveComponent(id ecs.EntityID, _ mem.Slot) {
	s.removed = append(s.removed, id)
}

func (s *valueSystem) Get(id ecs.EntityID) (*int, bool) {
	return Component(&s.Base, s.pool, id)
}

func (s *valueSystem) Update(time.Duration) {
	s.updates++
	if s.log != nil {
		*s.log = append(*s.log, s.Name())
	}
}

type zoneClearingSystem struct {
	*valueSystem
}

func (s zoneClearingSystem) ClearZone(_ mem.ZoneID, ents []ecs.EntityID) {
	s.cleared += len(ents)
}

func newWorld(t *testing.T, systems ...System) *GameWorld {
	t.Helper()
	w := New(nil, nil)
	if err := w.Register(systems...); err != nil {
		t.Fatalf("register: %v", err)
	}
	return w
}

func TestInitRemoveRoundTrip(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	ren := newValueSystem(t, "renderer", PhaseRender, mem.Options{})
	w := newWorld(t, pos, ren)

	for i := 0; i < 3; i++ {
		if _, err := w.InitEntity(nil, []string{"position", "renderer"}); err != nil {
			t.Fatalf("init: %v", err)
		}
	}
	posBefore := pos.Entities().Copy()
	renBefore := ren.Entities().Copy()

	id, err := w.InitEntity(map[string]any{"position": valueConfig{V: 4}}, []string{"position", "renderer"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if v, ok := pos.Get(id); !ok || *v != 4 {
		t.Fatalf("position component = %v, %v", v, ok)
	}
	if err := w.RemoveEntity(id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if !slices.Equal(pos.Entities().Entities(), posBefore) {
		t.Errorf("position tracked = %v, want %v", pos.Entities().Entities(), posBefore)
	}
	if !slices.Equal(ren.Entities().Entities(), renBefore) {
		t.Errorf("renderer tracked = %v, want %v", ren.Entities().Entities(), renBefore)
	}
	if w.Alive(id) {
		t.Error("entity alive after remove")
	}
	if pos.pool.Live() != 3 || ren.pool.Live() != 3 {
		t.Errorf("live slots = %d/%d, want 3/3", pos.pool.Live(), ren.pool.Live())
	}
	// renderer attached last, released first
	if len(ren.removed) != 1 || len(pos.removed) != 1 {
		t.Errorf("removal hooks: renderer %v position %v", ren.removed, pos.removed)
	}
}

func TestInitEntityUnknownSystemAllocatesNothing(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	w := newWorld(t, pos)

	_, err := w.InitEntity(map[string]any{
		"position": valueConfig{V: 1},
		"renderer": valueConfig{V: 2},
	}, []string{"position", "renderer"})
	if !errors.Is(err, ErrUnknownSystem) {
		t.Fatalf("err = %v, want ErrUnknownSystem", err)
	}
	if pos.pool.Live() != 0 || pos.Entities().Len() != 0 {
		t.Errorf("position pool live = %d tracked = %d, want 0", pos.pool.Live(), pos.Entities().Len())
	}
	if w.EntityCount() != 0 {
		t.Errorf("entity count = %d, want 0", w.EntityCount())
	}
}

func TestInitEntityRollsBackOnOutOfMemory(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	capped := newValueSystem(t, "capped", PhaseUpdate, mem.Options{MaxSlots: 1})
	w := newWorld(t, pos, capped)

	var skipped int
	event.Subscribe(w.Bus(), func(event.SpawnSkipped) { skipped++ })

	if _, err := w.InitEntity(nil, []string{"position", "capped"}); err != nil {
		t.Fatalf("first init: %v", err)
	}
	_, err := w.InitEntity(nil, []string{"position", "capped"})
	if !errors.Is(err, mem.ErrOutOfMemory) {
		t.Fatalf("err = %v, want ErrOutOfMemory", err)
	}
	if pos.pool.Live() != 1 || pos.Entities().Len() != 1 {
		t.Errorf("position live = %d tracked = %d, want 1", pos.pool.Live(), pos.Entities().Len())
	}
	if len(pos.removed) != 1 {
		t.Errorf("position removal hook calls = %d, want 1", len(pos.removed))
	}
	if w.EntityCount() != 1 {
		t.Errorf("entity count = %d, want 1", w.EntityCount())
	}

	w.Update(time.Millisecond)
	if skipped != 1 {
		t.Errorf("SpawnSkipped events = %d, want 1", skipped)
	}
}

func TestInitEntityOrderLetsLaterSystemsReadEarlier(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	ren := newValueSystem(t, "renderer", PhaseRender, mem.Options{})
	ren.read = pos
	w := newWorld(t, pos, ren)

	id, err := w.InitEntity(map[string]any{
		"position": valueConfig{V: 10},
		"renderer": valueConfig{V: 1},
	}, []string{"position", "renderer"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if v, _ := ren.Get(id); *v != 11 {
		t.Errorf("renderer value = %d, want 11", *v)
	}

	// reversed order: renderer cannot see position yet, nothing leaks
	_, err = w.InitEntity(nil, []string{"renderer", "position"})
	if err == nil {
		t.Fatal("expected error when sibling is missing")
	}
	if ren.pool.Live() != 1 || pos.pool.Live() != 1 {
		t.Errorf("live = %d/%d, want 1/1", ren.pool.Live(), pos.pool.Live())
	}
}

func TestInitEntityBadConfig(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	w := newWorld(t, pos)
	_, err := w.InitEntity(map[string]any{"position": "nope"}, []string{"position"})
	if !errors.Is(err, ErrBadConfig) {
		t.Fatalf("err = %v, want ErrBadConfig", err)
	}
	if pos.pool.Live() != 0 {
		t.Errorf("live = %d, want 0", pos.pool.Live())
	}
}

func TestTimedRemoveEntityIsIdempotent(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{Checked: true})
	w := newWorld(t, pos)
	id, _ := w.InitEntity(nil, []string{"position"})

	if !w.TimedRemoveEntity(id) {
		t.Fatal("first schedule returned false")
	}
	if w.TimedRemoveEntity(id) {
		t.Error("second schedule returned true")
	}
	if !w.Alive(id) {
		t.Fatal("entity removed before the frame boundary")
	}

	w.Update(16 * time.Millisecond)
	if w.Alive(id) {
		t.Fatal("entity alive after frame")
	}
	if len(pos.removed) != 1 {
		t.Errorf("teardowns = %d, want 1", len(pos.removed))
	}
	if w.TimedRemoveEntity(id) {
		t.Error("scheduling a dead entity returned true")
	}
}

func TestRemoveEntityCancelsPendingRemoval(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{Checked: true})
	w := newWorld(t, pos)
	id, _ := w.InitEntity(nil, []string{"position"})

	w.TimedRemoveEntity(id)
	if err := w.RemoveEntity(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// the index is recycled under a new generation and must survive the flush
	next, _ := w.InitEntity(nil, []string{"position"})
	w.Update(time.Millisecond)
	if !w.Alive(next) {
		t.Error("recycled entity removed by a stale deferred removal")
	}
	if err := w.RemoveEntity(id); !errors.Is(err, ecs.ErrUnknownEntity) {
		t.Errorf("second remove err = %v, want ErrUnknownEntity", err)
	}
}

func TestUpdateOrder(t *testing.T) {
	var log []string
	render := newValueSystem(t, "renderer", PhaseRender, mem.Options{})
	physics := newValueSystem(t, "physics", PhaseUpdate, mem.Options{})
	ai := newValueSystem(t, "ai", PhaseUpdate, mem.Options{})
	for _, s := range []*valueSystem{render, physics, ai} {
		s.log = &log
	}
	w := newWorld(t, render, physics, ai)

	w.Update(time.Millisecond)
	w.Update(time.Millisecond)
	want := []string{"physics", "ai", "renderer", "physics", "ai", "renderer"}
	if !slices.Equal(log, want) {
		t.Errorf("order = %v, want %v", log, want)
	}
	if !slices.Equal(w.Systems(), []string{"physics", "ai", "renderer"}) {
		t.Errorf("Systems() = %v", w.Systems())
	}
}

func stateWorld(t *testing.T) (*GameWorld, map[string]*valueSystem) {
	t.Helper()
	sys := map[string]*valueSystem{
		"position": newValueSystem(t, "position", PhasePreUpdate, mem.Options{}),
		"physics":  newValueSystem(t, "physics", PhaseUpdate, mem.Options{}),
		"menu_ui":  newValueSystem(t, "menu_ui", PhaseRender, mem.Options{}),
		"renderer": newValueSystem(t, "renderer", PhaseRender, mem.Options{}),
	}
	w := newWorld(t, sys["position"], sys["physics"], sys["menu_ui"], sys["renderer"])
	states := []State{
		{
			Name:     "menu",
			Added:    []string{"menu_ui"},
			Paused:   []string{"physics", "renderer"},
			Unpaused: []string{"menu_ui"},
			Screen:   "menu",
		},
		{
			Name:     "game",
			Removed:  []string{"menu_ui"},
			Unpaused: []string{"position", "physics", "renderer"},
			Screen:   "game",
		},
	}
	for _, st := range states {
		if err := w.AddState(st); err != nil {
			t.Fatalf("add state %s: %v", st.Name, err)
		}
	}
	return w, sys
}

type snapshot map[string][2]bool

func snap(w *GameWorld) snapshot {
	s := snapshot{}
	for _, name := range w.Systems() {
		s[name] = [2]bool{w.Active(name), w.Running(name)}
	}
	return s
}

func TestStateTransitionsAreDeterministic(t *testing.T) {
	w, sys := stateWorld(t)
	var screens []string
	w.OnScreen(func(s string) { screens = append(screens, s) })

	if err := w.SetState("menu"); err != nil {
		t.Fatalf("menu: %v", err)
	}
	first := snap(w)
	if !w.Running("menu_ui") || w.Running("physics") || w.Running("position") {
		t.Fatalf("menu snapshot wrong: %v", first)
	}

	if _, err := w.InitEntity(nil, []string{"menu_ui"}); err != nil {
		t.Fatalf("init menu entity: %v", err)
	}
	if err := w.SetState("game"); err != nil {
		t.Fatalf("game: %v", err)
	}
	if w.Active("menu_ui") || sys["menu_ui"].pool.Live() != 0 {
		t.Errorf("menu_ui still active or holding components")
	}
	if w.EntityCount() != 0 {
		t.Errorf("entity owned only by removed system survived: count %d", w.EntityCount())
	}
	if _, err := w.InitEntity(nil, []string{"menu_ui"}); !errors.Is(err, ErrInactiveSystem) {
		t.Errorf("init on removed system err = %v, want ErrInactiveSystem", err)
	}

	if err := w.SetState("menu"); err != nil {
		t.Fatalf("menu again: %v", err)
	}
	again := snap(w)
	for name, v := range first {
		if again[name] != v {
			t.Errorf("%s: first menu %v, second menu %v", name, v, again[name])
		}
	}
	if !slices.Equal(screens, []string{"menu", "game", "menu"}) {
		t.Errorf("screens = %v", screens)
	}
	if w.State() != "menu" || w.Screen() != "menu" {
		t.Errorf("state/screen = %s/%s", w.State(), w.Screen())
	}
}

func TestPausedSystemsKeepData(t *testing.T) {
	w, sys := stateWorld(t)
	_ = w.SetState("game")
	id, _ := w.InitEntity(nil, []string{"position", "physics"})
	_ = w.SetState("menu")

	before := sys["physics"].updates
	w.Update(time.Millisecond)
	if sys["physics"].updates != before {
		t.Error("paused system updated")
	}
	if _, ok := sys["physics"].Get(id); !ok {
		t.Error("paused system lost its component")
	}
}

func TestAddStateRejectsUnknownSystems(t *testing.T) {
	w, _ := stateWorld(t)
	err := w.AddState(State{Name: "broken", Unpaused: []string{"sound"}})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("err = %v, want ErrInvalidStateTransition", err)
	}
	err = w.AddState(State{Name: "contradiction", Removed: []string{"physics"}, Added: []string{"physics"}})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("contradictory recipe err = %v", err)
	}
	if err := w.SetState("broken"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("SetState(unknown) err = %v", err)
	}
}

// switcher requests a state change from inside Update.
type switcher struct {
	Base
	target string
	seen   []bool
	peer   string
}

func (s *switcher) Update(time.Duration) {
	w := s.World()
	s.seen = append(s.seen, w.Running(s.peer))
	if s.target != "" {
		_ = w.SetState(s.target)
		s.target = ""
	}
}

func TestSetStateDuringUpdateIsStaged(t *testing.T) {
	w, _ := stateWorld(t)
	sw := &switcher{Base: NewBase("switcher", PhaseInput), peer: "physics"}
	if err := w.Register(sw); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := w.AddState(State{Name: "all", Unpaused: []string{"switcher", "physics", "position"}}); err != nil {
		t.Fatal(err)
	}
	_ = w.AddState(State{Name: "frozen", Unpaused: []string{"switcher"}})
	_ = w.SetState("all")

	sw.target = "frozen"
	w.Update(time.Millisecond)
	if w.State() != "frozen" {
		t.Fatalf("state = %s, want frozen after frame", w.State())
	}
	if w.Running("physics") {
		t.Error("physics still running after staged switch")
	}
	w.Update(time.Millisecond)
	if !slices.Equal(sw.seen, []bool{true, false}) {
		t.Errorf("observed physics running = %v, want [true false]", sw.seen)
	}
}

func TestClearZone(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{BlockSize: 4})
	ren := zoneClearingSystem{newValueSystem(t, "renderer", PhaseRender, mem.Options{BlockSize: 4})}
	w := newWorld(t, pos, ren)
	level, err := w.Zones().Create("level", 8)
	if err != nil {
		t.Fatal(err)
	}

	keep, _ := w.InitEntity(nil, []string{"position", "renderer"})
	for i := 0; i < 5; i++ {
		if _, err := w.InitEntityInZone(level, nil, []string{"position", "renderer"}); err != nil {
			t.Fatalf("init in zone: %v", err)
		}
	}

	n, err := w.ClearZone(level)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 5 {
		t.Errorf("cleared %d entities, want 5", n)
	}
	if ren.cleared != 5 || len(ren.removed) != 0 {
		t.Errorf("renderer bulk cleared %d, per-entity %d", ren.cleared, len(ren.removed))
	}
	if len(pos.removed) != 5 {
		t.Errorf("position per-entity removals = %d, want 5", len(pos.removed))
	}
	if !w.Alive(keep) || w.EntityCount() != 1 {
		t.Errorf("keep alive=%v count=%d", w.Alive(keep), w.EntityCount())
	}
	if pos.pool.Live() != 1 || pos.Entities().Len() != 1 {
		t.Errorf("position live=%d tracked=%d", pos.pool.Live(), pos.Entities().Len())
	}

	for i := 0; i < 5; i++ {
		id, err := w.InitEntityInZone(level, nil, []string{"position"})
		if err != nil {
			t.Fatal(err)
		}
		slot, _ := pos.SlotOf(id)
		keepSlot, _ := pos.SlotOf(keep)
		if slot == keepSlot {
			t.Fatalf("zone allocation reused slot %d held outside the zone", slot)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	a := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	b := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	w := New(nil, nil)
	if err := w.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Register(b); !errors.Is(err, ErrDuplicateSystem) {
		t.Errorf("err = %v, want ErrDuplicateSystem", err)
	}
}

type failingRegistrar struct {
	*valueSystem
}

func (failingRegistrar) Registered(*GameWorld) error { return errors.New("no backend") }

func TestRegisterUndoesFailedRegistrar(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	bad := failingRegistrar{newValueSystem(t, "sprite", PhaseRender, mem.Options{})}
	w := newWorld(t, pos)
	if err := w.Register(bad); err == nil {
		t.Fatal("failing registrar accepted")
	}
	if _, ok := w.System("sprite"); ok {
		t.Error("failed system still looked up by name")
	}
	if got := w.Systems(); !slices.Equal(got, []string{"position"}) {
		t.Errorf("systems = %v", got)
	}
	if _, err := w.InitEntity(nil, []string{"sprite"}); !errors.Is(err, ErrUnknownSystem) {
		t.Errorf("init entity err = %v, want ErrUnknownSystem", err)
	}
	w.Update(time.Millisecond)
	if bad.updates != 0 {
		t.Errorf("failed system updated %d times", bad.updates)
	}

	again := newValueSystem(t, "sprite", PhaseRender, mem.Options{})
	if err := w.Register(again); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.ID() != 1 {
		t.Errorf("id = %d, want 1", again.ID())
	}
	if _, err := w.InitEntity(nil, []string{"position", "sprite"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := w.ClearZone(mem.DefaultZone); n != 1 {
		t.Errorf("cleared %d entities, want 1", n)
	}
	if again.pool.Live() != 0 {
		t.Error("pool slots left after zone clear")
	}
}

func TestInitGameWorldRunsCallbackOnce(t *testing.T) {
	pos := newValueSystem(t, "position", PhasePreUpdate, mem.Options{})
	w := New(nil, nil)
	calls := 0
	err := w.InitGameWorld([]System{pos}, func(gw *GameWorld) error {
		calls++
		_, err := gw.InitEntity(nil, []string{"position"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || w.EntityCount() != 1 {
		t.Errorf("calls=%d entities=%d", calls, w.EntityCount())
	}
}
