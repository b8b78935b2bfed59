package system

import (
	"fmt"
	"time"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"github.com/l1jgo/gameworld/internal/scripting"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const ScriptName = "script"

// ScriptSystem calls a Lua function per entity per frame as
// fn(entity, dt_seconds, elapsed_seconds). Scripts reach the world through
// the global "world" table registered when the system is bound.
//
// Entity ids cross into Lua as numbers, exact while generations stay
// below 2^21.
// Phase 2 (Update).
type ScriptSystem struct {
	coresys.Base
	pool      *mem.Pool[component.Script]
	engine    *scripting.Engine
	positions *PositionSystem
	lerps     *LerpSystem // optional
	failures  int
}

func NewScriptSystem(opts mem.Options, engine *scripting.Engine, positions *PositionSystem, lerps *LerpSystem) (*ScriptSystem, error) {
	if engine == nil {
		return nil, fmt.Errorf("script: nil engine")
	}
	pool, err := mem.NewPool[component.Script](ScriptName, opts)
	if err != nil {
		return nil, fmt.Errorf("script pool: %w", err)
	}
	return &ScriptSystem{
		Base:      coresys.NewBase(ScriptName, coresys.PhaseUpdate),
		pool:      pool,
		engine:    engine,
		positions: positions,
		lerps:     lerps,
	}, nil
}

func (s *ScriptSystem) Pool() mem.Allocator { return s.pool }

func (s *ScriptSystem) CreateComponent(_ ecs.EntityID, slot mem.Slot, cfg any) error {
	c, err := configAs[component.ScriptConfig](ScriptName, cfg)
	if err != nil {
		return err
	}
	if !s.engine.HasFunction(c.Function) {
		return fmt.Errorf("%w: lua function %q not defined", coresys.ErrBadConfig, c.Function)
	}
	*s.pool.At(slot) = component.Script{Function: c.Function}
	return nil
}

func (s *ScriptSystem) RemoveComponent(_ ecs.EntityID, slot mem.Slot) {
	*s.pool.At(slot) = component.Script{}
}

func (s *ScriptSystem) DecodeConfig(decode func(any) error) (any, error) {
	return decodeConfig[component.ScriptConfig](decode)
}

func (s *ScriptSystem) ExportConfig(id ecs.EntityID) (any, bool) {
	sc, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return component.ScriptConfig{Function: sc.Function}, true
}

func (s *ScriptSystem) Get(id ecs.EntityID) (*component.Script, bool) {
	return coresys.Component(&s.Base, s.pool, id)
}

// Failures is the number of script calls that failed so far.
func (s *ScriptSystem) Failures() int { return s.failures }

func (s *ScriptSystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	for _, id := range s.Entities().Entities() {
		sc, ok := s.Get(id)
		if !ok {
			continue
		}
		sc.Elapsed += sec
		if _, err := s.engine.Call(sc.Function, luaID(id), lua.LNumber(sec), lua.LNumber(sc.Elapsed)); err != nil {
			s.failures++
			s.World().Log().Warn("entity script failed",
				zap.Stringer("entity", id),
				zap.String("function", sc.Function),
				zap.Error(err))
		}
	}
}

func luaID(id ecs.EntityID) lua.LNumber { return lua.LNumber(float64(id)) }

func checkID(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(uint64(L.CheckNumber(n)))
}

// Registered installs the "world" table.
func (s *ScriptSystem) Registered(w *coresys.GameWorld) error {
	fns := map[string]lua.LGFunction{
		"alive": func(L *lua.LState) int {
			L.Push(lua.LBool(w.Alive(checkID(L, 1))))
			return 1
		},
		"frame": func(L *lua.LState) int {
			L.Push(lua.LNumber(w.Frame()))
			return 1
		},
		"position": func(L *lua.LState) int {
			p, ok := s.positions.Get(checkID(L, 1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(lua.LNumber(p.X))
			L.Push(lua.LNumber(p.Y))
			return 2
		},
		"set_position": func(L *lua.LState) int {
			ok := s.positions.Set(checkID(L, 1), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
			L.Push(lua.LBool(ok))
			return 1
		},
		"translate": func(L *lua.LState) int {
			ok := s.positions.Translate(checkID(L, 1), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
			L.Push(lua.LBool(ok))
			return 1
		},
		"remove": func(L *lua.LState) int {
			L.Push(lua.LBool(w.TimedRemoveEntity(checkID(L, 1))))
			return 1
		},
		"set_state": func(L *lua.LState) int {
			if err := w.SetState(L.CheckString(1)); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"log": func(L *lua.LState) int {
			w.Log().Info("lua", zap.String("msg", L.CheckString(1)))
			return 0
		},
	}
	if s.lerps != nil {
		fns["lerp"] = func(L *lua.LState) int {
			prop, err := ParseProperty(L.CheckString(2))
			if err != nil {
				L.ArgError(2, err.Error())
				return 0
			}
			d := time.Duration(float64(L.CheckNumber(4)) * float64(time.Second))
			err = s.lerps.AddLerp(checkID(L, 1), prop, float64(L.CheckNumber(3)), d, nil)
			L.Push(lua.LBool(err == nil))
			return 1
		}
		fns["clear_lerps"] = func(L *lua.LState) int {
			L.Push(lua.LNumber(s.lerps.ClearLerps(checkID(L, 1))))
			return 1
		}
	}
	s.engine.RegisterModule("world", fns)
	return nil
}
