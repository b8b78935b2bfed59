package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/gameworld/internal/config"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/event"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"github.com/l1jgo/gameworld/internal/data"
	"github.com/l1jgo/gameworld/internal/persist"
	"github.com/l1jgo/gameworld/internal/physics"
	"github.com/l1jgo/gameworld/internal/render"
	"github.com/l1jgo/gameworld/internal/scripting"
	"github.com/l1jgo/gameworld/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(cfgPath string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             gameworld  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        zoned ECS core · headless host     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mconfig:\033[0m %s\n\n", cfgPath)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Host ──────────────────────────────────────────────────────────

type systems struct {
	pos    *system.PositionSystem
	rot    *system.RotateSystem
	vel    *system.VelocitySystem
	phys   *system.PhysicsSystem
	script *system.ScriptSystem
	lerp   *system.LerpSystem
	rend   *system.RendererSystem
	canvas *render.Recorder
}

func (s *systems) list() []coresys.System {
	return []coresys.System{s.pos, s.rot, s.vel, s.phys, s.script, s.lerp, s.rend}
}

func run() error {
	// 1. Load config
	cfgPath := "config/gameworld.toml"
	if p := os.Getenv("GAMEWORLD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfgPath)

	// 3. Assets
	printSection("assets")
	library := render.NewLibrary(os.DirFS(cfg.Render.AssetDir))
	for _, img := range cfg.Render.Images {
		if _, err := library.LoadImage(img); err != nil {
			return fmt.Errorf("assets: %w", err)
		}
	}
	for _, atlas := range cfg.Render.Atlases {
		if _, err := library.LoadAtlas(atlas); err != nil {
			return fmt.Errorf("assets: %w", err)
		}
	}
	printStat("textures", library.TextureCount())
	fmt.Println()

	// 4. Scripts
	printSection("scripts")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK("lua engine ready")
	fmt.Println()

	// 5. Systems and zones
	printSection("systems")
	sys, err := buildSystems(cfg, engine, library)
	if err != nil {
		return err
	}
	zones := mem.NewZones()
	for _, z := range cfg.Zones {
		if _, err := zones.Create(z.Name, z.Capacity); err != nil {
			return fmt.Errorf("zones: %w", err)
		}
	}
	gw := coresys.New(log, zones)
	gw.OnScreen(func(screen string) {
		log.Info("screen", zap.String("screen", screen))
	})
	event.Subscribe(gw.Bus(), func(e event.SpawnSkipped) {
		log.Debug("spawn skipped", zap.Strings("systems", e.Systems), zap.String("reason", e.Reason))
	})

	// 6. Persistence
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 7. Data tables and first entities
	states, err := data.LoadStateTable(cfg.Data.States)
	if err != nil {
		return err
	}
	prefabs, err := data.LoadPrefabTable(cfg.Data.Prefabs)
	if err != nil {
		return err
	}
	autosave := persist.NewAutosaveSystem(store, cfg.Persistence.Snapshot, cfg.Persistence.Autosave)
	err = gw.InitGameWorld(append(sys.list(), autosave), func(w *coresys.GameWorld) error {
		if err := states.Install(w); err != nil {
			return err
		}
		registerCollisions(sys, prefabs, w, log)
		if restored, err := restore(cfg, store, w, log); err != nil || restored {
			return err
		}
		return spawnInitial(cfg, prefabs, w, log)
	})
	if err != nil {
		return err
	}
	printStat("systems", len(gw.Systems()))
	printStat("zones", zones.Len())
	printStat("states", states.Count())
	printStat("prefabs", prefabs.Count())
	printStat("entities", gw.EntityCount())
	fmt.Println()

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tick := cfg.Engine.TickRate
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("state %s (tick: %s)", gw.State(), tick))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			gw.Update(tick)
			gw.Draw()
			if gw.Frame()%600 == 0 {
				st := sys.rend.Stats()
				log.Debug("frame",
					zap.Uint64("frame", gw.Frame()),
					zap.Int("entities", gw.EntityCount()),
					zap.Int("visible", st.Visible),
					zap.Int("batches", st.Batches),
					zap.Int("instructions", sys.canvas.Live()))
			}
			if cfg.Engine.MaxFrames > 0 && gw.Frame() >= uint64(cfg.Engine.MaxFrames) {
				log.Info("frame limit reached", zap.Uint64("frame", gw.Frame()))
				return autosave.SaveNow()
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			return autosave.SaveNow()
		}
	}
}

func buildSystems(cfg *config.Config, engine *scripting.Engine, library *render.Library) (*systems, error) {
	s := &systems{canvas: render.NewRecorder()}
	var err error
	if s.pos, err = system.NewPositionSystem(cfg.PoolOptions(system.PositionName)); err != nil {
		return nil, err
	}
	if s.rot, err = system.NewRotateSystem(cfg.PoolOptions(system.RotateName)); err != nil {
		return nil, err
	}
	if s.vel, err = system.NewVelocitySystem(cfg.PoolOptions(system.VelocityName), s.pos, s.rot); err != nil {
		return nil, err
	}
	space := physics.NewAABBSpace(cfg.Physics.Bounds.Rect(), cfg.Physics.MaxDepth)
	if s.phys, err = system.NewPhysicsSystem(cfg.PoolOptions(system.PhysicsName), s.pos, space); err != nil {
		return nil, err
	}
	s.lerp = system.NewLerpSystem(s.pos, s.rot)
	if s.script, err = system.NewScriptSystem(cfg.PoolOptions(system.ScriptName), engine, s.pos, s.lerp); err != nil {
		return nil, err
	}
	s.rend, err = system.NewRendererSystem(system.RendererOptions{
		Pool:         cfg.PoolOptions(system.RendererName),
		Bounds:       cfg.Render.Bounds.Rect(),
		MaxDepth:     cfg.Render.MaxDepth,
		Viewport:     cfg.Render.Viewport.Rect(),
		MaxBatchSize: cfg.Render.MaxBatchSize,
	}, s.pos, s.rot, s.canvas, library)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openStore returns a nil store for the "none" driver.
func openStore(cfg *config.Config, log *zap.Logger) (persist.Store, func(), error) {
	noop := func() {}
	switch cfg.Persistence.Driver {
	case "file":
		fs, err := persist.NewFileStore(cfg.Persistence.Dir, log)
		if err != nil {
			return nil, noop, err
		}
		printOK(fmt.Sprintf("file store %s", cfg.Persistence.Dir))
		return fs, noop, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pg, err := persist.OpenPGStore(ctx, cfg.Database, log)
		if err != nil {
			return nil, noop, fmt.Errorf("database: %w", err)
		}
		printOK(fmt.Sprintf("PostgreSQL connected (schema v%d)", pg.Version()))
		return pg, pg.Close, nil
	}
	return nil, noop, nil
}

const (
	collisionShip physics.CollisionType = 1
	collisionRock physics.CollisionType = 2
)

// registerCollisions makes the ship shatter rocks: the rock is removed at
// the end of the frame and a spark rises from where it was.
func registerCollisions(sys *systems, prefabs *data.PrefabTable, w *coresys.GameWorld, log *zap.Logger) {
	spark := prefabs.Get("spark")
	sys.phys.AddCollisionHandler(collisionShip, collisionRock, physics.Handler{
		Begin: func(ship, rock ecs.EntityID) physics.Outcome {
			w.TimedRemoveEntity(rock)
			if spark == nil {
				return physics.Ignore
			}
			pos, ok := sys.pos.Get(rock)
			if !ok {
				return physics.Ignore
			}
			x, y := pos.X, pos.Y
			id, err := spark.Spawn(w, "")
			if err != nil {
				log.Debug("spark skipped", zap.Error(err))
				return physics.Ignore
			}
			sys.pos.Set(id, x, y)
			_ = sys.lerp.AddLerp(id, system.PropY, y-40, 600*time.Millisecond, func(e ecs.EntityID) {
				w.TimedRemoveEntity(e)
			})
			return physics.Ignore
		},
	})
}

func restore(cfg *config.Config, store persist.Store, w *coresys.GameWorld, log *zap.Logger) (bool, error) {
	if store == nil || !cfg.Persistence.Restore {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := store.Load(ctx, cfg.Persistence.Snapshot)
	if errors.Is(err, persist.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}
	n, err := persist.Restore(w, snap)
	if err != nil {
		return false, err
	}
	log.Info("snapshot restored",
		zap.String("name", snap.Name),
		zap.Int("entities", n),
		zap.Uint64("saved_frame", snap.Frame))
	return true, nil
}

func spawnInitial(cfg *config.Config, prefabs *data.PrefabTable, w *coresys.GameWorld, log *zap.Logger) error {
	for _, sp := range cfg.Data.Spawns {
		p := prefabs.Get(sp.Prefab)
		if p == nil {
			return fmt.Errorf("spawn: unknown prefab %q", sp.Prefab)
		}
		count := max(sp.Count, 1)
		for i := 0; i < count; i++ {
			if _, err := p.Spawn(w, sp.Zone); err != nil {
				if errors.Is(err, mem.ErrOutOfMemory) {
					log.Debug("pool full, spawn skipped", zap.String("prefab", sp.Prefab))
					continue
				}
				return err
			}
		}
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
