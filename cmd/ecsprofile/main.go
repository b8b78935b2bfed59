// Profiling:
// go build ./cmd/ecsprofile
// ./ecsprofile -mode mem
// go tool pprof -http=":8000" -nodefraction=0.001 ./ecsprofile mem.pprof

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/gameworld/internal/component"
	"github.com/l1jgo/gameworld/internal/core/ecs"
	"github.com/l1jgo/gameworld/internal/core/mem"
	coresys "github.com/l1jgo/gameworld/internal/core/system"
	"github.com/l1jgo/gameworld/internal/render"
	"github.com/l1jgo/gameworld/internal/spatial"
	"github.com/l1jgo/gameworld/internal/system"
	"github.com/pkg/profile"
)

func main() {
	mode := flag.String("mode", "mem", "profile mode: mem or cpu")
	rounds := flag.Int("rounds", 20, "worlds built")
	frames := flag.Int("frames", 500, "frames per world")
	churn := flag.Int("churn", 200, "entities created and removed per frame")
	flag.Parse()

	var opt func(*profile.Profile)
	switch *mode {
	case "mem":
		opt = profile.MemProfileAllocs
	case "cpu":
		opt = profile.CPUProfile
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
	err := run(*rounds, *frames, *churn)
	p.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run spawns and removes moving sprites every frame, clearing the level
// zone at the end of each round, so pools, the quad-tree and the removal
// queue all see steady churn.
func run(rounds, frames, churn int) error {
	bounds := spatial.Rect{MinX: -2048, MinY: -2048, MaxX: 2048, MaxY: 2048}
	order := []string{system.PositionName, system.VelocityName, system.RendererName}
	for r := 0; r < rounds; r++ {
		opts := mem.Options{BlockSize: 256}
		pos, err := system.NewPositionSystem(opts)
		if err != nil {
			return err
		}
		vel, err := system.NewVelocitySystem(opts, pos, nil)
		if err != nil {
			return err
		}
		rnd, err := system.NewRendererSystem(system.RendererOptions{
			Pool:     opts,
			Bounds:   bounds,
			Viewport: spatial.Rect{MaxX: 1280, MaxY: 720},
		}, pos, nil, render.NewRecorder(), nil)
		if err != nil {
			return err
		}
		w := coresys.New(nil, nil)
		if err := w.Register(pos, vel, rnd); err != nil {
			return err
		}
		level, err := w.Zones().Create("level", churn*4)
		if err != nil {
			return err
		}

		var live []ecs.EntityID
		for f := 0; f < frames; f++ {
			for i := 0; i < churn; i++ {
				x := float64((f*churn + i) % 1500)
				id, err := w.InitEntityInZone(level, map[string]any{
					system.PositionName: component.PositionConfig{X: x, Y: float64(i % 700)},
					system.VelocityName: component.VelocityConfig{VX: 30, VY: -10},
					system.RendererName: component.RendererConfig{Texture: "dot", Width: 4, Height: 4},
				}, order)
				if err != nil {
					return err
				}
				live = append(live, id)
			}
			// Remove the oldest half of what is alive.
			drop := len(live) / 2
			for _, id := range live[:drop] {
				w.TimedRemoveEntity(id)
			}
			live = live[drop:]
			w.Update(16 * time.Millisecond)
			w.Draw()
		}
		if _, err := w.ClearZone(level); err != nil {
			return err
		}
	}
	return nil
}
