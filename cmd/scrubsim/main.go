// scrubsim drives a scripted scrub-and-play session against a running
// upstream data service and prints frame summaries. Useful for eyeballing
// composition and cache behavior without the renderer.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/mr1hm/go-outbreak-globe/internal/config"
	"github.com/mr1hm/go-outbreak-globe/internal/fetch"
	"github.com/mr1hm/go-outbreak-globe/internal/logging"
	"github.com/mr1hm/go-outbreak-globe/internal/scene"
	"github.com/mr1hm/go-outbreak-globe/internal/timeaxis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	client := fetch.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	svc := fetch.NewService(client, fetch.DefaultTTLs(), cfg.Upstream.PageSize)

	ctrl, err := timeaxis.NewController(time.Now(), cfg.Window.HistoryDays, cfg.Window.ForecastDays)
	if err != nil {
		logging.Fatalf("Failed to build time axis: %v", err)
	}

	engine := scene.NewEngine(scene.DefaultConfig(), ctrl, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		logging.Fatalf("Failed to start engine: %v", err)
	}
	defer engine.Stop()

	id, frames := engine.Broadcaster().Subscribe()
	defer engine.Broadcaster().Unsubscribe(id)

	go func() {
		for f := range frames {
			slog.Info("frame",
				"seq", f.Seq,
				"date", f.Axis.CurrentDate.Format("2006-01-02"),
				"layers", len(f.Layers),
				"loading", f.Loading,
				"errors", len(f.LayerErrors),
			)
		}
	}()

	// Scripted session: scrub to the window start, play through at 4x,
	// then jump around the middle.
	slog.Info("scrubbing to window start")
	ctrl.SetByFraction(0)
	time.Sleep(2 * time.Second)

	slog.Info("playing at 4x")
	ctrl.SetSpeed(4)
	ctrl.Play()
	time.Sleep(12 * time.Second)
	ctrl.Pause()

	slog.Info("scrubbing to midpoint")
	ctrl.SetByFraction(50)
	time.Sleep(2 * time.Second)

	for i := 0; i < 5; i++ {
		ctrl.StepForward()
		time.Sleep(300 * time.Millisecond)
	}

	snap := ctrl.Snapshot()
	slog.Info("session complete",
		"final_date", snap.CurrentDate.Format("2006-01-02"),
		"position", snap.Position,
		"cached_keys", svc.CachedKeys(),
	)
}
