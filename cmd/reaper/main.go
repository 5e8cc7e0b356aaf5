// Command reaper releases expired seat holds outside the API process.  It
// shares the store, cache and bus configuration of the server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	flag "github.com/spf13/pflag"

	"github.com/iliyamo/bus-seat-reservation/internal/app"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	once := flag.Bool("once", false, "run a single sweep and exit")
	interval := flag.Duration("interval", cfg.ReaperInterval, "time between sweeps")
	batch := flag.Int("batch", cfg.ReaperBatch, "maximum holds released per sweep")
	level := flag.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	cfg.ReaperInterval, cfg.ReaperBatch, cfg.LogLevel = *interval, *batch, *level
	// the reaper never serves requests
	cfg.RateLimit.Enabled = false
	logger := app.NewLogger("reaper", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalj(log.JSON{"msg": "startup failed", "error": err.Error()})
	}
	defer a.Close()

	reaper := a.Reaper
	if *once {
		n, err := reaper.Sweep(ctx)
		if err != nil {
			logger.Errorj(log.JSON{"msg": "sweep failed", "error": err.Error()})
			os.Exit(1)
		}
		logger.Infoj(log.JSON{"msg": "sweep done", "released": n})
		return
	}
	logger.Infoj(log.JSON{"msg": "reaper started", "interval": cfg.ReaperInterval.String(), "batch": cfg.ReaperBatch})
	if err := reaper.Run(ctx); err != nil {
		logger.Errorj(log.JSON{"msg": "reaper stopped", "error": err.Error()})
		os.Exit(1)
	}
}
