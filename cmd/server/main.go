package main // Entry point of the seat inventory API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/bus-seat-reservation/internal/app"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()
	logger := app.NewLogger("bus-seat", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalj(log.JSON{"msg": "startup failed", "error": err.Error()})
	}
	defer a.Close()

	if a.Memory != nil {
		if err := app.SeedDemo(a.Memory, 3, time.Now()); err != nil {
			logger.Fatalj(log.JSON{"msg": "seed failed", "error": err.Error()})
		}
		logger.Warnj(log.JSON{"msg": "using in-memory store with demo trips", "trips": 3})
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	live := handler.NewLiveHandler(a.Seats)
	router.Register(e, router.Handlers{
		Seats:        handler.NewSeatHandler(a.Seats),
		Availability: handler.NewAvailabilityHandler(a.Avail),
		Admin:        handler.NewAdminHandler(a.Seats, a.Avail),
		Live:         live,
		Ready:        handler.Ready(a.Pingers()),
	}, cfg.JWTSecret, middleware.RateLimit(cfg.RateLimit, a.Redis))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Reaper.Run(gctx) })
	if consumer := a.EventLog(); consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Infoj(log.JSON{"msg": "listening", "addr": addr, "env": cfg.Env, "store": cfg.StoreDriver, "pubsub": cfg.PubSubBackend})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorj(log.JSON{"msg": "server stopped", "error": err.Error()})
		os.Exit(1)
	}
	logger.Infoj(log.JSON{"msg": "shutdown complete"})
}
