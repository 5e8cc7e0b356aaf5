// Package app assembles the stores, cache, bus and services selected by
// the configuration.  Both binaries build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-seat-reservation/internal/cache"
	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// App holds the assembled components.  Close releases them in reverse
// order of creation.
type App struct {
	Config       config.Config
	Logger       *log.Logger
	DB           *sql.DB       // nil with the memory store
	Redis        *redis.Client // nil when Redis is unreachable
	Memory       *repository.MemoryStore
	Bus          queue.Bus
	Cache        cache.Store
	Availability *service.AvailabilityCache
	Avail        *service.AvailabilityService
	Reaper       *service.Reaper
	Seats        *service.SeatMapService

	closers []func() error
}

type stores struct {
	trips    service.TripCatalog
	locks    service.SeatLockStore
	counters service.AvailabilityCounter
	bookings service.BookingStore
}

// ParseLevel maps LOG_LEVEL values to gommon levels.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// NewLogger returns the process logger configured from cfg.
func NewLogger(prefix string, cfg config.Config) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(ParseLevel(cfg.LogLevel))
	return l
}

// New wires every component.  On error whatever was already opened is
// closed.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	if a.Config.Cache.Backend == "redis" || a.Config.PubSubBackend == config.PubSubRedis || a.Config.RateLimit.Enabled {
		a.Redis = config.NewRedisClient(a.Config.Redis)
		if a.Redis == nil {
			a.Logger.Warnj(log.JSON{"msg": "redis unreachable", "addr": a.Config.Redis.Addr})
		} else {
			a.closers = append(a.closers, a.Redis.Close)
		}
	}

	a.Cache = a.newCache()
	if a.Bus, err = a.newBus(); err != nil {
		return err
	}
	a.closers = append(a.closers, a.Bus.Close)

	a.Availability = service.NewAvailabilityCache(a.Cache, st.counters,
		service.WithCacheTTL(a.Config.Cache.TTL), service.WithCacheLogger(a.Logger))
	a.Avail = service.NewAvailabilityService(a.Availability, st.counters)
	a.Reaper = service.NewReaper(st.locks, a.Availability, a.Bus,
		service.WithReaperInterval(a.Config.ReaperInterval),
		service.WithReaperBatch(a.Config.ReaperBatch),
		service.WithReaperLogger(a.Logger))
	a.Seats = service.NewSeatMapService(service.SeatMapDeps{
		Trips:        st.trips,
		Locks:        st.locks,
		Bookings:     st.bookings,
		Availability: a.Availability,
		Reaper:       a.Reaper,
		Cache:        a.Cache,
		Publisher:    a.Bus,
		Subscriber:   a.Bus,
	},
		service.WithHoldTTL(a.Config.HoldTTL),
		service.WithChannelTokens(a.Config.JWTSecret, a.Config.ChannelTokenTTL),
		service.WithLiveURL(a.Config.LiveURL),
		service.WithSeatMapLogger(a.Logger))
	return nil
}

func (a *App) openStore(ctx context.Context) (stores, error) {
	switch a.Config.StoreDriver {
	case config.StoreMemory:
		a.Memory = repository.NewMemoryStore()
		return stores{trips: a.Memory, locks: a.Memory, counters: a.Memory, bookings: a.Memory}, nil
	case config.StoreMySQL:
		db, err := database.Open(a.Config.DBUser, a.Config.DBPass, a.Config.DBHost, a.Config.DBPort, a.Config.DBName)
		if err != nil {
			return stores{}, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		if a.Config.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return stores{}, err
			}
			a.Logger.Infoj(log.JSON{"msg": "schema migrated"})
		}
		return stores{
			trips:    repository.NewTripRepo(db),
			locks:    repository.NewSeatLockRepo(db),
			counters: repository.NewTripCounterRepo(db),
			bookings: repository.NewBookingRepo(db),
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
}

func (a *App) newCache() cache.Store {
	if !a.Config.Cache.Enabled {
		return nil
	}
	if a.Config.Cache.Backend == "redis" && a.Redis != nil {
		return cache.NewRedisStore(a.Redis, a.Config.Cache.Prefix)
	}
	return cache.NewMemoryStore()
}

func (a *App) newBus() (queue.Bus, error) {
	switch a.Config.PubSubBackend {
	case config.PubSubRedis:
		if a.Redis == nil {
			return nil, errors.New("redis pub/sub selected but redis is unreachable")
		}
		return queue.NewRedisBus(a.Redis, queue.DefaultBuffer, a.Logger), nil
	case config.PubSubAMQP:
		return queue.NewAMQPBus(a.Config.RabbitMQURL, queue.DefaultExchange, queue.DefaultBuffer, a.Logger)
	}
	return queue.NewHub(queue.DefaultBuffer, a.Logger), nil
}

// EventLog returns the seat event log consumer, or nil when it is disabled
// or the bus is not RabbitMQ.
func (a *App) EventLog() *queue.EventLogConsumer {
	if !a.Config.SeatEventLog || a.Config.PubSubBackend != config.PubSubAMQP {
		return nil
	}
	return &queue.EventLogConsumer{
		URL:      a.Config.RabbitMQURL,
		Exchange: queue.DefaultExchange,
		Path:     a.Config.SeatEventLogPath,
		Logger:   a.Logger,
	}
}

// Pingers lists the dependencies checked by /readyz.
func (a *App) Pingers() map[string]handler.Pinger {
	out := map[string]handler.Pinger{}
	if a.DB != nil {
		out["mysql"] = a.DB
	}
	if a.Redis != nil {
		rdb := a.Redis
		out["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return out
}

// Close releases every opened resource.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
