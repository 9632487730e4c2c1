package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbwatch/internal/arbitrage"
	"arbwatch/internal/broadcast"
	"arbwatch/internal/config"
	"arbwatch/internal/database"
	"arbwatch/internal/events"
	"arbwatch/internal/exchange"
	"arbwatch/internal/metrics"
	"arbwatch/internal/model"
	"arbwatch/internal/server"
	"arbwatch/internal/server/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := newLogger(cfg.Log.Level)
	if err := run(cfg, logger); err != nil {
		logger.Error("arbwatch exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// snapshot is sent to every dashboard client when it connects.
type snapshot struct {
	Stats      arbitrage.Stats         `json:"stats"`
	Triangular arbitrage.TriangleStats `json:"triangular"`
	Triangles  []model.TriangleConfig  `json:"triangles"`
	TestOrders struct {
		Enabled bool     `json:"enabled"`
		Logs    []string `json:"logs"`
	} `json:"testOrders"`
}

type countsFunc func() (int, int)

func (f countsFunc) Counts() (int, int) { return f() }

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collected := metrics.NewCollectors(reg)

	// Sinks are built before the engine; closures below read engine once it is set.
	var engine *arbitrage.ArbitrageEngine

	hub := ws.NewHub(logger, cfg.Server.CORSOrigins, func() any {
		var s snapshot
		s.Stats = engine.Stats()
		s.Triangular = engine.TriangleStats()
		s.Triangles = engine.Triangles().List()
		s.TestOrders.Enabled = engine.TestOrders().Armed()
		s.TestOrders.Logs = engine.TestOrders().LogLines(arbitrage.TestOrderBroadcast)
		return s
	})

	var sinks events.Multi
	var workers []*events.Async
	addSink := func(name string, h events.Handler) {
		a := events.NewAsync(name, cfg.Engine.EventBuffer, h, logger)
		metrics.RegisterDropped(reg, name, a)
		sinks = append(sinks, a)
		workers = append(workers, a)
	}

	addSink("ws", hub)
	addSink("metrics", collected.Handler(countsFunc(func() (int, int) {
		return engine.Triangles().Counts()
	})))

	// API rate limiting is shared through Redis when it is reachable.
	var limiter server.RateLimiter
	if cfg.Redis.Enabled {
		pub, err := broadcast.NewRedisPublisher(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, broadcast disabled", "error", err)
		} else {
			defer pub.Close()
			addSink("redis", pub)
			limiter = pub.RateLimiter()
			logger.Info("Publishing events to Redis", "addr", cfg.Redis.Addr, "channel", pub.Channel())
		}
	}

	if cfg.Database.Enabled {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database)
		if err != nil {
			logger.Warn("Database unavailable, journal disabled", "error", err)
		} else {
			defer repo.Close()
			addSink("journal", database.NewJournal(repo, logger))
			logger.Info("Journaling opportunities to Postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		}
	}

	engine = arbitrage.NewArbitrageEngine(logger, sinks, &cfg)
	total, enabled := engine.Triangles().Counts()
	logger.Info("Arbitrage engine ready",
		"triangles", total,
		"enabledTriangles", enabled,
		"minArbitragePercent", cfg.Engine.MinArbitragePercent,
		"minVolumeUSD", cfg.Engine.MinVolumeUSD,
	)

	for _, w := range workers {
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return metrics.Serve(ctx, cfg.Metrics.Addr, reg, logger) })

	// Adapters share one channel drained by a single goroutine.
	priceChan := make(chan model.PriceQuote, 1024)
	for name, exCfg := range cfg.Exchanges {
		if !exCfg.Enabled {
			continue
		}
		client, err := exchange.NewClient(name, logger, engine, exCfg)
		if err != nil {
			logger.Warn("Skipping exchange", "exchange", name, "error", err)
			continue
		}
		instruments := exchange.Instruments(exCfg.Symbols, triangleLegs(engine.Triangles().List(), name))
		logger.Info("Starting exchange stream", "exchange", name, "instruments", len(instruments))
		g.Go(func() error { return client.StartStream(ctx, priceChan, instruments) })
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case q := <-priceChan:
				engine.OnPriceUpdate(q)
			}
		}
	})

	srv := server.NewServer(cfg.Server, server.NewAPI(engine, logger), hub.HandleWS, limiter, logger)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("arbwatch stopped")
	return err
}

// triangleLegs lists the instruments every triangle on venue needs,
// enabled or not, so toggling one on later finds its prices already flowing.
func triangleLegs(triangles []model.TriangleConfig, venue string) []string {
	var legs []string
	for _, t := range triangles {
		if t.Exchange != venue {
			continue
		}
		ac, ba, bc := t.Legs()
		legs = append(legs, ac, ba, bc)
	}
	return legs
}
