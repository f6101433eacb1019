package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/signal-hexgrid/internal/cache"
	"github.com/mohammed-shakir/signal-hexgrid/internal/cache/keys"
	"github.com/mohammed-shakir/signal-hexgrid/internal/cache/lrustore"
	"github.com/mohammed-shakir/signal-hexgrid/internal/cache/redisstore"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/config"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/executor"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/health"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/observability"
	"github.com/mohammed-shakir/signal-hexgrid/internal/core/server"
	"github.com/mohammed-shakir/signal-hexgrid/internal/hexgrid"
	"github.com/mohammed-shakir/signal-hexgrid/internal/logger"
	h3mapper "github.com/mohammed-shakir/signal-hexgrid/internal/mapper/h3"
	"github.com/mohammed-shakir/signal-hexgrid/internal/measurement"
	"github.com/mohammed-shakir/signal-hexgrid/internal/metrics"
	"github.com/mohammed-shakir/signal-hexgrid/internal/queryevents"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	dataFlag := flag.String("data", "", "measurement CSV path (overrides DATA_PATH)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *dataFlag != "" {
		cfg.DataPath = strings.TrimSpace(*dataFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "hexgrid-server",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting hexgrid server",
		"addr", cfg.Addr,
		"version", Version,
		"data", cfg.DataPath,
		"match_mode", cfg.DefaultMatchMode,
		"cache", cfg.Cache.Driver)

	set, stats, err := measurement.LoadFile(cfg.DataPath)
	if err != nil {
		appLog.Error("failed to load measurements", "path", cfg.DataPath, "err", err)
		return 1
	}
	observability.SetMeasurements(stats.Loaded, stats.Dropped)
	appLog.Info("measurements loaded",
		"rows", stats.Rows,
		"loaded", stats.Loaded,
		"dropped", stats.Dropped,
		"fingerprint", fmt.Sprintf("%016x", set.Fingerprint()))
	ready := &health.Dataset{}
	ready.MarkLoaded(set.Len())

	engineOpts := []hexgrid.Option{
		hexgrid.WithMaxCells(cfg.MaxCells),
		hexgrid.WithDefaultHexSize(cfg.DefaultHexSizeKm),
	}
	if cfg.H3Res >= 0 {
		m, err := h3mapper.New(cfg.H3Res)
		if err != nil {
			appLog.Error("invalid H3 resolution", "res", cfg.H3Res, "err", err)
			return 1
		}
		engineOpts = append(engineOpts, hexgrid.WithCellLabeler(m))
	}
	engine := hexgrid.New(set, engineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	execOpts := []executor.Option{}

	store, closeStore, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		appLog.Error("cache setup failed", "driver", cfg.Cache.Driver, "err", err)
		return 1
	}
	defer closeStore()
	if store != nil {
		execOpts = append(execOpts, executor.WithCache(
			cache.WithTimeout(store, cfg.Cache.OpTimeout),
			cfg.Cache.TTL,
			keys.Scope(set.Fingerprint(), cfg.H3Res, cfg.DefaultHexSizeKm),
		))
	}

	if cfg.Events.Enabled {
		pub, err := queryevents.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Queue,
			queryevents.WithLogger(zl.With().Str("component", "queryevents").Logger()))
		if err != nil {
			appLog.Error("query events setup failed", "brokers", cfg.Events.Brokers, "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("query events close", "err", err)
			}
		}()
		execOpts = append(execOpts, executor.WithPublisher(pub))
		appLog.Info("query events enabled", "topic", cfg.Events.Topic)
	}

	exec := executor.New(appLog, engine, execOpts...)

	if cfg.Metrics.Enabled {
		startMetrics(ctx, cfg.Metrics, appLog)
	}

	if err := server.Run(ctx, cfg, appLog, exec, ready); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func buildCache(ctx context.Context, cfg config.CacheCfg) (cache.Interface, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "", "none":
		return nil, noop, nil
	case "lru":
		s, err := lrustore.New(cfg.LRUSize)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		c, err := redisstore.New(pingCtx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache driver %q (want none|lru|redis)", cfg.Driver)
	}
}

func startMetrics(ctx context.Context, cfg config.MetricsCfg, log *slog.Logger) {
	p := metrics.Init(metrics.Config{
		Enabled: true,
		Addr:    cfg.Addr,
		Path:    cfg.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, p.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("metrics listen", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", "err", err)
		}
	}()
}
