package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/wagerbot/config"
	"github.com/alejandrodnm/wagerbot/internal/adapters/clock"
	"github.com/alejandrodnm/wagerbot/internal/adapters/metrics"
	"github.com/alejandrodnm/wagerbot/internal/adapters/notify"
	"github.com/alejandrodnm/wagerbot/internal/adapters/storage"
	"github.com/alejandrodnm/wagerbot/internal/application/engine/bet"
	"github.com/alejandrodnm/wagerbot/internal/application/history"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
	"github.com/alejandrodnm/wagerbot/internal/application/persist"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file (.yaml or .toml)")
	dryRun := flag.Bool("dry-run", false, "simulated price feed and in-memory storage")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	kind := flag.String("kind", "", "wager kind: direction|range (overrides config)")
	direction := flag.String("direction", "up", "direction bets: up|down")
	stake := flag.String("stake", "100", "stake amount")
	duration := flag.Duration("duration", 0, "wager duration, e.g. 60s (default from config)")
	band := flag.Float64("band", 0, "range bets: half-width of the band (default from config)")
	report := flag.Bool("report", false, "print history report and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *kind != "" {
		cfg.Engine.Kind = *kind
	}
	setupLogger(cfg.Log)

	slog.Info("wagerbot starting",
		"config", *configPath,
		"symbol", cfg.Engine.Symbol,
		"kind", cfg.Engine.Kind,
		"feed", cfg.Feed.Source,
		"storage", cfg.Storage.Driver,
		"dry_run", *dryRun,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store ports.KVStore
	if *dryRun {
		store = storage.NewMemory()
	} else {
		openCtx, openCancel := context.WithTimeout(ctx, 10*time.Second)
		store, err = storage.Open(openCtx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.RedisAddr, cfg.Storage.KeyPrefix)
		openCancel()
		if err != nil {
			slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
			os.Exit(1)
		}
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Port != "" {
		srv := metrics.StartServer(cfg.Metrics.Port, reg, func(ctx context.Context) error {
			_, _, err := store.Get(ctx, ledger.DefaultKey)
			return err
		})
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	writer := persist.NewWriter(store, persist.WithMetrics(m))
	defer writer.Close()

	l := ledger.Restore(ctx, store, ledger.DefaultKey, cfg.InitialBalance(), writer)
	h := history.Load(ctx, store, history.DefaultKey, writer)
	console := notify.NewConsole()

	// Un wager que quedó activo en la ejecución anterior se reembolsa antes de nada.
	if ev, ok, err := bet.RecoverActive(ctx, store, bet.DefaultActiveKey, l, h, clock.New(), m); err != nil {
		slog.Error("failed to recover active wager", "err", err)
	} else if ok {
		_ = console.PublishSettlement(ctx, ev)
	}

	if *report {
		printReport(console, h, l, cfg)
		return
	}

	params, err := placeParams(*stake, *direction, *duration, *band)
	if err != nil {
		console.PrintError(err)
		os.Exit(1)
	}

	code := runPlay(ctx, playDeps{
		cfg:     cfg,
		dryRun:  *dryRun,
		clock:   clock.New(),
		ledger:  l,
		history: h,
		writer:  writer,
		metrics: m,
		console: console,
	}, params)

	printReport(console, h, l, cfg)
	if code != 0 {
		writer.Close()
		os.Exit(code)
	}
	slog.Info("wagerbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
