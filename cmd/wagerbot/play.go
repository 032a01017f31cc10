package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wagerbot/config"
	"github.com/alejandrodnm/wagerbot/internal/adapters/events"
	"github.com/alejandrodnm/wagerbot/internal/adapters/metrics"
	"github.com/alejandrodnm/wagerbot/internal/adapters/notify"
	"github.com/alejandrodnm/wagerbot/internal/adapters/pricefeed"
	"github.com/alejandrodnm/wagerbot/internal/application/engine"
	"github.com/alejandrodnm/wagerbot/internal/application/engine/bet"
	"github.com/alejandrodnm/wagerbot/internal/application/history"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
	"github.com/alejandrodnm/wagerbot/internal/application/persist"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
)

const (
	publishTimeout  = 5 * time.Second
	flushTimeout    = 5 * time.Second
	resolveDeadline = 30 * time.Second
	simStartPrice   = 69000
	simSeed         = 1
)

var (
	_ engine.Service            = (*bet.Engine)(nil)
	_ engine.CountdownSource    = (*bet.Engine)(nil)
	_ ports.SettlementPublisher = (*notify.Console)(nil)
	_ ports.SettlementPublisher = (*events.KafkaPublisher)(nil)
	_ ports.PriceFeed           = (*pricefeed.Poller)(nil)
)

type playDeps struct {
	cfg     *config.Config
	dryRun  bool
	clock   ports.Clock
	ledger  *ledger.Ledger
	history *history.Store
	writer  *persist.Writer
	metrics *metrics.Prometheus
	console *notify.Console
}

// runPlay coloca un wager, muestra la cuenta atrás y espera la liquidación.
// Ctrl+C cancela el wager si aún está Pending. Devuelve el exit code.
func runPlay(ctx context.Context, d playDeps, params domain.PlaceParams) int {
	feed, runners := buildFeed(d.cfg, d.dryRun, d.clock)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	for _, run := range runners {
		go run(feedCtx)
	}

	poller := pricefeed.NewPoller(feed, d.cfg.Engine.Symbol, d.clock, d.cfg.PollInterval(), d.cfg.MaxQuoteAge())
	poller.OnQuote(d.console.PrintQuote)
	go poller.Run(feedCtx)

	kind, err := domain.ParseKind(d.cfg.Engine.Kind)
	if err != nil {
		d.console.PrintError(err)
		return 1
	}

	eng := bet.New(d.clock, poller, d.ledger, d.history, d.metrics, bet.Config{
		Symbol:            d.cfg.Engine.Symbol,
		Kind:              kind,
		Multiplier:        d.cfg.Multiplier(),
		DefaultDuration:   d.cfg.DefaultDuration(),
		RangeBand:         d.cfg.RangeBand(),
		PriceAttempts:     d.cfg.Engine.PriceAttempts,
		AttemptTimeout:    d.cfg.AttemptTimeout(),
		RetryBackoff:      d.cfg.RetryBackoff(),
		CountdownInterval: d.cfg.CountdownInterval(),
	})
	defer eng.Close()

	publishers := []ports.SettlementPublisher{d.console}
	if len(d.cfg.Events.KafkaBrokers) > 0 && !d.dryRun {
		kp, err := events.NewKafkaPublisher(d.cfg.Events.KafkaBrokers, d.cfg.Events.KafkaTopic)
		if err != nil {
			slog.Warn("kafka disabled", "err", err)
		} else {
			defer kp.Close()
			publishers = append(publishers, kp)
		}
	}

	settled := make(chan domain.SettlementEvent, 1)
	subscribe(eng, publishers, settled)
	eng.OnTick(d.console.PrintCountdown)

	id, err := eng.PlaceBet(ctx, params)
	if err != nil {
		d.console.PrintError(err)
		return 1
	}
	if w, ok := eng.Active(); ok {
		d.console.PrintPlaced(w, engine.FormatMoney(eng.Balance()))
	}

	var ev domain.SettlementEvent
	select {
	case ev = <-settled:
	case <-ctx.Done():
		slog.Info("interrupted, cancelling wager", "wager_id", id)
		if err := eng.Cancel(id); err != nil {
			slog.Warn("cancel failed", "wager_id", id, "err", err)
		}
		if w, ok := eng.Active(); ok && w.Status == domain.StatusResolving {
			d.console.PrintResolving(id)
		}
		select {
		case ev = <-settled:
		case <-time.After(resolveDeadline):
			slog.Error("no settlement before deadline", "wager_id", id)
		}
	}

	eng.Close()
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := d.writer.Flush(flushCtx); err != nil {
		slog.Warn("persistence flush incomplete", "err", err)
	}
	slog.Info("wager finished", "wager_id", ev.WagerID, "status", ev.Status, "result", ev.Result)
	return 0
}

// subscribe conecta el engine con los publishers. Solo depende de engine.Service.
func subscribe(svc engine.Service, publishers []ports.SettlementPublisher, settled chan<- domain.SettlementEvent) {
	svc.OnSettled(func(ev domain.SettlementEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		for _, p := range publishers {
			if err := p.PublishSettlement(ctx, ev); err != nil {
				slog.Warn("publish settlement failed", "wager_id", ev.WagerID, "err", err)
			}
		}
		select {
		case settled <- ev:
		default:
		}
	})
}

// buildFeed devuelve el feed configurado y las goroutines que necesita.
func buildFeed(cfg *config.Config, dryRun bool, clk ports.Clock) (ports.PriceFeed, []func(context.Context)) {
	source := cfg.Feed.Source
	if dryRun {
		source = "sim"
	}

	rest := func(name string) ports.PriceFeed {
		return pricefeed.NewClient(cfg.Feed.RESTBase, cfg.Feed.RatePerSec).WithClock(clk).WithSource(name)
	}

	switch source {
	case "sim":
		return pricefeed.NewRandomWalk(clk, decimal.NewFromInt(simStartPrice), 0, simSeed), nil
	case "stream":
		s := pricefeed.NewStream(cfg.Feed.StreamURL, cfg.Engine.Symbol)
		return s, []func(context.Context){runStream(s)}
	case "composite":
		s := pricefeed.NewStream(cfg.Feed.StreamURL, cfg.Engine.Symbol)
		return pricefeed.NewComposite(rest("rest"), s), []func(context.Context){runStream(s)}
	default:
		return rest("rest"), nil
	}
}

func runStream(s *pricefeed.Stream) func(context.Context) {
	return func(ctx context.Context) {
		if err := s.Run(ctx); err != nil {
			slog.Error("price stream stopped", "err", err)
		}
	}
}

func placeParams(stake, direction string, duration time.Duration, band float64) (domain.PlaceParams, error) {
	amount, err := domain.ParseStake(stake)
	if err != nil {
		return domain.PlaceParams{}, err
	}
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return domain.PlaceParams{}, err
	}
	if duration < 0 {
		return domain.PlaceParams{}, fmt.Errorf("%w: negative duration %s", domain.ErrInvalidWager, duration)
	}
	if band < 0 {
		return domain.PlaceParams{}, errors.New("band must not be negative")
	}
	return domain.PlaceParams{
		Stake:     amount,
		Direction: dir,
		Duration:  duration,
		Band:      decimal.NewFromFloat(band),
	}, nil
}
