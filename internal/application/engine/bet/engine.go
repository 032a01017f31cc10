// Package bet implements the wager lifecycle state machine:
// Idle → Pending → Resolving → Settled/Cancelled → Idle.
//
// Un solo mutex serializa PlaceBet, la expiración, Settle y Cancel; el balance
// y el slot del wager activo se mutan siempre bajo ese lock (orden de locks:
// engine → ledger → history). Cada expiración programada lleva un generation
// token: un timer de un wager ya cancelado o liquidado no hace nada.
package bet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/application/history"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultDuration          = 60 * time.Second
	DefaultPriceAttempts     = 3
	DefaultAttemptTimeout    = 2 * time.Second
	DefaultRetryBackoff      = 500 * time.Millisecond
	DefaultCountdownInterval = time.Second
	DefaultStaleRetries      = 5
	maxBackoff               = 10 * time.Second
)

// Motivos de cancelación.
const (
	ReasonUser                 = "user"
	ReasonPriceFeedUnavailable = "price_feed_unavailable"
	ReasonShutdown             = "shutdown"
	ReasonRestart              = "restart"
)

// ErrClosed se devuelve al usar un engine cerrado.
var ErrClosed = errors.New("bet engine closed")

// DefaultRangeBand es el semi-ancho por defecto de la banda de un range bet.
var DefaultRangeBand = decimal.NewFromInt(100)

// Config holds the engine's tunables. Zero values fall back to defaults.
type Config struct {
	Symbol            string
	Kind              domain.WagerKind
	Multiplier        decimal.Decimal
	DefaultDuration   time.Duration
	RangeBand         decimal.Decimal
	PriceAttempts     int
	StaleRetries      int // quotes anteriores a la expiración tolerados; no cuentan como intentos
	AttemptTimeout    time.Duration
	RetryBackoff      time.Duration
	CountdownInterval time.Duration
	ActiveKey         string // clave del wager activo en el KVStore
}

// Engine is one wager engine instance. Instances are independent.
type Engine struct {
	cfg      Config
	clock    ports.Clock
	feed     ports.PriceFeed
	ledger   *ledger.Ledger
	history  *history.Store
	resolver domain.Resolver
	metrics  ports.Metrics

	mu         sync.Mutex
	active     *domain.Wager
	timer      ports.Timer
	stopTick   chan struct{}
	generation uint64
	closed     bool

	subsMu   sync.RWMutex
	settled  []func(domain.SettlementEvent)
	tickSubs []func(domain.Countdown)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bet engine. metrics puede ser nil.
func New(
	clock ports.Clock,
	feed ports.PriceFeed,
	l *ledger.Ledger,
	h *history.Store,
	metrics ports.Metrics,
	cfg Config,
) *Engine {
	if cfg.Kind == "" {
		cfg.Kind = domain.KindDirection
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if !cfg.RangeBand.IsPositive() {
		cfg.RangeBand = DefaultRangeBand
	}
	if cfg.PriceAttempts <= 0 {
		cfg.PriceAttempts = DefaultPriceAttempts
	}
	if cfg.StaleRetries <= 0 {
		cfg.StaleRetries = DefaultStaleRetries
	}
	if cfg.ActiveKey == "" {
		cfg.ActiveKey = DefaultActiveKey
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = DefaultCountdownInterval
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		feed:     feed,
		ledger:   l,
		history:  h,
		resolver: domain.NewResolver(cfg.Multiplier),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Kind devuelve la variante de apuesta de este engine.
func (e *Engine) Kind() domain.WagerKind { return e.cfg.Kind }

// Symbol devuelve el símbolo sobre el que se apuesta.
func (e *Engine) Symbol() string { return e.cfg.Symbol }

// Balance devuelve el balance actual del ledger.
func (e *Engine) Balance() decimal.Decimal { return e.ledger.Balance() }

// OnSettled registra fn para recibir cada SettlementEvent (Settled o Cancelled).
// fn se llama fuera del lock del engine.
func (e *Engine) OnSettled(fn func(domain.SettlementEvent)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.settled = append(e.settled, fn)
}

// OnTick registra fn para el countdown de display.
func (e *Engine) OnTick(fn func(domain.Countdown)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.tickSubs = append(e.tickSubs, fn)
}

// Active devuelve una copia del wager Pending/Resolving, si lo hay.
func (e *Engine) Active() (domain.Wager, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return domain.Wager{}, false
	}
	return *e.active, true
}

// PlaceBet valida, captura el strike, debita el stake y programa la expiración.
// Los rechazos (stake inválido, fondos insuficientes, wager duplicado, feed
// caído) no mutan ningún estado.
func (e *Engine) PlaceBet(ctx context.Context, p domain.PlaceParams) (string, error) {
	if err := domain.ValidateStake(p.Stake); err != nil {
		return "", fmt.Errorf("bet.PlaceBet: %w", err)
	}
	duration, band, err := e.normalize(p)
	if err != nil {
		return "", fmt.Errorf("bet.PlaceBet: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", fmt.Errorf("bet.PlaceBet: %w", ErrClosed)
	}
	// Duplicado antes de tocar el ledger o el feed.
	if e.active != nil {
		id, status := e.active.ID, e.active.Status
		e.mu.Unlock()
		return "", fmt.Errorf("bet.PlaceBet: %w: wager %s is %s", domain.ErrDuplicateActiveWager, id, status)
	}
	if !e.ledger.CanAfford(p.Stake) {
		bal := e.ledger.Balance()
		e.mu.Unlock()
		return "", fmt.Errorf("bet.PlaceBet: %w: stake %s exceeds balance %s",
			domain.ErrInsufficientFunds, p.Stake.String(), bal.String())
	}

	quote, err := e.fetchOnce(ctx)
	if err != nil {
		e.mu.Unlock()
		e.metrics.PriceFetchFailed()
		return "", fmt.Errorf("bet.PlaceBet: strike: %w", err)
	}

	now := e.clock.Now()
	w := &domain.Wager{
		ID:         uuid.NewString(),
		Symbol:     e.cfg.Symbol,
		Kind:       e.cfg.Kind,
		Stake:      p.Stake,
		CreatedAt:  now,
		Duration:   duration,
		ExpiresAt:  now.Add(duration),
		Status:     domain.StatusPending,
		Payout:     decimal.Zero,
		Generation: e.generation + 1,
	}
	switch e.cfg.Kind {
	case domain.KindRange:
		w.Low = quote.Price.Sub(band)
		w.High = quote.Price.Add(band)
	default:
		w.Direction = p.Direction
		w.Strike = quote.Price
	}

	// El wager activo viaja en el mismo batch que el débito: tras un
	// reinicio RecoverActive lo encuentra y reembolsa el stake.
	if _, err := e.ledger.Debit(p.Stake, activeEntry(e.cfg.ActiveKey, *w)); err != nil {
		e.mu.Unlock()
		return "", fmt.Errorf("bet.PlaceBet: %w", err)
	}
	e.generation = w.Generation
	e.active = w

	gen := w.Generation
	e.timer = e.clock.AfterFunc(duration, func() { e.expire(gen) })
	e.startCountdownLocked(w.ID, w.ExpiresAt)
	placed := *w
	e.mu.Unlock()

	w = &placed
	e.metrics.WagerPlaced(w.Kind)
	slog.Info("bet: wager placed",
		"wager_id", w.ID,
		"label", w.Label(),
		"stake", w.Stake.String(),
		"expires_at", w.ExpiresAt.Format(time.RFC3339),
		"source", quote.Source,
	)
	return w.ID, nil
}

// Cancel cancela un wager Pending y reembolsa el stake. Si ya está
// Resolving la resolución termina normalmente; si ya terminó no hace nada.
func (e *Engine) Cancel(wagerID string) error {
	e.mu.Lock()
	if e.active == nil || e.active.ID != wagerID {
		e.mu.Unlock()
		if e.history.Contains(wagerID) {
			return nil
		}
		return fmt.Errorf("bet.Cancel: %w: %s", domain.ErrWagerNotFound, wagerID)
	}
	if e.active.Status == domain.StatusResolving {
		e.mu.Unlock()
		slog.Info("bet: cancel ignored, wager already resolving", "wager_id", wagerID)
		return nil
	}
	ev := e.cancelLocked(ReasonUser)
	e.mu.Unlock()

	e.emitSettled(ev)
	return nil
}

// Settle resuelve el wager contra quote. Es idempotente: un wager ya
// Settled/Cancelled devuelve applied=false sin efectos. Un quote observado
// antes de la expiración se rechaza con domain.ErrStaleQuote.
func (e *Engine) Settle(wagerID string, quote domain.PriceQuote) (bool, error) {
	e.mu.Lock()
	if e.active == nil || e.active.ID != wagerID {
		e.mu.Unlock()
		if e.history.Contains(wagerID) {
			return false, nil
		}
		return false, fmt.Errorf("bet.Settle: %w: %s", domain.ErrWagerNotFound, wagerID)
	}
	if err := e.checkQuoteLocked(quote); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("bet.Settle: %w", err)
	}
	ev := e.settleLocked(quote)
	e.mu.Unlock()

	e.emitSettled(ev)
	return true, nil
}

// Close para los timers y espera a las goroutines del engine. Un wager
// Pending o Resolving termina cancelado con ReasonShutdown y reembolsado.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopTimersLocked()
	var ev *domain.SettlementEvent
	if e.active != nil && e.active.Status == domain.StatusPending {
		cancelled := e.cancelLocked(ReasonShutdown)
		ev = &cancelled
	}
	e.mu.Unlock()

	if ev != nil {
		e.emitSettled(*ev)
	}
	// Uno Resolving lo cancela su propia goroutine al ver el ctx cancelado.
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) normalize(p domain.PlaceParams) (time.Duration, decimal.Decimal, error) {
	duration := p.Duration
	if duration == 0 {
		duration = e.cfg.DefaultDuration
	}
	if duration < 0 {
		return 0, decimal.Zero, fmt.Errorf("%w: duration must be positive, got %s", domain.ErrInvalidWager, duration)
	}

	band := p.Band
	switch e.cfg.Kind {
	case domain.KindDirection:
		if p.Direction != domain.DirectionUp && p.Direction != domain.DirectionDown {
			return 0, decimal.Zero, fmt.Errorf("%w: direction must be up or down, got %q", domain.ErrInvalidWager, p.Direction)
		}
	case domain.KindRange:
		if band.IsZero() {
			band = e.cfg.RangeBand
		}
		if !band.IsPositive() {
			return 0, decimal.Zero, fmt.Errorf("%w: band must be positive, got %s", domain.ErrInvalidWager, band.String())
		}
	default:
		return 0, decimal.Zero, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidWager, e.cfg.Kind)
	}
	return duration, band, nil
}

// fetchOnce captura el strike: un solo intento acotado por AttemptTimeout.
func (e *Engine) fetchOnce(ctx context.Context) (domain.PriceQuote, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	q, err := e.feed.LatestPrice(actx, e.cfg.Symbol)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: %w", domain.ErrPriceFeedUnavailable, err)
	}
	if !q.Price.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("%w: non-positive price %s", domain.ErrPriceFeedUnavailable, q.Price.String())
	}
	return q, nil
}

// expire corre en el callback del Clock. Solo transiciona Pending → Resolving;
// la resolución va en su propia goroutine para no bloquear al Clock.
func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.active == nil || e.active.Generation != gen || e.active.Status != domain.StatusPending {
		slog.Debug("bet: stale expiry ignored", "generation", gen)
		return
	}
	e.active.Status = domain.StatusResolving
	e.timer = nil
	e.stopCountdownLocked()

	w := *e.active
	slog.Info("bet: wager expired, resolving", "wager_id", w.ID)

	e.wg.Add(1)
	go e.resolve(w)
}

// resolve obtiene un precio observado en o después de ExpiresAt. Solo los
// fallos del feed consumen PriceAttempts; un quote anterior a la expiración
// se descarta aparte, hasta StaleRetries veces. Si se agota cualquiera de
// los dos presupuestos, cancela y reembolsa.
func (e *Engine) resolve(w domain.Wager) {
	defer e.wg.Done()

	var (
		lastErr  error
		failures int
		stale    int
		wait     time.Duration
	)
	for failures < e.cfg.PriceAttempts && stale < e.cfg.StaleRetries {
		if wait > 0 && !e.sleep(wait) {
			lastErr = e.ctx.Err()
			break
		}

		actx, cancel := context.WithTimeout(e.ctx, e.cfg.AttemptTimeout)
		q, err := e.resolutionQuote(actx, w)
		cancel()

		if err == nil && !q.Price.IsPositive() {
			err = fmt.Errorf("non-positive price %s", q.Price.String())
		}
		if err != nil {
			failures++
			e.metrics.PriceFetchFailed()
			lastErr = err
			wait = e.backoff(failures + 1)
			slog.Warn("bet: price fetch failed", "wager_id", w.ID, "attempt", failures, "err", err)
			continue
		}
		if q.ObservedBefore(w.ExpiresAt) {
			stale++
			e.metrics.StaleQuote()
			lastErr = domain.ErrStaleQuote
			wait = e.cfg.RetryBackoff
			slog.Warn("bet: stale quote discarded",
				"wager_id", w.ID,
				"discarded", stale,
				"observed_at", q.ObservedAt.Format(time.RFC3339Nano),
				"expires_at", w.ExpiresAt.Format(time.RFC3339Nano),
			)
			continue
		}

		e.mu.Lock()
		if !e.ownsLocked(w) {
			e.mu.Unlock()
			return
		}
		ev := e.settleLocked(q)
		e.mu.Unlock()
		e.emitSettled(ev)
		return
	}

	reason := ReasonPriceFeedUnavailable
	if e.ctx.Err() != nil {
		reason = ReasonShutdown
	}

	e.mu.Lock()
	if !e.ownsLocked(w) {
		e.mu.Unlock()
		return
	}
	slog.Error("bet: resolution failed, refunding",
		"wager_id", w.ID,
		"failures", failures,
		"stale", stale,
		"err", fmt.Errorf("%w: %w", domain.ErrPriceFeedUnavailable, lastErr),
	)
	ev := e.cancelLocked(reason)
	e.mu.Unlock()
	e.emitSettled(ev)
}

// resolutionQuote pide un quote en o después de ExpiresAt. Un feed con caché
// se salta la caché si el quote cacheado es anterior.
func (e *Engine) resolutionQuote(ctx context.Context, w domain.Wager) (domain.PriceQuote, error) {
	if f, ok := e.feed.(ports.FreshPriceFeed); ok {
		return f.PriceSince(ctx, w.Symbol, w.ExpiresAt)
	}
	return e.feed.LatestPrice(ctx, w.Symbol)
}

// ownsLocked reports whether w is still the active wager, same generation.
func (e *Engine) ownsLocked(w domain.Wager) bool {
	return e.active != nil && e.active.ID == w.ID && e.active.Generation == w.Generation
}

func (e *Engine) checkQuoteLocked(q domain.PriceQuote) error {
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: resolved price must be positive, got %s", domain.ErrInvalidWager, q.Price.String())
	}
	if q.ObservedBefore(e.active.ExpiresAt) {
		e.metrics.StaleQuote()
		return fmt.Errorf("%w: observed %s, expires %s", domain.ErrStaleQuote,
			q.ObservedAt.Format(time.RFC3339Nano), e.active.ExpiresAt.Format(time.RFC3339Nano))
	}
	return nil
}

// settleLocked aplica el resultado y hace el commit único: crédito + balance +
// historial en un solo batch.
func (e *Engine) settleLocked(q domain.PriceQuote) domain.SettlementEvent {
	w := e.active
	out := e.resolver.Resolve(*w, q.Price)

	w.Status = domain.StatusSettled
	w.Result = out.Result()
	w.ResolvedPrice = q.Price
	w.ResolvedAt = q.ObservedAt
	w.Payout = out.Payout
	w.SettledAt = e.clock.Now()

	e.stopTimersLocked()
	entry := e.history.Prepend(w.Record())
	balance := e.ledger.Commit(out.Payout, entry, clearActive(e.cfg.ActiveKey))
	e.active = nil

	e.metrics.WagerSettled(w.Result)
	slog.Info("bet: wager settled",
		"wager_id", w.ID,
		"result", w.Result,
		"resolved_price", q.Price.String(),
		"payout", w.Payout.String(),
		"balance", balance.String(),
	)
	return domain.SettlementEvent{
		WagerID:       w.ID,
		Status:        w.Status,
		Result:        w.Result,
		Stake:         w.Stake,
		Payout:        w.Payout,
		ResolvedPrice: w.ResolvedPrice,
		Balance:       balance,
		At:            w.SettledAt,
	}
}

// cancelLocked marca Cancelled y reembolsa el stake en el mismo commit.
func (e *Engine) cancelLocked(reason string) domain.SettlementEvent {
	w := e.active
	w.Status = domain.StatusCancelled
	w.Result = domain.ResultNone
	w.Payout = decimal.Zero
	w.CancelReason = reason
	w.SettledAt = e.clock.Now()

	e.stopTimersLocked()
	entry := e.history.Prepend(w.Record())
	balance := e.ledger.Commit(w.Stake, entry, clearActive(e.cfg.ActiveKey))
	e.active = nil

	e.metrics.WagerCancelled(reason)
	slog.Info("bet: wager cancelled",
		"wager_id", w.ID,
		"reason", reason,
		"refund", w.Stake.String(),
		"balance", balance.String(),
	)
	return domain.SettlementEvent{
		WagerID:       w.ID,
		Status:        w.Status,
		Result:        domain.ResultNone,
		Stake:         w.Stake,
		Payout:        decimal.Zero,
		ResolvedPrice: decimal.Zero,
		Balance:       balance,
		Reason:        reason,
		At:            w.SettledAt,
	}
}

func (e *Engine) stopTimersLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.stopCountdownLocked()
}

func (e *Engine) startCountdownLocked(id string, expiresAt time.Time) {
	stop := make(chan struct{})
	e.stopTick = stop
	ticker := e.clock.NewTicker(e.cfg.CountdownInterval)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-e.ctx.Done():
				return
			case now := <-ticker.C():
				remaining := expiresAt.Sub(now)
				if remaining < 0 {
					remaining = 0
				}
				e.emitTick(domain.Countdown{WagerID: id, Remaining: remaining, ExpiresAt: expiresAt})
			}
		}
	}()
}

func (e *Engine) stopCountdownLocked() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.RetryBackoff << (attempt - 2)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// sleep espera d en el Clock del engine. Devuelve false si el engine se
// cerró mientras esperaba.
func (e *Engine) sleep(d time.Duration) bool {
	done := make(chan struct{})
	t := e.clock.AfterFunc(d, func() { close(done) })
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Engine) emitSettled(ev domain.SettlementEvent) {
	e.subsMu.RLock()
	subs := make([]func(domain.SettlementEvent), len(e.settled))
	copy(subs, e.settled)
	e.subsMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (e *Engine) emitTick(c domain.Countdown) {
	e.subsMu.RLock()
	subs := make([]func(domain.Countdown), len(e.tickSubs))
	copy(subs, e.tickSubs)
	e.subsMu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}
