package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"FxPilot/internal/domain/models"
	domrepo "FxPilot/internal/domain/repository"
	"FxPilot/internal/feed"
	"FxPilot/internal/predictor"
	"FxPilot/internal/trading"
	"FxPilot/pkg/logger"
)

// ErrExhausted is returned once the walk-forward sequence has emitted its
// future prediction and no further steps remain.
var ErrExhausted = errors.New("prediction sequence exhausted")

// StepResult is one advance: the emission, the trades it produced and the
// portfolio performance after them. Performance is omitted for the future
// emission, which trades but has no realized outcome yet.
type StepResult struct {
	Emission    *models.PredictionEmission `json:"prediction"`
	Trades      []models.TradeRecord       `json:"trades"`
	Performance *models.PerformanceStats   `json:"performance,omitempty"`
}

// Status is the operational snapshot served by the status endpoint.
type Status struct {
	Index              int                              `json:"current_index"`
	Total              int                              `json:"total_days"`
	FirstDate          string                           `json:"first_date"`
	LastDate           string                           `json:"last_date"`
	Pairs              []string                         `json:"pairs"`
	Accuracy           map[string]models.AccuracyRecord `json:"accuracy"`
	LastPredictionDate string                           `json:"last_prediction_date"`
	AutoTradeEnabled   bool                             `json:"auto_trade_enabled"`
	AutoTradeTime      string                           `json:"auto_trade_time"`
	StreamConnected    bool                             `json:"stream_connected"`
	Performance        models.PerformanceStats          `json:"performance"`
}

// Pipeline ties the cursor and the engine together and serializes every
// mutating operation behind one mutex: an advance, a reset and a data
// refresh can never interleave.
type Pipeline struct {
	mu sync.Mutex

	store     *feed.Store
	refresher *feed.Refresher
	scorers   predictor.ScorerProvider
	cursor    *predictor.Cursor
	engine    *trading.Engine
	metrics   domrepo.Metrics
	stream    domrepo.QuoteStream // optional
	l         *logger.Logger

	quoteMu sync.RWMutex
	quotes  map[string]models.Quote
}

func NewPipeline(
	store *feed.Store,
	refresher *feed.Refresher,
	scorers predictor.ScorerProvider,
	engine *trading.Engine,
	metrics domrepo.Metrics,
	stream domrepo.QuoteStream,
	l *logger.Logger,
) (*Pipeline, error) {
	data, err := store.Load()
	if err != nil {
		return nil, err
	}
	cursor, err := predictor.New(data, scorers, l)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		store:     store,
		refresher: refresher,
		scorers:   scorers,
		cursor:    cursor,
		engine:    engine,
		metrics:   metrics,
		stream:    stream,
		l:         l,
		quotes:    make(map[string]models.Quote),
	}, nil
}

// PredictNext advances the cursor one step and trades on the emission.
func (p *Pipeline) PredictNext(ctx context.Context) (*StepResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step(ctx)
}

// PredictMultiple advances up to days steps, stopping early when the
// sequence runs out. At least one step must succeed.
func (p *Pipeline) PredictMultiple(ctx context.Context, days int) ([]StepResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StepResult, 0, days)
	for i := 0; i < days; i++ {
		r, err := p.step(ctx)
		if err != nil {
			if errors.Is(err, ErrExhausted) && len(out) > 0 {
				break
			}
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (p *Pipeline) step(ctx context.Context) (*StepResult, error) {
	em := p.cursor.Advance()
	if em == nil {
		return nil, ErrExhausted
	}
	for _, pp := range em.Pairs {
		p.metrics.RecordPrediction(pp.Name)
	}
	trades, err := p.engine.ExecuteTrades(ctx, em)
	if err != nil {
		return nil, err
	}

	r := &StepResult{Emission: em, Trades: trades}
	if !em.IsFuture {
		prices := make(map[string]float64, len(em.Pairs))
		for _, pp := range em.Pairs {
			if pp.Close != nil {
				prices[pp.Name] = *pp.Close
			}
		}
		perf := p.engine.PerformanceStats(prices)
		r.Performance = &perf
	}
	return r, nil
}

// Reset rewinds the cursor; with resetTrades it also reinitializes the
// portfolio.
func (p *Pipeline) Reset(resetTrades bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cursor.Reset()
	if resetTrades {
		if err := p.engine.ResetPortfolio(); err != nil {
			return err
		}
	}
	p.l.Info("predictions reset", logger.Bool("reset_trades", resetTrades))
	return nil
}

// RefreshData pulls the newest market day, reloads the data set and
// rebuilds the cursor from the start of the extended sequence. Returns the
// landed day.
func (p *Pipeline) RefreshData(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	date, err := p.refresher.Refresh(ctx)
	if err != nil {
		p.metrics.RecordError("refresh")
		return "", err
	}

	if err := p.rebuildCursor(); err != nil {
		return "", err
	}
	return date, nil
}

// UpsertDay writes one hand-supplied market day into the store and rebuilds
// the cursor over the extended sequence.
func (p *Pipeline) UpsertDay(date string, forex, bonds map[string]float64, news map[string]models.NewsPoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.UpsertDay(date, forex, bonds, news); err != nil {
		p.metrics.RecordError("upsert_day")
		return err
	}
	return p.rebuildCursor()
}

func (p *Pipeline) rebuildCursor() error {
	data, err := p.store.Load()
	if err != nil {
		p.metrics.RecordError("reload")
		return err
	}
	cursor, err := predictor.New(data, p.scorers, p.l)
	if err != nil {
		return err
	}
	p.cursor = cursor
	return nil
}

// Status snapshots the cursor position and trading settings.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	first, last := p.cursor.DateRange()
	st := p.engine.State()

	prices := make(map[string]float64)
	if latest, err := p.store.LatestCloses(); err != nil {
		p.l.Warn("status valuation skipped", logger.Error(err))
	} else {
		for pair, lc := range latest {
			prices[pair] = lc.Close
		}
	}

	connected := false
	if c, ok := p.stream.(interface{ IsConnected() bool }); ok && c != nil {
		connected = c.IsConnected()
	}

	return Status{
		Index:              p.cursor.Index(),
		Total:              p.cursor.Len(),
		FirstDate:          first,
		LastDate:           last,
		Pairs:              p.cursor.Pairs(),
		Accuracy:           p.cursor.AccuracySnapshot(),
		LastPredictionDate: st.LastPredictionDate,
		AutoTradeEnabled:   st.AutoTradeEnabled,
		AutoTradeTime:      st.AutoTradeTime,
		StreamConnected:    connected,
		Performance:        p.engine.PerformanceStats(prices),
	}
}

// Settings returns the current settings slice of the state document.
func (p *Pipeline) Settings() models.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.State().Settings
}

func (p *Pipeline) UpdateSettings(patch *models.SettingsPatch) (models.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.engine.UpdateSettings(patch); err != nil {
		return models.Settings{}, err
	}
	return p.engine.State().Settings, nil
}

func (p *Pipeline) ToggleReverse(pair string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.ToggleReverse(pair)
}

func (p *Pipeline) ResetPortfolio() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.ResetPortfolio()
}

func (p *Pipeline) History() ([]models.TradeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.History()
}

// PerformanceStats values the portfolio at the freshest stored closes.
func (p *Pipeline) PerformanceStats() (models.PerformanceStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	latest, err := p.store.LatestCloses()
	if err != nil {
		return models.PerformanceStats{}, err
	}
	prices := make(map[string]float64, len(latest))
	for pair, lc := range latest {
		prices[pair] = lc.Close
	}
	return p.engine.PerformanceStats(prices), nil
}

// Pairs lists the configured instruments.
func (p *Pipeline) Pairs() []string {
	return p.store.Pairs()
}

// Latest merges the freshest stored closes with live stream quotes; a live
// quote wins over a stored close for the same instrument.
func (p *Pipeline) Latest() (map[string]feed.LatestClose, error) {
	p.mu.Lock()
	closes, err := p.store.LatestCloses()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.quoteMu.RLock()
	for pair, q := range p.quotes {
		closes[pair] = feed.LatestClose{
			Date:  time.UnixMilli(q.Timestamp).UTC().Format("2006-01-02"),
			Close: q.Price,
		}
	}
	p.quoteMu.RUnlock()
	return closes, nil
}

// StartStream consumes the live quote feed until the context ends,
// reconnecting on read failure.
func (p *Pipeline) StartStream(ctx context.Context) {
	if p.stream == nil {
		return
	}
	go func() {
		for {
			if err := p.stream.Connect(ctx); err != nil {
				p.l.Warn("quote stream connect failed", logger.Error(err))
			} else if err := p.stream.Subscribe(ctx); err != nil {
				p.l.Warn("quote stream subscribe failed", logger.Error(err))
			} else {
				quotes, errs := p.stream.Read(ctx)
				p.consume(ctx, quotes, errs)
			}

			select {
			case <-ctx.Done():
				_ = p.stream.Close()
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

// pairFromSymbol drops the feed's vendor namespace ("OANDA:USD_CNY"
// becomes "USD_CNY") so live quotes land under the store's pair keys.
func pairFromSymbol(sym string) string {
	if i := strings.LastIndex(sym, ":"); i >= 0 {
		return sym[i+1:]
	}
	return sym
}

func (p *Pipeline) consume(ctx context.Context, quotes <-chan *models.Quote, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quotes:
			if !ok {
				return
			}
			p.quoteMu.Lock()
			p.quotes[pairFromSymbol(q.Symbol)] = *q
			p.quoteMu.Unlock()
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				p.metrics.RecordError("quote_stream")
				p.l.Warn("quote stream error", logger.Error(err))
				return
			}
		}
	}
}
