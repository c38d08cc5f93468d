package trading

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"FxPilot/internal/domain/models"
	"FxPilot/internal/domain/repository"
	"FxPilot/pkg/logger"
)

const (
	// minConfidenceTrades is the sample size required before the tracked
	// accuracy is trusted for sizing or automatic reversal.
	minConfidenceTrades = 10

	// maxTradeRatio caps a single trade at this share of the spending
	// currency's balance.
	maxTradeRatio = 0.3

	// minTradeAmount is the smallest spend worth executing.
	minTradeAmount = 0.01
)

// Engine owns the portfolio ledger, the settings document and the
// per-instrument accuracy history. It consumes one prediction emission at
// a time, sizes and executes trades, and persists every mutation as a
// whole-document write. Single-owner: callers serialize all mutating
// operations (the pipeline holds one lock per engine instance).
type Engine struct {
	state    *models.PortfolioState
	store    repository.StateStore
	tradeLog repository.TradeLog
	pub      repository.TradePublisher // optional
	archive  repository.TradeArchive   // optional
	metrics  repository.Metrics
	l        *logger.Logger
}

// NewEngine loads the persisted portfolio state, falling back to a default
// document derived from the configured pairs on first run.
func NewEngine(
	pairs []string,
	store repository.StateStore,
	tradeLog repository.TradeLog,
	pub repository.TradePublisher,
	archive repository.TradeArchive,
	metrics repository.Metrics,
	l *logger.Logger,
) (*Engine, error) {
	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load portfolio state: %w", err)
	}
	if st == nil {
		st = DefaultState(pairs)
		if err := store.Save(st); err != nil {
			return nil, fmt.Errorf("seed portfolio state: %w", err)
		}
		l.Info("portfolio state seeded",
			logger.String("base", st.BaseCurrency),
			logger.Float64("initial_balance", st.InitialBalance))
	}
	return &Engine{
		state:    st,
		store:    store,
		tradeLog: tradeLog,
		pub:      pub,
		archive:  archive,
		metrics:  metrics,
		l:        l,
	}, nil
}

// DefaultState builds the first-run document: USD base, 10000 initial
// balance, the allocation split equally across pairs, holdings all in base.
func DefaultState(pairs []string) *models.PortfolioState {
	st := &models.PortfolioState{
		Settings: models.Settings{
			InitialBalance: 10000,
			BaseCurrency:   "USD",
			Allocations:    make(map[string]float64, len(pairs)),
			ReverseModels:  []string{},
			AutoTradeTime:  "09:00",
		},
		Holdings:        make(map[string]float64),
		AccuracyHistory: make(map[string]*models.AccuracyRecord),
	}
	if len(pairs) > 0 {
		alloc := math.Floor(100.0/float64(len(pairs))*100) / 100
		for _, p := range pairs {
			st.Allocations[p] = alloc
		}
	}
	for _, cur := range currenciesOf(pairs, st.BaseCurrency) {
		st.Holdings[cur] = 0
	}
	st.Holdings[st.BaseCurrency] = st.InitialBalance
	return st
}

func currenciesOf(pairs []string, base string) []string {
	set := map[string]struct{}{base: {}}
	for _, p := range pairs {
		pair := models.Pair(p)
		set[pair.Source()] = struct{}{}
		set[pair.Target()] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// State returns a deep copy of the current document.
func (e *Engine) State() *models.PortfolioState {
	return e.state.Clone()
}

// portfolioValue converts every balance into the base currency using the
// day's prices. A currency with no direct or inverse route is excluded
// from the valuation.
func portfolioValue(st *models.PortfolioState, prices map[string]float64) float64 {
	total := 0.0
	for currency, amount := range st.Holdings {
		if currency == st.BaseCurrency {
			total += amount
			continue
		}
		if amount <= 0 {
			continue
		}
		if p, ok := prices[currency+"_"+st.BaseCurrency]; ok && p > 0 {
			total += amount * p
		} else if p, ok := prices[st.BaseCurrency+"_"+currency]; ok && p > 0 {
			total += amount / p
		}
	}
	return total
}

// confidenceFactor scales the allocation-sized amount by the tracked
// accuracy; below the minimum sample size only a conservative bootstrap
// fraction is risked.
func confidenceFactor(rate float64, total int) float64 {
	if total < minConfidenceTrades {
		return 0.1
	}
	switch {
	case rate < 0.55:
		return 0.3
	case rate < 0.60:
		return 0.5
	case rate < 0.70:
		return 0.8
	default:
		return 1.0
	}
}

// toSpendCurrency converts a base-currency amount into spend-currency
// units via the direct rate, then the inverse. ok=false means no route.
func toSpendCurrency(amount float64, base, spend string, prices map[string]float64) (float64, bool) {
	if spend == base {
		return amount, true
	}
	if p, ok := prices[base+"_"+spend]; ok && p > 0 {
		return amount * p, true
	}
	if p, ok := prices[spend+"_"+base]; ok && p > 0 {
		return amount / p, true
	}
	return 0, false
}

// ExecuteTrades processes one emission: values the portfolio, sizes each
// instrument's trade, applies the reversal policy, executes against the
// ledger and persists the batch as one unit. A persistence failure leaves
// the published state untouched. Policy skips (no route, dust amounts,
// insufficient balance) silently omit the instrument.
func (e *Engine) ExecuteTrades(ctx context.Context, em *models.PredictionEmission) ([]models.TradeRecord, error) {
	start := time.Now()
	work := e.state.Clone()

	prices := make(map[string]float64, len(em.Pairs))
	for _, pp := range em.Pairs {
		if pp.Close != nil && *pp.Close > 0 {
			prices[pp.Name] = *pp.Close
		}
	}

	value := portfolioValue(work, prices)
	e.l.Debug("portfolio valued",
		logger.Float64("value", value),
		logger.String("base", work.BaseCurrency),
		logger.String("date", em.Date))

	var trades []models.TradeRecord
	for _, pp := range em.Pairs {
		if t, ok := e.tradeFor(work, &pp, value, prices, em.Date); ok {
			trades = append(trades, t)
		}
	}

	if len(trades) > 0 {
		work.TotalTrades += len(trades)
	}

	newValue := portfolioValue(work, prices)
	work.TotalProfit = newValue - work.InitialBalance

	// Accuracy history measures the underlying model (after the manual
	// flag, never the automatic reversal) against the realized outcome.
	if !em.IsFuture {
		for _, pp := range em.Pairs {
			if pp.Predicted == nil || pp.Actual == nil {
				continue
			}
			effective := *pp.Predicted
			if work.Reversed(pp.Name) {
				effective = 1 - effective
			}
			rec := work.Accuracy(pp.Name)
			rec.Total++
			if effective == *pp.Actual {
				rec.Correct++
			}
			rec.Recompute()
		}
	}

	totalCorrect, totalPredictions := 0, 0
	for _, rec := range work.AccuracyHistory {
		totalCorrect += rec.Correct
		totalPredictions += rec.Total
	}
	work.WinningTrades = totalCorrect
	if totalPredictions > 0 {
		work.WinRate = float64(totalCorrect) / float64(totalPredictions)
	} else {
		work.WinRate = 0
	}
	work.LastPredictionDate = em.Date

	// Persist the whole batch before publishing the new state.
	if len(trades) > 0 {
		if err := e.tradeLog.Append(trades); err != nil {
			e.metrics.RecordError("trade_log_append")
			return nil, fmt.Errorf("append trade log: %w", err)
		}
	}
	if err := e.store.Save(work); err != nil {
		e.metrics.RecordError("state_save")
		return nil, fmt.Errorf("save portfolio state: %w", err)
	}
	e.state = work

	for _, t := range trades {
		e.metrics.RecordTrade(t.Pair, t.Action)
	}
	e.metrics.RecordPortfolioValue(newValue)
	e.metrics.RecordLatency("execute_trades", time.Since(start).Seconds())

	e.mirror(ctx, trades)

	e.l.Info("trades executed",
		logger.String("date", em.Date),
		logger.Int("count", len(trades)),
		logger.Float64("portfolio_value", newValue))
	return trades, nil
}

// tradeFor sizes and executes one instrument against the working ledger.
func (e *Engine) tradeFor(work *models.PortfolioState, pp *models.PairPrediction, value float64, prices map[string]float64, date string) (models.TradeRecord, bool) {
	var zero models.TradeRecord

	allocation, ok := work.Allocations[pp.Name]
	if !ok {
		return zero, false
	}
	if pp.Predicted == nil || pp.Close == nil || *pp.Close <= 0 {
		return zero, false
	}

	rec := work.Accuracy(pp.Name)
	amount := value * (allocation / 100) * confidenceFactor(rec.Rate, rec.Total)
	if amount <= 0 {
		return zero, false
	}

	// Reversal policy: the manual flag and the automatic underperformance
	// trigger are independent and compose.
	label := *pp.Predicted
	manual := work.Reversed(pp.Name)
	if manual {
		label = 1 - label
	}
	auto := rec.Rate < 0.5 && rec.Total >= minConfidenceTrades
	if auto {
		label = 1 - label
		e.l.Debug("automatic reversal applied",
			logger.String("pair", pp.Name),
			logger.Float64("rate", rec.Rate))
	}

	pair := models.Pair(pp.Name)
	price := *pp.Close

	var spend, acquire string
	var received float64
	var action string
	if label == 1 {
		// Up: acquire the target by spending the source.
		spend, acquire, action = pair.Source(), pair.Target(), models.ActionBuy
	} else {
		// Down: unwind the target back into the source.
		spend, acquire, action = pair.Target(), pair.Source(), models.ActionSell
	}

	converted, ok := toSpendCurrency(amount, work.BaseCurrency, spend, prices)
	if !ok {
		e.metrics.RecordSkip(pp.Name, "no_route")
		e.l.Debug("no conversion route, trade skipped",
			logger.String("pair", pp.Name), logger.String("currency", spend))
		return zero, false
	}

	available := work.Holdings[spend]
	actualSpend := math.Min(converted, available*maxTradeRatio)
	if actualSpend <= minTradeAmount {
		e.metrics.RecordSkip(pp.Name, "below_minimum")
		return zero, false
	}
	if actualSpend > available {
		e.metrics.RecordSkip(pp.Name, "insufficient_balance")
		return zero, false
	}

	if action == models.ActionBuy {
		received = actualSpend * price
	} else {
		received = actualSpend / price
	}

	work.Holdings[spend] -= actualSpend
	work.Holdings[acquire] += received

	return models.TradeRecord{
		Date:         date,
		Pair:         pp.Name,
		Action:       action,
		FromCurrency: spend,
		ToCurrency:   acquire,
		Amount:       actualSpend,
		Price:        price,
		Received:     received,
		Accuracy:     rec.Rate,
		Reversed:     manual || auto,
	}, true
}

// mirror forwards executed trades to the optional broker and archive.
// Best effort: failures are logged, never surfaced.
func (e *Engine) mirror(ctx context.Context, trades []models.TradeRecord) {
	if len(trades) == 0 {
		return
	}
	if e.pub != nil {
		if err := e.pub.PublishTrades(ctx, trades); err != nil {
			e.metrics.RecordError("trade_publish")
			e.l.Warn("trade publish failed", logger.Error(err))
		}
	}
	if e.archive != nil {
		if err := e.archive.StoreBatch(ctx, trades); err != nil {
			e.metrics.RecordError("trade_archive")
			e.l.Warn("trade archive failed", logger.Error(err))
		}
	}
}

// UpdateSettings applies a typed patch. Base-currency or initial-balance
// changes reinitialize the holdings only while no trades have executed;
// the raw values are stored either way.
func (e *Engine) UpdateSettings(patch *models.SettingsPatch) error {
	work := e.state.Clone()

	needHoldingsReset := false
	if patch.BaseCurrency != nil && *patch.BaseCurrency != work.BaseCurrency {
		work.BaseCurrency = *patch.BaseCurrency
		needHoldingsReset = true
	}
	if patch.InitialBalance != nil && *patch.InitialBalance != work.InitialBalance {
		work.InitialBalance = *patch.InitialBalance
		needHoldingsReset = true
	}
	if needHoldingsReset && work.TotalTrades == 0 {
		resetHoldings(work)
	}

	if patch.Allocations != nil {
		work.Allocations = patch.Allocations
	}
	if patch.ReverseModels != nil {
		work.ReverseModels = *patch.ReverseModels
	}
	if patch.AutoTradeEnabled != nil {
		work.AutoTradeEnabled = *patch.AutoTradeEnabled
	}
	if patch.AutoTradeTime != nil {
		work.AutoTradeTime = *patch.AutoTradeTime
	}

	if err := e.store.Save(work); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	e.state = work
	return nil
}

// ToggleReverse flips the pair's manual-reversal flag and reports the new
// value.
func (e *Engine) ToggleReverse(pair string) (bool, error) {
	work := e.state.Clone()

	found := false
	kept := work.ReverseModels[:0]
	for _, p := range work.ReverseModels {
		if p == pair {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if found {
		work.ReverseModels = kept
	} else {
		work.ReverseModels = append(work.ReverseModels, pair)
	}

	if err := e.store.Save(work); err != nil {
		return false, fmt.Errorf("save settings: %w", err)
	}
	e.state = work
	return !found, nil
}

// ResetPortfolio reinitializes the holdings from the current settings and
// zeroes every aggregate. Rows already persisted to the trade log are kept;
// new trades append after them.
func (e *Engine) ResetPortfolio() error {
	work := e.state.Clone()
	resetHoldings(work)
	work.TotalProfit = 0
	work.WinRate = 0
	work.TotalTrades = 0
	work.WinningTrades = 0
	work.LastPredictionDate = ""
	work.AccuracyHistory = make(map[string]*models.AccuracyRecord)

	if err := e.store.Save(work); err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}
	e.state = work
	e.l.Info("portfolio reset",
		logger.String("base", work.BaseCurrency),
		logger.Float64("initial_balance", work.InitialBalance))
	return nil
}

func resetHoldings(st *models.PortfolioState) {
	for cur := range st.Holdings {
		st.Holdings[cur] = 0
	}
	st.Holdings[st.BaseCurrency] = st.InitialBalance
}

// PerformanceStats assembles the aggregate view. With no prices the
// portfolio value falls back to the raw balance sum.
func (e *Engine) PerformanceStats(prices map[string]float64) models.PerformanceStats {
	st := e.state
	value := 0.0
	if len(prices) > 0 {
		value = portfolioValue(st, prices)
	} else {
		for _, amount := range st.Holdings {
			value += amount
		}
	}
	snapshot := st.Clone()
	return models.PerformanceStats{
		TotalProfit:     st.TotalProfit,
		WinRate:         st.WinRate * 100,
		TotalTrades:     st.TotalTrades,
		WinningTrades:   st.WinningTrades,
		Holdings:        snapshot.Holdings,
		PortfolioValue:  value,
		BaseCurrency:    st.BaseCurrency,
		InitialBalance:  st.InitialBalance,
		AccuracyHistory: snapshot.AccuracyHistory,
	}
}

// History reads the persisted trade log.
func (e *Engine) History() ([]models.TradeRecord, error) {
	return e.tradeLog.ReadAll()
}
