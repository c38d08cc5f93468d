package models

// Trade actions. BUY acquires the pair's target currency, SELL unwinds
// back into the source currency.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// AccuracyRecord tracks one instrument's realized hit rate. Rate falls
// back to the 0.5 neutral prior while Total is zero.
type AccuracyRecord struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// Recompute refreshes Rate from the counters.
func (a *AccuracyRecord) Recompute() {
	if a.Total > 0 {
		a.Rate = float64(a.Correct) / float64(a.Total)
	} else {
		a.Rate = 0.5
	}
}

// TradeRecord is one executed trade. Immutable once appended to the log.
type TradeRecord struct {
	Date         string  `json:"date"`
	Pair         string  `json:"pair"`
	Action       string  `json:"prediction"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	Received     float64 `json:"received"`
	Accuracy     float64 `json:"accuracy"`
	Reversed     bool    `json:"is_reversed"`
}

// Settings is the mutable trading configuration slice of the state document.
type Settings struct {
	InitialBalance   float64            `json:"initial_balance"`
	BaseCurrency     string             `json:"base_currency"`
	Allocations      map[string]float64 `json:"currency_allocations"`
	ReverseModels    []string           `json:"reverse_models"`
	AutoTradeEnabled bool               `json:"auto_trade_enabled"`
	AutoTradeTime    string             `json:"auto_trade_time"`
}

// Reversed reports whether the pair is manually flagged for reversal.
func (s *Settings) Reversed(pair string) bool {
	for _, p := range s.ReverseModels {
		if p == pair {
			return true
		}
	}
	return false
}

// PortfolioState is the engine's durable document: settings, the currency
// ledger, accuracy history and the running aggregates. Loaded whole at
// startup and rewritten whole after every mutation.
type PortfolioState struct {
	Settings
	Holdings           map[string]float64         `json:"currency_holdings"`
	LastPredictionDate string                     `json:"last_prediction_date"`
	TotalProfit        float64                    `json:"total_profit"`
	WinRate            float64                    `json:"win_rate"`
	TotalTrades        int                        `json:"total_trades"`
	WinningTrades      int                        `json:"winning_trades"`
	AccuracyHistory    map[string]*AccuracyRecord `json:"accuracy_history"`
}

// Clone returns a deep copy used as the working state during trade
// execution so a failed persist leaves the published state untouched.
func (ps *PortfolioState) Clone() *PortfolioState {
	cp := *ps
	cp.Holdings = make(map[string]float64, len(ps.Holdings))
	for k, v := range ps.Holdings {
		cp.Holdings[k] = v
	}
	cp.Allocations = make(map[string]float64, len(ps.Allocations))
	for k, v := range ps.Allocations {
		cp.Allocations[k] = v
	}
	cp.ReverseModels = append([]string(nil), ps.ReverseModels...)
	cp.AccuracyHistory = make(map[string]*AccuracyRecord, len(ps.AccuracyHistory))
	for k, v := range ps.AccuracyHistory {
		rec := *v
		cp.AccuracyHistory[k] = &rec
	}
	return &cp
}

// Accuracy returns the pair's record, creating the neutral-prior record
// on first touch.
func (ps *PortfolioState) Accuracy(pair string) *AccuracyRecord {
	if ps.AccuracyHistory == nil {
		ps.AccuracyHistory = make(map[string]*AccuracyRecord)
	}
	rec, ok := ps.AccuracyHistory[pair]
	if !ok {
		rec = &AccuracyRecord{Rate: 0.5}
		ps.AccuracyHistory[pair] = rec
	}
	return rec
}

// PerformanceStats is the aggregate view served by the API.
type PerformanceStats struct {
	TotalProfit     float64                    `json:"total_profit"`
	WinRate         float64                    `json:"win_rate"`
	TotalTrades     int                        `json:"total_trades"`
	WinningTrades   int                        `json:"winning_trades"`
	Holdings        map[string]float64         `json:"currency_holdings"`
	PortfolioValue  float64                    `json:"portfolio_value"`
	BaseCurrency    string                     `json:"base_currency"`
	InitialBalance  float64                    `json:"initial_balance"`
	AccuracyHistory map[string]*AccuracyRecord `json:"accuracy_history"`
}
