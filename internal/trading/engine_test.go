package trading

import (
	"context"
	"errors"
	"math"
	"testing"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/logger"
)

type memStore struct {
	st       *models.PortfolioState
	failSave bool
	saves    int
}

func (m *memStore) Load() (*models.PortfolioState, error) { return m.st, nil }

func (m *memStore) Save(st *models.PortfolioState) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	m.st = st.Clone()
	return nil
}

type memLog struct {
	rows []models.TradeRecord
	fail bool
}

func (m *memLog) Append(trades []models.TradeRecord) error {
	if m.fail {
		return errors.New("log unwritable")
	}
	m.rows = append(m.rows, trades...)
	return nil
}

func (m *memLog) ReadAll() ([]models.TradeRecord, error) {
	return append([]models.TradeRecord(nil), m.rows...), nil
}

type memMetrics struct {
	skips map[string]string
}

func (m *memMetrics) RecordPrediction(string)       {}
func (m *memMetrics) RecordTrade(string, string)    {}
func (m *memMetrics) RecordError(string)            {}
func (m *memMetrics) RecordLatency(string, float64) {}
func (m *memMetrics) RecordPortfolioValue(float64)  {}

func (m *memMetrics) RecordSkip(pair, reason string) {
	if m.skips == nil {
		m.skips = make(map[string]string)
	}
	m.skips[pair] = reason
}

func testState() *models.PortfolioState {
	return &models.PortfolioState{
		Settings: models.Settings{
			InitialBalance: 10000,
			BaseCurrency:   "USD",
			Allocations:    map[string]float64{"USD_CNY": 16.67},
			ReverseModels:  []string{},
			AutoTradeTime:  "09:00",
		},
		Holdings:        map[string]float64{"USD": 10000, "CNY": 0},
		AccuracyHistory: map[string]*models.AccuracyRecord{},
	}
}

func newTestEngine(t *testing.T, st *models.PortfolioState) (*Engine, *memStore, *memLog, *memMetrics) {
	t.Helper()
	store := &memStore{st: st}
	tlog := &memLog{}
	metrics := &memMetrics{}
	e, err := NewEngine([]string{"USD_CNY"}, store, tlog, nil, nil, metrics, logger.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, store, tlog, metrics
}

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func emission(date string, pairs ...models.PairPrediction) *models.PredictionEmission {
	return &models.PredictionEmission{Date: date, Pairs: pairs}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestExecuteTradesBootstrapSizing(t *testing.T) {
	e, store, tlog, _ := newTestEngine(t, testState())

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	tr := trades[0]
	if tr.Action != models.ActionBuy || tr.FromCurrency != "USD" || tr.ToCurrency != "CNY" {
		t.Fatalf("unexpected trade shape: %+v", tr)
	}
	// 10000 * 16.67% * 0.1 bootstrap = 166.7 USD spent, * 7.0 = 1166.9 CNY.
	if !almost(tr.Amount, 166.7) {
		t.Fatalf("amount = %v, want 166.7", tr.Amount)
	}
	if !almost(tr.Received, 1166.9) {
		t.Fatalf("received = %v, want 1166.9", tr.Received)
	}

	st := e.State()
	if !almost(st.Holdings["USD"], 10000-166.7) {
		t.Fatalf("USD balance = %v", st.Holdings["USD"])
	}
	if !almost(st.Holdings["CNY"], 1166.9) {
		t.Fatalf("CNY balance = %v", st.Holdings["CNY"])
	}
	if st.TotalTrades != 1 {
		t.Fatalf("total trades = %d", st.TotalTrades)
	}
	if st.LastPredictionDate != "2024-05-01" {
		t.Fatalf("last prediction date = %q", st.LastPredictionDate)
	}
	if len(tlog.rows) != 1 {
		t.Fatalf("trade log rows = %d", len(tlog.rows))
	}
	if store.saves == 0 {
		t.Fatal("state never persisted")
	}
}

func TestExecuteTradesSellDirection(t *testing.T) {
	st := testState()
	st.Holdings["CNY"] = 7000
	e, _, _, _ := newTestEngine(t, st)

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(0), Actual: ip(0), Close: fp(7.0), NextClose: fp(6.9),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	tr := trades[0]
	if tr.Action != models.ActionSell || tr.FromCurrency != "CNY" || tr.ToCurrency != "USD" {
		t.Fatalf("unexpected trade shape: %+v", tr)
	}
	if !almost(tr.Received, tr.Amount/7.0) {
		t.Fatalf("received = %v for spend %v", tr.Received, tr.Amount)
	}
}

func TestExecuteTradesReversalComposition(t *testing.T) {
	// Manual flag and automatic underperformance both flip: double negation
	// restores the original direction but the record is marked reversed.
	st := testState()
	st.ReverseModels = []string{"USD_CNY"}
	st.AccuracyHistory["USD_CNY"] = &models.AccuracyRecord{Correct: 4, Total: 12, Rate: 4.0 / 12}
	e, _, _, _ := newTestEngine(t, st)

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Action != models.ActionBuy {
		t.Fatalf("double negation should restore BUY, got %s", trades[0].Action)
	}
	if !trades[0].Reversed {
		t.Fatal("trade should be marked reversed")
	}
}

func TestExecuteTradesAutoReversalNeedsSampleSize(t *testing.T) {
	st := testState()
	st.AccuracyHistory["USD_CNY"] = &models.AccuracyRecord{Correct: 2, Total: 8, Rate: 0.25}
	e, _, _, _ := newTestEngine(t, st)

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if trades[0].Action != models.ActionBuy {
		t.Fatalf("rate below 0.5 with only 8 samples must not reverse, got %s", trades[0].Action)
	}
	if trades[0].Reversed {
		t.Fatal("trade should not be marked reversed")
	}
}

func TestExecuteTradesSpendCap(t *testing.T) {
	// High confidence and full allocation would spend 10000; the cap limits
	// the trade to 30% of the spending balance.
	st := testState()
	st.Allocations["USD_CNY"] = 100
	st.AccuracyHistory["USD_CNY"] = &models.AccuracyRecord{Correct: 90, Total: 100, Rate: 0.9}
	e, _, _, _ := newTestEngine(t, st)

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if !almost(trades[0].Amount, 3000) {
		t.Fatalf("amount = %v, want 3000 (30%% of balance)", trades[0].Amount)
	}
}

func TestExecuteTradesNoRouteSkips(t *testing.T) {
	st := testState()
	st.Allocations["EUR_GBP"] = 10
	st.Holdings["EUR"] = 0
	st.Holdings["GBP"] = 0
	e, _, _, metrics := newTestEngine(t, st)

	// No EUR/USD or USD/EUR price: the base amount cannot be converted.
	em := emission("2024-05-01", models.PairPrediction{
		Name: "EUR_GBP", Predicted: ip(1), Actual: ip(1), Close: fp(0.85), NextClose: fp(0.86),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	if metrics.skips["EUR_GBP"] != "no_route" {
		t.Fatalf("skip reason = %q, want no_route", metrics.skips["EUR_GBP"])
	}
}

func TestExecuteTradesDustSkipped(t *testing.T) {
	st := testState()
	st.Holdings["USD"] = 0.05
	e, _, _, metrics := newTestEngine(t, st)

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	if metrics.skips["USD_CNY"] != "below_minimum" {
		t.Fatalf("skip reason = %q, want below_minimum", metrics.skips["USD_CNY"])
	}
}

func TestAccuracyUsesManuallyReversedPrediction(t *testing.T) {
	st := testState()
	st.ReverseModels = []string{"USD_CNY"}
	e, _, _, _ := newTestEngine(t, st)

	// Raw prediction 1, manual reversal makes it 0, actual is 0: a hit.
	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(0), Close: fp(7.0), NextClose: fp(6.9),
	})
	if _, err := e.ExecuteTrades(context.Background(), em); err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}

	rec := e.State().AccuracyHistory["USD_CNY"]
	if rec == nil {
		t.Fatal("accuracy record missing")
	}
	if rec.Total != 1 || rec.Correct != 1 {
		t.Fatalf("record = %+v, want 1/1", rec)
	}
	if !almost(rec.Rate, 1.0) {
		t.Fatalf("rate = %v, want 1.0", rec.Rate)
	}
}

func TestFutureEmissionSkipsAccuracy(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testState())

	em := &models.PredictionEmission{
		Date:     "2024-05-01",
		IsFuture: true,
		Pairs: []models.PairPrediction{
			{Name: "USD_CNY", Predicted: ip(1), Close: fp(7.0)},
		},
	}
	trades, err := e.ExecuteTrades(context.Background(), em)
	if err != nil {
		t.Fatalf("ExecuteTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("future prediction should still trade, got %d trades", len(trades))
	}
	if rec := e.State().AccuracyHistory["USD_CNY"]; rec != nil && rec.Total != 0 {
		t.Fatalf("future emission must not touch accuracy, record = %+v", rec)
	}
}

func TestExecuteTradesPersistFailureLeavesStateUntouched(t *testing.T) {
	e, store, _, _ := newTestEngine(t, testState())
	store.failSave = true

	em := emission("2024-05-01", models.PairPrediction{
		Name: "USD_CNY", Predicted: ip(1), Actual: ip(1), Close: fp(7.0), NextClose: fp(7.1),
	})
	if _, err := e.ExecuteTrades(context.Background(), em); err == nil {
		t.Fatal("expected persist error")
	}

	st := e.State()
	if !almost(st.Holdings["USD"], 10000) {
		t.Fatalf("published state mutated: USD = %v", st.Holdings["USD"])
	}
	if st.TotalTrades != 0 {
		t.Fatalf("published state mutated: trades = %d", st.TotalTrades)
	}
}

func TestConfidenceFactorLadder(t *testing.T) {
	cases := []struct {
		rate  float64
		total int
		want  float64
	}{
		{0.9, 5, 0.1},
		{0.50, 20, 0.3},
		{0.57, 20, 0.5},
		{0.65, 20, 0.8},
		{0.75, 20, 1.0},
	}
	for _, c := range cases {
		if got := confidenceFactor(c.rate, c.total); got != c.want {
			t.Fatalf("confidenceFactor(%v, %d) = %v, want %v", c.rate, c.total, got, c.want)
		}
	}
}

func TestUpdateSettingsReinitializesHoldingsBeforeFirstTrade(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testState())

	base := "EUR"
	bal := 5000.0
	if err := e.UpdateSettings(&models.SettingsPatch{BaseCurrency: &base, InitialBalance: &bal}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	st := e.State()
	if st.BaseCurrency != "EUR" || st.InitialBalance != 5000 {
		t.Fatalf("settings not applied: %+v", st.Settings)
	}
	if !almost(st.Holdings["EUR"], 5000) {
		t.Fatalf("EUR balance = %v, want 5000", st.Holdings["EUR"])
	}
	if !almost(st.Holdings["USD"], 0) {
		t.Fatalf("USD balance = %v, want 0", st.Holdings["USD"])
	}
}

func TestUpdateSettingsKeepsHoldingsAfterTrading(t *testing.T) {
	st := testState()
	st.TotalTrades = 3
	e, _, _, _ := newTestEngine(t, st)

	bal := 5000.0
	if err := e.UpdateSettings(&models.SettingsPatch{InitialBalance: &bal}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got := e.State()
	if got.InitialBalance != 5000 {
		t.Fatalf("initial balance = %v", got.InitialBalance)
	}
	if !almost(got.Holdings["USD"], 10000) {
		t.Fatalf("holdings must survive after trades, USD = %v", got.Holdings["USD"])
	}
}

func TestToggleReverse(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testState())

	on, err := e.ToggleReverse("USD_CNY")
	if err != nil {
		t.Fatalf("ToggleReverse: %v", err)
	}
	if !on {
		t.Fatal("first toggle should enable")
	}
	if !e.State().Reversed("USD_CNY") {
		t.Fatal("flag not persisted")
	}

	on, err = e.ToggleReverse("USD_CNY")
	if err != nil {
		t.Fatalf("ToggleReverse: %v", err)
	}
	if on {
		t.Fatal("second toggle should disable")
	}
	if e.State().Reversed("USD_CNY") {
		t.Fatal("flag not cleared")
	}
}

func TestResetPortfolio(t *testing.T) {
	st := testState()
	st.Holdings["USD"] = 1234
	st.Holdings["CNY"] = 999
	st.TotalTrades = 7
	st.TotalProfit = -42
	st.WinRate = 0.4
	st.LastPredictionDate = "2024-05-01"
	st.AccuracyHistory["USD_CNY"] = &models.AccuracyRecord{Correct: 3, Total: 7, Rate: 3.0 / 7}
	e, _, tlog, _ := newTestEngine(t, st)
	tlog.rows = []models.TradeRecord{{Pair: "USD_CNY"}}

	if err := e.ResetPortfolio(); err != nil {
		t.Fatalf("ResetPortfolio: %v", err)
	}

	got := e.State()
	if !almost(got.Holdings["USD"], 10000) || !almost(got.Holdings["CNY"], 0) {
		t.Fatalf("holdings not reinitialized: %v", got.Holdings)
	}
	if got.TotalTrades != 0 || got.TotalProfit != 0 || got.WinRate != 0 {
		t.Fatalf("aggregates not zeroed: %+v", got)
	}
	if got.LastPredictionDate != "" {
		t.Fatalf("last prediction date = %q", got.LastPredictionDate)
	}
	if len(got.AccuracyHistory) != 0 {
		t.Fatal("accuracy history not cleared")
	}

	// Reset does not truncate the trade log.
	rows, err := tlog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("trade log truncated, rows = %d", len(rows))
	}
}

func TestDefaultStateSplitsAllocationEqually(t *testing.T) {
	st := DefaultState([]string{"USD_CNY", "EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD", "USD_CAD"})
	for pair, alloc := range st.Allocations {
		if !almost(alloc, 16.66) {
			t.Fatalf("allocation for %s = %v", pair, alloc)
		}
	}
	if !almost(st.Holdings["USD"], 10000) {
		t.Fatalf("base holding = %v", st.Holdings["USD"])
	}
	for _, cur := range []string{"CNY", "EUR", "GBP", "JPY", "AUD", "CAD"} {
		if v, ok := st.Holdings[cur]; !ok || v != 0 {
			t.Fatalf("holding %s = %v, ok=%v", cur, v, ok)
		}
	}
}

func TestPerformanceStatsFallsBackToRawSum(t *testing.T) {
	st := testState()
	st.Holdings["USD"] = 9000
	st.Holdings["CNY"] = 700
	e, _, _, _ := newTestEngine(t, st)

	stats := e.PerformanceStats(nil)
	if !almost(stats.PortfolioValue, 9700) {
		t.Fatalf("portfolio value = %v, want raw sum 9700", stats.PortfolioValue)
	}

	stats = e.PerformanceStats(map[string]float64{"CNY_USD": 0.142857})
	want := 9000 + 700*0.142857
	if !almost(stats.PortfolioValue, want) {
		t.Fatalf("portfolio value = %v, want %v", stats.PortfolioValue, want)
	}
}
