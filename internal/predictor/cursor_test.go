package predictor

import (
	"errors"
	"testing"
	"time"

	"FxPilot/internal/domain/models"
	domsvc "FxPilot/internal/domain/service"
	"FxPilot/pkg/logger"
)

type fixedScorer struct {
	label int
	err   error
}

func (s *fixedScorer) Score([]float64) (int, error) { return s.label, s.err }
func (s *fixedScorer) Close()                       {}

type stubProvider map[string]domsvc.DirectionScorer

func (p stubProvider) Get(pair string) domsvc.DirectionScorer { return p[pair] }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rows(closes map[string]float64) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(closes))
	for d, c := range closes {
		out = append(out, models.FeatureRow{Date: day(d), Close: c})
	}
	return out
}

func TestCursorWalksCommonDates(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{
			"2024-05-01": 7.00, "2024-05-02": 7.10, "2024-05-03": 7.05,
		}),
		"EUR_USD": rows(map[string]float64{
			"2024-05-01": 1.08, "2024-05-02": 1.07, "2024-05-03": 1.09,
		}),
	}
	scorers := stubProvider{
		"USD_CNY": &fixedScorer{label: 1},
		"EUR_USD": &fixedScorer{label: 1},
	}
	c, err := New(data, scorers, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("common dates = %d, want 3", c.Len())
	}

	// Step 1: 05-01 scored against 05-02.
	em := c.Advance()
	if em == nil {
		t.Fatal("first advance returned nil")
	}
	if em.Date != "2024-05-01" || em.IsFuture {
		t.Fatalf("unexpected emission header: %+v", em)
	}
	if len(em.Pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(em.Pairs))
	}

	cny := em.Pair("USD_CNY")
	if cny == nil || cny.Actual == nil || *cny.Actual != 1 {
		t.Fatalf("USD_CNY actual should be 1 (7.10 > 7.00): %+v", cny)
	}
	if cny.Correct != 1 || cny.Total != 1 {
		t.Fatalf("USD_CNY counters = %d/%d", cny.Correct, cny.Total)
	}
	eur := em.Pair("EUR_USD")
	if eur == nil || eur.Actual == nil || *eur.Actual != 0 {
		t.Fatalf("EUR_USD actual should be 0 (1.07 < 1.08): %+v", eur)
	}
	if eur.Correct != 0 || eur.Total != 1 {
		t.Fatalf("EUR_USD counters = %d/%d", eur.Correct, eur.Total)
	}

	// Step 2: 05-02 scored against 05-03.
	em = c.Advance()
	if em == nil || em.Date != "2024-05-02" || em.IsFuture {
		t.Fatalf("unexpected second emission: %+v", em)
	}

	// Step 3: last date is the future prediction.
	em = c.Advance()
	if em == nil || !em.IsFuture {
		t.Fatalf("last emission should be the future prediction: %+v", em)
	}
	if em.Date != "2024-05-03" {
		t.Fatalf("future date = %q", em.Date)
	}
	fut := em.Pair("USD_CNY")
	if fut == nil || fut.Actual != nil || fut.NextClose != nil {
		t.Fatalf("future prediction must have no actual or next close: %+v", fut)
	}
	if fut.Total != 2 {
		t.Fatalf("future emission must not advance counters, total = %d", fut.Total)
	}

	// Terminal: nil, idempotent.
	if em := c.Advance(); em != nil {
		t.Fatalf("expected nil past the end, got %+v", em)
	}
	if em := c.Advance(); em != nil {
		t.Fatal("terminal advance must stay nil")
	}
}

func TestCursorAccuracyRounding(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{
			"2024-05-01": 7.00, "2024-05-02": 7.10, "2024-05-03": 7.05, "2024-05-04": 7.20,
		}),
	}
	c, err := New(data, stubProvider{"USD_CNY": &fixedScorer{label: 1}}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Advance() // hit: 7.10 > 7.00
	c.Advance() // miss: 7.05 < 7.10
	em := c.Advance()
	if em == nil {
		t.Fatal("third advance returned nil")
	}
	pp := em.Pair("USD_CNY")
	if pp.Accuracy == nil {
		t.Fatal("accuracy missing")
	}
	// 2/3 rounded to four decimals.
	if *pp.Accuracy != 0.6667 {
		t.Fatalf("accuracy = %v, want 0.6667", *pp.Accuracy)
	}
}

func TestCursorExcludesUnscoredPairs(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{"2024-05-01": 7.0, "2024-05-02": 7.1}),
		"EUR_USD": rows(map[string]float64{"2024-05-01": 1.1, "2024-05-02": 1.2}),
	}
	c, err := New(data, stubProvider{"USD_CNY": &fixedScorer{label: 0}}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pairs := c.Pairs()
	if len(pairs) != 1 || pairs[0] != "USD_CNY" {
		t.Fatalf("pairs = %v, want only USD_CNY", pairs)
	}
}

func TestCursorFailsWithoutScorableInstruments(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{"2024-05-01": 7.0}),
	}
	if _, err := New(data, stubProvider{}, logger.NewNop()); err == nil {
		t.Fatal("expected error with no scorable instruments")
	}
}

func TestCursorScoringErrorOmitsPair(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{"2024-05-01": 7.0, "2024-05-02": 7.1}),
		"EUR_USD": rows(map[string]float64{"2024-05-01": 1.1, "2024-05-02": 1.2}),
	}
	scorers := stubProvider{
		"USD_CNY": &fixedScorer{err: errors.New("session lost")},
		"EUR_USD": &fixedScorer{label: 1},
	}
	c, err := New(data, scorers, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	em := c.Advance()
	if em == nil {
		t.Fatal("advance returned nil")
	}
	if len(em.Pairs) != 1 || em.Pairs[0].Name != "EUR_USD" {
		t.Fatalf("failing pair should be omitted from the step: %+v", em.Pairs)
	}
}

func TestCursorReset(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{"2024-05-01": 7.0, "2024-05-02": 7.1, "2024-05-03": 7.2}),
	}
	c, err := New(data, stubProvider{"USD_CNY": &fixedScorer{label: 1}}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Advance()
	c.Advance()
	if c.Index() != 2 {
		t.Fatalf("index = %d", c.Index())
	}

	c.Reset()
	if c.Index() != 0 {
		t.Fatalf("index after reset = %d", c.Index())
	}
	if len(c.AccuracySnapshot()) != 0 {
		t.Fatal("counters not cleared")
	}

	em := c.Advance()
	if em == nil || em.Date != "2024-05-01" {
		t.Fatalf("replay should restart at the first date: %+v", em)
	}
	pp := em.Pair("USD_CNY")
	if pp.Total != 1 {
		t.Fatalf("counters should restart, total = %d", pp.Total)
	}
}

func TestCursorDateRange(t *testing.T) {
	data := map[string][]models.FeatureRow{
		"USD_CNY": rows(map[string]float64{"2024-05-03": 7.2, "2024-05-01": 7.0, "2024-05-02": 7.1}),
	}
	c, err := New(data, stubProvider{"USD_CNY": &fixedScorer{label: 1}}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first, last := c.DateRange()
	if first != "2024-05-01" || last != "2024-05-03" {
		t.Fatalf("range = %q..%q", first, last)
	}
}
