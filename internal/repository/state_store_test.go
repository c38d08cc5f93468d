package repository

import (
	"os"
	"path/filepath"
	"testing"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/logger"
)

func TestFileStateStoreMissingFile(t *testing.T) {
	s := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"), logger.NewNop())
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Fatalf("missing file should yield nil state, got %+v", st)
	}
}

func TestFileStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, logger.NewNop())

	in := &models.PortfolioState{
		Settings: models.Settings{
			InitialBalance: 10000,
			BaseCurrency:   "USD",
			Allocations:    map[string]float64{"USD_CNY": 16.67},
			ReverseModels:  []string{"USD_CNY"},
			AutoTradeTime:  "09:00",
		},
		Holdings:           map[string]float64{"USD": 9833.3, "CNY": 1166.9},
		LastPredictionDate: "2024-05-01",
		TotalProfit:        -1.5,
		TotalTrades:        1,
		AccuracyHistory: map[string]*models.AccuracyRecord{
			"USD_CNY": {Correct: 1, Total: 1, Rate: 1.0},
		},
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out == nil {
		t.Fatal("Load returned nil after Save")
	}
	if out.BaseCurrency != "USD" || out.InitialBalance != 10000 {
		t.Fatalf("settings mismatch: %+v", out.Settings)
	}
	if out.Holdings["CNY"] != 1166.9 {
		t.Fatalf("holdings mismatch: %v", out.Holdings)
	}
	if !out.Reversed("USD_CNY") {
		t.Fatal("reverse flag lost")
	}
	rec := out.AccuracyHistory["USD_CNY"]
	if rec == nil || rec.Total != 1 || rec.Rate != 1.0 {
		t.Fatalf("accuracy history mismatch: %+v", rec)
	}
	if out.LastPredictionDate != "2024-05-01" {
		t.Fatalf("last prediction date = %q", out.LastPredictionDate)
	}
}

func TestFileStateStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	s := NewFileStateStore(path, logger.NewNop())
	if _, err := s.Load(); err == nil {
		t.Fatal("expected parse error for corrupt document")
	}
}

func TestFileStateStoreSaveReplacesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, logger.NewNop())

	first := &models.PortfolioState{
		Settings: models.Settings{BaseCurrency: "USD", Allocations: map[string]float64{"A_B": 1}},
		Holdings: map[string]float64{"USD": 1, "EUR": 2},
	}
	if err := s.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := &models.PortfolioState{
		Settings: models.Settings{BaseCurrency: "EUR"},
		Holdings: map[string]float64{"EUR": 3},
	}
	if err := s.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.BaseCurrency != "EUR" {
		t.Fatalf("base currency = %q", out.BaseCurrency)
	}
	if _, ok := out.Holdings["USD"]; ok {
		t.Fatal("old document leaked into the new one")
	}
	if len(out.Allocations) != 0 {
		t.Fatalf("allocations = %v, want empty", out.Allocations)
	}
}
