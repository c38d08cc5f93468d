package feed

import (
	"os"
	"path/filepath"
	"testing"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/logger"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newFixtureStore(t *testing.T, pairs []string) *Store {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "usd_cny.csv"),
		"timestamp,close\n2024-05-01,7.0\n2024-05-02,7.1\n")
	bonds := "timestamp,close\n2024-05-01,2.0\n2024-05-02,2.1\n"
	write(t, filepath.Join(dir, "china_bond_simple.csv"), bonds)
	write(t, filepath.Join(dir, "us_bond_simple.csv"), bonds)
	write(t, filepath.Join(dir, "uk_bond_simple.csv"), bonds)
	newsFile := filepath.Join(dir, "news.csv")
	write(t, newsFile,
		"day,country,news_count,avg_tone\n2024-05-01,CN,12,0.3\n2024-05-01,UK,5,0.1\n2024-05-01,US,20,-0.2\n")
	return NewStore(dir, newsFile, pairs, logger.NewNop())
}

func TestStoreLoadJoinsFeatures(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY"})

	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows, ok := data["USD_CNY"]
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}

	first := rows[0]
	if first.Close != 7.0 {
		t.Fatalf("close = %v", first.Close)
	}
	// Bond yields in slots 0..2.
	if first.Features[0] != 2.0 || first.Features[1] != 2.0 || first.Features[2] != 2.0 {
		t.Fatalf("bond features = %v", first.Features[:3])
	}
	// News counts CN, UK, US then tones.
	if first.Features[3] != 12 || first.Features[4] != 5 || first.Features[5] != 20 {
		t.Fatalf("news counts = %v", first.Features[3:6])
	}
	if first.Features[6] != 0.3 || first.Features[7] != 0.1 || first.Features[8] != -0.2 {
		t.Fatalf("news tones = %v", first.Features[6:9])
	}

	// Second day has no news rows: zero-filled.
	second := rows[1]
	for i := 3; i < models.FeatureCount; i++ {
		if second.Features[i] != 0 {
			t.Fatalf("feature %d should be zero, got %v", i, second.Features[i])
		}
	}
}

func TestStoreLoadSkipsMissingPair(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY", "EUR_USD"})

	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := data["EUR_USD"]; ok {
		t.Fatal("pair without a close file should be skipped")
	}
	if _, ok := data["USD_CNY"]; !ok {
		t.Fatal("remaining pair lost")
	}
}

func TestStoreLatestCloses(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY"})

	latest, err := s.LatestCloses()
	if err != nil {
		t.Fatalf("LatestCloses: %v", err)
	}
	lc, ok := latest["USD_CNY"]
	if !ok {
		t.Fatal("pair missing")
	}
	if lc.Date != "2024-05-02" || lc.Close != 7.1 {
		t.Fatalf("latest = %+v", lc)
	}
}

func TestUpsertDayReplacesAndExtends(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY"})

	// Replace an existing day, then add a new one.
	if err := s.UpsertDay("2024-05-02", map[string]float64{"USD_CNY": 7.5},
		map[string]float64{"CN": 2.2}, nil); err != nil {
		t.Fatalf("UpsertDay: %v", err)
	}
	if err := s.UpsertDay("2024-05-03", map[string]float64{"USD_CNY": 7.6},
		map[string]float64{"CN": 2.3, "US": 4.0, "UK": 3.8}, nil); err != nil {
		t.Fatalf("UpsertDay: %v", err)
	}

	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := data["USD_CNY"]
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1].Close != 7.5 {
		t.Fatalf("replaced close = %v, want 7.5", rows[1].Close)
	}
	if rows[2].Close != 7.6 {
		t.Fatalf("new close = %v, want 7.6", rows[2].Close)
	}
	if rows[2].Features[0] != 2.3 {
		t.Fatalf("new CN bond = %v, want 2.3", rows[2].Features[0])
	}
}

func TestUpsertDayWritesNews(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY"})

	news := map[string]models.NewsPoint{
		"CN": {Count: 9, Tone: 0.5},
		"US": {Count: 4, Tone: -0.4},
	}
	if err := s.UpsertDay("2024-05-02", nil, nil, news); err != nil {
		t.Fatalf("UpsertDay: %v", err)
	}

	data, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second := data["USD_CNY"][1]
	if second.Features[3] != 9 || second.Features[5] != 4 {
		t.Fatalf("news counts = %v", second.Features[3:6])
	}
	if second.Features[6] != 0.5 || second.Features[8] != -0.4 {
		t.Fatalf("news tones = %v", second.Features[6:9])
	}
	// Existing day untouched.
	first := data["USD_CNY"][0]
	if first.Features[3] != 12 {
		t.Fatalf("existing news overwritten: %v", first.Features[3:6])
	}
}

func TestUpsertDayRejectsBadDate(t *testing.T) {
	s := newFixtureStore(t, []string{"USD_CNY"})
	if err := s.UpsertDay("05/01/2024", map[string]float64{"USD_CNY": 7.0}, nil, nil); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}
