package feed

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/logger"
	"FxPilot/pkg/util"
)

// Bond yield files per region, merged into every pair's feature rows.
var bondFiles = map[string]string{
	"CN": "china_bond_simple.csv",
	"US": "us_bond_simple.csv",
	"UK": "uk_bond_simple.csv",
}

// Store reads and writes the CSV-backed market data set: one close-price
// file per pair, one bond-yield file per region, and a news aggregate file.
type Store struct {
	dir      string
	newsFile string
	pairs    []string
	l        *logger.Logger
}

func NewStore(dir, newsFile string, pairs []string, l *logger.Logger) *Store {
	return &Store{dir: dir, newsFile: newsFile, pairs: pairs, l: l}
}

// Pairs returns the configured instrument set.
func (s *Store) Pairs() []string {
	return append([]string(nil), s.pairs...)
}

func (s *Store) fxPath(pair string) string {
	return filepath.Join(s.dir, strings.ToLower(pair)+".csv")
}

// Load assembles per-pair feature rows: the pair's close series joined by
// day with the three bond series and the news aggregates. Missing feature
// values are zero-filled; a pair with no close file is skipped with a
// diagnostic. Bond files are required.
func (s *Store) Load() (map[string][]models.FeatureRow, error) {
	bonds := make(map[string]map[time.Time]float64, len(bondFiles))
	for region, name := range bondFiles {
		series, err := readCloseSeries(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s bond series: %w", region, err)
		}
		bonds[region] = series
	}

	news, err := s.loadNews()
	if err != nil {
		return nil, fmt.Errorf("load news features: %w", err)
	}

	out := make(map[string][]models.FeatureRow, len(s.pairs))
	for _, pair := range s.pairs {
		series, err := readCloseRows(s.fxPath(pair))
		if err != nil {
			if os.IsNotExist(err) {
				s.l.Warn("close file missing, pair skipped", logger.String("pair", pair))
				continue
			}
			return nil, fmt.Errorf("load %s closes: %w", pair, err)
		}

		rows := make([]models.FeatureRow, 0, len(series))
		for _, cr := range series {
			row := models.FeatureRow{Date: cr.date, Close: cr.close}
			row.Features[0] = bonds["CN"][cr.date]
			row.Features[1] = bonds["US"][cr.date]
			row.Features[2] = bonds["UK"][cr.date]
			if np, ok := news[cr.date]; ok {
				copy(row.Features[3:], np[:])
			}
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		out[pair] = rows
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no close data found under %s", s.dir)
	}
	return out, nil
}

// LatestCloses returns each pair's most recent close and its day.
func (s *Store) LatestCloses() (map[string]LatestClose, error) {
	out := make(map[string]LatestClose, len(s.pairs))
	for _, pair := range s.pairs {
		rows, err := readCloseRows(s.fxPath(pair))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
		last := rows[len(rows)-1]
		out[pair] = LatestClose{Date: util.FormatDay(last.date), Close: last.close}
	}
	return out, nil
}

// LatestClose is a pair's freshest stored close.
type LatestClose struct {
	Date  string  `json:"date"`
	Close float64 `json:"value"`
}

type closeRow struct {
	date  time.Time
	close float64
}

func readCloseRows(path string) ([]closeRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	dateIdx, closeIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "timestamp", "date", "day":
			dateIdx = i
		case "close", "value":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("%s: header must contain timestamp and close columns", path)
	}

	rows := make([]closeRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) <= dateIdx || len(rec) <= closeIdx {
			continue
		}
		day, ok := util.ParseDay(strings.TrimSpace(rec[dateIdx]))
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			continue
		}
		rows = append(rows, closeRow{date: day, close: v})
	}
	return rows, nil
}

func readCloseSeries(path string) (map[time.Time]float64, error) {
	rows, err := readCloseRows(path)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(rows))
	for _, r := range rows {
		out[r.date] = r.close
	}
	return out, nil
}

// newsVector holds the six news features in FeatureNames order:
// count CN, UK, US then tone CN, UK, US.
type newsVector [6]float64

var newsRegionIdx = map[string]int{"CN": 0, "UK": 1, "US": 2}

// loadNews reads the news aggregate file. The long format has columns
// day,country,news_count,avg_tone; one row per region per day. A missing
// file yields zero features for every day.
func (s *Store) loadNews() (map[time.Time]newsVector, error) {
	f, err := os.Open(s.newsFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.l.Warn("news file missing, news features zero-filled",
				logger.String("path", s.newsFile))
			return map[time.Time]newsVector{}, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.newsFile, err)
	}
	if len(records) == 0 {
		return map[time.Time]newsVector{}, nil
	}

	idx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	dayIdx, ok := idx["day"]
	if !ok {
		dayIdx, ok = idx["timestamp"]
	}
	if !ok {
		return nil, fmt.Errorf("%s: no day column", s.newsFile)
	}
	countryIdx, hasCountry := idx["country"]
	countIdx := idx["news_count"]
	toneIdx := idx["avg_tone"]
	if !hasCountry {
		return nil, fmt.Errorf("%s: long format with country column expected", s.newsFile)
	}

	out := make(map[time.Time]newsVector)
	for _, rec := range records[1:] {
		if len(rec) <= dayIdx || len(rec) <= countryIdx {
			continue
		}
		day, ok := util.ParseDay(strings.TrimSpace(rec[dayIdx]))
		if !ok {
			continue
		}
		region, ok := newsRegionIdx[strings.ToUpper(strings.TrimSpace(rec[countryIdx]))]
		if !ok {
			continue
		}
		v := out[day]
		if countIdx < len(rec) {
			if c, err := strconv.ParseFloat(strings.TrimSpace(rec[countIdx]), 64); err == nil {
				v[region] = c
			}
		}
		if toneIdx < len(rec) {
			if t, err := strconv.ParseFloat(strings.TrimSpace(rec[toneIdx]), 64); err == nil {
				v[3+region] = t
			}
		}
		out[day] = v
	}
	return out, nil
}
