package feed

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/util"
)

// UpsertDay adds or replaces one calendar day across the CSV store. Each
// touched file is rewritten whole via a temp-file rename so a failed write
// never leaves a truncated file behind.
func (s *Store) UpsertDay(date string, forex map[string]float64, bonds map[string]float64, news map[string]models.NewsPoint) error {
	day, ok := util.ParseDay(date)
	if !ok {
		return fmt.Errorf("invalid date %q", date)
	}
	canonical := util.FormatDay(day)

	for pair, value := range forex {
		if err := upsertCloseRow(s.fxPath(pair), canonical, value); err != nil {
			return fmt.Errorf("upsert %s close: %w", pair, err)
		}
	}

	for region, value := range bonds {
		name, ok := bondFiles[strings.ToUpper(region)]
		if !ok {
			continue
		}
		if err := upsertCloseRow(filepath.Join(s.dir, name), canonical, value); err != nil {
			return fmt.Errorf("upsert %s bond: %w", region, err)
		}
	}

	if len(news) > 0 {
		if err := s.upsertNewsRows(canonical, news); err != nil {
			return fmt.Errorf("upsert news: %w", err)
		}
	}
	return nil
}

func upsertCloseRow(path, date string, value float64) error {
	rows, err := readCloseRows(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	records := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		d := util.FormatDay(r.date)
		if d == date {
			continue
		}
		records = append(records, []string{d, formatFloat(r.close)})
	}
	records = append(records, []string{date, formatFloat(value)})
	sort.Slice(records, func(i, j int) bool { return records[i][0] < records[j][0] })

	return writeCSV(path, []string{"timestamp", "close"}, records)
}

func (s *Store) upsertNewsRows(date string, news map[string]models.NewsPoint) error {
	existing, err := s.loadNews()
	if err != nil {
		return err
	}

	day, _ := util.ParseDay(date)
	v := existing[day]
	for region, np := range news {
		idx, ok := newsRegionIdx[strings.ToUpper(region)]
		if !ok {
			continue
		}
		v[idx] = np.Count
		v[3+idx] = np.Tone
	}
	existing[day] = v

	days := make([]string, 0, len(existing))
	for d := range existing {
		days = append(days, util.FormatDay(d))
	}
	sort.Strings(days)

	regions := []string{"CN", "UK", "US"}
	records := make([][]string, 0, len(days)*len(regions))
	for _, d := range days {
		t, _ := util.ParseDay(d)
		vec := existing[t]
		for _, region := range regions {
			idx := newsRegionIdx[region]
			records = append(records, []string{
				d, region, formatFloat(vec[idx]), formatFloat(vec[3+idx]),
			})
		}
	}

	return writeCSV(s.newsFile, []string{"day", "country", "news_count", "avg_tone"}, records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeCSV rewrites path atomically: write to a sibling temp file, then rename.
func writeCSV(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
