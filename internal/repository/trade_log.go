package repository

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"FxPilot/internal/domain/models"
)

var tradeLogHeader = []string{
	"date", "pair", "action", "from_currency", "to_currency",
	"amount", "price", "received", "accuracy", "reversed",
}

// CSVTradeLog is the append-only trade record, one CSV row per trade.
// Rows are never rewritten; a portfolio reset leaves them in place.
type CSVTradeLog struct {
	path string
}

func NewCSVTradeLog(path string) *CSVTradeLog {
	return &CSVTradeLog{path: path}
}

func (t *CSVTradeLog) Append(trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat trade log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(tradeLogHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, tr := range trades {
		if err := w.Write(tradeRow(tr)); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush trade log: %w", err)
	}
	return f.Sync()
}

// ReadAll returns every logged trade in append order. A missing file is an
// empty log.
func (t *CSVTradeLog) ReadAll() ([]models.TradeRecord, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse trade log: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Externally produced import files may omit the header row.
	start := 0
	if isTradeLogHeader(records[0]) {
		start = 1
	}

	out := make([]models.TradeRecord, 0, len(records)-start)
	for _, rec := range records[start:] {
		if len(rec) < len(tradeLogHeader) {
			continue
		}
		tr := models.TradeRecord{
			Date:         rec[0],
			Pair:         rec[1],
			Action:       rec[2],
			FromCurrency: rec[3],
			ToCurrency:   rec[4],
		}
		tr.Amount, _ = strconv.ParseFloat(rec[5], 64)
		tr.Price, _ = strconv.ParseFloat(rec[6], 64)
		tr.Received, _ = strconv.ParseFloat(rec[7], 64)
		tr.Accuracy, _ = strconv.ParseFloat(rec[8], 64)
		tr.Reversed, _ = strconv.ParseBool(rec[9])
		out = append(out, tr)
	}
	return out, nil
}

func isTradeLogHeader(rec []string) bool {
	if len(rec) != len(tradeLogHeader) {
		return false
	}
	for i, v := range rec {
		if v != tradeLogHeader[i] {
			return false
		}
	}
	return true
}

func tradeRow(tr models.TradeRecord) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		tr.Date, tr.Pair, tr.Action, tr.FromCurrency, tr.ToCurrency,
		f(tr.Amount), f(tr.Price), f(tr.Received), f(tr.Accuracy),
		strconv.FormatBool(tr.Reversed),
	}
}
