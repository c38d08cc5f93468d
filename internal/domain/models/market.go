package models

import (
	"strings"
	"time"
)

// FeatureCount is the width of the per-day feature vector fed to the scorers:
// three bond yields, three news counts, three news-tone averages.
const FeatureCount = 9

// FeatureNames lists the feature columns in scoring order.
var FeatureNames = []string{
	"bond_CN", "bond_US", "bond_UK",
	"news_count_CN", "news_count_UK", "news_count_US",
	"avg_tone_CN", "avg_tone_UK", "avg_tone_US",
}

// Pair identifies a currency pair as SOURCE_TARGET, e.g. "USD_CNY"
// meaning USD priced in CNY. Direction "up" means the target strengthens.
type Pair string

func (p Pair) Source() string {
	if i := strings.IndexByte(string(p), '_'); i >= 0 {
		return string(p)[:i]
	}
	return string(p)
}

func (p Pair) Target() string {
	if i := strings.IndexByte(string(p), '_'); i >= 0 {
		return string(p)[i+1:]
	}
	return ""
}

// Valid reports whether the pair has both legs.
func (p Pair) Valid() bool {
	return p.Source() != "" && p.Target() != ""
}

// FeatureRow is one instrument-day of market data: the closing price and
// the feature vector used for scoring. Immutable once loaded.
type FeatureRow struct {
	Date     time.Time
	Close    float64
	Features [FeatureCount]float64
}

// Quote is a live price observation from the streaming feed.
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp int64 // ms
}
