package predictor

import (
	"fmt"
	"math"
	"sort"
	"time"

	"FxPilot/internal/domain/models"
	domsvc "FxPilot/internal/domain/service"
	"FxPilot/pkg/logger"
	"FxPilot/pkg/util"
)

// ScorerProvider resolves the scoring capability per instrument. A nil
// scorer means the instrument has no usable model.
type ScorerProvider interface {
	Get(pair string) domsvc.DirectionScorer
}

// Cursor walks forward through the trading days shared by every scored
// instrument, emitting one directional prediction set per advance and
// keeping running hit counters. It is a single-owner state machine: the
// caller serializes Advance and Reset (the pipeline holds one lock per
// cursor instance).
type Cursor struct {
	pairs       []string
	rows        map[string]map[time.Time]models.FeatureRow
	scorers     ScorerProvider
	commonDates []time.Time

	index   int
	correct map[string]int
	total   map[string]int

	l *logger.Logger
}

// New builds a cursor over the loaded data set. Instruments without a
// usable scorer are excluded with a diagnostic; the common-date sequence
// is the sorted intersection of the remaining instruments' days.
func New(data map[string][]models.FeatureRow, scorers ScorerProvider, l *logger.Logger) (*Cursor, error) {
	c := &Cursor{
		rows:    make(map[string]map[time.Time]models.FeatureRow),
		scorers: scorers,
		correct: make(map[string]int),
		total:   make(map[string]int),
		l:       l,
	}

	for pair, rows := range data {
		if scorers.Get(pair) == nil {
			l.Warn("no scorer for pair, excluded from predictions", logger.String("pair", pair))
			continue
		}
		byDate := make(map[time.Time]models.FeatureRow, len(rows))
		for _, r := range rows {
			byDate[r.Date] = r
		}
		c.rows[pair] = byDate
		c.pairs = append(c.pairs, pair)
	}
	if len(c.pairs) == 0 {
		return nil, fmt.Errorf("no scorable instruments")
	}
	sort.Strings(c.pairs)

	// Intersection of every instrument's date set, ascending.
	counts := make(map[time.Time]int)
	for _, byDate := range c.rows {
		for d := range byDate {
			counts[d]++
		}
	}
	for d, n := range counts {
		if n == len(c.pairs) {
			c.commonDates = append(c.commonDates, d)
		}
	}
	sort.Slice(c.commonDates, func(i, j int) bool { return c.commonDates[i].Before(c.commonDates[j]) })

	l.Info("prediction cursor ready",
		logger.Int("pairs", len(c.pairs)),
		logger.Int("common_dates", len(c.commonDates)),
	)
	return c, nil
}

// Advance emits the next walk-forward step, or nil once the sequence is
// exhausted (terminal and idempotent). The emission for the last common
// date is the future prediction: it has no actual label and no next close,
// and does not touch the hit counters.
func (c *Cursor) Advance() *models.PredictionEmission {
	if c.index >= len(c.commonDates) {
		return nil
	}

	today := c.commonDates[c.index]
	if c.index == len(c.commonDates)-1 {
		out := &models.PredictionEmission{Date: util.FormatDay(today), IsFuture: true}
		for _, pair := range c.pairs {
			row, ok := c.rows[pair][today]
			if !ok {
				continue
			}
			label, err := c.score(pair, row)
			if err != nil {
				continue
			}
			close := row.Close
			out.Pairs = append(out.Pairs, models.PairPrediction{
				Name:      pair,
				Predicted: &label,
				Close:     &close,
				Correct:   c.correct[pair],
				Total:     c.total[pair],
				Accuracy:  c.accuracy(pair),
			})
		}
		c.index++
		return out
	}

	tomorrow := c.commonDates[c.index+1]
	out := &models.PredictionEmission{Date: util.FormatDay(today)}
	for _, pair := range c.pairs {
		rowNow, okNow := c.rows[pair][today]
		rowNext, okNext := c.rows[pair][tomorrow]
		if !okNow || !okNext {
			continue
		}
		label, err := c.score(pair, rowNow)
		if err != nil {
			continue
		}

		actual := 0
		if rowNext.Close > rowNow.Close {
			actual = 1
		}
		c.total[pair]++
		if label == actual {
			c.correct[pair]++
		}

		closeNow, closeNext := rowNow.Close, rowNext.Close
		out.Pairs = append(out.Pairs, models.PairPrediction{
			Name:      pair,
			Predicted: &label,
			Actual:    &actual,
			Close:     &closeNow,
			NextClose: &closeNext,
			Correct:   c.correct[pair],
			Total:     c.total[pair],
			Accuracy:  c.accuracy(pair),
		})
	}
	c.index++
	return out
}

func (c *Cursor) score(pair string, row models.FeatureRow) (int, error) {
	label, err := c.scorers.Get(pair).Score(row.Features[:])
	if err != nil {
		c.l.Warn("scoring failed, pair omitted from step",
			logger.String("pair", pair),
			logger.String("date", util.FormatDay(row.Date)),
			logger.Error(err))
		return 0, err
	}
	return label, nil
}

func (c *Cursor) accuracy(pair string) *float64 {
	if c.total[pair] == 0 {
		return nil
	}
	acc := math.Round(float64(c.correct[pair])/float64(c.total[pair])*1e4) / 1e4
	return &acc
}

// Reset returns the cursor to the first common date and zeroes the hit
// counters. Loaded feature data is untouched.
func (c *Cursor) Reset() {
	c.index = 0
	c.correct = make(map[string]int)
	c.total = make(map[string]int)
}

// Index is the next step to emit; it never exceeds Len.
func (c *Cursor) Index() int { return c.index }

// Len is the length of the common-date sequence.
func (c *Cursor) Len() int { return len(c.commonDates) }

// Pairs lists the scored instruments, ordered.
func (c *Cursor) Pairs() []string {
	return append([]string(nil), c.pairs...)
}

// DateRange returns the first and last common days, or empty strings when
// the sequence is empty.
func (c *Cursor) DateRange() (string, string) {
	if len(c.commonDates) == 0 {
		return "", ""
	}
	return util.FormatDay(c.commonDates[0]), util.FormatDay(c.commonDates[len(c.commonDates)-1])
}

// AccuracySnapshot copies the per-pair hit counters for status reporting.
func (c *Cursor) AccuracySnapshot() map[string]models.AccuracyRecord {
	out := make(map[string]models.AccuracyRecord, len(c.pairs))
	for _, pair := range c.pairs {
		if c.total[pair] == 0 {
			continue
		}
		rec := models.AccuracyRecord{Correct: c.correct[pair], Total: c.total[pair]}
		rec.Recompute()
		out[pair] = rec
	}
	return out
}
