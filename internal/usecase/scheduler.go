package usecase

import (
	"context"
	"errors"
	"time"

	"FxPilot/pkg/logger"
)

// Scheduler fires the daily auto-trade job at the time of day stored in
// the trading settings. The time and the enabled flag are re-read every
// tick, so settings changes apply without a restart.
type Scheduler struct {
	pipeline *Pipeline
	l        *logger.Logger
}

func NewScheduler(pipeline *Pipeline, l *logger.Logger) *Scheduler {
	return &Scheduler{pipeline: pipeline, l: l}
}

// Start runs the schedule loop until the context ends.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastRun string // day the job last fired, one run per day
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			settings := s.pipeline.Settings()
			if !settings.AutoTradeEnabled {
				continue
			}
			day := now.Format("2006-01-02")
			if lastRun == day || now.Format("15:04") != settings.AutoTradeTime {
				continue
			}
			lastRun = day
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.l.Info("auto-trade job started")

	// Refresh is best effort; the walk continues on stored data if the
	// upstream is down.
	if date, err := s.pipeline.RefreshData(ctx); err != nil {
		s.l.Warn("auto-trade refresh failed, using stored data", logger.Error(err))
	} else {
		s.l.Info("auto-trade refresh landed", logger.String("date", date))
	}

	r, err := s.pipeline.PredictNext(ctx)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			s.l.Info("auto-trade: prediction sequence exhausted")
			return
		}
		s.l.Error("auto-trade step failed", logger.Error(err))
		return
	}
	s.l.Info("auto-trade step complete",
		logger.String("date", r.Emission.Date),
		logger.Int("trades", len(r.Trades)))
}
