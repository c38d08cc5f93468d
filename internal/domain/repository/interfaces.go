package repository

import (
	"context"

	"FxPilot/internal/domain/models"
)

// StateStore persists the portfolio state document. Save must be atomic:
// either the whole document is replaced or the prior one survives.
type StateStore interface {
	Load() (*models.PortfolioState, error)
	Save(st *models.PortfolioState) error
}

// TradeLog is the append-only record of executed trades.
type TradeLog interface {
	Append(trades []models.TradeRecord) error
	ReadAll() ([]models.TradeRecord, error)
}

// TradePublisher mirrors executed trades to a message broker. Best effort;
// failures must not fail the trading step.
type TradePublisher interface {
	PublishTrades(ctx context.Context, trades []models.TradeRecord) error
	Close() error
}

// TradeArchive mirrors executed trades to an analytical store.
type TradeArchive interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, trades []models.TradeRecord) error
	Close() error
}

// QuoteStream is a live price feed used to serve latest quotes.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Close() error
}

// Metrics records domain-level counters and timings.
type Metrics interface {
	RecordPrediction(pair string)
	RecordTrade(pair, action string)
	RecordSkip(pair, reason string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPortfolioValue(v float64)
}
