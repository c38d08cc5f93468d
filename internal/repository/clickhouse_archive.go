package repository

import (
	"context"
	"fmt"

	"FxPilot/internal/domain/models"
	"FxPilot/pkg/clickhouse"
	"FxPilot/pkg/util"
)

// ClickHouseTradeArchive mirrors executed trades into an analytical table
// for offline analysis. Writes are batched per emission.
type ClickHouseTradeArchive struct {
	client *clickhouse.Client
	table  string
}

func NewClickHouseTradeArchive(client *clickhouse.Client, table string) *ClickHouseTradeArchive {
	return &ClickHouseTradeArchive{client: client, table: table}
}

// Init ensures the archive table exists.
func (a *ClickHouseTradeArchive) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    trade_date    Date,
    pair          String,
    action        String,
    from_currency String,
    to_currency   String,
    amount        Float64,
    price         Float64,
    received      Float64,
    accuracy      Float64,
    reversed      UInt8
) ENGINE = MergeTree()
ORDER BY (trade_date, pair)`, a.table)
	return a.client.InitSchema(ctx, []string{ddl})
}

func (a *ClickHouseTradeArchive) StoreBatch(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := a.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (trade_date, pair, action, from_currency, to_currency, amount, price, received, accuracy, reversed) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.table))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tr := range trades {
		day, ok := util.ParseDay(tr.Date)
		if !ok {
			tx.Rollback()
			return fmt.Errorf("invalid trade date %q", tr.Date)
		}
		reversed := uint8(0)
		if tr.Reversed {
			reversed = 1
		}
		if _, err := stmt.ExecContext(ctx, day, tr.Pair, tr.Action,
			tr.FromCurrency, tr.ToCurrency, tr.Amount, tr.Price,
			tr.Received, tr.Accuracy, reversed); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert trade: %w", err)
		}
	}
	return tx.Commit()
}

func (a *ClickHouseTradeArchive) Close() error {
	return a.client.Close()
}
