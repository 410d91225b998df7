// Package surrealdb provides a SurrealDB-backed trade store.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
)

const tradeTable = "trade"

// tradeSelectFields lists the fields to select from trade, aliasing trade_id to id for struct mapping.
const tradeSelectFields = `trade_id as id, symbol, entryPrice, amount, fee, exchange, timestamp, notes`

// TradeStore implements interfaces.TradeStore using SurrealDB. Each trade
// is one record keyed by its id; seq preserves ledger order.
type TradeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTradeStore connects, signs in and selects the configured namespace.
func NewTradeStore(ctx context.Context, config *common.StorageConfig, logger *common.Logger) (*TradeStore, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	store, err := newTradeStore(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB trade store connected")

	return store, nil
}

// newTradeStore wraps an already-selected connection and defines the table.
func newTradeStore(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*TradeStore, error) {
	// SurrealDB v3 errors on querying non-existent tables
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", tradeTable)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return nil, fmt.Errorf("failed to define table %s: %w", tradeTable, err)
	}
	return &TradeStore{db: db, logger: logger}, nil
}

// LoadTrades returns all trades in ledger order.
func (s *TradeStore) LoadTrades(ctx context.Context) ([]models.Trade, error) {
	sql := "SELECT " + tradeSelectFields + ", seq FROM " + tradeTable + " ORDER BY seq ASC"

	results, err := surrealdb.Query[[]models.Trade](ctx, s.db, sql, nil)
	if err != nil {
		if isNotFoundError(err) {
			return []models.Trade{}, nil
		}
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	trades := make([]models.Trade, 0)
	if results != nil && len(*results) > 0 {
		trades = append(trades, (*results)[0].Result...)
	}
	return trades, nil
}

// SaveTrades makes the table match trades in one transaction: records no
// longer present are deleted and every trade is upserted with its position.
// A failed statement cancels the whole save.
func (s *TradeStore) SaveTrades(ctx context.Context, trades []models.Trade) error {
	sql, vars := buildSaveQuery(trades)
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save trades: %w", err)
	}

	s.logger.Debug().Int("trades", len(trades)).Msg("Trades saved to SurrealDB")
	return nil
}

// buildSaveQuery renders the prune and upserts for trades as a single
// transaction. Trade values are bound as variables, suffixed by position.
func buildSaveQuery(trades []models.Trade) (string, map[string]any) {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
	}
	vars := map[string]any{"ids": ids}

	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	b.WriteString("DELETE " + tradeTable + " WHERE trade_id NOT IN $ids;\n")

	for i, t := range trades {
		fmt.Fprintf(&b, "UPSERT $rid%[1]d SET trade_id = $trade_id%[1]d, seq = %[1]d, symbol = $symbol%[1]d, "+
			"entryPrice = $entry_price%[1]d, amount = $amount%[1]d, fee = $fee%[1]d, exchange = $exchange%[1]d, "+
			"timestamp = $timestamp%[1]d, notes = $notes%[1]d;\n", i)

		n := fmt.Sprint(i)
		vars["rid"+n] = surrealmodels.NewRecordID(tradeTable, t.ID)
		vars["trade_id"+n] = t.ID
		vars["symbol"+n] = t.Symbol
		vars["entry_price"+n] = t.EntryPrice
		vars["amount"+n] = t.Amount
		vars["fee"+n] = t.Fee
		vars["exchange"+n] = t.Exchange
		vars["timestamp"+n] = t.Timestamp
		vars["notes"+n] = t.Notes
	}

	b.WriteString("COMMIT TRANSACTION;")
	return b.String(), vars
}

// Close closes the database connection.
func (s *TradeStore) Close() error {
	return s.db.Close(context.Background())
}

// isNotFoundError reports whether err means the table or record is absent.
func isNotFoundError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Ensure TradeStore implements TradeStore
var _ interfaces.TradeStore = (*TradeStore)(nil)
