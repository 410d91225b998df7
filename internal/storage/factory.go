package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
)

// NewTradeStore creates a trade store based on the configuration.
// Supported backends: "file" (default), "surrealdb".
func NewTradeStore(ctx context.Context, config *common.Config, logger *common.Logger) (interfaces.TradeStore, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendFile:
		return NewFileStore(config.Storage.Path, config.Storage.Backups, logger)

	case BackendSurrealDB:
		return surrealdb.NewTradeStore(ctx, &config.Storage, logger)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, surrealdb)", backend)
	}
}
