// Package storage provides trade ledger persistence with pluggable backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobmcallan/aether/internal/common"
	"github.com/bobmcallan/aether/internal/interfaces"
	"github.com/bobmcallan/aether/internal/models"
)

// FileStore persists the trade list as a single JSON document. Writes are
// atomic (temp file + rename) and the previous contents are rotated into
// numbered backups.
type FileStore struct {
	path    string
	backups int
	logger  *common.Logger
	mu      sync.Mutex
}

// NewFileStore creates a FileStore writing to path, creating its directory.
func NewFileStore(path string, backups int, logger *common.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is empty")
	}
	if backups < 0 {
		backups = 0
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	logger.Debug().Str("path", path).Int("backups", backups).Msg("FileStore opened")
	return &FileStore{path: path, backups: backups, logger: logger}, nil
}

// Path returns the file the store writes to.
func (fs *FileStore) Path() string {
	return fs.path
}

// LoadTrades reads the persisted trade list. A missing or empty file is an
// empty ledger. Both a bare array and a workspace document are accepted.
func (fs *FileStore) LoadTrades(_ context.Context) ([]models.Trade, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Trade{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return []models.Trade{}, nil
	}

	var trades []models.Trade
	if err := json.Unmarshal(data, &trades); err == nil {
		return trades, nil
	}

	var ws models.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fs.path, err)
	}
	if ws.Trades == nil {
		ws.Trades = []models.Trade{}
	}
	return ws.Trades, nil
}

// SaveTrades replaces the persisted trade list.
func (fs *FileStore) SaveTrades(_ context.Context, trades []models.Trade) error {
	if trades == nil {
		trades = []models.Trade{}
	}

	jsonData, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.backups > 0 {
		fs.rotateBackups()
	}

	// Atomic write: write to temp file in the same directory, then rename
	tmpFile, err := os.CreateTemp(filepath.Dir(fs.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	fs.logger.Debug().Int("trades", len(trades)).Str("path", fs.path).Msg("Trades saved")
	return nil
}

// rotateBackups shifts existing backups up and copies current to .bak1.
// .bak{N} -> deleted, .bak{N-1} -> .bak{N}, ..., current -> .bak1
func (fs *FileStore) rotateBackups() {
	os.Remove(fs.backupPath(fs.backups))

	for i := fs.backups; i > 1; i-- {
		os.Rename(fs.backupPath(i-1), fs.backupPath(i)) // may not exist yet
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return
	}
	if err := os.WriteFile(fs.backupPath(1), data, 0644); err != nil {
		fs.logger.Warn().Err(err).Msg("Failed to write trades backup")
	}
}

func (fs *FileStore) backupPath(n int) string {
	return fmt.Sprintf("%s.bak%d", fs.path, n)
}

// Close is a no-op for the file backend.
func (fs *FileStore) Close() error {
	return nil
}

// Ensure FileStore implements TradeStore
var _ interfaces.TradeStore = (*FileStore)(nil)
