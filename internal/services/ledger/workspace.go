package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/aether/internal/models"
)

// EncodeWorkspace renders the workspace snapshot file for trades.
func EncodeWorkspace(trades []models.Trade, now time.Time) ([]byte, error) {
	if trades == nil {
		trades = []models.Trade{}
	}
	ws := models.Workspace{
		Trades:    trades,
		Version:   models.WorkspaceVersion,
		Timestamp: now.UnixMilli(),
	}
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode workspace: %w", err)
	}
	return data, nil
}

// WorkspaceFilename returns the download name for an export made at now.
func WorkspaceFilename(now time.Time) string {
	return fmt.Sprintf("aether_prime_backup_%s.json", now.UTC().Format("2006-01-02"))
}

// DecodeWorkspace extracts the trade list from a workspace file. The payload
// must be a JSON object whose "trades" member is an array of objects;
// unknown members are ignored. Record-level rules are applied by ReplaceAll.
func DecodeWorkspace(data []byte) ([]models.Trade, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, models.NewValidationError("", "invalid workspace file: %v", err)
	}

	raw, ok := envelope["trades"]
	if !ok {
		return nil, models.NewValidationError("trades", "is required")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, models.NewValidationError("trades", "must be an array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, models.NewValidationError("trades", "must be an array: %v", err)
	}

	trades := make([]models.Trade, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		field := fmt.Sprintf("trades[%d]", i)
		if len(item) == 0 || item[0] != '{' {
			return nil, models.NewValidationError(field, "must be an object")
		}
		var t models.Trade
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, models.NewValidationError(field, "malformed trade: %v", err)
		}
		trades = append(trades, t)
	}

	return trades, nil
}
