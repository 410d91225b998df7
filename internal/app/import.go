package app

import (
	"fmt"
	"os"
	"time"

	"github.com/bobmcallan/aether/internal/services/ledger"
)

// ExportWorkspace returns the workspace file for the current ledger and its
// download name.
func (a *App) ExportWorkspace(now time.Time) ([]byte, string, error) {
	data, err := ledger.EncodeWorkspace(a.Ledger.List(), now)
	if err != nil {
		return nil, "", err
	}
	return data, ledger.WorkspaceFilename(now), nil
}

// ImportWorkspaceFromFile replaces the ledger with the trades in a
// workspace file. The ledger is unchanged if the file is rejected.
// Returns the number of trades imported.
func (a *App) ImportWorkspaceFromFile(filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read workspace file %s: %w", filePath, err)
	}

	if err := a.Ledger.Import(data); err != nil {
		return 0, fmt.Errorf("failed to import workspace file %s: %w", filePath, err)
	}

	n := a.Ledger.Len()
	a.Logger.Info().Str("path", filePath).Int("trades", n).Msg("Workspace imported")
	return n, nil
}
