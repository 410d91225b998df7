package models

// WorkspaceVersion is written into exported workspace files.
const WorkspaceVersion = "4.2.0"

// Workspace is the file-exchange snapshot of the full ledger.
type Workspace struct {
	Trades    []Trade `json:"trades"`
	Version   string  `json:"version"`
	Timestamp int64   `json:"timestamp"` // ms since epoch
}
