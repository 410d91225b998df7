package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/bobmcallan/aether/internal/models"
	"github.com/bobmcallan/aether/internal/services/portfolio"
)

// --- Ledger handlers ---

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTradeList(w, r)
	case http.MethodPost:
		s.handleTradeAdd(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTradeList(w http.ResponseWriter, r *http.Request) {
	trades := s.app.Ledger.List()

	switch r.URL.Query().Get("sort") {
	case "", "insertion":
	case "recent":
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Timestamp > trades[j].Timestamp
		})
	default:
		WriteErrorWithCode(w, http.StatusBadRequest, "sort must be 'insertion' or 'recent'", CodeValidation)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"trades":  trades,
		"count":   len(trades),
		"version": s.app.Ledger.Version(),
	})
}

func (s *Server) handleTradeAdd(w http.ResponseWriter, r *http.Request) {
	var input models.TradeInput
	if !DecodeJSON(w, r, &input) {
		return
	}

	trade, err := s.app.Ledger.Add(input)
	if err != nil {
		if WriteValidationError(w, err) {
			return
		}
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error adding trade: %v", err))
		return
	}

	WriteJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleTradeGet(w http.ResponseWriter, r *http.Request, id string) {
	trade, ok := s.app.Ledger.Get(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, "Trade not found: "+id, CodeNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, trade)
}

// handleTradeDelete removes a trade. Unknown ids are not an error.
func (s *Server) handleTradeDelete(w http.ResponseWriter, r *http.Request, id string) {
	s.app.Ledger.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Portfolio handlers ---

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Engine.View())
}

func (s *Server) handlePortfolioHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	holdings := s.app.Engine.Holdings()
	if queryBool(r, "open") {
		holdings = portfolio.FilterOpen(holdings)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

func (s *Server) handlePortfolioStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Engine.Stats())
}

func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	png, err := portfolio.RenderAllocationChart(s.app.Engine.Holdings())
	if err != nil {
		if errors.Is(err, portfolio.ErrNothingToChart) {
			WriteErrorWithCode(w, http.StatusNotFound, err.Error(), CodeNotFound)
			return
		}
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Chart error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// --- Market data handlers ---

func (s *Server) handleMarketQuotes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Cache.Load())
}

// handleMarketSync runs a sync outside the schedule. Provider failures are
// reported in the result body, not as an HTTP error.
func (s *Server) handleMarketSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.SyncNow(r.Context()))
}

// --- Workspace handlers ---

func (s *Server) handleWorkspaceExport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	data, filename, err := s.app.ExportWorkspace(s.now())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Export error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleWorkspaceImport replaces the ledger with an uploaded workspace file.
// A rejected file leaves the ledger untouched.
func (s *Server) handleWorkspaceImport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWorkspaceBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read workspace: %v", err))
		return
	}

	if err := s.app.Ledger.Import(data); err != nil {
		if WriteValidationError(w, err) {
			return
		}
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Import error: %v", err))
		return
	}

	s.logger.Info().Int("trades", s.app.Ledger.Len()).Msg("Workspace imported via API")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imported": s.app.Ledger.Len(),
		"version":  s.app.Ledger.Version(),
	})
}

// --- Advisor handlers ---

// handleAdvisorReport always answers 200. An unavailable report is signalled
// by available=false rather than an error status.
func (s *Server) handleAdvisorReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !s.app.Reports.Available() {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
			"report":    nil,
			"reason":    "advisor not configured",
		})
		return
	}

	report := s.app.Reports.GenerateReport(r.Context(), s.app.Engine.Holdings())

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"available": report != nil,
		"report":    report,
	})
}
