package server

import (
	"net/http"

	"github.com/bobmcallan/aether/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.Handle("/metrics", s.app.Metrics.Handler())

	// Ledger
	mux.HandleFunc("/api/trades/", s.routeTrades)
	mux.HandleFunc("/api/trades", s.handleTrades)

	// Portfolio
	mux.HandleFunc("/api/portfolio/holdings", s.handlePortfolioHoldings)
	mux.HandleFunc("/api/portfolio/stats", s.handlePortfolioStats)
	mux.HandleFunc("/api/portfolio/chart.png", s.handlePortfolioChart)
	mux.HandleFunc(streamPath, s.handlePortfolioStream)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)

	// Market data
	mux.HandleFunc("/api/market/quotes", s.handleMarketQuotes)
	mux.HandleFunc("/api/market/sync", s.handleMarketSync)

	// Workspace
	mux.HandleFunc("/api/workspace/export", s.handleWorkspaceExport)
	mux.HandleFunc("/api/workspace/import", s.handleWorkspaceImport)

	// Advisor
	mux.HandleFunc("/api/advisor/report", s.handleAdvisorReport)
}

// routeTrades dispatches /api/trades/{id}.
func (s *Server) routeTrades(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/trades/", "")
	if id == "" {
		s.handleTrades(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleTradeGet(w, r, id)
	case http.MethodDelete:
		s.handleTradeDelete(w, r, id)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"trades":         s.app.Ledger.Len(),
		"cache_version":  s.app.Cache.Version(),
		"advisor":        s.app.Reports.Available(),
		"uptime_seconds": int64(s.now().Sub(s.app.StartupTime).Seconds()),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetBuildInfo())
}
