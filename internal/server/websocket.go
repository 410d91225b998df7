package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/aether/internal/models"
)

const (
	streamPath = "/api/portfolio/stream"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is one frame on the portfolio stream.
type streamMessage struct {
	Type string                `json:"type"`
	View *models.PortfolioView `json:"view"`
}

// handlePortfolioStream upgrades to a WebSocket and pushes every new
// portfolio view. The first frame is the current view. A slow client skips
// intermediate views and only receives the latest.
func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	views, unsubscribe := s.app.Engine.Subscribe()
	s.app.Metrics.AddStreamClients(1)
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Portfolio stream client connected")

	closed := make(chan struct{})
	go s.streamReadPump(conn, closed)

	s.streamWritePump(conn, views, closed)

	unsubscribe()
	conn.Close()
	s.app.Metrics.AddStreamClients(-1)
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Portfolio stream client disconnected")
}

// streamWritePump sends views and keepalive pings until the client goes
// away, the subscription ends or the server shuts down.
func (s *Server) streamWritePump(conn *websocket.Conn, views <-chan *models.PortfolioView, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case view, ok := <-views:
			if !ok {
				return
			}
			data, err := json.Marshal(streamMessage{Type: "portfolio", View: view})
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to marshal portfolio view")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// streamReadPump reads (and discards) client frames to detect close.
func (s *Server) streamReadPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
