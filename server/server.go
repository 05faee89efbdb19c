// Package server exposes the HTTP command/query API and the WebSocket event
// stream. Command-style endpoints always answer with a result object carrying
// success plus a message on failure; policy rejections are not HTTP errors.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"auric/agent"
	"auric/broker"
	"auric/feed"
	"auric/hub"
	"auric/market"
)

type Server struct {
	addr   string
	loop   *agent.Loop
	ledger broker.Broker
	source feed.Source
	events *hub.Hub
	log    *logrus.Entry
}

func New(addr string, loop *agent.Loop, ledger broker.Broker, source feed.Source, events *hub.Hub, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "server")
	}
	return &Server{
		addr:   addr,
		loop:   loop,
		ledger: ledger,
		source: source,
		events: events,
		log:    log,
	}
}

// Handler builds the route table. Split out from Run for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/account", s.handleAccount)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/candles", s.handleCandles)
	mux.HandleFunc("POST /api/trade", s.handleTrade)
	mux.HandleFunc("POST /api/agent/toggle", s.handleToggle)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ledger.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "online",
		"data_source_connected": s.source.Connected(),
		"agent_running":         s.loop.Enabled(),
		"mode":                  snap.Mode,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Snapshot(r.Context()))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.ledger.Positions(r.Context())
	if positions == nil {
		positions = []broker.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	tfParam := r.URL.Query().Get("timeframe")
	if tfParam == "" {
		tfParam = "M5"
	}
	tf, err := market.ParseTimeframe(tfParam)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	count := 200
	if c := r.URL.Query().Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be in 1..1000"})
			return
		}
		count = n
	}

	candles, err := s.source.RecentCandles(r.Context(), tf, count)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if candles == nil {
		candles = []market.Candle{}
	}
	writeJSON(w, http.StatusOK, candles)
}

type tradeRequest struct {
	Action string   `json:"action"` // buy | sell | close
	Volume float64  `json:"volume"`
	SL     *float64 `json:"sl,omitempty"`
	TP     *float64 `json:"tp,omitempty"`
	Ticket string   `json:"ticket,omitempty"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, broker.TradeResult{Success: false, Message: "invalid request body"})
		return
	}

	res := s.loop.ManualTrade(r.Context(), req.Action, req.Volume, req.SL, req.TP, req.Ticket)
	writeJSON(w, http.StatusOK, res)
}

type toggleRequest struct {
	Enable bool `json:"enable"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status := s.loop.Toggle(req.Enable)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
