package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/feedbridge/twitter-bridge/internal/service"
)

// Server provides the HTTP control plane: registering accounts and watches,
// and reading scheduler state.
type Server struct {
	watches *service.WatchService
	logger  *zap.Logger

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(watches *service.WatchService, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		watches: watches,
		logger:  logger,
		port:    port,
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Accounts
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	// Watches
	mux.HandleFunc("/api/watches", s.handleWatches)
	mux.HandleFunc("/api/watches/channel", s.handleChannelWatch)
	mux.HandleFunc("/api/watches/timeline", s.handleTimelineWatch)
	mux.HandleFunc("/api/watches/followers", s.handleFollowerWatch)

	// Quota state
	mux.HandleFunc("/api/quota", s.handleQuota)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting HTTP server", zap.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Account Handlers ============

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Account string `json:"account"`
		Token   string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.watches.RegisterAccount(r.Context(), req.Account, req.Token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

// ============ Watch Handlers ============

type watchRequest struct {
	Account string `json:"account"`
	Channel string `json:"channel"`
}

func (s *Server) handleWatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.watches.Watches())
}

func (s *Server) handleChannelWatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeWatch(w, r)
	if !ok {
		return
	}
	if err := s.watches.WatchChannel(req.Account, req.Channel); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) handleTimelineWatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeWatch(w, r)
	if !ok {
		return
	}
	if err := s.watches.WatchTimeline(req.Account); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) handleFollowerWatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeWatch(w, r)
	if !ok {
		return
	}
	if err := s.watches.WatchFollowers(req.Account); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) decodeWatch(w http.ResponseWriter, r *http.Request) (*watchRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// ============ Quota Handlers ============

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]interface{}{"buckets": s.watches.Quota()})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrInvalidWatch) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
