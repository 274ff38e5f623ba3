package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"folio/internal/api"
	"folio/internal/dispatch"
	"folio/internal/logging"
	"folio/internal/services"
)

const (
	maxCommandBody      = 4 << 10
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	requestIDHeader     = "X-Request-ID"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/command", srv.handleCommand)
	mux.HandleFunc("/api/history", srv.handleHistory)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DataDir:      status.DataDir,
		LockFilePath: status.LockFilePath,
		Dispatcher:   api.FromStatusSummary(status.Dispatcher),
	}
	if status.History != nil {
		payload.History = api.FromHistorySummary(*status.History)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CommandRequest
	body := io.LimitReader(r.Body, maxCommandBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid command body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := services.WithRequestID(r.Context(), requestID)

	reply, err := s.daemon.Submit(ctx, req.Text)
	if err != nil {
		if errors.Is(err, dispatch.ErrStopped) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		// The requester went away; the reply is discarded.
		logging.WithContext(ctx, s.log()).Debug("command abandoned", logging.Error(err))
		return
	}
	w.Header().Set(requestIDHeader, reply.RequestID)
	s.writeJSON(w, http.StatusOK, api.FromReply(reply))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultHistoryLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	entries, err := s.daemon.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, services.UserMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: api.FromHistoryEntries(entries)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
