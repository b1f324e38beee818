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
	"sync"
	"time"

	"github.com/gorilla/mux"

	"herhaven/internal/api"
	"herhaven/internal/config"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
	"herhaven/internal/submission"
	"herhaven/internal/workflow"
)

const maxRequestBody = 64 << 10

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.router = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMiddleware(token))

	apiRouter.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	apiRouter.HandleFunc("/notifications/test", s.handleTestNotification).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sos", s.handleSubmit(queue.KindSOS)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/contact", s.handleSubmit(queue.KindContact)).Methods(http.MethodPost)

	queues := apiRouter.PathPrefix("/queues/{kind}").Subrouter()
	queues.HandleFunc("/status", s.handleQueueStatus).Methods(http.MethodGet)
	queues.HandleFunc("/entries", s.handleEntries).Methods(http.MethodGet)
	queues.HandleFunc("/entries/{id}", s.handleRemoveEntry).Methods(http.MethodDelete)
	queues.HandleFunc("/drain", s.handleDrain).Methods(http.MethodPost)
	queues.HandleFunc("/clear-synced", s.handleClearSynced).Methods(http.MethodPost)
	queues.HandleFunc("/retain-active", s.handleRetainActive).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.api_bind"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
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
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleSubmit(kind queue.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read request body: %v", err))
			return
		}
		resp, err := s.daemon.Submit(r.Context(), kind, body)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.logger.Info("submission accepted",
			logging.String(logging.FieldQueue, string(kind)),
			logging.String(logging.FieldEntryID, resp.ID),
			logging.String(logging.FieldCorrelationID, requestID(r)),
			logging.Bool("online", resp.Online),
			logging.String(logging.FieldEventType, "submission_accepted"),
		)
		s.writeJSON(w, http.StatusAccepted, resp)
	}
}

func (s *apiServer) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	status, err := s.daemon.QueueStatus(r.Context(), kind)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	var statuses []queue.Status
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				statuses = append(statuses, queue.Status(strings.ToLower(trimmed)))
			}
		}
	}
	withPayload := truthy(query.Get("payload"))
	entries, err := s.daemon.ListEntries(r.Context(), kind, statuses, withPayload)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryListResponse{Kind: string(kind), Entries: entries})
}

func (s *apiServer) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.RemoveEntry(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDrain(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	info, err := s.daemon.Drain(r.Context(), kind)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *apiServer) handleClearSynced(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.ClearSynced(r.Context(), kind)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRetainActive(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.RetainActive(r.Context(), kind)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "message": message})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := truthy(query.Get("follow"))
	tail := truthy(query.Get("tail"))
	queueFilter := strings.TrimSpace(query.Get("queue"))
	entryFilter := strings.TrimSpace(query.Get("entry"))
	component := strings.TrimSpace(query.Get("component"))

	var (
		raw  []logging.LogEvent
		next uint64
	)
	if tail && since == 0 && !follow {
		raw, next = hub.Tail(limit)
	} else {
		var err error
		raw, next, err = hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	converted := api.ConvertLogEvents(raw)
	filtered := make([]api.LogEvent, 0, len(converted))
	for _, evt := range converted {
		if queueFilter != "" && !strings.EqualFold(queueFilter, evt.Queue) {
			continue
		}
		if entryFilter != "" && entryFilter != evt.EntryID {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *apiServer) kindFromRequest(w http.ResponseWriter, r *http.Request) (queue.Kind, bool) {
	kind, err := queue.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, queue.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrUnknownKind), errors.Is(err, ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrOffline), errors.Is(err, queue.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(s.logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String(logging.FieldCorrelationID, requestID(r)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check daemon logs and storage backend"),
			logging.String(logging.FieldImpact, "request was not applied"),
		)
	}
	s.writeJSON(w, status, api.ErrorFrom(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func requestID(r *http.Request) string {
	id, _ := logging.RequestIDFromContext(r.Context())
	return id
}

func truthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true") || strings.EqualFold(value, "yes")
}
