package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"cosmotablas-service/internal/app"
	"cosmotablas-service/internal/domain"
	"cosmotablas-service/internal/metrics"
	"cosmotablas-service/internal/wire"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const boardCacheControl = "s-maxage=30, stale-while-revalidate=60"

// Handler serves the records gateway over HTTP.
type Handler struct {
	gateway *app.GatewayService
	metrics *metrics.Recorder
	logger  *slog.Logger
	limiter *rate.Limiter
	ws      *WSHandler
}

// Option customizes a Handler.
type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimit bounds POST traffic across all clients. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewHandler(gateway *app.GatewayService, opts ...Option) *Handler {
	h := &Handler{
		gateway: gateway,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ws = NewWSHandler(gateway, h.logger)
	return h
}

// Routes registers the gateway endpoints at the root and under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverPanics)
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", h.metrics.Handler())
	r.Get("/ws/leaderboard", h.ws.ServeWS)

	h.mountGateway(r)
	r.Route("/api", h.mountGateway)
	return r
}

func (h *Handler) mountGateway(r chi.Router) {
	r.HandleFunc("/records", h.handleRecords)
	r.HandleFunc("/leaderboard", h.handleLeaderboard)
	r.HandleFunc("/mistakes", h.handleMistakes)
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, "POST, OPTIONS")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		if !h.allow(w) {
			return
		}
		var req wire.RecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// An unreadable body carries none of the required fields.
			req = wire.RecordRequest{}
		}
		id, err := h.gateway.Submit(r.Context(), req.Submission())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, wire.RecordCreated{Success: true, ID: id})
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, "GET, OPTIONS")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
	default:
		methodNotAllowed(w)
		return
	}

	raw := r.URL.Query().Get("table")
	if raw == "" {
		boards, err := h.gateway.AllTables(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", boardCacheControl)
		writeJSON(w, http.StatusOK, wire.FromBoards(boards))
		return
	}

	table, err := strconv.Atoi(raw)
	if err != nil {
		h.fail(w, r, domain.CheckStandardTable(0))
		return
	}
	mode := domain.ParseBoardMode(r.URL.Query().Get("mode"))
	records, err := h.gateway.Leaderboard(r.Context(), table, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RecordsResponse{Records: wire.FromRecords(records)})
}

func (h *Handler) handleMistakes(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, "GET, POST, OPTIONS")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		entries, err := h.gateway.TopMistakes(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", boardCacheControl)
		writeJSON(w, http.StatusOK, wire.MistakesResponse{Mistakes: entries})
	case http.MethodPost:
		if !h.allow(w) {
			return
		}
		var req wire.MistakesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			req = wire.MistakesRequest{}
		}
		count, err := h.gateway.IngestMistakes(r.Context(), req.Keys())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wire.MistakesAccepted{Success: true, Count: count})
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) allow(w http.ResponseWriter) bool {
	if h.limiter == nil || h.limiter.Allow() {
		return true
	}
	writeError(w, http.StatusTooManyRequests, "Too many requests")
	return false
}

// fail maps validation errors to 400 with their reason and hides everything else.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if reason := domain.Reason(err); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}
	h.logger.Error("request_failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func allowCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
