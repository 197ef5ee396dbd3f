// Package api implements the bizhealthd REST API.
// It scores fact snapshots, serves archived reports and exposes score history.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bizhealth/bizhealth/internal/history"
	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/internal/logging"
	"github.com/bizhealth/bizhealth/internal/metrics"
	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// HistoryReader is the read side of the score history.
// *history.Service implements it.
type HistoryReader interface {
	ListWorkspaces(ctx context.Context) ([]history.Workspace, error)
	ListReports(ctx context.Context, workspace string, limit int) ([]history.Report, error)
	Trend(ctx context.Context, workspace string, since time.Time) ([]history.Point, error)
}

// Reports is the report pipeline. *ingestion.Service implements it.
type Reports interface {
	Ingest(ctx context.Context, snap *facts.Snapshot) (*ingestion.Report, error)
	Load(ctx context.Context, reportID string) (*ingestion.Report, error)
	Rescore(ctx context.Context, reportID string) (*ingestion.Report, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Metrics and Logger may be nil.
type Deps struct {
	Reports     Reports
	History     HistoryReader
	Clients     *clienthealth.Scorer
	Cache       *ReportCache
	Metrics     *metrics.Recorder
	Logger      *zap.Logger
	Concurrency int // parallel client scoring limit
	APIKey      string
	Health      Pinger // checked by /healthz when set

	// Webhook, when set, is mounted at POST /api/v1/webhooks/facts. It
	// authenticates deliveries itself.
	Webhook http.Handler
}

// Handler is the top-level API handler for bizhealthd.
type Handler struct {
	reports     Reports
	history     HistoryReader
	clients     *clienthealth.Scorer
	cache       *ReportCache
	metrics     *metrics.Recorder
	logger      *zap.Logger
	concurrency int
	apiKey      string
	health      Pinger
	webhook     http.Handler
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = NewReportCache(0)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clients == nil {
		d.Clients = clienthealth.New(clienthealth.DefaultRules(), nil)
	}
	if d.Concurrency <= 0 {
		d.Concurrency = 4
	}
	return &Handler{
		reports:     d.Reports,
		history:     d.History,
		clients:     d.Clients,
		cache:       d.Cache,
		metrics:     d.Metrics,
		logger:      logging.WithComponent(d.Logger, "api"),
		concurrency: d.Concurrency,
		apiKey:      d.APIKey,
		health:      d.Health,
		webhook:     d.Webhook,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	auth := APIKeyAuth(h.apiKey)

	// Write endpoints (auth-protected)
	mux.Handle("POST /api/v1/score", auth(http.HandlerFunc(h.handleScore)))
	mux.Handle("POST /api/v1/clients/score", auth(http.HandlerFunc(h.handleScoreClients)))
	mux.Handle("POST /api/v1/scores/{scoreID}/rescore", auth(http.HandlerFunc(h.handleRescore)))
	if h.webhook != nil {
		mux.Handle("POST /api/v1/webhooks/facts", h.webhook)
	}

	// Read endpoints
	mux.HandleFunc("GET /api/v1/workspaces", h.handleListWorkspaces)
	mux.HandleFunc("GET /api/v1/workspaces/{workspace}/scores", h.handleListScores)
	mux.HandleFunc("GET /api/v1/workspaces/{workspace}/history", h.handleHistory)
	mux.HandleFunc("GET /api/v1/scores/{scoreID}", h.handleGetScore)
	mux.HandleFunc("GET /api/v1/scores/{scoreID}/trees/{category}", h.handleGetTree)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// Routes returns the full middleware-wrapped handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return CORS(Instrument(h.metrics, h.logger)(mux))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
