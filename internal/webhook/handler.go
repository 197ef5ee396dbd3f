package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/internal/logging"
	"github.com/bizhealth/bizhealth/pkg/facts"
)

// maxPayload bounds a single delivery.
const maxPayload = 10 << 20

// Ingester scores and archives a snapshot. *ingestion.Service implements it.
type Ingester interface {
	Ingest(ctx context.Context, snap *facts.Snapshot) (*ingestion.Report, error)
}

// Handler processes incoming webhook deliveries.
type Handler struct {
	secret  []byte
	reports Ingester
	logger  *zap.Logger
}

// NewHandler creates a new webhook Handler. logger may be nil.
func NewHandler(secret []byte, reports Ingester, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		secret:  secret,
		reports: reports,
		logger:  logging.WithComponent(logger, "webhook"),
	}
}

// ServeHTTP handles one delivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayload+1))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if len(body) > maxPayload {
		writeStatus(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	delivery := r.Header.Get(HeaderDelivery)
	logger := h.logger.With(zap.String("delivery", delivery))

	if err := VerifySignature(body, r.Header.Get(HeaderSignature), h.secret); err != nil {
		logger.Warn("signature verification failed", zap.Error(err))
		writeStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	eventType := r.Header.Get(HeaderEvent)
	if eventType == "" {
		writeStatus(w, http.StatusBadRequest, map[string]string{"error": "missing " + HeaderEvent + " header"})
		return
	}

	event, err := ParseEvent(eventType, body)
	if err != nil {
		logger.Warn("unparseable delivery", zap.String("event", eventType), zap.Error(err))
		writeStatus(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	switch e := event.(type) {
	case *PingEvent:
		logger.Info("ping", zap.String("source", e.Source))
		writeStatus(w, http.StatusOK, map[string]string{"status": "pong"})

	case *SnapshotEvent:
		rep, err := h.reports.Ingest(r.Context(), e.Snapshot)
		if err != nil {
			logger.Error("ingest snapshot", zap.String("source", e.Source), zap.Error(err))
			writeStatus(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		logging.WithFields(logger, logging.Fields{Workspace: rep.Workspace, ReportID: rep.ID}).
			Info("snapshot scored", zap.String("source", e.Source))
		writeStatus(w, http.StatusAccepted, map[string]string{
			"status":    "accepted",
			"report_id": rep.ID,
		})
	}
}

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
