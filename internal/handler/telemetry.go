package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

// VisitorStore persists inbound telemetry.
type VisitorStore interface {
	Upsert(ctx context.Context, v *model.VisitorRecord) error
}

// TelemetryHandler ingests visitor telemetry from the frontend pixel.
type TelemetryHandler struct {
	store       VisitorStore
	metrics     metrics.Recorder
	logger      *slog.Logger
	maxBodySize int64
}

// NewTelemetryHandler creates a TelemetryHandler.
func NewTelemetryHandler(store VisitorStore, recorder metrics.Recorder, logger *slog.Logger, maxBodySize int64) *TelemetryHandler {
	return &TelemetryHandler{
		store:       store,
		metrics:     recorder,
		logger:      logger.With("component", "handler.telemetry"),
		maxBodySize: maxBodySize,
	}
}

// Ingest accepts one telemetry payload and upserts the visitor record.
// A storage failure is reported as 503; the pixel retries on its own.
//
// POST /api/v1/telemetry/visitor
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var payload model.TelemetryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if payload.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELD", "external_id is required")
		return
	}

	record := payload.ToRecord(time.Now().UTC())

	if err := h.store.Upsert(r.Context(), record); err != nil {
		h.metrics.IncVisitorIngested("failed")
		h.logger.Error("failed to store visitor telemetry",
			"session_id", record.SessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "telemetry could not be stored")
		return
	}

	h.metrics.IncVisitorIngested("success")
	h.logger.Debug("visitor telemetry stored",
		"session_id", record.SessionID, "city", record.City, "country", record.Country)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "recorded",
		"session_id": record.SessionID,
	})
}
