package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// VisitorStatsSource exposes visitor store aggregates.
type VisitorStatsSource interface {
	Stats(ctx context.Context) (*model.VisitorStats, error)
}

// ForwardLogSource exposes the forward attempt log.
type ForwardLogSource interface {
	ListRecent(ctx context.Context, limit int) ([]*model.ForwardAttempt, error)
	Stats(ctx context.Context) (*model.ForwardStats, error)
}

// TestSender delivers a synthetic conversion event.
type TestSender interface {
	SendTest(ctx context.Context, event model.ConversionEvent) (*model.ForwardResult, error)
}

// SalesPoller triggers one poll cycle on demand.
type SalesPoller interface {
	Poll(ctx context.Context) (int, error)
}

// AdminHandler serves the operational endpoints behind API-key auth.
type AdminHandler struct {
	visitors   VisitorStatsSource
	forwardLog ForwardLogSource
	sender     TestSender
	poller     SalesPoller
	snapshots  metrics.Snapshotter
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(visitors VisitorStatsSource, forwardLog ForwardLogSource, sender TestSender, poller SalesPoller, snapshots metrics.Snapshotter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		visitors:   visitors,
		forwardLog: forwardLog,
		sender:     sender,
		poller:     poller,
		snapshots:  snapshots,
		logger:     logger.With("component", "handler.admin"),
	}
}

// pipelineStats is derived from the in-process metrics snapshot.
type pipelineStats struct {
	SalesMatched   uint64  `json:"sales_matched"`
	SalesUnmatched uint64  `json:"sales_unmatched"`
	SalesDuplicate uint64  `json:"sales_duplicate"`
	MatchRate      float64 `json:"match_rate"`
	PollRuns       uint64  `json:"poll_runs"`
	PollFailures   uint64  `json:"poll_failures"`
}

type statsResponse struct {
	Visitors *model.VisitorStats `json:"visitors"`
	Forwards *model.ForwardStats `json:"forwards"`
	Pipeline pipelineStats       `json:"pipeline"`
}

// Stats summarizes the whole pipeline.
//
// GET /api/v1/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	visitorStats, err := h.visitors.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to load visitor stats", "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "stats could not be loaded")
		return
	}

	forwardStats, err := h.forwardLog.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to load forward stats", "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "stats could not be loaded")
		return
	}

	snap := h.snapshots.Snapshot()
	pipeline := pipelineStats{
		SalesMatched:   snap.SalesMatched,
		SalesUnmatched: snap.SalesUnmatched,
		SalesDuplicate: snap.SalesDuplicate,
		PollRuns:       snap.PollRuns,
		PollFailures:   snap.PollFailures,
	}
	if evaluated := snap.SalesMatched + snap.SalesUnmatched; evaluated > 0 {
		pipeline.MatchRate = float64(snap.SalesMatched) / float64(evaluated)
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Visitors: visitorStats,
		Forwards: forwardStats,
		Pipeline: pipeline,
	})
}

// Logs lists recent forwarding attempts.
//
// GET /api/v1/conversions/logs?limit=N
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	attempts, err := h.forwardLog.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list forward attempts", "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "logs could not be loaded")
		return
	}
	if attempts == nil {
		attempts = []*model.ForwardAttempt{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(attempts),
		"attempts": attempts,
	})
}

// TestSend delivers a synthetic event flagged with the configured test
// event code, verifying credentials and connectivity end to end.
//
// POST /api/v1/conversions/test
func (h *AdminHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	event := model.ConversionEvent{
		EventName:    "Purchase",
		EventTime:    now.Unix(),
		EventID:      "test-" + strconv.FormatInt(now.UnixMilli(), 10),
		ActionSource: "website",
		UserData: model.UserData{
			Country: "brazil",
			City:    "sao paulo",
		},
		CustomData: model.CustomData{
			Currency:    "BRL",
			Value:       1,
			ContentName: "Connectivity Test",
		},
	}

	result, err := h.sender.SendTest(r.Context(), event)
	if err != nil {
		h.logger.Error("test event delivery failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"status": "error",
			"result": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "sent",
		"result": result,
	})
}

// CheckSales triggers one sales poll outside the regular schedule.
//
// POST /api/v1/sales/check
func (h *AdminHandler) CheckSales(w http.ResponseWriter, r *http.Request) {
	processed, err := h.poller.Poll(r.Context())
	if err != nil {
		h.logger.Error("manual sales poll failed", "error", err)
		writeError(w, http.StatusBadGateway, "POLL_FAILED", "sales poll failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"processed": processed,
	})
}
