package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/convtrack/convtrack/internal/attribution"
	"github.com/convtrack/convtrack/internal/model"
	"github.com/convtrack/convtrack/internal/sales"
)

// SaleProcessor runs the attribution pipeline for one sale.
type SaleProcessor interface {
	ProcessSale(ctx context.Context, sale *model.SaleRecord) (*attribution.ProcessResult, error)
}

// SaleWebhookHandler accepts purchase webhooks pushed by the payment
// platform and feeds them into the same pipeline the poller uses.
type SaleWebhookHandler struct {
	processor   SaleProcessor
	logger      *slog.Logger
	maxBodySize int64
}

// NewSaleWebhookHandler creates a SaleWebhookHandler.
func NewSaleWebhookHandler(processor SaleProcessor, logger *slog.Logger, maxBodySize int64) *SaleWebhookHandler {
	return &SaleWebhookHandler{
		processor:   processor,
		logger:      logger.With("component", "handler.sale_webhook"),
		maxBodySize: maxBodySize,
	}
}

// webhookResponse reports the pipeline outcome to the platform. The
// platform only cares about the 2xx; the body helps manual debugging.
type webhookResponse struct {
	Status  string               `json:"status"`
	Outcome attribution.Outcome  `json:"outcome,omitempty"`
	Forward *model.ForwardResult `json:"forward,omitempty"`
}

// Receive handles one webhook delivery.
//
// POST /api/v1/sales/webhook
func (h *SaleWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var payload model.SaleWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}

	sale, err := sales.MapWebhookSale(&payload)
	if err != nil {
		if errors.Is(err, sales.ErrUnsupportedEvent) {
			// Acknowledge unrelated events so the platform stops resending
			h.logger.Debug("ignoring webhook event", "event", payload.Event)
			writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	result, err := h.processor.ProcessSale(r.Context(), sale)
	if err != nil {
		h.logger.Error("webhook sale processing failed",
			"transaction_id", sale.TransactionID, "error", err)
		writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "sale could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:  "processed",
		Outcome: result.Outcome,
		Forward: result.Forward,
	})
}
