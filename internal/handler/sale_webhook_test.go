package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/convtrack/convtrack/internal/attribution"
	"github.com/convtrack/convtrack/internal/model"
)

type fakeProcessor struct {
	sales  []*model.SaleRecord
	result *attribution.ProcessResult
	err    error
}

func (f *fakeProcessor) ProcessSale(ctx context.Context, sale *model.SaleRecord) (*attribution.ProcessResult, error) {
	f.sales = append(f.sales, sale)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

const purchaseWebhookJSON = `{
	"event": "PURCHASE_APPROVED",
	"data": {
		"purchase": {
			"transaction": "HP900",
			"order_date": 1767225600000,
			"status": "APPROVED",
			"price": {"value": 49.9, "currency_value": "BRL"}
		},
		"buyer": {
			"email": "buyer@example.com",
			"address": {"city": "Campinas", "state": "SP", "country": "Brasil"}
		},
		"product": {"id": 7, "name": "Mentoria"}
	}
}`

func TestWebhookReceiveProcessed(t *testing.T) {
	processor := &fakeProcessor{result: &attribution.ProcessResult{
		Outcome: attribution.OutcomeForwarded,
		Forward: &model.ForwardResult{Status: model.ForwardStatusSuccess, EventID: "HP900"},
	}}
	h := NewSaleWebhookHandler(processor, discardLogger(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/webhook", strings.NewReader(purchaseWebhookJSON))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "processed" {
		t.Errorf("status = %q, want processed", resp.Status)
	}
	if resp.Outcome != attribution.OutcomeForwarded {
		t.Errorf("outcome = %q, want forwarded", resp.Outcome)
	}

	if len(processor.sales) != 1 {
		t.Fatalf("processed %d sales, want 1", len(processor.sales))
	}
	if processor.sales[0].TransactionID != "HP900" {
		t.Errorf("transaction = %q, want HP900", processor.sales[0].TransactionID)
	}
	if processor.sales[0].AmountCents != 4990 {
		t.Errorf("AmountCents = %d, want 4990", processor.sales[0].AmountCents)
	}
}

func TestWebhookReceiveIgnoresOtherEvents(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewSaleWebhookHandler(processor, discardLogger(), 1<<20)

	body := `{"event": "PURCHASE_REFUNDED", "data": {"purchase": {"transaction": "HP901"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 so the platform stops resending", rec.Code)
	}
	if len(processor.sales) != 0 {
		t.Error("unrelated event reached the pipeline")
	}
}

func TestWebhookReceiveMalformedBody(t *testing.T) {
	h := NewSaleWebhookHandler(&fakeProcessor{}, discardLogger(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookReceiveMissingTransaction(t *testing.T) {
	h := NewSaleWebhookHandler(&fakeProcessor{}, discardLogger(), 1<<20)

	body := `{"event": "PURCHASE_APPROVED", "data": {}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookReceiveProcessingFailure(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("redis down")}
	h := NewSaleWebhookHandler(processor, discardLogger(), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/webhook", strings.NewReader(purchaseWebhookJSON))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
