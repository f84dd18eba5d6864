// Package forwarder delivers matched conversions to the ad platform's
// server events API and records every attempt.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second
)

// NewHTTPClient creates an HTTP client configured for event delivery.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// AttemptLog persists forwarding attempts.
type AttemptLog interface {
	Append(ctx context.Context, a *model.ForwardAttempt) error
}

// Forwarder sends conversion events and logs the outcome. A failed send is
// recorded but never retried; the dedup claim upstream already guarantees
// each sale is forwarded at most once.
type Forwarder struct {
	apiURL        string
	pixelID       string
	accessToken   string
	testEventCode string

	httpClient *http.Client
	log        AttemptLog
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// New creates a Forwarder.
func New(apiURL, pixelID, accessToken, testEventCode string, log AttemptLog, recorder metrics.Recorder, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		apiURL:        apiURL,
		pixelID:       pixelID,
		accessToken:   accessToken,
		testEventCode: testEventCode,
		httpClient:    NewHTTPClient(),
		log:           log,
		metrics:       recorder,
		logger:        logger.With("component", "forwarder"),
	}
}

// Forward builds the event for a match, delivers it and appends a
// ForwardAttempt either way. The returned result mirrors what was logged.
func (f *Forwarder) Forward(ctx context.Context, m *model.Match) (*model.ForwardResult, error) {
	event := BuildEvent(m)
	result := f.send(ctx, event, false)

	attempt := &model.ForwardAttempt{
		ID:            ulid.Make().String(),
		TransactionID: m.Sale.TransactionID,
		EventID:       result.EventID,
		Status:        result.Status,
		Error:         result.Error,
		Confidence:    m.Result.Confidence,
		Signals:       m.Result.Signals.Names(),
		Currency:      m.Sale.Currency,
		Value:         event.CustomData.Value,
		CreatedAt:     time.Now().UTC(),
	}
	if result.HTTPStatus != 0 {
		status := result.HTTPStatus
		attempt.HTTPStatus = &status
	}

	if err := f.log.Append(ctx, attempt); err != nil {
		f.logger.Error("failed to log forward attempt",
			"transaction_id", m.Sale.TransactionID, "error", err)
	}

	f.metrics.IncConversionForwarded(string(result.Status))

	if result.Status == model.ForwardStatusError {
		return result, fmt.Errorf("%w: %s", ErrForward, result.Error)
	}
	return result, nil
}

// SendTest delivers a synthetic event flagged with the test event code so
// operators can verify connectivity without polluting real conversions.
func (f *Forwarder) SendTest(ctx context.Context, event model.ConversionEvent) (*model.ForwardResult, error) {
	result := f.send(ctx, event, true)
	if result.Status == model.ForwardStatusError {
		return result, fmt.Errorf("%w: %s", ErrForward, result.Error)
	}
	return result, nil
}

func (f *Forwarder) send(ctx context.Context, event model.ConversionEvent, isTest bool) *model.ForwardResult {
	result := &model.ForwardResult{EventID: event.EventID}

	batch := model.ConversionBatch{Data: []model.ConversionEvent{event}}
	if isTest && f.testEventCode != "" {
		batch.TestEventCode = f.testEventCode
	}

	body, err := json.Marshal(batch)
	if err != nil {
		result.Status = model.ForwardStatusError
		result.Error = fmt.Sprintf("marshal batch: %v", err)
		return result
	}

	url := fmt.Sprintf("%s/%s/events", f.apiURL, f.pixelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Status = model.ForwardStatusError
		result.Error = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.accessToken)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	f.metrics.ObserveForwardDuration(time.Since(start))

	if err != nil {
		result.Status = model.ForwardStatusError
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		result.Status = model.ForwardStatusError
		result.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, string(excerpt))
		return result
	}

	result.Status = model.ForwardStatusSuccess
	f.logger.Info("conversion forwarded",
		"event_id", event.EventID, "value", event.CustomData.Value, "test", isTest)
	return result
}
