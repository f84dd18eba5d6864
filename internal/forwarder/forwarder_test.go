package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

type fakeAttemptLog struct {
	mu       sync.Mutex
	attempts []*model.ForwardAttempt
}

func (f *fakeAttemptLog) Append(ctx context.Context, a *model.ForwardAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwardSuccess(t *testing.T) {
	var gotBatch model.ConversionBatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/px-1/events" {
			t.Errorf("path = %q, want /px-1/events", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBatch); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	log := &fakeAttemptLog{}
	fwd := New(srv.URL, "px-1", "tok", "", log, metrics.NewNoop(), discardLogger())

	result, err := fwd.Forward(context.Background(), testMatch())
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if result.Status != model.ForwardStatusSuccess {
		t.Errorf("Status = %q, want success", result.Status)
	}
	if result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %d, want 200", result.HTTPStatus)
	}

	if len(gotBatch.Data) != 1 {
		t.Fatalf("batch has %d events, want 1", len(gotBatch.Data))
	}
	if gotBatch.Data[0].EventID != "HP300" {
		t.Errorf("EventID = %q, want HP300", gotBatch.Data[0].EventID)
	}
	if gotBatch.TestEventCode != "" {
		t.Errorf("TestEventCode = %q, want empty for real sends", gotBatch.TestEventCode)
	}

	if len(log.attempts) != 1 {
		t.Fatalf("logged %d attempts, want 1", len(log.attempts))
	}
	attempt := log.attempts[0]
	if attempt.Status != model.ForwardStatusSuccess {
		t.Errorf("attempt status = %q, want success", attempt.Status)
	}
	if attempt.TransactionID != "HP300" {
		t.Errorf("attempt transaction = %q, want HP300", attempt.TransactionID)
	}
	if attempt.ID == "" {
		t.Error("attempt id is empty")
	}
	if attempt.Confidence != 95 {
		t.Errorf("attempt confidence = %d, want 95", attempt.Confidence)
	}
}

func TestForwardNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid parameter"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	log := &fakeAttemptLog{}
	fwd := New(srv.URL, "px-1", "tok", "", log, metrics.NewNoop(), discardLogger())

	result, err := fwd.Forward(context.Background(), testMatch())
	if !errors.Is(err, ErrForward) {
		t.Errorf("error = %v, want ErrForward", err)
	}
	if result.Status != model.ForwardStatusError {
		t.Errorf("Status = %q, want error", result.Status)
	}
	if result.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want 400", result.HTTPStatus)
	}

	// The attempt is logged even though delivery failed
	if len(log.attempts) != 1 {
		t.Fatalf("logged %d attempts, want 1", len(log.attempts))
	}
	if log.attempts[0].Status != model.ForwardStatusError {
		t.Errorf("attempt status = %q, want error", log.attempts[0].Status)
	}
	if log.attempts[0].HTTPStatus == nil || *log.attempts[0].HTTPStatus != http.StatusBadRequest {
		t.Error("attempt http status not recorded")
	}
	if log.attempts[0].Error == "" {
		t.Error("attempt error detail is empty")
	}
}

func TestSendTestIncludesTestEventCode(t *testing.T) {
	var gotBatch model.ConversionBatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBatch)
		w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	fwd := New(srv.URL, "px-1", "tok", "TEST123", &fakeAttemptLog{}, metrics.NewNoop(), discardLogger())

	event := BuildEvent(testMatch())
	if _, err := fwd.SendTest(context.Background(), event); err != nil {
		t.Fatalf("SendTest: %v", err)
	}

	if gotBatch.TestEventCode != "TEST123" {
		t.Errorf("TestEventCode = %q, want TEST123", gotBatch.TestEventCode)
	}
}

func TestForwardCountsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rec := metrics.NewInMemory()
	fwd := New(srv.URL, "px-1", "tok", "", &fakeAttemptLog{}, rec, discardLogger())

	if _, err := fwd.Forward(context.Background(), testMatch()); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	snap := rec.Snapshot()
	if snap.ForwardsSucceeded != 1 {
		t.Errorf("ForwardsSucceeded = %d, want 1", snap.ForwardsSucceeded)
	}
	if snap.ForwardDurationCount != 1 {
		t.Errorf("ForwardDurationCount = %d, want 1", snap.ForwardDurationCount)
	}
}
