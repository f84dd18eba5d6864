//go:build integration

package repository

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/convtrack/convtrack/internal/model"
	"github.com/convtrack/convtrack/internal/testutil"
)

// ============================================================================
// Forward Log Repository Integration Tests
// ============================================================================

func TestIntegrationForwardLog_AppendAndList(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	log := NewForwardLogRepository(repo)

	status := 200
	attempt := &model.ForwardAttempt{
		ID:            ulid.Make().String(),
		TransactionID: testutil.UniqueID("HP"),
		EventID:       testutil.UniqueID("HP"),
		Status:        model.ForwardStatusSuccess,
		HTTPStatus:    &status,
		Confidence:    85,
		Signals:       []string{"time_window", "country", "city"},
		Currency:      "BRL",
		Value:         197.50,
		CreatedAt:     time.Now().UTC(),
	}

	if err := log.Append(ctx, attempt); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	attempts, err := log.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}

	got := attempts[0]
	if got.ID != attempt.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, attempt.ID)
	}
	if got.Status != model.ForwardStatusSuccess {
		t.Errorf("Status mismatch: got %q", got.Status)
	}
	if got.HTTPStatus == nil || *got.HTTPStatus != 200 {
		t.Errorf("HTTPStatus mismatch: got %v", got.HTTPStatus)
	}
	if len(got.Signals) != 3 || got.Signals[1] != "country" {
		t.Errorf("Signals mismatch: got %v", got.Signals)
	}
	if got.Value != 197.50 {
		t.Errorf("Value mismatch: got %v", got.Value)
	}
}

func TestIntegrationForwardLog_Stats(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	log := NewForwardLogRepository(repo)

	now := time.Now().UTC()
	attempts := []*model.ForwardAttempt{
		{ID: ulid.Make().String(), TransactionID: "tx-1", EventID: "tx-1", Status: model.ForwardStatusSuccess, CreatedAt: now},
		{ID: ulid.Make().String(), TransactionID: "tx-2", EventID: "tx-2", Status: model.ForwardStatusSuccess, CreatedAt: now},
		{ID: ulid.Make().String(), TransactionID: "tx-3", EventID: "tx-3", Status: model.ForwardStatusError, Error: "bad request", CreatedAt: now},
	}
	for _, a := range attempts {
		if err := log.Append(ctx, a); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	stats, err := log.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.Successful != 2 {
		t.Errorf("expected 2 successful, got %d", stats.Successful)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if stats.LastSentAt == nil {
		t.Error("expected LastSentAt to be set")
	}
}

func TestIntegrationForwardLog_PurgeOlderThan(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	log := NewForwardLogRepository(repo)

	old := &model.ForwardAttempt{
		ID:            ulid.Make().String(),
		TransactionID: "tx-old",
		EventID:       "tx-old",
		Status:        model.ForwardStatusSuccess,
		CreatedAt:     time.Now().UTC().Add(-10 * 24 * time.Hour),
	}
	fresh := &model.ForwardAttempt{
		ID:            ulid.Make().String(),
		TransactionID: "tx-fresh",
		EventID:       "tx-fresh",
		Status:        model.ForwardStatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}

	if err := log.Append(ctx, old); err != nil {
		t.Fatalf("Append old failed: %v", err)
	}
	if err := log.Append(ctx, fresh); err != nil {
		t.Fatalf("Append fresh failed: %v", err)
	}

	purged, err := log.PurgeOlderThan(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged row, got %d", purged)
	}
}
