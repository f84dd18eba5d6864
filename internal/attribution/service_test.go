package attribution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/convtrack/convtrack/internal/matching"
	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

var saleTime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fakeVisitors struct {
	visitors []*model.VisitorRecord
	err      error
	calls    int
}

func (f *fakeVisitors) Recent(ctx context.Context, ref time.Time, window time.Duration) ([]*model.VisitorRecord, error) {
	f.calls++
	return f.visitors, f.err
}

type fakeDedup struct {
	claimed map[string]bool
	err     error
}

func (f *fakeDedup) ClaimSale(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[transactionID] {
		return false, nil
	}
	f.claimed[transactionID] = true
	return true, nil
}

type fakeForwarder struct {
	err     error
	matches []*model.Match
}

func (f *fakeForwarder) Forward(ctx context.Context, m *model.Match) (*model.ForwardResult, error) {
	f.matches = append(f.matches, m)
	if f.err != nil {
		return &model.ForwardResult{Status: model.ForwardStatusError, EventID: m.Sale.TransactionID, Error: f.err.Error()}, f.err
	}
	return &model.ForwardResult{Status: model.ForwardStatusSuccess, EventID: m.Sale.TransactionID, HTTPStatus: 200}, nil
}

type fakeSales struct {
	sales []*model.SaleRecord
	err   error
}

func (f *fakeSales) FetchRecentSales(ctx context.Context, window time.Duration, status model.SaleStatus, maxResults int) ([]*model.SaleRecord, error) {
	return f.sales, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approvedSale(id string) *model.SaleRecord {
	return &model.SaleRecord{
		TransactionID: id,
		PurchasedAt:   saleTime,
		Status:        model.SaleStatusApproved,
		BuyerCountry:  "Brasil",
		BuyerState:    "SP",
		BuyerCity:     "Sao Paulo",
		AmountCents:   10000,
		Currency:      "BRL",
	}
}

func matchingVisitor() *model.VisitorRecord {
	return &model.VisitorRecord{
		SessionID:  "sess-1",
		CapturedAt: saleTime.Add(-3 * time.Minute),
		Country:    "Brazil",
		Region:     "Sao Paulo",
		City:       "Sao Paulo",
	}
}

func newTestService(visitors *fakeVisitors, dedup *fakeDedup, fwd *fakeForwarder, sales *fakeSales) *Service {
	return NewService(
		matching.NewEngine(60, 60),
		visitors,
		dedup,
		fwd,
		sales,
		metrics.NewNoop(),
		discardLogger(),
		Config{DedupTTL: 48 * time.Hour, PollWindow: 4 * time.Hour, PollMaxResults: 100},
	)
}

func TestProcessSaleForwardsMatch(t *testing.T) {
	visitors := &fakeVisitors{visitors: []*model.VisitorRecord{matchingVisitor()}}
	fwd := &fakeForwarder{}
	svc := newTestService(visitors, &fakeDedup{}, fwd, &fakeSales{})

	result, err := svc.ProcessSale(context.Background(), approvedSale("HP1"))
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if result.Outcome != OutcomeForwarded {
		t.Errorf("Outcome = %q, want forwarded", result.Outcome)
	}
	if result.Match == nil || result.Match.Visitor.SessionID != "sess-1" {
		t.Error("match not reported")
	}
	if len(fwd.matches) != 1 {
		t.Errorf("Forward called %d times, want 1", len(fwd.matches))
	}
}

func TestProcessSaleIneligible(t *testing.T) {
	dedup := &fakeDedup{}
	visitors := &fakeVisitors{}
	svc := newTestService(visitors, dedup, &fakeForwarder{}, &fakeSales{})

	sale := approvedSale("HP2")
	sale.Status = model.SaleStatusCanceled

	result, err := svc.ProcessSale(context.Background(), sale)
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if result.Outcome != OutcomeIneligible {
		t.Errorf("Outcome = %q, want ineligible", result.Outcome)
	}
	// An ineligible sale must not consume a dedup claim
	if dedup.claimed["HP2"] {
		t.Error("ineligible sale was claimed")
	}
	if visitors.calls != 0 {
		t.Error("candidates loaded for ineligible sale")
	}
}

func TestProcessSaleDuplicateSkipsMatching(t *testing.T) {
	visitors := &fakeVisitors{visitors: []*model.VisitorRecord{matchingVisitor()}}
	fwd := &fakeForwarder{}
	svc := newTestService(visitors, &fakeDedup{}, fwd, &fakeSales{})

	if _, err := svc.ProcessSale(context.Background(), approvedSale("HP3")); err != nil {
		t.Fatalf("first ProcessSale: %v", err)
	}

	result, err := svc.ProcessSale(context.Background(), approvedSale("HP3"))
	if err != nil {
		t.Fatalf("second ProcessSale: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Errorf("Outcome = %q, want duplicate", result.Outcome)
	}
	if visitors.calls != 1 {
		t.Errorf("candidates loaded %d times, want 1", visitors.calls)
	}
	if len(fwd.matches) != 1 {
		t.Errorf("Forward called %d times, want 1", len(fwd.matches))
	}
}

func TestProcessSaleUnmatched(t *testing.T) {
	// Candidate outside the time gate
	far := matchingVisitor()
	far.CapturedAt = saleTime.Add(-3 * time.Hour)

	visitors := &fakeVisitors{visitors: []*model.VisitorRecord{far}}
	fwd := &fakeForwarder{}
	svc := newTestService(visitors, &fakeDedup{}, fwd, &fakeSales{})

	result, err := svc.ProcessSale(context.Background(), approvedSale("HP4"))
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if result.Outcome != OutcomeUnmatched {
		t.Errorf("Outcome = %q, want unmatched", result.Outcome)
	}
	if len(fwd.matches) != 0 {
		t.Error("Forward called for unmatched sale")
	}
}

func TestProcessSaleForwardFailureKeepsClaim(t *testing.T) {
	visitors := &fakeVisitors{visitors: []*model.VisitorRecord{matchingVisitor()}}
	fwd := &fakeForwarder{err: errors.New("api down")}
	dedup := &fakeDedup{}
	svc := newTestService(visitors, dedup, fwd, &fakeSales{})

	result, err := svc.ProcessSale(context.Background(), approvedSale("HP5"))
	if err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %q, want forward_failed", result.Outcome)
	}

	// The failed sale stays claimed and is never re-evaluated
	second, err := svc.ProcessSale(context.Background(), approvedSale("HP5"))
	if err != nil {
		t.Fatalf("second ProcessSale: %v", err)
	}
	if second.Outcome != OutcomeDuplicate {
		t.Errorf("second Outcome = %q, want duplicate", second.Outcome)
	}
	if len(fwd.matches) != 1 {
		t.Errorf("Forward called %d times, want 1", len(fwd.matches))
	}
}

func TestProcessSaleDedupError(t *testing.T) {
	dedup := &fakeDedup{err: errors.New("redis down")}
	svc := newTestService(&fakeVisitors{}, dedup, &fakeForwarder{}, &fakeSales{})

	if _, err := svc.ProcessSale(context.Background(), approvedSale("HP6")); err == nil {
		t.Fatal("expected error when the dedup cache is unavailable")
	}
}

func TestPollProcessesBatch(t *testing.T) {
	sales := &fakeSales{sales: []*model.SaleRecord{
		approvedSale("HP10"),
		approvedSale("HP11"),
		approvedSale("HP10"), // duplicate within the batch
	}}
	visitors := &fakeVisitors{visitors: []*model.VisitorRecord{matchingVisitor()}}
	fwd := &fakeForwarder{}
	svc := newTestService(visitors, &fakeDedup{}, fwd, sales)

	processed, err := svc.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if processed != 3 {
		t.Errorf("processed = %d, want 3", processed)
	}
	if len(fwd.matches) != 2 {
		t.Errorf("Forward called %d times, want 2 (duplicate skipped)", len(fwd.matches))
	}
}

func TestPollFetchFailure(t *testing.T) {
	sales := &fakeSales{err: errors.New("platform down")}
	svc := newTestService(&fakeVisitors{}, &fakeDedup{}, &fakeForwarder{}, sales)

	if _, err := svc.Poll(context.Background()); err == nil {
		t.Fatal("expected error when fetch fails")
	}
}
