// Package attribution orchestrates the sale processing pipeline: dedup
// claim, visitor matching and conversion forwarding.
package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/convtrack/convtrack/internal/matching"
	"github.com/convtrack/convtrack/internal/metrics"
	"github.com/convtrack/convtrack/internal/model"
)

// Outcome classifies what happened to one processed sale.
type Outcome string

const (
	OutcomeIneligible Outcome = "ineligible"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnmatched  Outcome = "unmatched"
	OutcomeForwarded  Outcome = "forwarded"
	OutcomeFailed     Outcome = "forward_failed"
)

// ProcessResult reports the pipeline outcome for one sale.
type ProcessResult struct {
	Outcome Outcome              `json:"outcome"`
	Match   *model.Match         `json:"match,omitempty"`
	Forward *model.ForwardResult `json:"forward,omitempty"`
}

// VisitorSource loads matching candidates around a point in time.
type VisitorSource interface {
	Recent(ctx context.Context, ref time.Time, window time.Duration) ([]*model.VisitorRecord, error)
}

// DedupCache claims transactions so each sale is evaluated once.
type DedupCache interface {
	ClaimSale(ctx context.Context, transactionID string, ttl time.Duration) (bool, error)
}

// ConversionForwarder delivers matched conversions downstream.
type ConversionForwarder interface {
	Forward(ctx context.Context, m *model.Match) (*model.ForwardResult, error)
}

// SaleSource fetches recent sales from the payment platform.
type SaleSource interface {
	FetchRecentSales(ctx context.Context, window time.Duration, status model.SaleStatus, maxResults int) ([]*model.SaleRecord, error)
}

// Config carries the tunables the service needs.
type Config struct {
	DedupTTL       time.Duration
	PollWindow     time.Duration
	PollMaxResults int
}

// Service runs the attribution pipeline for individual sales and for
// polled batches. Webhook pushes and the poll loop share the same path.
type Service struct {
	engine    *matching.Engine
	visitors  VisitorSource
	dedup     DedupCache
	forwarder ConversionForwarder
	sales     SaleSource
	metrics   metrics.Recorder
	logger    *slog.Logger
	cfg       Config
}

// NewService creates a Service.
func NewService(engine *matching.Engine, visitors VisitorSource, dedup DedupCache, forwarder ConversionForwarder, sales SaleSource, recorder metrics.Recorder, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		engine:    engine,
		visitors:  visitors,
		dedup:     dedup,
		forwarder: forwarder,
		sales:     sales,
		metrics:   recorder,
		logger:    logger.With("component", "attribution"),
		cfg:       cfg,
	}
}

// ProcessSale runs one sale through the pipeline.
//
// The dedup claim is taken before any matching work. Once claimed, the
// sale is never evaluated again, whatever happens downstream; a failing
// forward is recorded in the attempt log, not retried.
func (s *Service) ProcessSale(ctx context.Context, sale *model.SaleRecord) (*ProcessResult, error) {
	log := s.logger.With("transaction_id", sale.TransactionID)

	if !sale.IsMatchEligible() {
		s.metrics.IncSaleEvaluated("ineligible")
		log.Debug("sale not match eligible", "status", sale.Status)
		return &ProcessResult{Outcome: OutcomeIneligible}, nil
	}

	won, err := s.dedup.ClaimSale(ctx, sale.TransactionID, s.cfg.DedupTTL)
	if err != nil {
		return nil, fmt.Errorf("claim sale: %w", err)
	}
	if !won {
		s.metrics.IncSaleEvaluated("duplicate")
		log.Debug("sale already processed")
		return &ProcessResult{Outcome: OutcomeDuplicate}, nil
	}

	candidates, err := s.visitors.Recent(ctx, sale.PurchasedAt, s.engine.Window())
	if err != nil {
		return nil, fmt.Errorf("load visitor candidates: %w", err)
	}
	s.metrics.ObserveMatchCandidates(len(candidates))

	match := s.engine.BestMatch(sale, candidates)
	if match == nil {
		s.metrics.IncSaleEvaluated("unmatched")
		log.Info("no visitor matched sale", "candidates", len(candidates))
		return &ProcessResult{Outcome: OutcomeUnmatched}, nil
	}

	s.metrics.IncSaleEvaluated("matched")
	s.metrics.ObserveMatchConfidence(match.Result.Confidence)
	log.Info("sale matched to visitor",
		"session_id", match.Visitor.SessionID,
		"confidence", match.Result.Confidence,
		"signals", match.Result.Signals.Names())

	result, err := s.forwarder.Forward(ctx, match)
	if err != nil {
		log.Error("conversion forward failed", "error", err)
		return &ProcessResult{Outcome: OutcomeFailed, Match: match, Forward: result}, nil
	}

	return &ProcessResult{Outcome: OutcomeForwarded, Match: match, Forward: result}, nil
}

// Poll fetches recent approved sales and processes each one. Per-sale
// failures are logged and skipped so one bad sale cannot stall the batch.
func (s *Service) Poll(ctx context.Context) (int, error) {
	salesList, err := s.sales.FetchRecentSales(ctx, s.cfg.PollWindow, model.SaleStatusApproved, s.cfg.PollMaxResults)
	if err != nil {
		s.metrics.IncPollRun("failed")
		return 0, fmt.Errorf("poll sales: %w", err)
	}

	s.metrics.IncPollRun("success")
	s.metrics.ObservePollSales(len(salesList))

	processed := 0
	for _, sale := range salesList {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if _, err := s.ProcessSale(ctx, sale); err != nil {
			s.logger.Error("failed to process sale",
				"transaction_id", sale.TransactionID, "error", err)
			continue
		}
		processed++
	}

	return processed, nil
}
