// Package matching implements deterministic visitor-to-sale scoring.
//
// A sale and a visitor are compared on purchase-to-visit time distance and
// on geographic agreement between the buyer's checkout address and the
// visitor's IP geolocation. Scoring is purely additive and side-effect
// free; the same inputs always produce the same result.
package matching

import (
	"math"
	"time"

	"github.com/convtrack/convtrack/internal/model"
)

// Score weights. The time gate is a hard filter, everything after it adds.
const (
	scoreBase    = 40
	scoreCountry = 25
	scoreState   = 20
	scoreCity    = 15

	// Exclusive proximity tiers, minutes
	proximityVeryClose  = 5
	proximityClose      = 15
	proximityReasonable = 30

	scoreVeryClose  = 15
	scoreClose      = 10
	scoreReasonable = 5

	maxConfidence = 100
)

// Engine scores sales against visitor candidates.
type Engine struct {
	windowMinutes int
	threshold     int
}

// NewEngine creates an Engine with the given time window (minutes) and
// match threshold (confidence 1-100).
func NewEngine(windowMinutes, threshold int) *Engine {
	return &Engine{
		windowMinutes: windowMinutes,
		threshold:     threshold,
	}
}

// Score compares one sale against one visitor and returns the match result.
func (e *Engine) Score(sale *model.SaleRecord, visitor *model.VisitorRecord) model.MatchResult {
	if sale.PurchasedAt.IsZero() || visitor.CapturedAt.IsZero() {
		return model.MatchResult{Reason: "invalid timestamp"}
	}

	delta := sale.PurchasedAt.Sub(visitor.CapturedAt)
	if delta < 0 {
		delta = -delta
	}
	deltaMinutes := int(math.Round(delta.Minutes()))

	signals := model.MatchSignals{TimeDeltaMinutes: deltaMinutes}

	// Hard time gate: outside the window nothing else matters.
	if deltaMinutes > e.windowMinutes {
		return model.MatchResult{Signals: signals, Reason: "outside time window"}
	}
	signals.TimeWindowOK = true

	score := scoreBase

	if countryOf(visitor) != "" && normalizeCountry(sale.BuyerCountry) != "" &&
		countryOf(visitor) == normalizeCountry(sale.BuyerCountry) {
		signals.CountryMatch = true
		score += scoreCountry
	}

	if regionsMatch(sale.BuyerState, visitor.Region) {
		signals.StateMatch = true
		score += scoreState
	}

	if citiesMatch(sale.BuyerCity, visitor.City) {
		signals.CityMatch = true
		score += scoreCity
	}

	switch {
	case deltaMinutes <= proximityVeryClose:
		signals.ProximityTier = "very_close"
		score += scoreVeryClose
	case deltaMinutes <= proximityClose:
		signals.ProximityTier = "close"
		score += scoreClose
	case deltaMinutes <= proximityReasonable:
		signals.ProximityTier = "reasonable"
		score += scoreReasonable
	}

	if score > maxConfidence {
		score = maxConfidence
	}

	return model.MatchResult{
		Confidence: score,
		IsMatch:    score >= e.threshold,
		Signals:    signals,
	}
}

// BestMatch scores the sale against every candidate and returns the winning
// match, or nil when no candidate reaches the threshold. Ties on confidence
// break toward the smaller time distance.
func (e *Engine) BestMatch(sale *model.SaleRecord, candidates []*model.VisitorRecord) *model.Match {
	var best *model.Match

	for _, visitor := range candidates {
		result := e.Score(sale, visitor)
		if !result.IsMatch {
			continue
		}
		if best == nil ||
			result.Confidence > best.Result.Confidence ||
			(result.Confidence == best.Result.Confidence &&
				result.Signals.TimeDeltaMinutes < best.Result.Signals.TimeDeltaMinutes) {
			best = &model.Match{Sale: sale, Visitor: visitor, Result: result}
		}
	}

	return best
}

// Window returns the engine's time gate as a duration.
func (e *Engine) Window() time.Duration {
	return time.Duration(e.windowMinutes) * time.Minute
}

// countryOf prefers the visitor's country name, falling back to the ISO
// code when the geo provider only returned one of the two.
func countryOf(v *model.VisitorRecord) string {
	if c := normalizeCountry(v.Country); c != "" {
		return c
	}
	return normalizeCountry(v.CountryCode)
}
