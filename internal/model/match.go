package model

// MatchSignals records which attributes contributed to a match score.
type MatchSignals struct {
	TimeDeltaMinutes int    `json:"time_delta_minutes"`
	TimeWindowOK     bool   `json:"time_window_ok"`
	CountryMatch     bool   `json:"country_match"`
	StateMatch       bool   `json:"state_match"`
	CityMatch        bool   `json:"city_match"`
	ProximityTier    string `json:"proximity_tier,omitempty"`
}

// Names returns the matched signal names for logging and persistence.
func (s MatchSignals) Names() []string {
	names := make([]string, 0, 5)
	if s.TimeWindowOK {
		names = append(names, "time_window")
	}
	if s.CountryMatch {
		names = append(names, "country")
	}
	if s.StateMatch {
		names = append(names, "state")
	}
	if s.CityMatch {
		names = append(names, "city")
	}
	if s.ProximityTier != "" {
		names = append(names, "proximity_"+s.ProximityTier)
	}
	return names
}

// MatchResult is the outcome of scoring one sale against one visitor.
type MatchResult struct {
	Confidence int          `json:"confidence"`
	IsMatch    bool         `json:"is_match"`
	Signals    MatchSignals `json:"signals"`

	// Reason is set on forced non-matches, e.g. unparseable timestamps.
	Reason string `json:"reason,omitempty"`
}

// Match pairs a sale with its best-scoring visitor candidate.
type Match struct {
	Sale    *SaleRecord    `json:"sale"`
	Visitor *VisitorRecord `json:"visitor"`
	Result  MatchResult    `json:"result"`
}
