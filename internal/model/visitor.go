// Package model defines domain entities for the application.
package model

import "time"

// VisitorRecord represents one tracked browsing session.
// Records are upserted by SessionID: a later telemetry ping for the same
// session overwrites the previous one.
type VisitorRecord struct {
	SessionID  string    `json:"session_id"`
	CapturedAt time.Time `json:"captured_at"`

	// Geolocation (best-effort, any field may be empty)
	IP          string `json:"ip,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"` // ISO 3166-1 alpha-2
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	ISP         string `json:"isp,omitempty"`

	// Acquisition context
	UserAgent   string `json:"user_agent,omitempty"`
	PageURL     string `json:"page_url,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`

	// Browser correlation tokens. Opaque identifiers forwarded as-is to the
	// ad platform; they carry no ownership-bearing identity.
	FBP string `json:"fbp,omitempty"`
	FBC string `json:"fbc,omitempty"`
}

// HasGeo returns true if the record carries enough geolocation to be a
// matching candidate.
func (v *VisitorRecord) HasGeo() bool {
	return v.City != "" && (v.Country != "" || v.CountryCode != "")
}

// TelemetryPayload is the inbound shape of the telemetry ingestion endpoint.
// The frontend pixel groups fields by concern; the handler flattens this
// into a VisitorRecord.
type TelemetryPayload struct {
	ExternalID string    `json:"external_id"`
	Timestamp  time.Time `json:"timestamp"`

	VisitorData struct {
		IP          string `json:"ip"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		Region      string `json:"region"`
		City        string `json:"city"`
		Zip         string `json:"zip"`
		Timezone    string `json:"timezone"`
		ISP         string `json:"isp"`
	} `json:"visitor_data"`

	PageData struct {
		URL       string `json:"url"`
		Referrer  string `json:"referrer"`
		UserAgent string `json:"user_agent"`
	} `json:"page_data"`

	MarketingData struct {
		UTMSource   string `json:"utm_source"`
		UTMMedium   string `json:"utm_medium"`
		UTMCampaign string `json:"utm_campaign"`
		UTMContent  string `json:"utm_content"`
		UTMTerm     string `json:"utm_term"`
		FBP         string `json:"fbp"`
		FBC         string `json:"fbc"`
	} `json:"marketing_data"`
}

// ToRecord converts an inbound telemetry payload into a VisitorRecord.
// A zero timestamp falls back to now.
func (p *TelemetryPayload) ToRecord(now time.Time) *VisitorRecord {
	capturedAt := p.Timestamp
	if capturedAt.IsZero() {
		capturedAt = now
	}

	return &VisitorRecord{
		SessionID:   p.ExternalID,
		CapturedAt:  capturedAt,
		IP:          p.VisitorData.IP,
		Country:     p.VisitorData.Country,
		CountryCode: p.VisitorData.CountryCode,
		Region:      p.VisitorData.Region,
		City:        p.VisitorData.City,
		PostalCode:  p.VisitorData.Zip,
		Timezone:    p.VisitorData.Timezone,
		ISP:         p.VisitorData.ISP,
		UserAgent:   p.PageData.UserAgent,
		PageURL:     p.PageData.URL,
		Referrer:    p.PageData.Referrer,
		UTMSource:   p.MarketingData.UTMSource,
		UTMMedium:   p.MarketingData.UTMMedium,
		UTMCampaign: p.MarketingData.UTMCampaign,
		UTMContent:  p.MarketingData.UTMContent,
		UTMTerm:     p.MarketingData.UTMTerm,
		FBP:         p.MarketingData.FBP,
		FBC:         p.MarketingData.FBC,
	}
}

// VisitorStats summarizes the visitor store for the operational surface.
type VisitorStats struct {
	Total           int64      `json:"total"`
	Last24h         int64      `json:"last_24h"`
	UniqueCountries int64      `json:"unique_countries"`
	UniqueCities    int64      `json:"unique_cities"`
	MostRecentVisit *time.Time `json:"most_recent_visit,omitempty"`
}
