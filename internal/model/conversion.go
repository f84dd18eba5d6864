package model

import "time"

// ForwardStatus is the terminal state of one forwarding attempt.
type ForwardStatus string

const (
	ForwardStatusSuccess ForwardStatus = "success"
	ForwardStatusError   ForwardStatus = "error"
)

// UserData carries visitor identity fields in the ad platform's server
// events schema. Email and phone are SHA-256 hashed before assignment.
type UserData struct {
	ExternalID      string `json:"external_id,omitempty"`
	Email           string `json:"em,omitempty"`
	Phone           string `json:"ph,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	Country         string `json:"country,omitempty"`
	State           string `json:"st,omitempty"`
	City            string `json:"ct,omitempty"`
	PostalCode      string `json:"zp,omitempty"`
	FBP             string `json:"fbp,omitempty"`
	FBC             string `json:"fbc,omitempty"`
}

// CustomData carries purchase details for the conversion event.
type CustomData struct {
	Currency    string   `json:"currency,omitempty"`
	Value       float64  `json:"value"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentName string   `json:"content_name,omitempty"`
}

// ConversionEvent is one server-side event in the outbound batch.
type ConversionEvent struct {
	EventName    string     `json:"event_name"`
	EventTime    int64      `json:"event_time"`
	EventID      string     `json:"event_id"`
	ActionSource string     `json:"action_source"`
	UserData     UserData   `json:"user_data"`
	CustomData   CustomData `json:"custom_data"`
}

// ConversionBatch is the request body posted to the events endpoint.
type ConversionBatch struct {
	Data          []ConversionEvent `json:"data"`
	TestEventCode string            `json:"test_event_code,omitempty"`
}

// ForwardResult summarizes one delivery attempt for callers.
type ForwardResult struct {
	Status     ForwardStatus `json:"status"`
	EventID    string        `json:"event_id"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ForwardAttempt is the persisted record of one forwarding attempt.
type ForwardAttempt struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	EventID       string        `json:"event_id"`
	Status        ForwardStatus `json:"status"`
	HTTPStatus    *int          `json:"http_status,omitempty"`
	Error         string        `json:"error,omitempty"`
	Confidence    int           `json:"confidence"`
	Signals       []string      `json:"signals,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	Value         float64       `json:"value"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ForwardStats summarizes the forward log for the operational surface.
type ForwardStats struct {
	Total      int64      `json:"total"`
	Successful int64      `json:"successful"`
	Failed     int64      `json:"failed"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
}
