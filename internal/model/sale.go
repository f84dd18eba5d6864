package model

import "time"

// SaleStatus represents the transaction status reported by the payment
// platform.
type SaleStatus string

const (
	SaleStatusApproved   SaleStatus = "APPROVED"
	SaleStatusPending    SaleStatus = "PENDING"
	SaleStatusCanceled   SaleStatus = "CANCELED"
	SaleStatusRefunded   SaleStatus = "REFUNDED"
	SaleStatusChargeback SaleStatus = "CHARGEBACK"
)

// SaleRecord represents one externally reported transaction. The same shape
// arrives via polling and via webhook push.
type SaleRecord struct {
	TransactionID string     `json:"transaction_id"`
	PurchasedAt   time.Time  `json:"purchased_at"`
	Status        SaleStatus `json:"status"`

	// Self-reported checkout address
	BuyerEmail      string `json:"buyer_email,omitempty"`
	BuyerPhone      string `json:"buyer_phone,omitempty"`
	BuyerCountry    string `json:"buyer_country,omitempty"`
	BuyerState      string `json:"buyer_state,omitempty"`
	BuyerCity       string `json:"buyer_city,omitempty"`
	BuyerPostalCode string `json:"buyer_postal_code,omitempty"`

	// Purchase details. Amount is in minor units (cents).
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

// IsMatchEligible returns true if the sale can be considered for visitor
// matching: approved status and a usable buyer address.
func (s *SaleRecord) IsMatchEligible() bool {
	return s.Status == SaleStatusApproved &&
		!s.PurchasedAt.IsZero() &&
		s.BuyerCity != "" &&
		s.BuyerCountry != ""
}

// SaleWebhookPayload is the inbound shape of the payment platform's purchase
// webhook. Only the fields the attribution pipeline consumes are mapped.
type SaleWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Purchase struct {
			Transaction string `json:"transaction"`
			OrderDate   int64  `json:"order_date"` // Unix milliseconds
			Status      string `json:"status"`
			Price       struct {
				Value        float64 `json:"value"` // major units
				CurrencyCode string  `json:"currency_value"`
			} `json:"price"`
		} `json:"purchase"`
		Buyer struct {
			Email         string `json:"email"`
			CheckoutPhone string `json:"checkout_phone"`
			Address       struct {
				City    string `json:"city"`
				State   string `json:"state"`
				Country string `json:"country"`
				ZipCode string `json:"zipcode"`
			} `json:"address"`
		} `json:"buyer"`
		Product struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
	} `json:"data"`
}

// WebhookEventPurchaseApproved is the webhook event name for completed sales.
const WebhookEventPurchaseApproved = "PURCHASE_APPROVED"
