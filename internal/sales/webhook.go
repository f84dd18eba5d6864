package sales

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/convtrack/convtrack/internal/model"
)

// MapWebhookSale converts an inbound purchase webhook into a SaleRecord.
// Returns ErrUnsupportedEvent for event types other than purchase approval
// and ErrInvalidPayload when required fields are missing.
func MapWebhookSale(p *model.SaleWebhookPayload) (*model.SaleRecord, error) {
	if p.Event != model.WebhookEventPurchaseApproved {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, p.Event)
	}
	if p.Data.Purchase.Transaction == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrInvalidPayload)
	}

	var purchasedAt time.Time
	if p.Data.Purchase.OrderDate > 0 {
		purchasedAt = time.UnixMilli(p.Data.Purchase.OrderDate).UTC()
	}

	productID := ""
	if p.Data.Product.ID != 0 {
		productID = strconv.FormatInt(p.Data.Product.ID, 10)
	}

	return &model.SaleRecord{
		TransactionID:   p.Data.Purchase.Transaction,
		PurchasedAt:     purchasedAt,
		Status:          model.SaleStatus(p.Data.Purchase.Status),
		BuyerEmail:      p.Data.Buyer.Email,
		BuyerPhone:      p.Data.Buyer.CheckoutPhone,
		BuyerCountry:    p.Data.Buyer.Address.Country,
		BuyerState:      p.Data.Buyer.Address.State,
		BuyerCity:       p.Data.Buyer.Address.City,
		BuyerPostalCode: p.Data.Buyer.Address.ZipCode,
		AmountCents:     toCents(p.Data.Purchase.Price.Value),
		Currency:        p.Data.Purchase.Price.CurrencyCode,
		ProductID:       productID,
		ProductName:     p.Data.Product.Name,
	}, nil
}

// toCents converts a major-unit amount to minor units.
func toCents(value float64) int64 {
	return int64(math.Round(value * 100))
}
