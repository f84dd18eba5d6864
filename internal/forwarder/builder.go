package forwarder

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/convtrack/convtrack/internal/model"
)

// eventNamePurchase is the ad platform's standard purchase event.
const eventNamePurchase = "Purchase"

// hashData normalizes and hashes one PII field the way the ad platform
// expects: lowercase, trim, SHA-256 hex. Empty input stays empty.
func hashData(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// digitsOnly strips everything but digits. Postal codes arrive with
// dashes and spaces depending on the country.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lowerTrim normalizes non-hashed location fields.
func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BuildEvent assembles the conversion event for a matched sale.
//
// The event id is the transaction id, so a re-send of the same sale is
// deduplicated on the platform side. Browser tokens (fbp, fbc) pass
// through unhashed per the platform schema.
func BuildEvent(m *model.Match) model.ConversionEvent {
	sale := m.Sale
	visitor := m.Visitor

	userData := model.UserData{
		Email:      hashData(sale.BuyerEmail),
		Phone:      hashData(sale.BuyerPhone),
		Country:    lowerTrim(sale.BuyerCountry),
		State:      lowerTrim(sale.BuyerState),
		City:       lowerTrim(sale.BuyerCity),
		PostalCode: digitsOnly(sale.BuyerPostalCode),
	}

	if visitor != nil {
		userData.ExternalID = visitor.SessionID
		userData.ClientIPAddress = visitor.IP
		userData.ClientUserAgent = visitor.UserAgent
		userData.FBP = visitor.FBP
		userData.FBC = visitor.FBC
	}

	customData := model.CustomData{
		Currency:    sale.Currency,
		Value:       float64(sale.AmountCents) / 100,
		ContentName: sale.ProductName,
	}
	if sale.ProductID != "" {
		customData.ContentIDs = []string{sale.ProductID}
	}

	return model.ConversionEvent{
		EventName:    eventNamePurchase,
		EventTime:    sale.PurchasedAt.Unix(),
		EventID:      sale.TransactionID,
		ActionSource: "website",
		UserData:     userData,
		CustomData:   customData,
	}
}
