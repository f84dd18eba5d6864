package forwarder

import (
	"testing"
	"time"

	"github.com/convtrack/convtrack/internal/model"
)

func testMatch() *model.Match {
	return &model.Match{
		Sale: &model.SaleRecord{
			TransactionID:   "HP300",
			PurchasedAt:     time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
			Status:          model.SaleStatusApproved,
			BuyerEmail:      "  Buyer@Example.COM ",
			BuyerPhone:      "+55 11 99999-0000",
			BuyerCountry:    "Brasil",
			BuyerState:      "SP",
			BuyerCity:       "Sao Paulo",
			BuyerPostalCode: "13000-000",
			AmountCents:     19750,
			Currency:        "BRL",
			ProductID:       "42",
			ProductName:     "Course",
		},
		Visitor: &model.VisitorRecord{
			SessionID: "sess-9",
			IP:        "203.0.113.9",
			UserAgent: "Mozilla/5.0",
			FBP:       "fb.1.1700000000.123",
			FBC:       "fb.1.1700000000.AbCdEf",
		},
		Result: model.MatchResult{Confidence: 95, IsMatch: true},
	}
}

func TestBuildEvent(t *testing.T) {
	event := BuildEvent(testMatch())

	if event.EventName != "Purchase" {
		t.Errorf("EventName = %q, want Purchase", event.EventName)
	}
	if event.EventID != "HP300" {
		t.Errorf("EventID = %q, want HP300", event.EventID)
	}
	if event.ActionSource != "website" {
		t.Errorf("ActionSource = %q, want website", event.ActionSource)
	}
	if event.EventTime != time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("EventTime = %d", event.EventTime)
	}

	// SHA-256 of "buyer@example.com"
	wantEmail := "6a6c26195c3682faa816966af789717c3bfa834eee6c599d667d2b3429c27cfd"
	if event.UserData.Email != wantEmail {
		t.Errorf("Email hash = %q, want %q", event.UserData.Email, wantEmail)
	}
	if event.UserData.Phone == "" || event.UserData.Phone == "+55 11 99999-0000" {
		t.Errorf("Phone = %q, want a hash", event.UserData.Phone)
	}
	if len(event.UserData.Phone) != 64 {
		t.Errorf("Phone hash length = %d, want 64", len(event.UserData.Phone))
	}

	if event.UserData.Country != "brasil" {
		t.Errorf("Country = %q, want brasil", event.UserData.Country)
	}
	if event.UserData.State != "sp" || event.UserData.City != "sao paulo" {
		t.Errorf("State/City = %q/%q", event.UserData.State, event.UserData.City)
	}
	if event.UserData.PostalCode != "13000000" {
		t.Errorf("PostalCode = %q, want 13000000", event.UserData.PostalCode)
	}

	// Browser tokens and network fields pass through unhashed
	if event.UserData.FBP != "fb.1.1700000000.123" {
		t.Errorf("FBP = %q", event.UserData.FBP)
	}
	if event.UserData.FBC != "fb.1.1700000000.AbCdEf" {
		t.Errorf("FBC = %q", event.UserData.FBC)
	}
	if event.UserData.ClientIPAddress != "203.0.113.9" {
		t.Errorf("ClientIPAddress = %q", event.UserData.ClientIPAddress)
	}
	if event.UserData.ExternalID != "sess-9" {
		t.Errorf("ExternalID = %q, want sess-9", event.UserData.ExternalID)
	}

	if event.CustomData.Value != 197.50 {
		t.Errorf("Value = %v, want 197.50", event.CustomData.Value)
	}
	if event.CustomData.Currency != "BRL" {
		t.Errorf("Currency = %q, want BRL", event.CustomData.Currency)
	}
	if len(event.CustomData.ContentIDs) != 1 || event.CustomData.ContentIDs[0] != "42" {
		t.Errorf("ContentIDs = %v, want [42]", event.CustomData.ContentIDs)
	}
	if event.CustomData.ContentName != "Course" {
		t.Errorf("ContentName = %q, want Course", event.CustomData.ContentName)
	}
}

func TestBuildEventStableEventID(t *testing.T) {
	m := testMatch()
	first := BuildEvent(m)
	second := BuildEvent(m)
	if first.EventID != second.EventID {
		t.Errorf("event id changed across builds: %q vs %q", first.EventID, second.EventID)
	}
}

func TestBuildEventEmptyOptionalFields(t *testing.T) {
	m := testMatch()
	m.Sale.BuyerEmail = ""
	m.Sale.BuyerPhone = ""
	m.Sale.ProductID = ""
	m.Visitor = nil

	event := BuildEvent(m)

	if event.UserData.Email != "" {
		t.Errorf("Email = %q, want empty (never hash the empty string)", event.UserData.Email)
	}
	if event.UserData.Phone != "" {
		t.Errorf("Phone = %q, want empty", event.UserData.Phone)
	}
	if event.UserData.ExternalID != "" {
		t.Errorf("ExternalID = %q, want empty", event.UserData.ExternalID)
	}
	if event.CustomData.ContentIDs != nil {
		t.Errorf("ContentIDs = %v, want nil", event.CustomData.ContentIDs)
	}
}

func TestHashData(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases and trims before hashing",
			in:   "  TEST@Example.com ",
			want: "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b",
		},
		{
			name: "empty stays empty",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only stays empty",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hashData(tt.in); got != tt.want {
				t.Errorf("hashData(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"13000-000", "13000000"},
		{"SW1A 1AA", "11"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := digitsOnly(tt.in); got != tt.want {
			t.Errorf("digitsOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
