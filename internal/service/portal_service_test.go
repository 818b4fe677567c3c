package service

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"payment-portal/internal/models"
)

func linkSettings() *models.GatewaySettings {
	return &models.GatewaySettings{
		TenantID:        "tenant-1",
		PortalEnabled:   true,
		ClickServiceID:  "12345",
		ClickMerchantID: "67890",
		ClickSecretKey:  "secret",
		PaymeMerchantID: "payme-merchant",
		PaymeSecretKey:  "key",
	}
}

func linkToken() *models.PaymentToken {
	return &models.PaymentToken{
		Token:  "tok-abc",
		Amount: decimal.RequireFromString("150.50"),
	}
}

func TestClickPayURL(t *testing.T) {
	raw := clickPayURL(linkSettings(), linkToken())

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}

	q := u.Query()
	if q.Get("service_id") != "12345" {
		t.Errorf("service_id = %s, want 12345", q.Get("service_id"))
	}
	if q.Get("merchant_id") != "67890" {
		t.Errorf("merchant_id = %s, want 67890", q.Get("merchant_id"))
	}
	if q.Get("amount") != "150.50" {
		t.Errorf("amount = %s, want 150.50", q.Get("amount"))
	}
	if q.Get("transaction_param") != "tok-abc" {
		t.Errorf("transaction_param = %s, want tok-abc", q.Get("transaction_param"))
	}
}

func TestPaymeCheckoutURL(t *testing.T) {
	raw := paymeCheckoutURL(linkSettings(), linkToken())

	encoded := strings.TrimPrefix(raw, paymeCheckoutBase+"/")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("checkout params are not base64: %v", err)
	}

	// Amount travels in subunits.
	want := "m=payme-merchant;ac.order_token=tok-abc;a=15050"
	if string(decoded) != want {
		t.Errorf("params = %s, want %s", decoded, want)
	}
}
