package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenStatus string

const (
	TokenStatusPending   TokenStatus = "pending"
	TokenStatusPaid      TokenStatus = "paid"
	TokenStatusCancelled TokenStatus = "cancelled"

	// TokenStatusExpired is a read-time view of a pending token past its
	// deadline. It is never written to storage.
	TokenStatusExpired TokenStatus = "expired"
)

type Provider string

const (
	ProviderClick Provider = "click"
	ProviderPayme Provider = "payme"
)

// amountTolerance absorbs decimal rounding between the provider's
// representation of an amount and ours.
var amountTolerance = decimal.NewFromFloat(0.01)

// PaymentToken is a payment intent. The token string is the external
// correlation key handed to providers, and the pending→paid transition is
// the idempotency anchor for the whole settlement subsystem.
type PaymentToken struct {
	Token                 string          `json:"token" db:"token"`
	TenantID              string          `json:"tenant_id" db:"tenant_id"`
	OrderID               string          `json:"order_id" db:"order_id"`
	CustomerID            string          `json:"customer_id" db:"customer_id"`
	Amount                decimal.Decimal `json:"amount" db:"amount"`
	Currency              string          `json:"currency" db:"currency"`
	Status                TokenStatus     `json:"status" db:"status"`
	PaidVia               Provider        `json:"paid_via,omitempty" db:"paid_via"`
	ProviderTransactionID string          `json:"provider_transaction_id,omitempty" db:"provider_transaction_id"`
	ExpiresAt             time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	PaidAt                *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// EffectiveStatus derives the externally visible status. A pending token
// past its deadline reads as expired; paid and cancelled are terminal and
// never become expired.
func (t *PaymentToken) EffectiveStatus(now time.Time) TokenStatus {
	if t.Status == TokenStatusPending && now.After(t.ExpiresAt) {
		return TokenStatusExpired
	}
	return t.Status
}

// Expired reports whether the token is no longer eligible for
// Prepare/CheckPerformTransaction.
func (t *PaymentToken) Expired(now time.Time) bool {
	return t.EffectiveStatus(now) == TokenStatusExpired
}

// AmountMatches compares a provider-reported amount against the token
// amount within the rounding tolerance.
func (t *PaymentToken) AmountMatches(amount decimal.Decimal) bool {
	return t.Amount.Sub(amount).Abs().LessThanOrEqual(amountTolerance)
}

// OrderSummary is the read model of the order behind a token, shown on the
// public status page.
type OrderSummary struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentStatus string          `json:"payment_status"`
}

// Database schema
const TokenSchema = `
CREATE TABLE IF NOT EXISTS payment_tokens (
    token VARCHAR(64) PRIMARY KEY,
    tenant_id VARCHAR(36) NOT NULL,
    order_id VARCHAR(36) NOT NULL,
    customer_id VARCHAR(36) NOT NULL,
    amount DECIMAL(19, 4) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    paid_via VARCHAR(10) NOT NULL DEFAULT '',
    provider_transaction_id VARCHAR(64) NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    paid_at TIMESTAMPTZ,
    cancelled_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_payment_tokens_order ON payment_tokens (order_id);
CREATE INDEX IF NOT EXISTS idx_payment_tokens_provider_txn ON payment_tokens (provider_transaction_id);
`
