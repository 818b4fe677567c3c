package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPaymentState string

const (
	OrderUnpaid  OrderPaymentState = "unpaid"
	OrderPartial OrderPaymentState = "partial"
	OrderPaid    OrderPaymentState = "paid"
)

// PaymentRecord is an immutable ledger entry, written exactly once per
// settled token.
type PaymentRecord struct {
	ID                    string          `json:"id" db:"id"`
	TenantID              string          `json:"tenant_id" db:"tenant_id"`
	OrderID               string          `json:"order_id" db:"order_id"`
	CustomerID            string          `json:"customer_id" db:"customer_id"`
	PaymentMethodID       string          `json:"payment_method_id" db:"payment_method_id"`
	Token                 string          `json:"token" db:"token"`
	Amount                decimal.Decimal `json:"amount" db:"amount"`
	Currency              string          `json:"currency" db:"currency"`
	Provider              Provider        `json:"provider" db:"provider"`
	ProviderTransactionID string          `json:"provider_transaction_id" db:"provider_transaction_id"`
	CollectedBy           string          `json:"collected_by" db:"collected_by"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
}

// OrderStateAfterPayment derives the order payment status from its paid and
// total amounts: paid iff paidAmount >= totalAmount, unpaid only at the
// paidAmount <= 0 boundary.
func OrderStateAfterPayment(paidAmount, totalAmount decimal.Decimal) OrderPaymentState {
	switch {
	case paidAmount.GreaterThanOrEqual(totalAmount):
		return OrderPaid
	case paidAmount.LessThanOrEqual(decimal.Zero):
		return OrderUnpaid
	default:
		return OrderPartial
	}
}

// SplitDebtCredit applies a payment to a customer balance: debt is reduced
// first and clamped at zero, any excess becomes credit.
func SplitDebtCredit(debtBalance, amount decimal.Decimal) (newDebt, creditDelta decimal.Decimal) {
	newDebt = debtBalance.Sub(amount)
	if newDebt.IsNegative() {
		creditDelta = newDebt.Neg()
		newDebt = decimal.Zero
	}
	return newDebt, creditDelta
}

// Database schema
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS payment_methods (
    id VARCHAR(36) PRIMARY KEY,
    tenant_id VARCHAR(36) NOT NULL,
    name VARCHAR(50) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (tenant_id, name)
);
CREATE TABLE IF NOT EXISTS payment_records (
    id VARCHAR(36) PRIMARY KEY,
    tenant_id VARCHAR(36) NOT NULL,
    order_id VARCHAR(36) NOT NULL,
    customer_id VARCHAR(36) NOT NULL,
    payment_method_id VARCHAR(36) NOT NULL,
    token VARCHAR(64) NOT NULL,
    amount DECIMAL(19, 4) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    provider VARCHAR(10) NOT NULL,
    provider_transaction_id VARCHAR(64) NOT NULL,
    collected_by VARCHAR(36) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_records_order ON payment_records (order_id);
`
