// Package gateway implements the provider protocol adapters. Each adapter
// authenticates the raw webhook request, decodes it once into a typed
// request, drives the settlement engine through the internal command set,
// and renders the provider's own response vocabulary. A webhook response is
// always protocol-compliant: internal faults are mapped into provider error
// codes, never surfaced as framework errors.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"payment-portal/internal/models"
)

// SettlementEngine is the internal command set both adapters drive.
// Implemented by service.Engine.
type SettlementEngine interface {
	Authorize(ctx context.Context, token string, amount decimal.Decimal, now time.Time) (*models.PaymentToken, error)
	Register(ctx context.Context, token, providerTxID string) (*models.PaymentToken, error)
	Commit(ctx context.Context, token string, provider models.Provider, providerTxID string) (*models.PaymentToken, bool, error)
	Cancel(ctx context.Context, token string) (*models.PaymentToken, bool, error)
	Query(ctx context.Context, token string) (*models.PaymentToken, error)
	QueryTransaction(ctx context.Context, providerTxID string) (*models.PaymentToken, error)
}

// SettingsSource reads the per-tenant provider credentials.
type SettingsSource interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error)
}

func unixMillis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
