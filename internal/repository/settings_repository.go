package repository

import (
	"context"
	"database/sql"

	"payment-portal/internal/models"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error) {
	query := `
		SELECT tenant_id, portal_enabled, click_service_id, click_merchant_id,
		       click_secret_key, payme_merchant_id, payme_secret_key
		FROM gateway_settings WHERE tenant_id = $1
	`

	s := &models.GatewaySettings{}
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&s.TenantID,
		&s.PortalEnabled,
		&s.ClickServiceID,
		&s.ClickMerchantID,
		&s.ClickSecretKey,
		&s.PaymeMerchantID,
		&s.PaymeSecretKey,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
