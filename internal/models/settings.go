package models

// GatewaySettings is the per-tenant payment portal configuration, owned by
// the tenant-settings collaborator and read-only here.
type GatewaySettings struct {
	TenantID        string `json:"tenant_id" db:"tenant_id"`
	PortalEnabled   bool   `json:"portal_enabled" db:"portal_enabled"`
	ClickServiceID  string `json:"click_service_id" db:"click_service_id"`
	ClickMerchantID string `json:"click_merchant_id" db:"click_merchant_id"`
	ClickSecretKey  string `json:"-" db:"click_secret_key"`
	PaymeMerchantID string `json:"payme_merchant_id" db:"payme_merchant_id"`
	PaymeSecretKey  string `json:"-" db:"payme_secret_key"`
}

func (s *GatewaySettings) ClickConfigured() bool {
	return s.ClickServiceID != "" && s.ClickMerchantID != "" && s.ClickSecretKey != ""
}

func (s *GatewaySettings) PaymeConfigured() bool {
	return s.PaymeMerchantID != "" && s.PaymeSecretKey != ""
}

// PortalUsable reports whether payment links can be created at all.
func (s *GatewaySettings) PortalUsable() bool {
	return s.PortalEnabled && (s.ClickConfigured() || s.PaymeConfigured())
}

const SettingsSchema = `
CREATE TABLE IF NOT EXISTS gateway_settings (
    tenant_id VARCHAR(36) PRIMARY KEY,
    portal_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    click_service_id VARCHAR(64) NOT NULL DEFAULT '',
    click_merchant_id VARCHAR(64) NOT NULL DEFAULT '',
    click_secret_key VARCHAR(64) NOT NULL DEFAULT '',
    payme_merchant_id VARCHAR(64) NOT NULL DEFAULT '',
    payme_secret_key VARCHAR(64) NOT NULL DEFAULT ''
);
`
