package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-portal/internal/models"
	"payment-portal/internal/repository"
)

// Payment links stay valid for hours, not days.
const tokenTTL = 6 * time.Hour

const (
	clickPayBase      = "https://my.click.uz/services/pay"
	paymeCheckoutBase = "https://checkout.paycom.uz"
)

// LinkResult is the outcome of create-link: the token plus the provider
// deep links the tenant has configured.
type LinkResult struct {
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ExpiresAt time.Time       `json:"expires_at"`
	ClickURL  string          `json:"click_url,omitempty"`
	PaymeURL  string          `json:"payme_url,omitempty"`
}

// StatusResult is the public status page view of a token.
type StatusResult struct {
	Status    models.TokenStatus   `json:"status"`
	Order     *models.OrderSummary `json:"order"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
	ExpiresAt time.Time            `json:"expires_at"`
	ClickURL  string               `json:"click_url,omitempty"`
	PaymeURL  string               `json:"payme_url,omitempty"`
}

// PortalService creates payment links and serves the public status page.
type PortalService struct {
	tokens      *repository.TokenRepository
	settlements *repository.SettlementRepository
	settings    *repository.SettingsRepository
	logger      *zap.Logger
}

func NewPortalService(tokens *repository.TokenRepository, settlements *repository.SettlementRepository, settings *repository.SettingsRepository, logger *zap.Logger) *PortalService {
	return &PortalService{
		tokens:      tokens,
		settlements: settlements,
		settings:    settings,
		logger:      logger,
	}
}

// CreateLink validates the order against the caller's tenant and creates a
// pending payment token. When no amount is supplied the outstanding balance
// (total - paid) is used.
func (s *PortalService) CreateLink(ctx context.Context, tenantID, orderID string, amount *decimal.Decimal) (*LinkResult, error) {
	settings, err := s.settings.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway settings: %w", err)
	}
	if settings == nil || !settings.PortalUsable() {
		return nil, ErrPortalDisabled
	}

	order, customerID, err := s.settlements.GetOrder(ctx, orderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	outstanding := order.TotalAmount.Sub(order.PaidAmount)
	if outstanding.LessThanOrEqual(decimal.Zero) {
		return nil, ErrOrderAlreadyPaid
	}

	linkAmount := outstanding
	if amount != nil {
		linkAmount = *amount
	}
	if linkAmount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	token := &models.PaymentToken{
		Token:      strings.ReplaceAll(uuid.New().String(), "-", ""),
		TenantID:   tenantID,
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     linkAmount,
		Currency:   "UZS",
		Status:     models.TokenStatusPending,
		ExpiresAt:  now.Add(tokenTTL),
		CreatedAt:  now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create payment token: %w", err)
	}

	s.logger.Info("payment link created",
		zap.String("token", token.Token),
		zap.String("tenant_id", tenantID),
		zap.String("order_id", orderID),
		zap.String("amount", linkAmount.String()))

	result := &LinkResult{
		Token:     token.Token,
		Amount:    token.Amount,
		Currency:  token.Currency,
		ExpiresAt: token.ExpiresAt,
	}
	s.attachDeepLinks(settings, token, &result.ClickURL, &result.PaymeURL)
	return result, nil
}

// Status serves the public payment page. Deep links are present only while
// the token is still pending and only for configured providers.
func (s *PortalService) Status(ctx context.Context, token string, now time.Time) (*StatusResult, error) {
	t, order, err := s.tokens.GetWithOrder(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}

	result := &StatusResult{
		Status:    t.EffectiveStatus(now),
		Order:     order,
		Amount:    t.Amount,
		Currency:  t.Currency,
		ExpiresAt: t.ExpiresAt,
	}

	if result.Status == models.TokenStatusPending {
		settings, err := s.settings.GetByTenant(ctx, t.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load gateway settings: %w", err)
		}
		if settings != nil && settings.PortalEnabled {
			s.attachDeepLinks(settings, t, &result.ClickURL, &result.PaymeURL)
		}
	}
	return result, nil
}

func (s *PortalService) attachDeepLinks(settings *models.GatewaySettings, t *models.PaymentToken, clickURL, paymeURL *string) {
	if settings.ClickConfigured() {
		*clickURL = clickPayURL(settings, t)
	}
	if settings.PaymeConfigured() {
		*paymeURL = paymeCheckoutURL(settings, t)
	}
}

func clickPayURL(settings *models.GatewaySettings, t *models.PaymentToken) string {
	q := url.Values{}
	q.Set("service_id", settings.ClickServiceID)
	q.Set("merchant_id", settings.ClickMerchantID)
	q.Set("amount", t.Amount.StringFixed(2))
	q.Set("transaction_param", t.Token)
	return clickPayBase + "?" + q.Encode()
}

// paymeCheckoutURL encodes the checkout parameters the way Payme expects:
// base64 of semicolon-separated pairs, with the amount in subunits.
func paymeCheckoutURL(settings *models.GatewaySettings, t *models.PaymentToken) string {
	params := fmt.Sprintf("m=%s;ac.order_token=%s;a=%d",
		settings.PaymeMerchantID, t.Token, AmountToSubunits(t.Amount))
	return paymeCheckoutBase + "/" + base64.StdEncoding.EncodeToString([]byte(params))
}
