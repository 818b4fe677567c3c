package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-portal/internal/models"
	"payment-portal/internal/service"
)

// stubEngine mirrors the settlement engine semantics in memory: the first
// commit per token wins, everything after observes the settled token.
type stubEngine struct {
	tokens  map[string]*models.PaymentToken
	commits int
	cancels int
}

func newStubEngine(tokens ...*models.PaymentToken) *stubEngine {
	m := make(map[string]*models.PaymentToken)
	for _, t := range tokens {
		m[t.Token] = t
	}
	return &stubEngine{tokens: m}
}

func (s *stubEngine) Authorize(ctx context.Context, token string, amount decimal.Decimal, now time.Time) (*models.PaymentToken, error) {
	t := s.tokens[token]
	if t == nil {
		return nil, service.ErrTokenNotFound
	}
	switch t.Status {
	case models.TokenStatusPaid:
		return t, service.ErrAlreadyPaid
	case models.TokenStatusCancelled:
		return t, service.ErrTokenCancelled
	}
	if t.Expired(now) {
		return t, service.ErrTokenExpired
	}
	if !t.AmountMatches(amount) {
		return t, service.ErrAmountMismatch
	}
	return t, nil
}

func (s *stubEngine) Register(ctx context.Context, token, providerTxID string) (*models.PaymentToken, error) {
	t := s.tokens[token]
	if t == nil {
		return nil, service.ErrTokenNotFound
	}
	if t.Status == models.TokenStatusPaid {
		return t, service.ErrAlreadyPaid
	}
	if t.Status == models.TokenStatusCancelled {
		return t, service.ErrTokenCancelled
	}
	if t.ProviderTransactionID != "" && t.ProviderTransactionID != providerTxID {
		return t, service.ErrTransactionConflict
	}
	t.ProviderTransactionID = providerTxID
	return t, nil
}

func (s *stubEngine) Commit(ctx context.Context, token string, provider models.Provider, providerTxID string) (*models.PaymentToken, bool, error) {
	t := s.tokens[token]
	if t == nil {
		return nil, false, service.ErrTokenNotFound
	}
	if t.Status == models.TokenStatusCancelled {
		return t, false, service.ErrTokenCancelled
	}
	if t.Status == models.TokenStatusPaid {
		return t, false, nil
	}
	now := time.Now().UTC()
	t.Status = models.TokenStatusPaid
	t.PaidVia = provider
	t.ProviderTransactionID = providerTxID
	t.PaidAt = &now
	s.commits++
	return t, true, nil
}

func (s *stubEngine) Cancel(ctx context.Context, token string) (*models.PaymentToken, bool, error) {
	t := s.tokens[token]
	if t == nil {
		return nil, false, service.ErrTokenNotFound
	}
	if t.Status != models.TokenStatusPending {
		return t, false, nil
	}
	now := time.Now().UTC()
	t.Status = models.TokenStatusCancelled
	t.CancelledAt = &now
	s.cancels++
	return t, true, nil
}

func (s *stubEngine) Query(ctx context.Context, token string) (*models.PaymentToken, error) {
	t := s.tokens[token]
	if t == nil {
		return nil, service.ErrTokenNotFound
	}
	return t, nil
}

func (s *stubEngine) QueryTransaction(ctx context.Context, providerTxID string) (*models.PaymentToken, error) {
	for _, t := range s.tokens {
		if t.ProviderTransactionID == providerTxID {
			return t, nil
		}
	}
	return nil, service.ErrTransactionNotFound
}

type stubSettings struct {
	settings *models.GatewaySettings
}

func (s *stubSettings) GetByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error) {
	return s.settings, nil
}

const clickSecret = "click-secret"

func testSettings() *stubSettings {
	return &stubSettings{settings: &models.GatewaySettings{
		TenantID:        "tenant-1",
		PortalEnabled:   true,
		ClickServiceID:  "12345",
		ClickMerchantID: "67890",
		ClickSecretKey:  clickSecret,
		PaymeMerchantID: "payme-merchant",
		PaymeSecretKey:  paymeSecret,
	}}
}

func pendingToken(amount string) *models.PaymentToken {
	return &models.PaymentToken{
		Token:      "tok-1",
		TenantID:   "tenant-1",
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Amount:     decimal.RequireFromString(amount),
		Currency:   "UZS",
		Status:     models.TokenStatusPending,
		ExpiresAt:  time.Now().Add(time.Hour),
		CreatedAt:  time.Now().Add(-time.Minute),
	}
}

func signedClickRequest(action int, amount string, secret string) *ClickRequest {
	req := &ClickRequest{
		ClickTransID:    555001,
		ServiceID:       "12345",
		MerchantTransID: "tok-1",
		Amount:          amount,
		Action:          action,
		SignTime:        "2024-05-01 12:00:00",
	}
	if action == clickActionComplete {
		req.MerchantPrepareID = "1"
	}
	req.SignString = clickSignature(req, secret)
	return req
}

func newClickAdapter(engine SettlementEngine) *ClickAdapter {
	return NewClickAdapter(engine, testSettings(), zap.NewNop())
}

func TestClickPrepare(t *testing.T) {
	tests := []struct {
		name      string
		token     *models.PaymentToken
		amount    string
		wantError int
	}{
		{
			name:      "Success",
			token:     pendingToken("150.00"),
			amount:    "150.00",
			wantError: clickSuccess,
		},
		{
			name:      "Within tolerance",
			token:     pendingToken("150.00"),
			amount:    "150.005",
			wantError: clickSuccess,
		},
		{
			name:      "Amount off by 0.02",
			token:     pendingToken("150.00"),
			amount:    "150.02",
			wantError: clickErrIncorrectAmount,
		},
		{
			name: "Already paid",
			token: func() *models.PaymentToken {
				tok := pendingToken("150.00")
				tok.Status = models.TokenStatusPaid
				return tok
			}(),
			amount:    "150.00",
			wantError: clickErrAlreadyPaid,
		},
		{
			name: "Expired",
			token: func() *models.PaymentToken {
				tok := pendingToken("150.00")
				tok.ExpiresAt = time.Now().Add(-time.Hour)
				return tok
			}(),
			amount:    "150.00",
			wantError: clickErrTxnCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newClickAdapter(newStubEngine(tt.token))
			resp := adapter.Handle(context.Background(), signedClickRequest(clickActionPrepare, tt.amount, clickSecret))

			if resp.Error != tt.wantError {
				t.Errorf("Handle() error = %d, want %d", resp.Error, tt.wantError)
			}
			if tt.wantError == clickSuccess && resp.MerchantPrepareID != 1 {
				t.Errorf("merchant_prepare_id = %d, want 1", resp.MerchantPrepareID)
			}
		})
	}
}

func TestClickPrepareUnknownToken(t *testing.T) {
	adapter := newClickAdapter(newStubEngine())
	resp := adapter.Handle(context.Background(), signedClickRequest(clickActionPrepare, "150.00", clickSecret))

	if resp.Error != clickErrUserNotFound {
		t.Errorf("Handle() error = %d, want %d", resp.Error, clickErrUserNotFound)
	}
}

func TestClickSignatureRejected(t *testing.T) {
	adapter := newClickAdapter(newStubEngine(pendingToken("150.00")))
	req := signedClickRequest(clickActionPrepare, "150.00", "wrong-secret")
	resp := adapter.Handle(context.Background(), req)

	if resp.Error != clickErrSignCheckFailed {
		t.Errorf("Handle() error = %d, want %d", resp.Error, clickErrSignCheckFailed)
	}
}

func TestClickUnknownAction(t *testing.T) {
	adapter := newClickAdapter(newStubEngine(pendingToken("150.00")))
	req := signedClickRequest(7, "150.00", clickSecret)
	resp := adapter.Handle(context.Background(), req)

	if resp.Error != clickErrActionNotFound {
		t.Errorf("Handle() error = %d, want %d", resp.Error, clickErrActionNotFound)
	}
}

func TestClickCompleteIdempotent(t *testing.T) {
	engine := newStubEngine(pendingToken("150.00"))
	adapter := newClickAdapter(engine)
	req := signedClickRequest(clickActionComplete, "150.00", clickSecret)

	// The retry must observe the same success response as the winner.
	for i := 0; i < 3; i++ {
		resp := adapter.Handle(context.Background(), req)
		if resp.Error != clickSuccess {
			t.Fatalf("call %d: error = %d, want %d", i, resp.Error, clickSuccess)
		}
		if resp.MerchantConfirmID != 1 {
			t.Fatalf("call %d: merchant_confirm_id = %d, want 1", i, resp.MerchantConfirmID)
		}
	}

	if engine.commits != 1 {
		t.Errorf("commits = %d, want 1", engine.commits)
	}
}

func TestClickCompleteUpstreamFailure(t *testing.T) {
	engine := newStubEngine(pendingToken("150.00"))
	adapter := newClickAdapter(engine)

	req := signedClickRequest(clickActionComplete, "150.00", clickSecret)
	req.Error = -5017
	req.SignString = clickSignature(req, clickSecret)

	resp := adapter.Handle(context.Background(), req)
	if resp.Error != clickErrTxnCancelled {
		t.Errorf("Handle() error = %d, want %d", resp.Error, clickErrTxnCancelled)
	}
	if engine.commits != 0 {
		t.Errorf("commits = %d, want 0: upstream failure must not credit", engine.commits)
	}
}

func TestClickCompleteCancelledToken(t *testing.T) {
	tok := pendingToken("150.00")
	tok.Status = models.TokenStatusCancelled
	adapter := newClickAdapter(newStubEngine(tok))

	resp := adapter.Handle(context.Background(), signedClickRequest(clickActionComplete, "150.00", clickSecret))
	if resp.Error != clickErrTxnCancelled {
		t.Errorf("Handle() error = %d, want %d", resp.Error, clickErrTxnCancelled)
	}
}
