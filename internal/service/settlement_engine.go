package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-portal/internal/models"
	"payment-portal/internal/notify"
	"payment-portal/internal/repository"
)

var settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "settlements_total",
	Help: "Settled payment tokens by provider",
}, []string{"provider"})

// Notifier publishes settlement events to out-of-process consumers.
// Delivery is fire and forget.
type Notifier interface {
	PublishSettlement(event notify.SettlementEvent) error
}

// Engine executes the internal command set the provider adapters emit:
// Authorize, Register, Commit, Cancel and the two Query reads. Commit is
// the only path that touches the ledger, and it does so exactly once per
// token regardless of how many concurrent or retried calls race for it.
type Engine struct {
	tokens      *repository.TokenRepository
	settlements *repository.SettlementRepository
	notifier    Notifier
	logger      *zap.Logger
}

func NewEngine(tokens *repository.TokenRepository, settlements *repository.SettlementRepository, notifier Notifier, logger *zap.Logger) *Engine {
	return &Engine{
		tokens:      tokens,
		settlements: settlements,
		notifier:    notifier,
		logger:      logger,
	}
}

// Authorize validates that a token can accept a payment of the given
// amount. It never mutates state; both Click Prepare and Payme
// CheckPerformTransaction run through it.
func (e *Engine) Authorize(ctx context.Context, token string, amount decimal.Decimal, now time.Time) (*models.PaymentToken, error) {
	t, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}

	switch t.Status {
	case models.TokenStatusPaid:
		return t, ErrAlreadyPaid
	case models.TokenStatusCancelled:
		return t, ErrTokenCancelled
	}
	if t.Expired(now) {
		return t, ErrTokenExpired
	}
	if !t.AmountMatches(amount) {
		return t, ErrAmountMismatch
	}
	return t, nil
}

// Register attaches the provider's transaction id to a pending token
// (Payme CreateTransaction). Funds are not committed. Retrying with the
// same id is accepted; a second, different id against the same token is
// refused so only one provider transaction can be in flight per token.
func (e *Engine) Register(ctx context.Context, token, providerTxID string) (*models.PaymentToken, error) {
	t, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	if t.Status == models.TokenStatusPaid {
		return t, ErrAlreadyPaid
	}
	if t.Status == models.TokenStatusCancelled {
		return t, ErrTokenCancelled
	}

	applied, err := e.tokens.AttachProviderTransaction(ctx, token, providerTxID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return t, ErrTransactionConflict
	}
	t.ProviderTransactionID = providerTxID
	return t, nil
}

// Commit settles a token. The winning call applies the ledger effect and
// publishes the settlement event; every other call observes the already
// settled token and returns the same view so adapters can answer provider
// retries identically. applied reports whether this call won.
func (e *Engine) Commit(ctx context.Context, token string, provider models.Provider, providerTxID string) (*models.PaymentToken, bool, error) {
	t, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, ErrTokenNotFound
	}
	if t.Status == models.TokenStatusCancelled {
		return t, false, ErrTokenCancelled
	}
	if t.Status == models.TokenStatusPaid {
		return t, false, nil
	}

	paidAt := time.Now().UTC()
	applied, record, err := e.settlements.Settle(ctx, t, provider, providerTxID, paidAt)
	if err != nil {
		return nil, false, err
	}

	if !applied {
		// Lost the race: reload to see who settled (or cancelled) it.
		t, err = e.tokens.GetByToken(ctx, token)
		if err != nil {
			return nil, false, err
		}
		if t == nil {
			return nil, false, ErrTokenNotFound
		}
		if t.Status == models.TokenStatusCancelled {
			return t, false, ErrTokenCancelled
		}
		return t, false, nil
	}

	t.Status = models.TokenStatusPaid
	t.PaidVia = provider
	t.ProviderTransactionID = providerTxID
	t.PaidAt = &paidAt

	settlementsTotal.WithLabelValues(string(provider)).Inc()
	e.logger.Info("token settled",
		zap.String("token", t.Token),
		zap.String("provider", string(provider)),
		zap.String("provider_transaction_id", providerTxID),
		zap.String("order_id", t.OrderID))

	e.dispatchNotification(t, record)
	return t, true, nil
}

// Cancel transitions a pending token to cancelled. It can never succeed
// against a paid token; the caller gets the paid token back with
// applied = false (Payme's CancelTransaction contract depends on this).
func (e *Engine) Cancel(ctx context.Context, token string) (*models.PaymentToken, bool, error) {
	t, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, ErrTokenNotFound
	}

	applied, err := e.tokens.Cancel(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if applied {
		now := time.Now().UTC()
		t.Status = models.TokenStatusCancelled
		t.CancelledAt = &now
		return t, true, nil
	}

	t, err = e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, ErrTokenNotFound
	}
	return t, false, nil
}

// Query reads a token by its own key.
func (e *Engine) Query(ctx context.Context, token string) (*models.PaymentToken, error) {
	t, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

// QueryTransaction reads a token by the provider's transaction id.
func (e *Engine) QueryTransaction(ctx context.Context, providerTxID string) (*models.PaymentToken, error) {
	t, err := e.tokens.GetByProviderTransaction(ctx, providerTxID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

// dispatchNotification publishes the settlement event on its own goroutine.
// A slow or failing broker must never delay the webhook response; failures
// are logged and dropped.
func (e *Engine) dispatchNotification(t *models.PaymentToken, record *models.PaymentRecord) {
	if e.notifier == nil {
		return
	}

	event := notify.SettlementEvent{
		Token:                 t.Token,
		PaymentRecordID:       record.ID,
		TenantID:              t.TenantID,
		OrderID:               t.OrderID,
		CustomerID:            t.CustomerID,
		Amount:                t.Amount,
		Currency:              t.Currency,
		Provider:              string(t.PaidVia),
		ProviderTransactionID: t.ProviderTransactionID,
	}
	if t.PaidAt != nil {
		event.PaidAt = *t.PaidAt
	}

	go func() {
		if err := e.notifier.PublishSettlement(event); err != nil {
			e.logger.Error("failed to publish settlement event",
				zap.String("token", event.Token), zap.Error(err))
		}
	}()
}
