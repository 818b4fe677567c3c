package repository

import (
	"context"
	"database/sql"

	"payment-portal/internal/models"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `token, tenant_id, order_id, customer_id, amount, currency, status,
	       paid_via, provider_transaction_id, expires_at, created_at, paid_at, cancelled_at`

func (r *TokenRepository) Create(ctx context.Context, token *models.PaymentToken) error {
	query := `
		INSERT INTO payment_tokens (
			token, tenant_id, order_id, customer_id, amount, currency,
			status, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.Token,
		token.TenantID,
		token.OrderID,
		token.CustomerID,
		token.Amount,
		token.Currency,
		token.Status,
		token.ExpiresAt,
		token.CreatedAt,
	)

	return err
}

func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE token = $1`
	return r.scanToken(r.db.QueryRowContext(ctx, query, token))
}

// GetByProviderTransaction resolves a token from the provider's own
// transaction id (Payme addresses Perform/Cancel/Check by that id).
func (r *TokenRepository) GetByProviderTransaction(ctx context.Context, providerTxID string) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE provider_transaction_id = $1`
	return r.scanToken(r.db.QueryRowContext(ctx, query, providerTxID))
}

// AttachProviderTransaction records the provider's transaction id on a
// pending token. Repeating the call with the same id succeeds (provider
// retries of CreateTransaction); a different id against a token that
// already carries one is refused.
func (r *TokenRepository) AttachProviderTransaction(ctx context.Context, token, providerTxID string) (bool, error) {
	query := `
		UPDATE payment_tokens
		SET provider_transaction_id = $2
		WHERE token = $1
		  AND status = 'pending'
		  AND (provider_transaction_id = '' OR provider_transaction_id = $2)
	`

	res, err := r.db.ExecContext(ctx, query, token, providerTxID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Cancel transitions pending → cancelled. The conditional WHERE makes the
// call a no-op against paid tokens; applied reports whether this call won.
func (r *TokenRepository) Cancel(ctx context.Context, token string) (bool, error) {
	query := `
		UPDATE payment_tokens
		SET status = 'cancelled', cancelled_at = NOW()
		WHERE token = $1 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetWithOrder loads a token together with the order summary shown on the
// public status page.
func (r *TokenRepository) GetWithOrder(ctx context.Context, token string) (*models.PaymentToken, *models.OrderSummary, error) {
	query := `
		SELECT t.token, t.tenant_id, t.order_id, t.customer_id, t.amount, t.currency,
		       t.status, t.paid_via, t.provider_transaction_id, t.expires_at,
		       t.created_at, t.paid_at, t.cancelled_at,
		       o.order_number, o.total_amount, o.paid_amount, o.payment_status,
		       c.name
		FROM payment_tokens t
		JOIN orders o ON o.id = t.order_id
		JOIN customers c ON c.id = t.customer_id
		WHERE t.token = $1
	`

	t := &models.PaymentToken{}
	s := &models.OrderSummary{}
	var paidAt, cancelledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.Token,
		&t.TenantID,
		&t.OrderID,
		&t.CustomerID,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.PaidVia,
		&t.ProviderTransactionID,
		&t.ExpiresAt,
		&t.CreatedAt,
		&paidAt,
		&cancelledAt,
		&s.OrderNumber,
		&s.TotalAmount,
		&s.PaidAmount,
		&s.PaymentStatus,
		&s.CustomerName,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	s.OrderID = t.OrderID
	if paidAt.Valid {
		t.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		t.CancelledAt = &cancelledAt.Time
	}
	return t, s, nil
}

func (r *TokenRepository) scanToken(row *sql.Row) (*models.PaymentToken, error) {
	t := &models.PaymentToken{}
	var paidAt, cancelledAt sql.NullTime
	err := row.Scan(
		&t.Token,
		&t.TenantID,
		&t.OrderID,
		&t.CustomerID,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.PaidVia,
		&t.ProviderTransactionID,
		&t.ExpiresAt,
		&t.CreatedAt,
		&paidAt,
		&cancelledAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if paidAt.Valid {
		t.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		t.CancelledAt = &cancelledAt.Time
	}
	return t, nil
}
