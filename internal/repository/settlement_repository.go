package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-portal/internal/models"
)

// onlineMethodName is the tenant-scoped payment method settlements are
// booked under, created on first use.
const onlineMethodName = "Online"

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Settle commits the token and applies the ledger effect in one database
// transaction. The conditional UPDATE on the token status is the sole
// idempotency anchor: out of any number of concurrent or retried calls for
// the same token, exactly one observes applied = true and writes the
// payment record, order paid-amount and customer balance. Every other call
// returns applied = false and must be treated as "already settled".
func (r *SettlementRepository) Settle(ctx context.Context, token *models.PaymentToken, provider models.Provider, providerTxID string, paidAt time.Time) (bool, *models.PaymentRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payment_tokens
		SET status = 'paid', paid_via = $2, provider_transaction_id = $3, paid_at = $4
		WHERE token = $1 AND status = 'pending'
	`, token.Token, provider, providerTxID, paidAt)
	if err != nil {
		return false, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n == 0 {
		return false, nil, nil
	}

	methodID, err := r.ensurePaymentMethod(ctx, tx, token.TenantID)
	if err != nil {
		return false, nil, err
	}

	record := &models.PaymentRecord{
		ID:                    uuid.New().String(),
		TenantID:              token.TenantID,
		OrderID:               token.OrderID,
		CustomerID:            token.CustomerID,
		PaymentMethodID:       methodID,
		Token:                 token.Token,
		Amount:                token.Amount,
		Currency:              token.Currency,
		Provider:              provider,
		ProviderTransactionID: providerTxID,
		CreatedAt:             paidAt,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_records (
			id, tenant_id, order_id, customer_id, payment_method_id, token,
			amount, currency, provider, provider_transaction_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		record.ID,
		record.TenantID,
		record.OrderID,
		record.CustomerID,
		record.PaymentMethodID,
		record.Token,
		record.Amount,
		record.Currency,
		record.Provider,
		record.ProviderTransactionID,
		record.CreatedAt,
	)
	if err != nil {
		return false, nil, err
	}

	if err := r.applyToOrder(ctx, tx, token.OrderID, token.Amount); err != nil {
		return false, nil, err
	}
	if err := r.applyToCustomer(ctx, tx, token.CustomerID, token.Amount); err != nil {
		return false, nil, err
	}

	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	return true, record, nil
}

func (r *SettlementRepository) ensurePaymentMethod(ctx context.Context, tx *sql.Tx, tenantID string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payment_methods (id, tenant_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, uuid.New().String(), tenantID, onlineMethodName).Scan(&id)
	return id, err
}

func (r *SettlementRepository) applyToOrder(ctx context.Context, tx *sql.Tx, orderID string, amount decimal.Decimal) error {
	var paid, total decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE orders
		SET paid_amount = paid_amount + $2
		WHERE id = $1
		RETURNING paid_amount, total_amount
	`, orderID, amount).Scan(&paid, &total)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE orders SET payment_status = $2 WHERE id = $1`,
		orderID, models.OrderStateAfterPayment(paid, total))
	return err
}

func (r *SettlementRepository) applyToCustomer(ctx context.Context, tx *sql.Tx, customerID string, amount decimal.Decimal) error {
	var debt decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		SELECT debt_balance FROM customers WHERE id = $1 FOR UPDATE
	`, customerID).Scan(&debt)
	if err != nil {
		return err
	}

	newDebt, creditDelta := models.SplitDebtCredit(debt, amount)
	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET debt_balance = $2, credit_balance = credit_balance + $3
		WHERE id = $1
	`, customerID, newDebt, creditDelta)
	return err
}

// GetOrder loads an order summary scoped to a tenant, used by link creation
// to validate ownership and compute the default amount.
func (r *SettlementRepository) GetOrder(ctx context.Context, orderID, tenantID string) (*models.OrderSummary, string, error) {
	query := `
		SELECT o.id, o.order_number, o.total_amount, o.paid_amount, o.payment_status,
		       o.customer_id, c.name
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1 AND o.tenant_id = $2
	`

	s := &models.OrderSummary{}
	var customerID string
	err := r.db.QueryRowContext(ctx, query, orderID, tenantID).Scan(
		&s.OrderID,
		&s.OrderNumber,
		&s.TotalAmount,
		&s.PaidAmount,
		&s.PaymentStatus,
		&customerID,
		&s.CustomerName,
	)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return s, customerID, nil
}
