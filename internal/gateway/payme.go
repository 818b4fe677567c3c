package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"payment-portal/internal/models"
	"payment-portal/internal/service"
)

// Payme transaction states.
const (
	paymeStateCreated   = 1
	paymeStatePerformed = 2
	paymeStateCancelled = -1
)

// Payme error vocabulary.
const (
	paymeErrParse                 = -32700
	paymeErrMethodNotFound        = -32601
	paymeErrInsufficientPrivilege = -32504
	paymeErrWrongAmount           = -31001
	paymeErrTxnNotFound           = -31003
	paymeErrCannotPerform         = -31008
	paymeErrAccountNotFound       = -31050
	paymeErrAlreadyPaid           = -31051
)

const paymeLogin = "Paycom"

// PaymeRequest is the JSON-RPC style envelope multiplexing every method
// over one endpoint. Params are decoded per method after dispatch.
type PaymeRequest struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type PaymeResponse struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *PaymeError `json:"error,omitempty"`
}

type PaymeError struct {
	Code    int          `json:"code"`
	Message paymeMessage `json:"message"`
	Data    string       `json:"data,omitempty"`
}

type paymeMessage struct {
	UZ string `json:"uz"`
	RU string `json:"ru"`
	EN string `json:"en"`
}

type paymeAccount struct {
	OrderToken string `json:"order_token"`
}

type paymeCheckPerformParams struct {
	Amount  int64        `json:"amount"`
	Account paymeAccount `json:"account"`
}

type paymeCreateParams struct {
	ID      string       `json:"id"`
	Time    int64        `json:"time"`
	Amount  int64        `json:"amount"`
	Account paymeAccount `json:"account"`
}

type paymeTransactionParams struct {
	ID     string `json:"id"`
	Reason int    `json:"reason"`
}

type paymeStatementParams struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// PaymeAdapter dispatches the Payme merchant API. Authentication is a
// static credential check against the tenant's merchant key, carried in the
// Authorization header, not a per-request signature.
type PaymeAdapter struct {
	engine   SettlementEngine
	settings SettingsSource
	logger   *zap.Logger
}

func NewPaymeAdapter(engine SettlementEngine, settings SettingsSource, logger *zap.Logger) *PaymeAdapter {
	return &PaymeAdapter{engine: engine, settings: settings, logger: logger}
}

// Handle decodes the envelope and dispatches by method. Payme expects HTTP
// 200 with an error body for every failure mode.
func (a *PaymeAdapter) Handle(ctx context.Context, authHeader string, body []byte) *PaymeResponse {
	var req PaymeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, paymeErrParse, "So'rovni o'qib bo'lmadi", "Ошибка разбора запроса", "Failed to parse request")
	}

	switch req.Method {
	case "CheckPerformTransaction":
		return a.checkPerform(ctx, &req, authHeader)
	case "CreateTransaction":
		return a.createTransaction(ctx, &req, authHeader)
	case "PerformTransaction":
		return a.performTransaction(ctx, &req, authHeader)
	case "CancelTransaction":
		return a.cancelTransaction(ctx, &req, authHeader)
	case "CheckTransaction":
		return a.checkTransaction(ctx, &req, authHeader)
	case "GetStatement":
		return a.getStatement(ctx, &req, authHeader)
	default:
		return errorResponse(req.ID, paymeErrMethodNotFound, "Metod topilmadi", "Метод не найден", "Method not found")
	}
}

func (a *PaymeAdapter) checkPerform(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeCheckPerformParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	token, resp := a.resolveByToken(ctx, req, params.Account.OrderToken, authHeader)
	if resp != nil {
		return resp
	}

	amount := service.SubunitsToAmount(params.Amount)
	if _, err := a.engine.Authorize(ctx, token.Token, amount, time.Now()); err != nil {
		return a.mapError(req.ID, err)
	}

	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{"allow": true}}
}

func (a *PaymeAdapter) createTransaction(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeCreateParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	token, resp := a.resolveByToken(ctx, req, params.Account.OrderToken, authHeader)
	if resp != nil {
		return resp
	}

	amount := service.SubunitsToAmount(params.Amount)
	if _, err := a.engine.Authorize(ctx, token.Token, amount, time.Now()); err != nil {
		return a.mapError(req.ID, err)
	}

	token, err := a.engine.Register(ctx, token.Token, params.ID)
	if err != nil {
		return a.mapError(req.ID, err)
	}

	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
		"create_time": token.CreatedAt.UnixMilli(),
		"transaction": token.Token,
		"state":       paymeStateCreated,
	}}
}

func (a *PaymeAdapter) performTransaction(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeTransactionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	token, resp := a.resolveByTransaction(ctx, req, params.ID, authHeader)
	if resp != nil {
		return resp
	}

	// Winner and retries answer with the same performed descriptor.
	token, _, err := a.engine.Commit(ctx, token.Token, models.ProviderPayme, params.ID)
	if err != nil {
		return a.mapError(req.ID, err)
	}

	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
		"transaction":  token.Token,
		"perform_time": unixMillis(token.PaidAt),
		"state":        paymeStatePerformed,
	}}
}

func (a *PaymeAdapter) cancelTransaction(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeTransactionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	token, resp := a.resolveByTransaction(ctx, req, params.ID, authHeader)
	if resp != nil {
		return resp
	}

	// A completed transaction cannot be cancelled; Payme expects the paid
	// descriptor back unchanged.
	if token.Status == models.TokenStatusPaid {
		return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
			"transaction":  token.Token,
			"perform_time": unixMillis(token.PaidAt),
			"state":        paymeStatePerformed,
		}}
	}

	token, _, err := a.engine.Cancel(ctx, token.Token)
	if err != nil {
		return a.mapError(req.ID, err)
	}
	if token.Status == models.TokenStatusPaid {
		// Lost a race against a concurrent commit.
		return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
			"transaction":  token.Token,
			"perform_time": unixMillis(token.PaidAt),
			"state":        paymeStatePerformed,
		}}
	}

	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
		"transaction": token.Token,
		"cancel_time": unixMillis(token.CancelledAt),
		"state":       paymeStateCancelled,
	}}
}

func (a *PaymeAdapter) checkTransaction(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeTransactionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	token, resp := a.resolveByTransaction(ctx, req, params.ID, authHeader)
	if resp != nil {
		return resp
	}

	state := paymeStateCreated
	switch token.Status {
	case models.TokenStatusPaid:
		state = paymeStatePerformed
	case models.TokenStatusCancelled:
		state = paymeStateCancelled
	}

	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
		"create_time":  token.CreatedAt.UnixMilli(),
		"perform_time": unixMillis(token.PaidAt),
		"cancel_time":  unixMillis(token.CancelledAt),
		"transaction":  token.Token,
		"state":        state,
		"reason":       nil,
	}}
}

func (a *PaymeAdapter) getStatement(ctx context.Context, req *PaymeRequest, authHeader string) *PaymeResponse {
	var params paymeStatementParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return parseError(req.ID)
	}

	// Statement reconciliation is handled out of band; the method must
	// still exist and answer well-formed.
	return &PaymeResponse{ID: req.ID, Result: map[string]interface{}{
		"transactions": []interface{}{},
	}}
}

// resolveByToken loads the token named by the account field and runs the
// credential check for its tenant.
func (a *PaymeAdapter) resolveByToken(ctx context.Context, req *PaymeRequest, orderToken, authHeader string) (*models.PaymentToken, *PaymeResponse) {
	token, err := a.engine.Query(ctx, orderToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return nil, accountNotFound(req.ID)
		}
		a.logger.Error("payme: token lookup failed", zap.Error(err))
		return nil, cannotPerform(req.ID)
	}
	return a.checkCredentials(ctx, req, token, authHeader)
}

// resolveByTransaction loads the token from Payme's own transaction id.
func (a *PaymeAdapter) resolveByTransaction(ctx context.Context, req *PaymeRequest, providerTxID, authHeader string) (*models.PaymentToken, *PaymeResponse) {
	token, err := a.engine.QueryTransaction(ctx, providerTxID)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			return nil, transactionNotFound(req.ID)
		}
		a.logger.Error("payme: transaction lookup failed", zap.Error(err))
		return nil, cannotPerform(req.ID)
	}
	return a.checkCredentials(ctx, req, token, authHeader)
}

func (a *PaymeAdapter) checkCredentials(ctx context.Context, req *PaymeRequest, token *models.PaymentToken, authHeader string) (*models.PaymentToken, *PaymeResponse) {
	settings, err := a.settings.GetByTenant(ctx, token.TenantID)
	if err != nil {
		a.logger.Error("payme: settings lookup failed", zap.Error(err))
		return nil, insufficientPrivilege(req.ID)
	}
	if settings == nil || !settings.PaymeConfigured() || !a.Authenticate(authHeader, settings.PaymeSecretKey) {
		return nil, insufficientPrivilege(req.ID)
	}
	return token, nil
}

// Authenticate verifies the Basic credentials against the tenant's
// merchant key.
func (a *PaymeAdapter) Authenticate(authHeader, secret string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, prefix))
	if err != nil {
		return false
	}
	login, password, ok := strings.Cut(string(raw), ":")
	if !ok || login != paymeLogin {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(secret)) == 1
}

func (a *PaymeAdapter) mapError(id interface{}, err error) *PaymeResponse {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		return accountNotFound(id)
	case errors.Is(err, service.ErrAlreadyPaid):
		return errorResponse(id, paymeErrAlreadyPaid, "Buyurtma allaqachon to'langan", "Заказ уже оплачен", "Order is already paid")
	case errors.Is(err, service.ErrAmountMismatch):
		return errorResponse(id, paymeErrWrongAmount, "Noto'g'ri summa", "Неверная сумма", "Incorrect amount")
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenCancelled),
		errors.Is(err, service.ErrTransactionConflict):
		return cannotPerform(id)
	case errors.Is(err, service.ErrTransactionNotFound):
		return transactionNotFound(id)
	default:
		a.logger.Error("payme: internal error", zap.Error(err))
		return cannotPerform(id)
	}
}

func accountNotFound(id interface{}) *PaymeResponse {
	return errorResponse(id, paymeErrAccountNotFound, "Buyurtma topilmadi", "Заказ не найден", "Order not found")
}

func transactionNotFound(id interface{}) *PaymeResponse {
	return errorResponse(id, paymeErrTxnNotFound, "Tranzaksiya topilmadi", "Транзакция не найдена", "Transaction not found")
}

func cannotPerform(id interface{}) *PaymeResponse {
	return errorResponse(id, paymeErrCannotPerform, "Amalni bajarib bo'lmaydi", "Невозможно выполнить операцию", "Unable to perform operation")
}

func insufficientPrivilege(id interface{}) *PaymeResponse {
	return errorResponse(id, paymeErrInsufficientPrivilege, "Avtorizatsiya xatosi", "Ошибка авторизации", "Insufficient privilege")
}

func parseError(id interface{}) *PaymeResponse {
	return errorResponse(id, paymeErrParse, "So'rovni o'qib bo'lmadi", "Ошибка разбора запроса", "Failed to parse request")
}

func errorResponse(id interface{}, code int, uz, ru, en string) *PaymeResponse {
	return &PaymeResponse{
		ID:    id,
		Error: &PaymeError{Code: code, Message: paymeMessage{UZ: uz, RU: ru, EN: en}},
	}
}
