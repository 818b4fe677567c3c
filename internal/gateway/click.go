package gateway

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-portal/internal/models"
	"payment-portal/internal/service"
)

// Click webhook actions.
const (
	clickActionPrepare  = 0
	clickActionComplete = 1
)

// Click error vocabulary. Click disables webhooks that answer outside it.
const (
	clickSuccess             = 0
	clickErrSignCheckFailed  = -1
	clickErrIncorrectAmount  = -2
	clickErrActionNotFound   = -3
	clickErrAlreadyPaid      = -4
	clickErrUserNotFound     = -5
	clickErrTxnNotFound      = -6
	clickErrTxnCancelled     = -9
)

// ClickRequest is the decoded webhook body, shared by Prepare and
// Complete. Amount stays a string until validated: the signature is
// computed over the field exactly as Click sent it.
type ClickRequest struct {
	ClickTransID      int64  `form:"click_trans_id" json:"click_trans_id"`
	ServiceID         string `form:"service_id" json:"service_id"`
	ClickPaydocID     int64  `form:"click_paydoc_id" json:"click_paydoc_id"`
	MerchantTransID   string `form:"merchant_trans_id" json:"merchant_trans_id"`
	MerchantPrepareID string `form:"merchant_prepare_id" json:"merchant_prepare_id"`
	Amount            string `form:"amount" json:"amount"`
	Action            int    `form:"action" json:"action"`
	Error             int    `form:"error" json:"error"`
	ErrorNote         string `form:"error_note" json:"error_note"`
	SignTime          string `form:"sign_time" json:"sign_time"`
	SignString        string `form:"sign_string" json:"sign_string"`
}

type ClickResponse struct {
	ClickTransID      int64  `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID int    `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID int    `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

// ClickAdapter implements Click's two-phase webhook: Prepare reserves
// (validation only, no state change), Complete commits through the engine.
type ClickAdapter struct {
	engine   SettlementEngine
	settings SettingsSource
	logger   *zap.Logger
}

func NewClickAdapter(engine SettlementEngine, settings SettingsSource, logger *zap.Logger) *ClickAdapter {
	return &ClickAdapter{engine: engine, settings: settings, logger: logger}
}

func (a *ClickAdapter) Handle(ctx context.Context, req *ClickRequest) *ClickResponse {
	switch req.Action {
	case clickActionPrepare:
		return a.prepare(ctx, req)
	case clickActionComplete:
		return a.complete(ctx, req)
	default:
		return a.errorResponse(req, clickErrActionNotFound, "Action not found")
	}
}

func (a *ClickAdapter) prepare(ctx context.Context, req *ClickRequest) *ClickResponse {
	token, resp := a.authenticate(ctx, req)
	if resp != nil {
		return resp
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return a.errorResponse(req, clickErrIncorrectAmount, "Incorrect parameter amount")
	}

	if _, err := a.engine.Authorize(ctx, token.Token, amount, time.Now()); err != nil {
		return a.mapError(req, err)
	}

	// Prepare reserves without touching state; the prepare id is a
	// constant acknowledgement ticket, not a stored record.
	return &ClickResponse{
		ClickTransID:      req.ClickTransID,
		MerchantTransID:   req.MerchantTransID,
		MerchantPrepareID: 1,
		Error:             clickSuccess,
		ErrorNote:         "Success",
	}
}

func (a *ClickAdapter) complete(ctx context.Context, req *ClickRequest) *ClickResponse {
	token, resp := a.authenticate(ctx, req)
	if resp != nil {
		return resp
	}

	// Upstream failure reported by Click: acknowledge without crediting.
	if req.Error < 0 {
		return a.errorResponse(req, clickErrTxnCancelled, "Transaction cancelled")
	}

	_, _, err := a.engine.Commit(ctx, token.Token, models.ProviderClick, strconv.FormatInt(req.ClickTransID, 10))
	if err != nil {
		return a.mapError(req, err)
	}

	// Winner and late duplicates answer identically; Click retries on
	// anything else.
	return &ClickResponse{
		ClickTransID:      req.ClickTransID,
		MerchantTransID:   req.MerchantTransID,
		MerchantConfirmID: 1,
		Error:             clickSuccess,
		ErrorNote:         "Success",
	}
}

// authenticate resolves the token, loads the tenant's Click credentials and
// verifies the request signature. No state is touched before this passes.
func (a *ClickAdapter) authenticate(ctx context.Context, req *ClickRequest) (*models.PaymentToken, *ClickResponse) {
	token, err := a.engine.Query(ctx, req.MerchantTransID)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return nil, a.errorResponse(req, clickErrUserNotFound, "User not found")
		}
		a.logger.Error("click: token lookup failed", zap.Error(err))
		return nil, a.errorResponse(req, clickErrTxnNotFound, "Transaction not found")
	}

	settings, err := a.settings.GetByTenant(ctx, token.TenantID)
	if err != nil || settings == nil || !settings.ClickConfigured() {
		if err != nil {
			a.logger.Error("click: settings lookup failed", zap.Error(err))
		}
		return nil, a.errorResponse(req, clickErrSignCheckFailed, "SIGN CHECK FAILED!")
	}

	if !a.Authenticate(req, settings.ClickSecretKey) {
		return nil, a.errorResponse(req, clickErrSignCheckFailed, "SIGN CHECK FAILED!")
	}
	return token, nil
}

// Authenticate checks the request signature. Prepare and Complete sign
// different field sets: Complete includes merchant_prepare_id.
func (a *ClickAdapter) Authenticate(req *ClickRequest, secret string) bool {
	expected := clickSignature(req, secret)
	return subtle.ConstantTimeCompare([]byte(req.SignString), []byte(expected)) == 1
}

func clickSignature(req *ClickRequest, secret string) string {
	var payload string
	if req.Action == clickActionComplete {
		payload = fmt.Sprintf("%d%s%s%s%s%s%d%s",
			req.ClickTransID, req.ServiceID, secret, req.MerchantTransID,
			req.MerchantPrepareID, req.Amount, req.Action, req.SignTime)
	} else {
		payload = fmt.Sprintf("%d%s%s%s%s%d%s",
			req.ClickTransID, req.ServiceID, secret, req.MerchantTransID,
			req.Amount, req.Action, req.SignTime)
	}
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (a *ClickAdapter) mapError(req *ClickRequest, err error) *ClickResponse {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		return a.errorResponse(req, clickErrUserNotFound, "User not found")
	case errors.Is(err, service.ErrAlreadyPaid):
		return a.errorResponse(req, clickErrAlreadyPaid, "Already paid")
	case errors.Is(err, service.ErrAmountMismatch):
		return a.errorResponse(req, clickErrIncorrectAmount, "Incorrect parameter amount")
	case errors.Is(err, service.ErrTokenExpired), errors.Is(err, service.ErrTokenCancelled):
		return a.errorResponse(req, clickErrTxnCancelled, "Transaction cancelled")
	default:
		a.logger.Error("click: internal error", zap.String("token", req.MerchantTransID), zap.Error(err))
		return a.errorResponse(req, clickErrTxnNotFound, "Transaction not found")
	}
}

func (a *ClickAdapter) errorResponse(req *ClickRequest, code int, note string) *ClickResponse {
	return &ClickResponse{
		ClickTransID:    req.ClickTransID,
		MerchantTransID: req.MerchantTransID,
		Error:           code,
		ErrorNote:       note,
	}
}
