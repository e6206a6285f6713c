package handler

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/payment"
)

type balanceHistoryResponse struct {
	Kind          string `json:"kind"`
	Actor         string `json:"actor"`
	DeltaCents    int64  `json:"delta_cents"`
	BalanceBefore int64  `json:"balance_before_cents"`
	BalanceAfter  int64  `json:"balance_after_cents"`
	Reference     string `json:"reference,omitempty"`
	Memo          string `json:"memo,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// GetBalance возвращает баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// GetBalanceHistory возвращает журнал движений баланса пользователя.
func (h *Handler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetLedgerHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]balanceHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, balanceHistoryResponse{
			Kind:          string(e.Kind),
			Actor:         e.Actor,
			DeltaCents:    e.DeltaCents,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Reference:     e.Reference,
			Memo:          e.Memo,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type checkoutRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Method      string `json:"method" validate:"required"`
}

type checkoutResponse struct {
	CheckoutURL string          `json:"checkout_url"`
	Payment     paymentResponse `json:"payment"`
}

type paymentResponse struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	AmountCents int64   `json:"amount_cents"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	ExternalID  *string `json:"external_id,omitempty"`
	Memo        string  `json:"memo,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		AmountCents: p.AmountCents,
		Method:      string(p.Method),
		Status:      string(p.Status),
		ExternalID:  p.ExternalID,
		Memo:        p.Memo,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// CreateCheckout создаёт платёжную сессию для пополнения баланса.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	url, p, err := h.service.CreateCheckout(r.Context(), userID, req.AmountCents, model.PaymentMethod(req.Method))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{CheckoutURL: url, Payment: toPaymentResponse(p)})
}

// GetPayments возвращает платежи текущего пользователя.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	payments, err := h.service.GetPaymentsByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// PaymentWebhook принимает события платёжного процессинга. Маршрут не
// требует аутентификации: подлинность события подтверждает подпись тела.
// Без настроенного секрета события отклоняются целиком.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.writeErrorKind(w, http.StatusServiceUnavailable, "webhooks_disabled", "webhook secret is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "cannot read body")
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get("X-Webhook-Signature")); err != nil {
		h.logger.Warn("webhook signature rejected", zap.String("remote", r.RemoteAddr))
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "malformed event")
		return
	}

	if event.Type != payment.EventCheckoutCompleted {
		// Прочие типы событий подтверждаются, чтобы процессинг их не повторял
		w.WriteHeader(http.StatusOK)
		return
	}
	if event.SessionID == "" {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "missing session_id")
		return
	}

	if err := h.service.ConfirmCheckout(r.Context(), event.SessionID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
