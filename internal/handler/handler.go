// Package handler содержит HTTP-обработчики API SMM-панели.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/middleware"
	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/payment"
	"github.com/ndemidov/smmpanel-system/internal/provider"
	"github.com/ndemidov/smmpanel-system/internal/repository"
	"github.com/ndemidov/smmpanel-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, username, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)

	ListActiveServices(ctx context.Context) ([]model.Service, error)

	CreateOrder(ctx context.Context, userID, serviceID int64, link string, quantity int) (*model.Order, error)
	GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	CancelOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*model.Order, error)
	RefundOrder(ctx context.Context, adminID, orderID int64) (*model.Order, error)

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetLedgerHistory(ctx context.Context, userID int64) ([]model.LedgerEntry, error)

	CreateCheckout(ctx context.Context, userID, amountCents int64, method model.PaymentMethod) (string, *model.Payment, error)
	ConfirmCheckout(ctx context.Context, sessionID string) error
	GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	AdminCreatePayment(ctx context.Context, adminID int64, p *model.Payment) (*model.Payment, error)

	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, upd repository.UserAdminUpdate) error
	DeleteUser(ctx context.Context, id int64) error
	AdjustUserBalance(ctx context.Context, adminID, userID, deltaCents int64, memo string) (*model.Balance, error)

	CreateProvider(ctx context.Context, p *model.Provider) (*model.Provider, error)
	UpdateProvider(ctx context.Context, p *model.Provider) error
	DeleteProvider(ctx context.Context, id int64) error
	ListProviders(ctx context.Context) ([]model.Provider, error)
	TestProvider(ctx context.Context, providerID int64) (*provider.BalanceInfo, error)
	SyncProvider(ctx context.Context, providerID int64) (*service.SyncResult, error)

	ListAllServices(ctx context.Context) ([]model.Service, error)
	UpdateService(ctx context.Context, id int64, upd repository.ServiceUpdate) error

	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	CreateTicket(ctx context.Context, userID int64, subject, category, priority, message string) (*model.Ticket, error)
	GetTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64) (*model.Ticket, []model.TicketMessage, error)
	ListTickets(ctx context.Context, userID int64, isAdmin bool) ([]model.Ticket, error)
	ReplyTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64, body string) (*model.Ticket, error)
	CloseTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64) (*model.Ticket, error)

	CreateAPIKey(ctx context.Context, userID int64, name string, permissions []string) (*model.APIKey, string, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID, keyID int64) error
}

// Handler реализует HTTP-обработчики API SMM-панели.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	verifier       *payment.Verifier
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// verifier может быть nil — тогда webhook-маршрут отвечает 503.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, verifier *payment.Verifier) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		verifier:       verifier,
		validate:       validator.New(),
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
// Внутренние ошибки логируются и наружу уходят без деталей.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeErrorKind(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		h.writeErrorKind(w, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, repository.ErrUserExists):
		h.writeErrorKind(w, http.StatusConflict, "user_exists", "email is already registered")
	case errors.Is(err, repository.ErrInsufficientFunds):
		h.writeErrorKind(w, http.StatusPaymentRequired, "insufficient_funds", "balance is too low")
	case errors.Is(err, repository.ErrAlreadyRefunded):
		h.writeErrorKind(w, http.StatusConflict, "already_refunded", err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		h.writeErrorKind(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrNotFound):
		h.writeErrorKind(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidLink),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrServiceUnavailable):
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, provider.ErrUnreachable),
		errors.Is(err, provider.ErrMalformedResponse):
		h.writeErrorKind(w, http.StatusBadGateway, "provider_error", err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeErrorKind(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decodeValid разбирает JSON-тело и проверяет его по validate-тегам.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		missing := ""
		for _, fe := range verrs {
			if missing != "" {
				missing += ", "
			}
			missing += fe.Field()
		}
		return "invalid or missing fields: " + missing
	}
	return "invalid request body"
}

// claims достаёт идентификацию из контекста; после authMiddleware она
// присутствует всегда.
func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (int64, bool, bool) {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeErrorKind(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return 0, false, false
	}
	return c.UserID, c.Role == model.RoleAdmin, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return id, true
}
