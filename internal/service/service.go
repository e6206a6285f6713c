// Package service реализует бизнес-логику SMM-панели.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/auth"
	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/provider"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

// ErrInvalidQuantity возвращается, если количество вне допустимых границ услуги.
var (
	ErrInvalidQuantity = errors.New("quantity out of service bounds")
	// ErrServiceUnavailable возвращается при заказе неактивной услуги.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrInvalidLink возвращается, если ссылка заказа не является http(s)-URL.
	ErrInvalidLink = errors.New("invalid link")
	// ErrInvalidAmount возвращается, если сумма пополнения меньше минимальной.
	ErrInvalidAmount = errors.New("amount below minimum")
	// ErrInvalidMethod возвращается при неизвестном методе оплаты.
	ErrInvalidMethod = errors.New("unknown payment method")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается при обращении к чужому ресурсу без прав администратора.
	ErrForbidden = errors.New("forbidden")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email, username string, passwordHash []byte) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserAdmin(ctx context.Context, id int64, upd repository.UserAdminUpdate) error
	DeleteUser(ctx context.Context, id int64) error

	AdjustBalance(ctx context.Context, userID, deltaCents int64, actor, memo string) (int64, error)
	GetLedgerEntries(ctx context.Context, userID int64, limit int) ([]model.LedgerEntry, error)

	CreateOrderWithDebit(ctx context.Context, o *model.Order, actor string) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	SetOrderForwarded(ctx context.Context, orderID int64, remoteOrderID string) error
	MarkOrderFailed(ctx context.Context, orderID int64) error
	CancelOrderWithRefund(ctx context.Context, orderID int64, actor string) (*model.Order, error)
	RefundFailedOrder(ctx context.Context, orderID int64, actor string) (*model.Order, error)
	GetOrdersForStatusSync(ctx context.Context, limit int) ([]model.Order, error)
	UpdateOrderProgress(ctx context.Context, orderID int64, status model.OrderStatus, startCount, remains *int) error

	CreatePayment(ctx context.Context, p *model.Payment) (*model.Payment, error)
	CreateManualPayment(ctx context.Context, p *model.Payment, actor string) (*model.Payment, error)
	CompletePaymentBySession(ctx context.Context, sessionID string) (bool, *model.Payment, error)
	GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)

	CreateProvider(ctx context.Context, p *model.Provider) (*model.Provider, error)
	UpdateProvider(ctx context.Context, p *model.Provider) error
	DeleteProvider(ctx context.Context, id int64) error
	GetProviderByID(ctx context.Context, id int64) (*model.Provider, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)
	GetProviderForService(ctx context.Context, serviceID int64) (*model.Provider, error)

	UpsertServiceFromRemote(ctx context.Context, s *model.Service) (bool, error)
	GetServiceByID(ctx context.Context, id int64) (*model.Service, error)
	ListServices(ctx context.Context, onlyActive bool) ([]model.Service, error)
	UpdateService(ctx context.Context, id int64, upd repository.ServiceUpdate) error

	CreateTicket(ctx context.Context, t *model.Ticket, message string) (*model.Ticket, error)
	GetTicketByID(ctx context.Context, id int64) (*model.Ticket, []model.TicketMessage, error)
	ListTicketsByUser(ctx context.Context, userID int64) ([]model.Ticket, error)
	ListTickets(ctx context.Context) ([]model.Ticket, error)
	AddTicketMessage(ctx context.Context, ticketID, authorID int64, staff bool, body string) (*model.Ticket, error)
	CloseTicket(ctx context.Context, ticketID int64) (*model.Ticket, error)

	CreateAPIKey(ctx context.Context, k *model.APIKey) (*model.APIKey, error)
	ListAPIKeysByUser(ctx context.Context, userID int64) ([]model.APIKey, error)
	DeactivateAPIKey(ctx context.Context, userID, keyID int64) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

// ProviderAPI описывает операции внешнего сервиса накрутки,
// используемые бизнес-логикой.
type ProviderAPI interface {
	Balance(ctx context.Context) (*provider.BalanceInfo, error)
	Services(ctx context.Context) ([]provider.RemoteService, error)
	AddOrder(ctx context.Context, remoteServiceID, link string, quantity int) (string, error)
	OrderStatus(ctx context.Context, remoteOrderID string) (*provider.OrderState, error)
}

// Options содержит настройки бизнес-логики.
type Options struct {
	MinDepositCents    int64
	CheckoutBaseURL    string
	ProviderTimeout    time.Duration
	StatusPollInterval time.Duration
}

// Service содержит бизнес-логику SMM-панели.
type Service struct {
	repo   Repository
	tokens *auth.TokenManager
	logger *zap.Logger
	opts   Options

	// newProviderClient подменяется в тестах
	newProviderClient func(apiURL, apiKey string) ProviderAPI
}

// NewService создаёт сервис с указанным репозиторием и менеджером токенов.
func NewService(repo Repository, tokens *auth.TokenManager, logger *zap.Logger, opts Options) *Service {
	if opts.StatusPollInterval <= 0 {
		opts.StatusPollInterval = 30 * time.Second
	}

	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: logger,
		opts:   opts,
		newProviderClient: func(apiURL, apiKey string) ProviderAPI {
			return provider.NewClient(apiURL, apiKey, opts.ProviderTimeout)
		},
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func userActor(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func adminActor(adminID int64) string {
	return fmt.Sprintf("admin:%d", adminID)
}
