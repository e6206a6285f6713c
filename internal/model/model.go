// Package model содержит доменные сущности SMM-панели.
package model

import "time"

// Role определяет роль учётной записи.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserStatus описывает состояние учётной записи.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// User представляет учётную запись панели. Баланс хранится в копейках
// и изменяется только через журнал баланса.
type User struct {
	ID              int64
	Email           string
	Username        string
	PasswordHash    []byte
	Role            Role
	Status          UserStatus
	BalanceCents    int64
	SpentCents      int64
	DiscountPct     float64
	CustomRateCents *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLoginAt     *time.Time
}

// Provider описывает внешний сервис накрутки, к которому панель
// обращается по HTTP.
type Provider struct {
	ID        int64
	Name      string
	APIURL    string
	APIKey    string
	MarkupPct float64
	Status    string
	CreatedAt time.Time
}

const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
)

// ServiceStatus описывает доступность услуги для заказа.
type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "active"
	ServiceStatusInactive ServiceStatus = "inactive"
)

// Service представляет позицию каталога: услугу конкретного провайдера.
// RateCents — цена в копейках за 1000 единиц.
type Service struct {
	ID         int64
	ProviderID int64
	RemoteID   string
	Name       string
	Category   string
	RateCents  int64
	MinQty     int
	MaxQty     int
	Status     ServiceStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderStatus описывает стадию обработки заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// CanTransition сообщает, допустим ли переход заказа в статус next.
// Единственное место, где закреплена машина состояний заказа.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCompleted ||
			next == OrderStatusCancelled || next == OrderStatusFailed
	case OrderStatusProcessing:
		return next == OrderStatusCompleted || next == OrderStatusCancelled ||
			next == OrderStatusFailed
	default:
		// completed, cancelled и failed — терминальные статусы
		return false
	}
}

// Cancellable сообщает, можно ли отменить заказ с возвратом средств.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// Order представляет заказ пользователя на услугу каталога.
type Order struct {
	ID            int64
	UserID        int64
	ServiceID     int64
	Link          string
	Quantity      int
	ChargeCents   int64
	RemoteOrderID *string
	Status        OrderStatus
	StartCount    *int
	Remains       *int
	RefundedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// CanTransition сообщает, допустим ли переход платежа в статус next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// PaymentMethod описывает способ пополнения баланса.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayeer PaymentMethod = "payeer"
	PaymentMethodManual PaymentMethod = "manual"
)

// ValidPaymentMethod проверяет, что метод оплаты известен панели.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodPayeer, PaymentMethodManual:
		return true
	}
	return false
}

// Payment представляет пополнение баланса. ExternalID — идентификатор
// сессии или транзакции во внешней платёжной системе; по нему
// отсекаются повторные доставки webhook-событий.
type Payment struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Method      PaymentMethod
	Status      PaymentStatus
	ExternalID  *string
	Memo        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketStatus описывает состояние обращения в поддержку.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusAnswered TicketStatus = "answered"
	TicketStatusClosed   TicketStatus = "closed"
)

// CanTransition сообщает, допустим ли переход обращения в статус next.
// Закрытое обращение переоткрывается ответом клиента (closed → pending).
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusAnswered:
		return next == TicketStatusPending || next == TicketStatusAnswered ||
			next == TicketStatusClosed
	case TicketStatusClosed:
		return next == TicketStatusPending
	default:
		return false
	}
}

// Ticket представляет обращение пользователя в поддержку.
type Ticket struct {
	ID        int64
	UserID    int64
	Subject   string
	Category  string
	Priority  string
	Status    TicketStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TicketMessage представляет сообщение внутри обращения.
type TicketMessage struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Staff     bool
	Body      string
	CreatedAt time.Time
}

// APIKey представляет именованный ключ доступа пользователя.
// Удаление мягкое: ключ переводится в статус inactive.
type APIKey struct {
	ID           int64
	UserID       int64
	Name         string
	KeyHash      []byte
	Permissions  []string
	Status       string
	RequestCount int64
	LastUsedAt   *time.Time
	CreatedAt    time.Time
}

const (
	APIKeyStatusActive   = "active"
	APIKeyStatusInactive = "inactive"
)

// LedgerKind описывает причину движения средств по балансу.
type LedgerKind string

const (
	LedgerKindOrderDebit    LedgerKind = "order_debit"
	LedgerKindOrderRefund   LedgerKind = "order_refund"
	LedgerKindPaymentCredit LedgerKind = "payment_credit"
	LedgerKindAdminAdjust   LedgerKind = "admin_adjust"
)

// LedgerEntry представляет неизменяемую запись журнала баланса.
// Записи только добавляются и никогда не правятся.
type LedgerEntry struct {
	ID            int64
	UserID        int64
	Actor         string
	Kind          LedgerKind
	DeltaCents    int64
	BalanceBefore int64
	BalanceAfter  int64
	Reference     string
	Memo          string
	CreatedAt     time.Time
}

// Balance содержит текущий баланс и суммарные траты пользователя в рублях.
type Balance struct {
	Current float64 `json:"current"`
	Spent   float64 `json:"spent"`
}
