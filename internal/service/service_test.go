package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/provider"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

func TestChargeCents(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		rateCents int64
		want      int64
	}{
		{"exact thousand", 1000, 100, 100},
		{"five thousand at one ruble", 5000, 100, 500},
		{"half thousand", 500, 100, 50},
		{"rounds to cent", 333, 100, 33},
		{"rounds half up", 335, 100, 34},
		{"small order cheap rate", 50, 90, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chargeCents(tt.quantity, tt.rateCents)
			if got != tt.want {
				t.Fatalf("chargeCents(%d, %d) = %d, want %d", tt.quantity, tt.rateCents, got, tt.want)
			}
		})
	}
}

func TestEffectiveRateCents(t *testing.T) {
	svc := &model.Service{RateCents: 1000}
	custom := int64(700)

	tests := []struct {
		name string
		user *model.User
		want int64
	}{
		{"no discount", &model.User{}, 1000},
		{"ten percent discount", &model.User{DiscountPct: 10}, 900},
		{"custom rate wins over discount", &model.User{DiscountPct: 10, CustomRateCents: &custom}, 700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveRateCents(tt.user, svc)
			if got != tt.want {
				t.Fatalf("effectiveRateCents = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMapRemoteStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   model.OrderStatus
		ok     bool
	}{
		{"Completed", model.OrderStatusCompleted, true},
		{"In progress", model.OrderStatusProcessing, true},
		{"Pending", model.OrderStatusProcessing, true},
		{"Partial", model.OrderStatusFailed, true},
		{"Canceled", model.OrderStatusFailed, true},
		{"Error", model.OrderStatusFailed, true},
		{"Something else", "", false},
	}

	for _, tt := range tests {
		got, ok := mapRemoteStatus(tt.remote)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("mapRemoteStatus(%q) = (%q, %v), want (%q, %v)", tt.remote, got, ok, tt.want, tt.ok)
		}
	}
}

// stubRepo реализует Repository для тестов бизнес-логики.
type stubRepo struct {
	user    *model.User
	userErr error

	service    *model.Service
	serviceErr error

	order          *model.Order
	createOrderErr error

	prov    *model.Provider
	provErr error

	payment          *model.Payment
	createPaymentErr error

	completeCredited bool
	completePayment  *model.Payment
	completeErr      error

	insertedSeq []bool
	upsertCalls int

	settings map[string]string
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, email, username string, passwordHash []byte) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) TouchLastLogin(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) ListUsers(ctx context.Context) ([]model.User, error) { return nil, nil }

func (s *stubRepo) UpdateUserAdmin(ctx context.Context, id int64, upd repository.UserAdminUpdate) error {
	return nil
}

func (s *stubRepo) DeleteUser(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) AdjustBalance(ctx context.Context, userID, deltaCents int64, actor, memo string) (int64, error) {
	return 0, nil
}

func (s *stubRepo) GetLedgerEntries(ctx context.Context, userID int64, limit int) ([]model.LedgerEntry, error) {
	return nil, nil
}

func (s *stubRepo) CreateOrderWithDebit(ctx context.Context, o *model.Order, actor string) (*model.Order, error) {
	if s.createOrderErr != nil {
		return nil, s.createOrderErr
	}
	created := *o
	created.ID = 1
	created.Status = model.OrderStatusPending
	s.order = &created
	return &created, nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	if s.order == nil {
		return nil, repository.ErrNotFound
	}
	return s.order, nil
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) SetOrderForwarded(ctx context.Context, orderID int64, remoteOrderID string) error {
	s.order.Status = model.OrderStatusProcessing
	s.order.RemoteOrderID = &remoteOrderID
	return nil
}

func (s *stubRepo) MarkOrderFailed(ctx context.Context, orderID int64) error {
	s.order.Status = model.OrderStatusFailed
	return nil
}

func (s *stubRepo) CancelOrderWithRefund(ctx context.Context, orderID int64, actor string) (*model.Order, error) {
	if s.order == nil {
		return nil, repository.ErrNotFound
	}
	if !s.order.Status.Cancellable() {
		return nil, repository.ErrInvalidTransition
	}
	s.order.Status = model.OrderStatusCancelled
	return s.order, nil
}

func (s *stubRepo) RefundFailedOrder(ctx context.Context, orderID int64, actor string) (*model.Order, error) {
	return s.order, nil
}

func (s *stubRepo) GetOrdersForStatusSync(ctx context.Context, limit int) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) UpdateOrderProgress(ctx context.Context, orderID int64, status model.OrderStatus, startCount, remains *int) error {
	return nil
}

func (s *stubRepo) CreatePayment(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if s.createPaymentErr != nil {
		return nil, s.createPaymentErr
	}
	created := *p
	created.ID = 1
	created.Status = model.PaymentStatusPending
	s.payment = &created
	return &created, nil
}

func (s *stubRepo) CreateManualPayment(ctx context.Context, p *model.Payment, actor string) (*model.Payment, error) {
	created := *p
	created.ID = 1
	s.payment = &created
	return &created, nil
}

func (s *stubRepo) CompletePaymentBySession(ctx context.Context, sessionID string) (bool, *model.Payment, error) {
	return s.completeCredited, s.completePayment, s.completeErr
}

func (s *stubRepo) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubRepo) ListPayments(ctx context.Context) ([]model.Payment, error) { return nil, nil }

func (s *stubRepo) CreateProvider(ctx context.Context, p *model.Provider) (*model.Provider, error) {
	return p, nil
}

func (s *stubRepo) UpdateProvider(ctx context.Context, p *model.Provider) error { return nil }

func (s *stubRepo) DeleteProvider(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) GetProviderByID(ctx context.Context, id int64) (*model.Provider, error) {
	return s.prov, s.provErr
}

func (s *stubRepo) ListProviders(ctx context.Context) ([]model.Provider, error) { return nil, nil }

func (s *stubRepo) GetProviderForService(ctx context.Context, serviceID int64) (*model.Provider, error) {
	return s.prov, s.provErr
}

func (s *stubRepo) UpsertServiceFromRemote(ctx context.Context, svc *model.Service) (bool, error) {
	inserted := false
	if s.upsertCalls < len(s.insertedSeq) {
		inserted = s.insertedSeq[s.upsertCalls]
	}
	s.upsertCalls++
	return inserted, nil
}

func (s *stubRepo) GetServiceByID(ctx context.Context, id int64) (*model.Service, error) {
	return s.service, s.serviceErr
}

func (s *stubRepo) ListServices(ctx context.Context, onlyActive bool) ([]model.Service, error) {
	return nil, nil
}

func (s *stubRepo) UpdateService(ctx context.Context, id int64, upd repository.ServiceUpdate) error {
	return nil
}

func (s *stubRepo) CreateTicket(ctx context.Context, t *model.Ticket, message string) (*model.Ticket, error) {
	return t, nil
}

func (s *stubRepo) GetTicketByID(ctx context.Context, id int64) (*model.Ticket, []model.TicketMessage, error) {
	return nil, nil, repository.ErrNotFound
}

func (s *stubRepo) ListTicketsByUser(ctx context.Context, userID int64) ([]model.Ticket, error) {
	return nil, nil
}

func (s *stubRepo) ListTickets(ctx context.Context) ([]model.Ticket, error) { return nil, nil }

func (s *stubRepo) AddTicketMessage(ctx context.Context, ticketID, authorID int64, staff bool, body string) (*model.Ticket, error) {
	return nil, nil
}

func (s *stubRepo) CloseTicket(ctx context.Context, ticketID int64) (*model.Ticket, error) {
	return nil, nil
}

func (s *stubRepo) CreateAPIKey(ctx context.Context, k *model.APIKey) (*model.APIKey, error) {
	created := *k
	created.ID = 1
	created.Status = model.APIKeyStatusActive
	return &created, nil
}

func (s *stubRepo) ListAPIKeysByUser(ctx context.Context, userID int64) ([]model.APIKey, error) {
	return nil, nil
}

func (s *stubRepo) DeactivateAPIKey(ctx context.Context, userID, keyID int64) error { return nil }

func (s *stubRepo) GetSetting(ctx context.Context, key string) (string, error) {
	if v, ok := s.settings[key]; ok {
		return v, nil
	}
	return "", repository.ErrNotFound
}

func (s *stubRepo) SetSetting(ctx context.Context, key, value string) error { return nil }

func (s *stubRepo) ListSettings(ctx context.Context) (map[string]string, error) {
	return s.settings, nil
}

// fakeProviderAPI подменяет HTTP-клиент провайдера в тестах.
type fakeProviderAPI struct {
	balance *provider.BalanceInfo
	remote  []provider.RemoteService

	addOrderID  string
	addOrderErr error
	addCalls    int

	state *provider.OrderState
}

func (f *fakeProviderAPI) Balance(ctx context.Context) (*provider.BalanceInfo, error) {
	return f.balance, nil
}

func (f *fakeProviderAPI) Services(ctx context.Context) ([]provider.RemoteService, error) {
	return f.remote, nil
}

func (f *fakeProviderAPI) AddOrder(ctx context.Context, remoteServiceID, link string, quantity int) (string, error) {
	f.addCalls++
	return f.addOrderID, f.addOrderErr
}

func (f *fakeProviderAPI) OrderStatus(ctx context.Context, remoteOrderID string) (*provider.OrderState, error) {
	return f.state, nil
}

func newTestService(repo *stubRepo, api ProviderAPI) *Service {
	svc := NewService(repo, nil, zap.NewNop(), Options{
		MinDepositCents: 500,
		CheckoutBaseURL: "https://pay.example.com/checkout",
	})
	if api != nil {
		svc.newProviderClient = func(apiURL, apiKey string) ProviderAPI { return api }
	}
	return svc
}

func activeService() *model.Service {
	return &model.Service{
		ID:         10,
		ProviderID: 3,
		RemoteID:   "77",
		RateCents:  100,
		MinQty:     100,
		MaxQty:     100000,
		Status:     model.ServiceStatusActive,
	}
}

func TestCreateOrder_Forwarded(t *testing.T) {
	repo := &stubRepo{
		user:    &model.User{ID: 1, BalanceCents: 1000},
		service: activeService(),
		prov:    &model.Provider{ID: 3, APIURL: "https://prov.example.com/api"},
	}
	api := &fakeProviderAPI{addOrderID: "555"}
	svc := newTestService(repo, api)

	order, err := svc.CreateOrder(context.Background(), 1, 10, "https://example.com/post/1", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != model.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", order.Status)
	}
	if order.ChargeCents != 500 {
		t.Fatalf("expected charge 500, got %d", order.ChargeCents)
	}
	if order.RemoteOrderID == nil || *order.RemoteOrderID != "555" {
		t.Fatalf("expected remote order id 555, got %v", order.RemoteOrderID)
	}
}

func TestCreateOrder_InsufficientFunds(t *testing.T) {
	repo := &stubRepo{
		user:           &model.User{ID: 1, BalanceCents: 100},
		service:        activeService(),
		createOrderErr: repository.ErrInsufficientFunds,
	}
	api := &fakeProviderAPI{addOrderID: "555"}
	svc := newTestService(repo, api)

	_, err := svc.CreateOrder(context.Background(), 1, 10, "https://example.com/post/1", 5000)
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if api.addCalls != 0 {
		t.Fatalf("provider must not be called when debit fails")
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name     string
		service  *model.Service
		link     string
		quantity int
		wantErr  error
	}{
		{"zero quantity", activeService(), "https://example.com", 0, ErrInvalidQuantity},
		{"below minimum", activeService(), "https://example.com", 50, ErrInvalidQuantity},
		{"above maximum", activeService(), "https://example.com", 200000, ErrInvalidQuantity},
		{"bad link", activeService(), "ftp://example.com", 5000, ErrInvalidLink},
		{
			"inactive service",
			&model.Service{ID: 10, MinQty: 100, MaxQty: 100000, Status: model.ServiceStatusInactive},
			"https://example.com", 5000, ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{
				user:    &model.User{ID: 1, BalanceCents: 100000},
				service: tt.service,
			}
			svc := newTestService(repo, &fakeProviderAPI{})

			_, err := svc.CreateOrder(context.Background(), 1, 10, tt.link, tt.quantity)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateOrder_ProviderFailureKeepsDebit(t *testing.T) {
	repo := &stubRepo{
		user:    &model.User{ID: 1, BalanceCents: 1000},
		service: activeService(),
		prov:    &model.Provider{ID: 3, APIURL: "https://prov.example.com/api"},
	}
	api := &fakeProviderAPI{addOrderErr: provider.ErrUnreachable}
	svc := newTestService(repo, api)

	order, err := svc.CreateOrder(context.Background(), 1, 10, "https://example.com/post/1", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != model.OrderStatusFailed {
		t.Fatalf("expected failed, got %s", order.Status)
	}
}

func TestCancelOrder_Foreign(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 1, UserID: 2, Status: model.OrderStatusPending},
	}
	svc := newTestService(repo, nil)

	_, err := svc.CancelOrder(context.Background(), 1, false, 1)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	order, err := svc.CancelOrder(context.Background(), 1, true, 1)
	if err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
}

func TestCreateCheckout(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	url, p, err := svc.CreateCheckout(context.Background(), 7, 1000, model.PaymentMethodStripe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != model.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", p.Status)
	}
	if !strings.Contains(url, "session=cs_stripe_") {
		t.Fatalf("checkout url missing session: %s", url)
	}
}

func TestCreateCheckout_Rejections(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	if _, _, err := svc.CreateCheckout(context.Background(), 7, 100, model.PaymentMethodStripe); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := svc.CreateCheckout(context.Background(), 7, 1000, model.PaymentMethodManual); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("manual method must be rejected for checkout, got %v", err)
	}
	if _, _, err := svc.CreateCheckout(context.Background(), 7, 1000, "bitcoin"); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestCreateCheckout_SettingOverridesMinimum(t *testing.T) {
	repo := &stubRepo{settings: map[string]string{"min_deposit_cents": "2000"}}
	svc := newTestService(repo, nil)

	if _, _, err := svc.CreateCheckout(context.Background(), 7, 1000, model.PaymentMethodStripe); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount with raised minimum, got %v", err)
	}
}

func TestConfirmCheckout_DuplicateIsNoop(t *testing.T) {
	repo := &stubRepo{completeCredited: false, completePayment: &model.Payment{ID: 1}}
	svc := newTestService(repo, nil)

	if err := svc.ConfirmCheckout(context.Background(), "cs_stripe_abc"); err != nil {
		t.Fatalf("duplicate confirmation must be a no-op, got %v", err)
	}
}

func TestConfirmCheckout_UnknownSession(t *testing.T) {
	repo := &stubRepo{completeErr: repository.ErrPaymentNotFound}
	svc := newTestService(repo, nil)

	err := svc.ConfirmCheckout(context.Background(), "cs_stripe_missing")
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestSyncProvider_Counts(t *testing.T) {
	repo := &stubRepo{
		prov:        &model.Provider{ID: 3, MarkupPct: 20},
		insertedSeq: []bool{true, true, false},
	}
	api := &fakeProviderAPI{
		remote: []provider.RemoteService{
			{Service: json.Number("1"), Name: "Followers", Rate: json.Number("0.90"), Min: 100, Max: 10000},
			{Service: json.Number("2"), Name: "Likes", Rate: json.Number("1.50"), Min: 10, Max: 5000},
			{Service: json.Number("3"), Name: "Views", Rate: json.Number("0.05"), Min: 500, Max: 100000},
		},
	}
	svc := newTestService(repo, api)

	res, err := svc.SyncProvider(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 2 || res.Updated != 1 || res.Total != 3 {
		t.Fatalf("unexpected sync result: %+v", res)
	}
}

func TestSyncProvider_SkipsBadRate(t *testing.T) {
	repo := &stubRepo{
		prov:        &model.Provider{ID: 3},
		insertedSeq: []bool{true},
	}
	api := &fakeProviderAPI{
		remote: []provider.RemoteService{
			{Service: json.Number("1"), Name: "Broken", Rate: json.Number("oops")},
			{Service: json.Number("2"), Name: "Likes", Rate: json.Number("1.50"), Min: 10, Max: 5000},
		},
	}
	svc := newTestService(repo, api)

	res, err := svc.SyncProvider(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 1 || res.Updated != 0 {
		t.Fatalf("bad-rate row must be skipped: %+v", res)
	}
}

func TestRemoteRateCents(t *testing.T) {
	tests := []struct {
		rate   string
		markup float64
		want   int64
	}{
		{"1.00", 0, 100},
		{"0.90", 20, 108},
		{"1.50", 10, 165},
		{"0.05", 0, 5},
	}

	for _, tt := range tests {
		got, err := remoteRateCents(tt.rate, tt.markup)
		if err != nil {
			t.Fatalf("remoteRateCents(%q, %v): %v", tt.rate, tt.markup, err)
		}
		if got != tt.want {
			t.Fatalf("remoteRateCents(%q, %v) = %d, want %d", tt.rate, tt.markup, got, tt.want)
		}
	}
}

func TestAdminCreatePayment_Validation(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	_, err := svc.AdminCreatePayment(context.Background(), 1, &model.Payment{
		Method: "cash", Status: model.PaymentStatusCompleted,
	})
	if !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}

	_, err = svc.AdminCreatePayment(context.Background(), 1, &model.Payment{
		Method: model.PaymentMethodManual, Status: "refunded",
	})
	if !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCreateAPIKey_ReturnsPlaintextOnce(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	key, plain, err := svc.CreateAPIKey(context.Background(), 1, "ci", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(plain, "sk_") {
		t.Fatalf("plaintext key must start with sk_, got %q", plain)
	}
	if len(key.KeyHash) != 32 {
		t.Fatalf("expected sha256 hash, got %d bytes", len(key.KeyHash))
	}
	if strings.Contains(string(key.KeyHash), plain) {
		t.Fatalf("plaintext must not be stored")
	}
}
