package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/validation"
)

// effectiveRateCents возвращает цену за 1000 единиц для конкретного
// пользователя: индивидуальная ставка, если задана, иначе ставка услуги
// с учётом персональной скидки.
func effectiveRateCents(u *model.User, svc *model.Service) int64 {
	if u.CustomRateCents != nil {
		return *u.CustomRateCents
	}
	if u.DiscountPct <= 0 {
		return svc.RateCents
	}

	rate := decimal.NewFromInt(svc.RateCents).
		Mul(decimal.NewFromFloat(1 - u.DiscountPct/100)).
		Round(0)
	return rate.IntPart()
}

// chargeCents вычисляет стоимость заказа: (quantity / 1000) × ставка,
// с округлением до копейки. Расчёт ведётся в decimal, чтобы ошибка
// плавающей точки не попала в журнал баланса.
func chargeCents(quantity int, rateCents int64) int64 {
	return decimal.NewFromInt(rateCents).
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(decimal.NewFromInt(1000)).
		Round(0).
		IntPart()
}

// CreateOrder проверяет запрос, списывает стоимость и передаёт заказ
// провайдеру. Списание и создание заказа атомарны; сбой передачи
// провайдеру после фиксации переводит заказ в failed без автоматического
// возврата — возврат выполняет оператор отдельным действием.
func (s *Service) CreateOrder(ctx context.Context, userID, serviceID int64, link string, quantity int) (*model.Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if quantity < svc.MinQty || quantity > svc.MaxQty {
		return nil, ErrInvalidQuantity
	}
	if svc.Status != model.ServiceStatusActive {
		return nil, ErrServiceUnavailable
	}
	if !validation.IsValidLink(link) {
		return nil, ErrInvalidLink
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	charge := chargeCents(quantity, effectiveRateCents(u, svc))

	order, err := s.repo.CreateOrderWithDebit(ctx, &model.Order{
		UserID:      userID,
		ServiceID:   serviceID,
		Link:        link,
		Quantity:    quantity,
		ChargeCents: charge,
	}, userActor(userID))
	if err != nil {
		return nil, err
	}

	prov, err := s.repo.GetProviderForService(ctx, serviceID)
	if err != nil {
		s.failOrder(ctx, order)
		return s.repo.GetOrderByID(ctx, order.ID)
	}

	client := s.newProviderClient(prov.APIURL, prov.APIKey)
	remoteID, err := client.AddOrder(ctx, svc.RemoteID, link, quantity)
	if err != nil {
		s.logger.Error("forward order to provider",
			zap.Int64("orderID", order.ID),
			zap.Int64("providerID", prov.ID),
			zap.Error(err),
		)
		s.failOrder(ctx, order)
		return s.repo.GetOrderByID(ctx, order.ID)
	}

	if err := s.repo.SetOrderForwarded(ctx, order.ID, remoteID); err != nil {
		return nil, err
	}
	return s.repo.GetOrderByID(ctx, order.ID)
}

func (s *Service) failOrder(ctx context.Context, order *model.Order) {
	if err := s.repo.MarkOrderFailed(ctx, order.ID); err != nil {
		s.logger.Error("mark order failed",
			zap.Int64("orderID", order.ID),
			zap.Error(err),
		)
	}
}

// GetOrder возвращает заказ. Чужой заказ доступен только администратору.
func (s *Service) GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !isAdmin {
		return nil, ErrForbidden
	}
	return order, nil
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// CancelOrder отменяет заказ с возвратом полной стоимости.
// Разрешено владельцу и администратору, только из pending и processing.
func (s *Service) CancelOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && !isAdmin {
		return nil, ErrForbidden
	}

	actor := userActor(userID)
	if isAdmin && order.UserID != userID {
		actor = adminActor(userID)
	}

	return s.repo.CancelOrderWithRefund(ctx, orderID, actor)
}

// RefundOrder возвращает средства по неуспешному заказу. Только для
// администратора: это ручное действие, завершающее политику «сбой
// провайдера не откатывает списание автоматически».
func (s *Service) RefundOrder(ctx context.Context, adminID, orderID int64) (*model.Order, error) {
	return s.repo.RefundFailedOrder(ctx, orderID, adminActor(adminID))
}

// ListActiveServices возвращает каталог доступных для заказа услуг.
func (s *Service) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	return s.repo.ListServices(ctx, true)
}
