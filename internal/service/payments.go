package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/payment"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

// settingMinDeposit — ключ настройки, переопределяющей минимальную сумму пополнения.
const settingMinDeposit = "min_deposit_cents"

// minDepositCents возвращает актуальный минимум пополнения: настройка
// панели, если задана, иначе значение из конфигурации.
func (s *Service) minDepositCents(ctx context.Context) int64 {
	v, err := s.repo.GetSetting(ctx, settingMinDeposit)
	if err != nil {
		return s.opts.MinDepositCents
	}

	min, err := strconv.ParseInt(v, 10, 64)
	if err != nil || min <= 0 {
		return s.opts.MinDepositCents
	}
	return min
}

// CreateCheckout создаёт платёжную сессию и pending-платёж под неё.
// Баланс на этом шаге не меняется.
func (s *Service) CreateCheckout(ctx context.Context, userID, amountCents int64, method model.PaymentMethod) (string, *model.Payment, error) {
	if !model.ValidPaymentMethod(method) || method == model.PaymentMethodManual {
		return "", nil, ErrInvalidMethod
	}
	if amountCents < s.minDepositCents(ctx) {
		return "", nil, ErrInvalidAmount
	}

	sessionID := payment.NewSessionID(method)

	p, err := s.repo.CreatePayment(ctx, &model.Payment{
		UserID:      userID,
		AmountCents: amountCents,
		Method:      method,
		ExternalID:  &sessionID,
	})
	if err != nil {
		return "", nil, err
	}

	return payment.CheckoutURL(s.opts.CheckoutBaseURL, sessionID, userID, amountCents), p, nil
}

// ConfirmCheckout обрабатывает подтверждённое платёжное событие.
// Подпись уже проверена на границе HTTP. Повторная доставка события —
// no-op: зачисление происходит ровно один раз на идентификатор сессии.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) error {
	credited, p, err := s.repo.CompletePaymentBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	if !credited {
		s.logger.Info("duplicate payment confirmation ignored",
			zap.String("session", sessionID),
		)
		return nil
	}

	s.logger.Info("payment completed",
		zap.String("session", sessionID),
		zap.Int64("userID", p.UserID),
		zap.Int64("amountCents", p.AmountCents),
	)
	return nil
}

// AdminCreatePayment добавляет платёж вручную. Платёж со статусом
// completed зачисляется на баланс атомарно с созданием записи.
func (s *Service) AdminCreatePayment(ctx context.Context, adminID int64, p *model.Payment) (*model.Payment, error) {
	if !model.ValidPaymentMethod(p.Method) {
		return nil, ErrInvalidMethod
	}
	if p.Status != model.PaymentStatusPending && p.Status != model.PaymentStatusCompleted &&
		p.Status != model.PaymentStatusFailed {
		return nil, repository.ErrInvalidTransition
	}

	return s.repo.CreateManualPayment(ctx, p, adminActor(adminID))
}

// GetPaymentsByUser возвращает платежи пользователя.
func (s *Service) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.repo.GetPaymentsByUser(ctx, userID)
}

// ListPayments возвращает все платежи панели. Только для администратора.
func (s *Service) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return s.repo.ListPayments(ctx)
}
