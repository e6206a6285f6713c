package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// StartStatusUpdates запускает фоновый опрос провайдеров: заказы в
// processing периодически сверяются с удалённым статусом.
func (s *Service) StartStatusUpdates(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.opts.StatusPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processStatusBatch(ctx)
			}
		}
	}()
}

// mapRemoteStatus переводит строковый статус провайдера во внутренний.
// Удалённая отмена и частичное выполнение трактуются как failed: возврат
// средств — отдельное решение оператора, автоматических возвратов нет.
func mapRemoteStatus(remote string) (model.OrderStatus, bool) {
	switch remote {
	case "Pending", "In progress", "Processing":
		return model.OrderStatusProcessing, true
	case "Completed":
		return model.OrderStatusCompleted, true
	case "Partial", "Canceled", "Cancelled", "Error":
		return model.OrderStatusFailed, true
	default:
		return "", false
	}
}

func parseCount(n string) *int {
	v, err := strconv.Atoi(n)
	if err != nil {
		return nil
	}
	return &v
}

func (s *Service) processStatusBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersForStatusSync(ctx, 100)
	if err != nil {
		s.logger.Error("select orders for status sync", zap.Error(err))
		return
	}

	for _, o := range orders {
		if o.RemoteOrderID == nil || o.ServiceID == 0 {
			continue
		}

		prov, err := s.repo.GetProviderForService(ctx, o.ServiceID)
		if err != nil {
			continue
		}

		client := s.newProviderClient(prov.APIURL, prov.APIKey)
		state, err := client.OrderStatus(ctx, *o.RemoteOrderID)
		if err != nil {
			s.logger.Warn("order status sync",
				zap.Int64("orderID", o.ID),
				zap.Error(err),
			)
			continue
		}

		status, ok := mapRemoteStatus(state.Status)
		if !ok {
			continue
		}

		err = s.repo.UpdateOrderProgress(ctx, o.ID, status,
			parseCount(state.StartCount.String()), parseCount(state.Remains.String()))
		if err != nil {
			s.logger.Error("update order progress",
				zap.Int64("orderID", o.ID),
				zap.Error(err),
			)
		}
	}
}
