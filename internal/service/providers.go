package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/provider"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

// SyncResult содержит итоги синхронизации каталога с провайдером.
type SyncResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// TestProvider проверяет доступность провайдера запросом баланса.
// Текст вышестоящей ошибки сохраняется для оператора.
func (s *Service) TestProvider(ctx context.Context, providerID int64) (*provider.BalanceInfo, error) {
	p, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	client := s.newProviderClient(p.APIURL, p.APIKey)
	return client.Balance(ctx)
}

// remoteRateCents переводит ставку провайдера в копейки с учётом наценки.
func remoteRateCents(rate string, markupPct float64) (int64, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", rate, err)
	}

	cents := d.Mul(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(1 + markupPct/100)).
		Round(0)
	return cents.IntPart(), nil
}

// SyncProvider загружает каталог провайдера и сверяет его с локальным.
// Существующие услуги обновляются на месте, новые создаются в статусе
// inactive — до явной активации администратором они не продаются.
func (s *Service) SyncProvider(ctx context.Context, providerID int64) (*SyncResult, error) {
	p, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	client := s.newProviderClient(p.APIURL, p.APIKey)
	remote, err := client.Services(ctx)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Total: len(remote)}
	for _, rs := range remote {
		rateCents, err := remoteRateCents(rs.Rate.String(), p.MarkupPct)
		if err != nil {
			s.logger.Warn("skip remote service with bad rate",
				zap.Int64("providerID", providerID),
				zap.String("remoteID", rs.Service.String()),
				zap.Error(err),
			)
			continue
		}

		inserted, err := s.repo.UpsertServiceFromRemote(ctx, &model.Service{
			ProviderID: providerID,
			RemoteID:   rs.Service.String(),
			Name:       rs.Name,
			Category:   rs.Category,
			RateCents:  rateCents,
			MinQty:     rs.Min,
			MaxQty:     rs.Max,
		})
		if err != nil {
			return nil, err
		}

		if inserted {
			res.Added++
		} else {
			res.Updated++
		}
	}

	s.logger.Info("provider catalog synced",
		zap.Int64("providerID", providerID),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("total", res.Total),
	)
	return res, nil
}

// CreateProvider сохраняет нового провайдера.
func (s *Service) CreateProvider(ctx context.Context, p *model.Provider) (*model.Provider, error) {
	if p.Status == "" {
		p.Status = model.ProviderStatusActive
	}
	return s.repo.CreateProvider(ctx, p)
}

// UpdateProvider обновляет данные провайдера.
func (s *Service) UpdateProvider(ctx context.Context, p *model.Provider) error {
	return s.repo.UpdateProvider(ctx, p)
}

// DeleteProvider удаляет провайдера вместе с его услугами.
func (s *Service) DeleteProvider(ctx context.Context, id int64) error {
	return s.repo.DeleteProvider(ctx, id)
}

// ListProviders возвращает всех провайдеров.
func (s *Service) ListProviders(ctx context.Context) ([]model.Provider, error) {
	return s.repo.ListProviders(ctx)
}

// ListAllServices возвращает каталог целиком, включая неактивные услуги.
func (s *Service) ListAllServices(ctx context.Context) ([]model.Service, error) {
	return s.repo.ListServices(ctx, false)
}

// UpdateService применяет административные правки к услуге.
func (s *Service) UpdateService(ctx context.Context, id int64, upd repository.ServiceUpdate) error {
	return s.repo.UpdateService(ctx, id, upd)
}

// GetSettings возвращает все настройки панели.
func (s *Service) GetSettings(ctx context.Context) (map[string]string, error) {
	return s.repo.ListSettings(ctx)
}

// SetSetting создаёт или обновляет настройку панели.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	return s.repo.SetSetting(ctx, key, value)
}
