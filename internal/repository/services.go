package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

const serviceColumns = `id, provider_id, remote_id, name, category, rate_cents, min_qty, max_qty,
	status, created_at, updated_at`

func scanService(row pgx.Row) (*model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.ProviderID, &s.RemoteID, &s.Name, &s.Category,
		&s.RateCents, &s.MinQty, &s.MaxQty, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return &s, nil
}

// UpsertServiceFromRemote синхронизирует услугу каталога с данными
// провайдера. Новая услуга создаётся в статусе inactive: до явной
// активации администратором её нельзя заказать. У существующей услуги
// обновляются данные, но статус не трогается.
func (r *PostgresRepository) UpsertServiceFromRemote(ctx context.Context, s *model.Service) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx,
		`INSERT INTO services (provider_id, remote_id, name, category, rate_cents, min_qty, max_qty, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (provider_id, remote_id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			rate_cents = EXCLUDED.rate_cents,
			min_qty = EXCLUDED.min_qty,
			max_qty = EXCLUDED.max_qty,
			updated_at = now()
		 RETURNING (xmax = 0)`,
		s.ProviderID, s.RemoteID, s.Name, s.Category, s.RateCents, s.MinQty, s.MaxQty,
		string(model.ServiceStatusInactive),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert service: %w", err)
	}
	return inserted, nil
}

// GetServiceByID возвращает услугу по идентификатору.
func (r *PostgresRepository) GetServiceByID(ctx context.Context, id int64) (*model.Service, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	return scanService(row)
}

// ListServices возвращает каталог услуг. При onlyActive возвращаются
// только доступные для заказа позиции.
func (r *PostgresRepository) ListServices(ctx context.Context, onlyActive bool) ([]model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY category, id`
	if onlyActive {
		query = `SELECT ` + serviceColumns + ` FROM services WHERE status = 'active' ORDER BY category, id`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return services, nil
}

// ServiceUpdate описывает изменяемые администратором поля услуги.
// Nil-поля остаются без изменений.
type ServiceUpdate struct {
	Name      *string
	Category  *string
	RateCents *int64
	MinQty    *int
	MaxQty    *int
	Status    *model.ServiceStatus
}

// UpdateService применяет административные правки к услуге каталога.
func (r *PostgresRepository) UpdateService(ctx context.Context, id int64, upd ServiceUpdate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE services SET
			name = COALESCE($2, name),
			category = COALESCE($3, category),
			rate_cents = COALESCE($4, rate_cents),
			min_qty = COALESCE($5, min_qty),
			max_qty = COALESCE($6, max_qty),
			status = COALESCE($7, status),
			updated_at = now()
		 WHERE id = $1`,
		id, upd.Name, upd.Category, upd.RateCents, upd.MinQty, upd.MaxQty, upd.Status,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
