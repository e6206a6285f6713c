package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

const providerColumns = `id, name, api_url, api_key, markup_pct, status, created_at`

func scanProvider(row pgx.Row) (*model.Provider, error) {
	var p model.Provider
	err := row.Scan(&p.ID, &p.Name, &p.APIURL, &p.APIKey, &p.MarkupPct, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan provider: %w", err)
	}
	return &p, nil
}

// CreateProvider сохраняет нового провайдера.
func (r *PostgresRepository) CreateProvider(ctx context.Context, p *model.Provider) (*model.Provider, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO providers (name, api_url, api_key, markup_pct, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+providerColumns,
		p.Name, p.APIURL, p.APIKey, p.MarkupPct, p.Status,
	)
	created, err := scanProvider(row)
	if err != nil {
		return nil, fmt.Errorf("insert provider: %w", err)
	}
	return created, nil
}

// UpdateProvider обновляет данные провайдера.
func (r *PostgresRepository) UpdateProvider(ctx context.Context, p *model.Provider) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE providers SET name = $2, api_url = $3, api_key = $4, markup_pct = $5, status = $6
		 WHERE id = $1`,
		p.ID, p.Name, p.APIURL, p.APIKey, p.MarkupPct, p.Status,
	)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProvider удаляет провайдера. Его услуги удаляются каскадно, а
// заказы сохраняют историю (service_id обнуляется на уровне схемы),
// поэтому заказать услугу несуществующего провайдера невозможно.
func (r *PostgresRepository) DeleteProvider(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProviderByID возвращает провайдера по идентификатору.
func (r *PostgresRepository) GetProviderByID(ctx context.Context, id int64) (*model.Provider, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	return scanProvider(row)
}

// GetProviderForService возвращает провайдера, которому принадлежит услуга.
func (r *PostgresRepository) GetProviderForService(ctx context.Context, serviceID int64) (*model.Provider, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT p.id, p.name, p.api_url, p.api_key, p.markup_pct, p.status, p.created_at
		 FROM providers p
		 JOIN services s ON s.provider_id = p.id
		 WHERE s.id = $1`,
		serviceID,
	)
	return scanProvider(row)
}

// ListProviders возвращает всех провайдеров.
func (r *PostgresRepository) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select providers: %w", err)
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return providers, nil
}
