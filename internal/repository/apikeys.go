package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

const apiKeyColumns = `id, user_id, name, key_hash, permissions, status, request_count, last_used_at, created_at`

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.Permissions,
		&k.Status, &k.RequestCount, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}

// CreateAPIKey сохраняет новый ключ доступа пользователя.
func (r *PostgresRepository) CreateAPIKey(ctx context.Context, k *model.APIKey) (*model.APIKey, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, name, key_hash, permissions)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+apiKeyColumns,
		k.UserID, k.Name, k.KeyHash, k.Permissions,
	)
	created, err := scanAPIKey(row)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}
	return created, nil
}

// ListAPIKeysByUser возвращает ключи пользователя, включая отключённые.
func (r *PostgresRepository) ListAPIKeysByUser(ctx context.Context, userID int64) ([]model.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return keys, nil
}

// DeactivateAPIKey мягко удаляет ключ: запись остаётся, статус — inactive.
// Ключ чужого пользователя недоступен.
func (r *PostgresRepository) DeactivateAPIKey(ctx context.Context, userID, keyID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET status = $3 WHERE id = $1 AND user_id = $2`,
		keyID, userID, model.APIKeyStatusInactive,
	)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
