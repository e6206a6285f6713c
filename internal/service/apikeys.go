package service

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/google/uuid"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// CreateAPIKey создаёт именованный ключ доступа. Открытое значение ключа
// возвращается только один раз, в хранилище попадает лишь его хэш.
func (s *Service) CreateAPIKey(ctx context.Context, userID int64, name string, permissions []string) (*model.APIKey, string, error) {
	plain := "sk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	hash := sha256.Sum256([]byte(plain))

	if permissions == nil {
		permissions = []string{}
	}

	key, err := s.repo.CreateAPIKey(ctx, &model.APIKey{
		UserID:      userID,
		Name:        name,
		KeyHash:     hash[:],
		Permissions: permissions,
	})
	if err != nil {
		return nil, "", err
	}

	return key, plain, nil
}

// ListAPIKeys возвращает ключи пользователя, включая отключённые.
func (s *Service) ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	return s.repo.ListAPIKeysByUser(ctx, userID)
}

// RevokeAPIKey мягко удаляет ключ пользователя: запись остаётся в истории.
func (s *Service) RevokeAPIKey(ctx context.Context, userID, keyID int64) error {
	return s.repo.DeactivateAPIKey(ctx, userID, keyID)
}
