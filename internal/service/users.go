package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ndemidov/smmpanel-system/internal/auth"
	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

// Register регистрирует пользователя и возвращает его вместе с токеном доступа.
func (s *Service) Register(ctx context.Context, email, username, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	u, err := s.repo.CreateUser(ctx, email, username, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login проверяет email и пароль и возвращает пользователя с токеном доступа.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	if u.Status == model.UserStatusBanned {
		return nil, "", ErrForbidden
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", err
	}

	if err := s.repo.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("touch last login", zap.Error(err))
	}

	return u, token, nil
}

// GetBalance возвращает баланс и суммарные траты пользователя в рублях.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{
		Current: float64(u.BalanceCents) / 100,
		Spent:   float64(u.SpentCents) / 100,
	}, nil
}

// GetLedgerHistory возвращает записи журнала баланса пользователя.
func (s *Service) GetLedgerHistory(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	return s.repo.GetLedgerEntries(ctx, userID, 100)
}

// ListUsers возвращает всех пользователей панели. Только для администратора.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateUser применяет административные правки к пользователю.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd repository.UserAdminUpdate) error {
	return s.repo.UpdateUserAdmin(ctx, id, upd)
}

// DeleteUser удаляет пользователя вместе с его заказами, платежами и обращениями.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

// AdjustUserBalance корректирует баланс пользователя вручную.
// Корректировка идёт через журнал баланса, как и все прочие операции.
func (s *Service) AdjustUserBalance(ctx context.Context, adminID, userID, deltaCents int64, memo string) (*model.Balance, error) {
	newBalance, err := s.repo.AdjustBalance(ctx, userID, deltaCents, adminActor(adminID), memo)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.Balance{
		Current: float64(newBalance) / 100,
		Spent:   float64(u.SpentCents) / 100,
	}, nil
}
