// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с занятым email или username.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotFound возвращается, если запрошенная запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyRefunded возвращается при повторном возврате по одному заказу.
	ErrAlreadyRefunded = errors.New("order already refunded")
	// ErrPaymentNotFound возвращается, если платёж по внешнему идентификатору не найден.
	ErrPaymentNotFound = errors.New("payment not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при сбоях сериализации и дедлоках.
// Повтор безопасен: fn всегда выполняет транзакцию целиком, откатившаяся
// попытка не оставляет частичных изменений.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		return err
	})
}

// inTx выполняет fn внутри транзакции с повтором при конфликте сериализации.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// applyBalanceDelta — единственный путь изменения баланса пользователя.
// Блокирует строку пользователя, проверяет неотрицательность результата,
// обновляет баланс и добавляет неизменяемую запись в журнал activity_logs.
// Вызывается только внутри транзакции вызывающей операции, поэтому
// списание и связанная с ним запись (заказ, платёж) фиксируются атомарно.
func applyBalanceDelta(ctx context.Context, tx pgx.Tx, userID, deltaCents int64, kind model.LedgerKind, actor, reference, memo string) (int64, error) {
	var balance, spent int64
	err := tx.QueryRow(ctx,
		`SELECT balance_cents, spent_cents FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance, &spent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("lock user: %w", err)
	}

	newBalance := balance + deltaCents
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	newSpent := spent
	switch kind {
	case model.LedgerKindOrderDebit:
		newSpent += -deltaCents
	case model.LedgerKindOrderRefund:
		newSpent -= deltaCents
		if newSpent < 0 {
			newSpent = 0
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance_cents = $2, spent_cents = $3, updated_at = now() WHERE id = $1`,
		userID, newBalance, newSpent,
	)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_logs (user_id, actor, kind, delta_cents, balance_before, balance_after, reference, memo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, actor, string(kind), deltaCents, balance, newBalance, reference, memo,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}

	return newBalance, nil
}
