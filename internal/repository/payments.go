package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

const paymentColumns = `id, user_id, amount_cents, method, status, external_id, memo, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.AmountCents, &p.Method, &p.Status,
		&p.ExternalID, &p.Memo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

// CreatePayment сохраняет платёж в статусе pending. Баланс не меняется:
// зачисление происходит только при подтверждении.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO payments (user_id, amount_cents, method, status, external_id, memo)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+paymentColumns,
		p.UserID, p.AmountCents, string(p.Method), string(model.PaymentStatusPending), p.ExternalID, p.Memo,
	)

	created, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

// CreateManualPayment сохраняет платёж, добавленный администратором.
// Платёж со статусом completed зачисляется на баланс в той же транзакции,
// что и вставка: подтверждения извне для ручных платежей не бывает.
func (r *PostgresRepository) CreateManualPayment(ctx context.Context, p *model.Payment, actor string) (*model.Payment, error) {
	var created *model.Payment
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO payments (user_id, amount_cents, method, status, external_id, memo)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+paymentColumns,
			p.UserID, p.AmountCents, string(p.Method), string(p.Status), p.ExternalID, p.Memo,
		)

		var err error
		created, err = scanPayment(row)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if created.Status != model.PaymentStatusCompleted {
			return nil
		}

		reference := "payment:" + strconv.FormatInt(created.ID, 10)
		if created.ExternalID != nil {
			reference = *created.ExternalID
		}

		_, err = applyBalanceDelta(ctx, tx, created.UserID, created.AmountCents,
			model.LedgerKindPaymentCredit, actor, reference, p.Memo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CompletePaymentBySession подтверждает платёж по внешнему идентификатору
// сессии. Уже подтверждённый платёж — no-op (защита от повторной доставки
// webhook-события); зачисление происходит ровно один раз.
func (r *PostgresRepository) CompletePaymentBySession(ctx context.Context, sessionID string) (bool, *model.Payment, error) {
	var credited bool
	var payment *model.Payment

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		credited = false

		row := tx.QueryRow(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE external_id = $1 FOR UPDATE`,
			sessionID,
		)
		p, err := scanPayment(row)
		if err != nil {
			return err
		}
		payment = p

		if p.Status == model.PaymentStatusCompleted {
			return nil
		}
		if !p.Status.CanTransition(model.PaymentStatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, model.PaymentStatusCompleted)
		}

		row = tx.QueryRow(ctx,
			`UPDATE payments SET status = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+paymentColumns,
			p.ID, string(model.PaymentStatusCompleted),
		)
		payment, err = scanPayment(row)
		if err != nil {
			return err
		}

		_, err = applyBalanceDelta(ctx, tx, p.UserID, p.AmountCents,
			model.LedgerKindPaymentCredit, "webhook", sessionID, "")
		if err != nil {
			return err
		}

		credited = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return credited, payment, nil
}

// GetPaymentsByUser возвращает платежи пользователя, новые первыми.
func (r *PostgresRepository) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// ListPayments возвращает все платежи, новые первыми.
func (r *PostgresRepository) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}

func (r *PostgresRepository) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return payments, nil
}
