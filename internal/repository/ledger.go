package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// AdjustBalance изменяет баланс пользователя на deltaCents в отдельной
// транзакции. Используется только административными корректировками;
// заказные и платёжные операции меняют баланс внутри собственных
// транзакций через applyBalanceDelta.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID, deltaCents int64, actor, memo string) (int64, error) {
	var newBalance int64
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		newBalance, err = applyBalanceDelta(ctx, tx, userID, deltaCents, model.LedgerKindAdminAdjust, actor, "", memo)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetLedgerEntries возвращает записи журнала баланса пользователя, новые первыми.
func (r *PostgresRepository) GetLedgerEntries(ctx context.Context, userID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, actor, kind, delta_cents, balance_before, balance_after, reference, memo, created_at
		 FROM activity_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Actor, &e.Kind, &e.DeltaCents,
			&e.BalanceBefore, &e.BalanceAfter, &e.Reference, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}
