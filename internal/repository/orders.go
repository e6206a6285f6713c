package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// service_id может обнулиться при удалении услуги, история заказа при этом сохраняется
const orderColumns = `id, user_id, COALESCE(service_id, 0), link, quantity, charge_cents, remote_order_id,
	status, start_count, remains, refunded_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.ServiceID, &o.Link, &o.Quantity, &o.ChargeCents,
		&o.RemoteOrderID, &o.Status, &o.StartCount, &o.Remains, &o.RefundedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// CreateOrderWithDebit создаёт заказ и списывает его стоимость одной
// транзакцией: либо фиксируются и списание, и заказ, либо ничего.
// Недостаток средств откатывает транзакцию целиком.
func (r *PostgresRepository) CreateOrderWithDebit(ctx context.Context, o *model.Order, actor string) (*model.Order, error) {
	var created *model.Order
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, service_id, link, quantity, charge_cents, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+orderColumns,
			o.UserID, o.ServiceID, o.Link, o.Quantity, o.ChargeCents, string(model.OrderStatusPending),
		)

		var err error
		created, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		_, err = applyBalanceDelta(ctx, tx, o.UserID, -o.ChargeCents, model.LedgerKindOrderDebit,
			actor, "order:"+strconv.FormatInt(created.ID, 10), "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// transitionOrder блокирует заказ, проверяет допустимость перехода и
// возвращает текущее состояние для дальнейших изменений в той же транзакции.
func transitionOrder(ctx context.Context, tx pgx.Tx, orderID int64, next model.OrderStatus) (*model.Order, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if !o.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	return o, nil
}

// SetOrderForwarded помечает заказ переданным провайдеру: сохраняет
// удалённый идентификатор и переводит pending → processing.
func (r *PostgresRepository) SetOrderForwarded(ctx context.Context, orderID int64, remoteOrderID string) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := transitionOrder(ctx, tx, orderID, model.OrderStatusProcessing); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE orders SET remote_order_id = $2, status = $3, updated_at = now() WHERE id = $1`,
			orderID, remoteOrderID, string(model.OrderStatusProcessing),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
}

// MarkOrderFailed переводит заказ в failed. Списание при этом сохраняется:
// возврат — отдельное административное действие.
func (r *PostgresRepository) MarkOrderFailed(ctx context.Context, orderID int64) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := transitionOrder(ctx, tx, orderID, model.OrderStatusFailed); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
			orderID, string(model.OrderStatusFailed),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
}

// CancelOrderWithRefund отменяет заказ и возвращает полную стоимость
// отдельной записью журнала в той же транзакции.
func (r *PostgresRepository) CancelOrderWithRefund(ctx context.Context, orderID int64, actor string) (*model.Order, error) {
	var cancelled *model.Order
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		o, err := transitionOrder(ctx, tx, orderID, model.OrderStatusCancelled)
		if err != nil {
			return err
		}

		_, err = applyBalanceDelta(ctx, tx, o.UserID, o.ChargeCents, model.LedgerKindOrderRefund,
			actor, "order:"+strconv.FormatInt(orderID, 10), "order cancelled")
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, refunded_at = now(), updated_at = now()
			 WHERE id = $1
			 RETURNING `+orderColumns,
			orderID, string(model.OrderStatusCancelled),
		)
		cancelled, err = scanOrder(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// RefundFailedOrder возвращает средства по неуспешному заказу.
// Допускается только из статуса failed и только один раз.
func (r *PostgresRepository) RefundFailedOrder(ctx context.Context, orderID int64, actor string) (*model.Order, error) {
	var refunded *model.Order
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
		o, err := scanOrder(row)
		if err != nil {
			return err
		}

		if o.Status != model.OrderStatusFailed {
			return fmt.Errorf("%w: refund requires failed order, got %s", ErrInvalidTransition, o.Status)
		}
		if o.RefundedAt != nil {
			return ErrAlreadyRefunded
		}

		_, err = applyBalanceDelta(ctx, tx, o.UserID, o.ChargeCents, model.LedgerKindOrderRefund,
			actor, "order:"+strconv.FormatInt(orderID, 10), "failed order refunded")
		if err != nil {
			return err
		}

		row = tx.QueryRow(ctx,
			`UPDATE orders SET refunded_at = now(), updated_at = now()
			 WHERE id = $1
			 RETURNING `+orderColumns,
			orderID,
		)
		refunded, err = scanOrder(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// GetOrdersForStatusSync возвращает заказы, переданные провайдеру и ещё
// не достигшие терминального статуса.
func (r *PostgresRepository) GetOrdersForStatusSync(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND remote_order_id IS NOT NULL
		 ORDER BY updated_at
		 LIMIT $2`,
		string(model.OrderStatusProcessing), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for sync: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// UpdateOrderProgress обновляет статус и счётчики заказа по данным
// провайдера. Переход проверяется машиной состояний; обновление
// счётчиков без смены статуса допустимо.
func (r *PostgresRepository) UpdateOrderProgress(ctx context.Context, orderID int64, status model.OrderStatus, startCount, remains *int) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
		o, err := scanOrder(row)
		if err != nil {
			return err
		}

		if o.Status != status && !o.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2,
				start_count = COALESCE($3, start_count),
				remains = COALESCE($4, remains),
				updated_at = now()
			 WHERE id = $1`,
			orderID, string(status), startCount, remains,
		)
		if err != nil {
			return fmt.Errorf("update order progress: %w", err)
		}
		return nil
	})
}
