package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

const ticketColumns = `id, user_id, subject, category, priority, status, created_at, updated_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &t, nil
}

// CreateTicket создаёт обращение вместе с первым сообщением клиента.
func (r *PostgresRepository) CreateTicket(ctx context.Context, t *model.Ticket, message string) (*model.Ticket, error) {
	var created *model.Ticket
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO tickets (user_id, subject, category, priority, status)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+ticketColumns,
			t.UserID, t.Subject, t.Category, t.Priority, string(model.TicketStatusOpen),
		)

		var err error
		created, err = scanTicket(row)
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO ticket_messages (ticket_id, author_id, staff, body) VALUES ($1, $2, FALSE, $3)`,
			created.ID, t.UserID, message,
		)
		if err != nil {
			return fmt.Errorf("insert ticket message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetTicketByID возвращает обращение и все его сообщения по порядку.
func (r *PostgresRepository) GetTicketByID(ctx context.Context, id int64) (*model.Ticket, []model.TicketMessage, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, ticket_id, author_id, staff, body, created_at
		 FROM ticket_messages
		 WHERE ticket_id = $1
		 ORDER BY created_at, id`,
		id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("select ticket messages: %w", err)
	}
	defer rows.Close()

	var messages []model.TicketMessage
	for rows.Next() {
		var m model.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.Staff, &m.Body, &m.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan ticket message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}
	return t, messages, nil
}

// ListTicketsByUser возвращает обращения пользователя, новые первыми.
func (r *PostgresRepository) ListTicketsByUser(ctx context.Context, userID int64) ([]model.Ticket, error) {
	return r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
}

// ListTickets возвращает все обращения, недавно обновлённые первыми.
func (r *PostgresRepository) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	return r.queryTickets(ctx,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY updated_at DESC`)
}

func (r *PostgresRepository) queryTickets(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tickets, nil
}

// AddTicketMessage добавляет сообщение и двигает статус обращения:
// ответ клиента — pending (в том числе переоткрытие закрытого),
// ответ сотрудника — answered.
func (r *PostgresRepository) AddTicketMessage(ctx context.Context, ticketID, authorID int64, staff bool, body string) (*model.Ticket, error) {
	next := model.TicketStatusPending
	if staff {
		next = model.TicketStatusAnswered
	}

	var updated *model.Ticket
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID)
		t, err := scanTicket(row)
		if err != nil {
			return err
		}

		if !t.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO ticket_messages (ticket_id, author_id, staff, body) VALUES ($1, $2, $3, $4)`,
			ticketID, authorID, staff, body,
		)
		if err != nil {
			return fmt.Errorf("insert ticket message: %w", err)
		}

		row = tx.QueryRow(ctx,
			`UPDATE tickets SET status = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+ticketColumns,
			ticketID, string(next),
		)
		updated, err = scanTicket(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CloseTicket закрывает обращение.
func (r *PostgresRepository) CloseTicket(ctx context.Context, ticketID int64) (*model.Ticket, error) {
	var closed *model.Ticket
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID)
		t, err := scanTicket(row)
		if err != nil {
			return err
		}

		if !t.Status.CanTransition(model.TicketStatusClosed) {
			return fmt.Errorf("%w: %s -> closed", ErrInvalidTransition, t.Status)
		}

		row = tx.QueryRow(ctx,
			`UPDATE tickets SET status = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+ticketColumns,
			ticketID, string(model.TicketStatusClosed),
		)
		closed, err = scanTicket(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
