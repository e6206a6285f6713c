package service

import (
	"context"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// CreateTicket создаёт обращение в поддержку с первым сообщением клиента.
func (s *Service) CreateTicket(ctx context.Context, userID int64, subject, category, priority, message string) (*model.Ticket, error) {
	if priority == "" {
		priority = "normal"
	}

	return s.repo.CreateTicket(ctx, &model.Ticket{
		UserID:   userID,
		Subject:  subject,
		Category: category,
		Priority: priority,
	}, message)
}

// GetTicket возвращает обращение с сообщениями.
// Чужое обращение доступно только администратору.
func (s *Service) GetTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64) (*model.Ticket, []model.TicketMessage, error) {
	t, messages, err := s.repo.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if t.UserID != userID && !isAdmin {
		return nil, nil, ErrForbidden
	}
	return t, messages, nil
}

// ListTickets возвращает обращения пользователя, для администратора — все.
func (s *Service) ListTickets(ctx context.Context, userID int64, isAdmin bool) ([]model.Ticket, error) {
	if isAdmin {
		return s.repo.ListTickets(ctx)
	}
	return s.repo.ListTicketsByUser(ctx, userID)
}

// ReplyTicket добавляет ответ в обращение. Ответ администратора в чужое
// обращение помечается как ответ сотрудника и переводит статус в answered;
// ответ клиента — в pending, в том числе переоткрывая закрытое обращение.
func (s *Service) ReplyTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64, body string) (*model.Ticket, error) {
	t, _, err := s.repo.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	staff := isAdmin && t.UserID != userID
	if t.UserID != userID && !isAdmin {
		return nil, ErrForbidden
	}

	return s.repo.AddTicketMessage(ctx, ticketID, userID, staff, body)
}

// CloseTicket закрывает обращение. Разрешено владельцу и администратору.
func (s *Service) CloseTicket(ctx context.Context, userID int64, isAdmin bool, ticketID int64) (*model.Ticket, error) {
	t, _, err := s.repo.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID && !isAdmin {
		return nil, ErrForbidden
	}

	return s.repo.CloseTicket(ctx, ticketID)
}
