package handler

import (
	"net/http"
	"time"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

type createTicketRequest struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Category string `json:"category" validate:"required"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
	Message  string `json:"message" validate:"required"`
}

type ticketResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Subject   string `json:"subject"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ticketMessageResponse struct {
	ID        int64  `json:"id"`
	AuthorID  int64  `json:"author_id"`
	Staff     bool   `json:"staff"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func toTicketResponse(t *model.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Subject:   t.Subject,
		Category:  t.Category,
		Priority:  t.Priority,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateTicket создаёт обращение в поддержку.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req createTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	t, err := h.service.CreateTicket(r.Context(), userID, req.Subject, req.Category, req.Priority, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toTicketResponse(t))
}

// GetTickets возвращает обращения: свои для пользователя, все для администратора.
func (h *Handler) GetTickets(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}

	tickets, err := h.service.ListTickets(r.Context(), userID, isAdmin)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]ticketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, toTicketResponse(&tickets[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type ticketDetailResponse struct {
	ticketResponse
	Messages []ticketMessageResponse `json:"messages"`
}

// GetTicket возвращает обращение вместе с перепиской.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	t, messages, err := h.service.GetTicket(r.Context(), userID, isAdmin, ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := ticketDetailResponse{
		ticketResponse: toTicketResponse(t),
		Messages:       make([]ticketMessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, ticketMessageResponse{
			ID:        m.ID,
			AuthorID:  m.AuthorID,
			Staff:     m.Staff,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type replyTicketRequest struct {
	Message string `json:"message" validate:"required"`
}

// ReplyTicket добавляет сообщение в обращение.
func (h *Handler) ReplyTicket(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	var req replyTicketRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	t, err := h.service.ReplyTicket(r.Context(), userID, isAdmin, ticketID, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTicketResponse(t))
}

// CloseTicket закрывает обращение.
func (h *Handler) CloseTicket(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	t, err := h.service.CloseTicket(r.Context(), userID, isAdmin, ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTicketResponse(t))
}
