package handler

import (
	"net/http"
	"time"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	Role         string  `json:"role"`
	Status       string  `json:"status"`
	BalanceCents int64   `json:"balance_cents"`
	SpentCents   int64   `json:"spent_cents"`
	DiscountPct  float64 `json:"discount_pct"`
	CreatedAt    string  `json:"created_at"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		Role:         string(u.Role),
		Status:       string(u.Status),
		BalanceCents: u.BalanceCents,
		SpentCents:   u.SpentCents,
		DiscountPct:  u.DiscountPct,
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	u, token, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(u)})
}

// Login выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(u)})
}
