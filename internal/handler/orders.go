package handler

import (
	"net/http"
	"time"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

type serviceResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	RateCents int64  `json:"rate_cents"`
	MinQty    int    `json:"min"`
	MaxQty    int    `json:"max"`
	Status    string `json:"status"`
}

func toServiceResponse(s *model.Service) serviceResponse {
	return serviceResponse{
		ID:        s.ID,
		Name:      s.Name,
		Category:  s.Category,
		RateCents: s.RateCents,
		MinQty:    s.MinQty,
		MaxQty:    s.MaxQty,
		Status:    string(s.Status),
	}
}

// GetServices возвращает каталог активных услуг.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListActiveServices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]serviceResponse, 0, len(services))
	for i := range services {
		resp = append(resp, toServiceResponse(&services[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type createOrderRequest struct {
	ServiceID int64  `json:"service_id" validate:"required,gt=0"`
	Link      string `json:"link" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type orderResponse struct {
	ID          int64   `json:"id"`
	ServiceID   int64   `json:"service_id"`
	Link        string  `json:"link"`
	Quantity    int     `json:"quantity"`
	ChargeCents int64   `json:"charge_cents"`
	Status      string  `json:"status"`
	StartCount  *int    `json:"start_count,omitempty"`
	Remains     *int    `json:"remains,omitempty"`
	RefundedAt  *string `json:"refunded_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		ServiceID:   o.ServiceID,
		Link:        o.Link,
		Quantity:    o.Quantity,
		ChargeCents: o.ChargeCents,
		Status:      string(o.Status),
		StartCount:  o.StartCount,
		Remains:     o.Remains,
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
	if o.RefundedAt != nil {
		s := o.RefundedAt.Format(time.RFC3339)
		resp.RefundedAt = &s
	}
	return resp
}

// CreateOrder создаёт заказ от имени текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.ServiceID, req.Link, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders возвращает заказы текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), userID, isAdmin, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder отменяет заказ с возвратом средств.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := h.claims(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), userID, isAdmin, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}
