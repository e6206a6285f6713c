package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndemidov/smmpanel-system/internal/model"
	"github.com/ndemidov/smmpanel-system/internal/repository"
)

// AdminGetUsers возвращает всех пользователей панели.
func (h *Handler) AdminGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type adminUpdateUserRequest struct {
	Status          *string  `json:"status" validate:"omitempty,oneof=active inactive banned"`
	Role            *string  `json:"role" validate:"omitempty,oneof=user admin"`
	DiscountPct     *float64 `json:"discount_pct" validate:"omitempty,gte=0,lte=100"`
	CustomRateCents *int64   `json:"custom_rate_cents" validate:"omitempty,gt=0"`
}

// AdminUpdateUser применяет административные правки к пользователю.
func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req adminUpdateUserRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	upd := repository.UserAdminUpdate{
		DiscountPct:     req.DiscountPct,
		CustomRateCents: req.CustomRateCents,
	}
	if req.Status != nil {
		status := model.UserStatus(*req.Status)
		upd.Status = &status
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		upd.Role = &role
	}

	if err := h.service.UpdateUser(r.Context(), userID, upd); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminDeleteUser удаляет пользователя вместе с его данными.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type adjustBalanceRequest struct {
	DeltaCents int64  `json:"delta_cents" validate:"required"`
	Memo       string `json:"memo" validate:"required,max=500"`
}

// AdminAdjustBalance корректирует баланс пользователя вручную.
func (h *Handler) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := h.claims(w, r)
	if !ok {
		return
	}
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req adjustBalanceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	balance, err := h.service.AdjustUserBalance(r.Context(), adminID, userID, req.DeltaCents, req.Memo)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// AdminRefundOrder возвращает средства по неуспешному заказу.
func (h *Handler) AdminRefundOrder(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := h.claims(w, r)
	if !ok {
		return
	}
	orderID, ok := h.pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.service.RefundOrder(r.Context(), adminID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// AdminGetPayments возвращает все платежи панели.
func (h *Handler) AdminGetPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type adminCreatePaymentRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Method      string `json:"method" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=pending completed failed"`
	ExternalID  string `json:"external_id"`
	Memo        string `json:"memo" validate:"max=500"`
}

// AdminCreatePayment добавляет платёж вручную. Платёж в статусе completed
// сразу зачисляется на баланс пользователя.
func (h *Handler) AdminCreatePayment(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req adminCreatePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p := &model.Payment{
		UserID:      req.UserID,
		AmountCents: req.AmountCents,
		Method:      model.PaymentMethod(req.Method),
		Status:      model.PaymentStatus(req.Status),
		Memo:        req.Memo,
	}
	if req.ExternalID != "" {
		p.ExternalID = &req.ExternalID
	}

	created, err := h.service.AdminCreatePayment(r.Context(), adminID, p)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPaymentResponse(created))
}

type providerRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	APIURL    string  `json:"api_url" validate:"required,url"`
	APIKey    string  `json:"api_key" validate:"required"`
	MarkupPct float64 `json:"markup_pct" validate:"gte=0,lte=1000"`
	Status    string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

type providerResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	APIURL    string  `json:"api_url"`
	MarkupPct float64 `json:"markup_pct"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

func toProviderResponse(p *model.Provider) providerResponse {
	// API-ключ провайдера наружу не отдаётся
	return providerResponse{
		ID:        p.ID,
		Name:      p.Name,
		APIURL:    p.APIURL,
		MarkupPct: p.MarkupPct,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// AdminGetProviders возвращает всех провайдеров.
func (h *Handler) AdminGetProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.ListProviders(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]providerResponse, 0, len(providers))
	for i := range providers {
		resp = append(resp, toProviderResponse(&providers[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// AdminCreateProvider сохраняет нового провайдера.
func (h *Handler) AdminCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	p, err := h.service.CreateProvider(r.Context(), &model.Provider{
		Name:      req.Name,
		APIURL:    req.APIURL,
		APIKey:    req.APIKey,
		MarkupPct: req.MarkupPct,
		Status:    req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toProviderResponse(p))
}

// AdminUpdateProvider обновляет данные провайдера.
func (h *Handler) AdminUpdateProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.pathID(w, r, "providerID")
	if !ok {
		return
	}

	var req providerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	err := h.service.UpdateProvider(r.Context(), &model.Provider{
		ID:        providerID,
		Name:      req.Name,
		APIURL:    req.APIURL,
		APIKey:    req.APIKey,
		MarkupPct: req.MarkupPct,
		Status:    req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminDeleteProvider удаляет провайдера вместе с его услугами.
func (h *Handler) AdminDeleteProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.pathID(w, r, "providerID")
	if !ok {
		return
	}

	if err := h.service.DeleteProvider(r.Context(), providerID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminTestProvider проверяет доступность провайдера запросом баланса.
func (h *Handler) AdminTestProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.pathID(w, r, "providerID")
	if !ok {
		return
	}

	info, err := h.service.TestProvider(r.Context(), providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// AdminSyncProvider синхронизирует каталог услуг с провайдером.
func (h *Handler) AdminSyncProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.pathID(w, r, "providerID")
	if !ok {
		return
	}

	res, err := h.service.SyncProvider(r.Context(), providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// AdminGetServices возвращает каталог целиком, включая неактивные услуги.
func (h *Handler) AdminGetServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListAllServices(r.Context())
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

type adminUpdateServiceRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=200"`
	Category  *string `json:"category" validate:"omitempty,max=100"`
	RateCents *int64  `json:"rate_cents" validate:"omitempty,gt=0"`
	MinQty    *int    `json:"min" validate:"omitempty,gt=0"`
	MaxQty    *int    `json:"max" validate:"omitempty,gt=0"`
	Status    *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AdminUpdateService применяет административные правки к услуге.
func (h *Handler) AdminUpdateService(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := h.pathID(w, r, "serviceID")
	if !ok {
		return
	}

	var req adminUpdateServiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	upd := repository.ServiceUpdate{
		Name:      req.Name,
		Category:  req.Category,
		RateCents: req.RateCents,
		MinQty:    req.MinQty,
		MaxQty:    req.MaxQty,
	}
	if req.Status != nil {
		status := model.ServiceStatus(*req.Status)
		upd.Status = &status
	}

	if err := h.service.UpdateService(r.Context(), serviceID, upd); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminGetSettings возвращает все настройки панели.
func (h *Handler) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

type setSettingRequest struct {
	Value string `json:"value" validate:"required,max=1000"`
}

// AdminSetSetting создаёт или обновляет настройку панели.
func (h *Handler) AdminSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		h.writeErrorKind(w, http.StatusBadRequest, "invalid_request", "invalid key")
		return
	}

	var req setSettingRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	if err := h.service.SetSetting(r.Context(), key, req.Value); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
