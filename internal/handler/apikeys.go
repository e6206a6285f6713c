package handler

import (
	"net/http"
	"time"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

type createAPIKeyRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

type apiKeyResponse struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Permissions  []string `json:"permissions"`
	Status       string   `json:"status"`
	RequestCount int64    `json:"request_count"`
	LastUsedAt   *string  `json:"last_used_at,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func toAPIKeyResponse(k *model.APIKey) apiKeyResponse {
	resp := apiKeyResponse{
		ID:           k.ID,
		Name:         k.Name,
		Permissions:  k.Permissions,
		Status:       k.Status,
		RequestCount: k.RequestCount,
		CreatedAt:    k.CreatedAt.Format(time.RFC3339),
	}
	if k.LastUsedAt != nil {
		s := k.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &s
	}
	return resp
}

type createdAPIKeyResponse struct {
	apiKeyResponse
	// Key возвращается только при создании, дальше хранится лишь хэш.
	Key string `json:"key"`
}

// CreateAPIKey создаёт ключ доступа текущего пользователя.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	key, plain, err := h.service.CreateAPIKey(r.Context(), userID, req.Name, req.Permissions)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createdAPIKeyResponse{
		apiKeyResponse: toAPIKeyResponse(key),
		Key:            plain,
	})
}

// GetAPIKeys возвращает ключи текущего пользователя без самих значений.
func (h *Handler) GetAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}

	keys, err := h.service.ListAPIKeys(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]apiKeyResponse, 0, len(keys))
	for i := range keys {
		resp = append(resp, toAPIKeyResponse(&keys[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteAPIKey отключает ключ текущего пользователя.
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.claims(w, r)
	if !ok {
		return
	}
	keyID, ok := h.pathID(w, r, "keyID")
	if !ok {
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), userID, keyID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
