// Package payment содержит криптографическую проверку платёжных
// webhook-событий и построение ссылок на оплату.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature возвращается при несовпадении подписи события.
// Событие с неверной подписью не обрабатывается ни при каких условиях.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventCheckoutCompleted — единственный тип события, приводящий к
// зачислению средств. Остальные типы подтверждаются и игнорируются.
const EventCheckoutCompleted = "checkout.completed"

// Event описывает платёжное событие внешнего процессинга.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// Verifier проверяет HMAC-SHA256-подпись тела webhook-запроса.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт проверяющий с указанным секретом. Пустой секрет —
// ошибка конфигурации: без секрета webhook-и должны отклоняться целиком,
// а не приниматься без проверки.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify сверяет hex-подпись с HMAC-SHA256 от тела запроса.
func (v *Verifier) Verify(body []byte, signatureHex string) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign подписывает тело события. Используется в тестах и утилитах.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent разбирает тело события после успешной проверки подписи.
func ParseEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return &e, nil
}
