package payment

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// NewSessionID генерирует идентификатор платёжной сессии. Он же служит
// ключом идемпотентности при обработке webhook-событий.
func NewSessionID(method model.PaymentMethod) string {
	return fmt.Sprintf("cs_%s_%s", method, uuid.NewString())
}

// CheckoutURL строит ссылку на hosted-страницу оплаты. Идентификатор
// пользователя и сумма уходят в метаданные сессии.
func CheckoutURL(baseURL, sessionID string, userID, amountCents int64) string {
	q := url.Values{
		"session": {sessionID},
		"user":    {strconv.FormatInt(userID, 10)},
		"amount":  {strconv.FormatInt(amountCents, 10)},
	}
	return baseURL + "?" + q.Encode()
}
