// Package provider предоставляет клиент для внешних сервисов накрутки.
//
// Провайдеры реализуют общепринятый для SMM-панелей HTTP API: форма с
// полями key и action, ответ в JSON. Панель использует четыре действия:
// balance, services, add и status.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrUnreachable возвращается при сетевой ошибке, таймауте или не-2xx
// ответе провайдера. Текст вышестоящей ошибки сохраняется для оператора.
var ErrUnreachable = errors.New("provider unreachable")

// ErrMalformedResponse возвращается, когда провайдер ответил успешно,
// но тело не соответствует ожидаемой структуре. Это ошибка интеграции,
// а не частичный успех.
var ErrMalformedResponse = errors.New("malformed provider response")

// BalanceInfo описывает ответ провайдера на запрос баланса.
type BalanceInfo struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// RemoteService описывает одну услугу каталога провайдера.
type RemoteService struct {
	Service  json.Number `json:"service"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Rate     json.Number `json:"rate"`
	Min      int         `json:"min"`
	Max      int         `json:"max"`
}

// OrderState описывает ответ провайдера о состоянии заказа.
type OrderState struct {
	Status     string      `json:"status"`
	StartCount json.Number `json:"start_count"`
	Remains    json.Number `json:"remains"`
	Charge     json.Number `json:"charge"`
}

// Client инкапсулирует HTTP-взаимодействие с одним провайдером.
type Client struct {
	apiURL string
	apiKey string

	// retrying используется только для идемпотентных запросов
	// (balance, services, status); add отправляется ровно один раз.
	retrying *retryablehttp.Client
	plain    *http.Client
}

// NewClient создаёт клиент провайдера с ограниченным таймаутом на запрос.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.Logger = nil

	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiKey:   apiKey,
		retrying: rc,
		plain:    &http.Client{Timeout: timeout},
	}
}

// Balance запрашивает баланс панели у провайдера.
func (c *Client) Balance(ctx context.Context) (*BalanceInfo, error) {
	body, err := c.postIdempotent(ctx, url.Values{"action": {"balance"}})
	if err != nil {
		return nil, err
	}

	var info BalanceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return &info, nil
}

// Services запрашивает полный каталог услуг провайдера.
// Ответ, не являющийся JSON-массивом, считается ошибкой интеграции.
func (c *Client) Services(ctx context.Context) ([]RemoteService, error) {
	body, err := c.postIdempotent(ctx, url.Values{"action": {"services"}})
	if err != nil {
		return nil, err
	}

	var services []RemoteService
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("%w: expected array, got: %.100s", ErrMalformedResponse, string(body))
	}
	return services, nil
}

// AddOrder отправляет заказ провайдеру и возвращает удалённый идентификатор.
// Запрос не ретраится: повтор создал бы дублирующий заказ.
func (c *Client) AddOrder(ctx context.Context, remoteServiceID, link string, quantity int) (string, error) {
	form := url.Values{
		"action":   {"add"},
		"service":  {remoteServiceID},
		"link":     {link},
		"quantity": {strconv.Itoa(quantity)},
	}

	body, err := c.postOnce(ctx, form)
	if err != nil {
		return "", err
	}

	var resp struct {
		Order json.Number `json:"order"`
		Error string      `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUnreachable, resp.Error)
	}
	if resp.Order.String() == "" {
		return "", fmt.Errorf("%w: no order id in response", ErrMalformedResponse)
	}

	return resp.Order.String(), nil
}

// OrderStatus запрашивает у провайдера состояние ранее созданного заказа.
func (c *Client) OrderStatus(ctx context.Context, remoteOrderID string) (*OrderState, error) {
	form := url.Values{
		"action": {"status"},
		"order":  {remoteOrderID},
	}

	body, err := c.postIdempotent(ctx, form)
	if err != nil {
		return nil, err
	}

	var state OrderState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return &state, nil
}

func (c *Client) postIdempotent(ctx context.Context, form url.Values) ([]byte, error) {
	form.Set("key", c.apiKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.retrying.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	return c.readBody(resp)
}

func (c *Client) postOnce(ctx context.Context, form url.Values) ([]byte, error) {
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	return c.readBody(resp)
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %s", ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %.200s", ErrUnreachable, resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *Client) endpoint() string {
	base := c.apiURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}
