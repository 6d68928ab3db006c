package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Gateway описывает контракт платёжного шлюза: авторизация (холд),
// списание, отмена холда и возврат списанного платежа.
type Gateway interface {
	Authorize(ctx context.Context, amount float64, currency string, payerID uuid.UUID) (holdRef string, err error)
	Capture(ctx context.Context, holdRef string) (chargeRef string, err error)
	Cancel(ctx context.Context, holdRef string) error
	Refund(ctx context.Context, chargeRef string) error
}

// GatewayClient реализует Gateway поверх REST API шлюза.
type GatewayClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGatewayClient создаёт клиент платёжного шлюза с ограниченным таймаутом.
func NewGatewayClient(baseURL, apiKey string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type authorizeRequest struct {
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	PayerID  uuid.UUID `json:"payer_id"`
}

type gatewayResponse struct {
	HoldRef   string `json:"hold_ref,omitempty"`
	ChargeRef string `json:"charge_ref,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Authorize создаёт холд на счёте плательщика и возвращает его ссылку.
func (c *GatewayClient) Authorize(ctx context.Context, amount float64, currency string, payerID uuid.UUID) (string, error) {
	resp, err := c.post(ctx, "/v1/holds", authorizeRequest{Amount: amount, Currency: currency, PayerID: payerID})
	if err != nil {
		return "", err
	}
	if resp.HoldRef == "" {
		return "", fmt.Errorf("gateway: пустой hold_ref в ответе")
	}
	return resp.HoldRef, nil
}

// Capture превращает холд в реальное списание.
func (c *GatewayClient) Capture(ctx context.Context, holdRef string) (string, error) {
	resp, err := c.post(ctx, "/v1/holds/"+holdRef+"/capture", nil)
	if err != nil {
		return "", err
	}
	if resp.ChargeRef == "" {
		return "", fmt.Errorf("gateway: пустой charge_ref в ответе")
	}
	return resp.ChargeRef, nil
}

// Cancel отменяет холд, деньги возвращаются плательщику.
func (c *GatewayClient) Cancel(ctx context.Context, holdRef string) error {
	_, err := c.post(ctx, "/v1/holds/"+holdRef+"/cancel", nil)
	return err
}

// Refund возвращает уже списанный платёж.
func (c *GatewayClient) Refund(ctx context.Context, chargeRef string) error {
	_, err := c.post(ctx, "/v1/charges/"+chargeRef+"/refund", nil)
	return err
}

// post выполняет JSON POST запрос к шлюзу и разбирает ответ.
func (c *GatewayClient) post(ctx context.Context, path string, body interface{}) (*gatewayResponse, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: не удалось сериализовать запрос: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: не удалось собрать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: запрос %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	var resp gatewayResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil && err != io.EOF {
		return nil, fmt.Errorf("gateway: не удалось разобрать ответ %s: %w", path, err)
	}

	if httpResp.StatusCode >= 400 {
		if resp.Error != "" {
			return nil, fmt.Errorf("gateway: %s вернул %d: %s", path, httpResp.StatusCode, resp.Error)
		}
		return nil, fmt.Errorf("gateway: %s вернул %d", path, httpResp.StatusCode)
	}

	return &resp, nil
}
