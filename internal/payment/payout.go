package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PayoutProvider переводит захваченные средства на внешний счёт исполнителя.
// Вызов fire-and-forget: итоговый статус выплаты приходит асинхронным
// колбэком и здесь не отслеживается.
type PayoutProvider interface {
	Payout(ctx context.Context, providerID uuid.UUID, amount float64, currency string) (payoutRef string, err error)
}

// PayoutClient реализует PayoutProvider поверх REST API провайдера выплат.
type PayoutClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewPayoutClient создаёт клиент провайдера выплат.
func NewPayoutClient(baseURL, apiKey string, timeout time.Duration) *PayoutClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PayoutClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type payoutRequest struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
}

type payoutResponse struct {
	PayoutRef string `json:"payout_ref"`
	Error     string `json:"error,omitempty"`
}

// Payout ставит выплату в очередь провайдера и возвращает её ссылку.
func (c *PayoutClient) Payout(ctx context.Context, providerID uuid.UUID, amount float64, currency string) (string, error) {
	raw, err := json.Marshal(payoutRequest{ProviderID: providerID, Amount: amount, Currency: currency})
	if err != nil {
		return "", fmt.Errorf("payout: не удалось сериализовать запрос: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("payout: не удалось собрать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payout: запрос не выполнен: %w", err)
	}
	defer httpResp.Body.Close()

	var resp payoutResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("payout: не удалось разобрать ответ: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return "", fmt.Errorf("payout: провайдер вернул %d: %s", httpResp.StatusCode, resp.Error)
	}
	if resp.PayoutRef == "" {
		return "", fmt.Errorf("payout: пустой payout_ref в ответе")
	}

	return resp.PayoutRef, nil
}
