package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
)

var _ adapter.CashfreeClient = (*CashfreeClient)(nil)

const cashfreeAPIVersion = "2023-08-01"

// CashfreeClient fetches order state from the Cashfree PG REST API using
// server credentials. Cashfree has no client-supplied signature, so this
// lookup IS the verification step.
type CashfreeClient struct {
	appID     string
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewCashfreeClient picks the production or sandbox endpoint unless baseURL
// overrides it.
func NewCashfreeClient(appID, secretKey, baseURL string, sandbox bool) *CashfreeClient {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.cashfree.com/pg"
		} else {
			baseURL = "https://api.cashfree.com/pg"
		}
	}
	return &CashfreeClient{
		appID:     appID,
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type cashfreeOrderResponse struct {
	OrderID       string  `json:"order_id"`
	OrderStatus   string  `json:"order_status"`
	OrderAmount   float64 `json:"order_amount"` // rupees with paise fraction
	OrderCurrency string  `json:"order_currency"`
}

func (c *CashfreeClient) FetchOrder(ctx context.Context, orderID string) (*adapter.CashfreeOrder, error) {
	if c.appID == "" || c.secretKey == "" {
		return nil, domain.ErrGatewayNotConfigured
	}

	url := fmt.Sprintf("%s/orders/%s", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cashfree: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("x-client-id", c.appID)
	req.Header.Set("x-client-secret", c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cashfree: fetch order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cashfree: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: cashfree order %s", domain.ErrPaymentNotFound, orderID)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, domain.NonRetriable(fmt.Errorf("cashfree: auth rejected (status %d)", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		// 5xx and rate limits are transient; the retry executor handles them.
		return nil, fmt.Errorf("cashfree: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out cashfreeOrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("cashfree: decode response: %w", err)
	}
	return &adapter.CashfreeOrder{
		OrderID:  out.OrderID,
		Status:   out.OrderStatus,
		Amount:   int64(math.Round(out.OrderAmount * 100)),
		Currency: out.OrderCurrency,
	}, nil
}
