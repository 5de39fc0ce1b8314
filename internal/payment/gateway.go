package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/resilience"
)

// StatusCompleted is the provider's terminal success status for a capture.
const StatusCompleted = "COMPLETED"

// ProviderError is a non-2xx response from the payment provider. The
// status code and body are forwarded faithfully, never swallowed.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider returned %d: %s", e.StatusCode, e.Body)
}

// CaptureResult is the outcome of a provider capture call.
type CaptureResult struct {
	Status string
	Raw    json.RawMessage
}

// Config holds provider connection settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	Timeout      time.Duration
}

// Gateway is a thin client to the provider's order-create / order-capture
// REST API. Every call fetches a fresh bearer credential via a
// client-credentials exchange; no token is cached. Only the token fetch is
// retried (it is idempotent); order create and capture are never
// auto-retried here.
type Gateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
	httpClient   *http.Client
	tokenRetry   resilience.RetryPolicy
}

// NewGateway constructs a provider gateway.
func NewGateway(cfg Config, tokenRetry resilience.RetryPolicy) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Gateway{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     currency,
		httpClient:   &http.Client{Timeout: timeout},
		tokenRetry:   tokenRetry,
	}
}

// CreateOrder creates a provider order with CAPTURE intent for the given
// amount in minor currency units and returns the provider order id.
func (g *Gateway) CreateOrder(ctx context.Context, amountMinorUnits int64) (string, error) {
	token, err := g.fetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch provider token: %w", err)
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": g.currency,
					"value":         formatAmount(amountMinorUnits),
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	raw, err := g.post(ctx, "/v2/checkout/orders", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode provider order: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("provider order response missing id")
	}
	return created.ID, nil
}

// CaptureOrder captures a previously approved provider order.
func (g *Gateway) CaptureOrder(ctx context.Context, providerOrderID string) (CaptureResult, error) {
	token, err := g.fetchToken(ctx)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("fetch provider token: %w", err)
	}

	path := "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	raw, err := g.post(ctx, path, token, "application/json", strings.NewReader("{}"))
	if err != nil {
		return CaptureResult{}, err
	}

	var captured struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &captured); err != nil {
		return CaptureResult{}, fmt.Errorf("decode provider capture: %w", err)
	}
	return CaptureResult{Status: captured.Status, Raw: raw}, nil
}

func (g *Gateway) fetchToken(ctx context.Context) (string, error) {
	var token string
	err := g.tokenRetry.Do(ctx, func() error {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(g.clientID, g.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
		}

		var payload struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode token response: %w", err)
		}
		if payload.AccessToken == "" {
			return fmt.Errorf("token response missing access_token")
		}
		token = payload.AccessToken
		return nil
	})
	return token, err
}

func (g *Gateway) post(ctx context.Context, path, token, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// formatAmount renders minor currency units in the provider's decimal
// string form, e.g. 5000 -> "50.00".
func formatAmount(minorUnits int64) string {
	return fmt.Sprintf("%d.%02d", minorUnits/100, minorUnits%100)
}
