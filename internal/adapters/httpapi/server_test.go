package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/observability"
	"storefront/internal/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	initiateID  string
	initiateErr error
	captureID   int64
	captureErr  error

	lastUserID int64
	lastAmount int64
	lastPOID   string
}

func (s *stubService) Initiate(ctx context.Context, userID int64, amountMinorUnits int64) (string, error) {
	s.lastUserID = userID
	s.lastAmount = amountMinorUnits
	return s.initiateID, s.initiateErr
}

func (s *stubService) Capture(ctx context.Context, providerOrderID string) (int64, error) {
	s.lastPOID = providerOrderID
	return s.captureID, s.captureErr
}

type stubWebhooks struct {
	events []string
	ids    []string
}

func (s *stubWebhooks) HandleEvent(ctx context.Context, eventType, providerOrderID string) {
	s.events = append(s.events, eventType)
	s.ids = append(s.ids, providerOrderID)
}

func newTestRouter(t *testing.T, service *stubService, webhooks *stubWebhooks, health map[string]HealthChecker) *gin.Engine {
	t.Helper()
	server := NewServer(service, webhooks, observability.NewMetrics(), nil, health, t.Logf)
	return server.Router(nil)
}

func doJSON(router *gin.Engine, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestInitiateEndpoint(t *testing.T) {
	service := &stubService{initiateID: "PO-1"}
	router := newTestRouter(t, service, &stubWebhooks{}, nil)

	rec := doJSON(router, http.MethodPost, "/checkout/initiate", "42", `{"amount":5000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["provider_order_id"] != "PO-1" {
		t.Fatalf("unexpected body: %v", resp)
	}
	if service.lastUserID != 42 || service.lastAmount != 5000 {
		t.Fatalf("service saw user=%d amount=%d", service.lastUserID, service.lastAmount)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestInitiateEndpoint_RequiresIdentity(t *testing.T) {
	router := newTestRouter(t, &stubService{}, &stubWebhooks{}, nil)

	if rec := doJSON(router, http.MethodPost, "/checkout/initiate", "", `{"amount":5000}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
	if rec := doJSON(router, http.MethodPost, "/checkout/initiate", "not-a-number", `{"amount":5000}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed identity, got %d", rec.Code)
	}
}

func TestInitiateEndpoint_ValidatesBody(t *testing.T) {
	router := newTestRouter(t, &stubService{}, &stubWebhooks{}, nil)

	if rec := doJSON(router, http.MethodPost, "/checkout/initiate", "42", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	if rec := doJSON(router, http.MethodPost, "/checkout/initiate", "42", `{"amount":-5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rec.Code)
	}
}

func TestInitiateEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"pending", checkout.ErrCheckoutPending, http.StatusConflict},
		{"insufficient", checkout.ErrInsufficientStock, http.StatusConflict},
		{"invalid", checkout.ErrInvalidRequest, http.StatusBadRequest},
		{"provider", &payment.ProviderError{StatusCode: 422, Body: "{}"}, http.StatusBadRequest},
		{"cache", checkout.ErrCacheUnavailable, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		router := newTestRouter(t, &stubService{initiateErr: tc.err}, &stubWebhooks{}, nil)
		rec := doJSON(router, http.MethodPost, "/checkout/initiate", "42", `{"amount":5000}`)
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.code, rec.Code, rec.Body.String())
		}
	}
}

func TestCaptureEndpoint(t *testing.T) {
	service := &stubService{captureID: 7}
	router := newTestRouter(t, service, &stubWebhooks{}, nil)

	rec := doJSON(router, http.MethodPost, "/checkout/capture", "42", `{"provider_order_id":"PO-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["order_id"] != 7 {
		t.Fatalf("unexpected body: %v", resp)
	}
	if service.lastPOID != "PO-1" {
		t.Fatalf("service saw provider order %q", service.lastPOID)
	}
}

func TestCaptureEndpoint_ExpiredEntry(t *testing.T) {
	router := newTestRouter(t, &stubService{captureErr: checkout.ErrPendingNotFound}, &stubWebhooks{}, nil)

	rec := doJSON(router, http.MethodPost, "/checkout/capture", "42", `{"provider_order_id":"PO-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "order data not found or expired") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCaptureEndpoint_PaymentNotCompleted(t *testing.T) {
	router := newTestRouter(t, &stubService{captureErr: &checkout.PaymentNotCompletedError{Status: "PENDING"}}, &stubWebhooks{}, nil)

	rec := doJSON(router, http.MethodPost, "/checkout/capture", "42", `{"provider_order_id":"PO-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["provider_status"] != "PENDING" {
		t.Fatalf("expected provider status surfaced, got %v", resp)
	}
}

func TestCaptureEndpoint_MissingProviderOrderID(t *testing.T) {
	router := newTestRouter(t, &stubService{}, &stubWebhooks{}, nil)

	if rec := doJSON(router, http.MethodPost, "/checkout/capture", "42", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookEndpoint_AlwaysAcknowledges(t *testing.T) {
	webhooks := &stubWebhooks{}
	router := newTestRouter(t, &stubService{}, webhooks, nil)

	body := `{"event_type":"CHECKOUT.ORDER.EXPIRED","resource":{"id":"PO-1"}}`
	rec := doJSON(router, http.MethodPost, "/webhooks/payment-provider", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(webhooks.events) != 1 || webhooks.events[0] != "CHECKOUT.ORDER.EXPIRED" || webhooks.ids[0] != "PO-1" {
		t.Fatalf("unexpected dispatch: %v %v", webhooks.events, webhooks.ids)
	}

	// Unknown events are acknowledged too.
	rec = doJSON(router, http.MethodPost, "/webhooks/payment-provider", "", `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"PO-2"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown event, got %d", rec.Code)
	}
}

func TestWebhookEndpoint_MalformedPayload(t *testing.T) {
	webhooks := &stubWebhooks{}
	router := newTestRouter(t, &stubService{}, webhooks, nil)

	rec := doJSON(router, http.MethodPost, "/webhooks/payment-provider", "", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(webhooks.events) != 0 {
		t.Fatalf("malformed payload must not be dispatched")
	}
}

func TestHealthEndpoint(t *testing.T) {
	health := map[string]HealthChecker{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return nil },
	}
	router := newTestRouter(t, &stubService{}, &stubWebhooks{}, health)

	rec := doJSON(router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	health["redis"] = func(ctx context.Context) error { return errors.New("connection refused") }
	rec = doJSON(router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a failing dependency, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubService{initiateID: "PO-1"}, &stubWebhooks{}, nil)

	if rec := doJSON(router, http.MethodPost, "/checkout/initiate", "42", `{"amount":5000}`); rec.Code != http.StatusOK {
		t.Fatalf("seed request failed: %d", rec.Code)
	}

	rec := doJSON(router, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap struct {
		Operations map[string]any `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if _, ok := snap.Operations["checkout.initiate"]; !ok {
		t.Fatalf("expected checkout.initiate in snapshot, got %v", snap.Operations)
	}
}
