package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"storefront/internal/checkout"
	"storefront/internal/observability"
	"storefront/internal/payment"
	"storefront/internal/resilience"
)

// CheckoutService is the orchestrator surface the API exposes.
type CheckoutService interface {
	Initiate(ctx context.Context, userID int64, amountMinorUnits int64) (string, error)
	Capture(ctx context.Context, providerOrderID string) (int64, error)
}

// WebhookHandler consumes provider push events.
type WebhookHandler interface {
	HandleEvent(ctx context.Context, eventType, providerOrderID string)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Server holds the HTTP adapter's dependencies.
type Server struct {
	service  CheckoutService
	webhooks WebhookHandler
	metrics  *observability.Metrics
	limiter  *resilience.RateLimiter
	validate *validatorv10.Validate
	health   map[string]HealthChecker
	logf     func(format string, args ...any)
}

// NewServer constructs the HTTP adapter.
func NewServer(service CheckoutService, webhooks WebhookHandler, metrics *observability.Metrics, limiter *resilience.RateLimiter, health map[string]HealthChecker, logf func(format string, args ...any)) *Server {
	if logf == nil {
		logf = log.Printf
	}
	return &Server{
		service:  service,
		webhooks: webhooks,
		metrics:  metrics,
		limiter:  limiter,
		validate: validatorv10.New(),
		health:   health,
		logf:     logf,
	}
}

// Router builds the gin engine with all routes and middleware mounted.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(rateLimit(s.limiter, s.metrics))

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, userIDHeader)
	router.Use(cors.New(corsCfg))

	router.POST("/checkout/initiate", s.handleInitiate)
	router.POST("/checkout/capture", s.handleCapture)
	router.POST("/webhooks/payment-provider", s.handleWebhook)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(observability.Handler(s.metrics)))

	return router
}

type initiateRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type captureRequest struct {
	ProviderOrderID string `json:"provider_order_id" validate:"required"`
}

type webhookRequest struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID string `json:"id"`
	} `json:"resource"`
}

func (s *Server) handleInitiate(c *gin.Context) {
	span := s.metrics.Start("checkout.initiate")

	userID, ok := currentUser(c)
	if !ok {
		span.End(errors.New("unauthenticated"))
		return
	}

	var req initiateRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		span.End(err)
		return
	}

	providerOrderID, err := s.service.Initiate(c.Request.Context(), userID, req.Amount)
	span.End(err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider_order_id": providerOrderID})
}

func (s *Server) handleCapture(c *gin.Context) {
	span := s.metrics.Start("checkout.capture")

	if _, ok := currentUser(c); !ok {
		span.End(errors.New("unauthenticated"))
		return
	}

	var req captureRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		span.End(err)
		return
	}

	orderID, err := s.service.Capture(c.Request.Context(), req.ProviderOrderID)
	span.End(err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID})
}

// handleWebhook always acknowledges well-formed events with 200; provider
// redelivery is not a consistency mechanism here.
func (s *Server) handleWebhook(c *gin.Context) {
	span := s.metrics.Start("webhook.event")

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.End(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook payload"})
		return
	}

	s.webhooks.HandleEvent(c.Request.Context(), req.EventType, req.Resource.ID)
	span.End(nil)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	report := gin.H{}
	for name, check := range s.health {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	c.JSON(status, report)
}

// writeError maps the checkout error taxonomy onto HTTP statuses. Cache
// unavailability is always 503, distinctly from 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var providerErr *payment.ProviderError
	var notCompleted *checkout.PaymentNotCompletedError

	switch {
	case errors.Is(err, checkout.ErrCheckoutPending):
		c.JSON(http.StatusConflict, gin.H{"error": "payment already pending"})
	case errors.Is(err, checkout.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
	case errors.Is(err, checkout.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrPendingNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "order data not found or expired"})
	case errors.As(err, &notCompleted):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "payment not completed",
			"provider_status": notCompleted.Status,
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "payment provider rejected the order",
			"provider_status": providerErr.StatusCode,
			"provider_body":   providerErr.Body,
		})
	case errors.Is(err, checkout.ErrCacheUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout temporarily unavailable, try again shortly"})
	default:
		s.logf("httpapi: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
