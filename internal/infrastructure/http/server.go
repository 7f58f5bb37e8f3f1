package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/wayfarerhq/payment-service/internal/adapter/handler/http"
	"github.com/wayfarerhq/payment-service/internal/config"
	"github.com/wayfarerhq/payment-service/internal/logger"
	"github.com/wayfarerhq/payment-service/internal/middleware/auth"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

// requestValidator adapts go-playground/validator to echo's Validator
// interface.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	payments *usecase.PaymentService
	webhooks *usecase.WebhookService
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	payments *usecase.PaymentService,
	webhooks *usecase.WebhookService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	logger.WithEchoErrorHandler(e, log)

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		payments: payments,
		webhooks: webhooks,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(s.payments, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.webhooks, s.logger)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhooks",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	payments := protected.Group("/payments")
	payments.POST("/authorize", paymentHandler.AuthorizePayment)
	payments.POST("/:id/confirm", paymentHandler.ConfirmAuthorization)
	payments.POST("/:id/capture", paymentHandler.CapturePayment)
	payments.POST("/:id/cancel", paymentHandler.CancelPayment)
	payments.POST("/:id/refund", paymentHandler.RefundPayment)
	payments.POST("/:id/transfer", paymentHandler.TransferPayment)
	payments.GET("/:id", paymentHandler.GetPayment)
	payments.GET("", paymentHandler.GetPaymentsByStatus)

	protected.GET("/requests/:requestId/payments", paymentHandler.GetRequestPayments)
	protected.GET("/requests/:requestId/cost", paymentHandler.CalculateCost)
	protected.GET("/customers/:customerId/payments", paymentHandler.GetCustomerPayments)
	protected.POST("/customers/ensure", paymentHandler.EnsureCustomer)

	// Webhook route (outside API versioning, signature-verified instead of
	// JWT-authenticated)
	s.echo.POST("/webhooks/provider", webhookHandler.HandleProviderWebhook)
}
