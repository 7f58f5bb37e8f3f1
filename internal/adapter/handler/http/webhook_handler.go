package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

// signatureHeaders are checked in order; Stripe and the fake provider use
// different header names.
var signatureHeaders = []string{"Stripe-Signature", "X-Webhook-Signature"}

type WebhookHandler struct {
	service *usecase.WebhookService
	logger  *zap.Logger
}

func NewWebhookHandler(service *usecase.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
	}
}

// HandleProviderWebhook receives asynchronous provider notifications. A
// 2xx acknowledges the delivery; signature failures return 400 so the
// provider does not keep retrying a forged payload.
func (h *WebhookHandler) HandleProviderWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Failed to read request body",
		})
	}

	var signature string
	for _, header := range signatureHeaders {
		if signature = c.Request().Header.Get(header); signature != "" {
			break
		}
	}
	if signature == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing webhook signature header",
		})
	}

	if err := h.service.HandleProviderEvent(c.Request().Context(), payload, signature); err != nil {
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) && providerErr.Code == "SIGNATURE_VERIFICATION_FAILED" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid webhook signature",
			})
		}

		h.logger.Error("Failed to process webhook", zap.Error(err))
		// 5xx tells the provider to redeliver later.
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to process webhook",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"received": "true",
	})
}
