package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/wayfarerhq/payment-service/internal/domain/errors"
	"github.com/wayfarerhq/payment-service/internal/domain/model"
	"github.com/wayfarerhq/payment-service/internal/domain/provider"
	"github.com/wayfarerhq/payment-service/internal/middleware/auth"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

type PaymentHandler struct {
	service *usecase.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

type authorizePaymentRequest struct {
	RequestID      string `json:"request_id" validate:"required,uuid"`
	CustomerID     string `json:"customer_id" validate:"required"`
	AmountCents    int64  `json:"amount_cents" validate:"required,gt=0"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AuthorizePayment places a hold for a delivery request.
func (h *PaymentHandler) AuthorizePayment(c echo.Context) error {
	var req authorizePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "request_id must be a valid UUID",
		})
	}

	payment, err := h.service.AuthorizePayment(c.Request().Context(), usecase.AuthorizePaymentInput{
		RequestID:      requestID,
		CustomerID:     req.CustomerID,
		AmountCents:    req.AmountCents,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return h.paymentError(c, err, "Failed to authorize payment")
	}

	return c.JSON(http.StatusCreated, payment)
}

// ConfirmAuthorization moves a pending payment to authorized.
func (h *PaymentHandler) ConfirmAuthorization(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	payment, err := h.service.ConfirmAuthorization(c.Request().Context(), id)
	if err != nil {
		return h.paymentError(c, err, "Failed to confirm authorization")
	}

	return c.JSON(http.StatusOK, payment)
}

// CapturePayment converts an authorized hold into a charge.
func (h *PaymentHandler) CapturePayment(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	payment, err := h.service.CapturePayment(c.Request().Context(), id)
	if err != nil {
		return h.paymentError(c, err, "Failed to capture payment")
	}

	return c.JSON(http.StatusOK, payment)
}

type cancelPaymentRequest struct {
	Reason string `json:"reason"`
}

// CancelPayment releases an authorized hold.
func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	var req cancelPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	payment, err := h.service.CancelPayment(c.Request().Context(), id, req.Reason)
	if err != nil {
		return h.paymentError(c, err, "Failed to cancel payment")
	}

	return c.JSON(http.StatusOK, payment)
}

type refundPaymentRequest struct {
	AmountCents *int64 `json:"amount_cents" validate:"omitempty,gt=0"`
	Reason      string `json:"reason"`
}

// RefundPayment returns captured funds, fully or partially.
func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	var req refundPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	payment, err := h.service.RefundPayment(c.Request().Context(), id, req.AmountCents, req.Reason)
	if err != nil {
		return h.paymentError(c, err, "Failed to refund payment")
	}

	return c.JSON(http.StatusOK, payment)
}

type transferPaymentRequest struct {
	TravelerID string `json:"traveler_id" validate:"required,uuid"`
}

// TransferPayment pays the traveler the delivery fee of a captured payment.
func (h *PaymentHandler) TransferPayment(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	var req transferPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	travelerID, err := uuid.Parse(req.TravelerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "traveler_id must be a valid UUID",
		})
	}

	payment, err := h.service.TransferToTraveler(c.Request().Context(), id, travelerID)
	if err != nil {
		return h.paymentError(c, err, "Failed to transfer payment")
	}

	return c.JSON(http.StatusOK, payment)
}

// GetPayment returns one ledger row.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := parsePaymentID(c)
	if err != nil {
		return err
	}

	payment, err := h.service.GetPaymentByID(c.Request().Context(), id)
	if err != nil {
		return h.paymentError(c, err, "Failed to get payment")
	}

	return c.JSON(http.StatusOK, payment)
}

// GetRequestPayments returns every ledger row of a delivery request.
func (h *PaymentHandler) GetRequestPayments(c echo.Context) error {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "requestId must be a valid UUID",
		})
	}

	payments, err := h.service.GetPaymentsByRequestID(c.Request().Context(), requestID)
	if err != nil {
		return h.paymentError(c, err, "Failed to get request payments")
	}

	return c.JSON(http.StatusOK, payments)
}

// GetCustomerPayments returns the ledger rows of a customer.
func (h *PaymentHandler) GetCustomerPayments(c echo.Context) error {
	customerID := c.Param("customerId")

	payments, err := h.service.GetPaymentsByCustomerID(c.Request().Context(), customerID)
	if err != nil {
		return h.paymentError(c, err, "Failed to get customer payments")
	}

	return c.JSON(http.StatusOK, payments)
}

// GetPaymentsByStatus returns the ledger rows in a given state.
func (h *PaymentHandler) GetPaymentsByStatus(c echo.Context) error {
	status := model.PaymentStatus(c.QueryParam("status"))
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Unknown payment status",
		})
	}

	payments, err := h.service.GetPaymentsByStatus(c.Request().Context(), status)
	if err != nil {
		return h.paymentError(c, err, "Failed to get payments by status")
	}

	return c.JSON(http.StatusOK, payments)
}

// CalculateCost returns the cost breakdown of a delivery request.
func (h *PaymentHandler) CalculateCost(c echo.Context) error {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "requestId must be a valid UUID",
		})
	}

	tip := decimal.Zero
	if tipStr := c.QueryParam("tip"); tipStr != "" {
		tip, err = decimal.NewFromString(tipStr)
		if err != nil || tip.IsNegative() {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "tip must be a non-negative decimal",
			})
		}
	}

	breakdown, err := h.service.CalculateTotalCost(c.Request().Context(), requestID, tip)
	if err != nil {
		return h.paymentError(c, err, "Failed to calculate cost")
	}

	return c.JSON(http.StatusOK, breakdown)
}

// EnsureCustomer provisions a provider customer for the authenticated user.
func (h *PaymentHandler) EnsureCustomer(c echo.Context) error {
	userIDStr, err := auth.GetUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Authentication required",
		})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid user id",
		})
	}

	customerID, err := h.service.EnsureCustomer(c.Request().Context(), userID)
	if err != nil {
		return h.paymentError(c, err, "Failed to ensure customer")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"customer_id": customerID,
	})
}

// parsePaymentID reads the :id route param. On a malformed id it returns
// an HTTPError for the global error handler, so callers must stop on a
// non-nil error instead of writing a response of their own.
func parsePaymentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "id must be a valid UUID")
	}
	return id, nil
}

// paymentError maps the domain error taxonomy onto HTTP statuses.
func (h *PaymentHandler) paymentError(c echo.Context, err error, message string) error {
	switch {
	case errors.Is(err, domainErrors.ErrPaymentNotFound),
		errors.Is(err, domainErrors.ErrRequestNotFound),
		errors.Is(err, domainErrors.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domainErrors.ErrInvalidAmount),
		errors.Is(err, domainErrors.ErrAmountExceedsRefund),
		errors.Is(err, domainErrors.ErrCustomerRequired),
		errors.Is(err, domainErrors.ErrNoPayoutAccount):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case domainErrors.IsStatusConflict(err):
		return c.JSON(http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	}

	var providerErr *provider.ProviderError
	if errors.As(err, &providerErr) {
		h.logger.Error("Provider call failed",
			zap.String("code", providerErr.Code),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": message,
			"code":  providerErr.Code,
		})
	}

	h.logger.Error(message, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": message,
	})
}
