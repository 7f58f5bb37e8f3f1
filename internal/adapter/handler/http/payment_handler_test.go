package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wayfarerhq/payment-service/internal/adapter/repository/memory"
	"github.com/wayfarerhq/payment-service/internal/infrastructure/provider/fake"
	"github.com/wayfarerhq/payment-service/internal/usecase"
)

func newTestHandler() *PaymentHandler {
	service := usecase.NewPaymentService(
		memory.NewPaymentRepository(),
		fake.NewFakeProvider(),
		nil,
		nil,
		nil,
		zap.NewNop(),
		time.Second,
	)
	return NewPaymentHandler(service, zap.NewNop())
}

func idContext(method, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestParsePaymentID(t *testing.T) {
	t.Run("accepts a valid UUID", func(t *testing.T) {
		want := uuid.New()
		c, _ := idContext(http.MethodGet, want.String())

		id, err := parsePaymentID(c)

		assert.NoError(t, err)
		assert.Equal(t, want, id)
	})

	t.Run("rejects a malformed id without writing a response", func(t *testing.T) {
		c, _ := idContext(http.MethodGet, "not-a-uuid")

		id, err := parsePaymentID(c)

		assert.Equal(t, uuid.Nil, id)
		var httpErr *echo.HTTPError
		assert.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.False(t, c.Response().Committed)
	})
}

func TestHandlersStopOnMalformedID(t *testing.T) {
	h := newTestHandler()

	handlers := map[string]func(echo.Context) error{
		"confirm":  h.ConfirmAuthorization,
		"capture":  h.CapturePayment,
		"cancel":   h.CancelPayment,
		"refund":   h.RefundPayment,
		"transfer": h.TransferPayment,
		"get":      h.GetPayment,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			c, _ := idContext(http.MethodPost, "not-a-uuid")

			err := handler(c)

			var httpErr *echo.HTTPError
			assert.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusBadRequest, httpErr.Code)
			// the handler must not have written anything itself; the
			// global error handler owns this response
			assert.False(t, c.Response().Committed)
		})
	}
}
