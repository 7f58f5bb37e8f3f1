package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func runMiddleware(t *testing.T, authHeader string, skipPaths []string, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(JWTConfig{
		Secret:    testSecret,
		Logger:    zap.NewNop(),
		SkipPaths: skipPaths,
	})
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	err := handler(c)
	assert.NoError(t, err)
	return rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.NewString()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID,
		"email": "traveler@example.com",
		"role":  "user",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	rec := runMiddleware(t, "Bearer "+token, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec := runMiddleware(t, "", nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH_HEADER")
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	rec := runMiddleware(t, "Token abc", nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := runMiddleware(t, "Bearer "+token, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	rec := runMiddleware(t, "Bearer "+token, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_MissingSubject(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"email": "traveler@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	rec := runMiddleware(t, "Bearer "+token, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_SUBJECT")
}

func TestJWTMiddleware_NonUUIDSubject(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := runMiddleware(t, "Bearer "+token, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_SUBJECT_FORMAT")
}

func TestJWTMiddleware_SkipPath(t *testing.T) {
	rec := runMiddleware(t, "", []string{"/health", "/webhooks"}, "/webhooks/provider")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUserID(t *testing.T) {
	userID := uuid.NewString()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(JWTConfig{Secret: testSecret, Logger: zap.NewNop()})
	handler := mw(func(c echo.Context) error {
		got, err := GetUserID(c)
		assert.NoError(t, err)
		assert.Equal(t, userID, got)
		return c.NoContent(http.StatusOK)
	})
	assert.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
