package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborlight/donations/internal/app/service/checkout"
	"github.com/harborlight/donations/internal/platform/stripeapi"
)

func callWritePublicError(t *testing.T, err error) (int, publicErrResp) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	writePublicError(c, zap.NewNop().Sugar(), err)

	var body publicErrResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestWritePublicError_Validation(t *testing.T) {
	code, body := callWritePublicError(t, fmt.Errorf("%w: bad cart", checkout.ErrValidation))
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, body.Error, "bad cart")
}

func TestWritePublicError_RateLimited(t *testing.T) {
	code, body := callWritePublicError(t, &checkout.RateLimitedError{RetryIn: 2 * time.Second})
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, int64(2000), body.RetryInMs)
}

func TestWritePublicError_Upstream(t *testing.T) {
	code, body := callWritePublicError(t, &stripeapi.UpstreamError{
		Op:        "create checkout session",
		Type:      "api_error",
		Code:      "rate_limit",
		RequestID: "req_123",
	})
	require.Equal(t, http.StatusBadGateway, code)
	require.Equal(t, "api_error", body.ProviderErrorType)
	require.Equal(t, "rate_limit", body.ProviderErrorCode)
	require.Equal(t, "req_123", body.ProviderRequestID)
	// Never leak the raw provider message to the browser.
	require.Equal(t, "payment provider error", body.Error)
}

func TestWritePublicError_Internal(t *testing.T) {
	code, body := callWritePublicError(t, errors.New("pg: connection reset"))
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "internal error", body.Error)
}
