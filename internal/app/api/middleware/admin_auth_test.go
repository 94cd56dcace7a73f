package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func adminTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/admin")
	admin.Use(AdminAuthMiddleware(testSecret))
	admin.POST("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func adminRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_AllowsAdminRole(t *testing.T) {
	r := adminTestRouter()
	tok := signToken(t, testSecret, jwt.MapClaims{"role": "admin", "sub": "ops@example.com"})
	w := adminRequest(r, "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_RejectsMissingHeader(t *testing.T) {
	w := adminRequest(adminTestRouter(), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_RejectsWrongSignature(t *testing.T) {
	tok := signToken(t, "other-secret", jwt.MapClaims{"role": "admin"})
	w := adminRequest(adminTestRouter(), "Bearer "+tok)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_RejectsNonAdminRole(t *testing.T) {
	tok := signToken(t, testSecret, jwt.MapClaims{"role": "viewer"})
	w := adminRequest(adminTestRouter(), "Bearer "+tok)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_OnlyConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware("https://donate.example.org"))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Origin", "https://donate.example.org")
	r.ServeHTTP(w, req)
	require.Equal(t, "https://donate.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
