package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/pkg/logctx"
)

const secret = "test-secret"

func newAuthRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", JWT(secret), RequireRole(roles...), func(c *gin.Context) {
		a, _ := ActorFrom(c)
		c.JSON(http.StatusOK, a)
	})
	return r
}

func call(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r := newAuthRouter(checkout.RoleAdmin, checkout.RoleSeller)

	good, err := SignToken(secret, "user-1", checkout.RoleSeller, "seller-1", time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(secret, "user-1", checkout.RoleSeller, "seller-1", -time.Minute)
	require.NoError(t, err)
	forged, err := SignToken("other", "user-1", checkout.RoleAdmin, "", time.Hour)
	require.NoError(t, err)

	w := call(r, "Bearer "+good)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"SellerID":"seller-1"`)

	for name, header := range map[string]string{
		"missing": "",
		"basic":   "Basic dXNlcjpwYXNz",
		"expired": "Bearer " + expired,
		"forged":  "Bearer " + forged,
		"garbage": "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusUnauthorized, call(r, header).Code)
		})
	}
}

func TestJWT_EmptySecretRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", JWT(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	tok, err := SignToken("x", "user-1", checkout.RoleAdmin, "", time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+tok).Code)
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(checkout.RoleAdmin)

	seller, _ := SignToken(secret, "user-1", checkout.RoleSeller, "seller-1", time.Hour)
	admin, _ := SignToken(secret, "ops-1", checkout.RoleAdmin, "", time.Hour)

	require.Equal(t, http.StatusForbidden, call(r, "Bearer "+seller).Code)
	require.Equal(t, http.StatusOK, call(r, "Bearer "+admin).Code)
}

func TestTraceAndRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()), AccessLogMiddleware())
	r.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, logctx.TraceID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc-123", w.Body.String())
	require.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	require.Len(t, w.Body.String(), 36)
	require.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}
