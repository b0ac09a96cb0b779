package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/noah-isme/f2freport-api/internal/service"
)

const viewCapability = "local/f2freport:viewreport"

func newProtectedRouter(auth *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/sessions", JWT(auth), RequireCapability(viewCapability), func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID})
	})
	return router
}

func doRequest(router http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAndCapability(t *testing.T) {
	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "secret"})
	router := newProtectedRouter(auth)

	granted, err := auth.IssueToken(7, "trainer@example.com", []string{viewCapability}, time.Hour)
	require.NoError(t, err)
	denied, err := auth.IssueToken(8, "learner@example.com", []string{"mod/facetoface:view"}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer not-a-jwt").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(router, "Bearer "+denied).Code)

	w := doRequest(router, "bearer "+granted)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":7}`, w.Body.String())
}

func TestRequireCapabilityWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/sessions", RequireCapability(viewCapability), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "").Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(rate.Limit(0.001), 2, time.Minute)
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, doRequest(router, "").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "").Code)
	w := doRequest(router, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
	assert.Equal(t, 1, limiter.Size())

	other := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, limiter.Size())
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(nil))
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "").Code)
	}
}

func TestMetricsMiddlewareRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(router, "")
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, family := range families {
		if family.GetName() == "http_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestTimeout(time.Second))
	router.GET("/sessions", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	w := doRequest(router, "")
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}
