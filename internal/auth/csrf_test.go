package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func newCSRFRouter(svc *Service) (*gin.Engine, *bool) {
	reached := false
	router := gin.New()
	router.Use(CSRFMiddleware(testCSRFSecret, false, "session", svc))
	handler := func(c *gin.Context) {
		reached = true
		c.JSON(http.StatusOK, gin.H{"token": GetCSRFToken(c)})
	}
	router.GET("/api/test", handler)
	router.POST("/api/test", handler)
	return router, &reached
}

func TestCSRFMiddleware_AllowsGETAndIssuesToken(t *testing.T) {
	router, reached := newCSRFRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, *reached)
	assert.NotContains(t, rr.Body.String(), `"token":""`)
}

func TestCSRFMiddleware_BlocksCookiePOSTWithoutToken(t *testing.T) {
	router, reached := newCSRFRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, *reached, "handler must not run after a CSRF failure")
	assert.JSONEq(t, `{"error":"CSRF token invalid or missing"}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestCSRFMiddleware_SkipsRequestsWithoutSession(t *testing.T) {
	router, reached := newCSRFRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, *reached)
}

func TestCSRFMiddleware_BearerMustBeValid(t *testing.T) {
	svc := newTestService(t)
	token := tokenFor(t, svc, "api", entities.UserRoleLibrarian)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid bearer skips check", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"unknown bearer is checked", "Bearer not-a-token", http.StatusForbidden},
		{"basic auth is checked", "Basic dXNlcjpwYXNz", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newCSRFRouter(svc)
			req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
			req.Header.Set("Authorization", tt.header)
			req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestGetCSRFToken_NoToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCSRFToken(c))
}
