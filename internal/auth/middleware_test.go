package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func setupMiddleware(t *testing.T) (*Middleware, *Service) {
	t.Helper()
	svc := newTestService(t)
	return NewMiddleware(svc, nil), svc
}

func newGuardedRouter(mw *Middleware, guard gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw.Handler())
	router.GET("/api/protected", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetUserID(c),
			"role":      GetUserRole(c),
			"auth_type": GetAuthType(c),
		})
	})
	return router
}

func tokenFor(t *testing.T, svc *Service, username string, role entities.UserRole) string {
	t.Helper()
	user, err := svc.CreateUser(username, username+"@example.com", "password123", role)
	require.NoError(t, err)
	token, err := svc.GenerateToken(user.ID)
	require.NoError(t, err)
	return token
}

func TestMiddleware_AnonymousPassesThrough(t *testing.T) {
	mw, _ := setupMiddleware(t)
	router := gin.New()
	router.Use(mw.Handler())
	router.GET("/api/books", func(c *gin.Context) {
		assert.False(t, IsAuthenticated(c))
		assert.Equal(t, AuthTypeNone, GetAuthType(c))
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddleware_RequireAuth_Returns401JSON(t *testing.T) {
	mw, _ := setupMiddleware(t)
	router := newGuardedRouter(mw, mw.RequireAuth())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rr.Body.String())
}

func TestMiddleware_BearerAuth_ValidToken(t *testing.T) {
	mw, svc := setupMiddleware(t)
	token := tokenFor(t, svc, "member", entities.UserRoleMember)
	router := newGuardedRouter(mw, mw.RequireAuth())

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"MEMBER"`)
	assert.Contains(t, rr.Body.String(), `"auth_type":"bearer"`)
}

func TestMiddleware_BearerAuth_InvalidOrMalformed(t *testing.T) {
	mw, _ := setupMiddleware(t)
	router := newGuardedRouter(mw, mw.RequireAuth())

	headers := []string{
		"Bearer invalid-token",
		"Bearer",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"Token abc",
	}
	for _, h := range headers {
		t.Run(h, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			req.Header.Set("Authorization", h)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	mw, svc := setupMiddleware(t)
	adminToken := tokenFor(t, svc, "admin", entities.UserRoleAdmin)
	librarianToken := tokenFor(t, svc, "librarian", entities.UserRoleLibrarian)
	memberToken := tokenFor(t, svc, "member", entities.UserRoleMember)

	router := newGuardedRouter(mw, mw.RequireRole(entities.UserRoleAdmin))
	staff := newGuardedRouter(mw, mw.RequireStaff())

	tests := []struct {
		name   string
		router *gin.Engine
		token  string
		want   int
	}{
		{"admin allowed", router, adminToken, http.StatusOK},
		{"member forbidden", router, memberToken, http.StatusForbidden},
		{"librarian forbidden", router, librarianToken, http.StatusForbidden},
		{"anonymous unauthorized", router, "", http.StatusUnauthorized},
		{"staff admits librarian", staff, librarianToken, http.StatusOK},
		{"staff rejects member", staff, memberToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			tt.router.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"insufficient permissions"}`, rr.Body.String())
			}
		})
	}
}

func TestMiddleware_RoleChangeAppliesImmediately(t *testing.T) {
	mw, svc := setupMiddleware(t)
	admin, err := svc.CreateUser("admin", "admin@example.com", "password123", entities.UserRoleAdmin)
	require.NoError(t, err)
	token := tokenFor(t, svc, "guest", entities.UserRoleGuest)
	router := newGuardedRouter(mw, mw.RequireRole(entities.UserRoleMember))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusForbidden, send())

	guest, err := svc.ValidateToken(token)
	require.NoError(t, err)
	_, err = svc.UpdateRole(admin.ID, guest.ID, entities.UserRoleMember)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, send())
}

func TestContextHelpers_Empty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Equal(t, uint(0), GetUserID(c))
	assert.Equal(t, entities.UserRole(""), GetUserRole(c))
	assert.Equal(t, AuthTypeNone, GetAuthType(c))
	assert.Nil(t, GetUser(c))
	assert.False(t, IsAuthenticated(c))
}

func TestRoleFromParam(t *testing.T) {
	role, err := RoleFromParam(" librarian ")
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleLibrarian, role)

	_, err = RoleFromParam("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
