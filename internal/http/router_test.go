package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
)

type testServer struct {
	t      *testing.T
	db     *database.Database
	auth   *auth.Service
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	deps := services.Deps{
		DB: db.DB,
		Library: config.Library{
			ReservationHold:       72 * time.Hour,
			LoanPeriod:            14 * 24 * time.Hour,
			MaxActiveReservations: 3,
			LateFeePerDayCents:    50,
		},
		Storage:   store,
		MaxUpload: 1 << 20,
	}
	dashboards := services.NewDashboardService(deps, 8, time.Minute)
	deps.Cache = dashboards
	notifications := services.NewNotificationService(deps)
	membership := services.NewMembershipService(deps, notifications)
	authCfg := config.Auth{TokenExpiry: time.Hour, BcryptCost: 4}
	authService := auth.NewService(db.DB, authCfg)
	authService.SetMembershipClaimer(membership)
	authService.SetInvalidator(dashboards)

	router := NewRouter(RouterConfig{
		Database: db,
		Services: Services{
			Membership:    membership,
			Catalog:       services.NewCatalogService(deps),
			Reservations:  services.NewReservationService(deps, notifications),
			Events:        services.NewEventService(deps),
			Gallery:       services.NewGalleryService(deps),
			Chat:          services.NewChatService(deps, notifications),
			Notifications: notifications,
			Fees:          services.NewFeeService(deps, notifications),
			Broadcasts:    services.NewBroadcastService(deps, nil),
			Dashboards:    dashboards,
		},
		AuthService:    authService,
		AuthConfig:     authCfg,
		AllowedOrigins: []string{"https://library.example.com"},
		Version:        "test",
	})

	return &testServer{t: t, db: db, auth: authService, router: router}
}

// token creates a user with role and returns a bearer token for them.
func (s *testServer) token(username string, role entities.UserRole) (string, *entities.User) {
	s.t.Helper()
	user, err := s.auth.CreateUser(username, username+"@example.com", "correct-horse-battery", role)
	require.NoError(s.t, err)
	token, err := s.auth.GenerateToken(user.ID)
	require.NoError(s.t, err)
	return token, user
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_HealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}

func TestRouter_SecurityHeaders(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	req.Header.Set("Origin", "https://library.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://library.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RoleGuards(t *testing.T) {
	s := newTestServer(t)
	guest, _ := s.token("guest", entities.UserRoleGuest)
	member, _ := s.token("member", entities.UserRoleMember)
	librarian, _ := s.token("librarian", entities.UserRoleLibrarian)
	admin, _ := s.token("admin", entities.UserRoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous notifications", http.MethodGet, "/api/notifications", "", http.StatusUnauthorized},
		{"guest notifications", http.MethodGet, "/api/notifications", guest, http.StatusOK},
		{"anonymous reservations list", http.MethodGet, "/api/reservations", "", http.StatusUnauthorized},
		{"member reservations list", http.MethodGet, "/api/reservations", member, http.StatusForbidden},
		{"librarian reservations list", http.MethodGet, "/api/reservations", librarian, http.StatusOK},
		{"guest book file", http.MethodGet, "/api/books/1/file", guest, http.StatusForbidden},
		{"librarian users", http.MethodGet, "/api/admin/users", librarian, http.StatusForbidden},
		{"admin users", http.MethodGet, "/api/admin/users", admin, http.StatusOK},
		{"librarian applications", http.MethodGet, "/api/admin/membership/applications", librarian, http.StatusOK},
		{"member applications", http.MethodGet, "/api/admin/membership/applications", member, http.StatusForbidden},
		{"librarian review", http.MethodPatch, "/api/admin/membership/applications/1/status", librarian, http.StatusForbidden},
		{"librarian dashboard", http.MethodGet, "/api/librarian/dashboard", librarian, http.StatusOK},
		{"member own dashboard", http.MethodGet, "/api/dashboard", member, http.StatusOK},
		{"admin dashboard", http.MethodGet, "/api/admin/dashboard", admin, http.StatusOK},
		{"member isbn lookup", http.MethodGet, "/api/books/lookup?isbn=9780435905255", member, http.StatusForbidden},
		{"lookup disabled", http.MethodGet, "/api/books/lookup?isbn=9780435905255", librarian, http.StatusServiceUnavailable},
		{"lookup without isbn", http.MethodGet, "/api/books/lookup", librarian, http.StatusBadRequest},
		{"cover of missing book", http.MethodGet, "/api/books/999/cover", "", http.StatusNotFound},
		{"invalid token", http.MethodGet, "/api/dashboard", "not-a-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_ReservationWorkflow(t *testing.T) {
	s := newTestServer(t)
	member, _ := s.token("member", entities.UserRoleMember)
	guest, _ := s.token("guest", entities.UserRoleGuest)
	librarian, _ := s.token("librarian", entities.UserRoleLibrarian)

	w := s.do(http.MethodPost, "/api/books", librarian, map[string]any{
		"title": "Things Fall Apart", "author": "Chinua Achebe", "total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookID := uint(decode(t, w)["book"].(map[string]any)["id"].(float64))

	w = s.do(http.MethodPost, "/api/reservations", guest, map[string]any{"book_id": bookID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/reservations", member, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decode(t, w)["code"])

	w = s.do(http.MethodPost, "/api/reservations", member, map[string]any{"book_id": bookID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resID := uint(decode(t, w)["reservation"].(map[string]any)["id"].(float64))

	w = s.do(http.MethodPost, "/api/reservations", member, map[string]any{"book_id": bookID})
	assert.Contains(t, []int{http.StatusConflict}, w.Code, w.Body.String())

	statusPath := fmt.Sprintf("/api/reservations/%d/status", resID)
	w = s.do(http.MethodPatch, statusPath, member, map[string]any{"status": "APPROVED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, statusPath, librarian, map[string]any{"status": "RETURNED"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(http.MethodPatch, statusPath, librarian, map[string]any{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored entities.Reservation
	require.NoError(t, s.db.DB.First(&stored, resID).Error)
	assert.Equal(t, entities.ReservationStatusApproved, stored.Status)
	assert.NotNil(t, stored.ExpiresAt)

	w = s.do(http.MethodGet, "/api/reservations/mine?active=true", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["reservations"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "APPROVED", list[0].(map[string]any)["status"])
}

func TestRouter_MembershipApplication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/membership/applications", "", map[string]any{"full_name": "Ada"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details := decode(t, w)["details"].(map[string]any)
	assert.Contains(t, details, "email")

	application := map[string]any{
		"full_name":       "Ada Obi",
		"email":           "Ada@Example.com",
		"phone":           "+27 11 555 0100",
		"address":         "12 Main Road, Johannesburg",
		"date_of_birth":   "01/01/1990",
		"membership_type": "STANDARD",
	}
	w = s.do(http.MethodPost, "/api/membership/applications", "", application)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details = decode(t, w)["details"].(map[string]any)
	assert.Equal(t, "must be a date (YYYY-MM-DD)", details["date_of_birth"])

	application["date_of_birth"] = "1990-01-01"
	w = s.do(http.MethodPost, "/api/membership/applications", "", application)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"date_of_birth":"1990-01-01T00:00:00Z"`)

	w = s.do(http.MethodGet, "/api/membership/status?email=ada@example.com", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "PENDING")
}
