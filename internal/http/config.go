package http

import (
	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

// Services are the workflows the handlers call.
type Services struct {
	Membership    *services.MembershipService
	Catalog       *services.CatalogService
	Reservations  *services.ReservationService
	Events        *services.EventService
	Gallery       *services.GalleryService
	Chat          *services.ChatService
	Notifications *services.NotificationService
	Fees          *services.FeeService
	Broadcasts    *services.BroadcastService
	Dashboards    *services.DashboardService
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Services Services
	Audit    *audit.Service

	// Authentication. AuthService is required; sessions and CSRF are
	// skipped when their fields are empty.
	AuthService    *auth.Service
	AuthController *auth.AuthController
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth
	CSRFSecret     []byte

	// CORS
	AllowedOrigins []string

	// Task queue client and maintenance runner (optional)
	TaskClient  *tasks.Client
	Maintenance MaintenanceRunner

	// Application info
	Version string
}
