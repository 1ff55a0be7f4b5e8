package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(logging.Middleware())
	router.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(cfg.AllowedOrigins))
	}

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	router.Use(auth.StrictTransportSecurityMiddleware(0))

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		cookieName := ""
		if cfg.SessionManager != nil {
			cookieName = cfg.SessionManager.Cookie.Name
		}
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cookieName, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	mw := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	router.Use(mw.Handler())

	router.NoRoute(func(c *gin.Context) {
		respondNotFound(c, "route")
	})

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	if cfg.TaskClient != nil {
		health.AddCheck("task_queue", cfg.TaskClient.DB())
	}
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	api := router.Group("/api")

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api, mw)
	}

	registerPublicRoutes(api, cfg)
	registerMemberRoutes(api.Group("", mw.RequireAuth()), cfg, mw)
	registerStaffRoutes(api.Group("", mw.RequireStaff()), cfg)
	registerAdminRoutes(api.Group("/admin"), cfg, mw)

	return router
}

// registerPublicRoutes are reachable without signing in.
func registerPublicRoutes(api *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services

	membership := NewMembershipController(s.Membership)
	api.POST("/membership/applications", membership.Submit)
	api.GET("/membership/status", membership.Status)

	books := NewBooksController(s.Catalog)
	api.GET("/books", books.List)
	api.GET("/books/categories", books.Categories)
	api.GET("/books/:id", books.Get)
	api.GET("/books/:id/cover", books.Cover)

	events := NewEventsController(s.Events)
	api.GET("/events", events.List)
	api.GET("/events/:id", events.Get)

	gallery := NewGalleryController(s.Gallery)
	api.GET("/gallery", gallery.List)
	api.GET("/gallery/:id/file", gallery.File)
}

// registerMemberRoutes need any signed-in account.
func registerMemberRoutes(g *gin.RouterGroup, cfg RouterConfig, mw *auth.Middleware) {
	s := cfg.Services

	membership := NewMembershipController(s.Membership)
	g.GET("/membership/applications/mine", membership.Mine)

	books := NewBooksController(s.Catalog)
	g.GET("/books/:id/file",
		mw.RequireRole(entities.UserRoleMember, entities.UserRoleLibrarian, entities.UserRoleAdmin),
		books.ReadFile)

	reservations := NewReservationsController(s.Reservations)
	g.POST("/reservations", reservations.Create)
	g.GET("/reservations/mine", reservations.Mine)
	g.POST("/reservations/:id/cancel", reservations.Cancel)

	notifications := NewNotificationsController(s.Notifications)
	g.GET("/notifications", notifications.List)
	g.GET("/notifications/unread-count", notifications.UnreadCount)
	g.POST("/notifications/read-all", notifications.MarkAllRead)
	g.POST("/notifications/:id/read", notifications.MarkRead)
	g.DELETE("/notifications/:id", notifications.Delete)

	chat := NewChatController(s.Chat)
	g.GET("/chat/contacts", chat.Contacts)
	g.GET("/chat/unread-count", chat.UnreadCount)
	g.GET("/chat/messages/:peerId", chat.Conversation)
	g.POST("/chat/messages", chat.Send)

	fees := NewFeesController(s.Fees)
	g.GET("/fees/mine", fees.Mine)

	dashboards := NewDashboardsController(s.Dashboards)
	g.GET("/dashboard", dashboards.Mine)
}

// registerStaffRoutes need ADMIN or LIBRARIAN.
func registerStaffRoutes(g *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services

	books := NewBooksController(s.Catalog)
	g.POST("/books", books.Create)
	g.PUT("/books/:id", books.Update)
	g.DELETE("/books/:id", books.Delete)
	g.POST("/books/:id/file", books.UploadFile)
	g.GET("/books/lookup", books.Lookup)
	g.POST("/books/:id/cover", books.FetchCover)

	reservations := NewReservationsController(s.Reservations)
	g.GET("/reservations", reservations.List)
	g.GET("/reservations/overdue", reservations.Overdue)
	g.PATCH("/reservations/:id/status", reservations.Transition)

	events := NewEventsController(s.Events)
	g.POST("/events", events.Create)
	g.PUT("/events/:id", events.Update)
	g.DELETE("/events/:id", events.Delete)

	gallery := NewGalleryController(s.Gallery)
	g.POST("/gallery", gallery.Upload)
	g.DELETE("/gallery/:id", gallery.Delete)

	fees := NewFeesController(s.Fees)
	g.GET("/fees", fees.List)
	g.GET("/fees/summary", fees.Summary)
	g.POST("/fees", fees.Record)
	g.POST("/fees/:id/pay", fees.Pay)
	g.POST("/fees/:id/waive", fees.Waive)

	dashboards := NewDashboardsController(s.Dashboards)
	g.GET("/librarian/dashboard", dashboards.Librarian)
}

// registerAdminRoutes live under /api/admin. Application review listings
// are open to librarians; everything else needs ADMIN.
func registerAdminRoutes(g *gin.RouterGroup, cfg RouterConfig, mw *auth.Middleware) {
	s := cfg.Services
	admin := mw.RequireRole(entities.UserRoleAdmin)

	membership := NewMembershipController(s.Membership)
	staff := g.Group("", mw.RequireStaff())
	staff.GET("/membership/applications", membership.List)
	staff.GET("/membership/applications/:id", membership.Get)
	g.PATCH("/membership/applications/:id/status", admin, membership.Review)

	a := g.Group("", admin)

	dashboards := NewDashboardsController(s.Dashboards)
	a.GET("/dashboard", dashboards.Admin)

	broadcasts := NewBroadcastsController(s.Broadcasts)
	a.POST("/broadcasts", broadcasts.Create)
	a.GET("/broadcasts", broadcasts.List)
	a.GET("/broadcasts/:id", broadcasts.Get)

	users := NewUsersController(cfg.AuthService, cfg.Audit)
	a.GET("/users", users.ListUsers)
	a.POST("/users", users.CreateUser)
	a.PATCH("/users/:id/role", users.UpdateRole)

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit)
		a.GET("/audit", auditController.GetAuditEvents)
		a.GET("/audit/types", auditController.GetEventTypes)
	}

	tasksController := NewTasksController(cfg.TaskClient, cfg.Maintenance)
	a.GET("/maintenance", tasksController.ListJobs)
	a.POST("/maintenance/:job/run", tasksController.RunJob)
	a.GET("/tasks/:id", tasksController.GetTaskStatus)
}
