package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	dbaudit "github.com/derkdev976-web/davel-library-sub002/internal/database/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	http_controllers "github.com/derkdev976-web/davel-library-sub002/internal/http"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/metadata"
	"github.com/derkdev976-web/davel-library-sub002/internal/scheduler"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// kill -2 is SIGINT, plain kill is SIGTERM; SIGKILL can't be caught
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Info().Dur("timeout", timeout).Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// Run wires every component from cfg and serves until interrupted.
func Run(cfg *config.Config, version string) error {
	log.Info().Str("version", version).Str("app", cfg.Global.AppName).Msg("Starting library backend")

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	auditService := audit.NewService(dbaudit.NewRepository(db.DB))
	defer auditService.Wait()

	var store storage.Store
	if local, err := storage.NewLocalStore(cfg.Storage.Dir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Storage.Dir).Msg("File storage disabled")
	} else {
		store = local
		log.Info().Str("dir", cfg.Storage.Dir).Msg("File storage initialized")
	}

	directMailer, err := mail.New(cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	renderer, err := mail.NewRenderer(cfg.Global.AppName, cfg.Global.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}

	publisher, closePublisher, err := events.New(cfg.Events)
	if err != nil {
		log.Warn().Err(err).Msg("Event broker unavailable, domain events disabled")
		publisher, closePublisher = events.NoopPublisher{}, func() error { return nil }
	}
	defer func() {
		if err := closePublisher(); err != nil {
			log.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	// Initialize task queue if enabled. Workflow email then goes through
	// the queue so that SMTP latency never blocks a request.
	var taskClient *tasks.Client
	var mailer mail.Mailer = directMailer
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing task client")
			}
		}()
		mailer = tasks.NewQueuedMailer(taskClient)
	}

	deps := services.Deps{
		DB:        db.DB,
		Library:   cfg.Library,
		Storage:   store,
		MaxUpload: cfg.Storage.MaxUploadBytes(),
		Mailer:    mailer,
		Renderer:  renderer,
		Publisher: publisher,
		Auditor:   auditService,
	}
	dashboards := services.NewDashboardService(deps, cfg.Cache.DashboardSize, cfg.Cache.DashboardTTL)
	deps.Cache = dashboards

	notifications := services.NewNotificationService(deps)
	reservations := services.NewReservationService(deps, notifications)
	broadcasts := services.NewBroadcastService(deps, directMailer)
	catalog := services.NewCatalogService(deps)
	if cfg.Metadata.Enabled {
		catalog.SetLookup(metadata.NewClient(cfg.Metadata))
	}

	svc := http_controllers.Services{
		Membership:    services.NewMembershipService(deps, notifications),
		Catalog:       catalog,
		Reservations:  reservations,
		Events:        services.NewEventService(deps),
		Gallery:       services.NewGalleryService(deps),
		Chat:          services.NewChatService(deps, notifications),
		Notifications: notifications,
		Fees:          services.NewFeeService(deps, notifications),
		Broadcasts:    broadcasts,
		Dashboards:    dashboards,
	}

	if taskClient != nil {
		tasks.RegisterAll(taskClient, tasks.Processors{
			Mailer:        directMailer,
			Broadcasts:    broadcasts,
			Reservations:  reservations,
			Notifications: notifications,
			Audit:         auditService,
		})
		broadcasts.SetQueue(taskClient)
	}

	var maintenance http_controllers.MaintenanceRunner
	var sched *scheduler.MaintenanceScheduler
	if cfg.Scheduler.Enabled {
		var queue scheduler.Enqueuer
		if taskClient != nil {
			queue = taskClient
		}
		sched = scheduler.New(scheduler.SettingsFrom(cfg.Scheduler, cfg.Audit), queue, scheduler.Jobs{
			Reservations:  reservations,
			Notifications: notifications,
			Audit:         auditService,
		})
		maintenance = sched
	}

	authService := auth.NewService(db.DB, cfg.Auth)
	authService.SetMembershipClaimer(svc.Membership)
	authService.SetInvalidator(dashboards)

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, db.Driver, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	csrfSecret, err := sessionSecret(cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}

	if hasUsers, _ := authService.HasUsers(); !hasUsers {
		log.Warn().Msg("No users found. POST /api/auth/setup or run `create-user` to create an administrator")
	}

	authController := auth.NewAuthController(authService, sessionManager, cfg.Auth, auditService)

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Services:       svc,
		Audit:          auditService,
		AuthService:    authService,
		AuthController: authController,
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TaskClient:     taskClient,
		Maintenance:    maintenance,
		Version:        version,
	})

	// Nothing below this point can fail before the server is listening.
	stopBackground, err := startBackground(sched, taskClient)
	if err != nil {
		return err
	}
	defer stopBackground(context.Background())

	onShutdown := func(ctx context.Context) {
		stopBackground(ctx)
		authController.Stop()
	}

	return Serve(router, cfg, onShutdown)
}

// startBackground starts the maintenance scheduler and the task workers,
// either of which may be nil. The returned function stops both; only its
// first call has any effect.
func startBackground(sched *scheduler.MaintenanceScheduler, taskClient *tasks.Client) (func(context.Context), error) {
	ctx, cancel := context.WithCancel(context.Background())
	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	if taskClient != nil {
		go taskClient.Start(ctx)
	}

	var once sync.Once
	return func(shutdownCtx context.Context) {
		once.Do(func() {
			if sched != nil {
				sched.Stop()
			}
			if taskClient != nil {
				taskClient.Stop(shutdownCtx)
			}
			cancel()
		})
	}, nil
}

// sessionSecret decodes a hex secret, falls back to the raw bytes, and
// generates a throwaway one when none is configured.
func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}
	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	log.Warn().Msg("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(secret)
}
