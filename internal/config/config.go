package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Mail
		Storage
		Tasks
		Scheduler
		Events
		CORS
		Log
		Library
		Cache
		Audit
		Metadata
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
		AppName                  string
		BaseURL                  string
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // SQLite file, ignored for postgres
		DSN    string // postgres connection string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		AllowSignup     bool // GUEST self registration

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Mail struct {
		Provider     MailProvider
		From         string
		SMTPHost     string
		SMTPPort     int
		SMTPUsername string
		SMTPPassword string
		SMTPTLS      bool
		ResendAPIKey string
		Timeout      time.Duration
	}
	Storage struct {
		Dir         string
		MaxUploadMB int
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		Enabled          bool
		ExpirySchedule   string // Cron format, default every 15 minutes
		OverdueSchedule  string
		CleanupSchedule  string
		NotificationDays int // Read notifications older than this are removed
	}
	Events struct {
		AMQPURL  string // Empty disables publishing
		Exchange string
	}
	CORS struct {
		AllowedOrigins []string
	}
	Log struct {
		Level      string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		JSON       bool // Plain JSON on stdout instead of the console writer
	}
	Library struct {
		ReservationHold       time.Duration
		LoanPeriod            time.Duration
		MaxActiveReservations int
		MembershipFeeCents    int64
		LateFeePerDayCents    int64
	}
	Cache struct {
		DashboardTTL  time.Duration
		DashboardSize int
	}
	Audit struct {
		RetentionDays int // Days to keep audit events (default: 90)
	}
	Metadata struct {
		Enabled        bool // ISBN lookup and cover download from Open Library
		OpenLibraryURL string
		CoversURL      string
		Timeout        time.Duration
	}
)

// MaxUploadBytes returns the upload limit in bytes.
func (s Storage) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Enabled reports whether domain events should be published.
func (e Events) Enabled() bool {
	return e.AMQPURL != ""
}

// NewConfig reads configuration from the environment, after loading an optional
// .env file from the working directory.
func NewConfig() *Config {
	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("app_name", "Davel Library")
	v.SetDefault("base_url", "http://localhost:8188")

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_session_secret", "")
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_token_expiry", "720h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_allow_signup", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Mail defaults
	v.SetDefault("mail_provider", string(MailProviderNone))
	v.SetDefault("mail_from", "Davel Library <no-reply@localhost>")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_tls", true)
	v.SetDefault("resend_api_key", "")
	v.SetDefault("mail_timeout", "15s")

	v.SetDefault("storage_dir", DefaultStorageDir)
	v.SetDefault("storage_max_upload_mb", 50)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_expiry_schedule", "*/15 * * * *")
	v.SetDefault("scheduler_overdue_schedule", "0 9 * * *")
	v.SetDefault("scheduler_cleanup_schedule", "0 3 * * *")
	v.SetDefault("scheduler_notification_days", 30)

	v.SetDefault("events_amqp_url", "")
	v.SetDefault("events_exchange", "library.events")

	v.SetDefault("cors_allowed_origins", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_max_size_mb", 20)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 28)
	v.SetDefault("log_json", false)

	// Library policy
	v.SetDefault("library_reservation_hold", "72h")
	v.SetDefault("library_loan_period", "336h")
	v.SetDefault("library_max_active_reservations", 5)
	v.SetDefault("library_membership_fee", 5000)
	v.SetDefault("library_late_fee_per_day", 50)

	v.SetDefault("cache_dashboard_ttl", "1m")
	v.SetDefault("cache_dashboard_size", 64)

	v.SetDefault("audit_retention_days", 90)

	v.SetDefault("metadata_enabled", true)
	v.SetDefault("metadata_openlibrary_url", "https://openlibrary.org")
	v.SetDefault("metadata_covers_url", "https://covers.openlibrary.org")
	v.SetDefault("metadata_timeout", "10s")
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			AppName:                  v.GetString("APP_NAME"),
			BaseURL:                  strings.TrimRight(v.GetString("BASE_URL"), "/"),
		},
		Database: Database{
			Driver: DatabaseDriver(strings.ToLower(v.GetString("DATABASE_DRIVER"))),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			AllowSignup:      v.GetBool("AUTH_ALLOW_SIGNUP"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Mail: Mail{
			Provider:     MailProvider(strings.ToLower(v.GetString("MAIL_PROVIDER"))),
			From:         v.GetString("MAIL_FROM"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			SMTPTLS:      v.GetBool("SMTP_TLS"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			Timeout:      v.GetDuration("MAIL_TIMEOUT"),
		},
		Storage: Storage{
			Dir:         v.GetString("STORAGE_DIR"),
			MaxUploadMB: v.GetInt("STORAGE_MAX_UPLOAD_MB"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			Enabled:          v.GetBool("SCHEDULER_ENABLED"),
			ExpirySchedule:   v.GetString("SCHEDULER_EXPIRY_SCHEDULE"),
			OverdueSchedule:  v.GetString("SCHEDULER_OVERDUE_SCHEDULE"),
			CleanupSchedule:  v.GetString("SCHEDULER_CLEANUP_SCHEDULE"),
			NotificationDays: v.GetInt("SCHEDULER_NOTIFICATION_DAYS"),
		},
		Events: Events{
			AMQPURL:  v.GetString("EVENTS_AMQP_URL"),
			Exchange: v.GetString("EVENTS_EXCHANGE"),
		},
		CORS: CORS{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: Log{
			Level:      strings.ToLower(v.GetString("LOG_LEVEL")),
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
			JSON:       v.GetBool("LOG_JSON"),
		},
		Library: Library{
			ReservationHold:       v.GetDuration("LIBRARY_RESERVATION_HOLD"),
			LoanPeriod:            v.GetDuration("LIBRARY_LOAN_PERIOD"),
			MaxActiveReservations: v.GetInt("LIBRARY_MAX_ACTIVE_RESERVATIONS"),
			MembershipFeeCents:    v.GetInt64("LIBRARY_MEMBERSHIP_FEE"),
			LateFeePerDayCents:    v.GetInt64("LIBRARY_LATE_FEE_PER_DAY"),
		},
		Cache: Cache{
			DashboardTTL:  v.GetDuration("CACHE_DASHBOARD_TTL"),
			DashboardSize: v.GetInt("CACHE_DASHBOARD_SIZE"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Metadata: Metadata{
			Enabled:        v.GetBool("METADATA_ENABLED"),
			OpenLibraryURL: strings.TrimRight(v.GetString("METADATA_OPENLIBRARY_URL"), "/"),
			CoversURL:      strings.TrimRight(v.GetString("METADATA_COVERS_URL"), "/"),
			Timeout:        v.GetDuration("METADATA_TIMEOUT"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
