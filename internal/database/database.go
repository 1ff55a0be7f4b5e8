package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// ErrUnsupportedDriver is returned for an unknown DATABASE_DRIVER value.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Models lists every entity managed by AutoMigrate.
var Models = []any{
	&entities.User{},
	&entities.Book{},
	&entities.MembershipApplication{},
	&entities.Reservation{},
	&entities.Event{},
	&entities.GalleryItem{},
	&entities.ChatMessage{},
	&entities.Notification{},
	&entities.FeeTransaction{},
	&entities.EmailBroadcast{},
	&entities.AuditEvent{},
}

type Database struct {
	DB     *gorm.DB
	Driver config.DatabaseDriver
}

// NewDatabase opens the configured database and migrates the schema.
func NewDatabase(cfg config.Database) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	driver := cfg.Driver
	switch driver {
	case config.DatabaseDriverSQLite, "":
		driver = config.DatabaseDriverSQLite
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), gormCfg)
	case config.DatabaseDriverPostgres:
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == config.DatabaseDriverSQLite && isMemory(cfg.Path) {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	database := &Database{DB: db, Driver: driver}
	if err := database.Migrate(); err != nil {
		return nil, err
	}

	log.Info().Str("driver", string(driver)).Msg("Database initialized")
	return database, nil
}

// Migrate creates or updates all tables.
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// Paginate clamps limit and offset to sane values.
func Paginate(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func sqliteDSN(path string) string {
	if path == "" {
		path = config.DefaultDatabasePath
	}
	if isMemory(path) || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
