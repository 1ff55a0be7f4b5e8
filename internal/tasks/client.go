// Package tasks runs background work (email delivery, broadcasts and
// maintenance) on a backlite queue stored in its own SQLite database.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"
)

// Client owns the queue database and the backlite dispatcher.
type Client struct {
	backlite *backlite.Client
	db       *sql.DB
	workers  int
	running  atomic.Bool
}

// TasksDBPath returns the queue database path for a main database path:
// library.db becomes library-tasks.db in the same directory.
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	// Workers each hold a connection while claiming tasks; leave headroom
	// for enqueues from request handlers.
	db.SetMaxOpenConns(workers + 5)
	db.SetMaxIdleConns(workers + 2)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewClient opens (and installs the schema of) the queue database next to
// the main database.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	path := TasksDBPath(mainDBPath)
	db, err := openQueueDB(path, cfg.Workers)
	if err != nil {
		return nil, err
	}

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          zerologAdapter{},
	})
	if err == nil {
		err = bl.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise task queue: %w", err)
	}

	log.Info().Str("path", path).Int("workers", cfg.Workers).Msg("Task queue initialized")
	return &Client{backlite: bl, db: db, workers: cfg.Workers}, nil
}

// Register adds queues. Call it before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.backlite.Register(q)
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	log.Info().Int("workers", c.workers).Msg("Task queue started")
	c.backlite.Start(ctx)
}

// Stop waits for in-flight tasks until ctx expires and reports whether all
// workers finished.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.running.Load() {
		return true
	}
	log.Info().Msg("Stopping task queue...")
	if !c.backlite.Stop(ctx) {
		log.Warn().Msg("Task queue stopped with timeout (some tasks may not have completed)")
		return false
	}
	log.Info().Msg("Task queue stopped gracefully")
	return true
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	return c.db.Close()
}

// Enqueue saves tasks for immediate processing.
func (c *Client) Enqueue(ctx context.Context, tasks ...backlite.Task) error {
	if _, err := c.backlite.Add(tasks...).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Status returns the state of a task by ID.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.backlite.Status(ctx, taskID)
}

// DB returns the queue database for health checks.
func (c *Client) DB() *sql.DB {
	return c.db
}

type zerologAdapter struct{}

func (zerologAdapter) Info(message string, params ...any) {
	log.Info().Fields(params).Msg("[task] " + message)
}

func (zerologAdapter) Error(message string, params ...any) {
	log.Error().Fields(params).Msg("[task] " + message)
}
