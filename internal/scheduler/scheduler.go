// Package scheduler runs the library's periodic maintenance on cron
// schedules: expiring uncollected holds, reminding overdue borrowers and
// pruning old notifications and audit events.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

const (
	DefaultExpirySchedule   = "*/15 * * * *"
	DefaultOverdueSchedule  = "0 9 * * *"
	DefaultCleanupSchedule  = "0 3 * * *"
	DefaultNotificationDays = 30
	DefaultAuditDays        = 90
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands tasks to the background queue. *tasks.Client satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) error
}

// Jobs are the services maintenance runs against when no queue is configured.
type Jobs struct {
	Reservations  tasks.ReservationMaintainer
	Notifications tasks.NotificationCleaner
	Audit         tasks.AuditEventCleaner
}

// Settings are the resolved schedules.
type Settings struct {
	ExpirySchedule   string
	OverdueSchedule  string
	CleanupSchedule  string
	NotificationDays int
	AuditDays        int
}

// SettingsFrom applies defaults to the scheduler and audit configuration.
func SettingsFrom(cfg config.Scheduler, auditCfg config.Audit) Settings {
	s := Settings{
		ExpirySchedule:   cfg.ExpirySchedule,
		OverdueSchedule:  cfg.OverdueSchedule,
		CleanupSchedule:  cfg.CleanupSchedule,
		NotificationDays: cfg.NotificationDays,
		AuditDays:        auditCfg.RetentionDays,
	}
	if s.ExpirySchedule == "" {
		s.ExpirySchedule = DefaultExpirySchedule
	}
	if s.OverdueSchedule == "" {
		s.OverdueSchedule = DefaultOverdueSchedule
	}
	if s.CleanupSchedule == "" {
		s.CleanupSchedule = DefaultCleanupSchedule
	}
	if s.NotificationDays <= 0 {
		s.NotificationDays = DefaultNotificationDays
	}
	if s.AuditDays <= 0 {
		s.AuditDays = DefaultAuditDays
	}
	return s
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// NextRun returns the first activation of schedule after from.
func NextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

type job struct {
	name     string
	schedule string
	tasks    func() []backlite.Task
}

// MaintenanceScheduler fires maintenance jobs on their schedules. With a
// queue the job only enqueues tasks; without one it runs them inline.
type MaintenanceScheduler struct {
	settings Settings
	queue    Enqueuer
	jobs     Jobs

	cron    *cron.Cron
	entries map[string]cron.EntryID

	mu        sync.RWMutex
	isRunning bool
	active    map[string]bool
}

// New creates a scheduler. queue may be nil.
func New(settings Settings, queue Enqueuer, jobs Jobs) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		settings: settings,
		queue:    queue,
		jobs:     jobs,
		cron:     cron.New(cron.WithParser(parser)),
		entries:  make(map[string]cron.EntryID),
		active:   make(map[string]bool),
	}
}

func (s *MaintenanceScheduler) definitions() []job {
	return []job{
		{
			name:     "expire_reservations",
			schedule: s.settings.ExpirySchedule,
			tasks:    func() []backlite.Task { return []backlite.Task{tasks.ExpireReservationsTask{}} },
		},
		{
			name:     "overdue_reminders",
			schedule: s.settings.OverdueSchedule,
			tasks:    func() []backlite.Task { return []backlite.Task{tasks.OverdueRemindersTask{}} },
		},
		{
			name:     "cleanup",
			schedule: s.settings.CleanupSchedule,
			tasks: func() []backlite.Task {
				return []backlite.Task{
					tasks.CleanupNotificationsTask{OlderThanDays: s.settings.NotificationDays},
					tasks.CleanupAuditEventsTask{RetentionDays: s.settings.AuditDays},
				}
			},
		},
	}
}

// Start registers every job and starts the cron runner. It stops when ctx is done.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	defs := s.definitions()
	for _, j := range defs {
		if err := ValidateSchedule(j.schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", j.schedule, j.name, err)
		}
	}
	for _, j := range defs {
		j := j
		id, err := s.cron.AddFunc(j.schedule, func() { s.run(j) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		s.entries[j.name] = id
	}

	s.cron.Start()
	s.isRunning = true

	mode := "inline"
	if s.queue != nil {
		mode = "queued"
	}
	log.Info().
		Str("mode", mode).
		Str("expiry", s.settings.ExpirySchedule).
		Str("overdue", s.settings.OverdueSchedule).
		Str("cleanup", s.settings.CleanupSchedule).
		Msg("Maintenance scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.isRunning = false
	log.Info().Msg("Maintenance scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRuns returns the next activation per job while running.
func (s *MaintenanceScheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// RunNow fires a job immediately, by name.
func (s *MaintenanceScheduler) RunNow(name string) error {
	for _, j := range s.definitions() {
		if j.name == name {
			s.run(j)
			return nil
		}
	}
	return fmt.Errorf("unknown maintenance job %q", name)
}

func (s *MaintenanceScheduler) run(j job) {
	s.mu.Lock()
	if s.active[j.name] {
		s.mu.Unlock()
		log.Debug().Str("job", j.name).Msg("Maintenance job skipped (already running)")
		return
	}
	s.active[j.name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.active, j.name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pending := j.tasks()
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, pending...); err != nil {
			log.Error().Err(err).Str("job", j.name).Msg("Failed to enqueue maintenance job")
		}
		return
	}
	for _, t := range pending {
		if err := s.runInline(ctx, t); err != nil {
			log.Error().Err(err).Str("job", j.name).Msg("Maintenance job failed")
		}
	}
}

func (s *MaintenanceScheduler) runInline(ctx context.Context, t backlite.Task) error {
	switch task := t.(type) {
	case tasks.ExpireReservationsTask:
		return tasks.ExpireReservationsProcessor(s.jobs.Reservations)(ctx, task)
	case tasks.OverdueRemindersTask:
		return tasks.OverdueRemindersProcessor(s.jobs.Reservations)(ctx, task)
	case tasks.CleanupNotificationsTask:
		return tasks.CleanupNotificationsProcessor(s.jobs.Notifications)(ctx, task)
	case tasks.CleanupAuditEventsTask:
		return tasks.CleanupAuditEventsProcessor(s.jobs.Audit)(ctx, task)
	}
	return fmt.Errorf("no inline runner for %T", t)
}
