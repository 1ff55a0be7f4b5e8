package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

type fakeQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, t ...backlite.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t...)
	return q.err
}

type fakeServices struct {
	mu                 sync.Mutex
	expired, reminded  int
	notificationMaxAge time.Duration
	auditMaxAge        time.Duration
}

func (f *fakeServices) ExpireStale(context.Context, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	return 1, nil
}

func (f *fakeServices) RemindOverdue(context.Context, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminded++
	return 0, nil
}

func (f *fakeServices) CleanupRead(olderThan time.Duration) (int64, error) {
	f.notificationMaxAge = olderThan
	return 0, nil
}

type auditCleaner struct{ f *fakeServices }

func (a auditCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	a.f.auditMaxAge = retention
	return 0, nil
}

func TestSettingsFromDefaults(t *testing.T) {
	s := SettingsFrom(config.Scheduler{}, config.Audit{})

	assert.Equal(t, DefaultExpirySchedule, s.ExpirySchedule)
	assert.Equal(t, DefaultOverdueSchedule, s.OverdueSchedule)
	assert.Equal(t, DefaultCleanupSchedule, s.CleanupSchedule)
	assert.Equal(t, 30, s.NotificationDays)
	assert.Equal(t, 90, s.AuditDays)

	s = SettingsFrom(config.Scheduler{ExpirySchedule: "*/5 * * * *", NotificationDays: 7}, config.Audit{RetentionDays: 365})
	assert.Equal(t, "*/5 * * * *", s.ExpirySchedule)
	assert.Equal(t, 7, s.NotificationDays)
	assert.Equal(t, 365, s.AuditDays)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateSchedule("0 9 * * 1-5"))
	assert.Error(t, ValidateSchedule("every morning"))
	assert.Error(t, ValidateSchedule("0 0 0 * * *"), "seconds field is not accepted")
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	next, err := NextRun("0 9 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)
}

func TestRunNowEnqueuesWhenQueueConfigured(t *testing.T) {
	q := &fakeQueue{}
	s := New(SettingsFrom(config.Scheduler{NotificationDays: 14}, config.Audit{}), q, Jobs{})

	require.NoError(t, s.RunNow("cleanup"))
	require.Len(t, q.tasks, 2)
	assert.Equal(t, tasks.CleanupNotificationsTask{OlderThanDays: 14}, q.tasks[0])
	assert.Equal(t, tasks.CleanupAuditEventsTask{RetentionDays: 90}, q.tasks[1])

	require.NoError(t, s.RunNow("expire_reservations"))
	assert.Equal(t, tasks.ExpireReservationsTask{}, q.tasks[2])
}

func TestRunNowInlineWithoutQueue(t *testing.T) {
	f := &fakeServices{}
	s := New(SettingsFrom(config.Scheduler{}, config.Audit{RetentionDays: 30}), nil, Jobs{
		Reservations:  f,
		Notifications: f,
		Audit:         auditCleaner{f},
	})

	require.NoError(t, s.RunNow("expire_reservations"))
	require.NoError(t, s.RunNow("overdue_reminders"))
	require.NoError(t, s.RunNow("cleanup"))

	assert.Equal(t, 1, f.expired)
	assert.Equal(t, 1, f.reminded)
	assert.Equal(t, 30*24*time.Hour, f.notificationMaxAge)
	assert.Equal(t, 30*24*time.Hour, f.auditMaxAge)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(SettingsFrom(config.Scheduler{}, config.Audit{}), nil, Jobs{})
	assert.Error(t, s.RunNow("reindex"))
}

func TestEnqueueFailureIsLogged(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue closed")}
	s := New(SettingsFrom(config.Scheduler{}, config.Audit{}), q, Jobs{})
	assert.NoError(t, s.RunNow("overdue_reminders"))
}

func TestStartStop(t *testing.T) {
	s := New(SettingsFrom(config.Scheduler{}, config.Audit{}), &fakeQueue{}, Jobs{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())

	runs := s.NextRuns()
	assert.Len(t, runs, 3)
	assert.False(t, runs["expire_reservations"].IsZero())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Empty(t, s.NextRuns())
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := New(Settings{ExpirySchedule: "bogus", OverdueSchedule: DefaultOverdueSchedule, CleanupSchedule: DefaultCleanupSchedule}, nil, Jobs{})
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "expire_reservations")
	assert.False(t, s.IsRunning())
}
