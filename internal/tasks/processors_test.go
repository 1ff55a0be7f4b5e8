package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
)

type recordingMailer struct {
	sent chan mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent <- msg
	return nil
}

type fakeDeliverer struct {
	ids []uint
	err error
}

func (f *fakeDeliverer) Deliver(_ context.Context, id uint) (*entities.EmailBroadcast, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return nil, f.err
	}
	return &entities.EmailBroadcast{ID: id, Status: entities.BroadcastStatusSent, SentCount: 3}, nil
}

type fakeMaintainer struct {
	expiredAt  time.Time
	remindedAt time.Time
	err        error
}

func (f *fakeMaintainer) ExpireStale(_ context.Context, now time.Time) (int, error) {
	f.expiredAt = now
	return 2, f.err
}

func (f *fakeMaintainer) RemindOverdue(_ context.Context, now time.Time) (int, error) {
	f.remindedAt = now
	return 1, f.err
}

type fakeCleaner struct {
	olderThan time.Duration
}

func (f *fakeCleaner) CleanupRead(olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 5, nil
}

func (f *fakeCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	f.olderThan = retention
	return 7, nil
}

func TestQueueConfigs(t *testing.T) {
	assert.Equal(t, "send_email", SendEmailTask{}.Config().Name)
	assert.Equal(t, 5, SendEmailTask{}.Config().MaxAttempts)
	assert.Equal(t, "broadcast_email", BroadcastEmailTask{}.Config().Name)
	assert.Equal(t, 2, BroadcastEmailTask{}.Config().MaxAttempts)
	assert.Equal(t, "expire_reservations", ExpireReservationsTask{}.Config().Name)
	assert.Equal(t, "overdue_reminders", OverdueRemindersTask{}.Config().Name)
	assert.Equal(t, 1, OverdueRemindersTask{}.Config().MaxAttempts, "reminders are not retried")
	assert.Equal(t, "cleanup_notifications", CleanupNotificationsTask{}.Config().Name)
	assert.Equal(t, "cleanup_audit_events", CleanupAuditEventsTask{}.Config().Name)
	assert.NotNil(t, SendEmailTask{}.Config().Retention)
}

func TestSendEmailProcessor(t *testing.T) {
	m := &recordingMailer{sent: make(chan mail.Message, 1)}
	err := SendEmailProcessor(m)(context.Background(), SendEmailTask{To: []string{"a@example.com"}, Subject: "Hi", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", (<-m.sent).Subject)

	failing := &recordingMailer{err: errors.New("smtp down")}
	err = SendEmailProcessor(failing)(context.Background(), SendEmailTask{To: []string{"a@example.com"}, Subject: "Hi"})
	assert.ErrorContains(t, err, "smtp down")

	err = SendEmailProcessor(nil)(context.Background(), SendEmailTask{})
	assert.Error(t, err)
}

func TestBroadcastEmailProcessor(t *testing.T) {
	d := &fakeDeliverer{}
	require.NoError(t, BroadcastEmailProcessor(d)(context.Background(), BroadcastEmailTask{BroadcastID: 9}))
	assert.Equal(t, []uint{9}, d.ids)

	d.err = errors.New("not found")
	assert.Error(t, BroadcastEmailProcessor(d)(context.Background(), BroadcastEmailTask{BroadcastID: 10}))
}

func TestMaintenanceProcessors(t *testing.T) {
	m := &fakeMaintainer{}
	require.NoError(t, ExpireReservationsProcessor(m)(context.Background(), ExpireReservationsTask{}))
	require.NoError(t, OverdueRemindersProcessor(m)(context.Background(), OverdueRemindersTask{}))
	assert.False(t, m.expiredAt.IsZero())
	assert.False(t, m.remindedAt.IsZero())

	m.err = errors.New("db locked")
	assert.Error(t, ExpireReservationsProcessor(m)(context.Background(), ExpireReservationsTask{}))

	assert.Error(t, ExpireReservationsProcessor(nil)(context.Background(), ExpireReservationsTask{}))
}

func TestCleanupProcessorsDefaultRetention(t *testing.T) {
	c := &fakeCleaner{}
	require.NoError(t, CleanupNotificationsProcessor(c)(context.Background(), CleanupNotificationsTask{}))
	assert.Equal(t, 30*24*time.Hour, c.olderThan)

	require.NoError(t, CleanupNotificationsProcessor(c)(context.Background(), CleanupNotificationsTask{OlderThanDays: 7}))
	assert.Equal(t, 7*24*time.Hour, c.olderThan)

	require.NoError(t, CleanupAuditEventsProcessor(c)(context.Background(), CleanupAuditEventsTask{}))
	assert.Equal(t, 90*24*time.Hour, c.olderThan)
}

type brokenCleaner struct{}

func (brokenCleaner) DeleteOldEvents(time.Duration) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestCleanupProcessorsReportFailures(t *testing.T) {
	err := CleanupAuditEventsProcessor(brokenCleaner{})(context.Background(), CleanupAuditEventsTask{RetentionDays: 10})
	assert.ErrorContains(t, err, "cleanup audit events: database is locked")

	assert.Error(t, CleanupAuditEventsProcessor(nil)(context.Background(), CleanupAuditEventsTask{}))
	assert.Error(t, CleanupNotificationsProcessor(nil)(context.Background(), CleanupNotificationsTask{}))
}
