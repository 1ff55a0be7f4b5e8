package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
)

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mail.Message
	failTo map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range msg.To {
		if m.failTo[to] {
			return errors.New("mailbox unavailable")
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) to(addr string) []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mail.Message
	for _, msg := range m.sent {
		for _, to := range msg.To {
			if to == addr {
				out = append(out, msg)
			}
		}
	}
	return out
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *fakeAuditor) Record(e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *fakeAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = string(e.EventType) + ":" + e.Action
	}
	return out
}

type countingCache struct{ n int }

func (c *countingCache) Invalidate() { c.n++ }

type testEnv struct {
	db      *gorm.DB
	deps    Deps
	mailer  *fakeMailer
	auditor *fakeAuditor
	events  *events.Recorder
	cache   *countingCache
	clock   time.Time
	notify  *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	renderer, err := mail.NewRenderer("Test Library", "http://library.test")
	require.NoError(t, err)

	env := &testEnv{
		db:      db,
		mailer:  &fakeMailer{failTo: map[string]bool{}},
		auditor: &fakeAuditor{},
		events:  &events.Recorder{},
		cache:   &countingCache{},
		clock:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	env.deps = Deps{
		DB: db,
		Library: config.Library{
			ReservationHold:       72 * time.Hour,
			LoanPeriod:            14 * 24 * time.Hour,
			MaxActiveReservations: 2,
			MembershipFeeCents:    5000,
			LateFeePerDayCents:    50,
		},
		Storage:   store,
		MaxUpload: 1 << 20,
		Mailer:    env.mailer,
		Renderer:  renderer,
		Publisher: env.events,
		Auditor:   env.auditor,
		Cache:     env.cache,
		Now:       func() time.Time { return env.clock },
	}
	env.notify = NewNotificationService(env.deps)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *testEnv) user(t *testing.T, username string, role entities.UserRole) *entities.User {
	t.Helper()
	u := &entities.User{Username: username, Email: username + "@example.com", FullName: username, Role: role}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) book(t *testing.T, title string, copies int) *entities.Book {
	t.Helper()
	b := &entities.Book{Title: title, Author: "Chinua Achebe", TotalCopies: copies, AvailableCopies: copies}
	require.NoError(t, e.db.Create(b).Error)
	return b
}

func (e *testEnv) reload(t *testing.T, dest any, id uint) {
	t.Helper()
	require.NoError(t, e.db.Unscoped().First(dest, id).Error)
}

func (e *testEnv) notificationsFor(t *testing.T, userID uint) []entities.Notification {
	t.Helper()
	list, _, err := e.notify.List(userID, false, 100, 0)
	require.NoError(t, err)
	return list
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ErrFeeNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrGuestChat, ErrForbidden)
	assert.ErrorIs(t, ErrAlreadyReserved, ErrConflict)
	assert.NotErrorIs(t, ErrAlreadyReserved, ErrNotFound)
	assert.Equal(t, "fee not found", ErrFeeNotFound.Error())
}

func TestDeps_NilCollaboratorsAreSkipped(t *testing.T) {
	d := Deps{}
	d.audit(audit.Entry{Action: "noop"})
	d.invalidate()
	d.publish(context.Background(), events.RKFeeRecorded, nil)
	d.email(context.Background(), mail.TemplateBroadcast, "a@example.com", "hi", nil)
	assert.False(t, d.now().IsZero())
}
