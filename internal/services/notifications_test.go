package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
)

func TestNotifications_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", entities.UserRoleMember)
	bob := env.user(t, "bob", entities.UserRoleMember)
	svc := env.notify
	ctx := context.Background()

	n1, err := svc.Notify(ctx, alice.ID, entities.NotificationTypeSystem, "Welcome", "Glad to have you", "/")
	require.NoError(t, err)
	_, err = svc.Notify(ctx, alice.ID, entities.NotificationTypeFee, "Fee", "You owe $1.00", "/fees")
	require.NoError(t, err)
	assert.Equal(t, []string{events.RKNotificationCreated, events.RKNotificationCreated}, env.events.Keys())

	count, err := svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, svc.MarkRead(bob.ID, n1.ID), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(alice.ID, n1.ID))

	unread, total, err := svc.List(alice.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Fee", unread[0].Title)

	n, err := svc.MarkAllRead(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, svc.Delete(bob.ID, n1.ID), ErrNotificationNotFound)
	require.NoError(t, svc.Delete(alice.ID, n1.ID))

	env.advance(31 * 24 * time.Hour)
	removed, err := svc.CleanupRead(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestNotifications_NotifyRoles(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "admin", entities.UserRoleAdmin)
	env.user(t, "librarian", entities.UserRoleLibrarian)
	env.user(t, "member", entities.UserRoleMember)

	n, err := env.notify.NotifyRoles(context.Background(), []entities.UserRole{entities.UserRoleMember}, entities.NotificationTypeEvent, "Story hour", "Saturday 10am", "/events")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = env.notify.NotifyRoles(context.Background(), nil, entities.NotificationTypeEvent, "Nobody", "", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
