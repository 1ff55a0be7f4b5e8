package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func TestDashboard_AdminCachesUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "admin", entities.UserRoleAdmin)
	env.user(t, "member", entities.UserRoleMember)
	dash := NewDashboardService(env.deps, 16, time.Hour)

	first, err := dash.Admin()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.UsersByRole[entities.UserRoleMember])
	assert.Equal(t, int64(0), first.UsersByRole[entities.UserRoleLibrarian])

	env.user(t, "member2", entities.UserRoleMember)
	cached, err := dash.Admin()
	require.NoError(t, err)
	assert.Same(t, first, cached)

	dash.Invalidate()
	fresh, err := dash.Admin()
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.UsersByRole[entities.UserRoleMember])
}

func TestDashboard_ServicesInvalidateTheCache(t *testing.T) {
	env := newTestEnv(t)
	dash := NewDashboardService(env.deps, 16, time.Hour)
	env.deps.Cache = dash
	member := env.user(t, "member", entities.UserRoleMember)
	librarian := env.user(t, "librarian", entities.UserRoleLibrarian)
	book := env.book(t, "Efuru", 1)
	reservations := NewReservationService(env.deps, NewNotificationService(env.deps))
	ctx := context.Background()

	before, err := dash.Librarian()
	require.NoError(t, err)
	assert.Zero(t, before.PendingCount)
	require.Len(t, before.LowStock, 1)

	res, err := reservations.Create(ctx, member.ID, book.ID, "")
	require.NoError(t, err)

	after, err := dash.Librarian()
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.PendingCount)

	_, err = reservations.Transition(ctx, Actor{ID: librarian.ID, Role: librarian.Role}, res.ID, entities.ReservationStatusApproved, "")
	require.NoError(t, err)
	admin, err := dash.Admin()
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.ActiveReservations)
}

func TestDashboard_MemberReadsCountersLive(t *testing.T) {
	env := newTestEnv(t)
	member := env.user(t, "member", entities.UserRoleMember)
	staff := env.user(t, "librarian", entities.UserRoleLibrarian)
	dash := NewDashboardService(env.deps, 16, time.Hour)
	chat := NewChatService(env.deps, env.notify)

	require.NoError(t, env.db.Create(&entities.FeeTransaction{
		UserID: member.ID, Type: entities.FeeTypeOther, AmountCents: 250,
		Status: entities.FeeStatusPending, Reference: "FEE-TEST0001",
	}).Error)

	d, err := dash.Member(member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), d.UnpaidTotalCents)
	assert.Zero(t, d.UnreadMessages)

	_, err = chat.Send(context.Background(), Actor{ID: staff.ID, Role: staff.Role}, member.ID, "Your hold is ready")
	require.NoError(t, err)

	d, err = dash.Member(member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.UnreadMessages)
	assert.Equal(t, int64(1), d.UnreadNotifications)
}
