package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

type stubClaimer struct {
	seen []string
	err  error
}

func (s *stubClaimer) ClaimApproved(_ context.Context, user *entities.User) (*entities.User, error) {
	s.seen = append(s.seen, user.Email)
	if s.err != nil {
		return nil, s.err
	}
	promoted := *user
	promoted.Role = entities.UserRoleMember
	promoted.MembershipNumber = "LIB-2026-000042"
	return &promoted, nil
}

func TestService_AccountChangesInvalidateCache(t *testing.T) {
	svc := newTestService(t)
	cache := &countingInvalidator{}
	svc.SetInvalidator(cache)

	admin, err := svc.CreateUser("admin", "admin@example.com", "password123", entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.n)

	guest, err := svc.Register("visitor", "visitor@example.com", "password123", Profile{})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.n)

	_, err = svc.UpdateRole(admin.ID, guest.ID, entities.UserRoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.n)

	_, err = svc.UpdateRole(admin.ID, admin.ID, entities.UserRoleGuest)
	require.ErrorIs(t, err, ErrCannotDemoteSelf)
	assert.Equal(t, 3, cache.n, "rejected changes keep the cache")
}

func TestService_NewAccountsClaimApprovedMembership(t *testing.T) {
	svc := newTestService(t)
	claimer := &stubClaimer{}
	svc.SetMembershipClaimer(claimer)

	user, err := svc.Register("walkin", "Walkin@Example.com", "password123", Profile{})
	require.NoError(t, err)
	assert.Equal(t, []string{"walkin@example.com"}, claimer.seen)
	assert.Equal(t, entities.UserRoleMember, user.Role)
	assert.Equal(t, "LIB-2026-000042", user.MembershipNumber)

	claimer.err = errors.New("database is locked")
	user, err = svc.Register("second", "second@example.com", "password123", Profile{})
	require.NoError(t, err, "a failed claim does not undo the registration")
	assert.Equal(t, entities.UserRoleGuest, user.Role)
}
