package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := testAuthConfig()
	cfg.MaxLoginAttempts = 3
	cfg.LockoutDuration = time.Minute
	return NewService(setupTestDB(t), cfg)
}

func TestService_CreateUser(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     entities.UserRole
		wantErr  error
	}{
		{"valid admin", "admin", "admin@example.com", "password123", entities.UserRoleAdmin, nil},
		{"valid librarian", "lib.one", "lib@example.com", "password123", entities.UserRoleLibrarian, nil},
		{"empty username", "", "x@example.com", "password123", entities.UserRoleGuest, ErrUsernameRequired},
		{"empty email", "nobody", "", "password123", entities.UserRoleGuest, ErrEmailRequired},
		{"empty password", "nobody", "n@example.com", "", entities.UserRoleGuest, ErrPasswordRequired},
		{"bad username", "a b", "ab@example.com", "password123", entities.UserRoleGuest, ErrUsernameInvalid},
		{"bad email", "nobody", "not-an-email", "password123", entities.UserRoleGuest, ErrEmailInvalid},
		{"short password", "nobody", "n@example.com", "short", entities.UserRoleGuest, ErrPasswordTooShort},
		{"bad role", "nobody", "n@example.com", "password123", entities.UserRole("OWNER"), ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.CreateUser(tt.username, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.Equal(t, tt.role, user.Role)
			assert.NotEqual(t, tt.password, user.PasswordHash)
		})
	}
}

func TestService_CreateUser_Duplicate(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateUser("reader", "reader@example.com", "password123", entities.UserRoleGuest)
	require.NoError(t, err)

	_, err = svc.CreateUser("reader", "other@example.com", "password123", entities.UserRoleGuest)
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateUser("other", "READER@example.com", "password123", entities.UserRoleGuest)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestService_Register(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Register("visitor", "Visitor@Example.com", "password123", Profile{FullName: " Ada Reader ", Phone: "555-0100"})
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleGuest, user.Role)
	assert.Equal(t, "visitor@example.com", user.Email)
	assert.Equal(t, "Ada Reader", user.FullName)

	svc.config.AllowSignup = false
	_, err = svc.Register("second", "second@example.com", "password123", Profile{})
	assert.ErrorIs(t, err, ErrSignupDisabled)
}

func TestService_SetupAdmin(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.SetupAdmin("root", "root@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleAdmin, user.Role)

	_, err = svc.SetupAdmin("root2", "root2@example.com", "password123")
	assert.ErrorIs(t, err, ErrSetupCompleted)
}

func TestService_Authenticate(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateUser("reader", "reader@example.com", "password123", entities.UserRoleMember)
	require.NoError(t, err)

	user, err := svc.Authenticate("reader", "password123")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)

	_, err = svc.Authenticate("Reader@Example.com", "password123")
	assert.NoError(t, err, "email login should be case-insensitive")

	_, err = svc.Authenticate("reader", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Authenticate("ghost", "password123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Authenticate_Lockout(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateUser("reader", "reader@example.com", "password123", entities.UserRoleMember)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Authenticate("reader", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}

	_, err = svc.Authenticate("reader", "password123")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestService_TokenOperations(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.CreateUser("api", "api@example.com", "password123", entities.UserRoleLibrarian)
	require.NoError(t, err)

	token, err := svc.GenerateToken(user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	validated, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, validated.ID)

	_, err = svc.ValidateToken("bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.RevokeToken(user.ID))
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_TokenExpiry(t *testing.T) {
	svc := newTestService(t)
	svc.config.TokenExpiry = time.Hour
	user, err := svc.CreateUser("api", "api@example.com", "password123", entities.UserRoleLibrarian)
	require.NoError(t, err)

	token, err := svc.GenerateToken(user.ID)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, svc.db.Model(&entities.User{}).Where("id = ?", user.ID).Update("token_created_at", past).Error)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestService_ChangePassword(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.CreateUser("reader", "reader@example.com", "password123", entities.UserRoleMember)
	require.NoError(t, err)

	err = svc.ChangePassword(user.ID, "wrong-password", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = svc.ChangePassword(user.ID, "password123", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	require.NoError(t, svc.ChangePassword(user.ID, "password123", "newpassword1"))
	_, err = svc.Authenticate("reader", "newpassword1")
	assert.NoError(t, err)
}

func TestService_UpdateRole(t *testing.T) {
	svc := newTestService(t)
	admin, err := svc.CreateUser("admin", "admin@example.com", "password123", entities.UserRoleAdmin)
	require.NoError(t, err)
	guest, err := svc.CreateUser("guest", "guest@example.com", "password123", entities.UserRoleGuest)
	require.NoError(t, err)

	updated, err := svc.UpdateRole(admin.ID, guest.ID, entities.UserRoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleLibrarian, updated.Role)

	_, err = svc.UpdateRole(admin.ID, admin.ID, entities.UserRoleMember)
	assert.ErrorIs(t, err, ErrCannotDemoteSelf)

	_, err = svc.UpdateRole(admin.ID, guest.ID, entities.UserRole("OWNER"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.UpdateRole(admin.ID, 9999, entities.UserRoleMember)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_UpdateProfileAndList(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.CreateUser("reader", "reader@example.com", "password123", entities.UserRoleMember)
	require.NoError(t, err)
	_, err = svc.CreateUser("guest", "guest@example.com", "password123", entities.UserRoleGuest)
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(user.ID, Profile{FullName: "Ada", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FullName)

	members, total, err := svc.ListUsers(entities.UserRoleMember, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, members, 1)

	_, _, err = svc.ListUsers(entities.UserRole("nope"), 10, 0)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_HasUsers(t *testing.T) {
	svc := newTestService(t)

	has, err := svc.HasUsers()
	require.NoError(t, err)
	assert.False(t, has)

	_, err = svc.CreateUser("admin", "admin@example.com", "password123", entities.UserRoleAdmin)
	require.NoError(t, err)

	has, err = svc.HasUsers()
	require.NoError(t, err)
	assert.True(t, has)
}
