package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrAuthRequired     = errors.New("authentication required")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters: letters, digits, dot, underscore or hyphen")
	ErrEmailInvalid     = errors.New("invalid email format")
	ErrSignupDisabled   = errors.New("self registration is disabled")
	ErrCannotDemoteSelf = errors.New("administrators cannot change their own role")
	ErrSetupCompleted   = errors.New("setup already completed")
)

// MembershipClaimer grants a membership that was approved before the
// applicant had an account. *services.MembershipService satisfies it.
type MembershipClaimer interface {
	ClaimApproved(ctx context.Context, user *entities.User) (*entities.User, error)
}

// Invalidator drops cached statistics after accounts change.
type Invalidator interface {
	Invalidate()
}

// Service handles authentication and user management.
type Service struct {
	db     *gorm.DB
	users  *users.Repository
	config config.Auth

	claimer MembershipClaimer
	cache   Invalidator
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		users:  users.NewRepository(db),
		config: cfg,
	}
}

// SetMembershipClaimer makes new accounts pick up approved applications
// filed under their email.
func (s *Service) SetMembershipClaimer(c MembershipClaimer) {
	s.claimer = c
}

// SetInvalidator registers the cache to clear after account changes.
func (s *Service) SetInvalidator(i Invalidator) {
	s.cache = i
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// Profile holds optional account details captured at registration.
type Profile struct {
	FullName string
	Phone    string
}

// CreateUser creates a new user with password authentication.
func (s *Service) CreateUser(username, email, password string, role entities.UserRole) (*entities.User, error) {
	return s.createUser(username, email, password, role, Profile{})
}

// Register is self sign-up. New accounts start as GUEST until a membership
// application is approved.
func (s *Service) Register(username, email, password string, profile Profile) (*entities.User, error) {
	if !s.config.AllowSignup {
		return nil, ErrSignupDisabled
	}
	return s.createUser(username, email, password, entities.UserRoleGuest, profile)
}

// SetupAdmin creates the first administrator. It fails once any user exists.
func (s *Service) SetupAdmin(username, email, password string) (*entities.User, error) {
	hasUsers, err := s.HasUsers()
	if err != nil {
		return nil, err
	}
	if hasUsers {
		return nil, ErrSetupCompleted
	}
	return s.CreateUser(username, email, password, entities.UserRoleAdmin)
}

func (s *Service) createUser(username, email, password string, role entities.UserRole, profile Profile) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 limit is 254
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, ErrEmailInvalid
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	var existing entities.User
	err := s.db.Where("username = ? OR LOWER(email) = ?", username, email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(profile.FullName),
		Phone:        strings.TrimSpace(profile.Phone),
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.invalidate()

	if s.claimer != nil {
		claimed, err := s.claimer.ClaimApproved(context.Background(), user)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("Failed to claim approved membership")
		} else {
			user = claimed
		}
	}
	return user, nil
}

// Authenticate validates credentials and returns the user. The login may be
// a username or an email address.
func (s *Service) Authenticate(login, password string) (*entities.User, error) {
	login = strings.TrimSpace(login)
	var user entities.User
	err := s.db.Where("username = ? OR LOWER(email) = ?", login, strings.ToLower(login)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(&user)
		return nil, err
	}

	now := time.Now()
	s.db.Model(&user).Updates(map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	return &user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(user *entities.User) {
	user.FailedLoginCount++

	updates := map[string]any{
		"failed_login_count": user.FailedLoginCount,
	}

	threshold := s.config.MaxLoginAttempts
	if threshold <= 0 {
		threshold = 5
	}
	if user.FailedLoginCount >= threshold {
		lockoutDuration := s.config.LockoutDuration
		if lockoutDuration == 0 {
			lockoutDuration = 30 * time.Minute
		}
		updates["locked_until"] = time.Now().Add(lockoutDuration)
	}

	s.db.Model(user).Updates(updates)
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetByID(id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// GetUserByTokenHash retrieves a user by their hashed API token.
func (s *Service) GetUserByTokenHash(tokenHash string) (*entities.User, error) {
	var user entities.User
	err := s.db.Where("token_hash = ?", tokenHash).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &user, nil
}

// ValidateToken checks a plaintext token and returns the associated user.
// Returns ErrTokenExpired if the token is past its expiry time.
func (s *Service) ValidateToken(token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.GetUserByTokenHash(HashToken(token))
	if err != nil {
		return nil, err
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if time.Since(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}
	return user, nil
}

// GenerateToken creates a new API token for a user.
// Returns the plaintext token (show to user once) - only the hash is stored in DB.
func (s *Service) GenerateToken(userID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	result := s.db.Model(&entities.User{}).Where("id = ?", userID).Updates(map[string]any{
		"token_hash":       hash,
		"token_created_at": time.Now(),
	})
	if result.Error != nil {
		return "", fmt.Errorf("failed to save token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrUserNotFound
	}
	return plaintext, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(userID uint) error {
	result := s.db.Model(&entities.User{}).Where("id = ?", userID).Updates(map[string]any{
		"token_hash":       "",
		"token_created_at": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	return nil
}

// ChangePassword updates a user's password after checking the current one.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}
	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password_hash", newHash).Error
}

// UpdateRole changes another user's role. An administrator may not change
// their own role, which keeps at least the acting admin in place.
func (s *Service) UpdateRole(actorID, userID uint, role entities.UserRole) (*entities.User, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if actorID == userID {
		return nil, ErrCannotDemoteSelf
	}
	if err := s.users.UpdateRole(userID, role); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.invalidate()
	return s.GetUserByID(userID)
}

// ListUsers returns accounts, optionally filtered by role.
func (s *Service) ListUsers(role entities.UserRole, limit, offset int) ([]entities.User, int64, error) {
	if role != "" && !role.IsValid() {
		return nil, 0, ErrInvalidRole
	}
	return s.users.List(role, limit, offset)
}

// UpdateProfile changes the caller's display details.
func (s *Service) UpdateProfile(userID uint, profile Profile) (*entities.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	err = s.db.Model(user).Updates(map[string]any{
		"full_name": strings.TrimSpace(profile.FullName),
		"phone":     strings.TrimSpace(profile.Phone),
	}).Error
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(userID)
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.GetUserCount()
	return count > 0, err
}

// GetUserCount returns the number of users in the database.
func (s *Service) GetUserCount() (int64, error) {
	var count int64
	err := s.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}
