package entities

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleLibrarian UserRole = "LIBRARIAN"
	UserRoleMember    UserRole = "MEMBER"
	UserRoleGuest     UserRole = "GUEST"
)

// AllRoles lists every role, most privileged first.
var AllRoles = []UserRole{UserRoleAdmin, UserRoleLibrarian, UserRoleMember, UserRoleGuest}

// IsValid reports whether r is one of the known roles.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleLibrarian, UserRoleMember, UserRoleGuest:
		return true
	}
	return false
}

// IsStaff reports whether the role may manage the catalogue and circulation.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleLibrarian
}

// CanBorrow reports whether the role may reserve books and read digital copies.
func (r UserRole) CanBorrow() bool {
	return r == UserRoleMember || r.IsStaff()
}

type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;size:64" json:"username"`
	Email            string         `gorm:"uniqueIndex;size:255" json:"email"`
	FullName         string         `gorm:"size:200" json:"full_name,omitempty"`
	Phone            string         `gorm:"size:32" json:"phone,omitempty"`
	PasswordHash     string         `gorm:"size:100" json:"-"`
	Role             UserRole       `gorm:"size:20;index;default:'GUEST'" json:"role"`
	MembershipNumber string         `gorm:"size:32;index" json:"membership_number,omitempty"`
	TokenHash        string         `gorm:"index;size:64" json:"-"`
	TokenCreatedAt   *time.Time     `json:"-"`
	LastLoginAt      *time.Time     `json:"last_login_at,omitempty"`
	FailedLoginCount int            `gorm:"default:0" json:"-"`
	LockedUntil      *time.Time     `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
