// Package users provides database operations for accounts and roles.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail("reader@example.com")
package users

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("user not found")

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetByEmail(email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *Repository) GetByUsername(username string) (*entities.User, error) {
	var user entities.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// GetByIDs loads users keyed by ID. Unknown IDs are skipped.
func (r *Repository) GetByIDs(ids []uint) (map[uint]entities.User, error) {
	out := make(map[uint]entities.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []entities.User
	if err := r.db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

// List returns users, optionally filtered by role, newest first.
func (r *Repository) List(role entities.UserRole, limit, offset int) ([]entities.User, int64, error) {
	var list []entities.User
	var total int64

	query := r.db.Model(&entities.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// ListByRoles returns every user holding one of the given roles.
func (r *Repository) ListByRoles(roles ...entities.UserRole) ([]entities.User, error) {
	var list []entities.User
	if len(roles) == 0 {
		return list, nil
	}
	err := r.db.Where("role IN ?", roles).Order("id ASC").Find(&list).Error
	return list, err
}

// CountByRole returns user totals keyed by role.
func (r *Repository) CountByRole() (map[entities.UserRole]int64, error) {
	type row struct {
		Role  entities.UserRole
		Count int64
	}
	var rows []row
	err := r.db.Model(&entities.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[entities.UserRole]int64, len(entities.AllRoles))
	for _, role := range entities.AllRoles {
		out[role] = 0
	}
	for _, rw := range rows {
		out[rw.Role] = rw.Count
	}
	return out, nil
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(id uint, role entities.UserRole) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PromoteToMember sets the MEMBER role and membership number in one update.
func (r *Repository) PromoteToMember(id uint, membershipNumber string) error {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Updates(map[string]any{
		"role":              entities.UserRoleMember,
		"membership_number": membershipNumber,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MembershipNumberExists reports whether the number is already assigned.
func (r *Repository) MembershipNumberExists(number string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Where("membership_number = ?", number).Count(&count).Error
	return count > 0, err
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
