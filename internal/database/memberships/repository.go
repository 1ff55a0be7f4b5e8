// Package memberships stores membership applications.
package memberships

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var (
	ErrNotFound  = errors.New("membership application not found")
	ErrDuplicate = errors.New("an application for this email already exists")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an application. The unique index on email turns a second
// submission for the same address into ErrDuplicate.
func (r *Repository) Create(app *entities.MembershipApplication) error {
	app.Email = strings.ToLower(strings.TrimSpace(app.Email))
	if err := r.db.Create(app).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(id uint) (*entities.MembershipApplication, error) {
	var app entities.MembershipApplication
	if err := r.db.First(&app, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &app, nil
}

func (r *Repository) GetByEmail(email string) (*entities.MembershipApplication, error) {
	var app entities.MembershipApplication
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&app).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &app, nil
}

// ListForUser returns applications linked to a user or filed under their email.
func (r *Repository) ListForUser(userID uint, email string) ([]entities.MembershipApplication, error) {
	var list []entities.MembershipApplication
	err := r.db.Where("user_id = ? OR email = ?", userID, strings.ToLower(email)).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// List returns applications, optionally filtered by status, oldest first so
// reviewers work the queue in order.
func (r *Repository) List(status entities.ApplicationStatus, limit, offset int) ([]entities.MembershipApplication, int64, error) {
	var list []entities.MembershipApplication
	var total int64

	query := r.db.Model(&entities.MembershipApplication{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *Repository) CountByStatus(status entities.ApplicationStatus) (int64, error) {
	var n int64
	err := r.db.Model(&entities.MembershipApplication{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

// UpdateReview records a decision only while the application is still in
// fromStatus. It returns false when another reviewer got there first.
func (r *Repository) UpdateReview(app *entities.MembershipApplication, fromStatus entities.ApplicationStatus) (bool, error) {
	result := r.db.Model(&entities.MembershipApplication{}).
		Where("id = ? AND status = ?", app.ID, fromStatus).
		Updates(map[string]any{
			"status":         app.Status,
			"reviewed_by_id": app.ReviewedByID,
			"review_notes":   app.ReviewNotes,
			"reviewed_at":    app.ReviewedAt,
			"user_id":        app.UserID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// LinkUser attaches an application to an account. It only succeeds while the
// application has no account yet.
func (r *Repository) LinkUser(id, userID uint) (bool, error) {
	result := r.db.Model(&entities.MembershipApplication{}).
		Where("id = ? AND user_id IS NULL", id).
		Update("user_id", userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
