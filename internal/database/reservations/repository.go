// Package reservations stores book reservations and loans.
package reservations

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("reservation not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(res *entities.Reservation) error {
	return r.db.Omit(clause.Associations).Create(res).Error
}

// GetByID loads a reservation with its user and book.
func (r *Repository) GetByID(id uint) (*entities.Reservation, error) {
	var res entities.Reservation
	err := r.db.Preload("User").Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	}).First(&res, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Save persists reservation columns without touching the user or book rows.
func (r *Repository) Save(res *entities.Reservation) error {
	return r.db.Omit(clause.Associations).Save(res).Error
}

// UpdateStatus writes the workflow columns only while the row is still in
// from, so two staff members acting at once cannot both win.
func (r *Repository) UpdateStatus(res *entities.Reservation, from entities.ReservationStatus) (bool, error) {
	result := r.db.Model(&entities.Reservation{}).
		Where("id = ? AND status = ?", res.ID, from).
		Updates(map[string]any{
			"status":        res.Status,
			"notes":         res.Notes,
			"expires_at":    res.ExpiresAt,
			"collected_at":  res.CollectedAt,
			"due_at":        res.DueAt,
			"returned_at":   res.ReturnedAt,
			"handled_by_id": res.HandledByID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListForUser returns a member's reservations, newest first.
func (r *Repository) ListForUser(userID uint, activeOnly bool) ([]entities.Reservation, error) {
	var list []entities.Reservation
	query := r.db.Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	}).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("status IN ?", entities.ActiveReservationStatuses)
	}
	err := query.Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

// List returns reservations for staff, optionally filtered by status.
func (r *Repository) List(statuses []entities.ReservationStatus, limit, offset int) ([]entities.Reservation, int64, error) {
	var list []entities.Reservation
	var total int64

	query := r.db.Model(&entities.Reservation{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Preload("User").Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	}).Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// CountActiveForUser counts PENDING, APPROVED and COLLECTED reservations.
func (r *Repository) CountActiveForUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&entities.Reservation{}).
		Where("user_id = ? AND status IN ?", userID, entities.ActiveReservationStatuses).
		Count(&n).Error
	return n, err
}

// CountActiveForBook counts active reservations on a book across all users.
func (r *Repository) CountActiveForBook(bookID uint) (int64, error) {
	var n int64
	err := r.db.Model(&entities.Reservation{}).
		Where("book_id = ? AND status IN ?", bookID, entities.ActiveReservationStatuses).
		Count(&n).Error
	return n, err
}

// HasActiveForBook reports whether the user already holds an active
// reservation on the book.
func (r *Repository) HasActiveForBook(userID, bookID uint) (bool, error) {
	var n int64
	err := r.db.Model(&entities.Reservation{}).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID, entities.ActiveReservationStatuses).
		Count(&n).Error
	return n > 0, err
}

// CountByStatus returns totals for the given statuses combined.
func (r *Repository) CountByStatus(statuses ...entities.ReservationStatus) (int64, error) {
	var n int64
	err := r.db.Model(&entities.Reservation{}).Where("status IN ?", statuses).Count(&n).Error
	return n, err
}

// ListStaleApproved returns APPROVED reservations whose hold ran out before now.
func (r *Repository) ListStaleApproved(now time.Time) ([]entities.Reservation, error) {
	var list []entities.Reservation
	err := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", entities.ReservationStatusApproved, now).
		Order("expires_at ASC").
		Find(&list).Error
	return list, err
}

// ListOverdue returns COLLECTED loans past their due date.
func (r *Repository) ListOverdue(now time.Time, limit int) ([]entities.Reservation, error) {
	var list []entities.Reservation
	query := r.db.Preload("User").Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	}).Where("status = ? AND due_at IS NOT NULL AND due_at < ?", entities.ReservationStatusCollected, now).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&list).Error
	return list, err
}

func (r *Repository) CountOverdue(now time.Time) (int64, error) {
	var n int64
	err := r.db.Model(&entities.Reservation{}).
		Where("status = ? AND due_at IS NOT NULL AND due_at < ?", entities.ReservationStatusCollected, now).
		Count(&n).Error
	return n, err
}
