// Package notifications stores per-user in-app notifications.
package notifications

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("notification not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(n *entities.Notification) error {
	return r.db.Create(n).Error
}

// CreateBatch inserts many notifications in chunks.
func (r *Repository) CreateBatch(list []entities.Notification) error {
	if len(list) == 0 {
		return nil
	}
	return r.db.CreateInBatches(list, 100).Error
}

// List returns a user's notifications, newest first, with the unpaginated total.
func (r *Repository) List(userID uint, unreadOnly bool, limit, offset int) ([]entities.Notification, int64, error) {
	var list []entities.Notification
	var total int64

	query := r.db.Model(&entities.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *Repository) UnreadCount(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&entities.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flags one notification as read. Notifications owned by someone
// else are reported as ErrNotFound.
func (r *Repository) MarkRead(userID, id uint, at time.Time) error {
	var n entities.Notification
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if n.IsRead {
		return nil
	}
	return r.db.Model(&n).Updates(map[string]any{"is_read": true, "read_at": at}).Error
}

// MarkAllRead flags every unread notification of the user.
func (r *Repository) MarkAllRead(userID uint, at time.Time) (int64, error) {
	result := r.db.Model(&entities.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}

func (r *Repository) Delete(userID, id uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReadBefore removes read notifications created before cutoff.
func (r *Repository) DeleteReadBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&entities.Notification{})
	return result.RowsAffected, result.Error
}
