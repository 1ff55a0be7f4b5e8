// Package events stores library events such as reading clubs and talks.
package events

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("event not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(e *entities.Event) error {
	return r.db.Create(e).Error
}

func (r *Repository) Save(e *entities.Event) error {
	return r.db.Save(e).Error
}

func (r *Repository) GetByID(id uint) (*entities.Event, error) {
	var e entities.Event
	if err := r.db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.Event{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUpcoming returns events that have not ended yet, soonest first.
// Unpublished events are included only when includeDrafts is set.
func (r *Repository) ListUpcoming(now time.Time, includeDrafts bool, limit int) ([]entities.Event, error) {
	var list []entities.Event
	query := r.db.Where("ends_at >= ?", now)
	if !includeDrafts {
		query = query.Where("is_published = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("starts_at ASC").Find(&list).Error
	return list, err
}

// ListAll returns every event, latest first.
func (r *Repository) ListAll(limit, offset int) ([]entities.Event, int64, error) {
	var list []entities.Event
	var total int64
	if err := r.db.Model(&entities.Event{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := r.db.Order("starts_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
