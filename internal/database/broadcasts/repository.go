// Package broadcasts stores email broadcast runs.
package broadcasts

import (
	"errors"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("broadcast not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(b *entities.EmailBroadcast) error {
	return r.db.Create(b).Error
}

func (r *Repository) Save(b *entities.EmailBroadcast) error {
	return r.db.Save(b).Error
}

// SaveProgress stores the running counters of a broadcast being delivered.
func (r *Repository) SaveProgress(b *entities.EmailBroadcast) error {
	return r.db.Model(&entities.EmailBroadcast{}).Where("id = ?", b.ID).Updates(map[string]any{
		"sent_count":   b.SentCount,
		"failed_count": b.FailedCount,
	}).Error
}

func (r *Repository) GetByID(id uint) (*entities.EmailBroadcast, error) {
	var b entities.EmailBroadcast
	if err := r.db.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns broadcasts, newest first.
func (r *Repository) List(limit, offset int) ([]entities.EmailBroadcast, int64, error) {
	var list []entities.EmailBroadcast
	var total int64
	if err := r.db.Model(&entities.EmailBroadcast{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
