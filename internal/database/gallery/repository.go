// Package gallery stores gallery image metadata. Files live in storage.
package gallery

import (
	"errors"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("gallery item not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(item *entities.GalleryItem) error {
	return r.db.Create(item).Error
}

func (r *Repository) GetByID(id uint) (*entities.GalleryItem, error) {
	var item entities.GalleryItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// List returns gallery items, newest first.
func (r *Repository) List(limit, offset int) ([]entities.GalleryItem, int64, error) {
	var list []entities.GalleryItem
	var total int64
	if err := r.db.Model(&entities.GalleryItem{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.GalleryItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
