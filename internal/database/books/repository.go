// Package books provides catalogue queries and copy accounting.
package books

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var (
	ErrNotFound     = errors.New("book not found")
	ErrNoCopiesLeft = errors.New("no copies available")
)

// Filter narrows catalogue listings. Zero values match everything.
type Filter struct {
	Search      string
	Category    string
	DigitalOnly bool
	Available   bool
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(book *entities.Book) error {
	return r.db.Create(book).Error
}

// Save writes every column of an existing book.
func (r *Repository) Save(book *entities.Book) error {
	return r.db.Save(book).Error
}

func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &book, nil
}

// SetCover stores the cover image path; an empty path removes it.
func (r *Repository) SetCover(id uint, path string) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Update("cover_path", path)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&entities.Book{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns books matching f ordered by title, with the unpaginated total.
func (r *Repository) List(f Filter, limit, offset int) ([]entities.Book, int64, error) {
	var list []entities.Book
	var total int64

	query := r.db.Model(&entities.Book{})
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR isbn = ?", pattern, pattern, s)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.DigitalOnly {
		query = query.Where("is_digital = ?", true)
	}
	if f.Available {
		query = query.Where("available_copies > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("title ASC, id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// Categories returns the distinct non-empty categories, sorted.
func (r *Repository) Categories() ([]string, error) {
	var out []string
	err := r.db.Model(&entities.Book{}).
		Where("category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &out).Error
	return out, err
}

// LowStock returns books with at most threshold copies on the shelf.
func (r *Repository) LowStock(threshold, limit int) ([]entities.Book, error) {
	var list []entities.Book
	if limit <= 0 {
		limit = 10
	}
	err := r.db.Where("available_copies <= ? AND total_copies > 0", threshold).
		Order("available_copies ASC, title ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// Count returns the number of catalogue entries.
func (r *Repository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&entities.Book{}).Count(&n).Error
	return n, err
}

// ReserveCopy takes one copy off the shelf. The guard in the WHERE clause keeps
// concurrent approvals from driving the count below zero.
func (r *Repository) ReserveCopy(id uint) error {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return ErrNoCopiesLeft
	}
	return nil
}

// RestoreCopy puts one copy back, never exceeding the total.
func (r *Repository) RestoreCopy(id uint) error {
	return r.db.Model(&entities.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1")).Error
}

// AttachFile records the stored digital copy.
func (r *Repository) AttachFile(id uint, path string, size int64, pages int) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(map[string]any{
		"file_path":  path,
		"file_size":  size,
		"page_count": pages,
		"is_digital": true,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
