package entities

import (
	"time"

	"gorm.io/gorm"
)

type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"index;size:512" json:"title"`
	Author          string         `gorm:"index;size:256" json:"author"`
	ISBN            string         `gorm:"index;size:20" json:"isbn,omitempty"`
	Category        string         `gorm:"index;size:100" json:"category,omitempty"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	PublishedYear   int            `json:"published_year,omitempty"`
	TotalCopies     int            `json:"total_copies"`
	AvailableCopies int            `json:"available_copies"`
	IsDigital       bool           `gorm:"index;default:false" json:"is_digital"`
	FilePath        string         `gorm:"size:1024" json:"-"`
	FileSize        int64          `json:"file_size,omitempty"`
	PageCount       int            `json:"page_count,omitempty"`
	CoverPath       string         `gorm:"size:1024" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// HasCover reports whether a cover image is stored.
func (b Book) HasCover() bool {
	return b.CoverPath != ""
}

// HasFile reports whether a digital copy has been uploaded.
func (b Book) HasFile() bool {
	return b.FilePath != ""
}
