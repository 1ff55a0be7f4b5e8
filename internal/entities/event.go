package entities

import "time"

// Event is a library event (reading club, workshop, author talk).
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Location    string    `gorm:"size:200" json:"location,omitempty"`
	StartsAt    time.Time `gorm:"index" json:"starts_at"`
	EndsAt      time.Time `gorm:"index" json:"ends_at"`
	Capacity    int       `json:"capacity"`
	IsPublished bool      `gorm:"index" json:"is_published"`
	CreatedByID uint      `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

type GalleryItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:200" json:"title"`
	Caption      string    `gorm:"size:1000" json:"caption,omitempty"`
	FilePath     string    `gorm:"size:1024" json:"-"`
	ContentType  string    `gorm:"size:50" json:"content_type"`
	FileSize     int64     `json:"file_size"`
	UploadedByID uint      `json:"uploaded_by_id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (GalleryItem) TableName() string {
	return "gallery_items"
}
