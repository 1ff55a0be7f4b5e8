package entities

import "time"

type ChatMessage struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SenderID    uint       `gorm:"index:idx_chat_pair,priority:1" json:"sender_id"`
	RecipientID uint       `gorm:"index:idx_chat_pair,priority:2;index" json:"recipient_id"`
	Body        string     `gorm:"type:text" json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

type NotificationType string

const (
	NotificationTypeMembership  NotificationType = "membership"
	NotificationTypeReservation NotificationType = "reservation"
	NotificationTypeFee         NotificationType = "fee"
	NotificationTypeChat        NotificationType = "chat"
	NotificationTypeEvent       NotificationType = "event"
	NotificationTypeSystem      NotificationType = "system"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"index" json:"user_id"`
	Type      NotificationType `gorm:"size:30" json:"type"`
	Title     string           `gorm:"size:200" json:"title"`
	Message   string           `gorm:"size:1000" json:"message"`
	Link      string           `gorm:"size:500" json:"link,omitempty"`
	IsRead    bool             `gorm:"index;default:false" json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
