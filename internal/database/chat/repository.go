// Package chat stores direct messages between users.
package chat

import (
	"time"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// ContactSummary is one row of a user's conversation list.
type ContactSummary struct {
	PeerID      uint
	LastID      uint
	UnreadCount int64
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(msg *entities.ChatMessage) error {
	return r.db.Create(msg).Error
}

// Conversation returns messages between two users with ID greater than
// afterID, in ascending ID order.
func (r *Repository) Conversation(userID, peerID, afterID uint, limit int) ([]entities.ChatMessage, error) {
	var list []entities.ChatMessage
	if limit <= 0 {
		limit = 100
	}
	err := r.db.Where(
		"((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND id > ?",
		userID, peerID, peerID, userID, afterID,
	).Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// MarkRead flags unread messages from peerID to userID with ID up to upToID
// as read.
func (r *Repository) MarkRead(userID, peerID, upToID uint, at time.Time) (int64, error) {
	result := r.db.Model(&entities.ChatMessage{}).
		Where("recipient_id = ? AND sender_id = ? AND id <= ? AND read_at IS NULL", userID, peerID, upToID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

// UnreadCount counts unread messages addressed to userID.
func (r *Repository) UnreadCount(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&entities.ChatMessage{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, err
}

// Contacts lists everyone userID has exchanged messages with, most recent
// conversation first.
func (r *Repository) Contacts(userID uint) ([]ContactSummary, error) {
	var rows []ContactSummary
	err := r.db.Model(&entities.ChatMessage{}).
		Select(`CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS peer_id,
			MAX(id) AS last_id,
			SUM(CASE WHEN recipient_id = ? AND read_at IS NULL THEN 1 ELSE 0 END) AS unread_count`, userID, userID).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Group("peer_id").
		Order("last_id DESC").
		Scan(&rows).Error
	return rows, err
}

// GetByIDs loads messages keyed by ID.
func (r *Repository) GetByIDs(ids []uint) (map[uint]entities.ChatMessage, error) {
	out := make(map[uint]entities.ChatMessage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []entities.ChatMessage
	if err := r.db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}
