package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/chat"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

// MaxChatMessageLength is counted in characters after trimming.
const MaxChatMessageLength = 2000

var (
	ErrRecipientNotFound = newError(ErrNotFound, "recipient not found")
	ErrGuestChat         = newError(ErrForbidden, "guests may only message library staff")
)

// Contact is one entry of a user's conversation list.
type Contact struct {
	UserID      uint                 `json:"user_id"`
	Username    string               `json:"username"`
	Name        string               `json:"name"`
	Role        entities.UserRole    `json:"role"`
	LastMessage entities.ChatMessage `json:"last_message"`
	UnreadCount int64                `json:"unread_count"`
}

// ChatService is polled REST messaging between users.
type ChatService struct {
	deps          Deps
	notifications *NotificationService
	repo          *chat.Repository
	users         *users.Repository
}

func NewChatService(deps Deps, notifications *NotificationService) *ChatService {
	return &ChatService{
		deps:          deps,
		notifications: notifications,
		repo:          chat.NewRepository(deps.DB),
		users:         users.NewRepository(deps.DB),
	}
}

func (s *ChatService) Send(ctx context.Context, sender Actor, recipientID uint, body string) (*entities.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validation.Field("body", "is required")
	}
	if utf8.RuneCountInString(body) > MaxChatMessageLength {
		return nil, validation.Field("body", fmt.Sprintf("must be at most %d characters", MaxChatMessageLength))
	}
	if recipientID == 0 {
		return nil, validation.Field("recipient_id", "is required")
	}
	if recipientID == sender.ID {
		return nil, validation.Field("recipient_id", "cannot message yourself")
	}

	recipient, err := s.users.GetByID(recipientID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if sender.Role == entities.UserRoleGuest && !recipient.Role.IsStaff() {
		return nil, ErrGuestChat
	}

	msg := &entities.ChatMessage{
		SenderID:    sender.ID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   s.deps.now(),
	}
	if err := s.repo.Create(msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if s.notifications != nil {
		name := "Someone"
		if u, err := s.users.GetByID(sender.ID); err == nil {
			name = u.DisplayName()
		}
		_, _ = s.notifications.Notify(ctx, recipientID, entities.NotificationTypeChat,
			"New message from "+name, preview(body, 120), fmt.Sprintf("/chat/%d", sender.ID))
	}
	return msg, nil
}

// Conversation returns messages exchanged with peerID after the cursor and
// marks the peer's messages in the returned page as read.
func (s *ChatService) Conversation(userID, peerID, afterID uint, limit int) ([]entities.ChatMessage, error) {
	if _, err := s.users.GetByID(peerID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	list, err := s.repo.Conversation(userID, peerID, afterID, limit)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	// Pages are in ascending ID order.
	if _, err := s.repo.MarkRead(userID, peerID, list[len(list)-1].ID, s.deps.now()); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *ChatService) Contacts(userID uint) ([]Contact, error) {
	rows, err := s.repo.Contacts(userID)
	if err != nil {
		return nil, err
	}
	peerIDs := make([]uint, 0, len(rows))
	lastIDs := make([]uint, 0, len(rows))
	for _, r := range rows {
		peerIDs = append(peerIDs, r.PeerID)
		lastIDs = append(lastIDs, r.LastID)
	}
	peers, err := s.users.GetByIDs(peerIDs)
	if err != nil {
		return nil, err
	}
	last, err := s.repo.GetByIDs(lastIDs)
	if err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(rows))
	for _, r := range rows {
		peer, ok := peers[r.PeerID]
		if !ok {
			continue
		}
		out = append(out, Contact{
			UserID:      peer.ID,
			Username:    peer.Username,
			Name:        peer.DisplayName(),
			Role:        peer.Role,
			LastMessage: last[r.LastID],
			UnreadCount: r.UnreadCount,
		})
	}
	return out, nil
}

func (s *ChatService) UnreadCount(userID uint) (int64, error) {
	return s.repo.UnreadCount(userID)
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
