package events

import "time"

type MembershipSubmittedPayload struct {
	ApplicationID  uint   `json:"application_id"`
	Email          string `json:"email"`
	MembershipType string `json:"membership_type"`
	UserID         *uint  `json:"user_id,omitempty"`
}

type MembershipReviewedPayload struct {
	ApplicationID    uint   `json:"application_id"`
	Status           string `json:"status"`
	ReviewerID       uint   `json:"reviewer_id"`
	UserID           *uint  `json:"user_id,omitempty"`
	MembershipNumber string `json:"membership_number,omitempty"`
}

type ReservationPayload struct {
	ReservationID uint       `json:"reservation_id"`
	UserID        uint       `json:"user_id"`
	BookID        uint       `json:"book_id"`
	From          string     `json:"from,omitempty"`
	Status        string     `json:"status"`
	ActorID       uint       `json:"actor_id,omitempty"`
	DueAt         *time.Time `json:"due_at,omitempty"`
}

type FeePayload struct {
	FeeID       uint   `json:"fee_id"`
	UserID      uint   `json:"user_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

type BroadcastPayload struct {
	BroadcastID uint   `json:"broadcast_id"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
}

type NotificationPayload struct {
	NotificationID uint   `json:"notification_id"`
	UserID         uint   `json:"user_id"`
	Type           string `json:"type"`
}
