package entities

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusApproved  ReservationStatus = "APPROVED"
	ReservationStatusCollected ReservationStatus = "COLLECTED"
	ReservationStatusReturned  ReservationStatus = "RETURNED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusRejected  ReservationStatus = "REJECTED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// ActiveReservationStatuses are the statuses that count against a member's limit.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusApproved,
	ReservationStatusCollected,
}

func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusApproved, ReservationStatusCollected,
		ReservationStatusReturned, ReservationStatusCancelled, ReservationStatusRejected,
		ReservationStatusExpired:
		return true
	}
	return false
}

func (s ReservationStatus) IsActive() bool {
	for _, a := range ActiveReservationStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"index" json:"user_id"`
	BookID      uint              `gorm:"index" json:"book_id"`
	Status      ReservationStatus `gorm:"size:20;index;default:'PENDING'" json:"status"`
	Notes       string            `gorm:"size:500" json:"notes,omitempty"`
	ReservedAt  time.Time         `json:"reserved_at"`
	ExpiresAt   *time.Time        `gorm:"index" json:"expires_at,omitempty"`
	CollectedAt *time.Time        `json:"collected_at,omitempty"`
	DueAt       *time.Time        `gorm:"index" json:"due_at,omitempty"`
	ReturnedAt  *time.Time        `json:"returned_at,omitempty"`
	HandledByID *uint             `json:"handled_by_id,omitempty"`
	User        User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book        Book              `gorm:"foreignKey:BookID" json:"book,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}
