package entities

import "time"

type FeeType string

const (
	FeeTypeMembership FeeType = "MEMBERSHIP"
	FeeTypeLateReturn FeeType = "LATE_RETURN"
	FeeTypeDamage     FeeType = "DAMAGE"
	FeeTypeOther      FeeType = "OTHER"
)

func (t FeeType) IsValid() bool {
	switch t {
	case FeeTypeMembership, FeeTypeLateReturn, FeeTypeDamage, FeeTypeOther:
		return true
	}
	return false
}

type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusWaived  FeeStatus = "WAIVED"
)

func (s FeeStatus) IsValid() bool {
	return s == FeeStatusPending || s == FeeStatusPaid || s == FeeStatusWaived
}

// FeeTransaction is a charge against a member. Amounts are in cents.
type FeeTransaction struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index" json:"user_id"`
	Type          FeeType    `gorm:"size:20;index" json:"type"`
	AmountCents   int64      `json:"amount_cents"`
	Status        FeeStatus  `gorm:"size:20;index;default:'PENDING'" json:"status"`
	Reference     string     `gorm:"uniqueIndex;size:40" json:"reference"`
	Description   string     `gorm:"size:500" json:"description,omitempty"`
	ReservationID *uint      `gorm:"index" json:"reservation_id,omitempty"`
	RecordedByID  *uint      `json:"recorded_by_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	User          User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (FeeTransaction) TableName() string {
	return "fee_transactions"
}
