package entities

import "time"

type BroadcastAudience string

const (
	BroadcastAudienceAll        BroadcastAudience = "ALL"
	BroadcastAudienceMembers    BroadcastAudience = "MEMBERS"
	BroadcastAudienceLibrarians BroadcastAudience = "LIBRARIANS"
	BroadcastAudienceAdmins     BroadcastAudience = "ADMINS"
	BroadcastAudienceCustom     BroadcastAudience = "CUSTOM"
)

func (a BroadcastAudience) IsValid() bool {
	switch a {
	case BroadcastAudienceAll, BroadcastAudienceMembers, BroadcastAudienceLibrarians,
		BroadcastAudienceAdmins, BroadcastAudienceCustom:
		return true
	}
	return false
}

// Roles returns the user roles an audience resolves to. CUSTOM resolves to none.
func (a BroadcastAudience) Roles() []UserRole {
	switch a {
	case BroadcastAudienceAll:
		return AllRoles
	case BroadcastAudienceMembers:
		return []UserRole{UserRoleMember}
	case BroadcastAudienceLibrarians:
		return []UserRole{UserRoleLibrarian}
	case BroadcastAudienceAdmins:
		return []UserRole{UserRoleAdmin}
	}
	return nil
}

type BroadcastStatus string

const (
	BroadcastStatusQueued  BroadcastStatus = "QUEUED"
	BroadcastStatusSending BroadcastStatus = "SENDING"
	BroadcastStatusSent    BroadcastStatus = "SENT"
	BroadcastStatusPartial BroadcastStatus = "PARTIAL"
	BroadcastStatusFailed  BroadcastStatus = "FAILED"
)

type EmailBroadcast struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Subject         string            `gorm:"size:255" json:"subject"`
	Body            string            `gorm:"type:text" json:"body"`
	Audience        BroadcastAudience `gorm:"size:20" json:"audience"`
	Recipients      string            `gorm:"type:text" json:"recipients,omitempty"` // comma separated, CUSTOM only
	DeliveryList    string            `gorm:"type:text" json:"-"`                    // resolved when sending starts
	Status          BroadcastStatus   `gorm:"size:20;index" json:"status"`
	TotalRecipients int               `json:"total_recipients"`
	SentCount       int               `json:"sent_count"`
	FailedCount     int               `json:"failed_count"`
	SentByID        uint              `json:"sent_by_id"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (EmailBroadcast) TableName() string {
	return "email_broadcasts"
}
