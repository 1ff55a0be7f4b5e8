package entities

import "time"

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

type MembershipType string

const (
	MembershipTypeStandard MembershipType = "STANDARD"
	MembershipTypeStudent  MembershipType = "STUDENT"
	MembershipTypeSenior   MembershipType = "SENIOR"
	MembershipTypeFamily   MembershipType = "FAMILY"
)

func (t MembershipType) IsValid() bool {
	switch t {
	case MembershipTypeStandard, MembershipTypeStudent, MembershipTypeSenior, MembershipTypeFamily:
		return true
	}
	return false
}

// MembershipApplication is a request to become a library member.
// The unique index on Email is what keeps an applicant from filing twice.
type MembershipApplication struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	UserID         *uint             `gorm:"index" json:"user_id,omitempty"`
	FullName       string            `gorm:"size:200" json:"full_name"`
	Email          string            `gorm:"uniqueIndex;size:255" json:"email"`
	Phone          string            `gorm:"size:32" json:"phone"`
	Address        string            `gorm:"size:500" json:"address"`
	DateOfBirth    *time.Time        `json:"date_of_birth,omitempty"`
	IDNumber       string            `gorm:"size:64" json:"id_number,omitempty"`
	MembershipType MembershipType    `gorm:"size:20;default:'STANDARD'" json:"membership_type"`
	Motivation     string            `gorm:"type:text" json:"motivation,omitempty"`
	Status         ApplicationStatus `gorm:"size:20;index;default:'PENDING'" json:"status"`
	ReviewedByID   *uint             `json:"reviewed_by_id,omitempty"`
	ReviewNotes    string            `gorm:"type:text" json:"review_notes,omitempty"`
	ReviewedAt     *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (MembershipApplication) TableName() string {
	return "membership_applications"
}
