package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/fees"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/memberships"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

var (
	ErrApplicationNotFound  = newError(ErrNotFound, "membership application not found")
	ErrDuplicateApplication = newError(ErrConflict, "an application with this email already exists")
	ErrApplicationReviewed  = newError(ErrConflict, "application has already been reviewed")
)

// ApplicationInput is the membership form.
type ApplicationInput struct {
	FullName       string                  `json:"full_name" validate:"required,max=200"`
	Email          string                  `json:"email" validate:"required,email,max=255"`
	Phone          string                  `json:"phone" validate:"required,max=32"`
	Address        string                  `json:"address" validate:"required,max=500"`
	DateOfBirth    string                  `json:"date_of_birth" validate:"max=40"`
	IDNumber       string                  `json:"id_number" validate:"max=64"`
	MembershipType entities.MembershipType `json:"membership_type" validate:"required,oneof=STANDARD STUDENT SENIOR FAMILY"`
	Motivation     string                  `json:"motivation" validate:"max=2000"`
}

func (in *ApplicationInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.IDNumber = strings.TrimSpace(in.IDNumber)
	in.Motivation = strings.TrimSpace(in.Motivation)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.MembershipType = entities.MembershipType(strings.ToUpper(strings.TrimSpace(string(in.MembershipType))))
}

// birthDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func (in *ApplicationInput) birthDate(now time.Time) (*time.Time, error) {
	if in.DateOfBirth == "" {
		return nil, nil
	}
	dob, err := time.Parse(time.DateOnly, in.DateOfBirth)
	if err != nil {
		if dob, err = time.Parse(time.RFC3339, in.DateOfBirth); err != nil {
			return nil, validation.Field("date_of_birth", "must be a date (YYYY-MM-DD)")
		}
	}
	dob = dob.UTC()
	if dob.After(now) {
		return nil, validation.Field("date_of_birth", "must not be in the future")
	}
	return &dob, nil
}

// ApplicationStatusView is what the public status lookup reveals.
type ApplicationStatusView struct {
	Status      entities.ApplicationStatus `json:"status"`
	SubmittedAt time.Time                  `json:"submitted_at"`
	ReviewedAt  *time.Time                 `json:"reviewed_at,omitempty"`
}

// ReviewResult is the outcome of a membership decision.
type ReviewResult struct {
	Application      *entities.MembershipApplication `json:"application"`
	MembershipNumber string                          `json:"membership_number,omitempty"`
	Fee              *entities.FeeTransaction        `json:"fee,omitempty"`
	UserID           *uint                           `json:"user_id,omitempty"`
}

// MembershipService handles applications and their review.
type MembershipService struct {
	deps          Deps
	notifications *NotificationService
	repo          *memberships.Repository
	users         *users.Repository
}

func NewMembershipService(deps Deps, notifications *NotificationService) *MembershipService {
	return &MembershipService{
		deps:          deps,
		notifications: notifications,
		repo:          memberships.NewRepository(deps.DB),
		users:         users.NewRepository(deps.DB),
	}
}

// Submit files a new application. userID is 0 for anonymous applicants.
func (s *MembershipService) Submit(ctx context.Context, userID uint, in ApplicationInput) (*entities.MembershipApplication, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	dob, err := in.birthDate(s.deps.now())
	if err != nil {
		return nil, err
	}

	app := &entities.MembershipApplication{
		FullName:       in.FullName,
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		DateOfBirth:    dob,
		IDNumber:       in.IDNumber,
		MembershipType: in.MembershipType,
		Motivation:     in.Motivation,
		Status:         entities.ApplicationStatusPending,
	}
	if userID != 0 {
		app.UserID = ptr(userID)
	}

	if err := s.repo.Create(app); err != nil {
		if errors.Is(err, memberships.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, fmt.Errorf("failed to save application: %w", err)
	}

	s.deps.email(ctx, mail.TemplateMembershipReceived, app.Email, "We received your membership application", mail.MembershipData{
		FullName:       app.FullName,
		Email:          app.Email,
		MembershipType: string(app.MembershipType),
		SubmittedAt:    app.CreatedAt.Format("2 January 2006"),
	})
	if s.notifications != nil {
		s.notifications.NotifyStaff(ctx, entities.NotificationTypeMembership,
			"New membership application",
			fmt.Sprintf("%s applied for a %s membership.", app.FullName, strings.ToLower(string(app.MembershipType))),
			fmt.Sprintf("/admin/membership/applications/%d", app.ID))
	}
	s.deps.audit(audit.Entry{
		ActorID:     userID,
		EventType:   entities.AuditEventMembership,
		Action:      "submit",
		Description: "Membership application submitted by " + app.Email,
		EntityType:  "membership_application",
		EntityID:    app.ID,
	})
	s.deps.publish(ctx, events.RKMembershipSubmitted, events.MembershipSubmittedPayload{
		ApplicationID:  app.ID,
		Email:          app.Email,
		MembershipType: string(app.MembershipType),
		UserID:         app.UserID,
	})
	s.deps.invalidate()

	return app, nil
}

// Status is the public lookup by email.
func (s *MembershipService) Status(email string) (*ApplicationStatusView, error) {
	email = strings.TrimSpace(email)
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	app, err := s.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, memberships.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &ApplicationStatusView{Status: app.Status, SubmittedAt: app.CreatedAt, ReviewedAt: app.ReviewedAt}, nil
}

// Mine lists applications linked to the user or filed under their email.
func (s *MembershipService) Mine(userID uint) ([]entities.MembershipApplication, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.repo.ListForUser(userID, user.Email)
}

func (s *MembershipService) List(status entities.ApplicationStatus, limit, offset int) ([]entities.MembershipApplication, int64, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, validation.Field("status", "must be one of: PENDING APPROVED REJECTED")
	}
	return s.repo.List(status, limit, offset)
}

func (s *MembershipService) Get(id uint) (*entities.MembershipApplication, error) {
	app, err := s.repo.GetByID(id)
	if errors.Is(err, memberships.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

// Review approves or rejects a PENDING application. Approval promotes the
// applicant's account (linked, or matched by email) to MEMBER, assigns a
// membership number and records the membership fee.
func (s *MembershipService) Review(ctx context.Context, id, reviewerID uint, decision entities.ApplicationStatus, notes string) (*ReviewResult, error) {
	notes = strings.TrimSpace(notes)
	decision = entities.ApplicationStatus(strings.ToUpper(strings.TrimSpace(string(decision))))
	if decision != entities.ApplicationStatusApproved && decision != entities.ApplicationStatusRejected {
		return nil, validation.Field("status", "must be one of: APPROVED REJECTED")
	}
	if decision == entities.ApplicationStatusRejected && notes == "" {
		return nil, validation.Field("notes", "is required when rejecting an application")
	}

	app, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if app.Status != entities.ApplicationStatusPending {
		return nil, ErrApplicationReviewed
	}

	now := s.deps.now()
	result := &ReviewResult{Application: app}
	var applicant *entities.User

	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		txUsers := users.NewRepository(tx)

		applicant, err = s.findApplicant(txUsers, app)
		if err != nil {
			return err
		}
		if applicant != nil {
			app.UserID = ptr(applicant.ID)
		}

		app.Status = decision
		app.ReviewedByID = ptr(reviewerID)
		app.ReviewNotes = notes
		app.ReviewedAt = &now
		ok, err := memberships.NewRepository(tx).UpdateReview(app, entities.ApplicationStatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return ErrApplicationReviewed
		}

		if decision != entities.ApplicationStatusApproved || applicant == nil {
			return nil
		}

		result.MembershipNumber, result.Fee, err = s.grantMembership(tx, app, applicant, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.UserID = app.UserID

	s.afterReview(ctx, app, applicant, result)
	return result, nil
}

// grantMembership promotes a GUEST applicant to MEMBER, assigns a membership
// number when the account has none and records the membership fee.
func (s *MembershipService) grantMembership(tx *gorm.DB, app *entities.MembershipApplication, applicant *entities.User, now time.Time) (string, *entities.FeeTransaction, error) {
	txUsers := users.NewRepository(tx)
	number := applicant.MembershipNumber
	var err error
	if number == "" {
		if number, err = generateMembershipNumber(txUsers, now); err != nil {
			return "", nil, err
		}
	}
	if applicant.Role == entities.UserRoleGuest {
		err = txUsers.PromoteToMember(applicant.ID, number)
	} else {
		err = tx.Model(&entities.User{}).Where("id = ?", applicant.ID).Update("membership_number", number).Error
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to promote applicant: %w", err)
	}

	if s.deps.Library.MembershipFeeCents <= 0 {
		return number, nil, nil
	}
	fee := &entities.FeeTransaction{
		UserID:       applicant.ID,
		Type:         entities.FeeTypeMembership,
		AmountCents:  s.deps.Library.MembershipFeeCents,
		Status:       entities.FeeStatusPending,
		Reference:    newFeeReference(),
		Description:  "Membership fee (" + strings.ToLower(string(app.MembershipType)) + ")",
		RecordedByID: app.ReviewedByID,
	}
	if err := fees.NewRepository(tx).Create(fee); err != nil {
		return "", nil, fmt.Errorf("failed to record membership fee: %w", err)
	}
	return number, fee, nil
}

// ClaimApproved links a newly created account to an application that was
// approved before the applicant registered, and grants the membership then.
// The user is returned unchanged when there is nothing to claim.
func (s *MembershipService) ClaimApproved(ctx context.Context, user *entities.User) (*entities.User, error) {
	app, err := s.repo.GetByEmail(user.Email)
	if errors.Is(err, memberships.ErrNotFound) {
		return user, nil
	}
	if err != nil {
		return user, err
	}
	if app.Status != entities.ApplicationStatusApproved || app.UserID != nil {
		return user, nil
	}

	result := &ReviewResult{Application: app}
	err = s.deps.DB.Transaction(func(tx *gorm.DB) error {
		linked, err := memberships.NewRepository(tx).LinkUser(app.ID, user.ID)
		if err != nil {
			return err
		}
		if !linked {
			return ErrApplicationReviewed
		}
		result.MembershipNumber, result.Fee, err = s.grantMembership(tx, app, user, s.deps.now())
		return err
	})
	if errors.Is(err, ErrApplicationReviewed) {
		return user, nil
	}
	if err != nil {
		return user, fmt.Errorf("failed to claim membership: %w", err)
	}
	app.UserID = ptr(user.ID)

	if s.notifications != nil {
		_, _ = s.notifications.Notify(ctx, user.ID, entities.NotificationTypeMembership, "Membership approved",
			"Welcome! Your membership number is "+result.MembershipNumber+".", "/membership")
	}
	s.deps.audit(audit.Entry{
		ActorID:     user.ID,
		EventType:   entities.AuditEventMembership,
		Action:      "claim",
		Description: fmt.Sprintf("Application %d for %s linked to new account", app.ID, app.Email),
		EntityType:  "membership_application",
		EntityID:    app.ID,
		Metadata:    map[string]any{"membership_number": result.MembershipNumber},
	})
	if result.Fee != nil {
		s.deps.publish(ctx, events.RKFeeRecorded, feePayload(result.Fee))
	}
	s.deps.invalidate()

	claimed, err := s.users.GetByID(user.ID)
	if err != nil {
		return user, err
	}
	return claimed, nil
}

// findApplicant returns the linked account, or an account with the same
// email, or nil when the applicant has not registered.
func (s *MembershipService) findApplicant(repo *users.Repository, app *entities.MembershipApplication) (*entities.User, error) {
	if app.UserID != nil {
		u, err := repo.GetByID(*app.UserID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, users.ErrNotFound) {
			return nil, err
		}
	}
	u, err := repo.GetByEmail(app.Email)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *MembershipService) afterReview(ctx context.Context, app *entities.MembershipApplication, applicant *entities.User, result *ReviewResult) {
	approved := app.Status == entities.ApplicationStatusApproved

	data := mail.MembershipData{
		FullName:         app.FullName,
		Email:            app.Email,
		MembershipType:   string(app.MembershipType),
		MembershipNumber: result.MembershipNumber,
		Notes:            app.ReviewNotes,
	}
	if result.Fee != nil {
		data.Fee = formatCents(result.Fee.AmountCents)
	}
	if approved {
		s.deps.email(ctx, mail.TemplateMembershipApproved, app.Email, "Your membership has been approved", data)
	} else {
		s.deps.email(ctx, mail.TemplateMembershipRejected, app.Email, "Your membership application", data)
	}

	if applicant != nil && s.notifications != nil {
		title, msg := "Membership approved", "Welcome! Your membership number is "+result.MembershipNumber+"."
		if !approved {
			title, msg = "Membership application declined", app.ReviewNotes
		}
		_, _ = s.notifications.Notify(ctx, applicant.ID, entities.NotificationTypeMembership, title, msg, "/membership")
	}

	var reviewerID uint
	if app.ReviewedByID != nil {
		reviewerID = *app.ReviewedByID
	}
	s.deps.audit(audit.Entry{
		ActorID:     reviewerID,
		EventType:   entities.AuditEventMembership,
		Action:      strings.ToLower(string(app.Status)),
		Description: fmt.Sprintf("Application %d for %s %s", app.ID, app.Email, strings.ToLower(string(app.Status))),
		EntityType:  "membership_application",
		EntityID:    app.ID,
		Metadata:    map[string]any{"membership_number": result.MembershipNumber},
	})
	s.deps.publish(ctx, events.RKMembershipReviewed, events.MembershipReviewedPayload{
		ApplicationID:    app.ID,
		Status:           string(app.Status),
		ReviewerID:       reviewerID,
		UserID:           app.UserID,
		MembershipNumber: result.MembershipNumber,
	})
	if result.Fee != nil {
		s.deps.publish(ctx, events.RKFeeRecorded, feePayload(result.Fee))
	}
	s.deps.invalidate()
}

// generateMembershipNumber returns an unused LIB-<year>-<6 digits> number.
func generateMembershipNumber(repo *users.Repository, now time.Time) (string, error) {
	for i := 0; i < 10; i++ {
		number := fmt.Sprintf("LIB-%d-%06d", now.Year(), rand.IntN(1_000_000))
		exists, err := repo.MembershipNumberExists(number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", errors.New("could not allocate a membership number")
}

// formatCents renders an amount such as 5000 as "$50.00".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}
