package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/fees"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

var (
	ErrFeeNotFound  = newError(ErrNotFound, "fee not found")
	ErrFeeSettled   = newError(ErrConflict, "fee is no longer pending")
	ErrUserNotFound = newError(ErrNotFound, "user not found")
)

// maxFeeDescription matches the size of the description column.
const maxFeeDescription = 500

// FeeInput records a manual charge.
type FeeInput struct {
	UserID        uint             `json:"user_id" validate:"required"`
	Type          entities.FeeType `json:"type" validate:"required,oneof=MEMBERSHIP LATE_RETURN DAMAGE OTHER"`
	AmountCents   int64            `json:"amount_cents" validate:"gt=0"`
	Description   string           `json:"description" validate:"max=500"`
	ReservationID *uint            `json:"reservation_id"`
}

// FeeSummary totals fees by status.
type FeeSummary struct {
	Pending fees.Total `json:"pending"`
	Paid    fees.Total `json:"paid"`
	Waived  fees.Total `json:"waived"`
}

func summaryFrom(totals map[entities.FeeStatus]fees.Total) FeeSummary {
	return FeeSummary{
		Pending: totals[entities.FeeStatusPending],
		Paid:    totals[entities.FeeStatusPaid],
		Waived:  totals[entities.FeeStatusWaived],
	}
}

// FeeService records and settles fees.
type FeeService struct {
	deps          Deps
	notifications *NotificationService
	repo          *fees.Repository
	users         *users.Repository
}

func NewFeeService(deps Deps, notifications *NotificationService) *FeeService {
	return &FeeService{
		deps:          deps,
		notifications: notifications,
		repo:          fees.NewRepository(deps.DB),
		users:         users.NewRepository(deps.DB),
	}
}

// Record charges a user. Only staff reach this through the API.
func (s *FeeService) Record(ctx context.Context, recordedBy uint, in FeeInput) (*entities.FeeTransaction, error) {
	in.Type = entities.FeeType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(in.UserID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	fee := &entities.FeeTransaction{
		UserID:        in.UserID,
		Type:          in.Type,
		AmountCents:   in.AmountCents,
		Status:        entities.FeeStatusPending,
		Reference:     newFeeReference(),
		Description:   in.Description,
		ReservationID: in.ReservationID,
		RecordedByID:  ptr(recordedBy),
	}
	if err := s.repo.Create(fee); err != nil {
		return nil, fmt.Errorf("failed to record fee: %w", err)
	}

	if s.notifications != nil {
		_, _ = s.notifications.Notify(ctx, fee.UserID, entities.NotificationTypeFee,
			"New fee recorded",
			fmt.Sprintf("A %s fee of %s was added to your account (ref %s).", strings.ToLower(strings.ReplaceAll(string(fee.Type), "_", " ")), formatCents(fee.AmountCents), fee.Reference),
			"/fees")
	}
	s.deps.audit(audit.Entry{
		ActorID:     recordedBy,
		EventType:   entities.AuditEventFee,
		Action:      "record",
		Description: fmt.Sprintf("Recorded %s fee %s for user %d", fee.Type, fee.Reference, fee.UserID),
		EntityType:  "fee",
		EntityID:    fee.ID,
		Metadata:    map[string]any{"amount_cents": fee.AmountCents},
	})
	s.deps.publish(ctx, events.RKFeeRecorded, feePayload(fee))
	s.deps.invalidate()
	return fee, nil
}

// MarkPaid settles a pending fee. paymentRef, when given, is kept in the
// description for reconciliation.
func (s *FeeService) MarkPaid(ctx context.Context, actorID, id uint, paymentRef string) (*entities.FeeTransaction, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if err := validation.Var("payment_reference", paymentRef, "max=100"); err != nil {
		return nil, err
	}
	return s.settle(ctx, actorID, id, entities.FeeStatusPaid, "payment_reference", paymentRef)
}

// Waive cancels a pending fee. A reason is required.
func (s *FeeService) Waive(ctx context.Context, actorID, id uint, reason string) (*entities.FeeTransaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validation.Field("reason", "is required")
	}
	if err := validation.Var("reason", reason, "max=200"); err != nil {
		return nil, err
	}
	return s.settle(ctx, actorID, id, entities.FeeStatusWaived, "reason", reason)
}

// settle moves a pending fee to its final status. note is appended to the
// description and field names the input it came from.
func (s *FeeService) settle(ctx context.Context, actorID, id uint, to entities.FeeStatus, field, note string) (*entities.FeeTransaction, error) {
	fee, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if fee.Status != entities.FeeStatusPending {
		return nil, ErrFeeSettled
	}

	desc := fee.Description
	switch {
	case to == entities.FeeStatusWaived:
		desc = appendNote(desc, "Waived: "+note)
	case note != "":
		desc = appendNote(desc, "Payment reference: "+note)
	}
	if utf8.RuneCountInString(desc) > maxFeeDescription {
		return nil, validation.Field(field, fmt.Sprintf("does not fit in the fee description (%d characters max)", maxFeeDescription))
	}

	fee.Status = to
	fee.Description = desc
	if to == entities.FeeStatusPaid {
		fee.PaidAt = ptr(s.deps.now())
	}

	ok, err := s.repo.UpdateStatus(fee, entities.FeeStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update fee: %w", err)
	}
	if !ok {
		return nil, ErrFeeSettled
	}

	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventFee,
		Action:      strings.ToLower(string(to)),
		Description: fmt.Sprintf("Fee %s marked %s", fee.Reference, strings.ToLower(string(to))),
		EntityType:  "fee",
		EntityID:    fee.ID,
	})
	s.deps.publish(ctx, events.RKFeeStatusChanged, feePayload(fee))
	s.deps.invalidate()
	return fee, nil
}

func (s *FeeService) Get(id uint) (*entities.FeeTransaction, error) {
	fee, err := s.repo.GetByID(id)
	if errors.Is(err, fees.ErrNotFound) {
		return nil, ErrFeeNotFound
	}
	return fee, err
}

func (s *FeeService) ListForUser(userID uint) ([]entities.FeeTransaction, FeeSummary, error) {
	list, err := s.repo.ListForUser(userID)
	if err != nil {
		return nil, FeeSummary{}, err
	}
	totals, err := s.repo.Totals(userID)
	if err != nil {
		return nil, FeeSummary{}, err
	}
	return list, summaryFrom(totals), nil
}

func (s *FeeService) List(f fees.Filter, limit, offset int) ([]entities.FeeTransaction, int64, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, validation.Field("status", "must be one of: PENDING PAID WAIVED")
	}
	if f.Type != "" && !f.Type.IsValid() {
		return nil, 0, validation.Field("type", "must be one of: MEMBERSHIP LATE_RETURN DAMAGE OTHER")
	}
	return s.repo.List(f, limit, offset)
}

// Summary totals all fees by status.
func (s *FeeService) Summary() (FeeSummary, error) {
	totals, err := s.repo.Totals(0)
	if err != nil {
		return FeeSummary{}, err
	}
	return summaryFrom(totals), nil
}

// newFeeReference returns FEE- followed by 12 hex digits of a random UUID.
func newFeeReference() string {
	return "FEE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func feePayload(fee *entities.FeeTransaction) events.FeePayload {
	return events.FeePayload{
		FeeID:       fee.ID,
		UserID:      fee.UserID,
		Type:        string(fee.Type),
		Status:      string(fee.Status),
		AmountCents: fee.AmountCents,
		Reference:   fee.Reference,
	}
}

func appendNote(desc, note string) string {
	if desc == "" {
		return note
	}
	return desc + " | " + note
}
