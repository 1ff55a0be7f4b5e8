package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/books"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/fees"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/reservations"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

var (
	ErrReservationNotFound  = newError(ErrNotFound, "reservation not found")
	ErrNotEligible          = newError(ErrForbidden, "only members can reserve books")
	ErrReservationForbidden = newError(ErrForbidden, "you may only cancel your own reservations")
	ErrInvalidTransition    = newError(ErrConflict, "invalid status transition")
	ErrNoCopies             = newError(ErrConflict, "no copies available")
	ErrReservationLimit     = newError(ErrConflict, "active reservation limit reached")
	ErrAlreadyReserved      = newError(ErrConflict, "you already have an active reservation for this book")
)

// transitions lists the statuses reachable from each status.
var transitions = map[entities.ReservationStatus][]entities.ReservationStatus{
	entities.ReservationStatusPending: {
		entities.ReservationStatusApproved,
		entities.ReservationStatusRejected,
		entities.ReservationStatusCancelled,
	},
	entities.ReservationStatusApproved: {
		entities.ReservationStatusCollected,
		entities.ReservationStatusCancelled,
		entities.ReservationStatusExpired,
	},
	entities.ReservationStatusCollected: {
		entities.ReservationStatusReturned,
	},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to entities.ReservationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Actor is the caller of a workflow operation.
type Actor struct {
	ID   uint
	Role entities.UserRole
}

// systemActor performs scheduled transitions.
var systemActor = Actor{Role: entities.UserRoleAdmin}

// TransitionResult is a reservation after a status change, plus the late
// fee recorded on return, if any.
type TransitionResult struct {
	Reservation *entities.Reservation    `json:"reservation"`
	LateFee     *entities.FeeTransaction `json:"late_fee,omitempty"`
}

// ReservationService runs the reserve, approve, collect and return workflow.
type ReservationService struct {
	deps          Deps
	notifications *NotificationService
	repo          *reservations.Repository
	books         *books.Repository
	users         *users.Repository
}

func NewReservationService(deps Deps, notifications *NotificationService) *ReservationService {
	return &ReservationService{
		deps:          deps,
		notifications: notifications,
		repo:          reservations.NewRepository(deps.DB),
		books:         books.NewRepository(deps.DB),
		users:         users.NewRepository(deps.DB),
	}
}

// Create places a PENDING reservation. Copies are only taken off the shelf
// when staff approve it.
func (s *ReservationService) Create(ctx context.Context, userID, bookID uint, notes string) (*entities.Reservation, error) {
	notes = strings.TrimSpace(notes)
	if bookID == 0 {
		return nil, validation.Field("book_id", "is required")
	}
	if len(notes) > 500 {
		return nil, validation.Field("notes", "must be at most 500 characters")
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Role.CanBorrow() {
		return nil, ErrNotEligible
	}

	book, err := s.books.GetByID(bookID)
	if err != nil {
		if errors.Is(err, books.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	if book.AvailableCopies <= 0 {
		return nil, ErrNoCopies
	}

	if limit := s.deps.Library.MaxActiveReservations; limit > 0 {
		active, err := s.repo.CountActiveForUser(userID)
		if err != nil {
			return nil, err
		}
		if active >= int64(limit) {
			return nil, ErrReservationLimit
		}
	}
	dup, err := s.repo.HasActiveForBook(userID, bookID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrAlreadyReserved
	}

	res := &entities.Reservation{
		UserID:     userID,
		BookID:     bookID,
		Status:     entities.ReservationStatusPending,
		Notes:      notes,
		ReservedAt: s.deps.now(),
	}
	if err := s.repo.Create(res); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	res.User, res.Book = *user, *book

	if s.notifications != nil {
		s.notifications.NotifyStaff(ctx, entities.NotificationTypeReservation,
			"New reservation",
			fmt.Sprintf("%s reserved %q.", user.DisplayName(), book.Title),
			"/librarian/reservations")
	}
	s.deps.audit(audit.Entry{
		ActorID:     userID,
		EventType:   entities.AuditEventReservation,
		Action:      "create",
		Description: fmt.Sprintf("Reserved %q", book.Title),
		EntityType:  "reservation",
		EntityID:    res.ID,
	})
	s.deps.publish(ctx, events.RKReservationCreated, events.ReservationPayload{
		ReservationID: res.ID,
		UserID:        userID,
		BookID:        bookID,
		Status:        string(res.Status),
		ActorID:       userID,
	})
	s.deps.invalidate()
	return res, nil
}

func (s *ReservationService) Get(id uint) (*entities.Reservation, error) {
	res, err := s.repo.GetByID(id)
	if errors.Is(err, reservations.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

func (s *ReservationService) ListMine(userID uint, activeOnly bool) ([]entities.Reservation, error) {
	return s.repo.ListForUser(userID, activeOnly)
}

// List returns reservations in any of statuses, oldest first. No statuses
// means all of them.
func (s *ReservationService) List(statuses []entities.ReservationStatus, limit, offset int) ([]entities.Reservation, int64, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, 0, validation.Field("status", "unknown status "+string(st))
		}
	}
	return s.repo.List(statuses, limit, offset)
}

// Cancel lets a member withdraw their own reservation.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uint) (*TransitionResult, error) {
	return s.Transition(ctx, actor, id, entities.ReservationStatusCancelled, "")
}

// Transition moves a reservation to status to. Staff may perform any
// allowed transition; other callers may only cancel their own.
func (s *ReservationService) Transition(ctx context.Context, actor Actor, id uint, to entities.ReservationStatus, notes string) (*TransitionResult, error) {
	to = entities.ReservationStatus(strings.ToUpper(strings.TrimSpace(string(to))))
	if !to.IsValid() {
		return nil, validation.Field("status", "unknown status "+string(to))
	}
	res, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		if to != entities.ReservationStatusCancelled || res.UserID != actor.ID {
			return nil, ErrReservationForbidden
		}
	}
	return s.transition(ctx, actor, res, to, strings.TrimSpace(notes))
}

func (s *ReservationService) transition(ctx context.Context, actor Actor, res *entities.Reservation, to entities.ReservationStatus, notes string) (*TransitionResult, error) {
	from := res.Status
	if !CanTransition(from, to) {
		return nil, newError(ErrConflict, fmt.Sprintf("cannot change reservation from %s to %s", from, to))
	}

	now := s.deps.now()
	result := &TransitionResult{Reservation: res}

	res.Status = to
	if notes != "" {
		res.Notes = notes
	}
	if actor.Role.IsStaff() && actor.ID != 0 {
		res.HandledByID = ptr(actor.ID)
	}

	err := s.deps.DB.Transaction(func(tx *gorm.DB) error {
		txBooks := books.NewRepository(tx)

		switch to {
		case entities.ReservationStatusApproved:
			if err := txBooks.ReserveCopy(res.BookID); err != nil {
				if errors.Is(err, books.ErrNoCopiesLeft) {
					return ErrNoCopies
				}
				return err
			}
			res.ExpiresAt = ptr(now.Add(s.deps.Library.ReservationHold))
		case entities.ReservationStatusCollected:
			res.CollectedAt = ptr(now)
			res.DueAt = ptr(now.Add(s.deps.Library.LoanPeriod))
			res.ExpiresAt = nil
		case entities.ReservationStatusReturned:
			res.ReturnedAt = ptr(now)
		}

		// Approved and collected reservations hold a copy.
		if (from == entities.ReservationStatusApproved && to != entities.ReservationStatusCollected) ||
			to == entities.ReservationStatusReturned {
			if err := txBooks.RestoreCopy(res.BookID); err != nil {
				return err
			}
		}

		ok, err := reservations.NewRepository(tx).UpdateStatus(res, from)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		if to == entities.ReservationStatusReturned {
			fee := s.lateFee(res, now, actor)
			if fee != nil {
				if err := fees.NewRepository(tx).Create(fee); err != nil {
					return fmt.Errorf("failed to record late fee: %w", err)
				}
				result.LateFee = fee
			}
		}
		return nil
	})
	if err != nil {
		res.Status = from
		return nil, err
	}

	s.afterTransition(ctx, actor, res, from, result.LateFee)
	return result, nil
}

// lateFee charges the daily fee for every started day past DueAt.
func (s *ReservationService) lateFee(res *entities.Reservation, returnedAt time.Time, actor Actor) *entities.FeeTransaction {
	days := DaysLate(res.DueAt, returnedAt)
	if days == 0 || s.deps.Library.LateFeePerDayCents <= 0 {
		return nil
	}
	fee := &entities.FeeTransaction{
		UserID:        res.UserID,
		Type:          entities.FeeTypeLateReturn,
		AmountCents:   int64(days) * s.deps.Library.LateFeePerDayCents,
		Status:        entities.FeeStatusPending,
		Reference:     newFeeReference(),
		Description:   fmt.Sprintf("Returned %d day(s) late: %s", days, res.Book.Title),
		ReservationID: ptr(res.ID),
	}
	if actor.ID != 0 {
		fee.RecordedByID = ptr(actor.ID)
	}
	return fee
}

// DaysLate counts started days between due and returned; zero when on time.
func DaysLate(due *time.Time, returned time.Time) int {
	if due == nil || !returned.After(*due) {
		return 0
	}
	return int(math.Ceil(returned.Sub(*due).Hours() / 24))
}

func (s *ReservationService) afterTransition(ctx context.Context, actor Actor, res *entities.Reservation, from entities.ReservationStatus, lateFee *entities.FeeTransaction) {
	status := strings.ToLower(string(res.Status))
	data := mail.ReservationData{
		Name:      res.User.DisplayName(),
		BookTitle: res.Book.Title,
		Status:    string(res.Status),
		Notes:     res.Notes,
	}
	if res.ExpiresAt != nil && res.Status == entities.ReservationStatusApproved {
		data.ExpiresAt = res.ExpiresAt.Format("Mon 2 Jan 2006 15:04")
	}
	if res.DueAt != nil && res.Status == entities.ReservationStatusCollected {
		data.DueAt = res.DueAt.Format("Mon 2 Jan 2006")
	}
	if lateFee != nil {
		data.LateFee = formatCents(lateFee.AmountCents)
	}
	s.deps.email(ctx, mail.TemplateReservationStatus, res.User.Email, "Reservation "+status+": "+res.Book.Title, data)

	if s.notifications != nil && actor.ID != res.UserID {
		msg := fmt.Sprintf("Your reservation for %q is now %s.", res.Book.Title, status)
		if lateFee != nil {
			msg += " A late fee of " + formatCents(lateFee.AmountCents) + " was recorded."
		}
		_, _ = s.notifications.Notify(ctx, res.UserID, entities.NotificationTypeReservation, "Reservation "+status, msg, "/reservations")
	}

	s.deps.audit(audit.Entry{
		ActorID:     actor.ID,
		EventType:   entities.AuditEventReservation,
		Action:      status,
		Description: fmt.Sprintf("Reservation %d for %q: %s -> %s", res.ID, res.Book.Title, from, res.Status),
		EntityType:  "reservation",
		EntityID:    res.ID,
	})
	s.deps.publish(ctx, events.RKReservationStatusChanged, events.ReservationPayload{
		ReservationID: res.ID,
		UserID:        res.UserID,
		BookID:        res.BookID,
		From:          string(from),
		Status:        string(res.Status),
		ActorID:       actor.ID,
		DueAt:         res.DueAt,
	})
	if lateFee != nil {
		s.deps.publish(ctx, events.RKFeeRecorded, feePayload(lateFee))
	}
	s.deps.invalidate()
}

// ExpireStale expires APPROVED reservations whose hold ran out and returns
// how many were expired.
func (s *ReservationService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.ListStaleApproved(now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, r := range stale {
		res, err := s.Get(r.ID)
		if err != nil {
			log.Warn().Err(err).Uint("reservation_id", r.ID).Msg("Failed to load stale reservation")
			continue
		}
		if _, err := s.transition(ctx, systemActor, res, entities.ReservationStatusExpired, ""); err != nil {
			// Collected or cancelled in the meantime.
			if !errors.Is(err, ErrConflict) {
				log.Error().Err(err).Uint("reservation_id", r.ID).Msg("Failed to expire reservation")
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// Overdue lists loans past their due date, most overdue first.
func (s *ReservationService) Overdue(now time.Time, limit int) ([]entities.Reservation, error) {
	return s.repo.ListOverdue(now, limit)
}

// RemindOverdue emails and notifies every borrower with an overdue loan.
func (s *ReservationService) RemindOverdue(ctx context.Context, now time.Time) (int, error) {
	list, err := s.repo.ListOverdue(now, 0)
	if err != nil {
		return 0, err
	}
	for _, res := range list {
		data := mail.OverdueData{
			Name:      res.User.DisplayName(),
			BookTitle: res.Book.Title,
			DueAt:     res.DueAt.Format("Mon 2 Jan 2006"),
			DueAgo:    humanize.RelTime(*res.DueAt, now, "ago", "from now"),
			DailyFee:  formatCents(s.deps.Library.LateFeePerDayCents),
		}
		s.deps.email(ctx, mail.TemplateOverdueReminder, res.User.Email, "Overdue: "+res.Book.Title, data)
		if s.notifications != nil {
			_, _ = s.notifications.Notify(ctx, res.UserID, entities.NotificationTypeReservation,
				"Book overdue",
				fmt.Sprintf("%q was due %s. Please return it.", res.Book.Title, data.DueAgo),
				"/reservations")
		}
	}
	return len(list), nil
}
