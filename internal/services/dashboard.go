package services

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/books"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/chat"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/fees"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/memberships"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/notifications"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/reservations"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

const (
	lowStockThreshold = 1
	dashboardListSize = 10
)

type AdminDashboard struct {
	UsersByRole         map[entities.UserRole]int64 `json:"users_by_role"`
	Books               int64                       `json:"books"`
	PendingApplications int64                       `json:"pending_applications"`
	ActiveReservations  int64                       `json:"active_reservations"`
	OverdueLoans        int64                       `json:"overdue_loans"`
	Fees                FeeSummary                  `json:"fees"`
	RecentActivity      []entities.AuditEvent       `json:"recent_activity"`
	GeneratedAt         time.Time                   `json:"generated_at"`
}

type LibrarianDashboard struct {
	PendingReservations  []entities.Reservation `json:"pending_reservations"`
	ApprovedReservations []entities.Reservation `json:"approved_reservations"`
	PendingCount         int64                  `json:"pending_count"`
	ApprovedCount        int64                  `json:"approved_count"`
	Overdue              []entities.Reservation `json:"overdue"`
	LowStock             []entities.Book        `json:"low_stock"`
	GeneratedAt          time.Time              `json:"generated_at"`
}

type MemberDashboard struct {
	ActiveReservations  []entities.Reservation    `json:"active_reservations"`
	UnpaidFees          []entities.FeeTransaction `json:"unpaid_fees"`
	UnpaidTotalCents    int64                     `json:"unpaid_total_cents"`
	UnreadNotifications int64                     `json:"unread_notifications"`
	UnreadMessages      int64                     `json:"unread_messages"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// DashboardService builds role dashboards. Results are cached per key until
// the TTL passes or a mutating service calls Invalidate.
type DashboardService struct {
	deps          Deps
	cache         *expirable.LRU[string, any]
	users         *users.Repository
	books         *books.Repository
	memberships   *memberships.Repository
	reservations  *reservations.Repository
	fees          *fees.Repository
	audit         *audit.Repository
	chat          *chat.Repository
	notifications *notifications.Repository
}

// NewDashboardService caches up to size dashboards for ttl. A zero ttl
// disables expiry.
func NewDashboardService(deps Deps, size int, ttl time.Duration) *DashboardService {
	if size <= 0 {
		size = 128
	}
	return &DashboardService{
		deps:          deps,
		cache:         expirable.NewLRU[string, any](size, nil, ttl),
		users:         users.NewRepository(deps.DB),
		books:         books.NewRepository(deps.DB),
		memberships:   memberships.NewRepository(deps.DB),
		reservations:  reservations.NewRepository(deps.DB),
		fees:          fees.NewRepository(deps.DB),
		audit:         audit.NewRepository(deps.DB),
		chat:          chat.NewRepository(deps.DB),
		notifications: notifications.NewRepository(deps.DB),
	}
}

// Invalidate drops every cached dashboard.
func (s *DashboardService) Invalidate() {
	s.cache.Purge()
}

func cached[T any](s *DashboardService, key string, build func() (*T, error)) (*T, error) {
	if v, ok := s.cache.Get(key); ok {
		if d, ok := v.(*T); ok {
			return d, nil
		}
	}
	d, err := build()
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, d)
	return d, nil
}

func (s *DashboardService) Admin() (*AdminDashboard, error) {
	return cached(s, "admin", s.buildAdmin)
}

func (s *DashboardService) Librarian() (*LibrarianDashboard, error) {
	return cached(s, "librarian", s.buildLibrarian)
}

// Member caches reservations and fees. Unread counters change on every
// message, so they are read live.
func (s *DashboardService) Member(userID uint) (*MemberDashboard, error) {
	base, err := cached(s, fmt.Sprintf("member:%d", userID), func() (*MemberDashboard, error) {
		return s.buildMember(userID)
	})
	if err != nil {
		return nil, err
	}
	d := *base
	if d.UnreadNotifications, err = s.notifications.UnreadCount(userID); err != nil {
		return nil, err
	}
	if d.UnreadMessages, err = s.chat.UnreadCount(userID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DashboardService) buildAdmin() (*AdminDashboard, error) {
	now := s.deps.now()
	d := &AdminDashboard{GeneratedAt: now}
	var err error

	if d.UsersByRole, err = s.users.CountByRole(); err != nil {
		return nil, err
	}
	if d.Books, err = s.books.Count(); err != nil {
		return nil, err
	}
	if d.PendingApplications, err = s.memberships.CountByStatus(entities.ApplicationStatusPending); err != nil {
		return nil, err
	}
	if d.ActiveReservations, err = s.reservations.CountByStatus(entities.ActiveReservationStatuses...); err != nil {
		return nil, err
	}
	if d.OverdueLoans, err = s.reservations.CountOverdue(now); err != nil {
		return nil, err
	}
	totals, err := s.fees.Totals(0)
	if err != nil {
		return nil, err
	}
	d.Fees = summaryFrom(totals)
	if d.RecentActivity, err = s.audit.Recent(dashboardListSize); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) buildLibrarian() (*LibrarianDashboard, error) {
	now := s.deps.now()
	d := &LibrarianDashboard{GeneratedAt: now}
	var err error

	d.PendingReservations, d.PendingCount, err = s.reservations.List(
		[]entities.ReservationStatus{entities.ReservationStatusPending}, dashboardListSize, 0)
	if err != nil {
		return nil, err
	}
	d.ApprovedReservations, d.ApprovedCount, err = s.reservations.List(
		[]entities.ReservationStatus{entities.ReservationStatusApproved}, dashboardListSize, 0)
	if err != nil {
		return nil, err
	}
	if d.Overdue, err = s.reservations.ListOverdue(now, dashboardListSize); err != nil {
		return nil, err
	}
	if d.LowStock, err = s.books.LowStock(lowStockThreshold, dashboardListSize); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) buildMember(userID uint) (*MemberDashboard, error) {
	d := &MemberDashboard{GeneratedAt: s.deps.now()}
	var err error

	if d.ActiveReservations, err = s.reservations.ListForUser(userID, true); err != nil {
		return nil, err
	}
	d.UnpaidFees, _, err = s.fees.List(fees.Filter{UserID: userID, Status: entities.FeeStatusPending}, 100, 0)
	if err != nil {
		return nil, err
	}
	for _, f := range d.UnpaidFees {
		d.UnpaidTotalCents += f.AmountCents
	}
	return d, nil
}
