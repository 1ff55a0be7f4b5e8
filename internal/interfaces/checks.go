package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/http"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/metadata"
	"github.com/derkdev976-web/davel-library-sub002/internal/scheduler"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

// =============================================================================
// Collaborators of the service layer
// =============================================================================

var _ services.Auditor = (*audit.Service)(nil)
var _ services.Invalidator = (*services.DashboardService)(nil)
var _ services.BroadcastQueue = (*tasks.Client)(nil)
var _ services.BookLookup = (*metadata.Client)(nil)

// Storage implementations
var _ storage.Store = (*storage.LocalStore)(nil)

// =============================================================================
// Outbound delivery
// =============================================================================

// Mailer implementations
var _ mail.Mailer = (*mail.SMTPMailer)(nil)
var _ mail.Mailer = (*mail.ResendMailer)(nil)
var _ mail.Mailer = mail.NoopMailer{}
var _ mail.Mailer = (*tasks.QueuedMailer)(nil)

// Publisher implementations
var _ events.Publisher = (*events.AMQPPublisher)(nil)
var _ events.Publisher = events.NoopPublisher{}
var _ events.Publisher = (*events.Recorder)(nil)

// =============================================================================
// Background work
// =============================================================================

var _ tasks.BroadcastDeliverer = (*services.BroadcastService)(nil)
var _ tasks.ReservationMaintainer = (*services.ReservationService)(nil)
var _ tasks.NotificationCleaner = (*services.NotificationService)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.MaintenanceRunner = (*scheduler.MaintenanceScheduler)(nil)

// =============================================================================
// Authentication
// =============================================================================

var _ auth.Auditor = (*audit.Service)(nil)
var _ auth.MembershipClaimer = (*services.MembershipService)(nil)
var _ auth.Invalidator = (*services.DashboardService)(nil)
