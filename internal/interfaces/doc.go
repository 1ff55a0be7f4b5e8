// Package interfaces documents the core abstractions used throughout the application.
//
// Handlers depend on services; services depend on repositories under
// internal/database and on the small collaborator interfaces below, which are
// wired together in internal/entrypoint.
//
// # Interface Categories
//
// ## Service Collaborators
//
//   - services.Auditor: records domain actions (internal/audit)
//   - services.Invalidator: drops cached dashboard stats after writes
//   - services.BroadcastQueue: schedules broadcast delivery (internal/tasks)
//   - services.BookLookup: ISBN records and covers (internal/metadata)
//   - storage.Store: uploaded PDFs, covers and gallery images (internal/storage)
//
// ## Outbound Delivery
//
//   - mail.Mailer: SMTP, Resend, no-op, or the task queue
//   - events.Publisher: AMQP topic exchange or no-op
//
// ## Background Work
//
//   - tasks.ReservationMaintainer: hold expiry and overdue reminders
//   - tasks.NotificationCleaner: pruning read notifications
//   - tasks.AuditEventCleaner: audit retention
//   - tasks.BroadcastDeliverer: sends a stored broadcast
//   - scheduler.Enqueuer: hands maintenance tasks to the queue
//   - http.MaintenanceRunner: admin-triggered maintenance runs
//
// ## Account Hooks
//
//   - auth.MembershipClaimer: grants memberships approved before sign-up
//   - auth.Invalidator: drops dashboard stats after account changes
//
// # Adding a New Mail Provider
//
//  1. Implement Mailer in internal/mail/
//
//     type PostmarkMailer struct {
//     token string
//     }
//
//     func (m *PostmarkMailer) Send(ctx context.Context, msg Message) error
//
//     var _ Mailer = (*PostmarkMailer)(nil)
//
//  2. Add a MailProvider constant in internal/config and a case in mail.New
//
// # Adding a New Maintenance Job
//
//  1. Define the task and processor in internal/tasks/ and register the
//     queue in RegisterAll
//
//  2. Add a job definition to scheduler.MaintenanceScheduler and, for
//     manual runs, to the maintenanceJobs list in internal/http/tasks.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
