package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// Entry describes one auditable action.
type Entry struct {
	ActorID     uint
	EventType   entities.AuditEventType
	Action      string
	Description string
	EntityType  string
	EntityID    uint
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
	Err         error
}

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Error().Err(err).Str("action", event.Action).Msg("Failed to log audit event")
		}
	}()
}

// Wait blocks until pending asynchronous writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Record converts an Entry into an audit event and logs it asynchronously.
func (s *Service) Record(e Entry) {
	s.LogAsync(e.toEvent())
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(f audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.List(f, limit, offset)
}

// Recent returns the latest events for dashboards.
func (s *Service) Recent(limit int) ([]entities.AuditEvent, error) {
	return s.repo.Recent(limit)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func (e Entry) toEvent() *entities.AuditEvent {
	event := &entities.AuditEvent{
		UserID:      e.ActorID,
		EventType:   e.EventType,
		Action:      e.Action,
		Description: truncate(e.Description, 500),
		EntityType:  e.EntityType,
		IPAddress:   e.IPAddress,
		UserAgent:   truncate(e.UserAgent, 500),
		Status:      entities.AuditStatusSuccess,
	}
	if e.EntityID != 0 {
		id := e.EntityID
		event.EntityID = &id
	}
	if len(e.Metadata) > 0 {
		if md, err := json.Marshal(e.Metadata); err == nil {
			event.Metadata = string(md)
		}
	}
	if e.Err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(e.Err.Error(), 500)
	}
	return event
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
