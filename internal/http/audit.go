package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	dbaudit "github.com/derkdev976-web/davel-library-sub002/internal/database/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events
// GET /api/admin/audit?type=&user_id=&entity_type=&entity_id=&since=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset := pagination(c)

	userID, ok := optionalQueryID(c, "user_id")
	if !ok {
		return
	}
	entityID, ok := optionalQueryID(c, "entity_id")
	if !ok {
		return
	}

	filter := dbaudit.Filter{
		UserID:     userID,
		EventType:  entities.AuditEventType(c.Query("type")),
		EntityType: c.Query("entity_type"),
		EntityID:   entityID,
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondBadRequest(c, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = t
	}

	events, total, err := ac.auditService.GetEvents(filter, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, newPage(events, total, limit, offset))
}

// GetEventTypes handles GET /api/admin/audit/types
func (ac *AuditController) GetEventTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"event_types": getEventTypes()})
}

func getEventTypes() []EventTypeOption {
	return []EventTypeOption{
		{Value: "", Label: "All Events"},
		{Value: string(entities.AuditEventAuth), Label: "Authentication"},
		{Value: string(entities.AuditEventUser), Label: "Users"},
		{Value: string(entities.AuditEventMembership), Label: "Membership"},
		{Value: string(entities.AuditEventReservation), Label: "Reservations"},
		{Value: string(entities.AuditEventCatalog), Label: "Catalogue"},
		{Value: string(entities.AuditEventEvent), Label: "Events"},
		{Value: string(entities.AuditEventGallery), Label: "Gallery"},
		{Value: string(entities.AuditEventFee), Label: "Fees"},
		{Value: string(entities.AuditEventBroadcast), Label: "Broadcasts"},
		{Value: string(entities.AuditEventMaintenance), Label: "Maintenance"},
	}
}

type EventTypeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
