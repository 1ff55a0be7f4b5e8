package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// EventsController serves the library events calendar.
type EventsController struct {
	service *services.EventService
}

func NewEventsController(service *services.EventService) *EventsController {
	return &EventsController{service: service}
}

func isStaff(c *gin.Context) bool {
	return auth.GetUserRole(c).IsStaff()
}

// List handles GET /api/events. Staff may pass all=true for the full
// history, drafts included.
func (ec *EventsController) List(c *gin.Context) {
	limit, offset := pagination(c)
	if isStaff(c) && queryBool(c, "all") {
		list, total, err := ec.service.All(limit, offset)
		if err != nil {
			respondServiceError(c, err, "list events")
			return
		}
		c.JSON(http.StatusOK, newPage(list, total, limit, offset))
		return
	}

	list, err := ec.service.Upcoming(isStaff(c), limit)
	if err != nil {
		respondServiceError(c, err, "upcoming events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

// Get handles GET /api/events/:id
func (ec *EventsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	e, err := ec.service.Get(id, isStaff(c))
	if err != nil {
		respondServiceError(c, err, "get event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": e})
}

// Create handles POST /api/events
func (ec *EventsController) Create(c *gin.Context) {
	var in services.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	e, err := ec.service.Create(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		respondServiceError(c, err, "create event")
		return
	}
	respondCreated(c, gin.H{"event": e})
}

// Update handles PUT /api/events/:id
func (ec *EventsController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	e, err := ec.service.Update(c.Request.Context(), GetUserID(c), id, in)
	if err != nil {
		respondServiceError(c, err, "update event")
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": e})
}

// Delete handles DELETE /api/events/:id
func (ec *EventsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ec.service.Delete(c.Request.Context(), GetUserID(c), id); err != nil {
		respondServiceError(c, err, "delete event")
		return
	}
	respondSuccess(c, "event deleted")
}
