package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// ReservationsController runs the reserve, approve, collect and return workflow.
type ReservationsController struct {
	service *services.ReservationService
}

func NewReservationsController(service *services.ReservationService) *ReservationsController {
	return &ReservationsController{service: service}
}

type createReservationRequest struct {
	BookID uint   `json:"book_id"`
	Notes  string `json:"notes"`
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// Create handles POST /api/reservations
func (rc *ReservationsController) Create(c *gin.Context) {
	var req createReservationRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := rc.service.Create(c.Request.Context(), GetUserID(c), req.BookID, req.Notes)
	if err != nil {
		respondServiceError(c, err, "create reservation")
		return
	}
	respondCreated(c, gin.H{"reservation": res})
}

// Mine handles GET /api/reservations/mine?active=true
func (rc *ReservationsController) Mine(c *gin.Context) {
	list, err := rc.service.ListMine(GetUserID(c), queryBool(c, "active"))
	if err != nil {
		respondServiceError(c, err, "my reservations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": list})
}

// Cancel handles POST /api/reservations/:id/cancel
func (rc *ReservationsController) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := rc.service.Cancel(c.Request.Context(), actor(c), id)
	if err != nil {
		respondServiceError(c, err, "cancel reservation")
		return
	}
	c.JSON(http.StatusOK, result)
}

// List handles GET /api/reservations?status=PENDING,APPROVED
func (rc *ReservationsController) List(c *gin.Context) {
	var statuses []entities.ReservationStatus
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			statuses = append(statuses, entities.ReservationStatus(s))
		}
	}

	limit, offset := pagination(c)
	list, total, err := rc.service.List(statuses, limit, offset)
	if err != nil {
		respondServiceError(c, err, "list reservations")
		return
	}
	c.JSON(http.StatusOK, newPage(list, total, limit, offset))
}

// Overdue handles GET /api/reservations/overdue
func (rc *ReservationsController) Overdue(c *gin.Context) {
	limit, _ := pagination(c)
	list, err := rc.service.Overdue(time.Now(), limit)
	if err != nil {
		respondServiceError(c, err, "overdue loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": list})
}

// Transition handles PATCH /api/reservations/:id/status
func (rc *ReservationsController) Transition(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := rc.service.Transition(c.Request.Context(), actor(c), id, entities.ReservationStatus(req.Status), req.Notes)
	if err != nil {
		respondServiceError(c, err, "reservation transition")
		return
	}
	c.JSON(http.StatusOK, result)
}
