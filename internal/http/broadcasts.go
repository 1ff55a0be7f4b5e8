package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// BroadcastsController lets administrators email groups of users.
type BroadcastsController struct {
	service *services.BroadcastService
}

func NewBroadcastsController(service *services.BroadcastService) *BroadcastsController {
	return &BroadcastsController{service: service}
}

// Create handles POST /api/admin/broadcasts. Delivery happens in the
// background, so the response is 202 with the queued broadcast.
func (bc *BroadcastsController) Create(c *gin.Context) {
	var in services.BroadcastInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	in.Audience = entities.BroadcastAudience(strings.ToUpper(strings.TrimSpace(string(in.Audience))))

	b, err := bc.service.Queue(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		respondServiceError(c, err, "queue broadcast")
		return
	}
	respondAccepted(c, "broadcast queued", b)
}

// List handles GET /api/admin/broadcasts
func (bc *BroadcastsController) List(c *gin.Context) {
	limit, offset := pagination(c)
	list, total, err := bc.service.List(limit, offset)
	if err != nil {
		respondServiceError(c, err, "list broadcasts")
		return
	}
	c.JSON(http.StatusOK, newPage(list, total, limit, offset))
}

// Get handles GET /api/admin/broadcasts/:id
func (bc *BroadcastsController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	b, err := bc.service.Get(id)
	if err != nil {
		respondServiceError(c, err, "get broadcast")
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcast": b})
}
