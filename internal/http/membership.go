package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// MembershipController handles membership applications and their review.
type MembershipController struct {
	service *services.MembershipService
}

func NewMembershipController(service *services.MembershipService) *MembershipController {
	return &MembershipController{service: service}
}

type reviewRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// Submit handles POST /api/membership/applications. Anonymous callers may
// apply; a signed-in caller's account is linked to the application.
func (mc *MembershipController) Submit(c *gin.Context) {
	var in services.ApplicationInput
	if !bindJSON(c, &in) {
		return
	}

	app, err := mc.service.Submit(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		respondServiceError(c, err, "submit membership application")
		return
	}
	respondCreated(c, gin.H{
		"application": app,
		"message":     "Application received. We will email you once it has been reviewed.",
	})
}

// Status handles GET /api/membership/status?email=
func (mc *MembershipController) Status(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		respondBadRequest(c, "email is required")
		return
	}
	view, err := mc.service.Status(email)
	if err != nil {
		respondServiceError(c, err, "membership status")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Mine handles GET /api/membership/applications/mine
func (mc *MembershipController) Mine(c *gin.Context) {
	apps, err := mc.service.Mine(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "my applications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

// List handles GET /api/admin/membership/applications?status=
func (mc *MembershipController) List(c *gin.Context) {
	status := entities.ApplicationStatus(strings.ToUpper(c.Query("status")))
	if status != "" && !status.IsValid() {
		respondBadRequest(c, "invalid status")
		return
	}
	limit, offset := pagination(c)
	apps, total, err := mc.service.List(status, limit, offset)
	if err != nil {
		respondServiceError(c, err, "list applications")
		return
	}
	c.JSON(http.StatusOK, newPage(apps, total, limit, offset))
}

// Get handles GET /api/admin/membership/applications/:id
func (mc *MembershipController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	app, err := mc.service.Get(id)
	if err != nil {
		respondServiceError(c, err, "get application")
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// Review handles PATCH /api/admin/membership/applications/:id/status
func (mc *MembershipController) Review(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}

	decision := entities.ApplicationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	result, err := mc.service.Review(c.Request.Context(), id, GetUserID(c), decision, req.Notes)
	if err != nil {
		respondServiceError(c, err, "review application")
		return
	}
	c.JSON(http.StatusOK, result)
}
