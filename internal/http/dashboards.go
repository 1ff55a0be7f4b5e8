package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// DashboardsController serves the per-role overview pages.
type DashboardsController struct {
	service *services.DashboardService
}

func NewDashboardsController(service *services.DashboardService) *DashboardsController {
	return &DashboardsController{service: service}
}

// Mine handles GET /api/dashboard and picks the dashboard for the caller's role.
func (dc *DashboardsController) Mine(c *gin.Context) {
	switch auth.GetUserRole(c) {
	case entities.UserRoleAdmin:
		dc.Admin(c)
	case entities.UserRoleLibrarian:
		dc.Librarian(c)
	default:
		dc.Member(c)
	}
}

// Admin handles GET /api/admin/dashboard
func (dc *DashboardsController) Admin(c *gin.Context) {
	d, err := dc.service.Admin()
	if err != nil {
		respondServiceError(c, err, "admin dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": entities.UserRoleAdmin, "dashboard": d})
}

// Librarian handles GET /api/librarian/dashboard
func (dc *DashboardsController) Librarian(c *gin.Context) {
	d, err := dc.service.Librarian()
	if err != nil {
		respondServiceError(c, err, "librarian dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": entities.UserRoleLibrarian, "dashboard": d})
}

func (dc *DashboardsController) Member(c *gin.Context) {
	d, err := dc.service.Member(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "member dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": auth.GetUserRole(c), "dashboard": d})
}
