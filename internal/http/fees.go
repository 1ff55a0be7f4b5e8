package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/fees"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// FeesController records and settles member fees.
type FeesController struct {
	service *services.FeeService
}

func NewFeesController(service *services.FeeService) *FeesController {
	return &FeesController{service: service}
}

type payRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type waiveRequest struct {
	Reason string `json:"reason"`
}

// Mine handles GET /api/fees/mine
func (fc *FeesController) Mine(c *gin.Context) {
	list, summary, err := fc.service.ListForUser(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "my fees")
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": list, "summary": summary})
}

// List handles GET /api/fees?status=&type=&user_id=
func (fc *FeesController) List(c *gin.Context) {
	userID, ok := optionalQueryID(c, "user_id")
	if !ok {
		return
	}
	filter := fees.Filter{
		Status: entities.FeeStatus(strings.ToUpper(c.Query("status"))),
		Type:   entities.FeeType(strings.ToUpper(c.Query("type"))),
		UserID: userID,
	}

	limit, offset := pagination(c)
	list, total, err := fc.service.List(filter, limit, offset)
	if err != nil {
		respondServiceError(c, err, "list fees")
		return
	}
	c.JSON(http.StatusOK, newPage(list, total, limit, offset))
}

// Summary handles GET /api/fees/summary
func (fc *FeesController) Summary(c *gin.Context) {
	summary, err := fc.service.Summary()
	if err != nil {
		respondServiceError(c, err, "fee summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Record handles POST /api/fees
func (fc *FeesController) Record(c *gin.Context) {
	var in services.FeeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	in.Type = entities.FeeType(strings.ToUpper(string(in.Type)))
	fee, err := fc.service.Record(c.Request.Context(), GetUserID(c), in)
	if err != nil {
		respondServiceError(c, err, "record fee")
		return
	}
	respondCreated(c, gin.H{"fee": fee})
}

// Pay handles POST /api/fees/:id/pay
func (fc *FeesController) Pay(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req payRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	fee, err := fc.service.MarkPaid(c.Request.Context(), GetUserID(c), id, req.PaymentReference)
	if err != nil {
		respondServiceError(c, err, "mark fee paid")
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fee})
}

// Waive handles POST /api/fees/:id/waive
func (fc *FeesController) Waive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req waiveRequest
	if !bindJSON(c, &req) {
		return
	}
	fee, err := fc.service.Waive(c.Request.Context(), GetUserID(c), id, req.Reason)
	if err != nil {
		respondServiceError(c, err, "waive fee")
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fee})
}
