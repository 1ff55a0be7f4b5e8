package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/database"
	"github.com/derkdev976-web/davel-library-sub002/internal/services"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

// GetUserID extracts the authenticated user's ID from the Gin context.
// Returns 0 for anonymous callers.
func GetUserID(c *gin.Context) uint {
	return auth.GetUserID(c)
}

// actor is the caller as the service layer sees it.
func actor(c *gin.Context) services.Actor {
	return services.Actor{ID: auth.GetUserID(c), Role: auth.GetUserRole(c)}
}

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func newPage(data any, total int64, limit, offset int) PaginatedResponse {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    int64(offset+limit) < total,
		TotalPages: pages,
	}
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrAuthRequired.Error()})
}

func respondForbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

func respondConflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, ErrorResponse{Error: message})
}

// respondValidation sends a 400 with per-field details.
func respondValidation(c *gin.Context, err error) {
	details, _ := validation.Details(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    "validation_failed",
		Details: details,
	})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Error().Err(err).Str("context", context).Str("path", c.Request.URL.Path).Msg("Internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondServiceError maps a service error to its status code.
func respondServiceError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		respondValidation(c, err)
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		respondForbidden(c, err.Error())
	case errors.Is(err, services.ErrConflict):
		respondConflict(c, err.Error())
	case errors.Is(err, services.ErrStorageDisabled), errors.Is(err, services.ErrLookupDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrLookupUnavailable):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		respondNotFound(c, "file")
	default:
		respondInternalError(c, err, context)
	}
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseQueryID extracts and validates an unsigned integer ID from query parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseQueryID(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		respondBadRequest(c, paramName+" is required")
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// optionalQueryID is parseQueryID for filters: a missing value is 0.
func optionalQueryID(c *gin.Context, paramName string) (uint, bool) {
	if c.Query(paramName) == "" {
		return 0, true
	}
	return parseQueryID(c, paramName)
}

// pagination reads limit and offset, accepting page as an alternative to offset.
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 1 && c.Query("offset") == "" {
		l, _ := database.Paginate(limit, 0)
		offset = (page - 1) * l
	}
	return database.Paginate(limit, offset)
}

// queryBool treats "1", "true" and "yes" as true.
func queryBool(c *gin.Context, name string) bool {
	switch strings.ToLower(c.Query(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// bindJSON decodes the body into v, responding 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if _, ok := validation.Details(err); ok {
			respondValidation(c, err)
		} else {
			respondBadRequest(c, "invalid request body")
		}
		return false
	}
	return true
}
