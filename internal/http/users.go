package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/auth"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// UsersController lets administrators manage accounts and roles.
type UsersController struct {
	authService *auth.Service
	auditor     *audit.Service
}

// NewUsersController creates a new UsersController. auditor may be nil.
func NewUsersController(authService *auth.Service, auditor *audit.Service) *UsersController {
	return &UsersController{
		authService: authService,
		auditor:     auditor,
	}
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListUsers handles GET /api/admin/users?role=
func (uc *UsersController) ListUsers(c *gin.Context) {
	var role entities.UserRole
	if r := c.Query("role"); r != "" {
		parsed, err := auth.RoleFromParam(r)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		role = parsed
	}

	limit, offset := pagination(c)
	users, total, err := uc.authService.ListUsers(role, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, newPage(users, total, limit, offset))
}

// CreateUser handles POST /api/admin/users. Administrators create staff and
// member accounts directly, bypassing the membership application.
func (uc *UsersController) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := auth.RoleFromParam(req.Role)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := uc.authService.CreateUser(req.Username, req.Email, req.Password, role)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	uc.record(c, "create", user, "Created "+string(user.Role)+" account "+user.Username)
	respondCreated(c, gin.H{"user": user})
}

// UpdateRole handles PATCH /api/admin/users/:id/role
func (uc *UsersController) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := auth.RoleFromParam(req.Role)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, err := uc.authService.UpdateRole(GetUserID(c), id, role)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	uc.record(c, "role_change", user, "Changed role of "+user.Username+" to "+string(role))
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (uc *UsersController) record(c *gin.Context, action string, user *entities.User, desc string) {
	if uc.auditor == nil {
		return
	}
	uc.auditor.Record(audit.Entry{
		ActorID:     GetUserID(c),
		EventType:   entities.AuditEventUser,
		Action:      action,
		Description: desc,
		EntityType:  "user",
		EntityID:    user.ID,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrPasswordRequired),
		errors.Is(err, auth.ErrUsernameRequired),
		errors.Is(err, auth.ErrUsernameInvalid),
		errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrEmailInvalid),
		errors.Is(err, auth.ErrInvalidRole):
		respondBadRequest(c, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		respondConflict(c, err.Error())
	case errors.Is(err, auth.ErrCannotDemoteSelf):
		respondForbidden(c, err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		respondNotFound(c, "user")
	default:
		respondInternalError(c, err, "user account")
	}
}
