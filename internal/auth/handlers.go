package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// Auditor records authentication attempts. The audit service satisfies it.
type Auditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// AuthController handles the JSON authentication endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	config         config.Auth
	rateLimiter    *RateLimiter
	auditor        Auditor

	// setupMu serializes setup requests so two callers cannot both pass the
	// no-users check.
	setupMu sync.Mutex
}

// NewAuthController creates a new authentication controller. auditor may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, cfg config.Auth, auditor Auditor) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		config:         cfg,
		auditor:        auditor,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// RegisterRoutes registers authentication routes under /api/auth.
func (ac *AuthController) RegisterRoutes(api *gin.RouterGroup, mw *Middleware) {
	g := api.Group("/auth")
	g.GET("/csrf", ac.CSRFToken)
	g.POST("/register", ac.Register)
	g.POST("/login", ac.Login)
	g.POST("/logout", ac.Logout)
	g.POST("/setup", ac.Setup)

	authed := g.Group("", mw.RequireAuth())
	authed.GET("/me", ac.Me)
	authed.PATCH("/me", ac.UpdateProfile)
	authed.POST("/password", ac.ChangePassword)
	authed.POST("/token", ac.GenerateToken)
	authed.DELETE("/token", ac.RevokeToken)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (r loginRequest) identity() string {
	switch {
	case r.Login != "":
		return r.Login
	case r.Username != "":
		return r.Username
	}
	return r.Email
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type profileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// CSRFToken returns the token clients must echo in the X-CSRF-Token header on
// cookie-authenticated mutating requests.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c), "header": CSRFTokenHeader})
}

// Register creates a GUEST account and signs it in.
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user, err := ac.service.Register(req.Username, req.Email, req.Password, Profile{FullName: req.FullName, Phone: req.Phone})
	if err != nil {
		ac.respondAccountError(c, err)
		return
	}

	ac.audit(c, user.ID, "register", true)
	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to create session after registration")
		}
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login verifies credentials and starts a cookie session.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.identity() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}
	login := req.identity()
	clientIP := c.ClientIP()

	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, login); !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.String(),
		})
		return
	}

	user, err := ac.service.Authenticate(login, req.Password)
	if err != nil {
		ac.rateLimiter.RecordFailure(clientIP, login)
		ac.audit(c, 0, "login", false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": ErrAccountLocked.Error()})
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			log.Error().Err(err).Msg("Login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, login)
	ac.audit(c, user.ID, "login", true)

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout destroys the session.
func (ac *AuthController) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	if id := GetUserID(c); id != 0 {
		ac.audit(c, id, "logout", true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the current user.
func (ac *AuthController) Me(c *gin.Context) {
	user := GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"auth_type": GetAuthType(c),
		"is_staff":  user.Role.IsStaff(),
	})
}

// UpdateProfile changes the caller's full name and phone.
func (ac *AuthController) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := ac.service.UpdateProfile(GetUserID(c), Profile(req))
	if err != nil {
		ac.respondAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword replaces the caller's password after verifying the current one.
func (ac *AuthController) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password are required"})
		return
	}

	userID := GetUserID(c)
	if err := ac.service.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			ac.audit(c, userID, "password_change", false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
			return
		}
		ac.respondAccountError(c, err)
		return
	}
	ac.audit(c, userID, "password_change", true)
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// GenerateToken creates a new API token for the authenticated user.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	token, err := ac.service.GenerateToken(GetUserID(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate API token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

// RevokeToken revokes the API token for the authenticated user.
func (ac *AuthController) RevokeToken(c *gin.Context) {
	if err := ac.service.RevokeToken(GetUserID(c)); err != nil {
		log.Error().Err(err).Msg("Failed to revoke API token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

// Setup creates the first ADMIN account. It is only available while the
// user table is empty.
func (ac *AuthController) Setup(c *gin.Context) {
	ac.setupMu.Lock()
	defer ac.setupMu.Unlock()

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user, err := ac.service.SetupAdmin(req.Username, req.Email, req.Password)
	if err != nil {
		ac.respondAccountError(c, err)
		return
	}

	ac.audit(c, user.ID, "setup", true)
	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, user)
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (ac *AuthController) respondAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSignupDisabled), errors.Is(err, ErrSetupCompleted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Account operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (ac *AuthController) audit(c *gin.Context, userID uint, action string, success bool) {
	if ac.auditor == nil {
		return
	}
	ac.auditor.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}

// RoleFromParam parses a role name case-insensitively.
func RoleFromParam(s string) (entities.UserRole, error) {
	role := entities.UserRole(strings.ToUpper(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}
