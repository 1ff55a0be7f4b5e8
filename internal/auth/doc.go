// Package auth provides authentication and authorization for the library API.
//
// Browsers authenticate with a session cookie issued by POST /api/auth/login;
// scripts and integrations use a per-user Bearer token created through
// POST /api/auth/token. Both resolve to the same user record, and the role
// stored on that record (ADMIN, LIBRARIAN, MEMBER or GUEST) gates access.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<base64-32-bytes>  # Generated at startup if empty
//	AUTH_SESSION_LIFETIME=24h              # Session duration
//	AUTH_TOKEN_EXPIRY=720h                 # API token expiry, 0 disables expiry
//	AUTH_BCRYPT_COST=12                    # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true               # HTTPS-only cookies
//	AUTH_ALLOW_SIGNUP=true                 # GUEST self registration
//
// # Usage
//
//	authService := auth.NewService(db.DB, cfg.Auth)
//	mw := auth.NewMiddleware(authService, sessionManager)
//	router.Use(sessionManager.SessionLoadSave(), mw.Handler())
//	admin := api.Group("/admin", mw.RequireRole(entities.UserRoleAdmin))
//
// Extract the caller in handlers:
//
//	userID := auth.GetUserID(c) // 0 for anonymous requests
//
// Cookie-authenticated POST, PUT, PATCH and DELETE requests must echo the
// token from GET /api/auth/csrf in the X-CSRF-Token header.
package auth
