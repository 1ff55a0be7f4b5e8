package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader is the header name for the CSRF token on unsafe requests.
const CSRFTokenHeader = "X-CSRF-Token"

const contextKeyCSRFToken = "csrf_token"

// CSRFMiddleware protects cookie-authenticated requests against cross-site
// forgery. It skips the check for:
//   - requests carrying a valid Bearer token
//   - requests without a session cookie, which cannot ride on ambient credentials
//
// Safe methods (GET, HEAD, OPTIONS, TRACE) pass through gorilla/csrf untouched
// and receive a token via GetCSRFToken.
func CSRFMiddleware(secret []byte, secure bool, sessionCookie string, authService *Service) gin.HandlerFunc {
	csrfProtect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if isValidBearer(c, authService) || !hasCookie(c.Request, sessionCookie) && !isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		req := c.Request
		if !secure {
			// Without TLS there is no Referer to check against.
			req = csrf.PlaintextHTTPRequest(req)
		}

		passed := false
		handler := csrfProtect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Set(contextKeyCSRFToken, csrf.Token(r))
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, req)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
}

func isValidBearer(c *gin.Context, authService *Service) bool {
	token, ok := bearerToken(c)
	if !ok || authService == nil {
		return false
	}
	_, err := authService.ValidateToken(token)
	return err == nil
}

func hasCookie(r *http.Request, name string) bool {
	if name == "" {
		return false
	}
	cookie, err := r.Cookie(name)
	return err == nil && cookie.Value != ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// GetCSRFToken retrieves the CSRF token from the Gin context.
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(contextKeyCSRFToken)
}
