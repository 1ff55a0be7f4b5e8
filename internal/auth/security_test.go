package auth

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPasswordValidation_MinLength(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"short", true},
		{"seven77", true},
		{"eight888", false},
		{"a much longer passphrase", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			_, err := HashPassword(tt.password, 4)
			if (err != nil) != tt.wantErr {
				t.Errorf("HashPassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/api/books", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/books", nil))

	expected := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, want := range expected {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'none'") || !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("unexpected CSP: %q", csp)
	}
	if !strings.Contains(rr.Header().Get("Permissions-Policy"), "camera=()") {
		t.Error("Permissions-Policy should disable the camera")
	}
}

func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware(0))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set for plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set behind a TLS-terminating proxy")
	}
}

func TestUsernameValidation(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"ab", false},
		{"abc", true},
		{"user123", true},
		{"user_name", true},
		{"user-name", true},
		{"user.name", true},
		{"user@name", false},
		{"user name", false},
		{strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			if got := usernamePattern.MatchString(tt.username); got != tt.valid {
				t.Errorf("username %q validation = %v, want %v", tt.username, got, tt.valid)
			}
		})
	}
}

func TestEmailValidation(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"user@sub.example.com", true},
		{"user@", false},
		{"@example.com", false},
		{"user@example", false},
		{"plainaddress", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := emailPattern.MatchString(tt.email); got != tt.valid {
				t.Errorf("email %q validation = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}
