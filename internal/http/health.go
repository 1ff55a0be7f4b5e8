package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping() error
}

type HealthController struct {
	db      *database.Database
	version string
	extra   map[string]Pinger
}

func NewHealthController(db *database.Database, version string) *HealthController {
	return &HealthController{
		db:      db,
		version: version,
		extra:   make(map[string]Pinger),
	}
}

// AddCheck reports p under name. A failing extra check degrades the status
// without failing the endpoint.
func (h *HealthController) AddCheck(name string, p Pinger) {
	h.extra[name] = p
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	for name, p := range h.extra {
		if err := p.Ping(); err != nil {
			checks[name] = "error: " + err.Error()
			if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}

func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
