package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/derkdev976-web/davel-library-sub002/internal/tasks"
)

// MaintenanceRunner triggers a maintenance job by name.
// *scheduler.MaintenanceScheduler satisfies it.
type MaintenanceRunner interface {
	RunNow(name string) error
	NextRuns() map[string]time.Time
}

// TasksController exposes the task queue and maintenance jobs to admins.
type TasksController struct {
	client      *tasks.Client
	maintenance MaintenanceRunner
}

// NewTasksController creates a new TasksController. Either argument may be nil.
func NewTasksController(client *tasks.Client, maintenance MaintenanceRunner) *TasksController {
	return &TasksController{client: client, maintenance: maintenance}
}

// JobInfo describes a maintenance job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

var maintenanceJobs = []JobInfo{
	{Name: "expire_reservations", Description: "Expire approved reservations that were not collected in time"},
	{Name: "overdue_reminders", Description: "Email and notify borrowers with overdue loans"},
	{Name: "cleanup", Description: "Delete old read notifications and audit events"},
}

// ListJobs handles GET /api/admin/maintenance
func (tc *TasksController) ListJobs(c *gin.Context) {
	var next map[string]time.Time
	if tc.maintenance != nil {
		next = tc.maintenance.NextRuns()
	}

	jobs := make([]JobInfo, 0, len(maintenanceJobs))
	for _, j := range maintenanceJobs {
		if t, ok := next[j.Name]; ok && !t.IsZero() {
			t := t
			j.NextRun = &t
		}
		jobs = append(jobs, j)
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":         jobs,
		"queue_active": tc.client != nil,
	})
}

// RunJob handles POST /api/admin/maintenance/:job/run
func (tc *TasksController) RunJob(c *gin.Context) {
	if tc.maintenance == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "maintenance scheduler is not running"})
		return
	}
	job := c.Param("job")
	if !knownJob(job) {
		respondBadRequest(c, "unknown job: "+job)
		return
	}
	if err := tc.maintenance.RunNow(job); err != nil {
		respondInternalError(c, err, "run maintenance job")
		return
	}
	respondAccepted(c, "job started", gin.H{"job": job})
}

func knownJob(name string) bool {
	for _, j := range maintenanceJobs {
		if j.Name == name {
			return true
		}
	}
	return false
}

// GetTaskStatus handles GET /api/admin/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	if tc.client == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is disabled"})
		return
	}
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
