package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// PollIntervalSeconds is how often clients are asked to poll for notifications.
const PollIntervalSeconds = 30

// NotificationsController serves the caller's notification inbox.
type NotificationsController struct {
	service *services.NotificationService
}

func NewNotificationsController(service *services.NotificationService) *NotificationsController {
	return &NotificationsController{service: service}
}

// List handles GET /api/notifications?unread=true
func (nc *NotificationsController) List(c *gin.Context) {
	userID := GetUserID(c)
	limit, offset := pagination(c)

	list, total, err := nc.service.List(userID, queryBool(c, "unread"), limit, offset)
	if err != nil {
		respondServiceError(c, err, "list notifications")
		return
	}
	unread, err := nc.service.UnreadCount(userID)
	if err != nil {
		respondServiceError(c, err, "notification count")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications":         list,
		"total":                 total,
		"unread":                unread,
		"limit":                 limit,
		"offset":                offset,
		"poll_interval_seconds": PollIntervalSeconds,
	})
}

// UnreadCount handles GET /api/notifications/unread-count
func (nc *NotificationsController) UnreadCount(c *gin.Context) {
	n, err := nc.service.UnreadCount(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "notification count")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"unread":                n,
		"poll_interval_seconds": PollIntervalSeconds,
	})
}

// MarkRead handles POST /api/notifications/:id/read
func (nc *NotificationsController) MarkRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := nc.service.MarkRead(GetUserID(c), id); err != nil {
		respondServiceError(c, err, "mark notification read")
		return
	}
	respondSuccess(c, "notification marked as read")
}

// MarkAllRead handles POST /api/notifications/read-all
func (nc *NotificationsController) MarkAllRead(c *gin.Context) {
	n, err := nc.service.MarkAllRead(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "mark all notifications read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete handles DELETE /api/notifications/:id
func (nc *NotificationsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := nc.service.Delete(GetUserID(c), id); err != nil {
		respondServiceError(c, err, "delete notification")
		return
	}
	respondSuccess(c, "notification deleted")
}
