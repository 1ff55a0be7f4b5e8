package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/derkdev976-web/davel-library-sub002/internal/services"
)

// ChatController exposes polled direct messaging.
type ChatController struct {
	service *services.ChatService
}

func NewChatController(service *services.ChatService) *ChatController {
	return &ChatController{service: service}
}

type sendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Body        string `json:"body"`
}

// Contacts handles GET /api/chat/contacts
func (cc *ChatController) Contacts(c *gin.Context) {
	contacts, err := cc.service.Contacts(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "chat contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// UnreadCount handles GET /api/chat/unread-count
func (cc *ChatController) UnreadCount(c *gin.Context) {
	n, err := cc.service.UnreadCount(GetUserID(c))
	if err != nil {
		respondServiceError(c, err, "chat unread count")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// Conversation handles GET /api/chat/messages/:peerId?after=<id>
func (cc *ChatController) Conversation(c *gin.Context) {
	peerID, ok := parseIDParam(c, "peerId")
	if !ok {
		return
	}
	var after uint
	if s := c.Query("after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid after")
			return
		}
		after = uint(v)
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := cc.service.Conversation(GetUserID(c), peerID, after, limit)
	if err != nil {
		respondServiceError(c, err, "chat conversation")
		return
	}

	cursor := after
	if n := len(messages); n > 0 {
		cursor = messages[n-1].ID
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"cursor":   cursor,
	})
}

// Send handles POST /api/chat/messages
func (cc *ChatController) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := cc.service.Send(c.Request.Context(), actor(c), req.RecipientID, req.Body)
	if err != nil {
		respondServiceError(c, err, "send chat message")
		return
	}
	respondCreated(c, gin.H{"message": msg})
}
