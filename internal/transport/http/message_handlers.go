package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/chat"
)

const defaultHistoryLimit = 50

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	messages *chat.MessageLog
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(messages *chat.MessageLog, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		messages: messages,
		log:      logger,
	}
}

// SendMessageRequest represents the send message request body. Timestamps
// are always server-assigned.
type SendMessageRequest struct {
	Type    string `json:"type"`
	Payload string `json:"payload" binding:"required"`
}

// SendMessage appends a message to a room.
// POST /api/rooms/:id/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Type == "" {
		req.Type = string(chat.TypeText)
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("id"), user, chat.MessageType(req.Type), req.Payload)
	if err != nil {
		h.log.Debug().Err(err).Str("room_id", c.Param("id")).Str("user_id", user.ID).Msg("send failed")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns room history, oldest first. Query parameters: limit
// (default 50) and before (RFC 3339) for backwards pagination.
// GET /api/rooms/:id/messages
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = parsed
	}

	messages, err := h.messages.History(c.Request.Context(), c.Param("id"), user.ID, limit, before)
	if err != nil {
		h.log.Debug().Err(err).Str("room_id", c.Param("id")).Str("user_id", user.ID).Msg("history failed")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkRead marks every message in the room as read for the caller.
// POST /api/rooms/:id/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteMessage removes the caller's own message from the room log.
// DELETE /api/rooms/:id/messages/:messageID
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.messages.Delete(c.Request.Context(), c.Param("id"), c.Param("messageID"), user.ID); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}
