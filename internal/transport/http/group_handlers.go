package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/chat"
)

// GroupHandlers provides HTTP handlers for group room management.
type GroupHandlers struct {
	groups *chat.Groups
	log    *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(groups *chat.Groups, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		groups: groups,
		log:    logger,
	}
}

// MemberRequest identifies a user to add to a group.
type MemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Photo  string `json:"photo"`
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name    string          `json:"name" binding:"required,min=1,max=64"`
	Image   string          `json:"image"`
	Members []MemberRequest `json:"members"`
}

// CreateGroup creates a group room with the caller as creator.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	members := make([]chat.UserRef, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, chat.UserRef{ID: m.UserID, Name: m.Name, Photo: m.Photo})
	}

	room, err := h.groups.CreateGroup(c.Request.Context(), req.Name, req.Image, user, members)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", user.ID).Msg("create group failed")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	h.log.Info().Str("room_id", room.ID).Str("creator", user.ID).Msg("group created")
	c.JSON(http.StatusCreated, room)
}

// AddMember adds a user to a group. Creator only.
// POST /api/groups/:id/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	member := chat.UserRef{ID: req.UserID, Name: req.Name, Photo: req.Photo}
	if err := h.groups.AddMember(c.Request.Context(), c.Param("id"), user.ID, member); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveMember removes a user from a group. Creator only; the creator
// cannot be removed.
// DELETE /api/groups/:id/members/:userID
func (h *GroupHandlers) RemoveMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.groups.RemoveMember(c.Request.Context(), c.Param("id"), user.ID, c.Param("userID")); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}

// LeaveGroup removes the caller from a group. The creator cannot leave.
// POST /api/groups/:id/leave
func (h *GroupHandlers) LeaveGroup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.groups.LeaveGroup(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}
