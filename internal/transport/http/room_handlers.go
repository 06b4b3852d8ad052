package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/chat"
)

// RoomHandlers provides HTTP handlers for room and chat-list endpoints.
type RoomHandlers struct {
	directory *chat.Directory
	chatList  *chat.ChatList
	log       *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(directory *chat.Directory, chatList *chat.ChatList, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		directory: directory,
		chatList:  chatList,
		log:       logger,
	}
}

// DirectRoomRequest represents the resolve-direct-room request body.
type DirectRoomRequest struct {
	PeerID    string `json:"peer_id" binding:"required"`
	PeerName  string `json:"peer_name" binding:"required"`
	PeerPhoto string `json:"peer_photo"`
}

// ResolveDirectRoom finds or creates the direct room between the caller and
// a peer. Both parties always resolve to the same room.
// POST /api/rooms/direct
func (h *RoomHandlers) ResolveDirectRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req DirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid direct room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	peer := chat.UserRef{ID: req.PeerID, Name: req.PeerName, Photo: req.PeerPhoto}
	room, err := h.directory.ResolveDirectRoom(c.Request.Context(), user, peer)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", user.ID).Str("peer_id", peer.ID).Msg("resolve direct room failed")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetRoom returns a single room with its members.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, err := h.directory.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	if !room.HasMember(user.ID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room", Code: chat.ErrCodeNotMember})
		return
	}

	c.JSON(http.StatusOK, room)
}

// ListChats returns the caller's chat list, newest activity first. An
// optional q parameter filters by title or last message.
// GET /api/chats
func (h *RoomHandlers) ListChats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chats, err := h.chatList.ListForUser(c.Request.Context(), user.ID, c.Query("q"))
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to list chats")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, chats)
}
