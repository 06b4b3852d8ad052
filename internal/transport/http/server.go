package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/auth"
	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/config"
)

// Services bundles the chat components the transport exposes.
type Services struct {
	Directory *chat.Directory
	Messages  *chat.MessageLog
	Presence  *chat.Presence
	Groups    *chat.Groups
	ChatList  *chat.ChatList
	Uploader  *chat.Uploader
	JWTConfig *auth.JWTConfig
}

// NewServer builds the HTTP server: REST API under /api, the WebSocket
// endpoint at /ws, and a health probe.
func NewServer(svc Services, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	roomHandlers := NewRoomHandlers(svc.Directory, svc.ChatList, logger)
	messageHandlers := NewMessageHandlers(svc.Messages, logger)
	groupHandlers := NewGroupHandlers(svc.Groups, logger)
	uploadHandlers := NewUploadHandlers(svc.Uploader, logger)

	api := router.Group("/api")
	api.Use(AuthMiddleware(svc.JWTConfig, logger))
	{
		api.GET("/chats", roomHandlers.ListChats)
		api.POST("/rooms/direct", roomHandlers.ResolveDirectRoom)
		api.GET("/rooms/:id", roomHandlers.GetRoom)

		api.GET("/rooms/:id/messages", messageHandlers.ListMessages)
		api.POST("/rooms/:id/messages", messageHandlers.SendMessage)
		api.POST("/rooms/:id/read", messageHandlers.MarkRead)
		api.DELETE("/rooms/:id/messages/:messageID", messageHandlers.DeleteMessage)

		api.POST("/rooms/:id/attachments", uploadHandlers.UploadAttachment)

		api.POST("/groups", groupHandlers.CreateGroup)
		api.POST("/groups/:id/members", groupHandlers.AddMember)
		api.DELETE("/groups/:id/members/:userID", groupHandlers.RemoveMember)
		api.POST("/groups/:id/leave", groupHandlers.LeaveGroup)
	}

	// The WebSocket upgrade needs to hijack the connection, so /ws lives on
	// a plain mux in front of gin.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Messages, svc.Presence, svc.JWTConfig, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
