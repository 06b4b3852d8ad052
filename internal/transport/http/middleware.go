package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/auth"
	"github.com/tripline/chat-server/internal/chat"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUserName is the context key for storing the display name.
	ContextKeyUserName = "user_name"
	// ContextKeyUserPhoto is the context key for storing the avatar URL.
	ContextKeyUserPhoto = "user_photo"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(jwtConfig *auth.JWTConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			logger.Debug().Msg("missing or malformed authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(jwtConfig, token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserName, claims.Name)
		c.Set(ContextKeyUserPhoto, claims.Photo)

		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// currentUser reads the authenticated identity set by AuthMiddleware.
func currentUser(c *gin.Context) (chat.UserRef, bool) {
	id, ok := c.Get(ContextKeyUserID)
	if !ok {
		return chat.UserRef{}, false
	}
	uid, ok := id.(string)
	if !ok || uid == "" {
		return chat.UserRef{}, false
	}
	return chat.UserRef{
		ID:    uid,
		Name:  c.GetString(ContextKeyUserName),
		Photo: c.GetString(ContextKeyUserPhoto),
	}, true
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
