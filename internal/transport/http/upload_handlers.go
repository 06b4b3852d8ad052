package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/blob"
	"github.com/tripline/chat-server/internal/chat"
)

// UploadHandlers provides HTTP handlers for media attachments.
type UploadHandlers struct {
	uploader *chat.Uploader
	log      *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(uploader *chat.Uploader, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		uploader: uploader,
		log:      logger,
	}
}

// UploadAttachment streams a multipart file into the blob store and, on
// success, responds with the media message appended to the room. A failed
// or aborted upload produces no message.
// POST /api/rooms/:id/attachments
func (h *UploadHandlers) UploadAttachment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid attachment request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file field is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("open multipart file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer file.Close()

	progress, err := h.uploader.Upload(c.Request.Context(), c.Param("id"), user, blob.Blob{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	})
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	var final chat.UploadProgress
	for p := range progress {
		final = p
	}

	switch final.State {
	case chat.UploadCompleted:
		c.JSON(http.StatusCreated, final.Message)
	case chat.UploadFailed:
		if final.Err != nil {
			status, body := errorResponse(final.Err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "upload failed"})
	default:
		// The client went away mid-stream; nothing left to answer.
		h.log.Debug().Str("room_id", c.Param("id")).Str("task_id", final.TaskID).Msg("upload aborted")
	}
}
