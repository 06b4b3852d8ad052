package http

import (
	"net/http"

	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/proto"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusFor(err error) int {
	switch chat.KindOf(err) {
	case chat.KindValidation:
		return http.StatusBadRequest
	case chat.KindPermission:
		return http.StatusForbidden
	case chat.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return status, ErrorResponse{Error: "internal server error"}
	}
	return status, ErrorResponse{Error: err.Error(), Code: chat.CodeOf(err)}
}

func protoError(err error) *proto.Error {
	code := chat.CodeOf(err)
	if code == "" {
		code = chat.ErrCodeTransient
	}
	return &proto.Error{Code: code, Msg: err.Error()}
}

func outboundFromEvent(ev chat.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: string(ev.Type),
		Room:  ev.RoomID,
		Data:  ev,
	}
}

func outboundFromTyping(st chat.TypingState) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeTyping,
		Event: proto.OutboundTypeTyping,
		Room:  st.RoomID,
		Data: proto.TypingEvent{
			Room:     st.RoomID,
			User:     st.UserID,
			IsTyping: st.IsTyping,
		},
	}
}
