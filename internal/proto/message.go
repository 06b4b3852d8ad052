package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"
	InboundTypeSend        = "send"
	InboundTypeTyping      = "typing"
	InboundTypeRead        = "read"

	OutboundTypeEvent  = "event"
	OutboundTypeTyping = "typing"
	OutboundTypeError  = "error"
	OutboundTypeAck    = "ack"
)

// SubscribeData requests live events for a room.
type SubscribeData struct {
	Room string `json:"room"`
}

// SendData is a text message from the client. The server assigns the
// timestamp; any client-provided one is ignored.
type SendData struct {
	Room string `json:"room"`
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// TypingData reports the client's typing state in a room.
type TypingData struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"is_typing"`
}

// ReadData marks every message in the room as read for the caller.
type ReadData struct {
	Room string `json:"room"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// TypingEvent notifies subscribers about a peer's typing state.
type TypingEvent struct {
	Room     string `json:"room"`
	User     string `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
