package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/tripline/chat-server/internal/auth"
	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to room subscriptions.
type WSHandler struct {
	messages  *chat.MessageLog
	presence  *chat.Presence
	jwtConfig *auth.JWTConfig
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(messages *chat.MessageLog, presence *chat.Presence, jwtConfig *auth.JWTConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{messages: messages, presence: presence, jwtConfig: jwtConfig, log: logger}
}

// session is the per-connection state. All writes to the socket go through
// the out channel so only the write loop touches the connection.
type session struct {
	user chat.UserRef
	out  chan proto.Outbound

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := &session{
		user: chat.UserRef{ID: claims.UserID, Name: claims.Name, Photo: claims.Photo},
		out:  make(chan proto.Outbound, 32),
		subs: make(map[string]context.CancelFunc),
	}
	defer sess.unsubscribeAll()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", sess.user.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate accepts the token either as a Bearer header or, for browser
// clients that cannot set WebSocket headers, a token query parameter.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return auth.ValidateToken(h.jwtConfig, token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		if protoErr := h.handleInbound(ctx, sess, inbound); protoErr != nil {
			select {
			case sess.out <- proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	for {
		select {
		case outbound := <-sess.out:
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				h.log.Error().Err(err).Str("user_id", sess.user.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, sess *session, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil || sub.Room == "" {
			return &proto.Error{Code: "bad_request", Msg: "room is required"}
		}
		return h.subscribe(ctx, sess, sub.Room)
	case proto.InboundTypeUnsubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil || sub.Room == "" {
			return &proto.Error{Code: "bad_request", Msg: "room is required"}
		}
		sess.unsubscribe(sub.Room)
		return nil
	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil || send.Room == "" {
			return &proto.Error{Code: "bad_request", Msg: "room is required"}
		}
		msgType := chat.MessageType(send.Type)
		if send.Type == "" {
			msgType = chat.TypeText
		}
		if _, err := h.messages.Send(ctx, send.Room, sess.user, msgType, send.Text); err != nil {
			return protoError(err)
		}
		return nil
	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil || typing.Room == "" {
			return &proto.Error{Code: "bad_request", Msg: "room is required"}
		}
		if err := h.presence.SetTyping(ctx, typing.Room, sess.user.ID, typing.IsTyping); err != nil {
			return protoError(err)
		}
		return nil
	case proto.InboundTypeRead:
		var read proto.ReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil || read.Room == "" {
			return &proto.Error{Code: "bad_request", Msg: "room is required"}
		}
		if err := h.messages.MarkRead(ctx, read.Room, sess.user.ID); err != nil {
			return protoError(err)
		}
		return nil
	default:
		return &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

// subscribe starts the backlog-then-live stream for a room plus its typing
// feed, pumping both into the session's outbound channel until unsubscribe
// or connection close.
func (h *WSHandler) subscribe(ctx context.Context, sess *session, roomID string) *proto.Error {
	sess.mu.Lock()
	if _, dup := sess.subs[roomID]; dup {
		sess.mu.Unlock()
		return nil
	}
	sess.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	events, err := h.messages.Subscribe(subCtx, roomID, sess.user.ID)
	if err != nil {
		cancel()
		return protoError(err)
	}
	typing, err := h.presence.SubscribeTyping(subCtx, roomID)
	if err != nil {
		cancel()
		return protoError(err)
	}

	sess.mu.Lock()
	sess.subs[roomID] = cancel
	sess.mu.Unlock()

	go func() {
		defer sess.unsubscribe(roomID)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Err != nil {
					sess.send(subCtx, proto.Outbound{Type: proto.OutboundTypeError, Room: roomID, Error: protoError(ev.Err)})
					return
				}
				if !sess.send(subCtx, outboundFromEvent(ev)) {
					return
				}
			case st, ok := <-typing:
				if !ok {
					return
				}
				// The sender sees everyone's typing state but their own.
				if st.UserID == sess.user.ID {
					continue
				}
				if !sess.send(subCtx, outboundFromTyping(st)) {
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *session) send(ctx context.Context, outbound proto.Outbound) bool {
	select {
	case s.out <- outbound:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *session) unsubscribe(roomID string) {
	s.mu.Lock()
	cancel, ok := s.subs[roomID]
	if ok {
		delete(s.subs, roomID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *session) unsubscribeAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.subs))
	for room, cancel := range s.subs {
		cancels = append(cancels, cancel)
		delete(s.subs, room)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
