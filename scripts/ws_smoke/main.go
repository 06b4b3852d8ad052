package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT (mint one with `chat-server token --user ...`)")
	room := flag.String("room", "", "room id to subscribe to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" || *room == "" {
		log.Fatal("both -token and -room are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(msgType string, data interface{}) {
		payload, _ := json.Marshal(data)
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
			log.Fatalf("send %s: %v", msgType, err)
		}
	}

	mustSend(proto.InboundTypeSubscribe, proto.SubscribeData{Room: *room})
	mustSend(proto.InboundTypeSend, proto.SendData{Room: *room, Text: *text})

	var outbound struct {
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Room  string          `json:"room"`
		Data  json.RawMessage `json:"data"`
		Error *proto.Error    `json:"error,omitempty"`
	}

	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		log.Fatalf("read: %v", err)
	}

	fmt.Printf("Received outbound: type=%s", outbound.Type)
	if outbound.Event != "" {
		fmt.Printf(" event=%s", outbound.Event)
	}
	if outbound.Room != "" {
		fmt.Printf(" room=%s", outbound.Room)
	}
	fmt.Println()
	if outbound.Error != nil {
		fmt.Printf("Error: %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
	}
	if len(outbound.Data) > 0 {
		var ev chat.Event
		if err := json.Unmarshal(outbound.Data, &ev); err == nil && ev.Message != nil {
			fmt.Printf("Message: room=%s sender=%s payload=%q ts=%s\n",
				ev.Message.RoomID, ev.Message.SenderName, ev.Message.Payload, ev.Message.Timestamp.Format(time.RFC3339))
		} else {
			fmt.Printf("Raw data: %s\n", string(outbound.Data))
		}
	}
}
