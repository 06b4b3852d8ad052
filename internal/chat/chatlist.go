package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/store"
)

// RoomSummary is one row of a user's chat list.
type RoomSummary struct {
	RoomID          string    `json:"room_id"`
	Kind            RoomKind  `json:"kind"`
	Title           string    `json:"title"`
	Image           string    `json:"image,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int       `json:"unread_count"`
}

// ChatList builds the per-user room overview: every room the user belongs
// to, newest activity first.
type ChatList struct {
	store store.Store
	log   *zerolog.Logger
}

func NewChatList(st store.Store, logger *zerolog.Logger) *ChatList {
	return &ChatList{store: st, log: logger}
}

// ListForUser returns the user's rooms sorted by last message time, newest
// first, ties broken by room id. A non-empty filter keeps rooms whose title
// or last message contains it, case-insensitively.
//
// Direct rooms take the counterpart's name and photo as title and image and
// always report zero unread; only group rooms carry unread counters.
func (c *ChatList) ListForUser(ctx context.Context, userID, filter string) ([]RoomSummary, error) {
	if userID == "" {
		return nil, validationError(ErrCodeBadUser, "user id is required")
	}
	rooms, err := c.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, rec := range rooms {
		members, err := c.store.ListMembers(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", rec.ID, err)
		}
		room := roomFromStore(rec, members)

		s := RoomSummary{
			RoomID:          room.ID,
			Kind:            room.Kind,
			Title:           room.Name,
			Image:           room.Image,
			LastMessage:     room.LastMessage,
			LastMessageTime: room.LastMessageTime,
		}
		switch room.Kind {
		case RoomDirect:
			if other, ok := room.Counterpart(userID); ok {
				s.Title = other.Name
				s.Image = other.Photo
			}
		case RoomGroup:
			for _, m := range room.Members {
				if m.UserID == userID {
					s.UnreadCount = m.UnreadCount
					break
				}
			}
		}
		summaries = append(summaries, s)
	}

	if filter != "" {
		needle := strings.ToLower(filter)
		kept := summaries[:0]
		for _, s := range summaries {
			if strings.Contains(strings.ToLower(s.Title), needle) ||
				strings.Contains(strings.ToLower(s.LastMessage), needle) {
				kept = append(kept, s)
			}
		}
		summaries = kept
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastMessageTime.Equal(summaries[j].LastMessageTime) {
			return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
		}
		return summaries[i].RoomID < summaries[j].RoomID
	})
	return summaries, nil
}
