package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tripline/chat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB

	// now is swappable in tests to produce deterministic timestamps.
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	image             TEXT NOT NULL DEFAULT '',
	created_by        TEXT NOT NULL DEFAULT '',
	last_message      TEXT NOT NULL DEFAULT '',
	last_message_time DATETIME,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id      TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	photo        TEXT NOT NULL DEFAULT '',
	unread_count INTEGER NOT NULL DEFAULT 0,
	joined_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	is_read     BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (room_id, id),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room_id, created_at, id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup. SQLite works best with a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's write-time clock. Tests only.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// ==== RoomStore implementation ====

// CreateDirectRoomIfAbsent creates a direct room under the canonical id and
// adds both participants as members. Idempotent: the INSERT OR IGNORE keyed
// by the canonical id makes concurrent resolution from both sides converge
// on a single row.
func (s *SQLiteStore) CreateDirectRoomIfAbsent(ctx context.Context, roomID string, a, b store.Member) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	roomQuery := `
		INSERT OR IGNORE INTO rooms (id, kind, created_at)
		VALUES (?, 'direct', ?)
	`
	if _, err := tx.ExecContext(ctx, roomQuery, roomID, s.now()); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	memberQuery := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, name, photo, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, m := range []store.Member{a, b} {
		if _, err := tx.ExecContext(ctx, memberQuery, roomID, m.UserID, m.Name, m.Photo, s.now()); err != nil {
			return nil, fmt.Errorf("insert member %s: %w", m.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoom(ctx, roomID)
}

// CreateGroupRoom creates a group room with its initial member set.
func (s *SQLiteStore) CreateGroupRoom(ctx context.Context, room *store.Room, members []store.Member) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	roomQuery := `
		INSERT INTO rooms (id, kind, name, image, created_by, created_at)
		VALUES (?, 'group', ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, roomQuery, room.ID, room.Name, room.Image, room.CreatedBy, s.now()); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	// INSERT OR IGNORE collapses duplicate user ids in the initial set.
	memberQuery := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, name, photo, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, m := range members {
		if _, err := tx.ExecContext(ctx, memberQuery, room.ID, m.UserID, m.Name, m.Photo, s.now()); err != nil {
			return nil, fmt.Errorf("insert member %s: %w", m.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoom(ctx, room.ID)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, kind, name, image, created_by, last_message, last_message_time, created_at
		FROM rooms
		WHERE id = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var room store.Room
	var kind string
	var lastMessageTime sql.NullTime
	err := row.Scan(
		&room.ID,
		&kind,
		&room.Name,
		&room.Image,
		&room.CreatedBy,
		&room.LastMessage,
		&lastMessageTime,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	room.Kind = store.RoomKind(kind)
	if lastMessageTime.Valid {
		room.LastMessageTime = lastMessageTime.Time
	}
	return &room, nil
}

// ListRoomsForUser lists all rooms the user is a member of.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.kind, r.name, r.image, r.created_by, r.last_message, r.last_message_time, r.created_at
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = ?
		ORDER BY r.last_message_time DESC, r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		var kind string
		var lastMessageTime sql.NullTime
		if err := rows.Scan(
			&room.ID,
			&kind,
			&room.Name,
			&room.Image,
			&room.CreatedBy,
			&room.LastMessage,
			&lastMessageTime,
			&room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Kind = store.RoomKind(kind)
		if lastMessageTime.Valid {
			room.LastMessageTime = lastMessageTime.Time
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, m store.Member) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, name, photo, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, m.RoomID, m.UserID, m.Name, m.Photo, s.now())
	if err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}

	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	query := `
		DELETE FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrMemberNotFound
	}
	return nil
}

// GetMember retrieves a single membership.
func (s *SQLiteStore) GetMember(ctx context.Context, roomID, userID string) (*store.Member, error) {
	query := `
		SELECT room_id, user_id, name, photo, unread_count, joined_at
		FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	var m store.Member
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(
		&m.RoomID,
		&m.UserID,
		&m.Name,
		&m.Photo,
		&m.UnreadCount,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMemberNotFound
		}
		return nil, fmt.Errorf("query member: %w", err)
	}

	return &m, nil
}

// ListMembers lists all members of a room ordered by join time.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]*store.Member, error) {
	query := `
		SELECT room_id, user_id, name, photo, unread_count, joined_at
		FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Member
	for rows.Next() {
		var m store.Member
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Name, &m.Photo, &m.UnreadCount, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage writes a message, updates the room's last-message fields and
// bumps unread counters of other group members in a single transaction, so
// the dual write can never partially fail.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var kind string
	if err := tx.QueryRowContext(ctx, `SELECT kind FROM rooms WHERE id = ?`, msg.RoomID).Scan(&kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRoomNotFound
		}
		return fmt.Errorf("query room: %w", err)
	}

	// The store is the authority for ordering: the write clock stamps the
	// message regardless of what the client reported.
	msg.CreatedAt = s.now()

	msgQuery := `
		INSERT INTO messages (id, room_id, sender_id, sender_name, type, payload, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`
	if _, err := tx.ExecContext(ctx, msgQuery,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Type, msg.Payload, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	roomQuery := `
		UPDATE rooms SET last_message = ?, last_message_time = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, roomQuery, preview(msg), msg.CreatedAt, msg.RoomID); err != nil {
		return fmt.Errorf("update room summary: %w", err)
	}

	if kind == string(store.RoomKindGroup) {
		unreadQuery := `
			UPDATE room_members SET unread_count = unread_count + 1
			WHERE room_id = ? AND user_id != ?
		`
		if _, err := tx.ExecContext(ctx, unreadQuery, msg.RoomID, msg.SenderID); err != nil {
			return fmt.Errorf("bump unread counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// preview renders the denormalized last-message text for room listings.
func preview(msg *store.Message) string {
	if msg.Type == "text" {
		return msg.Payload
	}
	return "[" + msg.Type + "]"
}

// ListMessages retrieves a room's messages oldest first, ordered by
// (created_at, id) so identical timestamps break ties deterministically.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int, before time.Time) ([]*store.Message, error) {
	var query string
	var args []interface{}

	switch {
	case limit > 0 && !before.IsZero():
		query = `
			SELECT id, room_id, sender_id, sender_name, type, payload, created_at, is_read
			FROM messages
			WHERE room_id = ? AND created_at < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`
		args = []interface{}{roomID, before, limit}
	case limit > 0:
		query = `
			SELECT id, room_id, sender_id, sender_name, type, payload, created_at, is_read
			FROM messages
			WHERE room_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`
		args = []interface{}{roomID, limit}
	default:
		query = `
			SELECT id, room_id, sender_id, sender_name, type, payload, created_at, is_read
			FROM messages
			WHERE room_id = ?
			ORDER BY created_at ASC, id ASC
		`
		args = []interface{}{roomID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName,
			&msg.Type, &msg.Payload, &msg.CreatedAt, &msg.IsRead,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 {
		// Reverse to get chronological order.
		for i := range len(messages) / 2 {
			messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
		}
	}

	return messages, nil
}

// GetMessage retrieves one message.
func (s *SQLiteStore) GetMessage(ctx context.Context, roomID, messageID string) (*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, sender_name, type, payload, created_at, is_read
		FROM messages
		WHERE room_id = ? AND id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, roomID, messageID).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName,
		&msg.Type, &msg.Payload, &msg.CreatedAt, &msg.IsRead,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMessageNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &msg, nil
}

// MarkRead flags all messages not sent by readerID as read and resets the
// reader's unread counter. Read state only moves forward: already-read rows
// are untouched, so repeated calls are no-ops.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	msgQuery := `
		UPDATE messages SET is_read = 1
		WHERE room_id = ? AND sender_id != ? AND is_read = 0
	`
	result, err := tx.ExecContext(ctx, msgQuery, roomID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	unreadQuery := `
		UPDATE room_members SET unread_count = 0
		WHERE room_id = ? AND user_id = ?
	`
	if _, err := tx.ExecContext(ctx, unreadQuery, roomID, readerID); err != nil {
		return 0, fmt.Errorf("reset unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return marked, nil
}

// DeleteMessage removes a message from the log.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	query := `DELETE FROM messages WHERE room_id = ? AND id = ?`
	result, err := s.db.ExecContext(ctx, query, roomID, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrMessageNotFound
	}
	return nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
