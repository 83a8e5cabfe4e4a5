package db

import "time"

type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderKind string    `json:"senderKind"` // "chat", "master", "system"
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (db *DB) InsertMessage(id, roomID, senderID, senderName, senderKind, content string) (*Message, error) {
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO messages (id, room_id, sender_id, sender_name, sender_kind, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, roomID, senderID, senderName, senderKind, content, now)
	if err != nil {
		return nil, err
	}

	// Bump room updated_at so room lists sort by activity
	db.Exec("UPDATE rooms SET updated_at = ? WHERE id = ?", now, roomID)

	return &Message{
		ID:         id,
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		SenderKind: senderKind,
		Content:    content,
		CreatedAt:  now,
	}, nil
}

func (db *DB) GetMessages(roomID string, before *time.Time, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var query string
	var args []any
	if before != nil {
		query = `
			SELECT id, room_id, sender_id, sender_name, sender_kind, content, created_at
			FROM messages WHERE room_id = ? AND created_at < ?
			ORDER BY created_at DESC LIMIT ?
		`
		args = []any{roomID, *before, limit}
	} else {
		query = `
			SELECT id, room_id, sender_id, sender_name, sender_kind, content, created_at
			FROM messages WHERE room_id = ?
			ORDER BY created_at DESC LIMIT ?
		`
		args = []any{roomID, limit}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.SenderKind, &m.Content, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
