package database

import (
	"context"
	"fmt"

	"gardenplots/internal/models"

	"github.com/google/uuid"
)

const messageColumns = `id, sender_id, receiver_id, content, is_read, created_at`

func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = utcNow()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Read, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (db *DB) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*models.Message, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

// ListConversation returns the latest limit messages between two users,
// oldest first.
func (db *DB) ListConversation(ctx context.Context, userA, userB string, limit int) ([]*models.Message, error) {
	msgs, err := db.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
        WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
        ORDER BY created_at DESC LIMIT ?`,
		userA, userB, userB, userA, limit,
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListMessagesForUser returns every message the user sent or received, newest first.
func (db *DB) ListMessagesForUser(ctx context.Context, userID string) ([]*models.Message, error) {
	return db.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
        WHERE sender_id = ? OR receiver_id = ?
        ORDER BY created_at DESC`,
		userID, userID,
	)
}

func (db *DB) MarkConversationRead(ctx context.Context, readerID, senderID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE messages SET is_read = ? WHERE receiver_id = ? AND sender_id = ? AND is_read = ?`,
		true, readerID, senderID, false,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
