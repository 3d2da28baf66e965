package models

import (
	"sort"
	"time"
)

// Message is a direct chat message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationID returns the topic shared by both participants of a chat.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// Conversation summarises a chat for one of its participants.
type Conversation struct {
	ID          string    `json:"id"`
	OtherUserID string    `json:"other_user_id"`
	LastMessage *Message  `json:"last_message"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatEvent is what a topic subscriber receives.
type ChatEvent struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Availability is the read model served to map and notification consumers.
type Availability struct {
	GardenID       string `json:"garden_id"`
	Name           string `json:"name"`
	TotalPlots     int    `json:"total_plots"`
	AvailablePlots int    `json:"available_plots"`
}
