package domain

import (
	"context"
	"time"

	"gardenplots/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Mutations take outbox events that are committed atomically with the change.
type GardenStore interface {
	CreateGarden(ctx context.Context, garden *models.Garden, outbox ...models.OutboxEvent) error
	GetGarden(ctx context.Context, id string) (*models.Garden, error)
	ListGardens(ctx context.Context) ([]*models.Garden, error)
	ListAvailableGardens(ctx context.Context) ([]*models.Garden, error)
	SearchGardens(ctx context.Context, query string) ([]*models.Garden, error)
	ListGardensByOwner(ctx context.Context, ownerID string) ([]*models.Garden, error)
	UpdateGarden(ctx context.Context, garden *models.Garden, outbox ...models.OutboxEvent) error
	DeleteGarden(ctx context.Context, id string, outbox ...models.OutboxEvent) error
}

type BookingStore interface {
	// ReserveBooking atomically takes one plot and inserts the booking.
	ReserveBooking(ctx context.Context, booking *models.Booking, outbox ...models.OutboxEvent) error
	// CancelBooking atomically cancels the booking and returns its plot.
	CancelBooking(ctx context.Context, id string, outbox ...models.OutboxEvent) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	HasActiveBooking(ctx context.Context, userID, gardenID string) (bool, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]*models.Booking, error)
	ListBookingsByGarden(ctx context.Context, gardenID string) ([]*models.Booking, error)
	ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id, fullName, avatarURL string) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListConversation(ctx context.Context, userA, userB string, limit int) ([]*models.Message, error)
	ListMessagesForUser(ctx context.Context, userID string) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, readerID, senderID string) error
}

type OutboxStore interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]*models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Store is implemented by every persistence adapter (SQLite, MySQL).
type Store interface {
	GardenStore
	BookingStore
	UserStore
	MessageStore
	OutboxStore
	Ping(ctx context.Context) error
}

// ListingCache keeps serialized garden lists for the public browse endpoints.
type ListingCache interface {
	GetGardens(ctx context.Context, key string) ([]*models.Garden, bool, error)
	SetGardens(ctx context.Context, key string, gardens []*models.Garden, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Broker is the chat transport: topic is a conversation id.
type Broker interface {
	Publish(ctx context.Context, topic string, event models.ChatEvent) error
	// Subscribe delivers events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan models.ChatEvent, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OutboxNotifier wakes the delivery worker after outbox rows are committed.
type OutboxNotifier interface {
	Notify()
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
