package service

import (
	"context"
	"io"
	"sync"
	"time"

	"gardenplots/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var testLogger = zerolog.New(io.Discard)

type mockStore struct {
	mock.Mock

	mu     sync.Mutex
	outbox []*models.OutboxTask
}

// commit mimics the store: outbox events are built only when the change succeeds.
func (m *mockStore) commit(err error, events []models.OutboxEvent) error {
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		task, taskErr := ev.Task()
		if taskErr != nil {
			return taskErr
		}
		m.outbox = append(m.outbox, task)
	}
	return nil
}

func (m *mockStore) outboxKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.outbox))
	for _, task := range m.outbox {
		keys = append(keys, task.EventType+":"+task.AggregateID)
	}
	return keys
}

func (m *mockStore) CreateGarden(ctx context.Context, g *models.Garden, outbox ...models.OutboxEvent) error {
	return m.commit(m.Called(ctx, g).Error(0), outbox)
}
func (m *mockStore) GetGarden(ctx context.Context, id string) (*models.Garden, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Garden), args.Error(1)
}
func (m *mockStore) ListGardens(ctx context.Context) ([]*models.Garden, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Garden), args.Error(1)
}
func (m *mockStore) ListAvailableGardens(ctx context.Context) ([]*models.Garden, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Garden), args.Error(1)
}
func (m *mockStore) SearchGardens(ctx context.Context, q string) ([]*models.Garden, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Garden), args.Error(1)
}
func (m *mockStore) ListGardensByOwner(ctx context.Context, ownerID string) ([]*models.Garden, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Garden), args.Error(1)
}
func (m *mockStore) UpdateGarden(ctx context.Context, g *models.Garden, outbox ...models.OutboxEvent) error {
	return m.commit(m.Called(ctx, g).Error(0), outbox)
}
func (m *mockStore) DeleteGarden(ctx context.Context, id string, outbox ...models.OutboxEvent) error {
	return m.commit(m.Called(ctx, id).Error(0), outbox)
}
func (m *mockStore) ReserveBooking(ctx context.Context, b *models.Booking, outbox ...models.OutboxEvent) error {
	return m.commit(m.Called(ctx, b).Error(0), outbox)
}
func (m *mockStore) CancelBooking(ctx context.Context, id string, outbox ...models.OutboxEvent) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if err := m.commit(args.Error(1), outbox); err != nil {
		return nil, err
	}
	return args.Get(0).(*models.Booking), nil
}
func (m *mockStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockStore) HasActiveBooking(ctx context.Context, userID, gardenID string) (bool, error) {
	args := m.Called(ctx, userID, gardenID)
	return args.Bool(0), args.Error(1)
}
func (m *mockStore) ListBookingsByUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookingsByGarden(ctx context.Context, gardenID string) ([]*models.Booking, error) {
	args := m.Called(ctx, gardenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) ListBookingsByDateRange(ctx context.Context, s, e time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockStore) UpsertUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockStore) UpdateUserProfile(ctx context.Context, id, fullName, avatarURL string) error {
	return m.Called(ctx, id, fullName, avatarURL).Error(0)
}
func (m *mockStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *mockStore) ListConversation(ctx context.Context, a, b string, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, a, b, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}
func (m *mockStore) ListMessagesForUser(ctx context.Context, userID string) ([]*models.Message, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}
func (m *mockStore) MarkConversationRead(ctx context.Context, readerID, senderID string) error {
	return m.Called(ctx, readerID, senderID).Error(0)
}
func (m *mockStore) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return m.Called(ctx, task).Error(0)
}
func (m *mockStore) GetPendingOutboxTasks(ctx context.Context, limit int) ([]*models.OutboxTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OutboxTask), args.Error(1)
}
func (m *mockStore) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, next *time.Time) error {
	return m.Called(ctx, id, status, errMsg, next).Error(0)
}
func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// recorder captures bus events and outbox wake-ups.
type recorder struct {
	mu       sync.Mutex
	events   []string
	notified int
}

func (r *recorder) PublishJSON(eventType string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recorder) Notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified++
}

type memCache struct {
	data        map[string][]*models.Garden
	invalidated []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]*models.Garden{}} }

func (c *memCache) GetGardens(_ context.Context, key string) ([]*models.Garden, bool, error) {
	g, ok := c.data[key]
	return g, ok, nil
}

func (c *memCache) SetGardens(_ context.Context, key string, gardens []*models.Garden, _ time.Duration) error {
	c.data[key] = gardens
	return nil
}

func (c *memCache) Invalidate(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	c.invalidated = append(c.invalidated, keys...)
	return nil
}

type chanBroker struct {
	mu   sync.Mutex
	subs map[string][]chan models.ChatEvent
}

func newChanBroker() *chanBroker { return &chanBroker{subs: map[string][]chan models.ChatEvent{}} }

func (b *chanBroker) Publish(_ context.Context, topic string, ev models.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		ch <- ev
	}
	return nil
}

func (b *chanBroker) Subscribe(_ context.Context, topic string) (<-chan models.ChatEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.ChatEvent, 4)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch, nil
}
