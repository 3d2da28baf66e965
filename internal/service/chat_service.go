package service

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"gardenplots/internal/domain"
	"gardenplots/internal/events"
	"gardenplots/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultHistoryLimit = 100

type chatRepository interface {
	domain.MessageStore
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// ChatService persists direct messages and fans them out over the broker,
// one topic per conversation.
type ChatService struct {
	repo     chatRepository
	broker   domain.Broker
	eventBus domain.EventPublisher
	clock    domain.Clock
	logger   *zerolog.Logger
}

func NewChatService(
	repo chatRepository,
	broker domain.Broker,
	eventBus domain.EventPublisher,
	clock domain.Clock,
	logger *zerolog.Logger,
) *ChatService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ChatService{
		repo:     repo,
		broker:   broker,
		eventBus: eventBus,
		clock:    clock,
		logger:   logger,
	}
}

func (s *ChatService) Send(ctx context.Context, principal models.Principal, receiverID, content string) (*models.Message, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return nil, domain.New(domain.KindInvalidInput, "message is empty")
	case utf8.RuneCountInString(content) > models.MaxMessageLength:
		return nil, domain.Newf(domain.KindInvalidInput, "message is longer than %d characters", models.MaxMessageLength)
	case receiverID == principal.UserID:
		return nil, domain.New(domain.KindInvalidInput, "cannot message yourself")
	}

	if _, err := s.repo.GetUser(ctx, receiverID); err != nil {
		return nil, domain.AsStoreFailure(err, "get receiver")
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   principal.UserID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, domain.AsStoreFailure(err, "create message")
	}

	topic := models.ConversationID(msg.SenderID, msg.ReceiverID)
	if s.broker != nil {
		ev := models.ChatEvent{ID: msg.ID, SenderID: msg.SenderID, Content: msg.Content, Timestamp: msg.CreatedAt}
		// сообщение уже сохранено, подписчики догонят через историю
		if err := s.broker.Publish(ctx, topic, ev); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("chat publish failed")
		}
	}
	if s.eventBus != nil {
		payload := events.MessageEventPayload{
			MessageID:      msg.ID,
			ConversationID: topic,
			SenderID:       msg.SenderID,
			ReceiverID:     msg.ReceiverID,
			SentAt:         msg.CreatedAt,
		}
		if err := s.eventBus.PublishJSON(events.EventMessageSent, payload); err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("publish event error")
		}
	}
	return msg, nil
}

// Conversations lists the principal's chats, most recent first.
func (s *ChatService) Conversations(ctx context.Context, principal models.Principal) ([]*models.Conversation, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	msgs, err := s.repo.ListMessagesForUser(ctx, principal.UserID)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "list messages")
	}

	byPeer := make(map[string]*models.Conversation)
	for _, m := range msgs {
		peer := m.SenderID
		if peer == principal.UserID {
			peer = m.ReceiverID
		}
		c, ok := byPeer[peer]
		if !ok {
			c = &models.Conversation{ID: models.ConversationID(principal.UserID, peer), OtherUserID: peer}
			byPeer[peer] = c
		}
		if c.LastMessage == nil || m.CreatedAt.After(c.LastMessage.CreatedAt) {
			c.LastMessage = m
			c.UpdatedAt = m.CreatedAt
		}
		if m.ReceiverID == principal.UserID && !m.Read {
			c.UnreadCount++
		}
	}

	out := make([]*models.Conversation, 0, len(byPeer))
	for _, c := range byPeer {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Messages returns the history with another user and marks it read.
func (s *ChatService) Messages(ctx context.Context, principal models.Principal, otherID string, limit int) ([]*models.Message, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	msgs, err := s.repo.ListConversation(ctx, principal.UserID, otherID, limit)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "list conversation")
	}
	if err := s.repo.MarkConversationRead(ctx, principal.UserID, otherID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", principal.UserID).Msg("failed to mark messages read")
	}
	return msgs, nil
}

// Subscribe streams new messages of the conversation until ctx is done.
func (s *ChatService) Subscribe(ctx context.Context, principal models.Principal, otherID string) (<-chan models.ChatEvent, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	if s.broker == nil {
		return nil, domain.New(domain.KindStoreUnavailable, "chat broker is not configured")
	}
	ch, err := s.broker.Subscribe(ctx, models.ConversationID(principal.UserID, otherID))
	if err != nil {
		return nil, domain.Wrap(domain.KindStoreUnavailable, "subscribe", err)
	}
	return ch, nil
}
