package notify

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gardenplots/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestNotifierBookingCreated(t *testing.T) {
	sender := new(mockSender)
	logger := zerolog.New(io.Discard)
	n := NewTelegramNotifier(sender, 777, &logger)
	bus := events.NewEventBus()
	n.Register(bus)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 777 &&
			msg.ParseMode == tgbotapi.ModeMarkdown &&
			strings.Contains(msg.Text, "Новая бронь") &&
			strings.Contains(msg.Text, "Oak\\_Row") &&
			strings.Contains(msg.Text, "75.00") &&
			strings.Contains(msg.Text, "01.03.2026")
	})).Return(tgbotapi.Message{}, nil).Once()

	err := bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		BookingID:       "b1",
		GardenName:      "Oak_Row",
		StartDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		DurationMonths:  3,
		TotalPriceCents: 7500,
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestNotifierErrors(t *testing.T) {
	sender := new(mockSender)
	logger := zerolog.New(io.Discard)
	n := NewTelegramNotifier(sender, 1, &logger)

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("bot blocked")).Once()
	raw, _ := json.Marshal(events.GardenEventPayload{GardenID: "g1", Name: "Oak", TotalPlots: 3})
	assert.Error(t, n.Handle(&events.Event{Type: events.EventGardenDeleted, Payload: raw}))

	assert.Error(t, n.Handle(&events.Event{Type: events.EventBookingCreated, Payload: []byte("{")}))
	assert.NoError(t, n.Handle(&events.Event{Type: events.EventMessageSent, Payload: []byte("{}")}))
	sender.AssertExpectations(t)
}
