package notify

import (
	"fmt"
	"strings"

	"gardenplots/internal/domain"
	"gardenplots/internal/events"
	"gardenplots/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "02.01.2006"

// TelegramNotifier posts booking and garden changes to the admin chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// Register subscribes the notifier to the events it reports.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.Subscribe(n.Handle,
		events.EventBookingCreated,
		events.EventBookingCancelled,
		events.EventGardenCreated,
		events.EventGardenDeleted,
	)
}

func (n *TelegramNotifier) Handle(ev *events.Event) error {
	text, err := render(ev)
	if err != nil {
		return fmt.Errorf("render %s: %w", ev.Type, err)
	}
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("event_type", ev.Type).Msg("telegram notification failed")
		return err
	}
	return nil
}

func render(ev *events.Event) (string, error) {
	switch ev.Type {
	case events.EventBookingCreated, events.EventBookingCancelled:
		var p events.BookingEventPayload
		if err := ev.Decode(&p); err != nil {
			return "", err
		}
		title := "🌱 *Новая бронь*"
		if ev.Type == events.EventBookingCancelled {
			title = "❌ *Бронь отменена*"
		}
		return fmt.Sprintf("%s\n\nУчасток: %s\nПериод: %s – %s (%d мес.)\nСумма: %s\nID: `%s`",
			title,
			escape(p.GardenName),
			p.StartDate.Format(dateLayout),
			p.EndDate.Format(dateLayout),
			p.DurationMonths,
			models.FormatCents(p.TotalPriceCents),
			p.BookingID,
		), nil
	case events.EventGardenCreated, events.EventGardenDeleted:
		var p events.GardenEventPayload
		if err := ev.Decode(&p); err != nil {
			return "", err
		}
		title := "🏡 *Сад добавлен*"
		if ev.Type == events.EventGardenDeleted {
			title = "🗑 *Сад удален*"
		}
		return fmt.Sprintf("%s\n\n%s\nУчастков: %d/%d", title, escape(p.Name), p.AvailablePlots, p.TotalPlots), nil
	default:
		return "", nil
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
