package service

import (
	"context"
	"time"

	"gardenplots/internal/domain"
	"gardenplots/internal/events"
	"gardenplots/internal/metrics"
	"gardenplots/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BookingService struct {
	repo      domain.Store
	validator *PaymentValidator
	eventBus  domain.EventPublisher
	outbox    domain.OutboxNotifier
	clock     domain.Clock
	logger    *zerolog.Logger
}

func NewBookingService(
	repo domain.Store,
	validator *PaymentValidator,
	eventBus domain.EventPublisher,
	outbox domain.OutboxNotifier,
	clock domain.Clock,
	logger *zerolog.Logger,
) *BookingService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &BookingService{
		repo:      repo,
		validator: validator,
		eventBus:  eventBus,
		outbox:    outbox,
		clock:     clock,
		logger:    logger,
	}
}

// Reserve books one plot of the garden for the principal.
func (s *BookingService) Reserve(
	ctx context.Context,
	principal models.Principal,
	gardenID string,
	durationMonths int,
	payment models.PaymentInfo,
) (booking *models.Booking, err error) {
	defer func() { metrics.IncReservation(outcome(err)) }()

	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}

	garden, err := s.repo.GetGarden(ctx, gardenID)
	if err != nil {
		return nil, s.storeErr(err, "load garden")
	}
	if !garden.HasAvailability() {
		return nil, domain.New(domain.KindPolicyRejected, "no plots available")
	}

	exists, err := s.repo.HasActiveBooking(ctx, principal.UserID, gardenID)
	if err != nil {
		return nil, s.storeErr(err, "check existing booking")
	}
	if exists {
		return nil, domain.New(domain.KindDuplicateBooking, "you already have an active booking for this garden")
	}

	if err := s.validator.Validate(payment, durationMonths); err != nil {
		s.logger.Warn().Err(err).Str("user_id", principal.UserID).Str("garden_id", gardenID).Msg("reservation rejected by validator")
		return nil, err
	}

	now := s.clock.Now()
	booking = &models.Booking{
		ID:              uuid.NewString(),
		UserID:          principal.UserID,
		GardenID:        garden.ID,
		GardenName:      garden.Name,
		StartDate:       now,
		EndDate:         AddMonths(now, durationMonths),
		DurationMonths:  durationMonths,
		TotalPriceCents: garden.BasePriceCents * int64(durationMonths),
		Status:          models.StatusConfirmed,
		PaymentMethod:   models.PaymentMethodSimulated,
		CardLast4:       CardLast4(payment.CardNumber),
	}

	// Атомарно: уменьшаем available_plots, создаем бронь и запись outbox
	if err := s.repo.ReserveBooking(ctx, booking, s.outboxEvents(events.EventBookingCreated, booking, principal.UserID)...); err != nil {
		return nil, s.storeErr(err, "reserve booking")
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("garden_id", booking.GardenID).
		Str("user_id", booking.UserID).
		Int("months", durationMonths).
		Int64("total_cents", booking.TotalPriceCents).
		Msg("booking reserved")

	s.publishEvent(events.EventBookingCreated, booking, principal.UserID)
	return booking, nil
}

// Cancel cancels a booking owned by the principal and returns its plot.
func (s *BookingService) Cancel(ctx context.Context, principal models.Principal, bookingID string) (booking *models.Booking, err error) {
	defer func() { metrics.IncCancellation(outcome(err)) }()

	existing, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.storeErr(err, "load booking")
	}
	if principal.IsZero() || existing.UserID != principal.UserID {
		return nil, domain.New(domain.KindForbidden, "only the booking owner can cancel it")
	}
	if existing.Status == models.StatusCancelled {
		return nil, domain.New(domain.KindAlreadyCancelled, "booking is already cancelled")
	}

	cancelled := *existing
	cancelled.Status = models.StatusCancelled
	booking, err = s.repo.CancelBooking(ctx, bookingID, s.outboxEvents(events.EventBookingCancelled, &cancelled, principal.UserID)...)
	if err != nil {
		return nil, s.storeErr(err, "cancel booking")
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("garden_id", booking.GardenID).
		Str("user_id", principal.UserID).
		Msg("booking cancelled")

	s.publishEvent(events.EventBookingCancelled, booking, principal.UserID)
	return booking, nil
}

// Get returns a booking visible to its owner, the garden owner or an admin.
func (s *BookingService) Get(ctx context.Context, principal models.Principal, bookingID string) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.storeErr(err, "load booking")
	}
	if b.UserID == principal.UserID || principal.IsAdmin() {
		return b, nil
	}
	return nil, domain.New(domain.KindForbidden, "booking belongs to another user")
}

func (s *BookingService) ListMine(ctx context.Context, principal models.Principal) ([]*models.Booking, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	bookings, err := s.repo.ListBookingsByUser(ctx, principal.UserID)
	if err != nil {
		return nil, s.storeErr(err, "list bookings")
	}
	return bookings, nil
}

// ListForGarden is available to the garden's owner and to admins.
func (s *BookingService) ListForGarden(ctx context.Context, principal models.Principal, gardenID string) ([]*models.Booking, error) {
	garden, err := s.repo.GetGarden(ctx, gardenID)
	if err != nil {
		return nil, s.storeErr(err, "load garden")
	}
	if !principal.IsAdmin() && garden.OwnerID != principal.UserID {
		return nil, domain.New(domain.KindForbidden, "only the garden owner can list its bookings")
	}
	bookings, err := s.repo.ListBookingsByGarden(ctx, gardenID)
	if err != nil {
		return nil, s.storeErr(err, "list garden bookings")
	}
	return bookings, nil
}

// ListForPeriod returns bookings overlapping [from, to] for admin exports.
func (s *BookingService) ListForPeriod(ctx context.Context, principal models.Principal, from, to time.Time) ([]*models.Booking, error) {
	if !principal.IsAdmin() {
		return nil, domain.New(domain.KindForbidden, "admin role required")
	}
	if to.Before(from) {
		return nil, domain.New(domain.KindInvalidInput, "period end is before its start")
	}
	bookings, err := s.repo.ListBookingsByDateRange(ctx, from, to)
	if err != nil {
		return nil, s.storeErr(err, "list bookings by period")
	}
	return bookings, nil
}

func (s *BookingService) storeErr(err error, op string) error {
	err = domain.AsStoreFailure(err, op)
	if domain.Retryable(err) {
		s.logger.Error().Err(err).Str("op", op).Msg("store unavailable")
	}
	return err
}

func bookingPayload(booking *models.Booking, changedBy string) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		GardenID:        booking.GardenID,
		GardenName:      booking.GardenName,
		Status:          booking.Status,
		StartDate:       booking.StartDate,
		EndDate:         booking.EndDate,
		DurationMonths:  booking.DurationMonths,
		TotalPriceCents: booking.TotalPriceCents,
		ChangedBy:       changedBy,
	}
}

// outboxEvents is empty when no delivery worker runs, so nothing piles up
// in the outbox table.
func (s *BookingService) outboxEvents(eventType string, booking *models.Booking, changedBy string) []models.OutboxEvent {
	if s.outbox == nil {
		return nil
	}
	return []models.OutboxEvent{{
		EventType: eventType,
		Build: func() (string, interface{}) {
			return booking.ID, bookingPayload(booking, changedBy)
		},
	}}
}

// publishEvent runs after commit: the outbox rows are already stored.
func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.outbox != nil {
		s.outbox.Notify()
	}
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(eventType, bookingPayload(booking, changedBy)); err != nil {
			s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
