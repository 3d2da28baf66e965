package service

import (
	"context"
	"strings"
	"time"

	"gardenplots/internal/domain"
	"gardenplots/internal/events"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
)

const invalidateTimeout = 2 * time.Second

type GardenService struct {
	repo     domain.GardenStore
	cache    domain.ListingCache
	cacheTTL time.Duration
	eventBus domain.EventPublisher
	outbox   domain.OutboxNotifier
	logger   *zerolog.Logger
}

func NewGardenService(
	repo domain.GardenStore,
	cache domain.ListingCache,
	cacheTTL time.Duration,
	eventBus domain.EventPublisher,
	outbox domain.OutboxNotifier,
	logger *zerolog.Logger,
) *GardenService {
	return &GardenService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		eventBus: eventBus,
		outbox:   outbox,
		logger:   logger,
	}
}

func (s *GardenService) List(ctx context.Context) ([]*models.Garden, error) {
	return s.cached(ctx, models.CacheKeyAllGardens, s.repo.ListGardens)
}

func (s *GardenService) ListAvailable(ctx context.Context) ([]*models.Garden, error) {
	return s.cached(ctx, models.CacheKeyAvailableGardens, s.repo.ListAvailableGardens)
}

func (s *GardenService) Search(ctx context.Context, query string) ([]*models.Garden, error) {
	if strings.TrimSpace(query) == "" {
		return s.List(ctx)
	}
	gardens, err := s.repo.SearchGardens(ctx, query)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "search gardens")
	}
	return gardens, nil
}

func (s *GardenService) Get(ctx context.Context, id string) (*models.Garden, error) {
	g, err := s.repo.GetGarden(ctx, id)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "get garden")
	}
	return g, nil
}

func (s *GardenService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Garden, error) {
	gardens, err := s.repo.ListGardensByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "list gardens by owner")
	}
	return gardens, nil
}

// Availability is the read model for map and notification consumers.
func (s *GardenService) Availability(ctx context.Context, id string) (*models.Availability, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Availability{
		GardenID:       g.ID,
		Name:           g.Name,
		TotalPlots:     g.TotalPlots,
		AvailablePlots: g.AvailablePlots,
	}, nil
}

func (s *GardenService) Create(ctx context.Context, principal models.Principal, in models.GardenInput) (*models.Garden, error) {
	if !principal.IsAdmin() {
		return nil, domain.New(domain.KindForbidden, "admin role required")
	}
	if err := validateGardenInput(in); err != nil {
		return nil, err
	}

	g := gardenFromInput(in)
	g.OwnerID = principal.UserID
	if err := s.repo.CreateGarden(ctx, g, s.outboxEvents(events.EventGardenCreated, g, principal.UserID)...); err != nil {
		return nil, domain.AsStoreFailure(err, "create garden")
	}

	s.logger.Info().Str("garden_id", g.ID).Str("owner_id", g.OwnerID).Int("plots", g.TotalPlots).Msg("garden created")
	s.afterChange(ctx, events.EventGardenCreated, g, principal.UserID)
	return g, nil
}

func (s *GardenService) Update(ctx context.Context, principal models.Principal, id string, in models.GardenInput) (*models.Garden, error) {
	if _, err := s.authorizeOwner(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := validateGardenInput(in); err != nil {
		return nil, err
	}

	g := gardenFromInput(in)
	g.ID = id
	if err := s.repo.UpdateGarden(ctx, g, s.outboxEvents(events.EventGardenUpdated, g, principal.UserID)...); err != nil {
		return nil, domain.AsStoreFailure(err, "update garden")
	}

	s.logger.Info().Str("garden_id", id).Int("plots", g.TotalPlots).Int("available", g.AvailablePlots).Msg("garden updated")
	s.afterChange(ctx, events.EventGardenUpdated, g, principal.UserID)
	return g, nil
}

func (s *GardenService) Delete(ctx context.Context, principal models.Principal, id string) error {
	g, err := s.authorizeOwner(ctx, principal, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteGarden(ctx, id, s.outboxEvents(events.EventGardenDeleted, g, principal.UserID)...); err != nil {
		return domain.AsStoreFailure(err, "delete garden")
	}

	s.logger.Info().Str("garden_id", id).Msg("garden deleted")
	s.afterChange(ctx, events.EventGardenDeleted, g, principal.UserID)
	return nil
}

// InvalidateListings drops cached garden lists after availability changes.
func (s *GardenService) InvalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, models.CacheKeyAllGardens, models.CacheKeyAvailableGardens); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate garden listings")
	}
}

// Register evicts cached listings whenever a booking changes a garden's
// free plot count.
func (s *GardenService) Register(bus *events.EventBus) {
	bus.Subscribe(s.handleBookingChange, events.EventBookingCreated, events.EventBookingCancelled)
}

func (s *GardenService) handleBookingChange(*events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	s.InvalidateListings(ctx)
	return nil
}

func (s *GardenService) authorizeOwner(ctx context.Context, principal models.Principal, id string) (*models.Garden, error) {
	if !principal.IsAdmin() {
		return nil, domain.New(domain.KindForbidden, "admin role required")
	}
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != principal.UserID {
		return nil, domain.New(domain.KindForbidden, "garden belongs to another admin")
	}
	return g, nil
}

func (s *GardenService) cached(
	ctx context.Context,
	key string,
	load func(context.Context) ([]*models.Garden, error),
) ([]*models.Garden, error) {
	if s.cache != nil {
		gardens, ok, err := s.cache.GetGardens(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("listing cache read failed")
		} else if ok {
			return gardens, nil
		}
	}

	gardens, err := load(ctx)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "list gardens")
	}

	if s.cache != nil {
		if err := s.cache.SetGardens(ctx, key, gardens, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("listing cache write failed")
		}
	}
	return gardens, nil
}

func gardenPayload(g *models.Garden, changedBy string) events.GardenEventPayload {
	return events.GardenEventPayload{
		GardenID:       g.ID,
		Name:           g.Name,
		TotalPlots:     g.TotalPlots,
		AvailablePlots: g.AvailablePlots,
		ChangedBy:      changedBy,
	}
}

// outboxEvents builds the payload inside the store transaction, after the
// store has assigned the id and recomputed availability on g.
func (s *GardenService) outboxEvents(eventType string, g *models.Garden, changedBy string) []models.OutboxEvent {
	if s.outbox == nil {
		return nil
	}
	return []models.OutboxEvent{{
		EventType: eventType,
		Build: func() (string, interface{}) {
			return g.ID, gardenPayload(g, changedBy)
		},
	}}
}

func (s *GardenService) afterChange(ctx context.Context, eventType string, g *models.Garden, changedBy string) {
	s.InvalidateListings(ctx)

	if s.outbox != nil {
		s.outbox.Notify()
	}
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(eventType, gardenPayload(g, changedBy)); err != nil {
			s.logger.Error().Err(err).Str("event_type", eventType).Str("garden_id", g.ID).Msg("publish event error")
		}
	}
}

func validateGardenInput(in models.GardenInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.New(domain.KindInvalidInput, "name is required")
	case in.TotalPlots < 0:
		return domain.New(domain.KindInvalidInput, "total_plots must not be negative")
	case in.BasePriceCents < 0:
		return domain.New(domain.KindInvalidInput, "base price must not be negative")
	case in.Latitude < -90 || in.Latitude > 90:
		return domain.New(domain.KindInvalidInput, "latitude out of range")
	case in.Longitude < -180 || in.Longitude > 180:
		return domain.New(domain.KindInvalidInput, "longitude out of range")
	case in.SizeSqm < 0:
		return domain.New(domain.KindInvalidInput, "size must not be negative")
	}
	return nil
}

func gardenFromInput(in models.GardenInput) *models.Garden {
	return &models.Garden{
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Address:        in.Address,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		TotalPlots:     in.TotalPlots,
		BasePriceCents: in.BasePriceCents,
		SizeSqm:        in.SizeSqm,
		Amenities:      in.Amenities,
		Images:         in.Images,
	}
}
