package service

import (
	"context"
	"strings"

	"gardenplots/internal/domain"
	"gardenplots/internal/models"

	"github.com/rs/zerolog"
)

const maxNameLength = 255

type UserService struct {
	repo   domain.UserStore
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserStore, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// EnsureUser creates or refreshes the local profile of the principal.
func (s *UserService) EnsureUser(ctx context.Context, principal models.Principal) (*models.User, error) {
	if principal.IsZero() {
		return nil, domain.New(domain.KindForbidden, "authentication required")
	}
	role := principal.Role
	if role == "" {
		role = models.RoleUser
	}
	err := s.repo.UpsertUser(ctx, &models.User{
		ID:       principal.UserID,
		Email:    principal.Email,
		FullName: principal.FullName,
		Role:     role,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", principal.UserID).Msg("failed to upsert user")
		return nil, domain.AsStoreFailure(err, "upsert user")
	}
	u, err := s.repo.GetUser(ctx, principal.UserID)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "get user")
	}
	return u, nil
}

func (s *UserService) GetPublicProfile(ctx context.Context, id string) (*models.PublicProfile, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "get user")
	}
	p := u.Public()
	return &p, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, principal models.Principal, fullName, avatarURL string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > maxNameLength {
		return nil, domain.New(domain.KindInvalidInput, "full_name must be 1..255 characters")
	}
	if _, err := s.EnsureUser(ctx, principal); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUserProfile(ctx, principal.UserID, fullName, strings.TrimSpace(avatarURL)); err != nil {
		return nil, domain.AsStoreFailure(err, "update profile")
	}
	u, err := s.repo.GetUser(ctx, principal.UserID)
	if err != nil {
		return nil, domain.AsStoreFailure(err, "get user")
	}
	return u, nil
}
