package services

import (
	"context"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/rs/zerolog"
)

type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id string, input repository.UpdateProfileInput) (*models.Participant, error)
}

type ProfileService struct {
	participants ProfileUpdater
	cache        cache.Cache
	log          zerolog.Logger
}

func NewProfileService(participants ProfileUpdater, c cache.Cache, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		participants: participants,
		cache:        c,
		log:          log,
	}
}

// UpdateProfile applies the non-nil fields of input and drops the cached
// lookup so contacts see the change.
func (s *ProfileService) UpdateProfile(ctx context.Context, id string, input repository.UpdateProfileInput) (*models.Participant, error) {
	participant, err := s.participants.UpdateProfile(ctx, id, input)
	if err != nil {
		return nil, err
	}
	if err := forgetLookup(ctx, s.cache, participant.Email); err != nil {
		s.log.Warn().Err(err).Str("participant_id", id).Msg("participant lookup cache invalidation failed")
	}
	return participant, nil
}
