package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const lookupKeyPrefix = "participant:email:"

type contactStore interface {
	Add(ctx context.Context, ownerID string, contactID string) error
	ListForOwner(ctx context.Context, ownerID string) ([]models.Contact, error)
}

type ContactService struct {
	participants participantReader
	contacts     contactStore
	cache        cache.Cache
	ttl          time.Duration
	log          zerolog.Logger
}

func NewContactService(
	participants participantReader,
	contacts contactStore,
	c cache.Cache,
	ttl time.Duration,
	log zerolog.Logger,
) *ContactService {
	return &ContactService{
		participants: participants,
		contacts:     contacts,
		cache:        c,
		ttl:          ttl,
		log:          log,
	}
}

// Lookup finds a participant by email. Cache failures fall through to the
// database.
func (s *ContactService) Lookup(ctx context.Context, email string) (*models.Participant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidInput
	}

	if cached, ok := s.cachedLookup(ctx, email); ok {
		return cached, nil
	}

	participant, err := s.participants.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}

	s.storeLookup(ctx, participant)
	return participant, nil
}

func (s *ContactService) Add(ctx context.Context, ownerID string, email string) (*models.Contact, error) {
	participant, err := s.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if participant.ID == ownerID {
		return nil, ErrInvalidInput
	}

	if err := s.contacts.Add(ctx, ownerID, participant.ID); err != nil {
		return nil, err
	}
	return &models.Contact{OwnerID: ownerID, Contact: *participant, CreatedAt: time.Now().UTC()}, nil
}

func (s *ContactService) List(ctx context.Context, ownerID string) ([]models.Contact, error) {
	return s.contacts.ListForOwner(ctx, ownerID)
}

func (s *ContactService) cachedLookup(ctx context.Context, email string) (*models.Participant, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, lookupKeyPrefix+email)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Msg("participant lookup cache read failed")
		}
		return nil, false
	}

	var participant models.Participant
	if err := json.Unmarshal([]byte(raw), &participant); err != nil {
		return nil, false
	}
	return &participant, true
}

func (s *ContactService) storeLookup(ctx context.Context, participant *models.Participant) {
	if s.cache == nil {
		return
	}
	encoded, err := json.Marshal(participant)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, lookupKeyPrefix+participant.Email, string(encoded), s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("participant lookup cache write failed")
	}
}

func forgetLookup(ctx context.Context, c cache.Cache, email string) error {
	if c == nil || email == "" {
		return nil
	}
	_, err := c.Del(ctx, lookupKeyPrefix+strings.ToLower(email))
	return err
}
