package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/jackc/pgx/v5"
)

type stubCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	gets   int
}

func newStubCache() *stubCache {
	return &stubCache{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *stubCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return "", c.getErr
	}
	value, ok := c.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return value, nil
}

func (c *stubCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *stubCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := c.values[key]; ok {
			delete(c.values, key)
			removed++
		}
	}
	return removed, nil
}

func (c *stubCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if value, ok := c.values[key]; ok {
		n, _ = strconv.ParseInt(value, 10, 64)
	} else {
		c.ttls[key] = ttl
	}
	n++
	c.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *stubCache) Ping(context.Context) error { return nil }
func (c *stubCache) Close() error               { return nil }

type stubParticipants struct {
	byID       map[string]*models.Participant
	emailReads int
	verified   []string
	updates    []repository.UpdateProfileInput
}

func newStubParticipants(participants ...*models.Participant) *stubParticipants {
	s := &stubParticipants{byID: make(map[string]*models.Participant)}
	for _, p := range participants {
		s.byID[p.ID] = p
	}
	return s
}

func (s *stubParticipants) GetByID(_ context.Context, id string) (*models.Participant, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (s *stubParticipants) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	s.emailReads++
	return s.GetByID(ctx, email)
}

func (s *stubParticipants) MarkVerified(_ context.Context, id string) error {
	p, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.EmailVerified = true
	s.verified = append(s.verified, id)
	return nil
}

func (s *stubParticipants) UpdateProfile(_ context.Context, id string, input repository.UpdateProfileInput) (*models.Participant, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	s.updates = append(s.updates, input)
	if input.DisplayName != nil {
		p.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		p.AvatarURL = *input.AvatarURL
	}
	copied := *p
	return &copied, nil
}

type stubContacts struct {
	added  [][2]string
	listed []models.Contact
	err    error
}

func (s *stubContacts) Add(_ context.Context, ownerID string, contactID string) error {
	if s.err != nil {
		return s.err
	}
	s.added = append(s.added, [2]string{ownerID, contactID})
	return nil
}

func (s *stubContacts) ListForOwner(context.Context, string) ([]models.Contact, error) {
	return s.listed, s.err
}

type stubHistory struct {
	key         string
	limit       int
	offset      int
	result      []models.Message
	total       int
	attachments map[string][]models.Message
}

func (s *stubHistory) ListPage(_ context.Context, key string, limit int, offset int) ([]models.Message, int, error) {
	s.key = key
	s.limit = limit
	s.offset = offset
	return s.result, s.total, nil
}

func (s *stubHistory) AttachmentMessages(_ context.Context, fileURL string) ([]models.Message, error) {
	return s.attachments[fileURL], nil
}

type stubAttachmentSender struct {
	key    string
	sender models.Participant
	view   *chatsync.View
	calls  int
	err    error
}

func (s *stubAttachmentSender) Send(
	_ context.Context,
	key string,
	sender models.Participant,
	attachment chatsync.Attachment,
	view *chatsync.View,
) (models.Message, error) {
	s.calls++
	s.key = key
	s.sender = sender
	s.view = view
	if s.err != nil {
		return models.Message{}, s.err
	}
	return models.Message{ID: "m1", ConversationKey: key, Kind: attachment.Kind, SenderID: sender.ID}, nil
}

type recordingSender struct {
	codes map[string]string
}

func (s *recordingSender) SendCode(_ context.Context, participantID string, code string) error {
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[participantID] = code
	return nil
}

var errCacheDown = errors.New("cache down")
