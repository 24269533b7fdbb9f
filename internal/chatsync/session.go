package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/media"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/rs/zerolog"
)

// Session is the state behind one open conversation screen. It owns at most
// one feed subscription, one recording and one playback, and Close releases
// all of them.
type Session struct {
	identity   IdentityProvider
	blobs      BlobStore
	subscriber *Subscriber
	submitter  *Submitter
	pipeline   *Pipeline
	recording  *media.Recording
	playback   *media.Playback
	janitor    BlobJanitor
	log        zerolog.Logger
	onChange   func(conversationKey string, messages []models.Message)
	onError    func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	generation  uint64
	self        *models.Participant
	key         string
	unsubscribe func()
	view        *View
}

const discardTimeout = 5 * time.Second

type SessionOption func(*Session)

func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithOnChange registers the callback that receives the merged message list
// after every change. It must not call back into the session.
func WithOnChange(fn func(conversationKey string, messages []models.Message)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// WithOnError receives asynchronous failures such as a broken feed.
func WithOnError(fn func(error)) SessionOption {
	return func(s *Session) { s.onError = fn }
}

func WithRecorder(recorder media.Recorder) SessionOption {
	return func(s *Session) { s.recording = media.NewRecording(recorder) }
}

func WithPlayer(player media.Player) SessionOption {
	return func(s *Session) { s.playback = media.NewPlayback(player) }
}

func WithJanitor(janitor BlobJanitor) SessionOption {
	return func(s *Session) { s.janitor = janitor }
}

func NewSession(identity IdentityProvider, feed FeedStore, blobs BlobStore, opts ...SessionOption) *Session {
	s := &Session{
		identity: identity,
		blobs:    blobs,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.subscriber = NewSubscriber(feed, s.log)
	s.submitter = NewSubmitter(feed)
	s.pipeline = NewPipeline(blobs, s.submitter, s.janitor, s.log)
	s.view = NewView(nil)
	return s
}

// Open switches the session to the conversation with contactID. The previous
// subscription is released first. When the signed-in identity or the contact
// is unknown the session stays detached and no error is returned.
func (s *Session) Open(ctx context.Context, contactID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	previous, previousView := s.detachLocked()
	generation := s.generation
	s.mu.Unlock()

	if previous != nil {
		previous()
	}
	s.stopMedia()
	s.discardFailedUploads(previousView)

	self, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	contactID = strings.TrimSpace(contactID)
	if self == nil || self.ID == "" || contactID == "" {
		return nil
	}

	key, err := DeriveConversationKey(self.ID, contactID)
	if err != nil {
		return err
	}

	view := NewView(func(messages []models.Message) {
		s.publish(generation, key, messages)
	})
	s.mu.Lock()
	if s.closed || s.generation != generation {
		s.mu.Unlock()
		return nil
	}
	s.view = view
	s.mu.Unlock()

	unsubscribe, err := s.subscriber.Subscribe(
		s.ctx,
		key,
		func(messages []models.Message) {
			if s.current(generation) {
				view.Replace(messages)
			}
		},
		func(err error) {
			if s.current(generation) {
				s.reportError(err)
			}
		},
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.generation != generation {
		// Closed or reopened while the listener was attaching.
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.self = self
	s.key = key
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.log.Debug().Str("conversation_key", key).Msg("conversation opened")
	return nil
}

func (s *Session) ConversationKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Messages returns the merged list, newest first.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()
	return view.Messages()
}

func (s *Session) Send(ctx context.Context, text string) (models.Message, error) {
	return s.SendWithID(ctx, "", text)
}

// SendWithID sends a text message under a client-chosen id.
func (s *Session) SendWithID(ctx context.Context, id string, text string) (models.Message, error) {
	self, key, view, err := s.active()
	if err != nil {
		return models.Message{}, err
	}

	return s.submitter.Send(ctx, key, models.Message{
		ID:           id,
		Kind:         models.MessageKindText,
		Text:         text,
		SenderID:     self.ID,
		SenderName:   self.DisplayName,
		SenderAvatar: self.AvatarURL,
	}, view)
}

func (s *Session) SendAttachment(ctx context.Context, attachment Attachment) (models.Message, error) {
	self, key, view, err := s.active()
	if err != nil {
		return models.Message{}, err
	}
	return s.pipeline.Send(ctx, key, *self, attachment, view)
}

// Retry re-sends a message whose write failed, under the same id.
func (s *Session) Retry(ctx context.Context, id string) (models.Message, error) {
	_, key, view, err := s.active()
	if err != nil {
		return models.Message{}, err
	}

	message, ok := view.Find(id)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if message.Status != models.MessageStatusFailed {
		return message, nil
	}
	message.Status = ""
	return s.submitter.Send(ctx, key, message, view)
}

func (s *Session) StartRecording(ctx context.Context) error {
	if _, _, _, err := s.active(); err != nil {
		return err
	}
	if s.recording == nil {
		return fmt.Errorf("%w: no recorder", ErrDeviceCapability)
	}
	return mapMediaError(s.recording.Start(ctx))
}

// StopRecording ends the recording and sends the clip as an audio message.
func (s *Session) StopRecording(ctx context.Context) (models.Message, error) {
	if s.recording == nil {
		return models.Message{}, fmt.Errorf("%w: no recorder", ErrDeviceCapability)
	}
	clip, err := s.recording.Stop(ctx)
	if err != nil {
		return models.Message{}, mapMediaError(err)
	}

	attachment := FileAttachment(models.MessageKindAudio, clip.Path)
	attachment.Duration = clip.Duration
	return s.SendAttachment(ctx, attachment)
}

// Play starts playback of an audio attachment, stopping any other first.
func (s *Session) Play(ctx context.Context, messageID string) error {
	message, err := s.attachment(messageID)
	if err != nil {
		return err
	}
	if message.Kind != models.MessageKindAudio {
		return fmt.Errorf("%w: message %s is not audio", ErrInvalidArgument, messageID)
	}
	if s.playback == nil {
		return fmt.Errorf("%w: no player", ErrDeviceCapability)
	}
	return mapMediaError(s.playback.Play(ctx, message.ID, message.AudioURL))
}

func (s *Session) StopPlayback() error {
	if s.playback == nil {
		return nil
	}
	return mapMediaError(s.playback.Stop())
}

// Download fetches an attachment into the local cache and returns its path.
func (s *Session) Download(ctx context.Context, messageID string) (string, error) {
	message, err := s.attachment(messageID)
	if err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", fmt.Errorf("%w: blob storage is not configured", ErrDeviceCapability)
	}
	path, err := s.blobs.Download(ctx, message.AttachmentURL())
	if err != nil {
		return "", fmt.Errorf("%w: download: %w", ErrDeviceCapability, err)
	}
	return path, nil
}

// Close releases the subscription and any media in use. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe, view := s.detachLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.discardFailedUploads(view)

	var errs []error
	if s.recording != nil {
		if err := s.recording.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.playback != nil {
		if err := s.playback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()
	return errors.Join(errs...)
}

// detachLocked bumps the generation so callbacks from the old subscription
// are dropped, and hands back its disposer and view.
func (s *Session) detachLocked() (func(), *View) {
	s.generation++
	unsubscribe, view := s.unsubscribe, s.view
	s.unsubscribe = nil
	s.self = nil
	s.key = ""
	s.view = NewView(nil)
	return unsubscribe, view
}

// stopMedia drops a recording or playback that belongs to the conversation
// being left.
func (s *Session) stopMedia() {
	if s.recording != nil {
		if err := s.recording.Cancel(); err != nil {
			s.log.Warn().Err(err).Msg("cancel recording")
		}
	}
	if s.playback != nil {
		if err := s.playback.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("stop playback")
		}
	}
}

// discardFailedUploads hands the uploads of attachments that never reached
// the feed to the janitor once their view can no longer retry them.
func (s *Session) discardFailedUploads(view *View) {
	if s.janitor == nil || view == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	for _, message := range view.Failed() {
		if fileURL := message.AttachmentURL(); fileURL != "" {
			s.pipeline.discard(ctx, fileURL)
		}
	}
}

func (s *Session) current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.generation == generation
}

func (s *Session) active() (*models.Participant, string, *View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, "", nil, ErrSessionClosed
	}
	if s.key == "" || s.self == nil {
		return nil, "", nil, ErrNoConversation
	}
	return s.self, s.key, s.view, nil
}

func (s *Session) attachment(messageID string) (models.Message, error) {
	_, _, view, err := s.active()
	if err != nil {
		return models.Message{}, err
	}
	message, ok := view.Find(messageID)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if message.AttachmentURL() == "" {
		return models.Message{}, fmt.Errorf("%w: message %s has no attachment", ErrInvalidArgument, messageID)
	}
	return message, nil
}

func (s *Session) publish(generation uint64, key string, messages []models.Message) {
	if s.onChange == nil || !s.current(generation) {
		return
	}
	s.onChange(key, messages)
}

func (s *Session) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func mapMediaError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, media.ErrInvalidState):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		return fmt.Errorf("%w: %w", ErrDeviceCapability, err)
	}
}
