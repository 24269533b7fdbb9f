package chatsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/rs/zerolog"
)

type Attachment struct {
	Kind     models.MessageKind
	Name     string
	Duration time.Duration
	Open     func() (io.ReadCloser, error)
}

// FileAttachment reads the attachment from a local path, as handed back by
// a picker or the recorder.
func FileAttachment(kind models.MessageKind, path string) Attachment {
	return Attachment{
		Kind: kind,
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

type Pipeline struct {
	blobs     BlobStore
	submitter *Submitter
	janitor   BlobJanitor
	log       zerolog.Logger
	now       func() time.Time
}

func NewPipeline(blobs BlobStore, submitter *Submitter, janitor BlobJanitor, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		blobs:     blobs,
		submitter: submitter,
		janitor:   janitor,
		log:       log,
		now:       time.Now,
	}
}

// Send uploads the attachment and only then submits a message referencing
// it. Nothing is written to the feed when the upload fails.
func (p *Pipeline) Send(
	ctx context.Context,
	conversationKey string,
	sender models.Participant,
	attachment Attachment,
	view *View,
) (models.Message, error) {
	if conversationKey == "" {
		return models.Message{}, fmt.Errorf("%w: conversation key is required", ErrInvalidArgument)
	}
	if attachment.Kind == models.MessageKindText || !attachment.Kind.Valid() {
		return models.Message{}, fmt.Errorf("%w: %q is not an attachment kind", ErrInvalidArgument, attachment.Kind)
	}
	if attachment.Open == nil {
		return models.Message{}, fmt.Errorf("%w: attachment has no content", ErrInvalidArgument)
	}
	if p.blobs == nil {
		return models.Message{}, fmt.Errorf("%w: blob storage is not configured", ErrUploadFailure)
	}

	content, err := attachment.Open()
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: open attachment: %w", ErrDeviceCapability, err)
	}
	defer content.Close()

	objectPath := AttachmentPath(conversationKey, attachment.Kind, attachment.Name, p.now())
	fileURL, err := p.blobs.Upload(ctx, objectPath, content)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %w", ErrUploadFailure, err)
	}
	if fileURL == "" {
		return models.Message{}, fmt.Errorf("%w: storage returned no url", ErrUploadFailure)
	}

	message := models.Message{
		Kind:         attachment.Kind,
		SenderID:     sender.ID,
		SenderName:   sender.DisplayName,
		SenderAvatar: sender.AvatarURL,
	}
	switch attachment.Kind {
	case models.MessageKindAudio:
		message.AudioURL = fileURL
		message.DurationMS = attachment.Duration.Milliseconds()
	case models.MessageKindImage:
		message.ImageURL = fileURL
	case models.MessageKindDocument:
		message.DocumentURL = fileURL
		message.FileName = attachment.Name
	}

	sent, err := p.submitter.Send(ctx, conversationKey, message, view)
	if err != nil && view == nil {
		// Without a view there is no failed entry to retry from, so the
		// upload is unreachable.
		p.discard(ctx, fileURL)
	}
	return sent, err
}

func (p *Pipeline) discard(ctx context.Context, fileURL string) {
	if p.janitor == nil {
		return
	}
	if err := p.janitor.DiscardBlob(ctx, fileURL); err != nil {
		p.log.Warn().Err(err).Str("url", fileURL).Msg("discard orphaned upload")
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentPath scopes an upload by conversation and kind and prefixes the
// file name with a timestamp so repeated uploads never collide.
func AttachmentPath(conversationKey string, kind models.MessageKind, name string, at time.Time) string {
	base := strings.Trim(unsafeFileChars.ReplaceAllString(filepath.Base(name), "-"), "-.")
	if base == "" {
		base = string(kind)
	}
	return fmt.Sprintf("chats/%s/%s/%d-%s", conversationKey, kind, at.UnixNano(), base)
}
