package chatsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/google/uuid"
)

type Submitter struct {
	store FeedStore
	now   func() time.Time
	newID func() string
}

func NewSubmitter(store FeedStore) *Submitter {
	return &Submitter{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Send appends message to view as pending, then writes it to the feed. A nil
// view skips the optimistic step. On a failed write the view keeps the entry
// marked failed so the user can retry it.
func (s *Submitter) Send(
	ctx context.Context,
	conversationKey string,
	message models.Message,
	view *View,
) (models.Message, error) {
	if conversationKey == "" {
		return message, fmt.Errorf("%w: conversation key is required", ErrInvalidArgument)
	}
	if message.ID == "" {
		message.ID = s.newID()
	}
	message.ConversationKey = conversationKey
	message.Text = strings.TrimSpace(message.Text)
	if err := ValidateMessage(message); err != nil {
		return message, err
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}
	message.Status = models.MessageStatusPending

	if view != nil {
		view.AppendPending(message)
	}

	stored, err := s.store.WriteMessage(ctx, conversationKey, message)
	if err != nil {
		message.Status = models.MessageStatusFailed
		if view != nil {
			view.MarkFailed(message.ID)
		}
		return message, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	stored.Status = models.MessageStatusSent
	if view != nil {
		view.MarkSent(message.ID, stored)
	}
	return stored, nil
}

// ValidateMessage enforces that exactly one payload is set and that it
// matches the message kind.
func ValidateMessage(message models.Message) error {
	if message.SenderID == "" {
		return fmt.Errorf("%w: sender is required", ErrInvalidArgument)
	}
	if !message.Kind.Valid() {
		return fmt.Errorf("%w: unknown message kind %q", ErrInvalidArgument, message.Kind)
	}
	if message.PayloadCount() != 1 {
		return fmt.Errorf("%w: message must carry exactly one payload", ErrInvalidArgument)
	}

	var payload string
	switch message.Kind {
	case models.MessageKindText:
		payload = message.Text
	default:
		payload = message.AttachmentURL()
	}
	if payload == "" {
		return fmt.Errorf("%w: payload does not match kind %q", ErrInvalidArgument, message.Kind)
	}
	return nil
}
