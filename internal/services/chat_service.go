package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/jackc/pgx/v5"
)

type historyStore interface {
	ListPage(ctx context.Context, conversationKey string, limit int, offset int) ([]models.Message, int, error)
	AttachmentMessages(ctx context.Context, fileURL string) ([]models.Message, error)
}

type attachmentSender interface {
	Send(
		ctx context.Context,
		conversationKey string,
		sender models.Participant,
		attachment chatsync.Attachment,
		view *chatsync.View,
	) (models.Message, error)
}

// ChatService serves the request/response side of a conversation. Live
// updates go through a websocket session instead.
type ChatService struct {
	participants participantReader
	history      historyStore
	attachments  attachmentSender
}

func NewChatService(participants participantReader, history historyStore, attachments attachmentSender) *ChatService {
	return &ChatService{
		participants: participants,
		history:      history,
		attachments:  attachments,
	}
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID string,
	contactID string,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	_, key, err := s.resolve(ctx, actorID, contactID)
	if err != nil {
		return nil, 0, err
	}

	return s.history.ListPage(ctx, key, limit, (page-1)*limit)
}

// SendAttachment uploads an attachment and writes the message that
// references it.
func (s *ChatService) SendAttachment(
	ctx context.Context,
	actorID string,
	contactID string,
	attachment chatsync.Attachment,
) (models.Message, error) {
	actor, key, err := s.resolve(ctx, actorID, contactID)
	if err != nil {
		return models.Message{}, err
	}

	return s.attachments.Send(ctx, key, *actor, attachment, nil)
}

// AuthorizeAttachment allows actorID to read fileURL when it belongs to a
// message of one of the actor's conversations.
func (s *ChatService) AuthorizeAttachment(ctx context.Context, actorID string, fileURL string) error {
	if actorID == "" || strings.TrimSpace(fileURL) == "" {
		return ErrInvalidInput
	}

	messages, err := s.history.AttachmentMessages(ctx, fileURL)
	if err != nil {
		return err
	}
	for _, message := range messages {
		if message.SenderID == actorID {
			return nil
		}
		key, err := chatsync.DeriveConversationKey(actorID, message.SenderID)
		if err == nil && key == message.ConversationKey {
			return nil
		}
	}
	return ErrForbidden
}

func (s *ChatService) resolve(ctx context.Context, actorID string, contactID string) (*models.Participant, string, error) {
	contactID = strings.ToLower(strings.TrimSpace(contactID))
	if actorID == "" || contactID == "" || contactID == actorID {
		return nil, "", ErrInvalidInput
	}

	actor, err := s.participants.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrForbidden
		}
		return nil, "", err
	}
	if _, err := s.participants.GetByID(ctx, contactID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrParticipantNotFound
		}
		return nil, "", err
	}

	key, err := chatsync.DeriveConversationKey(actor.ID, contactID)
	if err != nil {
		return nil, "", ErrInvalidInput
	}
	return actor, key, nil
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
