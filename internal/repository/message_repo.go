package repository

import (
	"context"
	"database/sql"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/jackc/pgx/v5"
)

// FeedChannel is the LISTEN/NOTIFY channel carrying the conversation key of
// every written message.
const FeedChannel = "feed_messages"

const messageColumns = `id, conversation_key, kind, body, audio_url, image_url, document_url, file_name, duration_ms, sender_id, sender_name, sender_avatar, created_at`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores message under its client id. Writing the same id to the same
// conversation again returns the stored record unchanged; an id taken by
// another conversation yields pgx.ErrNoRows.
func (r *MessageRepository) Create(ctx context.Context, message models.Message) (*models.Message, error) {
	query := `
		WITH inserted AS (
			INSERT INTO feed_messages (
				id, conversation_key, kind, body, audio_url, image_url, document_url,
				file_name, duration_ms, sender_id, sender_name, sender_avatar
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING
			RETURNING ` + messageColumns + `
		)
		SELECT ` + messageColumns + ` FROM inserted
		UNION ALL
		SELECT ` + messageColumns + ` FROM feed_messages
		WHERE id = $1 AND conversation_key = $2 AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	return scanMessage(r.db.QueryRow(ctx, query,
		message.ID,
		message.ConversationKey,
		string(message.Kind),
		nullString(message.Text),
		nullString(message.AudioURL),
		nullString(message.ImageURL),
		nullString(message.DocumentURL),
		nullString(message.FileName),
		nullInt64(message.DurationMS),
		message.SenderID,
		message.SenderName,
		message.SenderAvatar,
	))
}

// ListOrdered returns the whole feed of a conversation, oldest first.
func (r *MessageRepository) ListOrdered(ctx context.Context, conversationKey string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM feed_messages
		WHERE conversation_key = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationKey)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListByConversation pages through a conversation newest first.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationKey string,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM feed_messages
		WHERE conversation_key = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, conversationKey).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM feed_messages
		WHERE conversation_key = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationKey, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// ListByAttachmentURL returns the messages that reference fileURL.
func (r *MessageRepository) ListByAttachmentURL(ctx context.Context, fileURL string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM feed_messages
		WHERE audio_url = $1 OR image_url = $1 OR document_url = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, fileURL)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *MessageRepository) NotifyWritten(ctx context.Context, conversationKey string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_notify($1, $2)`, FeedChannel, conversationKey)
	return err
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	var kind string
	var body, audioURL, imageURL, documentURL, fileName sql.NullString
	var durationMS sql.NullInt64

	if err := row.Scan(
		&message.ID,
		&message.ConversationKey,
		&kind,
		&body,
		&audioURL,
		&imageURL,
		&documentURL,
		&fileName,
		&durationMS,
		&message.SenderID,
		&message.SenderName,
		&message.SenderAvatar,
		&message.CreatedAt,
	); err != nil {
		return nil, err
	}

	message.Kind = models.MessageKind(kind)
	message.Text = body.String
	message.AudioURL = audioURL.String
	message.ImageURL = imageURL.String
	message.DocumentURL = documentURL.String
	message.FileName = fileName.String
	message.DurationMS = durationMS.Int64
	return &message, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt64(value int64) sql.NullInt64 {
	return sql.NullInt64{Int64: value, Valid: value != 0}
}
