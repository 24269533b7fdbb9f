package chatws

import (
	"encoding/json"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
)

const (
	frameOpen     = "open"
	frameMessage  = "message"
	frameRetry    = "retry"
	frameMessages = "messages"
	frameAck      = "ack"
	frameError    = "error"
)

type incomingFrame struct {
	Type      string `json:"type"`
	ContactID string `json:"contact_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

type outgoingFrame struct {
	Type            string           `json:"type"`
	ConversationKey string           `json:"conversation_key,omitempty"`
	Messages        []models.Message `json:"messages,omitempty"`
	MessageID       string           `json:"message_id,omitempty"`
	Status          string           `json:"status,omitempty"`
	Error           string           `json:"error,omitempty"`
	Retryable       bool             `json:"retryable,omitempty"`
	Timestamp       string           `json:"timestamp"`
}

func encodeFrame(frame outgoingFrame) ([]byte, error) {
	if frame.Timestamp == "" {
		frame.Timestamp = services.FormatChatTimestamp(time.Now())
	}
	return json.Marshal(frame)
}
