package models

import "time"

type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindAudio    MessageKind = "audio"
	MessageKindImage    MessageKind = "image"
	MessageKindDocument MessageKind = "document"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindAudio, MessageKindImage, MessageKindDocument:
		return true
	}
	return false
}

// MessageStatus is local delivery state. It is never stored.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

type Message struct {
	ID              string        `json:"id"`
	ConversationKey string        `json:"conversation_key"`
	Kind            MessageKind   `json:"kind"`
	Text            string        `json:"text,omitempty"`
	AudioURL        string        `json:"audio_url,omitempty"`
	ImageURL        string        `json:"image_url,omitempty"`
	DocumentURL     string        `json:"document_url,omitempty"`
	FileName        string        `json:"file_name,omitempty"`
	DurationMS      int64         `json:"duration_ms,omitempty"`
	SenderID        string        `json:"sender_id"`
	SenderName      string        `json:"sender_name,omitempty"`
	SenderAvatar    string        `json:"sender_avatar,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          MessageStatus `json:"status,omitempty"`
}

// AttachmentURL returns whichever URL the message carries, or "" for text.
func (m Message) AttachmentURL() string {
	switch m.Kind {
	case MessageKindAudio:
		return m.AudioURL
	case MessageKindImage:
		return m.ImageURL
	case MessageKindDocument:
		return m.DocumentURL
	}
	return ""
}

// PayloadCount reports how many of the mutually exclusive payload fields are set.
func (m Message) PayloadCount() int {
	count := 0
	for _, v := range []string{m.Text, m.AudioURL, m.ImageURL, m.DocumentURL} {
		if v != "" {
			count++
		}
	}
	return count
}

type Contact struct {
	OwnerID   string      `json:"owner_id"`
	Contact   Participant `json:"contact"`
	CreatedAt time.Time   `json:"created_at"`
}
