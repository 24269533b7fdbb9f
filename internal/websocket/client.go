package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	operationTimeout = 15 * time.Second
	genericFailure   = "failed to process chat request"
)

// Conn is the part of a websocket connection the pumps use.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SessionFactory builds the chat session behind one connection.
type SessionFactory func(userID string, opts ...chatsync.SessionOption) *chatsync.Session

// Client is one websocket connection. It owns exactly one chat session,
// which is closed when the connection drops.
type Client struct {
	hub     *Hub
	conn    Conn
	userID  string
	session *chatsync.Session
	log     zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn Conn, userID string, newSession SessionFactory, log zerolog.Logger) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		log:    log.With().Str("user_id", userID).Logger(),
		send:   make(chan []byte, 32),
	}
	c.session = newSession(userID,
		chatsync.WithLogger(c.log),
		chatsync.WithOnChange(c.pushMessages),
		chatsync.WithOnError(func(err error) { c.pushError(err, "") }),
	)
	return c
}

// Reject releases a client the hub refused to register.
func (c *Client) Reject() {
	if err := c.session.Close(); err != nil {
		c.log.Warn().Err(err).Msg("close chat session")
	}
	c.closeSend()
	_ = c.conn.Close()
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		if err := c.session.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close chat session")
		}
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming incomingFrame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.pushNotice("invalid message payload", "")
			continue
		}
		c.dispatch(ctx, incoming)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) dispatch(ctx context.Context, incoming incomingFrame) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	switch incoming.Type {
	case frameOpen:
		if err := c.session.Open(ctx, strings.ToLower(incoming.ContactID)); err != nil {
			c.pushError(err, "")
		}
	case frameMessage:
		if incoming.ClientID != "" {
			if _, err := uuid.Parse(incoming.ClientID); err != nil {
				c.pushNotice("client_id must be a UUID", incoming.ClientID)
				return
			}
		}
		message, err := c.session.SendWithID(ctx, incoming.ClientID, incoming.Text)
		c.acknowledge(message, err)
	case frameRetry:
		message, err := c.session.Retry(ctx, incoming.MessageID)
		if message.ID == "" {
			message.ID = incoming.MessageID
		}
		c.acknowledge(message, err)
	default:
		c.pushNotice("unsupported message type", "")
	}
}

func (c *Client) acknowledge(message models.Message, err error) {
	if err != nil {
		c.pushError(err, message.ID)
		return
	}
	c.enqueue(outgoingFrame{
		Type:      frameAck,
		MessageID: message.ID,
		Status:    string(message.Status),
	})
}

func (c *Client) pushMessages(conversationKey string, messages []models.Message) {
	c.enqueue(outgoingFrame{
		Type:            frameMessages,
		ConversationKey: conversationKey,
		Messages:        messages,
	})
}

func (c *Client) pushError(err error, messageID string) {
	if !isChatError(err) {
		c.log.Error().Err(err).Str("message_id", messageID).Msg("chat operation failed")
	}
	c.enqueue(outgoingFrame{
		Type:      frameError,
		MessageID: messageID,
		Error:     describeError(err),
		Retryable: chatsync.Retryable(err),
	})
}

func (c *Client) pushNotice(text string, messageID string) {
	c.enqueue(outgoingFrame{
		Type:      frameError,
		MessageID: messageID,
		Error:     text,
	})
}

// enqueue drops the connection when the write buffer is full rather than
// blocking the session callback.
func (c *Client) enqueue(frame outgoingFrame) {
	payload, err := encodeFrame(frame)
	if err != nil {
		c.log.Error().Err(err).Str("frame", frame.Type).Msg("encode websocket frame")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.log.Warn().Msg("websocket send buffer full, dropping connection")
		c.closed = true
		close(c.send)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, chatsync.ErrWriteFailure):
		return "failed to send message"
	case errors.Is(err, chatsync.ErrUploadFailure):
		return "failed to upload attachment"
	case errors.Is(err, chatsync.ErrInvalidArgument):
		return "invalid message"
	case errors.Is(err, chatsync.ErrNoConversation):
		return "no conversation open"
	case errors.Is(err, chatsync.ErrMessageNotFound):
		return "message not found"
	case errors.Is(err, chatsync.ErrSubscriptionFailure):
		return "conversation feed unavailable"
	case errors.Is(err, chatsync.ErrSessionClosed):
		return "session closed"
	case errors.Is(err, chatsync.ErrDeviceCapability):
		return "not supported on this connection"
	default:
		return genericFailure
	}
}

func isChatError(err error) bool {
	return describeError(err) != genericFailure
}
