package handlers

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/middleware"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	chatws "github.com/AyeshaaMaalik/WhatsappChatApp/internal/websocket"
	"github.com/AyeshaaMaalik/WhatsappChatApp/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const (
	maxAttachmentSizeBytes = 25 * 1024 * 1024
	avatarFolder           = "participants/avatars"
)

type chatApplicationService interface {
	ListMessages(ctx context.Context, actorID string, contactID string, page int, limit int) ([]models.Message, int, error)
	SendAttachment(ctx context.Context, actorID string, contactID string, attachment chatsync.Attachment) (models.Message, error)
	AuthorizeAttachment(ctx context.Context, actorID string, fileURL string) error
}

type urlSigner interface {
	GetSignedURL(ctx context.Context, fileURL string) (string, error)
	ObjectPath(fileURL string) (string, error)
}

type ChatHandler struct {
	service    chatApplicationService
	signer     urlSigner
	hub        *chatws.Hub
	newSession chatws.SessionFactory
	jwtSecret  string
	log        zerolog.Logger
}

func NewChatHandler(
	service chatApplicationService,
	signer urlSigner,
	hub *chatws.Hub,
	newSession chatws.SessionFactory,
	jwtSecret string,
	log zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		service:    service,
		signer:     signer,
		hub:        hub,
		newSession: newSession,
		jwtSecret:  jwtSecret,
		log:        log,
	}
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), userID, c.Params("contact"), page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// UploadAttachment sends an image, audio clip or document picked on a
// device that has no websocket open.
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	kind := models.MessageKind(strings.ToLower(strings.TrimSpace(c.FormValue("kind"))))
	if !kind.Valid() || kind == models.MessageKindText {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be image, audio, or document"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}
	if fileHeader.Size > maxAttachmentSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file exceeds 25MB limit"})
	}

	attachment := chatsync.Attachment{
		Kind: kind,
		Name: filepath.Base(fileHeader.Filename),
		Open: func() (io.ReadCloser, error) {
			return fileHeader.Open()
		},
	}
	if kind == models.MessageKindAudio {
		if raw := c.FormValue("duration_ms"); raw != "" {
			durationMS, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || durationMS < 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_ms must be 0 or greater"})
			}
			attachment.Duration = time.Duration(durationMS) * time.Millisecond
		}
	}

	message, err := h.service.SendAttachment(c.Context(), userID, c.Params("contact"), attachment)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) SignedURL(c *fiber.Ctx) error {
	if h.signer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	}
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	fileURL := strings.TrimSpace(c.Query("url"))
	if fileURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}

	objectPath, err := h.signer.ObjectPath(fileURL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url does not point at chat storage"})
	}
	if !isAvatarPath(objectPath) {
		if err := h.service.AuthorizeAttachment(c.Context(), userID, fileURL); err != nil {
			return mapChatError(c, err)
		}
	}

	signedURL, err := h.signer.GetSignedURL(c.Context(), fileURL)
	if err != nil {
		h.log.Warn().Err(err).Msg("sign attachment url")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to sign url"})
	}

	return c.JSON(fiber.Map{"signed_url": signedURL})
}

// isAvatarPath reports whether objectPath is a profile picture, which every
// signed-in participant may see.
func isAvatarPath(objectPath string) bool {
	cleaned := path.Clean("/" + objectPath)
	return cleaned == "/"+objectPath && strings.HasPrefix(objectPath, avatarFolder+"/")
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := chatws.NewClient(h.hub, conn, userID, h.newSession, h.log)

	if !h.hub.Register(client) {
		client.Reject()
		return
	}
	go client.WritePump()
	client.ReadPump(context.Background())
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		if bearer, ok := middleware.BearerToken(c.Get("Authorization")); ok {
			tokenString = bearer
		}
	}
	return utils.ValidateToken(tokenString, h.jwtSecret)
}
