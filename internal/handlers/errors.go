package handlers

import (
	"errors"
	"strings"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

var errMissingIdentity = errors.New("missing identity")

func currentUserID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || strings.TrimSpace(userID) == "" {
		return "", errMissingIdentity
	}
	return userID, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, chatsync.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrParticipantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participant not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, chatsync.ErrUploadFailure):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload attachment", "retryable": true})
	case errors.Is(err, chatsync.ErrWriteFailure):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Failed to send message", "retryable": true})
	case errors.Is(err, chatsync.ErrDeviceCapability):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Attachment could not be read"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
