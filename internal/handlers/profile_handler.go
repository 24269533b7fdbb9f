package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const maxAvatarSizeBytes = 5 * 1024 * 1024

type participantLookup interface {
	GetByID(ctx context.Context, id string) (*models.Participant, error)
}

type ProfileHandler struct {
	profileService services.ProfileUpdater
	participants   participantLookup
	storageService services.StorageService
	log            zerolog.Logger
}

func NewProfileHandler(
	profileService services.ProfileUpdater,
	participants participantLookup,
	storageService services.StorageService,
	log zerolog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		participants:   participants,
		storageService: storageService,
		log:            log,
	}
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	About       *string `json:"about"`
	Phone       *string `json:"phone"`
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	participant, err := h.participants.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{"profile": participant})
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	participant, err := h.profileService.UpdateProfile(c.Context(), userID, repository.UpdateProfileInput{
		DisplayName: trimmed(req.DisplayName),
		About:       req.About,
		Phone:       trimmed(req.Phone),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{"profile": participant})
}

func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	if h.storageService == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	}

	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is empty"})
	}
	if fileHeader.Size > maxAvatarSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file exceeds 5MB limit"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar must be a jpg, jpeg, png, or webp file"})
	}

	current, err := h.participants.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open avatar file"})
	}
	defer file.Close()

	filename := fmt.Sprintf("%s-%d%s", chatsync.SanitizeKeySegment(userID), time.Now().UnixNano(), ext)
	avatarURL, err := h.storageService.UploadFile(c.Context(), file, filename, avatarFolder)
	if err != nil {
		h.log.Warn().Err(err).Str("participant_id", userID).Msg("upload avatar")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload avatar"})
	}

	participant, err := h.profileService.UpdateProfile(c.Context(), userID, repository.UpdateProfileInput{
		AvatarURL: &avatarURL,
	})
	if err != nil {
		_ = h.storageService.DeleteFile(c.Context(), avatarURL)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	if current.AvatarURL != "" && current.AvatarURL != avatarURL {
		if err := h.storageService.DeleteFile(c.Context(), current.AvatarURL); err != nil {
			h.log.Warn().Err(err).Str("participant_id", userID).Msg("delete previous avatar")
		}
	}

	return c.JSON(fiber.Map{
		"avatar_url": avatarURL,
		"profile":    participant,
	})
}
