package handlers

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	"github.com/AyeshaaMaalik/WhatsappChatApp/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const participantRole = "participant"

type participantAccounts interface {
	Create(ctx context.Context, participant *models.Participant) error
	GetByID(ctx context.Context, id string) (*models.Participant, error)
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
}

type verifier interface {
	Issue(ctx context.Context, participantID string) error
	Confirm(ctx context.Context, participantID string, code string) error
}

type AuthHandler struct {
	participants participantAccounts
	verification verifier
	jwtSecret    string
	log          zerolog.Logger
}

func NewAuthHandler(
	participants participantAccounts,
	verification verifier,
	jwtSecret string,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		participants: participants,
		verification: verification,
		jwtSecret:    jwtSecret,
		log:          log,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Password must be at least 8 characters"})
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name is required"})
	}
	if utf8.RuneCountInString(req.DisplayName) > maxDisplayNameLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name is too long"})
	}

	existing, err := h.participants.GetByEmail(c.Context(), req.Email)
	if err == nil && existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to check email"})
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to hash password"})
	}

	participant := &models.Participant{
		ID:           req.Email,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hashed,
	}
	if err := h.participants.Create(c.Context(), participant); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return c.Status(fiber.StatusConflict).
				JSON(fiber.Map{"error": "Email already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create participant"})
	}

	// The account exists either way; the code can be re-issued.
	if err := h.verification.Issue(c.Context(), participant.ID); err != nil {
		h.log.Warn().Err(err).Str("participant_id", participant.ID).Msg("issue verification code")
	}

	return h.respondWithToken(c, fiber.StatusCreated, participant)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}
	req.Email = strings.ToLower(parsedEmail.Address)

	participant, err := h.participants.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"error": "Invalid email or password"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to lookup participant"})
	}

	if !utils.CheckPassword(req.Password, participant.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"error": "Invalid email or password"})
	}

	return h.respondWithToken(c, fiber.StatusOK, participant)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	participant, err := h.currentParticipant(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"participant": participant})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.verification.Confirm(c.Context(), userID, req.Code); err != nil {
		return mapVerificationError(c, err)
	}
	return c.JSON(fiber.Map{"email_verified": true})
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	participant, err := h.currentParticipant(c)
	if err != nil {
		return err
	}
	if participant.EmailVerified {
		return c.JSON(fiber.Map{"email_verified": true})
	}

	if err := h.verification.Issue(c.Context(), participant.ID); err != nil {
		return mapVerificationError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"email_verified": false})
}

// VerificationStatus lets the client poll while the user confirms the code.
func (h *AuthHandler) VerificationStatus(c *fiber.Ctx) error {
	participant, err := h.currentParticipant(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"email_verified": participant.EmailVerified})
}

// currentParticipant writes the error response itself; callers return the
// error as is.
func (h *AuthHandler) currentParticipant(c *fiber.Ctx) (*models.Participant, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	participant, err := h.participants.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participant not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch participant"})
	}
	return participant, nil
}

func (h *AuthHandler) respondWithToken(c *fiber.Ctx, status int, participant *models.Participant) error {
	token, err := utils.GenerateToken(participant.ID, participantRole, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.Status(status).JSON(fiber.Map{
		"token":       token,
		"participant": participant,
	})
}

func mapVerificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
	case errors.Is(err, services.ErrVerificationMismatch):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Verification code does not match"})
	case errors.Is(err, services.ErrVerificationExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Verification code expired"})
	case errors.Is(err, services.ErrCacheUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Verification is not available"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Participant not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify code"})
	}
}
