package handlers

import (
	"context"
	"errors"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	"github.com/gofiber/fiber/v2"
)

type contactDirectory interface {
	Lookup(ctx context.Context, email string) (*models.Participant, error)
	Add(ctx context.Context, ownerID string, email string) (*models.Contact, error)
	List(ctx context.Context, ownerID string) ([]models.Contact, error)
}

type ContactHandler struct {
	contacts contactDirectory
}

func NewContactHandler(contacts contactDirectory) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type addContactRequest struct {
	Email string `json:"email"`
}

func (h *ContactHandler) Lookup(c *fiber.Ctx) error {
	if _, err := currentUserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	participant, err := h.contacts.Lookup(c.Context(), c.Query("email"))
	if err != nil {
		return mapContactError(c, err)
	}

	return c.JSON(fiber.Map{"participant": participant})
}

func (h *ContactHandler) Add(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req addContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	contact, err := h.contacts.Add(c.Context(), userID, req.Email)
	if err != nil {
		return mapContactError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"contact": contact})
}

func (h *ContactHandler) List(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	contacts, err := h.contacts.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list contacts"})
	}

	return c.JSON(fiber.Map{"contacts": contacts})
}

func mapContactError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid email other than your own is required"})
	case errors.Is(err, services.ErrParticipantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No participant uses this email"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process contact request"})
	}
}
