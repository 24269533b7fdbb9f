package services

import (
	"context"
	"errors"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/jackc/pgx/v5"
)

type participantReader interface {
	GetByID(ctx context.Context, id string) (*models.Participant, error)
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
}

// ParticipantIdentity resolves the signed-in participant fresh on every
// call, so profile edits show up in messages sent afterwards. A deleted or
// unknown participant reads as signed out.
func ParticipantIdentity(participants participantReader, participantID string) chatsync.IdentityProvider {
	return chatsync.IdentityFunc(func(ctx context.Context) (*models.Participant, error) {
		if participantID == "" {
			return nil, nil
		}
		participant, err := participants.GetByID(ctx, participantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return participant, nil
	})
}
