package chatsync

import (
	"context"
	"io"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
)

type IdentityProvider interface {
	// CurrentIdentity returns nil without error when nobody is signed in.
	CurrentIdentity(ctx context.Context) (*models.Participant, error)
}

type IdentityFunc func(ctx context.Context) (*models.Participant, error)

func (f IdentityFunc) CurrentIdentity(ctx context.Context) (*models.Participant, error) {
	return f(ctx)
}

// StaticIdentity always reports the same participant.
func StaticIdentity(participant *models.Participant) IdentityProvider {
	return IdentityFunc(func(context.Context) (*models.Participant, error) {
		return participant, nil
	})
}

// Snapshot is the full ordered message list at one point in time, oldest
// first. Err is set when the source failed to produce it.
type Snapshot struct {
	Messages []models.Message
	Err      error
}

type Feed interface {
	Snapshots() <-chan Snapshot
	Close() error
}

type FeedStore interface {
	WriteMessage(ctx context.Context, conversationKey string, message models.Message) (models.Message, error)
	ObserveOrdered(ctx context.Context, conversationKey string) (Feed, error)
}

type BlobStore interface {
	Upload(ctx context.Context, objectPath string, content io.Reader) (string, error)
	Download(ctx context.Context, fileURL string) (string, error)
}

// BlobJanitor removes uploads that no message ended up referencing.
type BlobJanitor interface {
	DiscardBlob(ctx context.Context, fileURL string) error
}
