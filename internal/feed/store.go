package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIDConflict = errors.New("message id already used by another conversation")

type listFunc func(ctx context.Context, conversationKey string) ([]models.Message, error)

// Store is the Postgres feed: writes go through feed_messages and
// pg_notify, observations re-read the ordered list on every signal.
type Store struct {
	db       *pgxpool.Pool
	messages *repository.MessageRepository
	notifier *Notifier
}

var _ chatsync.FeedStore = (*Store)(nil)

func NewStore(db *pgxpool.Pool, notifier *Notifier) *Store {
	return &Store{
		db:       db,
		messages: repository.NewMessageRepository(db),
		notifier: notifier,
	}
}

func (s *Store) WriteMessage(ctx context.Context, conversationKey string, message models.Message) (models.Message, error) {
	message.ConversationKey = conversationKey

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)

	stored, err := txMessageRepo.Create(ctx, message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, fmt.Errorf("%w: %s", ErrIDConflict, message.ID)
		}
		return models.Message{}, err
	}

	if err := txMessageRepo.NotifyWritten(ctx, conversationKey); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Message{}, err
	}

	return *stored, nil
}

func (s *Store) ObserveOrdered(ctx context.Context, conversationKey string) (chatsync.Feed, error) {
	changed, unwatch, err := s.notifier.Watch(conversationKey)
	if err != nil {
		return nil, err
	}
	return startObservation(ctx, conversationKey, s.messages.ListOrdered, changed, unwatch), nil
}

// ListPage serves paged history outside of a live observation.
func (s *Store) ListPage(ctx context.Context, conversationKey string, limit int, offset int) ([]models.Message, int, error) {
	return s.messages.ListByConversation(ctx, conversationKey, limit, offset)
}

// AttachmentMessages returns the stored messages that reference fileURL.
func (s *Store) AttachmentMessages(ctx context.Context, fileURL string) ([]models.Message, error) {
	return s.messages.ListByAttachmentURL(ctx, fileURL)
}

type observation struct {
	key     string
	list    listFunc
	changed <-chan struct{}
	unwatch func()
	out     chan chatsync.Snapshot

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func startObservation(
	ctx context.Context,
	conversationKey string,
	list listFunc,
	changed <-chan struct{},
	unwatch func(),
) *observation {
	obsCtx, cancel := context.WithCancel(ctx)
	o := &observation{
		key:     conversationKey,
		list:    list,
		changed: changed,
		unwatch: unwatch,
		out:     make(chan chatsync.Snapshot, 1),
		ctx:     obsCtx,
		cancel:  cancel,
	}
	go o.run()
	return o
}

func (o *observation) Snapshots() <-chan chatsync.Snapshot {
	return o.out
}

func (o *observation) Close() error {
	o.closeOnce.Do(func() {
		o.cancel()
		o.unwatch()
	})
	return nil
}

func (o *observation) run() {
	defer close(o.out)

	o.emit()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.changed:
			o.emit()
		}
	}
}

func (o *observation) emit() {
	messages, err := o.list(o.ctx, o.key)
	if o.ctx.Err() != nil {
		return
	}

	select {
	case o.out <- chatsync.Snapshot{Messages: messages, Err: err}:
	case <-o.ctx.Done():
	}
}
