package chatsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
	"github.com/rs/zerolog"
)

type Subscriber struct {
	store FeedStore
	log   zerolog.Logger
}

func NewSubscriber(store FeedStore, log zerolog.Logger) *Subscriber {
	return &Subscriber{store: store, log: log}
}

// Subscribe opens one live feed for conversationKey. Every snapshot is
// delivered whole, newest first, and replaces whatever the caller showed
// before. An empty key subscribes to nothing. The returned function detaches
// the listener and may be called any number of times; it waits for a delivery
// in progress, so onUpdate and onError must not call it.
func (s *Subscriber) Subscribe(
	ctx context.Context,
	conversationKey string,
	onUpdate func([]models.Message),
	onError func(error),
) (func(), error) {
	if conversationKey == "" {
		return func() {}, nil
	}

	feed, err := s.store.ObserveOrdered(ctx, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailure, err)
	}

	log := s.log.With().Str("conversation_key", conversationKey).Logger()
	done := make(chan struct{})
	var (
		deliverMu sync.Mutex
		stopped   bool
	)
	deliver := func(fn func()) bool {
		deliverMu.Lock()
		defer deliverMu.Unlock()
		if stopped {
			return false
		}
		fn()
		return true
	}

	go func() {
		snapshots := feed.Snapshots()
		for {
			select {
			case <-done:
				return
			case snapshot, ok := <-snapshots:
				if !ok {
					return
				}
				if snapshot.Err != nil {
					log.Warn().Err(snapshot.Err).Msg("feed snapshot failed")
					if onError == nil {
						continue
					}
					if !deliver(func() { onError(fmt.Errorf("%w: %w", ErrSubscriptionFailure, snapshot.Err)) }) {
						return
					}
					continue
				}
				messages := newestFirst(snapshot.Messages)
				if !deliver(func() { onUpdate(messages) }) {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			deliverMu.Lock()
			stopped = true
			deliverMu.Unlock()
			close(done)
			if err := feed.Close(); err != nil {
				log.Warn().Err(err).Msg("close feed")
			}
		})
	}, nil
}

func newestFirst(ascending []models.Message) []models.Message {
	reversed := make([]models.Message, len(ascending))
	for i, message := range ascending {
		reversed[len(ascending)-1-i] = message
	}
	return reversed
}
