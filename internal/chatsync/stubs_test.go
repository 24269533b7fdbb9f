package chatsync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
)

type stubFeed struct {
	snapshots chan Snapshot
	closes    atomic.Int32
}

func (f *stubFeed) Snapshots() <-chan Snapshot { return f.snapshots }

func (f *stubFeed) Close() error {
	f.closes.Add(1)
	return nil
}

func (f *stubFeed) push(messages ...models.Message) {
	f.snapshots <- Snapshot{Messages: messages}
}

type stubFeedStore struct {
	mu         sync.Mutex
	writes     []models.Message
	writeErr   error
	observeErr error
	observed   []string
	feeds      []*stubFeed
	serverTime time.Time
	onWrite    func(models.Message)
}

func (s *stubFeedStore) WriteMessage(_ context.Context, key string, message models.Message) (models.Message, error) {
	if s.onWrite != nil {
		s.onWrite(message)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return models.Message{}, s.writeErr
	}
	stored := message
	stored.ConversationKey = key
	stored.Status = ""
	if !s.serverTime.IsZero() {
		stored.CreatedAt = s.serverTime
	}
	s.writes = append(s.writes, stored)
	return stored, nil
}

func (s *stubFeedStore) ObserveOrdered(_ context.Context, key string) (Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observeErr != nil {
		return nil, s.observeErr
	}
	feed := &stubFeed{snapshots: make(chan Snapshot, 8)}
	s.observed = append(s.observed, key)
	s.feeds = append(s.feeds, feed)
	return feed, nil
}

func (s *stubFeedStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *stubFeedStore) feed(i int) *stubFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[i]
}

type stubBlobStore struct {
	uploadErr  error
	uploads    []string
	contents   []string
	downloads  []string
	baseURL    string
	localPaths map[string]string
}

func (b *stubBlobStore) Upload(_ context.Context, objectPath string, content io.Reader) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	b.uploads = append(b.uploads, objectPath)
	b.contents = append(b.contents, string(data))
	return b.baseURL + "/" + objectPath, nil
}

func (b *stubBlobStore) Download(_ context.Context, fileURL string) (string, error) {
	b.downloads = append(b.downloads, fileURL)
	if path, ok := b.localPaths[fileURL]; ok {
		return path, nil
	}
	return "", errors.New("not found")
}

type stubJanitor struct {
	discarded []string
}

func (j *stubJanitor) DiscardBlob(_ context.Context, fileURL string) error {
	j.discarded = append(j.discarded, fileURL)
	return nil
}

func memoryAttachment(kind models.MessageKind, name string, body string) Attachment {
	return Attachment{
		Kind: kind,
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(body)), nil
		},
	}
}

func textMessage(id string, text string, at time.Time) models.Message {
	return models.Message{
		ID:        id,
		Kind:      models.MessageKindText,
		Text:      text,
		SenderID:  "a.b@x.com",
		CreatedAt: at,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func messageIDs(messages []models.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	return ids
}

func equalIDs(messages []models.Message, want ...string) bool {
	got := messageIDs(messages)
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
