package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/media"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
)

var (
	alice = &models.Participant{ID: "a.b@x.com", DisplayName: "Alice"}
	carol = "c@y.com"
)

type recordedChanges struct {
	mu     sync.Mutex
	latest []models.Message
	count  int
}

func (r *recordedChanges) record(_ string, messages []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = messages
	r.count++
}

func (r *recordedChanges) snapshot() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

func TestSessionOpenSubscribesUnderConversationKey(t *testing.T) {
	store := &stubFeedStore{}
	session := NewSession(StaticIdentity(alice), store, nil)
	defer session.Close()

	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if session.ConversationKey() != "a_b@x_com_c@y_com" {
		t.Fatalf("unexpected key %q", session.ConversationKey())
	}
	if len(store.observed) != 1 || store.observed[0] != "a_b@x_com_c@y_com" {
		t.Fatalf("expected one observation, got %v", store.observed)
	}
}

func TestSessionWithoutIdentityDoesNotSubscribe(t *testing.T) {
	store := &stubFeedStore{}
	session := NewSession(StaticIdentity(nil), store, nil)
	defer session.Close()

	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := session.Open(context.Background(), ""); err != nil {
		t.Fatalf("Open without contact: %v", err)
	}
	if len(store.observed) != 0 {
		t.Fatalf("expected no subscription, got %v", store.observed)
	}
	if _, err := session.Send(context.Background(), "hi"); !errors.Is(err, ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
}

func TestSessionSendIsVisibleBeforeSnapshot(t *testing.T) {
	store := &stubFeedStore{}
	changes := &recordedChanges{}
	session := NewSession(StaticIdentity(alice), store, nil, WithOnChange(changes.record))
	defer session.Close()

	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	sent, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := session.Messages()
	if !equalIDs(got, sent.ID) || got[0].Text != "hello" {
		t.Fatalf("expected optimistic message, got %+v", got)
	}
	if latest := changes.snapshot(); !equalIDs(latest, sent.ID) {
		t.Fatalf("expected change callback with optimistic message, got %v", messageIDs(latest))
	}

	stored := store.writes[0]
	store.feed(0).push(stored)
	waitFor(t, "snapshot reconciliation", func() bool {
		messages := session.Messages()
		return len(messages) == 1 && messages[0].Status == ""
	})
	if got := session.Messages(); !equalIDs(got, sent.ID) {
		t.Fatalf("expected a single reconciled message, got %v", messageIDs(got))
	}
}

func TestSessionReopenDropsStaleDeliveries(t *testing.T) {
	store := &stubFeedStore{}
	session := NewSession(StaticIdentity(alice), store, nil)
	defer session.Close()

	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open carol: %v", err)
	}
	if err := session.Open(context.Background(), "dave@z.com"); err != nil {
		t.Fatalf("Open dave: %v", err)
	}

	if got := store.feed(0).closes.Load(); got != 1 {
		t.Fatalf("expected previous feed closed, got %d closes", got)
	}

	store.feed(1).push(textMessage("d1", "from dave", time.Now()))
	waitFor(t, "dave snapshot", func() bool {
		return equalIDs(session.Messages(), "d1")
	})

	select {
	case store.feed(0).snapshots <- Snapshot{Messages: []models.Message{textMessage("c1", "from carol", time.Now())}}:
	default:
	}
	time.Sleep(20 * time.Millisecond)
	if got := session.Messages(); !equalIDs(got, "d1") {
		t.Fatalf("expected stale delivery to be dropped, got %v", messageIDs(got))
	}
}

func TestSessionRetryResendsFailedMessage(t *testing.T) {
	store := &stubFeedStore{writeErr: errors.New("offline")}
	session := NewSession(StaticIdentity(alice), store, nil)
	defer session.Close()
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	failed, err := session.Send(context.Background(), "hello")
	if !Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}

	store.mu.Lock()
	store.writeErr = nil
	store.mu.Unlock()

	sent, err := session.Retry(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if sent.ID != failed.ID {
		t.Fatalf("expected retry under the same id, got %q and %q", sent.ID, failed.ID)
	}
	if got := session.Messages(); len(got) != 1 || got[0].Status != models.MessageStatusSent {
		t.Fatalf("expected one sent message, got %+v", got)
	}
}

type sessionRecorder struct {
	handle *sessionRecorderHandle
}

type sessionRecorderHandle struct {
	releases int
}

func (r *sessionRecorder) Start(context.Context) (media.RecorderHandle, error) {
	r.handle = &sessionRecorderHandle{}
	return r.handle, nil
}

func (h *sessionRecorderHandle) Stop(context.Context) (media.Clip, error) {
	return media.Clip{Path: "/nonexistent/clip.m4a", Duration: time.Second}, nil
}

func (h *sessionRecorderHandle) Release() error {
	h.releases++
	return nil
}

type sessionPlayer struct {
	calls []string
}

type sessionPlaybackHandle struct {
	player *sessionPlayer
	source string
}

func (p *sessionPlayer) Play(_ context.Context, source string) (media.PlaybackHandle, error) {
	p.calls = append(p.calls, "start "+source)
	return &sessionPlaybackHandle{player: p, source: source}, nil
}

func (h *sessionPlaybackHandle) Stop() error {
	h.player.calls = append(h.player.calls, "stop "+h.source)
	return nil
}

func (h *sessionPlaybackHandle) Done() <-chan struct{} { return nil }

func TestSessionCloseReleasesEverything(t *testing.T) {
	store := &stubFeedStore{}
	recorder := &sessionRecorder{}
	player := &sessionPlayer{}
	session := NewSession(StaticIdentity(alice), store, nil, WithRecorder(recorder), WithPlayer(player))
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	audio := models.Message{ID: "x", Kind: models.MessageKindAudio, AudioURL: "https://cdn/x.m4a", SenderID: carol}
	store.feed(0).push(audio)
	waitFor(t, "audio message", func() bool { return equalIDs(session.Messages(), "x") })

	if err := session.Play(context.Background(), "x"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := session.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if got := store.feed(0).closes.Load(); got != 1 {
		t.Fatalf("expected feed closed once, got %d", got)
	}
	if recorder.handle.releases != 1 {
		t.Fatalf("expected recorder released once, got %d", recorder.handle.releases)
	}
	if len(player.calls) != 2 || player.calls[1] != "stop https://cdn/x.m4a" {
		t.Fatalf("expected playback stopped, got %v", player.calls)
	}
	if _, err := session.Send(context.Background(), "late"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := session.Open(context.Background(), carol); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on reopen, got %v", err)
	}
}

func TestSessionPlaySwitchesAttachments(t *testing.T) {
	store := &stubFeedStore{}
	player := &sessionPlayer{}
	session := NewSession(StaticIdentity(alice), store, nil, WithPlayer(player))
	defer session.Close()
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Now()
	store.feed(0).push(
		models.Message{ID: "x", Kind: models.MessageKindAudio, AudioURL: "https://cdn/x.m4a", SenderID: carol, CreatedAt: base},
		models.Message{ID: "y", Kind: models.MessageKindAudio, AudioURL: "https://cdn/y.m4a", SenderID: carol, CreatedAt: base.Add(time.Second)},
	)
	waitFor(t, "audio messages", func() bool { return len(session.Messages()) == 2 })

	if err := session.Play(context.Background(), "x"); err != nil {
		t.Fatalf("Play x: %v", err)
	}
	if err := session.Play(context.Background(), "y"); err != nil {
		t.Fatalf("Play y: %v", err)
	}

	want := []string{"start https://cdn/x.m4a", "stop https://cdn/x.m4a", "start https://cdn/y.m4a"}
	if len(player.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, player.calls)
	}
	for i := range want {
		if player.calls[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, player.calls)
		}
	}
}

func TestSessionStopRecordingWithUnreadableClip(t *testing.T) {
	store := &stubFeedStore{}
	recorder := &sessionRecorder{}
	session := NewSession(StaticIdentity(alice), store, &stubBlobStore{baseURL: "https://cdn.test"}, WithRecorder(recorder))
	defer session.Close()
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := session.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	_, err := session.StopRecording(context.Background())
	if !errors.Is(err, ErrDeviceCapability) {
		t.Fatalf("expected ErrDeviceCapability for missing clip file, got %v", err)
	}
	if recorder.handle.releases != 1 {
		t.Fatalf("expected recorder released once, got %d", recorder.handle.releases)
	}
	if store.writeCount() != 0 {
		t.Fatalf("expected no feed write, got %d", store.writeCount())
	}
}

func TestSessionWithoutDevices(t *testing.T) {
	session := NewSession(StaticIdentity(alice), &stubFeedStore{}, nil)
	defer session.Close()
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := session.StartRecording(context.Background()); !errors.Is(err, ErrDeviceCapability) {
		t.Fatalf("expected ErrDeviceCapability, got %v", err)
	}
	if _, err := session.Download(context.Background(), "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestSessionSwitchStopsMediaOfPreviousConversation(t *testing.T) {
	store := &stubFeedStore{}
	recorder := &sessionRecorder{}
	player := &sessionPlayer{}
	blobs := &stubBlobStore{baseURL: "https://cdn.test"}
	session := NewSession(StaticIdentity(alice), store, blobs, WithRecorder(recorder), WithPlayer(player))
	defer session.Close()

	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open carol: %v", err)
	}
	store.feed(0).push(models.Message{ID: "x", Kind: models.MessageKindAudio, AudioURL: "https://cdn/x.m4a", SenderID: carol})
	waitFor(t, "audio message", func() bool { return equalIDs(session.Messages(), "x") })
	if err := session.Play(context.Background(), "x"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := session.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	if err := session.Open(context.Background(), "dave@z.com"); err != nil {
		t.Fatalf("Open dave: %v", err)
	}

	if recorder.handle.releases != 1 {
		t.Fatalf("expected recorder released on switch, got %d", recorder.handle.releases)
	}
	if len(player.calls) != 2 || player.calls[1] != "stop https://cdn/x.m4a" {
		t.Fatalf("expected playback stopped on switch, got %v", player.calls)
	}

	if _, err := session.StopRecording(context.Background()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected stale recording to be gone, got %v", err)
	}
	if store.writeCount() != 0 || len(blobs.uploads) != 0 {
		t.Fatalf("expected nothing sent to the new conversation, got %d writes and %v", store.writeCount(), blobs.uploads)
	}
}

func TestSessionCloseDiscardsFailedUploads(t *testing.T) {
	store := &stubFeedStore{writeErr: errors.New("offline")}
	blobs := &stubBlobStore{baseURL: "https://cdn.test"}
	janitor := &stubJanitor{}
	session := NewSession(StaticIdentity(alice), store, blobs, WithJanitor(janitor))
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := session.SendAttachment(context.Background(), memoryAttachment(models.MessageKindImage, "a.png", "png")); !Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if len(janitor.discarded) != 0 {
		t.Fatalf("expected upload kept for retry, got %v", janitor.discarded)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := "https://cdn.test/" + blobs.uploads[0]
	if len(janitor.discarded) != 1 || janitor.discarded[0] != want {
		t.Fatalf("expected %q discarded, got %v", want, janitor.discarded)
	}
}

func TestSessionKeepsUploadsOfRetriedMessages(t *testing.T) {
	store := &stubFeedStore{writeErr: errors.New("offline")}
	blobs := &stubBlobStore{baseURL: "https://cdn.test"}
	janitor := &stubJanitor{}
	session := NewSession(StaticIdentity(alice), store, blobs, WithJanitor(janitor))
	if err := session.Open(context.Background(), carol); err != nil {
		t.Fatalf("Open: %v", err)
	}

	failed, _ := session.SendAttachment(context.Background(), memoryAttachment(models.MessageKindImage, "a.png", "png"))
	store.mu.Lock()
	store.writeErr = nil
	store.mu.Unlock()
	if _, err := session.Retry(context.Background(), failed.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	if err := session.Open(context.Background(), "dave@z.com"); err != nil {
		t.Fatalf("Open dave: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(janitor.discarded) != 0 {
		t.Fatalf("expected no discard for a delivered attachment, got %v", janitor.discarded)
	}
}
