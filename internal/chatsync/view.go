package chatsync

import (
	"sort"
	"sync"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/models"
)

// View is the local message state of one open conversation. The confirmed
// list is replaced wholesale by each feed snapshot; optimistic entries live
// beside it until a snapshot carries their id.
type View struct {
	mu        sync.Mutex
	confirmed []models.Message
	pending   []models.Message

	notifyMu sync.Mutex
	onChange func([]models.Message)
}

// NewView returns an empty view. onChange, when set, receives the merged list
// after every mutation and must not call back into the view.
func NewView(onChange func([]models.Message)) *View {
	return &View{onChange: onChange}
}

// Replace installs snapshot, ordered newest first, as the confirmed list.
func (v *View) Replace(snapshot []models.Message) {
	v.mu.Lock()
	v.confirmed = append([]models.Message(nil), snapshot...)
	delivered := make(map[string]struct{}, len(snapshot))
	for _, message := range snapshot {
		delivered[message.ID] = struct{}{}
	}
	kept := v.pending[:0]
	for _, message := range v.pending {
		if _, ok := delivered[message.ID]; !ok {
			kept = append(kept, message)
		}
	}
	v.pending = kept
	v.mu.Unlock()

	v.notify()
}

// AppendPending adds an optimistic message, replacing an earlier attempt with
// the same id.
func (v *View) AppendPending(message models.Message) {
	message.Status = models.MessageStatusPending

	v.mu.Lock()
	if v.confirmedLocked(message.ID) {
		v.mu.Unlock()
		return
	}
	replaced := false
	for i := range v.pending {
		if v.pending[i].ID == message.ID {
			v.pending[i] = message
			replaced = true
			break
		}
	}
	if !replaced {
		v.pending = append(v.pending, message)
	}
	v.mu.Unlock()

	v.notify()
}

func (v *View) MarkSent(id string, stored models.Message) {
	stored.Status = models.MessageStatusSent
	v.update(id, func(message *models.Message) {
		*message = stored
	})
}

func (v *View) MarkFailed(id string) {
	v.update(id, func(message *models.Message) {
		message.Status = models.MessageStatusFailed
	})
}

// Find looks id up in the confirmed list first, then among optimistic entries.
func (v *View) Find(id string) (models.Message, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, message := range v.confirmed {
		if message.ID == id {
			return message, true
		}
	}
	for _, message := range v.pending {
		if message.ID == id {
			return message, true
		}
	}
	return models.Message{}, false
}

// Failed returns the optimistic entries whose write failed and that no
// snapshot has delivered since.
func (v *View) Failed() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	var failed []models.Message
	for _, message := range v.pending {
		if message.Status == models.MessageStatusFailed {
			failed = append(failed, message)
		}
	}
	return failed
}

// Messages returns the merged list, newest first, with no duplicate ids.
func (v *View) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mergedLocked()
}

func (v *View) update(id string, apply func(*models.Message)) {
	v.mu.Lock()
	found := false
	for i := range v.pending {
		if v.pending[i].ID == id {
			apply(&v.pending[i])
			found = true
			break
		}
	}
	v.mu.Unlock()

	if found {
		v.notify()
	}
}

func (v *View) confirmedLocked(id string) bool {
	for _, message := range v.confirmed {
		if message.ID == id {
			return true
		}
	}
	return false
}

func (v *View) mergedLocked() []models.Message {
	merged := make([]models.Message, 0, len(v.confirmed)+len(v.pending))
	merged = append(merged, v.confirmed...)
	if len(v.pending) == 0 {
		return merged
	}

	seen := make(map[string]struct{}, len(v.confirmed))
	for _, message := range v.confirmed {
		seen[message.ID] = struct{}{}
	}
	for _, message := range v.pending {
		if _, ok := seen[message.ID]; ok {
			continue
		}
		merged = append(merged, message)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

func (v *View) notify() {
	if v.onChange == nil {
		return
	}
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()
	v.onChange(v.Messages())
}
