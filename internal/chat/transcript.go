package chat

import (
	"sync"

	"github.com/clinicops/trainingdesk/internal/models"
)

// Transcript is the append-only message list of one room, in arrival order.
// Only the Reconciler appends; readers get copies.
type Transcript struct {
	mu   sync.RWMutex
	msgs []models.ChatMessage
	ids  map[string]struct{}
}

func newTranscript() *Transcript {
	return &Transcript{ids: make(map[string]struct{})}
}

func (t *Transcript) append(msg models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	t.ids[msg.ID] = struct{}{}
}

// Has reports whether a message with id was appended.
func (t *Transcript) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Snapshot returns a copy of the messages.
func (t *Transcript) Snapshot() []models.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}
