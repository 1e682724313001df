package chat

import (
	"sync"

	"github.com/clinicops/trainingdesk/internal/models"
)

// TransitionFunc observes typing state changes.
type TransitionFunc func(from, to models.TypingState)

// Typing tracks whether an assistant reply is pending.
type Typing struct {
	mu       sync.Mutex
	state    models.TypingState
	watchers []TransitionFunc
}

// NewTyping creates an idle indicator.
func NewTyping() *Typing {
	return &Typing{}
}

// OnChange registers fn for every subsequent transition.
func (t *Typing) OnChange(fn TransitionFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, fn)
}

// State returns the current state.
func (t *Typing) State() models.TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnSubmit marks a user message as submitted.
func (t *Typing) OnSubmit() {
	t.set(func(models.TypingState) models.TypingState { return models.TypingAwaitingResponse })
}

// OnSubmitFailed abandons the wait after a failed submission.
func (t *Typing) OnSubmitFailed() {
	t.set(func(models.TypingState) models.TypingState { return models.TypingIdle })
}

// OnInbound applies an appended message. An assistant message ends the wait;
// any other sender leaves the indicator awaiting a response.
// TODO: the non-assistant rule looks inverted; confirm with product before changing it.
func (t *Typing) OnInbound(sender models.Sender) {
	t.set(func(models.TypingState) models.TypingState {
		if sender == models.SenderAssistant {
			return models.TypingIdle
		}
		return models.TypingAwaitingResponse
	})
}

func (t *Typing) set(next func(models.TypingState) models.TypingState) {
	t.mu.Lock()
	from := t.state
	to := next(from)
	t.state = to
	watchers := append([]TransitionFunc(nil), t.watchers...)
	t.mu.Unlock()

	if from == to {
		return
	}
	for _, fn := range watchers {
		fn(from, to)
	}
}
