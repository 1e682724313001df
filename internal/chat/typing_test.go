package chat

import (
	"testing"

	"github.com/clinicops/trainingdesk/internal/models"
)

func recordTransitions(t *Typing) *[]models.TypingState {
	states := []models.TypingState{t.State()}
	t.OnChange(func(_, to models.TypingState) {
		states = append(states, to)
	})
	return &states
}

func assertStates(t *testing.T, got []models.TypingState, want ...models.TypingState) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got transitions %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got transitions %v, want %v", got, want)
		}
	}
}

func TestTypingSendThenAssistantReply(t *testing.T) {
	typing := NewTyping()
	states := recordTransitions(typing)

	typing.OnSubmit()
	typing.OnInbound(models.SenderAssistant)

	assertStates(t, *states, models.TypingIdle, models.TypingAwaitingResponse, models.TypingIdle)
}

func TestTypingSendThenFailure(t *testing.T) {
	typing := NewTyping()
	states := recordTransitions(typing)

	typing.OnSubmit()
	typing.OnSubmitFailed()

	assertStates(t, *states, models.TypingIdle, models.TypingAwaitingResponse, models.TypingIdle)
}

func TestTypingHumanMessageKeepsWaiting(t *testing.T) {
	typing := NewTyping()

	typing.OnInbound(models.SenderUser)
	if typing.State() != models.TypingAwaitingResponse {
		t.Fatalf("expected awaiting after human message from idle, got %s", typing.State())
	}

	typing.OnInbound(models.SenderUser)
	if typing.State() != models.TypingAwaitingResponse {
		t.Fatalf("expected to stay awaiting, got %s", typing.State())
	}
}

func TestTypingAssistantWhileIdle(t *testing.T) {
	typing := NewTyping()
	states := recordTransitions(typing)

	typing.OnInbound(models.SenderAssistant)

	assertStates(t, *states, models.TypingIdle)
}
