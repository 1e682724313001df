package guard

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Entry parameters carried by a notification deep link.
const (
	ParamDislikeID    = "fromDislikeId"
	ParamNotification = "fromNotification"
)

// ErrNoTrigger is returned when an entry carries no feedback trigger.
var ErrNoTrigger = errors.New("entry carries no feedback trigger")

// Entry is the navigation context the console was opened with.
type Entry struct {
	Location *url.URL
}

// ParseEntry parses a location such as "/training?fromDislikeId=5&fromNotification=true".
func ParseEntry(location string) (*Entry, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	return &Entry{Location: u}, nil
}

// Trigger returns the dislike id when the entry came from a notification.
func (e *Entry) Trigger() (string, bool) {
	q := e.Location.Query()
	id := q.Get(ParamDislikeID)
	if id == "" || q.Get(ParamNotification) != "true" {
		return "", false
	}
	return id, true
}

// Clear removes the trigger parameters in place. The remaining parameters
// keep their original order and encoding.
func (e *Entry) Clear() {
	if e.Location.RawQuery == "" {
		return
	}
	pairs := strings.Split(e.Location.RawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil && (k == ParamDislikeID || k == ParamNotification) {
			continue
		}
		kept = append(kept, pair)
	}
	e.Location.RawQuery = strings.Join(kept, "&")
}

// String returns the current location.
func (e *Entry) String() string {
	return e.Location.String()
}

// Acknowledger performs the remote feedback acknowledgement.
type Acknowledger interface {
	Dislike(ctx context.Context, id string) error
}

// FeedbackTrigger acknowledges a dislike once per id when the console is
// entered from a feedback notification.
type FeedbackTrigger struct {
	guard  *Guard
	api    Acknowledger
	logger zerolog.Logger
}

// NewFeedbackTrigger creates a trigger handler.
func NewFeedbackTrigger(g *Guard, api Acknowledger, logger zerolog.Logger) *FeedbackTrigger {
	return &FeedbackTrigger{
		guard:  g,
		api:    api,
		logger: logger.With().Str("component", "feedback_trigger").Logger(),
	}
}

// HandleEntry runs the acknowledgement for the entry's trigger and then clears
// the trigger from the entry, whatever the outcome.
func (f *FeedbackTrigger) HandleEntry(ctx context.Context, e *Entry) (Outcome, error) {
	id, ok := e.Trigger()
	if !ok {
		return "", ErrNoTrigger
	}
	defer e.Clear()

	outcome, err := f.guard.RunOnce(ctx, id, func(ctx context.Context) error {
		return f.api.Dislike(ctx, id)
	})
	if err != nil {
		f.logger.Error().Err(err).Str("trigger_id", id).Msg("feedback acknowledgement failed")
	}
	return outcome, err
}
