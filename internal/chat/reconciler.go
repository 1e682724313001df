package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

const (
	defaultUserName       = "You"
	defaultUserGlyph      = "U"
	defaultAssistantName  = "Assistant"
	defaultAssistantGlyph = "AI"
)

// ReconcilerOptions tunes the reconciler.
type ReconcilerOptions struct {
	// Dedupe drops inbound messages whose id is already in the transcript.
	// Off by default: a redelivered event is appended again.
	Dedupe bool
	// Now stamps messages that arrive without a timestamp.
	Now func() time.Time
}

// Reconciler normalizes inbound events and appends them to per-room transcripts.
type Reconciler struct {
	opts   ReconcilerOptions
	logger zerolog.Logger

	mu          sync.Mutex
	transcripts map[models.RoomID]*Transcript
}

// NewReconciler creates a reconciler.
func NewReconciler(opts ReconcilerOptions, logger zerolog.Logger) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		opts:        opts,
		logger:      logger.With().Str("component", "reconciler").Logger(),
		transcripts: make(map[models.RoomID]*Transcript),
	}
}

// Transcript returns the transcript for roomID, creating it empty if needed.
func (r *Reconciler) Transcript(roomID models.RoomID) *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcripts[roomID]
	if !ok {
		t = newTranscript()
		r.transcripts[roomID] = t
	}
	return t
}

// Normalize maps a raw payload to a ChatMessage. It returns nil when the
// payload is not an object or carries no usable id.
func (r *Reconciler) Normalize(raw []byte) *models.ChatMessage {
	env, err := Decode(raw)
	if err != nil || env.ID == "" {
		return nil
	}
	return r.fromEnvelope(env)
}

func (r *Reconciler) fromEnvelope(env Envelope) *models.ChatMessage {
	msg := &models.ChatMessage{
		ID:          env.ID,
		Sender:      models.SenderUser,
		Text:        env.Text,
		Timestamp:   env.Timestamp,
		DisplayName: defaultUserName,
		AvatarGlyph: defaultUserGlyph,
	}
	if env.IsAI {
		msg.Sender = models.SenderAssistant
		msg.DisplayName = defaultAssistantName
		msg.AvatarGlyph = defaultAssistantGlyph
	}
	if env.SenderName != "" {
		msg.DisplayName = env.SenderName
	}
	if env.Avatar != "" {
		msg.AvatarGlyph = env.Avatar
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.opts.Now()
	}
	return msg
}

// Accept normalizes raw and appends it to the room's transcript. It returns
// the appended message, or nil when nothing was appended.
func (r *Reconciler) Accept(roomID models.RoomID, raw []byte) *models.ChatMessage {
	msg := r.Normalize(raw)
	if msg == nil {
		metrics.NormalizeRejected.Inc()
		r.logger.Debug().Str("room_id", string(roomID)).Int("bytes", len(raw)).Msg("dropped payload without message id")
		return nil
	}

	t := r.Transcript(roomID)
	if r.opts.Dedupe && t.Has(msg.ID) {
		r.logger.Debug().Str("room_id", string(roomID)).Str("message_id", msg.ID).Msg("dropped redelivered message")
		return nil
	}

	t.append(*msg)
	metrics.MessagesAppended.WithLabelValues(string(msg.Sender)).Inc()
	return msg
}
