// Package guard runs externally triggered side effects at most once per
// trigger identifier, no matter how often the trigger is presented.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

// Outcome describes what RunOnce did.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Effect is the guarded side effect.
type Effect func(ctx context.Context) error

// Guard enforces at-most-once execution using durable markers.
// Marker lifecycle: absent -> processing -> done, or back to absent on failure.
type Guard struct {
	store     Store
	namespace string
	logger    zerolog.Logger

	// mu makes check-and-set atomic within this process; SetIfAbsent covers
	// other processes sharing the store.
	mu sync.Mutex
}

// New creates a guard whose markers live under "guard:{namespace}:".
func New(store Store, namespace string, logger zerolog.Logger) *Guard {
	return &Guard{
		store:     store,
		namespace: namespace,
		logger:    logger.With().Str("component", "guard").Str("namespace", namespace).Logger(),
	}
}

// Key returns the marker key for triggerID.
func (g *Guard) Key(triggerID string) string {
	return "guard:" + g.namespace + ":" + triggerID
}

// State returns the marker for triggerID.
func (g *Guard) State(ctx context.Context, triggerID string) (models.GuardState, error) {
	return g.store.Get(ctx, g.Key(triggerID))
}

// RunOnce invokes effect unless triggerID is already processing or done.
// The effect runs without the lock held, so a re-entrant call for the same
// trigger observes "processing" and skips.
func (g *Guard) RunOnce(ctx context.Context, triggerID string, effect Effect) (Outcome, error) {
	key := g.Key(triggerID)
	log := g.logger.With().Str("trigger_id", triggerID).Logger()

	claimed, err := g.claim(ctx, key)
	if err != nil {
		log.Error().Err(err).Msg("guard marker unavailable")
		return OutcomeFailed, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		metrics.GuardOutcomes.WithLabelValues(string(OutcomeSkipped)).Inc()
		log.Debug().Msg("trigger already handled")
		return OutcomeSkipped, nil
	}

	if err := effect(ctx); err != nil {
		// Release the marker so the same trigger can retry later.
		if delErr := g.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error().Err(delErr).Msg("failed to release guard marker")
		}
		metrics.GuardOutcomes.WithLabelValues(string(OutcomeFailed)).Inc()
		log.Warn().Err(err).Msg("guarded effect failed")
		return OutcomeFailed, err
	}

	if err := g.store.Set(context.WithoutCancel(ctx), key, models.GuardDone); err != nil {
		// The effect ran; a lingering "processing" marker still blocks reruns.
		log.Error().Err(err).Msg("failed to mark trigger done")
	}
	metrics.GuardOutcomes.WithLabelValues(string(OutcomeExecuted)).Inc()
	log.Info().Msg("guarded effect executed")
	return OutcomeExecuted, nil
}

// claim moves the marker from absent to processing.
func (g *Guard) claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if state != models.GuardAbsent {
		return false, nil
	}
	return g.store.SetIfAbsent(ctx, key, models.GuardProcessing)
}
