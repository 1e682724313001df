// Package room resolves the caller's training room.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/query"
)

// CacheKey is the query cache key holding the resolved room id.
const CacheKey = "training-room"

// ErrUnresolved is returned while no room id has been obtained.
var ErrUnresolved = errors.New("training room not resolved")

// Ensurer creates or fetches the caller's room on the remote service.
type Ensurer interface {
	EnsureRoom(ctx context.Context) (models.RoomID, error)
}

// Resolver obtains the room id once per user context and remembers the last
// outcome for callers that need to know whether chat may proceed.
type Resolver struct {
	api    Ensurer
	cache  *query.Cache
	logger zerolog.Logger

	mu       sync.RWMutex
	roomID   models.RoomID
	lastErr  error
	watchers []func(models.RoomID)
}

// NewResolver creates a resolver backed by the shared query cache.
func NewResolver(api Ensurer, cache *query.Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{
		api:    api,
		cache:  cache,
		logger: logger.With().Str("component", "room_resolver").Logger(),
	}
}

// OnResolve registers fn to run whenever a new room id is resolved,
// including the first successful resolution.
func (r *Resolver) OnResolve(fn func(models.RoomID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Resolve returns the room id, issuing at most one in-flight request.
func (r *Resolver) Resolve(ctx context.Context) (models.RoomID, error) {
	v, err := r.cache.Get(ctx, CacheKey, func(ctx context.Context) (any, error) {
		return r.api.EnsureRoom(ctx)
	})

	r.mu.Lock()
	if err != nil {
		r.lastErr = err
		r.mu.Unlock()
		metrics.RoomResolutions.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Msg("room resolution failed")
		return "", fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	id := v.(models.RoomID)
	var notify []func(models.RoomID)
	if r.roomID != id {
		r.logger.Info().Str("room_id", string(id)).Msg("room resolved")
		notify = append(notify, r.watchers...)
	}
	r.roomID = id
	r.lastErr = nil
	r.mu.Unlock()

	metrics.RoomResolutions.WithLabelValues("ok").Inc()
	for _, fn := range notify {
		fn(id)
	}
	return id, nil
}

// Room returns the resolved id, if any.
func (r *Resolver) Room() (models.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomID, r.roomID != ""
}

// Err returns the last resolution error; nil once resolution succeeds.
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}
