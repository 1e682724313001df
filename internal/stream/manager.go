// Package stream owns the live subscription for a training room.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

// ErrClosed is returned by Bind after Close.
var ErrClosed = errors.New("stream manager closed")

// State is the connection state of the manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateDisconnected, StateConnecting, StateConnected} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stream state %q", text)
}

// Conn is one open subscription on the transport.
type Conn interface {
	// ReadMessage blocks until the next inbound frame.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens a subscription for a room.
type Dialer interface {
	Dial(ctx context.Context, roomID models.RoomID) (Conn, error)
}

// Handler receives each raw inbound frame, in delivery order. It runs on the
// subscription's reader goroutine and must not call Bind or Close.
type Handler func(roomID models.RoomID, raw []byte)

// StateFunc observes state transitions.
type StateFunc func(state State, roomID models.RoomID)

type subscription struct {
	roomID   models.RoomID
	conn     Conn
	done     chan struct{}
	stopping atomic.Bool
}

// stop closes the transport and waits until no more frames can be delivered.
func (s *subscription) stop() {
	s.stopping.Store(true)
	s.conn.Close()
	<-s.done
}

// Manager keeps at most one subscription open, for the most recently bound room.
// A dropped connection is not retried; it stays disconnected until the next Bind.
type Manager struct {
	dialer  Dialer
	handler Handler
	logger  zerolog.Logger

	// lifecycle serialises Bind and Close
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    State
	roomID   models.RoomID
	sub      *subscription
	lastErr  error
	closed   bool
	watchers []StateFunc
}

// NewManager creates a disconnected manager.
func NewManager(dialer Dialer, handler Handler, logger zerolog.Logger) *Manager {
	return &Manager{
		dialer:  dialer,
		handler: handler,
		logger:  logger.With().Str("component", "stream").Logger(),
	}
}

// OnStateChange registers fn for every subsequent transition.
func (m *Manager) OnStateChange(fn StateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
}

// Bind opens the subscription for roomID. Any subscription for another room is
// closed first, and Bind returns only after its reader has stopped. Binding the
// room that is already connected is a no-op.
func (m *Manager) Bind(ctx context.Context, roomID models.RoomID) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.sub != nil && m.sub.roomID == roomID && m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	old := m.sub
	m.sub = nil
	m.mu.Unlock()

	if old != nil {
		old.stop()
		metrics.StreamConnections.WithLabelValues("closed").Inc()
		m.logger.Info().Str("room_id", string(old.roomID)).Msg("subscription closed for room change")
		m.setState(StateDisconnected, old.roomID, nil)
	}

	m.setState(StateConnecting, roomID, nil)

	conn, err := m.dialer.Dial(ctx, roomID)
	if err != nil {
		metrics.StreamConnections.WithLabelValues("failed").Inc()
		m.logger.Error().Err(err).Str("room_id", string(roomID)).Msg("stream connect failed")
		m.setState(StateDisconnected, roomID, err)
		return fmt.Errorf("connect stream for room %s: %w", roomID, err)
	}

	sub := &subscription{roomID: roomID, conn: conn, done: make(chan struct{})}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	metrics.StreamConnections.WithLabelValues("opened").Inc()
	m.logger.Info().Str("room_id", string(roomID)).Msg("stream connected")
	m.setState(StateConnected, roomID, nil)

	go m.readLoop(sub)
	return nil
}

// Close tears down the active subscription. Safe to call more than once.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sub := m.sub
	m.sub = nil
	roomID := m.roomID
	m.mu.Unlock()

	if sub != nil {
		sub.stop()
		metrics.StreamConnections.WithLabelValues("closed").Inc()
		m.logger.Info().Str("room_id", string(sub.roomID)).Msg("stream closed")
	}
	m.setState(StateDisconnected, roomID, nil)
	return nil
}

func (m *Manager) readLoop(sub *subscription) {
	defer close(sub.done)

	for {
		raw, err := sub.conn.ReadMessage()
		if err != nil {
			if !sub.stopping.Load() {
				m.dropped(sub, err)
			}
			return
		}
		metrics.StreamEvents.Inc()
		m.handler(sub.roomID, raw)
	}
}

// dropped records a transport failure. No reconnect is attempted.
func (m *Manager) dropped(sub *subscription, err error) {
	m.mu.Lock()
	current := m.sub == sub
	if current {
		m.sub = nil
	}
	m.mu.Unlock()

	if !current {
		return
	}
	sub.conn.Close()
	metrics.StreamConnections.WithLabelValues("closed").Inc()
	m.logger.Warn().Err(err).Str("room_id", string(sub.roomID)).Msg("stream dropped")
	m.setState(StateDisconnected, sub.roomID, err)
}

func (m *Manager) setState(state State, roomID models.RoomID, err error) {
	m.mu.Lock()
	m.state = state
	m.roomID = roomID
	if err != nil {
		m.lastErr = err
	} else if state == StateConnected {
		m.lastErr = nil
	}
	watchers := append([]StateFunc(nil), m.watchers...)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(state, roomID)
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Room returns the room of the current or most recent subscription.
func (m *Manager) Room() models.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// LastError returns the error that caused the last disconnect, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
