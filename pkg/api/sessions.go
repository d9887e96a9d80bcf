package api

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/delegate"
)

// ErrManagerClosed is returned by Session after Close.
var ErrManagerClosed = errors.New("session manager closed")

// Opener opens a delegate session acting as username.
type Opener func(ctx context.Context, username string) (*delegate.Session, error)

// sessionEntry is a session being opened or already open. ready is closed
// once session or err is set.
type sessionEntry struct {
	ready   chan struct{}
	session *delegate.Session
	err     error
}

// SessionManager caches one delegate session per end user. Concurrent
// requests for a user that has no session yet share a single open.
//
// Thread Safety: All methods are safe for concurrent use.
type SessionManager struct {
	open    Opener
	metrics Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
}

// NewSessionManager creates a manager that opens sessions with open.
// metrics may be nil.
func NewSessionManager(open Opener, metrics Metrics) *SessionManager {
	return &SessionManager{
		open:     open,
		metrics:  metrics,
		sessions: make(map[string]*sessionEntry),
	}
}

// Session returns the cached session for username, opening it on first use.
// A failed open is not cached.
func (m *SessionManager) Session(ctx context.Context, username string) (*delegate.Session, error) {
	if m == nil {
		return nil, ErrManagerClosed
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if e, ok := m.sessions[username]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.session, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &sessionEntry{ready: make(chan struct{})}
	m.sessions[username] = e
	m.mu.Unlock()

	// The open outlives a cancelled first caller so that waiters still get
	// a result.
	e.session, e.err = m.open(context.WithoutCancel(ctx), username)
	close(e.ready)

	m.mu.Lock()
	if e.err != nil {
		delete(m.sessions, username)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if e.err != nil {
		logger.WarnCtx(ctx, "Failed to open delegate session",
			logger.KeyUsername, username, logger.KeyError, e.err)
		return nil, e.err
	}
	if m.metrics != nil {
		m.metrics.SetSessions(n)
	}
	logger.InfoCtx(ctx, "Delegate session cached",
		logger.KeyUsername, username, logger.KeySessionID, e.session.ID())
	return e.session, nil
}

// Count returns the number of sessions open or being opened.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every cached session. Later calls to Session fail with
// ErrManagerClosed.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := m.sessions
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.session != nil {
			if err := e.session.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if m.metrics != nil {
		m.metrics.SetSessions(0)
	}
	return errors.Join(errs...)
}

// Ready returns ErrManagerClosed after Close.
func (m *SessionManager) Ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}
