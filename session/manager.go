// Package session keeps the anonymous backend session alive and exposes the
// user id that scopes every other client feature.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/core"
)

// Status of the session lifecycle.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the server-issued anonymous identity.
type Session struct {
	UserID          string
	SessionID       string
	IsAuthenticated bool
	IsNew           bool
}

// Backend is the part of the API client the manager needs.
type Backend interface {
	CheckSession(ctx context.Context) (*api.SessionResponse, error)
	InitSession(ctx context.Context) (*api.SessionResponse, error)
}

// Manager owns the session state. It checks the session on Start and then
// every interval until Close. All methods are safe for concurrent use;
// overlapping refreshes are last-write-wins.
type Manager struct {
	backend  Backend
	memory   core.Memory
	interval time.Duration

	logger    core.Logger
	telemetry core.Telemetry

	mu        sync.RWMutex
	status    Status
	current   *Session
	lastErr   error
	listeners []func(ctx context.Context, userID string)

	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		m.logger = core.ComponentLogger(logger, "storefront/session")
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(t core.Telemetry) Option {
	return func(m *Manager) {
		if t != nil {
			m.telemetry = t
		}
	}
}

// NewManager creates a manager. cfg.CheckInterval <= 0 uses the default.
func NewManager(backend Backend, memory core.Memory, cfg core.SessionConfig, opts ...Option) *Manager {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = core.DefaultSessionInterval
	}
	m := &Manager{
		backend:   backend,
		memory:    memory,
		interval:  interval,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
		status:    StatusLoading,
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start performs the initial check and starts the periodic re-check. The
// returned error is the initial check's; the re-check runs either way so a
// failed session can recover. Start may only be called once.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return core.ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	err := m.Refresh(ctx)
	m.startRefreshRoutine(ctx)
	return err
}

func (m *Manager) startRefreshRoutine(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					m.logger.Warn("Periodic session check failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			case <-m.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the periodic re-check and waits for it to exit.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
	return nil
}

// Refresh checks the session, initialising a new one when the check is
// rejected. On success the user id is persisted; on failure it is removed
// and the manager reports StatusFailed.
func (m *Manager) Refresh(ctx context.Context) error {
	ctx, span := m.telemetry.StartSpan(ctx, "session.refresh")
	defer span.End()

	sess, err := m.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		m.fail(ctx, err)
		return err
	}

	span.SetAttribute("user_id", sess.UserID)
	span.SetAttribute("is_new", sess.IsNew)
	if err := m.memory.Set(ctx, core.KeyUserID, sess.UserID, 0); err != nil {
		m.logger.Warn("Failed to persist user id", map[string]interface{}{
			"user_id": sess.UserID,
			"error":   err.Error(),
		})
	}

	m.mu.Lock()
	previous := m.userIDLocked()
	m.current = sess
	m.lastErr = nil
	m.status = StatusReady
	listeners := m.listeners
	m.mu.Unlock()

	m.logger.Debug("Session ready", map[string]interface{}{
		"user_id": sess.UserID,
		"is_new":  sess.IsNew,
	})
	if previous != sess.UserID {
		notify(ctx, listeners, sess.UserID)
	}
	return nil
}

func (m *Manager) acquire(ctx context.Context) (*Session, error) {
	resp, err := m.backend.CheckSession(ctx)
	switch {
	case err != nil:
		if _, rejected := api.AsStatusError(err); !rejected {
			return nil, fmt.Errorf("session check: %w", err)
		}
		m.logger.Info("Session check rejected, initializing a new session", map[string]interface{}{
			"error": err.Error(),
		})
	case !valid(resp):
		m.logger.Info("No valid session, initializing a new session", nil)
	default:
		return newSession(resp), nil
	}

	resp, err = m.backend.InitSession(ctx)
	if err != nil {
		if se, ok := api.AsStatusError(err); ok {
			return nil, fmt.Errorf("failed to initialize session: HTTP %d: %w", se.StatusCode, core.ErrSessionUnavailable)
		}
		return nil, fmt.Errorf("session init: %w", err)
	}
	if !valid(resp) {
		return nil, fmt.Errorf("session response has no user id: %w", core.ErrSessionUnavailable)
	}
	return newSession(resp), nil
}

// valid reports whether resp carries a usable session.
func valid(resp *api.SessionResponse) bool {
	return resp != nil && resp.Success && resp.Data.UserID != ""
}

func newSession(resp *api.SessionResponse) *Session {
	return &Session{
		UserID:          resp.Data.UserID,
		SessionID:       resp.Data.SessionID,
		IsAuthenticated: resp.Data.IsAuthenticated,
		IsNew:           resp.Data.IsNew,
	}
}

func (m *Manager) fail(ctx context.Context, err error) {
	if delErr := m.memory.Delete(ctx, core.KeyUserID); delErr != nil {
		m.logger.Warn("Failed to remove persisted user id", map[string]interface{}{
			"error": delErr.Error(),
		})
	}

	m.mu.Lock()
	previous := m.userIDLocked()
	m.current = nil
	m.lastErr = err
	m.status = StatusFailed
	listeners := m.listeners
	m.mu.Unlock()

	m.logger.Error("Session unavailable", map[string]interface{}{
		"error": err.Error(),
	})
	if previous != "" {
		notify(ctx, listeners, "")
	}
}

func (m *Manager) userIDLocked() string {
	if m.status != StatusReady || m.current == nil {
		return ""
	}
	return m.current.UserID
}

func notify(ctx context.Context, listeners []func(context.Context, string), userID string) {
	for _, l := range listeners {
		l(ctx, userID)
	}
}

// OnUserChange registers fn to be called whenever the effective user id
// changes, including to "" when the session fails.
func (m *Manager) OnUserChange(fn func(ctx context.Context, userID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status reports the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// UserID is the current user id, "" unless the session is ready.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userIDLocked()
}

// Current returns a copy of the session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Err is the last refresh error, nil once a refresh succeeds.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// RequireUser returns the user id or core.ErrNotReady.
func (m *Manager) RequireUser() (string, error) {
	if id := m.UserID(); id != "" {
		return id, nil
	}
	if err := m.Err(); err != nil {
		return "", errors.Join(core.ErrNotReady, err)
	}
	return "", core.ErrNotReady
}

// PersistedUserID reads the user id left by a previous run.
func PersistedUserID(ctx context.Context, memory core.Memory) (string, error) {
	return memory.Get(ctx, core.KeyUserID)
}
