package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/storefront/api"
	"github.com/itsneelabh/storefront/core"
)

type fakeBackend struct {
	mu         sync.Mutex
	check      func() (*api.SessionResponse, error)
	init       func() (*api.SessionResponse, error)
	checkCalls int32
	initCalls  int32
}

func (f *fakeBackend) CheckSession(ctx context.Context) (*api.SessionResponse, error) {
	atomic.AddInt32(&f.checkCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check()
}

func (f *fakeBackend) InitSession(ctx context.Context) (*api.SessionResponse, error) {
	atomic.AddInt32(&f.initCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.init()
}

func (f *fakeBackend) setCheck(fn func() (*api.SessionResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.check = fn
}

func ok(userID string) func() (*api.SessionResponse, error) {
	return func() (*api.SessionResponse, error) {
		return &api.SessionResponse{Success: true, Data: api.SessionData{UserID: userID, SessionID: "s-" + userID}}, nil
	}
}

func status(code int) func() (*api.SessionResponse, error) {
	return func() (*api.SessionResponse, error) {
		return nil, &api.StatusError{StatusCode: code, Message: api.DefaultErrorMessage}
	}
}

func unreachable() (*api.SessionResponse, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestManager(t *testing.T, backend *fakeBackend) (*Manager, *core.MemoryStore) {
	t.Helper()
	mem := core.NewMemoryStore()
	m := NewManager(backend, mem, core.SessionConfig{CheckInterval: time.Hour})
	t.Cleanup(func() { _ = m.Close() })
	return m, mem
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		check      func() (*api.SessionResponse, error)
		init       func() (*api.SessionResponse, error)
		wantUser   string
		wantStatus Status
		wantInit   int32
		wantErr    error
	}{
		{
			name:       "valid session",
			check:      ok("u1"),
			init:       unreachable,
			wantUser:   "u1",
			wantStatus: StatusReady,
		},
		{
			name:       "rejected check initializes",
			check:      status(http.StatusUnauthorized),
			init:       ok("u2"),
			wantUser:   "u2",
			wantStatus: StatusReady,
			wantInit:   1,
		},
		{
			name:       "init rejected",
			check:      status(http.StatusUnauthorized),
			init:       status(http.StatusInternalServerError),
			wantStatus: StatusFailed,
			wantInit:   1,
			wantErr:    core.ErrSessionUnavailable,
		},
		{
			name:       "transport error does not init",
			check:      unreachable,
			init:       ok("u3"),
			wantStatus: StatusFailed,
		},
		{
			name: "missing user id initializes",
			check: func() (*api.SessionResponse, error) {
				return &api.SessionResponse{Success: true}, nil
			},
			init:       ok("u4"),
			wantUser:   "u4",
			wantStatus: StatusReady,
			wantInit:   1,
		},
		{
			name: "unsuccessful check initializes",
			check: func() (*api.SessionResponse, error) {
				return &api.SessionResponse{Success: false, Data: api.SessionData{UserID: "stale"}}, nil
			},
			init:       ok("u5"),
			wantUser:   "u5",
			wantStatus: StatusReady,
			wantInit:   1,
		},
		{
			name: "init without user id",
			check: func() (*api.SessionResponse, error) {
				return &api.SessionResponse{Success: false}, nil
			},
			init: func() (*api.SessionResponse, error) {
				return &api.SessionResponse{Success: true}, nil
			},
			wantStatus: StatusFailed,
			wantInit:   1,
			wantErr:    core.ErrSessionUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{check: tt.check, init: tt.init}
			m, mem := newTestManager(t, backend)

			err := m.Refresh(context.Background())

			assert.Equal(t, tt.wantStatus, m.Status())
			assert.Equal(t, tt.wantUser, m.UserID())
			assert.Equal(t, tt.wantInit, atomic.LoadInt32(&backend.initCalls))

			stored, _ := mem.Get(context.Background(), core.KeyUserID)
			assert.Equal(t, tt.wantUser, stored)

			if tt.wantStatus == StatusReady {
				require.NoError(t, err)
				assert.NoError(t, m.Err())
				return
			}
			require.Error(t, err)
			assert.Equal(t, err, m.Err())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestFailureClearsPersistedUser(t *testing.T) {
	backend := &fakeBackend{check: ok("u1"), init: unreachable}
	m, mem := newTestManager(t, backend)

	require.NoError(t, m.Refresh(context.Background()))
	exists, _ := mem.Exists(context.Background(), core.KeyUserID)
	require.True(t, exists)

	backend.setCheck(unreachable)
	require.Error(t, m.Refresh(context.Background()))

	exists, _ = mem.Exists(context.Background(), core.KeyUserID)
	assert.False(t, exists)
	assert.Empty(t, m.UserID())
	assert.Nil(t, m.Current())

	_, err := m.RequireUser()
	assert.True(t, errors.Is(err, core.ErrNotReady))
}

func TestOnUserChange(t *testing.T) {
	backend := &fakeBackend{check: ok("u1"), init: unreachable}
	m, _ := newTestManager(t, backend)

	var changes []string
	m.OnUserChange(func(ctx context.Context, userID string) {
		changes = append(changes, userID)
	})

	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	require.NoError(t, m.Refresh(ctx)) // same user, no event

	backend.setCheck(ok("u2"))
	require.NoError(t, m.Refresh(ctx))

	backend.setCheck(unreachable)
	_ = m.Refresh(ctx)
	_ = m.Refresh(ctx) // already failed, no event

	assert.Equal(t, []string{"u1", "u2", ""}, changes)
}

func TestStatusBeforeStart(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{check: ok("u1"), init: unreachable})

	assert.Equal(t, StatusLoading, m.Status())
	assert.Equal(t, "loading", m.Status().String())
	_, err := m.RequireUser()
	assert.Equal(t, core.ErrNotReady, err)
}

func TestStartRunsPeriodicCheck(t *testing.T) {
	backend := &fakeBackend{check: ok("u1"), init: unreachable}
	m := NewManager(backend, core.NewMemoryStore(), core.SessionConfig{CheckInterval: 10 * time.Millisecond})
	defer m.Close()

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "u1", m.UserID())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&backend.checkCalls) >= 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, core.ErrAlreadyStarted, m.Start(context.Background()))
}

func TestStartFailureStillSchedulesRecheck(t *testing.T) {
	backend := &fakeBackend{check: unreachable, init: unreachable}
	m := NewManager(backend, core.NewMemoryStore(), core.SessionConfig{CheckInterval: 10 * time.Millisecond})
	defer m.Close()

	require.Error(t, m.Start(context.Background()))
	assert.Equal(t, StatusFailed, m.Status())

	backend.setCheck(ok("u9"))
	assert.Eventually(t, func() bool {
		return m.UserID() == "u9"
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsRoutine(t *testing.T) {
	backend := &fakeBackend{check: ok("u1"), init: unreachable}
	m := NewManager(backend, core.NewMemoryStore(), core.SessionConfig{CheckInterval: 5 * time.Millisecond})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")

	calls := atomic.LoadInt32(&backend.checkCalls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&backend.checkCalls))
}

func TestPersistedUserID(t *testing.T) {
	mem := core.NewMemoryStore()
	require.NoError(t, mem.Set(context.Background(), core.KeyUserID, "u7", 0))

	id, err := PersistedUserID(context.Background(), mem)
	require.NoError(t, err)
	assert.Equal(t, "u7", id)
}
