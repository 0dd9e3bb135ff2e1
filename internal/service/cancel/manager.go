package cancel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusy is returned when the caller gave up waiting for the user's previous turn.
var ErrBusy = errors.New("previous request is still in progress")

// Manager serializes turns per user and lets a user cancel the running one.
// Turns of different users never wait on each other.
type Manager struct {
	users map[int64]*userSlot
	mu    sync.Mutex
}

type userSlot struct {
	sem     chan struct{}
	refs    int
	active  *activeRequest
	waiting int
}

type activeRequest struct {
	cancel    context.CancelFunc
	command   string
	startedAt time.Time
}

type ActiveRequestInfo struct {
	UserID    int64
	Command   string
	StartedAt time.Time
	Waiting   int
}

func NewManager() *Manager {
	return &Manager{
		users: make(map[int64]*userSlot),
	}
}

// Acquire blocks until the user has no running turn or ctx is done.
// The returned release func must be called exactly once; calling it again is a no-op.
func (m *Manager) Acquire(ctx context.Context, userID int64, command string) (context.Context, func(), error) {
	m.mu.Lock()
	slot, ok := m.users[userID]
	if !ok {
		slot = &userSlot{sem: make(chan struct{}, 1)}
		m.users[userID] = slot
	}
	slot.refs++
	slot.waiting++
	m.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		m.mu.Lock()
		slot.waiting--
		m.unref(userID, slot)
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}

	turnCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	slot.waiting--
	slot.active = &activeRequest{
		cancel:    cancel,
		command:   command,
		startedAt: time.Now(),
	}
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			m.mu.Lock()
			slot.active = nil
			m.mu.Unlock()
			<-slot.sem

			m.mu.Lock()
			m.unref(userID, slot)
			m.mu.Unlock()
		})
	}
	return turnCtx, release, nil
}

func (m *Manager) unref(userID int64, slot *userSlot) {
	slot.refs--
	if slot.refs == 0 {
		delete(m.users, userID)
	}
}

// Cancel aborts the user's running turn. Queued turns are not affected.
func (m *Manager) Cancel(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.users[userID]
	if !ok || slot.active == nil {
		return false
	}
	slot.active.cancel()
	return true
}

func (m *Manager) IsActive(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.users[userID]
	return ok && slot.active != nil
}

func (m *Manager) GetActiveRequest(userID int64) *ActiveRequestInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.users[userID]
	if !ok || slot.active == nil {
		return nil
	}

	return &ActiveRequestInfo{
		UserID:    userID,
		Command:   slot.active.command,
		StartedAt: slot.active.startedAt,
		Waiting:   slot.waiting,
	}
}
