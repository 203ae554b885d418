package edit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/sitefit/server/internal/implant"
)

// Manager tracks edit sessions across websocket connections.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds an edit session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// StartSession registers a new edit session for a placed footprint.
func (m *Manager) StartSession(userID int64, env *implant.Envelope, footprint orb.Polygon) (*Session, error) {
	if len(footprint) == 0 || len(footprint[0]) == 0 {
		return nil, fmt.Errorf("footprint is required to start an edit session")
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Envelope:  env,
		Committed: footprint,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by ID, enforcing ownership.
func (m *Manager) GetSession(userID int64, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %s does not belong to the current user", sessionID)
	}
	return session, nil
}

// EndSession drops a session. Ending an unknown session is not an error;
// disconnect handlers call this unconditionally.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// SessionCount reports the number of live sessions, for health reporting.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
