package workouts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// repoMock is an in-memory sessionsRepo used in handler tests.
type repoMock struct {
	mu        sync.Mutex
	nextID    int
	nextSetID int
	sessions  map[int]*Session
}

func newRepoMock() *repoMock {
	return &repoMock{
		nextID:    1,
		nextSetID: 1,
		sessions:  make(map[int]*Session),
	}
}

func (m *repoMock) Create(_ context.Context, userID int, name string, date time.Time, sets []Set) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		ID:        m.nextID,
		UserID:    userID,
		Name:      name,
		Date:      date,
		CreatedAt: time.Now(),
		Sets:      []Set{},
	}
	m.nextID++

	for _, set := range sets {
		set.ID = m.nextSetID
		set.SessionID = session.ID
		m.nextSetID++
		session.Sets = append(session.Sets, set)
	}

	m.sessions[session.ID] = session
	sessionCopy := *session
	return &sessionCopy, nil
}

func (m *repoMock) Get(_ context.Context, userID, sessionID int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOwned(userID, sessionID)
}

func (m *repoMock) List(_ context.Context, userID, limit, offset int) ([]Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			owned = append(owned, *s)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].Date.Equal(owned[j].Date) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].Date.After(owned[j].Date)
	})

	total := len(owned)
	if offset >= total {
		return []Session{}, total, nil
	}
	to := offset + limit
	if to > total {
		to = total
	}
	return owned[offset:to], total, nil
}

func (m *repoMock) UpdateMeta(_ context.Context, userID, sessionID int, params UpdateMetaParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.getOwnedRef(userID, sessionID)
	if err != nil {
		return err
	}
	if params.Name != nil {
		session.Name = *params.Name
	}
	if params.Date != nil {
		session.Date = *params.Date
	}
	return nil
}

func (m *repoMock) ReplaceSets(_ context.Context, userID, sessionID int, sets []Set) ([]Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.getOwnedRef(userID, sessionID)
	if err != nil {
		return nil, err
	}

	session.Sets = []Set{}
	for _, set := range sets {
		set.ID = m.nextSetID
		set.SessionID = sessionID
		m.nextSetID++
		session.Sets = append(session.Sets, set)
	}

	setsCopy := make([]Set, len(session.Sets))
	copy(setsCopy, session.Sets)
	return setsCopy, nil
}

func (m *repoMock) Delete(_ context.Context, userID, sessionID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getOwnedRef(userID, sessionID); err != nil {
		return err
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *repoMock) getOwned(userID, sessionID int) (*Session, error) {
	session, err := m.getOwnedRef(userID, sessionID)
	if err != nil {
		return nil, err
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (m *repoMock) getOwnedRef(userID, sessionID int) (*Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
