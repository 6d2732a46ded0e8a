package users

import (
	"context"
	"sync"
	"time"
)

// repoMock is an in-memory userRepo used in handler tests.
type repoMock struct {
	mu            sync.Mutex
	nextID        int
	users         map[int]*User
	weightEntries map[int][]WeightEntry
}

func newRepoMock() *repoMock {
	return &repoMock{
		nextID:        1,
		users:         make(map[int]*User),
		weightEntries: make(map[int][]WeightEntry),
	}
}

func (m *repoMock) Create(_ context.Context, params CreateUserParams) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == params.Username || u.Email == params.Email {
			return nil, ErrUserExists
		}
	}

	user := &User{
		ID:            m.nextID,
		Username:      params.Username,
		Email:         params.Email,
		PasswordHash:  params.PasswordHash,
		DisplayName:   params.DisplayName,
		Gender:        params.Gender,
		Height:        params.Height,
		BirthDate:     params.BirthDate,
		PRExerciseIDs: []int{},
		CreatedAt:     time.Now(),
	}
	m.nextID++
	m.users[user.ID] = user

	if params.InitialWeight > 0 {
		m.weightEntries[user.ID] = append(m.weightEntries[user.ID], WeightEntry{
			ID:         user.ID,
			UserID:     user.ID,
			Weight:     params.InitialWeight,
			MeasuredAt: user.CreatedAt,
		})
	}

	userCopy := *user
	return &userCopy, nil
}

func (m *repoMock) GetByID(_ context.Context, id int) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

func (m *repoMock) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			userCopy := *user
			return &userCopy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *repoMock) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *repoMock) UpdateProfile(_ context.Context, userID int, params UpdateProfileParams) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	if params.DisplayName != nil {
		user.DisplayName = *params.DisplayName
	}
	if params.ProfilePublic != nil {
		user.ProfilePublic = *params.ProfilePublic
	}
	if params.PRExerciseIDs != nil {
		user.PRExerciseIDs = *params.PRExerciseIDs
	}

	userCopy := *user
	return &userCopy, nil
}

func (m *repoMock) AddWeightEntry(_ context.Context, userID int, weight float64, measuredAt time.Time) (*WeightEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := WeightEntry{
		ID:         len(m.weightEntries[userID]) + 1,
		UserID:     userID,
		Weight:     weight,
		MeasuredAt: measuredAt,
	}
	m.weightEntries[userID] = append(m.weightEntries[userID], entry)
	return &entry, nil
}
