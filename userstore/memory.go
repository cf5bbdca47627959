// Package userstore provides an in-memory sessionkit.UserProvider for
// development servers and tests. Production deployments plug in their own
// relational store.
package userstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/sessionkit"
	"github.com/google/uuid"
)

// Memory keeps users in maps guarded by a RWMutex.
type Memory struct {
	mu         sync.RWMutex
	byID       map[string]*sessionkit.UserRecord
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

var (
	_ sessionkit.UserProvider        = (*Memory)(nil)
	_ sessionkit.PasswordHashUpdater = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{
		byID:       make(map[string]*sessionkit.UserRecord),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (m *Memory) GetUserByID(_ context.Context, userID string) (sessionkit.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[userID]
	if !ok {
		return sessionkit.UserRecord{}, sessionkit.ErrUserNotFound
	}
	return *u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (sessionkit.UserRecord, error) {
	m.mu.RLock()
	id, ok := m.byEmail[strings.ToLower(email)]
	m.mu.RUnlock()
	if !ok {
		return sessionkit.UserRecord{}, sessionkit.ErrUserNotFound
	}
	return m.GetUserByID(ctx, id)
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (sessionkit.UserRecord, error) {
	m.mu.RLock()
	id, ok := m.byUsername[username]
	m.mu.RUnlock()
	if !ok {
		return sessionkit.UserRecord{}, sessionkit.ErrUserNotFound
	}
	return m.GetUserByID(ctx, id)
}

// CreateUser stores an active user under a random UUID. Uniqueness of email
// and username is re-checked under the write lock.
func (m *Memory) CreateUser(_ context.Context, in sessionkit.CreateUserInput) (sessionkit.UserRecord, error) {
	email := strings.ToLower(in.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return sessionkit.UserRecord{}, sessionkit.ErrAccountExists
	}
	if in.Username != "" {
		if _, taken := m.byUsername[in.Username]; taken {
			return sessionkit.UserRecord{}, sessionkit.ErrUsernameTaken
		}
	}

	u := &sessionkit.UserRecord{
		UserID:       uuid.NewString(),
		Email:        email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Active:       true,
		CreatedAt:    m.now().UTC(),
	}
	m.byID[u.UserID] = u
	m.byEmail[email] = u.UserID
	if u.Username != "" {
		m.byUsername[u.Username] = u.UserID
	}
	return *u, nil
}

// SetActive toggles the active flag of userID.
func (m *Memory) SetActive(userID string, active bool) error {
	return m.update(userID, func(u *sessionkit.UserRecord) { u.Active = active })
}

// MarkDeleted soft-deletes userID. Deleted users keep their email reserved.
func (m *Memory) MarkDeleted(userID string) error {
	return m.update(userID, func(u *sessionkit.UserRecord) { u.Deleted = true })
}

// UpdatePasswordHash replaces the stored hash of userID.
func (m *Memory) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return m.update(userID, func(u *sessionkit.UserRecord) { u.PasswordHash = hash })
}

func (m *Memory) update(userID string, fn func(*sessionkit.UserRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return sessionkit.ErrUserNotFound
	}
	fn(u)
	return nil
}

// Len returns the number of stored users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
