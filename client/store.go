package client

import (
	"context"
	"sync"
)

type (
	User struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		CreatedAt     string `json:"createdAt"`
	}

	Session struct {
		Token string `json:"token"`
		User  *User  `json:"user,omitempty"`
	}

	// Store persists the session between runs
	Store interface {
		Load(ctx context.Context) (Session, bool, error)
		Save(ctx context.Context, s Session) error
		Clear(ctx context.Context) error
	}

	MemoryStore struct {
		mu      sync.Mutex
		session *Session
	}
)

func (m *MemoryStore) Load(_ context.Context) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false, nil
	}
	return *m.session, true, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
