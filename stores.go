package sessionauth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// UserRecord is the persisted account backing a session. TokenVersion is the
// revocation counter: tokens minted with an older version are rejected.
type UserRecord struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Picture      string         `json:"picture"`
	ProviderID   string         `json:"provider_id"`
	Profile      map[string]any `json:"profile,omitempty"`
	TokenVersion int            `json:"token_version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UserStore manages user accounts and their token versions.
type UserStore interface {
	// GetUserByID retrieves a user by ID. Returns ErrUserNotFound when no
	// such user exists.
	GetUserByID(ctx context.Context, userID string) (*UserRecord, error)

	// SaveUser upserts a user from verified identity claims. A repeat login
	// refreshes the profile fields but never touches TokenVersion. Returns
	// the stored record and whether it was newly created.
	SaveUser(ctx context.Context, identity *IdentityClaims) (user *UserRecord, created bool, err error)

	// GetTokenVersion returns the user's current token version. Unknown
	// users get version 1 so issuance can proceed before first save.
	GetTokenVersion(ctx context.Context, userID string) (int, error)

	// InvalidateTokens increments the user's token version, revoking every
	// outstanding token minted before the call.
	InvalidateTokens(ctx context.Context, userID string) error
}

// InMemoryUserStore is a map-backed UserStore safe for concurrent use.
// Suitable for tests and single-process deployments.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*UserRecord
}

// NewInMemoryUserStore creates an empty in-memory user store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*UserRecord)}
}

func (s *InMemoryUserStore) GetUserByID(ctx context.Context, userID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	out := *user
	return &out, nil
}

func (s *InMemoryUserStore) SaveUser(ctx context.Context, identity *IdentityClaims) (*UserRecord, bool, error) {
	if identity == nil || identity.SubjectID == "" {
		return nil, false, fmt.Errorf("%w: identity is missing a subject", ErrSaveFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.users[identity.SubjectID]; ok {
		existing.Email = identity.Email
		existing.Name = identity.Name
		existing.Picture = identity.Picture
		existing.UpdatedAt = now
		out := *existing
		return &out, false, nil
	}

	user := &UserRecord{
		ID:           identity.SubjectID,
		Email:        identity.Email,
		Name:         identity.Name,
		Picture:      identity.Picture,
		ProviderID:   identity.SubjectID,
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[identity.SubjectID] = user
	out := *user
	return &out, true, nil
}

func (s *InMemoryUserStore) GetTokenVersion(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.TokenVersion, nil
	}
	return 1, nil
}

func (s *InMemoryUserStore) InvalidateTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	user.TokenVersion++
	user.UpdatedAt = time.Now().UTC()
	return nil
}
