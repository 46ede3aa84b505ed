package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sa "github.com/panyam/sessionauth"
)

// FSUserStore stores users as JSON files, one file per user. Suitable for
// development and small single-host deployments.
type FSUserStore struct {
	StoragePath string

	// Serializes read-modify-write cycles across goroutines. Cross-process
	// safety relies on the atomic rename in writeUser.
	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", userID+".json")
}

func (s *FSUserStore) GetUserByID(ctx context.Context, userID string) (*sa.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readUser(userID)
}

func (s *FSUserStore) SaveUser(ctx context.Context, identity *sa.IdentityClaims) (*sa.UserRecord, bool, error) {
	if identity == nil || identity.SubjectID == "" {
		return nil, false, fmt.Errorf("%w: identity is missing a subject", sa.ErrSaveFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	user, err := s.readUser(identity.SubjectID)
	created := err != nil
	if created {
		user = &sa.UserRecord{
			ID:           identity.SubjectID,
			ProviderID:   identity.SubjectID,
			TokenVersion: 1,
			CreatedAt:    now,
		}
	}
	user.Email = identity.Email
	user.Name = identity.Name
	user.Picture = identity.Picture
	user.UpdatedAt = now

	if err := s.writeUser(user); err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *FSUserStore) GetTokenVersion(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(userID)
	if err != nil {
		return 1, nil
	}
	return user.TokenVersion, nil
}

func (s *FSUserStore) InvalidateTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(userID)
	if err != nil {
		return err
	}
	user.TokenVersion++
	user.UpdatedAt = time.Now().UTC()
	return s.writeUser(user)
}

func (s *FSUserStore) readUser(userID string) (*sa.UserRecord, error) {
	data, err := os.ReadFile(s.userPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sa.ErrUserNotFound, userID)
		}
		return nil, err
	}
	var user sa.UserRecord
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FSUserStore) writeUser(user *sa.UserRecord) error {
	path := s.userPath(user.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

// writeAtomicFile writes data through a temp file and rename so readers
// never observe a partially written user record.
func writeAtomicFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
