//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"

	sa "github.com/panyam/sessionauth"
)

// KindUser is the Datastore kind for user accounts.
const KindUser = "User"

// UserStore implements sa.UserStore using Google Cloud Datastore.
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a Datastore-backed UserStore.
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) userKey(userID string) *datastore.Key {
	key := datastore.NameKey(KindUser, userID, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*sa.UserRecord, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.userKey(userID), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, fmt.Errorf("%w: %s", sa.ErrUserNotFound, userID)
		}
		return nil, err
	}
	return entity.ToUserRecord(userID), nil
}

func (s *UserStore) SaveUser(ctx context.Context, identity *sa.IdentityClaims) (*sa.UserRecord, bool, error) {
	if identity == nil || identity.SubjectID == "" {
		return nil, false, fmt.Errorf("%w: identity is missing a subject", sa.ErrSaveFailed)
	}

	key := s.userKey(identity.SubjectID)
	now := time.Now().UTC()
	created := false
	var entity UserEntity

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		err := tx.Get(key, &entity)
		if err == datastore.ErrNoSuchEntity {
			created = true
			entity = UserEntity{
				ProviderID:   identity.SubjectID,
				TokenVersion: 1,
				CreatedAt:    now,
			}
		} else if err != nil {
			return err
		}

		entity.Email = identity.Email
		entity.Name = identity.Name
		entity.Picture = identity.Picture
		entity.UpdatedAt = now

		_, err = tx.Put(key, &entity)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", sa.ErrSaveFailed, err)
	}
	return entity.ToUserRecord(identity.SubjectID), created, nil
}

func (s *UserStore) GetTokenVersion(ctx context.Context, userID string) (int, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.userKey(userID), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return 1, nil
		}
		return 0, err
	}
	return entity.TokenVersion, nil
}

func (s *UserStore) InvalidateTokens(ctx context.Context, userID string) error {
	key := s.userKey(userID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return fmt.Errorf("%w: %s", sa.ErrUserNotFound, userID)
			}
			return err
		}
		entity.TokenVersion++
		entity.UpdatedAt = time.Now().UTC()
		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}
