//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"

	sa "github.com/panyam/sessionauth"
)

// UserEntity is the Datastore entity for user accounts. The entity name key
// is the user ID.
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Email        string         `datastore:"email"`
	Name         string         `datastore:"name,noindex"`
	Picture      string         `datastore:"picture,noindex"`
	ProviderID   string         `datastore:"provider_id"`
	Profile      []byte         `datastore:"profile,noindex"` // JSON encoded
	TokenVersion int            `datastore:"token_version,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUserRecord(userID string) *sa.UserRecord {
	var profile map[string]any
	if e.Profile != nil {
		json.Unmarshal(e.Profile, &profile)
	}
	return &sa.UserRecord{
		ID:           userID,
		Email:        e.Email,
		Name:         e.Name,
		Picture:      e.Picture,
		ProviderID:   e.ProviderID,
		Profile:      profile,
		TokenVersion: e.TokenVersion,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
