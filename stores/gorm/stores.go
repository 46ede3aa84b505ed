//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	sa "github.com/panyam/sessionauth"
)

// AutoMigrate runs database migrations for all sessionauth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements sa.UserStore using GORM.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*sa.UserRecord, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", sa.ErrUserNotFound, userID)
		}
		return nil, err
	}
	return model.ToUserRecord(), nil
}

func (s *UserStore) SaveUser(ctx context.Context, identity *sa.IdentityClaims) (*sa.UserRecord, bool, error) {
	if identity == nil || identity.SubjectID == "" {
		return nil, false, fmt.Errorf("%w: identity is missing a subject", sa.ErrSaveFailed)
	}

	var model UserModel
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&model, "id = ?", identity.SubjectID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			model = UserModel{
				ID:           identity.SubjectID,
				Email:        identity.Email,
				Name:         identity.Name,
				Picture:      identity.Picture,
				ProviderID:   identity.SubjectID,
				TokenVersion: 1,
			}
			return tx.Create(&model).Error
		}
		if err != nil {
			return err
		}

		// Repeat login refreshes the profile but never the token version.
		model.Email = identity.Email
		model.Name = identity.Name
		model.Picture = identity.Picture
		return tx.Model(&model).Updates(map[string]any{
			"email":   identity.Email,
			"name":    identity.Name,
			"picture": identity.Picture,
		}).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", sa.ErrSaveFailed, err)
	}
	return model.ToUserRecord(), created, nil
}

func (s *UserStore) GetTokenVersion(ctx context.Context, userID string) (int, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Select("token_version").First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return model.TokenVersion, nil
}

func (s *UserStore) InvalidateTokens(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		Update("token_version", gorm.Expr("token_version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", sa.ErrUserNotFound, userID)
	}
	return nil
}
