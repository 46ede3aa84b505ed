//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	sa "github.com/panyam/sessionauth"
)

// JSONMap stores a JSON object in a single column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// UserModel is the GORM model for user accounts.
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"size:255;index"`
	Name         string    `gorm:"size:255"`
	Picture      string    `gorm:"size:512"`
	ProviderID   string    `gorm:"size:255"`
	Profile      JSONMap   `gorm:"type:jsonb"`
	TokenVersion int       `gorm:"default:1"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUserRecord() *sa.UserRecord {
	return &sa.UserRecord{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		Picture:      m.Picture,
		ProviderID:   m.ProviderID,
		Profile:      m.Profile,
		TokenVersion: m.TokenVersion,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
