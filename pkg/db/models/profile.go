package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the app-owned record keyed by the auth user id. Exactly one row
// exists per user; the username is immutable after creation.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username    string    `gorm:"type:text;not null;uniqueIndex"`
	DisplayName *string   `gorm:"column:display_name"`
	AvatarURL   *string   `gorm:"column:avatar_url"`
	IsPro       bool      `gorm:"column:is_pro;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
