package models

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is one saved vehicle in a user's garage. At most one row per user
// carries is_primary = true; the store enforces it with a partial unique index
// and the garage service repairs drift on read.
type Vehicle struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;not null;index"`
	Make      string    `gorm:"type:text;not null"`
	Model     string    `gorm:"type:text;not null"`
	Year      int       `gorm:"not null"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
