package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/pkg/db/models"
)

// ProfileDTO is the API-facing projection of a profile row.
type ProfileDTO struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	IsPro       bool      `json:"is_pro"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromModel maps a persisted profile to its DTO.
func FromModel(profile *models.Profile) *ProfileDTO {
	if profile == nil {
		return nil
	}
	return &ProfileDTO{
		ID:          profile.ID,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		IsPro:       profile.IsPro,
		CreatedAt:   profile.CreatedAt,
	}
}

// EnsureProfileInput carries the identity data available after sign-in.
// Username is the provider-preferred handle and may be empty.
type EnsureProfileInput struct {
	UserID      uuid.UUID
	Username    string
	Email       string
	DisplayName string
	AvatarURL   string
}

// UpdateProfileInput captures the mutable profile fields. Username is immutable.
type UpdateProfileInput struct {
	DisplayName *string
	AvatarURL   *string
}
