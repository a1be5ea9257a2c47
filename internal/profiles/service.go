package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolinkhq/autolink-backend/pkg/db"
	"github.com/autolinkhq/autolink-backend/pkg/db/models"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

const (
	usernameMaxLen            = 24
	usernameRetryBase         = 16
	defaultAvatarUploadExpiry = 15 * time.Minute
)

var avatarContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

type avatarSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

// Service exposes profile operations.
type Service interface {
	Ensure(ctx context.Context, input EnsureProfileInput) (*ProfileDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*ProfileDTO, error)
	AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (string, string, error)
}

type service struct {
	repo         profileRepository
	signer       avatarSigner
	uploadExpiry time.Duration
}

// NewService builds a profile service. The avatar signer is optional; a
// non-positive uploadExpiry falls back to the default.
func NewService(repo profileRepository, signer avatarSigner, uploadExpiry time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if uploadExpiry <= 0 {
		uploadExpiry = defaultAvatarUploadExpiry
	}
	return &service{repo: repo, signer: signer, uploadExpiry: uploadExpiry}, nil
}

// Ensure returns the existing profile for the user or creates one from the
// sign-in identity. Username collisions fall back to an id-suffixed handle.
func (s *service) Ensure(ctx context.Context, input EnsureProfileInput) (*ProfileDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	existing, err := s.repo.FindByID(ctx, input.UserID)
	if err == nil {
		return FromModel(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	username := usernameCandidate(input)
	profile := &models.Profile{
		ID:       input.UserID,
		Username: username,
		IsPro:    false,
	}
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		profile.DisplayName = &name
	}
	if avatar := strings.TrimSpace(input.AvatarURL); avatar != "" {
		profile.AvatarURL = &avatar
	}

	// The upsert ignores conflicts on id, so a concurrent sign-in that
	// already inserted the row is a silent no-op; only a username collision
	// can surface here.
	if err := s.repo.Upsert(ctx, profile); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
		}

		profile.Username = collisionFallback(username, input.UserID)
		if err := s.repo.Upsert(ctx, profile); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "profile setup failed")
		}
	}

	// Re-read so the caller always sees the persisted row, whichever
	// sign-in won the insert.
	persisted, err := s.repo.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return FromModel(persisted), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return FromModel(profile), nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*ProfileDTO, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		if trimmed == "" {
			profile.DisplayName = nil
		} else {
			profile.DisplayName = &trimmed
		}
	}
	if input.AvatarURL != nil {
		trimmed := strings.TrimSpace(*input.AvatarURL)
		if trimmed == "" {
			profile.AvatarURL = nil
		} else {
			profile.AvatarURL = &trimmed
		}
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return FromModel(profile), nil
}

// AvatarUploadURL mints a short-lived signed PUT URL for the user's avatar object.
func (s *service) AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (string, string, error) {
	if s.signer == nil {
		return "", "", pkgerrors.New(pkgerrors.CodeDependency, "avatar storage is not configured")
	}
	ext, ok := avatarContentTypes[contentType]
	if !ok {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported avatar content type")
	}

	object := fmt.Sprintf("avatars/%s.%s", userID, ext)
	signed, err := s.signer.SignedURL("", object, contentType, s.uploadExpiry)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign avatar upload url")
	}
	return signed, object, nil
}

// usernameCandidate derives a handle from the identity: the provider-supplied
// username wins when it sanitizes to something usable, then the email local
// part, then an id-based fallback.
func usernameCandidate(input EnsureProfileInput) string {
	if handle := sanitizeUsername(input.Username); handle != "" {
		return handle
	}
	base := input.Email
	if at := strings.Index(input.Email, "@"); at >= 0 {
		base = input.Email[:at]
	}
	if handle := sanitizeUsername(base); handle != "" {
		return handle
	}
	return "user_" + input.UserID.String()[:8]
}

func sanitizeUsername(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if len(cleaned) > usernameMaxLen {
		cleaned = cleaned[:usernameMaxLen]
		cleaned = strings.TrimRight(cleaned, "_")
	}
	return cleaned
}

func collisionFallback(username string, userID uuid.UUID) string {
	base := username
	if len(base) > usernameRetryBase {
		base = strings.TrimRight(base[:usernameRetryBase], "_")
	}
	return base + "_" + strings.ReplaceAll(userID.String(), "-", "")[:6]
}
