package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/api/responses"
	"github.com/autolinkhq/autolink-backend/api/validators"
	"github.com/autolinkhq/autolink-backend/internal/profiles"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
)

func ProfileGet(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		profile, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

const maxDisplayNameLen = 80

type profileUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=80"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// ProfileUpdate adjusts the mutable profile fields. Empty strings clear.
func ProfileUpdate(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload profileUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.DisplayName != nil {
			cleaned := validators.SanitizeString(*payload.DisplayName, maxDisplayNameLen)
			payload.DisplayName = &cleaned
		}

		profile, err := svc.Update(r.Context(), userID, profiles.UpdateProfileInput{
			DisplayName: payload.DisplayName,
			AvatarURL:   payload.AvatarURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

type avatarUploadRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

// ProfileAvatarUploadURL mints a short-lived signed PUT URL for the avatar.
func ProfileAvatarUploadURL(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload avatarUploadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		uploadURL, object, err := svc.AvatarUploadURL(r.Context(), userID, payload.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, struct {
			UploadURL string `json:"upload_url"`
			Object    string `json:"object"`
		}{UploadURL: uploadURL, Object: object})
	}
}
