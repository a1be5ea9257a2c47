package controllers

import (
	"net/http"
	"strings"

	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/api/responses"
	"github.com/autolinkhq/autolink-backend/api/validators"
	"github.com/autolinkhq/autolink-backend/internal/auth"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
)

type startSignInRequest struct {
	Platform string `json:"platform" validate:"required,oneof=web native"`
}

// AuthStart mints the Google authorize URL and the single-use state.
func AuthStart(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload startSignInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartSignIn(r.Context(), payload.Platform)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type completeSignInRequest struct {
	State        string `json:"state,omitempty"`
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// AuthComplete exchanges the redirect outcome for a session. Clients either
// send the redirect parameters directly (state plus a code or a fragment
// token pair) or hand over the raw callback URL they landed on.
func AuthComplete(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload completeSignInRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := auth.CompleteSignInInput{
			State:        strings.TrimSpace(payload.State),
			Code:         strings.TrimSpace(payload.Code),
			AccessToken:  strings.TrimSpace(payload.AccessToken),
			RefreshToken: strings.TrimSpace(payload.RefreshToken),
		}
		if payload.CallbackURL != "" {
			parsed, err := auth.ParseCallback(payload.CallbackURL)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if input.State == "" {
				input.State = parsed.State
			}
			if input.Code == "" {
				input.Code = parsed.Code
			}
			if input.AccessToken == "" {
				input.AccessToken = parsed.AccessToken
			}
			if input.RefreshToken == "" {
				input.RefreshToken = parsed.RefreshToken
			}
		}

		tokens, err := svc.CompleteSignIn(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokens)
	}
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload refreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens, err := svc.Refresh(r.Context(), payload.AccessToken, payload.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokens)
	}
}

// AuthSignOut revokes the refresh session tied to the presented access token.
func AuthSignOut(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil || claims.ID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		if err := svc.SignOut(r.Context(), claims.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
