package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/api/responses"
	"github.com/autolinkhq/autolink-backend/api/validators"
	"github.com/autolinkhq/autolink-backend/internal/garage"
	"github.com/autolinkhq/autolink-backend/internal/registry"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
)

// selectionSessionHeader scopes the stale-response guard to one picker flow.
// Clients reuse the same value for every request in a single form session.
const selectionSessionHeader = "X-Selection-Session"

func selectionSession(r *http.Request) string {
	if session := strings.TrimSpace(r.Header.Get(selectionSessionHeader)); session != "" {
		return session
	}
	// Fall back to the authenticated user so unkeyed clients still get
	// last-writer-wins within their own requests.
	return middleware.UserIDFromContext(r.Context()).String()
}

type makesResponse struct {
	Makes   []registry.Make `json:"makes"`
	Message string          `json:"message,omitempty"`
}

// RegistryMakes lists makes for a model year via the vehicle registry.
func RegistryMakes(selector *garage.Selector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if selector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}

		year, err := validators.RequireQueryInt(r, "year", 1900, time.Now().Year()+2)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		makes, message, err := selector.Makes(r.Context(), selectionSession(r), year)
		if errors.Is(err, garage.ErrStaleSelection) {
			// A newer request for this session superseded us; the client
			// already has (or will get) the fresher response.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, makesResponse{Makes: makes, Message: message})
	}
}

type modelsResponse struct {
	Models  []registry.Model `json:"models"`
	Message string           `json:"message,omitempty"`
}

// RegistryModels lists models for a make and model year.
func RegistryModels(selector *garage.Selector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if selector == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registry unavailable"))
			return
		}

		year, err := validators.RequireQueryInt(r, "year", 1900, time.Now().Year()+2)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		makeID, err := validators.RequireQueryInt64(r, "makeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		models, message, err := selector.Models(r.Context(), selectionSession(r), year, makeID)
		if errors.Is(err, garage.ErrStaleSelection) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, modelsResponse{Models: models, Message: message})
	}
}
