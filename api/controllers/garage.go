package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/api/responses"
	"github.com/autolinkhq/autolink-backend/api/validators"
	"github.com/autolinkhq/autolink-backend/internal/garage"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
)

func garageActor(r *http.Request) (uuid.UUID, bool, error) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.UserID == uuid.Nil {
		return uuid.Nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return claims.UserID, claims.IsPro, nil
}

// GarageLoad returns the full garage snapshot with entitlement flags.
func GarageLoad(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, isPro, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.Load(r.Context(), userID, isPro)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, state)
	}
}

type vehicleRequest struct {
	Make  string `json:"make" validate:"required"`
	Model string `json:"model" validate:"required"`
	Year  int    `json:"year" validate:"required"`
}

func (v vehicleRequest) toInput() garage.VehicleInput {
	return garage.VehicleInput{
		Make:  strings.TrimSpace(v.Make),
		Model: strings.TrimSpace(v.Model),
		Year:  v.Year,
	}
}

type vehicleResponse struct {
	Vehicle *garage.VehicleDTO `json:"vehicle"`
	Message string             `json:"message"`
}

// GarageSave upserts the primary vehicle.
func GarageSave(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, isPro, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload vehicleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicle, err := svc.Save(r.Context(), userID, isPro, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, vehicleResponse{Vehicle: vehicle, Message: garage.MsgVehicleSaved})
	}
}

// GarageAdd appends a vehicle, subject to the plan and hard caps.
func GarageAdd(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, isPro, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload vehicleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicle, err := svc.Add(r.Context(), userID, isPro, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, vehicleResponse{Vehicle: vehicle, Message: garage.MsgVehicleAdded})
	}
}

// GarageSetPrimary switches the active vehicle. Re-selecting the current
// primary succeeds without a write.
func GarageSetPrimary(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, _, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicleID, err := validators.ParseUUIDParam(r, "vehicleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switched, err := svc.SetPrimary(r.Context(), userID, vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := struct {
			Switched bool   `json:"switched"`
			Message  string `json:"message"`
		}{Switched: switched, Message: garage.MsgVehicleSwitched}
		responses.WriteSuccess(w, resp)
	}
}

// GarageDelete removes a vehicle, promoting a replacement primary if needed.
func GarageDelete(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, _, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicleID, err := validators.ParseUUIDParam(r, "vehicleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, vehicleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, struct {
			Message string `json:"message"`
		}{Message: garage.MsgVehicleDeleted})
	}
}

// GaragePrimary returns only the active vehicle.
func GaragePrimary(svc garage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "garage service unavailable"))
			return
		}

		userID, _, err := garageActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicle, err := svc.PrimaryVehicle(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, vehicle)
	}
}
