package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/internal/garage"
	pkgauth "github.com/autolinkhq/autolink-backend/pkg/auth"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

type stubGarageService struct {
	state    *garage.GarageState
	vehicle  *garage.VehicleDTO
	switched bool
	err      error

	lastUserID uuid.UUID
	lastIsPro  bool
	lastInput  garage.VehicleInput
}

func (s *stubGarageService) Load(ctx context.Context, userID uuid.UUID, isPro bool) (*garage.GarageState, error) {
	s.lastUserID, s.lastIsPro = userID, isPro
	return s.state, s.err
}

func (s *stubGarageService) Save(ctx context.Context, userID uuid.UUID, isPro bool, input garage.VehicleInput) (*garage.VehicleDTO, error) {
	s.lastUserID, s.lastIsPro, s.lastInput = userID, isPro, input
	return s.vehicle, s.err
}

func (s *stubGarageService) Add(ctx context.Context, userID uuid.UUID, isPro bool, input garage.VehicleInput) (*garage.VehicleDTO, error) {
	s.lastUserID, s.lastIsPro, s.lastInput = userID, isPro, input
	return s.vehicle, s.err
}

func (s *stubGarageService) SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) (bool, error) {
	s.lastUserID = userID
	return s.switched, s.err
}

func (s *stubGarageService) Delete(ctx context.Context, userID, vehicleID uuid.UUID) error {
	s.lastUserID = userID
	return s.err
}

func (s *stubGarageService) PrimaryVehicle(ctx context.Context, userID uuid.UUID) (*garage.VehicleDTO, error) {
	s.lastUserID = userID
	return s.vehicle, s.err
}

func authedRequest(method, target string, body []byte, userID uuid.UUID, isPro bool) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	claims := &pkgauth.AccessTokenClaims{UserID: userID, IsPro: isPro}
	claims.ID = "access-id"
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func TestGarageLoadSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubGarageService{state: &garage.GarageState{Count: 2, VehicleLimit: 1, MaxVehicles: 5}}
	handler := GarageLoad(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/garage", nil, userID, true))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastUserID != userID || !svc.lastIsPro {
		t.Fatalf("expected claims forwarded, got %s pro=%v", svc.lastUserID, svc.lastIsPro)
	}
	var envelope struct {
		Data garage.GarageState `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Count != 2 {
		t.Fatalf("unexpected state %+v", envelope.Data)
	}
}

func TestGarageLoadRequiresAuth(t *testing.T) {
	handler := GarageLoad(&stubGarageService{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/garage", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestGarageSaveReturnsMessage(t *testing.T) {
	userID := uuid.New()
	svc := &stubGarageService{vehicle: &garage.VehicleDTO{ID: uuid.New(), Make: "Honda", Model: "Civic", Year: 2020, IsPrimary: true}}
	handler := GarageSave(svc, nil)

	body := []byte(`{"make":"Honda","model":"Civic","year":2020}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/garage/save", body, userID, false))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastInput.Make != "Honda" || svc.lastInput.Year != 2020 {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
	var envelope struct {
		Data vehicleResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Message != garage.MsgVehicleSaved {
		t.Fatalf("expected save copy, got %q", envelope.Data.Message)
	}
}

func TestGarageSaveRejectsUnknownFields(t *testing.T) {
	handler := GarageSave(&stubGarageService{}, nil)
	body := []byte(`{"make":"Honda","model":"Civic","year":2020,"vin":"123"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/garage/save", body, uuid.New(), false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestGarageAddCreated(t *testing.T) {
	svc := &stubGarageService{vehicle: &garage.VehicleDTO{ID: uuid.New(), Make: "Toyota", Model: "Supra", Year: 1998}}
	handler := GarageAdd(svc, nil)

	body := []byte(`{"make":"Toyota","model":"Supra","year":1998}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/garage/vehicles", body, uuid.New(), true))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
}

func TestGarageAddEntitlementError(t *testing.T) {
	svc := &stubGarageService{err: pkgerrors.New(pkgerrors.CodeEntitlement, "plan limit reached").WithDetails(map[string]any{"vehicle_limit": 1})}
	handler := GarageAdd(svc, nil)

	body := []byte(`{"make":"Toyota","model":"Supra","year":1998}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/garage/vehicles", body, uuid.New(), false))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
}

func garageRouter(svc garage.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/garage/vehicles/{vehicleId}/primary", GarageSetPrimary(svc, nil))
	r.Delete("/api/v1/garage/vehicles/{vehicleId}", GarageDelete(svc, nil))
	return r
}

func TestGarageSetPrimarySwitched(t *testing.T) {
	svc := &stubGarageService{switched: true}
	router := garageRouter(svc)

	rec := httptest.NewRecorder()
	target := "/api/v1/garage/vehicles/" + uuid.NewString() + "/primary"
	router.ServeHTTP(rec, authedRequest(http.MethodPost, target, nil, uuid.New(), false))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Switched bool   `json:"switched"`
			Message  string `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Switched || envelope.Data.Message != garage.MsgVehicleSwitched {
		t.Fatalf("unexpected response %+v", envelope.Data)
	}
}

func TestGarageSetPrimaryNotFound(t *testing.T) {
	svc := &stubGarageService{err: pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")}
	router := garageRouter(svc)

	rec := httptest.NewRecorder()
	target := "/api/v1/garage/vehicles/" + uuid.NewString() + "/primary"
	router.ServeHTTP(rec, authedRequest(http.MethodPost, target, nil, uuid.New(), false))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestGarageSetPrimaryInvalidID(t *testing.T) {
	router := garageRouter(&stubGarageService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/garage/vehicles/not-a-uuid/primary", nil, uuid.New(), false))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestGarageDeleteLastVehicle(t *testing.T) {
	svc := &stubGarageService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "must keep at least one vehicle")}
	router := garageRouter(svc)

	rec := httptest.NewRecorder()
	target := "/api/v1/garage/vehicles/" + uuid.NewString()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, target, nil, uuid.New(), false))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestGarageDeleteSuccess(t *testing.T) {
	router := garageRouter(&stubGarageService{})

	rec := httptest.NewRecorder()
	target := "/api/v1/garage/vehicles/" + uuid.NewString()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, target, nil, uuid.New(), false))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Message != garage.MsgVehicleDeleted {
		t.Fatalf("expected delete copy, got %q", envelope.Data.Message)
	}
}

func TestGaragePrimaryNotFound(t *testing.T) {
	svc := &stubGarageService{err: pkgerrors.New(pkgerrors.CodeNotFound, "no primary vehicle")}
	handler := GaragePrimary(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/garage/primary", nil, uuid.New(), false))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
