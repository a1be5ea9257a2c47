package garage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolinkhq/autolink-backend/pkg/config"
	"github.com/autolinkhq/autolink-backend/pkg/db/models"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

type garageRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Vehicle, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	FindByID(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error)
	FindPrimary(ctx context.Context, userID uuid.UUID) (*models.Vehicle, error)
	Insert(ctx context.Context, vehicle *models.Vehicle) error
	Update(ctx context.Context, vehicle *models.Vehicle) error
	ClearPrimaries(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) error
	SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) error
	Delete(ctx context.Context, userID, vehicleID uuid.UUID, newPrimaryID *uuid.UUID) error
}

// Service exposes garage operations.
type Service interface {
	Load(ctx context.Context, userID uuid.UUID, isPro bool) (*GarageState, error)
	Save(ctx context.Context, userID uuid.UUID, isPro bool, input VehicleInput) (*VehicleDTO, error)
	Add(ctx context.Context, userID uuid.UUID, isPro bool, input VehicleInput) (*VehicleDTO, error)
	SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) (bool, error)
	Delete(ctx context.Context, userID, vehicleID uuid.UUID) error
	PrimaryVehicle(ctx context.Context, userID uuid.UUID) (*VehicleDTO, error)
}

type service struct {
	repo  garageRepository
	cfg   config.GarageConfig
	flags config.FeatureFlagsConfig
	now   func() time.Time
}

// NewService builds a garage service with the provided repository.
func NewService(repo garageRepository, cfg config.GarageConfig, flags config.FeatureFlagsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("garage repository required")
	}
	if cfg.MaxVehicles <= 0 {
		return nil, fmt.Errorf("max vehicles must be positive")
	}
	if cfg.FreePlanVehicles <= 0 || cfg.FreePlanVehicles > cfg.MaxVehicles {
		return nil, fmt.Errorf("free plan vehicles must be between 1 and max vehicles")
	}
	return &service{
		repo:  repo,
		cfg:   cfg,
		flags: flags,
		now:   time.Now,
	}, nil
}

func (s *service) effectivePro(isPro bool) bool {
	return isPro || s.flags.DevBypassPro
}

func (s *service) vehicleLimit(isPro bool) int {
	if s.effectivePro(isPro) {
		return s.cfg.MaxVehicles
	}
	return s.cfg.FreePlanVehicles
}

func (s *service) validateInput(input VehicleInput) error {
	if strings.TrimSpace(input.Make) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "make is required")
	}
	if strings.TrimSpace(input.Model) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "model is required")
	}
	maxYear := s.now().Year() + 1
	if input.Year < config.StartModelYear || input.Year > maxYear {
		return pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("model year must be between %d and %d", config.StartModelYear, maxYear),
		)
	}
	return nil
}

// Load returns the user's garage snapshot. A garage whose primary flag drifted
// (none set, or more than one) is repaired before the snapshot is built.
func (s *service) Load(ctx context.Context, userID uuid.UUID, isPro bool) (*GarageState, error) {
	vehicles, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vehicles")
	}

	vehicles, err = s.reconcilePrimary(ctx, userID, vehicles)
	if err != nil {
		return nil, err
	}

	return s.buildState(vehicles, isPro), nil
}

func (s *service) reconcilePrimary(ctx context.Context, userID uuid.UUID, vehicles []models.Vehicle) ([]models.Vehicle, error) {
	if len(vehicles) == 0 {
		return vehicles, nil
	}

	primaries := 0
	for i := range vehicles {
		if vehicles[i].IsPrimary {
			primaries++
		}
	}
	if primaries == 1 {
		return vehicles, nil
	}

	// Garage order puts the winner first: the newest primary, or the newest
	// vehicle when no primary survived.
	winner := vehicles[0].ID
	if primaries == 0 {
		if err := s.repo.SetPrimary(ctx, userID, winner); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repair primary vehicle")
		}
	} else {
		if err := s.repo.ClearPrimaries(ctx, userID, winner); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repair primary vehicle")
		}
	}

	for i := range vehicles {
		vehicles[i].IsPrimary = vehicles[i].ID == winner
	}
	return vehicles, nil
}

func (s *service) buildState(vehicles []models.Vehicle, isPro bool) *GarageState {
	count := len(vehicles)
	limit := s.vehicleLimit(isPro)
	effectivePro := s.effectivePro(isPro)

	state := &GarageState{
		Vehicles:     fromModels(vehicles),
		Count:        count,
		VehicleLimit: limit,
		MaxVehicles:  s.cfg.MaxVehicles,
	}
	for i := range state.Vehicles {
		if state.Vehicles[i].IsPrimary {
			state.Primary = &state.Vehicles[i]
			break
		}
	}

	state.HasFreeVehicleLimitReached = count >= s.cfg.FreePlanVehicles
	state.HasMaxVehicleLimitReached = count >= s.cfg.MaxVehicles
	state.RequiresProForAdditionalVehicles = !effectivePro &&
		state.HasFreeVehicleLimitReached && !state.HasMaxVehicleLimitReached
	state.CanSaveVehicle = count == 0 || state.Primary != nil
	state.CanAddVehicle = count < limit
	state.CanOpenProUpgrade = state.RequiresProForAdditionalVehicles
	return state
}

// Save updates the primary vehicle in place, or inserts the garage's first
// vehicle as primary. Unlike Add it never re-checks the plan limit: replacing
// the vehicle you already have is always allowed.
func (s *service) Save(ctx context.Context, userID uuid.UUID, isPro bool, input VehicleInput) (*VehicleDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	primary, err := s.repo.FindPrimary(ctx, userID)
	if err == nil {
		primary.Make = strings.TrimSpace(input.Make)
		primary.Model = strings.TrimSpace(input.Model)
		primary.Year = input.Year
		if err := s.repo.Update(ctx, primary); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vehicle")
		}
		return FromModel(primary), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load primary vehicle")
	}

	vehicle := &models.Vehicle{
		ID:        uuid.New(),
		UserID:    userID,
		Make:      strings.TrimSpace(input.Make),
		Model:     strings.TrimSpace(input.Model),
		Year:      input.Year,
		IsPrimary: true,
	}
	if err := s.repo.Insert(ctx, vehicle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert vehicle")
	}
	// A concurrent writer may have promoted another row between the lookup and
	// the insert; demote everything but the new vehicle.
	if err := s.repo.ClearPrimaries(ctx, userID, vehicle.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear stale primaries")
	}

	return FromModel(vehicle), nil
}

// Add inserts an additional vehicle after re-checking the fresh server-side
// count against the plan limit and the hard cap.
func (s *service) Add(ctx context.Context, userID uuid.UUID, isPro bool, input VehicleInput) (*VehicleDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count vehicles")
	}
	if count >= int64(s.cfg.MaxVehicles) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "garage is full").
			WithDetails(map[string]any{"max_vehicles": s.cfg.MaxVehicles})
	}
	limit := s.vehicleLimit(isPro)
	if count >= int64(limit) {
		return nil, pkgerrors.New(pkgerrors.CodeEntitlement, "plan limit reached").
			WithDetails(map[string]any{"vehicle_limit": limit})
	}

	hasPrimary := true
	if _, err := s.repo.FindPrimary(ctx, userID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load primary vehicle")
		}
		hasPrimary = false
	}

	vehicle := &models.Vehicle{
		ID:        uuid.New(),
		UserID:    userID,
		Make:      strings.TrimSpace(input.Make),
		Model:     strings.TrimSpace(input.Model),
		Year:      input.Year,
		IsPrimary: !hasPrimary,
	}
	if err := s.repo.Insert(ctx, vehicle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert vehicle")
	}

	return FromModel(vehicle), nil
}

// SetPrimary switches the active vehicle. The returned bool reports whether
// the switch succeeded; switching to the vehicle that is already primary
// succeeds without issuing a write.
func (s *service) SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) (bool, error) {
	vehicle, err := s.repo.FindByID(ctx, userID, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	if vehicle.IsPrimary {
		return true, nil
	}

	if err := s.repo.SetPrimary(ctx, userID, vehicleID); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "switch primary vehicle")
	}
	return true, nil
}

// Delete removes a vehicle. The last vehicle can never be deleted; deleting
// the primary promotes the first remaining vehicle in garage order.
func (s *service) Delete(ctx context.Context, userID, vehicleID uuid.UUID) error {
	vehicles, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vehicles")
	}
	if len(vehicles) < 2 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "must keep at least one vehicle")
	}

	var target *models.Vehicle
	for i := range vehicles {
		if vehicles[i].ID == vehicleID {
			target = &vehicles[i]
			break
		}
	}
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}

	var newPrimaryID *uuid.UUID
	if target.IsPrimary {
		for i := range vehicles {
			if vehicles[i].ID != vehicleID {
				id := vehicles[i].ID
				newPrimaryID = &id
				break
			}
		}
	}

	if err := s.repo.Delete(ctx, userID, vehicleID, newPrimaryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete vehicle")
	}
	return nil
}

// PrimaryVehicle returns the user's active vehicle.
func (s *service) PrimaryVehicle(ctx context.Context, userID uuid.UUID) (*VehicleDTO, error) {
	vehicle, err := s.repo.FindPrimary(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no primary vehicle")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load primary vehicle")
	}
	return FromModel(vehicle), nil
}
