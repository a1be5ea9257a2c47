package garage

import (
	"time"

	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/pkg/db/models"
)

// User-facing copy returned alongside garage mutations.
const (
	MsgVehicleSaved    = "Vehicle saved."
	MsgVehicleAdded    = "Vehicle added."
	MsgVehicleSwitched = "Active vehicle switched."
	MsgVehicleDeleted  = "Vehicle deleted."
)

// VehicleDTO is the API-facing projection of a vehicle row.
type VehicleDTO struct {
	ID        uuid.UUID `json:"id"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// FromModel maps a persisted vehicle to its DTO.
func FromModel(vehicle *models.Vehicle) *VehicleDTO {
	if vehicle == nil {
		return nil
	}
	return &VehicleDTO{
		ID:        vehicle.ID,
		Make:      vehicle.Make,
		Model:     vehicle.Model,
		Year:      vehicle.Year,
		IsPrimary: vehicle.IsPrimary,
		CreatedAt: vehicle.CreatedAt,
	}
}

func fromModels(vehicles []models.Vehicle) []VehicleDTO {
	out := make([]VehicleDTO, 0, len(vehicles))
	for i := range vehicles {
		out = append(out, *FromModel(&vehicles[i]))
	}
	return out
}

// VehicleInput carries the fields needed to save or add a vehicle.
type VehicleInput struct {
	Make  string
	Model string
	Year  int
}

// GarageState is the snapshot the app renders: vehicles in garage order plus
// the derived entitlement flags.
type GarageState struct {
	Vehicles []VehicleDTO `json:"vehicles"`
	Primary  *VehicleDTO  `json:"primary,omitempty"`
	Count    int          `json:"count"`

	VehicleLimit int `json:"vehicle_limit"`
	MaxVehicles  int `json:"max_vehicles"`

	HasFreeVehicleLimitReached       bool `json:"has_free_vehicle_limit_reached"`
	HasMaxVehicleLimitReached        bool `json:"has_max_vehicle_limit_reached"`
	RequiresProForAdditionalVehicles bool `json:"requires_pro_for_additional_vehicles"`
	CanSaveVehicle                   bool `json:"can_save_vehicle"`
	CanAddVehicle                    bool `json:"can_add_vehicle"`
	CanOpenProUpgrade                bool `json:"can_open_pro_upgrade"`
}
