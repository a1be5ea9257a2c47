package garage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolinkhq/autolink-backend/pkg/db/models"
)

// Repository exposes vehicle persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a garage repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns the user's vehicles in garage order: primary first, then
// newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, created_at DESC").
		Find(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// CountByUser returns the user's current vehicle count.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// FindByID loads a single vehicle scoped to the owning user.
func (r *Repository) FindByID(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		First(&vehicle, "id = ? AND user_id = ?", vehicleID, userID).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// FindPrimary loads the user's primary vehicle if one exists.
func (r *Repository) FindPrimary(ctx context.Context, userID uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		First(&vehicle, "user_id = ? AND is_primary = ?", userID, true).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// Insert persists a new vehicle row.
func (r *Repository) Insert(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// Update persists the vehicle's mutable fields.
func (r *Repository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

// ClearPrimaries unsets the primary flag on every vehicle except the one given.
func (r *Repository) ClearPrimaries(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) error {
	return clearPrimaries(r.db.WithContext(ctx), userID, exceptID)
}

// SetPrimary promotes the vehicle inside a transaction: every other vehicle is
// demoted first so the partial unique index never sees two primaries.
func (r *Repository) SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearPrimaries(tx, userID, vehicleID); err != nil {
			return err
		}
		return tx.Model(&models.Vehicle{}).
			Where("id = ? AND user_id = ?", vehicleID, userID).
			UpdateColumn("is_primary", true).Error
	})
}

// Delete removes the vehicle and, when a replacement is provided, promotes it
// in the same transaction.
func (r *Repository) Delete(ctx context.Context, userID, vehicleID uuid.UUID, newPrimaryID *uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", vehicleID, userID).Delete(&models.Vehicle{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if newPrimaryID == nil {
			return nil
		}
		if err := clearPrimaries(tx, userID, *newPrimaryID); err != nil {
			return err
		}
		return tx.Model(&models.Vehicle{}).
			Where("id = ? AND user_id = ?", *newPrimaryID, userID).
			UpdateColumn("is_primary", true).Error
	})
}

func clearPrimaries(tx *gorm.DB, userID uuid.UUID, exceptID uuid.UUID) error {
	query := tx.Model(&models.Vehicle{}).
		Where("user_id = ? AND is_primary = ?", userID, true)
	if exceptID != uuid.Nil {
		query = query.Where("id <> ?", exceptID)
	}
	return query.UpdateColumn("is_primary", false).Error
}
