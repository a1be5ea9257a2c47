package garage

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolinkhq/autolink-backend/pkg/config"
	"github.com/autolinkhq/autolink-backend/pkg/db/models"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

type stubGarageRepo struct {
	vehicles        []*models.Vehicle
	setPrimaryCalls int
}

func (s *stubGarageRepo) sorted(userID uuid.UUID) []*models.Vehicle {
	var out []*models.Vehicle
	for _, v := range s.vehicles {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *stubGarageRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Vehicle, error) {
	var out []models.Vehicle
	for _, v := range s.sorted(userID) {
		out = append(out, *v)
	}
	return out, nil
}

func (s *stubGarageRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, v := range s.vehicles {
		if v.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *stubGarageRepo) FindByID(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	for _, v := range s.vehicles {
		if v.UserID == userID && v.ID == vehicleID {
			return v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGarageRepo) FindPrimary(ctx context.Context, userID uuid.UUID) (*models.Vehicle, error) {
	for _, v := range s.vehicles {
		if v.UserID == userID && v.IsPrimary {
			return v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGarageRepo) Insert(ctx context.Context, vehicle *models.Vehicle) error {
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = time.Now()
	}
	s.vehicles = append(s.vehicles, vehicle)
	return nil
}

func (s *stubGarageRepo) Update(ctx context.Context, vehicle *models.Vehicle) error {
	for i, v := range s.vehicles {
		if v.ID == vehicle.ID {
			s.vehicles[i] = vehicle
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubGarageRepo) ClearPrimaries(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) error {
	for _, v := range s.vehicles {
		if v.UserID == userID && v.ID != exceptID {
			v.IsPrimary = false
		}
	}
	return nil
}

func (s *stubGarageRepo) SetPrimary(ctx context.Context, userID, vehicleID uuid.UUID) error {
	s.setPrimaryCalls++
	if err := s.ClearPrimaries(ctx, userID, vehicleID); err != nil {
		return err
	}
	for _, v := range s.vehicles {
		if v.UserID == userID && v.ID == vehicleID {
			v.IsPrimary = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubGarageRepo) Delete(ctx context.Context, userID, vehicleID uuid.UUID, newPrimaryID *uuid.UUID) error {
	found := false
	var kept []*models.Vehicle
	for _, v := range s.vehicles {
		if v.UserID == userID && v.ID == vehicleID {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return gorm.ErrRecordNotFound
	}
	s.vehicles = kept
	if newPrimaryID != nil {
		return s.SetPrimary(ctx, userID, *newPrimaryID)
	}
	return nil
}

func (s *stubGarageRepo) primaryCount(userID uuid.UUID) int {
	count := 0
	for _, v := range s.vehicles {
		if v.UserID == userID && v.IsPrimary {
			count++
		}
	}
	return count
}

func testGarageConfig() config.GarageConfig {
	return config.GarageConfig{MaxVehicles: 5, FreePlanVehicles: 1}
}

func newTestService(t *testing.T, repo garageRepository, flags config.FeatureFlagsConfig) Service {
	t.Helper()
	svc, err := NewService(repo, testGarageConfig(), flags)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func addVehicle(repo *stubGarageRepo, userID uuid.UUID, makeName string, primary bool, age time.Duration) *models.Vehicle {
	v := &models.Vehicle{
		ID:        uuid.New(),
		UserID:    userID,
		Make:      makeName,
		Model:     "Model",
		Year:      2020,
		IsPrimary: primary,
		CreatedAt: time.Now().Add(-age),
	}
	repo.vehicles = append(repo.vehicles, v)
	return v
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var coded *pkgerrors.Error
	if !errors.As(err, &coded) || coded.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestSaveInsertsFirstVehicleAsPrimary(t *testing.T) {
	repo := &stubGarageRepo{}
	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	userID := uuid.New()

	dto, err := svc.Save(context.Background(), userID, false, VehicleInput{Make: "Toyota", Model: "Corolla", Year: 2020})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !dto.IsPrimary {
		t.Fatal("expected first vehicle saved as primary")
	}
	if repo.primaryCount(userID) != 1 {
		t.Fatalf("expected exactly one primary, got %d", repo.primaryCount(userID))
	}
}

func TestSaveUpdatesPrimaryInPlace(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	existing := addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	dto, err := svc.Save(context.Background(), userID, false, VehicleInput{Make: "Mazda", Model: "3", Year: 2022})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if dto.ID != existing.ID {
		t.Fatal("expected primary updated in place, not replaced")
	}
	if dto.Make != "Mazda" || dto.Year != 2022 {
		t.Fatalf("expected fields updated, got %+v", dto)
	}
	if count, _ := repo.CountByUser(context.Background(), userID); count != 1 {
		t.Fatalf("expected no new rows, got %d", count)
	}
}

func TestSaveIgnoresPlanLimit(t *testing.T) {
	// A free user over the free limit can still replace their primary.
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)
	addVehicle(repo, userID, "Ford", false, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	if _, err := svc.Save(context.Background(), userID, false, VehicleInput{Make: "Mazda", Model: "3", Year: 2022}); err != nil {
		t.Fatalf("save should not re-check limits: %v", err)
	}
}

func TestSaveValidation(t *testing.T) {
	svc := newTestService(t, &stubGarageRepo{}, config.FeatureFlagsConfig{})
	ctx := context.Background()
	userID := uuid.New()

	cases := []VehicleInput{
		{Make: "", Model: "3", Year: 2020},
		{Make: "Mazda", Model: "", Year: 2020},
		{Make: "Mazda", Model: "3", Year: 1984},
		{Make: "Mazda", Model: "3", Year: time.Now().Year() + 2},
	}
	for _, input := range cases {
		if _, err := svc.Save(ctx, userID, false, input); err == nil {
			t.Fatalf("expected validation error for %+v", input)
		}
	}
}

func TestAddBlocksFreeUserAtPlanLimit(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	_, err := svc.Add(context.Background(), userID, false, VehicleInput{Make: "Mazda", Model: "3", Year: 2022})
	assertCode(t, err, pkgerrors.CodeEntitlement)
}

func TestAddDevBypassLiftsPlanLimit(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{DevBypassPro: true})
	dto, err := svc.Add(context.Background(), userID, false, VehicleInput{Make: "Mazda", Model: "3", Year: 2022})
	if err != nil {
		t.Fatalf("add with bypass: %v", err)
	}
	if dto.IsPrimary {
		t.Fatal("expected added vehicle non-primary when a primary exists")
	}
}

func TestAddProUserHitsHardCap(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "A", true, time.Hour)
	for i := 0; i < 4; i++ {
		addVehicle(repo, userID, "B", false, time.Duration(i+2)*time.Hour)
	}

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	_, err := svc.Add(context.Background(), userID, true, VehicleInput{Make: "Mazda", Model: "3", Year: 2022})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAddPromotesWhenNoPrimaryExists(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", false, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	dto, err := svc.Add(context.Background(), userID, true, VehicleInput{Make: "Mazda", Model: "3", Year: 2022})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !dto.IsPrimary {
		t.Fatal("expected added vehicle primary when none exists")
	}
}

func TestSetPrimaryNoOpWhenAlreadyPrimary(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	primary := addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	switched, err := svc.SetPrimary(context.Background(), userID, primary.ID)
	if err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if !switched {
		t.Fatal("expected already-primary selection to report success")
	}
	if repo.setPrimaryCalls != 0 {
		t.Fatalf("expected no write for already-primary vehicle, got %d", repo.setPrimaryCalls)
	}
}

func TestSetPrimarySwitchesActiveVehicle(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)
	other := addVehicle(repo, userID, "Ford", false, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	switched, err := svc.SetPrimary(context.Background(), userID, other.ID)
	if err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if !switched {
		t.Fatal("expected switch to happen")
	}
	if repo.primaryCount(userID) != 1 {
		t.Fatalf("expected exactly one primary after switch, got %d", repo.primaryCount(userID))
	}
	if !other.IsPrimary {
		t.Fatal("expected target vehicle promoted")
	}
}

func TestSetPrimaryUnknownVehicle(t *testing.T) {
	svc := newTestService(t, &stubGarageRepo{}, config.FeatureFlagsConfig{})
	_, err := svc.SetPrimary(context.Background(), uuid.New(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteRefusesLastVehicle(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	only := addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	err := svc.Delete(context.Background(), userID, only.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDeletePrimaryPromotesFirstRemaining(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	primary := addVehicle(repo, userID, "Honda", true, 3*time.Hour)
	addVehicle(repo, userID, "Ford", false, 2*time.Hour)
	newest := addVehicle(repo, userID, "Mazda", false, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	if err := svc.Delete(context.Background(), userID, primary.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.primaryCount(userID) != 1 {
		t.Fatalf("expected one primary after delete, got %d", repo.primaryCount(userID))
	}
	if !newest.IsPrimary {
		t.Fatal("expected newest remaining vehicle promoted")
	}
}

func TestDeleteNonPrimaryKeepsPrimary(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	primary := addVehicle(repo, userID, "Honda", true, time.Hour)
	other := addVehicle(repo, userID, "Ford", false, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	if err := svc.Delete(context.Background(), userID, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !primary.IsPrimary {
		t.Fatal("expected primary untouched")
	}
}

func TestDeleteUnknownVehicle(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)
	addVehicle(repo, userID, "Ford", false, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	err := svc.Delete(context.Background(), userID, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestLoadRepairsMissingPrimary(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	newest := addVehicle(repo, userID, "Honda", false, time.Hour)
	addVehicle(repo, userID, "Ford", false, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	state, err := svc.Load(context.Background(), userID, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Primary == nil || state.Primary.ID != newest.ID {
		t.Fatalf("expected newest vehicle promoted, got %+v", state.Primary)
	}
	if repo.primaryCount(userID) != 1 {
		t.Fatalf("expected repair persisted, got %d primaries", repo.primaryCount(userID))
	}
}

func TestLoadRepairsDuplicatePrimaries(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	newest := addVehicle(repo, userID, "Honda", true, time.Hour)
	addVehicle(repo, userID, "Ford", true, 2*time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	state, err := svc.Load(context.Background(), userID, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Primary == nil || state.Primary.ID != newest.ID {
		t.Fatalf("expected newest primary kept, got %+v", state.Primary)
	}
	if repo.primaryCount(userID) != 1 {
		t.Fatalf("expected duplicates cleared, got %d primaries", repo.primaryCount(userID))
	}
}

func TestLoadEmptyGarage(t *testing.T) {
	svc := newTestService(t, &stubGarageRepo{}, config.FeatureFlagsConfig{})
	state, err := svc.Load(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Count != 0 || state.Primary != nil {
		t.Fatalf("expected empty state, got %+v", state)
	}
	if !state.CanSaveVehicle || !state.CanAddVehicle {
		t.Fatal("expected empty garage to allow save and add")
	}
}

func TestStateFlagsFreeUserAtLimit(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "Honda", true, time.Hour)

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	state, err := svc.Load(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !state.HasFreeVehicleLimitReached {
		t.Fatal("expected free limit reached at 1 vehicle")
	}
	if state.CanAddVehicle {
		t.Fatal("expected add blocked for free user at limit")
	}
	if !state.RequiresProForAdditionalVehicles || !state.CanOpenProUpgrade {
		t.Fatal("expected pro upsell flags set")
	}
	if !state.CanSaveVehicle {
		t.Fatal("expected save still allowed")
	}
}

func TestStateFlagsProUserAtHardCap(t *testing.T) {
	repo := &stubGarageRepo{}
	userID := uuid.New()
	addVehicle(repo, userID, "A", true, time.Hour)
	for i := 0; i < 4; i++ {
		addVehicle(repo, userID, "B", false, time.Duration(i+2)*time.Hour)
	}

	svc := newTestService(t, repo, config.FeatureFlagsConfig{})
	state, err := svc.Load(context.Background(), userID, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !state.HasMaxVehicleLimitReached {
		t.Fatal("expected hard cap reached")
	}
	if state.CanAddVehicle {
		t.Fatal("expected add blocked at hard cap")
	}
	if state.RequiresProForAdditionalVehicles || state.CanOpenProUpgrade {
		t.Fatal("expected no pro upsell for pro user")
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, testGarageConfig(), config.FeatureFlagsConfig{}); err == nil {
		t.Fatal("expected error for nil repo")
	}
	if _, err := NewService(&stubGarageRepo{}, config.GarageConfig{MaxVehicles: 0, FreePlanVehicles: 1}, config.FeatureFlagsConfig{}); err == nil {
		t.Fatal("expected error for zero max vehicles")
	}
	if _, err := NewService(&stubGarageRepo{}, config.GarageConfig{MaxVehicles: 2, FreePlanVehicles: 3}, config.FeatureFlagsConfig{}); err == nil {
		t.Fatal("expected error for free limit above max")
	}
}
