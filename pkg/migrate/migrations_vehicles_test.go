package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVehiclesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_vehicles.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no vehicles migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE vehicles",
		"REFERENCES profiles (id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX idx_vehicles_user_primary ON vehicles (user_id) WHERE is_primary",
		"DROP TABLE IF EXISTS vehicles",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) < 2 {
		t.Fatalf("expected at least 2 migrations, found %d", len(matches))
	}
}
