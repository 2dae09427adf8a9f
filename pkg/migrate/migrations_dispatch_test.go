package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omarkhalifa/laundryops-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestDeliveriesMigrationContainsStatusMachineColumns(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_deliveries_and_messages.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no deliveries migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"status             delivery_status NOT NULL DEFAULT 'pending'",
		"order_id           UUID NOT NULL UNIQUE REFERENCES orders (id)",
		"idx_deliveries_branch_status",
		"idx_messages_delivery_created",
		"DROP TABLE messages",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCoreSchemaDeclaresStatusEnum(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_core_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no core schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, status := range []string{
		"pending", "accepted", "driver_enroute", "picked_up", "processing_started",
		"ready", "out_for_delivery", "completed", "cancelled",
	} {
		if !strings.Contains(content, "'"+status+"'") {
			t.Errorf("delivery_status enum missing %q", status)
		}
	}
}
