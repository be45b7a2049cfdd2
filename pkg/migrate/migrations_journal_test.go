package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMessagesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_messages.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no messages migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS messages",
		"message_record_id BIGSERIAL PRIMARY KEY",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_messages_message_id_event_type",
		"CHECK (published_timestamp <= received_timestamp)",
		"CHECK (received_timestamp <= processed_timestamp)",
		"DROP TABLE IF EXISTS messages",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUserRolesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_user_roles.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no user_roles migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS user_roles",
		"user_id BIGSERIAL PRIMARY KEY",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_user_roles_username",
		"CHECK (role_type IN ('admin', 'publisher', 'viewer'))",
		"DROP TABLE IF EXISTS user_roles",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
