package shared

import (
	"database/sql"
	"testing"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return true
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates all tables", func(t *testing.T) {
		db := setupDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		for _, table := range []string{"schema_migrations", "tracks", "tracks_sequence", "sync_outcomes", "sync_outcomes_sequence"} {
			if !tableExists(t, db, table) {
				t.Errorf("expected table %s to exist", table)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := setupDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("expected 2 applied migrations, got %d", count)
		}
	})
}

func TestRollbackMigration(t *testing.T) {
	t.Run("drops the most recent migration", func(t *testing.T) {
		db := setupDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatal(err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration failed: %v", err)
		}

		if tableExists(t, db, "sync_outcomes") {
			t.Error("expected sync_outcomes to be dropped")
		}
		if !tableExists(t, db, "tracks") {
			t.Error("expected tracks to survive rolling back one version")
		}
	})

	t.Run("errors when nothing is applied", func(t *testing.T) {
		db := setupDB(t)
		if err := createMigrationsTable(db); err != nil {
			t.Fatal(err)
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error with no applied migrations")
		}
	})
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d missing up or down SQL", m.Version)
		}
	}
}
