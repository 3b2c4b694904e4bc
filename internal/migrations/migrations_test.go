package migrations_test

import (
	"context"
	"testing"

	"github.com/wheelroom/api/internal/database"
	"github.com/wheelroom/api/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if _, err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Verify all tables exist by querying sqlite_master.
	want := []string{"rooms", "wheels", "spin_history", "chat_messages"}

	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if _, err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	n, err := migrations.Run(context.Background(), db)
	if err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
	if n != 0 {
		t.Errorf("second run applied %d migrations, want 0", n)
	}
}

func TestActiveRoomCodeIsUnique(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()
	if _, err := migrations.Run(context.Background(), db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	insert := `INSERT INTO rooms (id, code, is_active, created_at, data) VALUES (?, 'ABC123', ?, '', jsonb('{}'))`
	if _, err := db.Exec(insert, "r1", 1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "r2", 1); err == nil {
		t.Fatal("expected duplicate active code to fail")
	}
	if _, err := db.Exec(`UPDATE rooms SET is_active = 0 WHERE id = 'r1'`); err != nil {
		t.Fatalf("closing room: %v", err)
	}
	if _, err := db.Exec(insert, "r2", 1); err != nil {
		t.Fatalf("code should be reusable after close: %v", err)
	}
}
