package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iliyamo/studio-booking/internal/database"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "nested", "studio.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := database.Migrate(ctx, db, database.SQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	for _, table := range []string{"users", "refresh_tokens", "classes", "bookings", "ledger_entries", "payment_sessions", "processed_payments"} {
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil || n != 1 {
			t.Fatalf("table %s: n=%d err=%v", table, n, err)
		}
	}
}

func TestForUpdateOnlyOnMySQL(t *testing.T) {
	if database.MySQL.ForUpdate() != " FOR UPDATE" {
		t.Fatal("mysql should lock rows")
	}
	if database.SQLite.ForUpdate() != "" {
		t.Fatal("sqlite has no row locks")
	}
}
