// Package testfixtures sets up throwaway SQLite databases and seed data
// for tests across packages.
package testfixtures

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Password is the plain password of every fixture user.
const Password = "secret123"

var seq atomic.Int64

// DB opens a migrated SQLite database under t.TempDir.  It is closed when
// the test ends.
func DB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// User inserts a user with a unique email and returns it.
func User(t testing.TB, db *sql.DB, name string, admin bool) model.User {
	t.Helper()
	users := repository.NewUserRepo(db, database.SQLite)
	ctx := context.Background()
	email := fmt.Sprintf("%s-%d@example.com", name, seq.Add(1))
	id, err := users.Create(ctx, repository.NewUser{
		Name: name, Email: email, Password: Password, IsAdmin: admin,
	}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("load user %d: %v", id, err)
	}
	return u
}

// Class inserts a class with the given capacity.
func Class(t testing.TB, db *sql.DB, title string, capacity int) model.Class {
	t.Helper()
	c := model.Class{
		Title:       title,
		Description: title + " session",
		Date:        "2030-03-01",
		StartTime:   "09:00",
		DurationMin: 60,
		Location:    "Studio A",
		Capacity:    capacity,
	}
	if err := repository.NewClassRepo(db, database.SQLite).Create(context.Background(), &c); err != nil {
		t.Fatalf("create class %s: %v", title, err)
	}
	return c
}

// Fund credits tokens to userID as a purchase entry.
func Fund(t testing.TB, db *sql.DB, userID uint64, tokens int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ref := fmt.Sprintf("fixture-%d", seq.Add(1))
	e := model.LedgerEntry{UserID: userID, Amount: tokens, Kind: model.KindPurchase, PaymentRef: &ref}
	if err := repository.NewLedgerRepo(db).AppendTx(ctx, tx, &e); err != nil {
		_ = tx.Rollback()
		t.Fatalf("fund user %d: %v", userID, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// Balance returns the derived balance of userID.
func Balance(t testing.TB, db *sql.DB, userID uint64) int64 {
	t.Helper()
	bal, err := repository.NewLedgerRepo(db).Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance of %d: %v", userID, err)
	}
	return bal
}
