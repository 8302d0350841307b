package database

import (
	"context"
	"database/sql"
	"fmt"
)

// mysqlSchema creates the tables on MySQL.  ledger_entries.booking_id has
// no FK: use and refund entries outlive the booking row they reference.
// Class dates are kept as YYYY-MM-DD text so both drivers scan them into
// strings the same way.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		is_admin TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_refresh_hash (token_hash),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS classes (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		class_date CHAR(10) NOT NULL,
		start_time CHAR(5) NOT NULL,
		duration_min INT NOT NULL,
		location VARCHAR(200) NOT NULL DEFAULT '',
		capacity INT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (capacity >= 1),
		CHECK (duration_min >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		class_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_bookings_user_class (user_id, class_id),
		KEY ix_bookings_class (class_id),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT fk_bookings_class FOREIGN KEY (class_id) REFERENCES classes(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		amount INT NOT NULL,
		kind VARCHAR(16) NOT NULL,
		booking_id BIGINT UNSIGNED NULL,
		payment_ref VARCHAR(255) NULL,
		created_at DATETIME NOT NULL,
		KEY ix_ledger_user (user_id),
		CONSTRAINT fk_ledger_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_sessions (
		id VARCHAR(255) PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_count INT NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		CONSTRAINT fk_sessions_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS processed_payments (
		payment_id VARCHAR(255) PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_count INT NOT NULL,
		ledger_entry_id BIGINT UNSIGNED NOT NULL,
		processed_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		class_date CHAR(10) NOT NULL,
		start_time TEXT NOT NULL,
		duration_min INTEGER NOT NULL CHECK (duration_min >= 1),
		location TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK (capacity >= 1),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		class_id INTEGER NOT NULL REFERENCES classes(id),
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, class_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_bookings_class ON bookings(class_id)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		booking_id INTEGER NULL,
		payment_ref TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_ledger_user ON ledger_entries(user_id)`,
	`CREATE TABLE IF NOT EXISTS payment_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		token_count INTEGER NOT NULL,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_payments (
		payment_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		token_count INTEGER NOT NULL,
		ledger_entry_id INTEGER NOT NULL,
		processed_at DATETIME NOT NULL
	)`,
}

// Migrate creates any missing tables.  Statements are idempotent so it runs
// on every start.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := mysqlSchema
	if dialect == SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
