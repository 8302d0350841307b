package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/utils"
)

type UserRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewUserRepo(db *sql.DB, dialect database.Dialect) *UserRepo {
	return &UserRepo{DB: db, Dialect: dialect}
}

const userColumns = "id,name,email,password_hash,phone,is_admin,created_at"

// NewUser carries the fields accepted at registration.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Phone    string
	IsAdmin  bool
}

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, phone, is_admin, created_at) VALUES (?,?,?,?,?,?)",
		strings.TrimSpace(u.Name), email, hash, strings.TrimSpace(u.Phone), u.IsAdmin, nowUTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.IsAdmin, &u.CreatedAt)
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// LockTx reads the user row inside tx, locking it on MySQL so that
// concurrent balance checks for the same user serialize.
func (r *UserRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	return scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=?"+r.Dialect.ForUpdate(), id))
}

// IsAdmin reports the stored admin flag.  sql.ErrNoRows for unknown ids.
func (r *UserRepo) IsAdmin(ctx context.Context, id uint64) (bool, error) {
	var admin bool
	err := r.DB.QueryRowContext(ctx, "SELECT is_admin FROM users WHERE id=?", id).Scan(&admin)
	return admin, err
}

// IsAdminTx is IsAdmin inside a transaction.
func (r *UserRepo) IsAdminTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	var admin bool
	err := tx.QueryRowContext(ctx, "SELECT is_admin FROM users WHERE id=?", id).Scan(&admin)
	return admin, err
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
