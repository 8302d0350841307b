// Package repository contains data access logic for the class catalog.
// Classes are created, edited and removed by admins; clients only read
// them through the public listing, which also reports how many places
// are taken.
package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/model"
)

// ClassRepo manages persistence for classes.
type ClassRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewClassRepo constructs a ClassRepo with the given DB handle.
func NewClassRepo(db *sql.DB, dialect database.Dialect) *ClassRepo {
	return &ClassRepo{db: db, dialect: dialect}
}

const classColumns = "id, title, description, class_date, start_time, duration_min, location, capacity, created_at, updated_at"

func scanClass(row interface{ Scan(...any) error }) (model.Class, error) {
	var c model.Class
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Date, &c.StartTime,
		&c.DurationMin, &c.Location, &c.Capacity, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create inserts a new class and assigns the generated ID and timestamps
// back to c.
func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	now := nowUTC()
	const q = `INSERT INTO classes (title, description, class_date, start_time, duration_min, location, capacity, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Title, c.Description, c.Date, c.StartTime,
		c.DurationMin, c.Location, c.Capacity, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a class.  It returns sql.ErrNoRows if there is no
// matching row.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (model.Class, error) {
	return scanClass(r.db.QueryRowContext(ctx, "SELECT "+classColumns+" FROM classes WHERE id = ?", id))
}

// GetForUpdateTx reads a class inside tx and locks its row on MySQL.
// Every writer that depends on the class capacity goes through this call
// first, which serializes bookings for the same class.
func (r *ClassRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Class, error) {
	return scanClass(tx.QueryRowContext(ctx,
		"SELECT "+classColumns+" FROM classes WHERE id = ?"+r.dialect.ForUpdate(), id))
}

// UpdateTx writes every editable column of c.  UpdatedAt is refreshed.
func (r *ClassRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Class) error {
	c.UpdatedAt = nowUTC()
	const q = `UPDATE classes SET title = ?, description = ?, class_date = ?, start_time = ?,
	           duration_min = ?, location = ?, capacity = ?, updated_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, c.Title, c.Description, c.Date, c.StartTime,
		c.DurationMin, c.Location, c.Capacity, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTx removes a class.  Bookings must already be gone.
func (r *ClassRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM classes WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const summarySelect = `SELECT c.id, c.title, c.description, c.class_date, c.start_time, c.duration_min,
       c.location, c.capacity, c.created_at, c.updated_at, COUNT(b.id)
FROM classes c
LEFT JOIN bookings b ON b.class_id = c.id`

const summaryGroup = ` GROUP BY c.id, c.title, c.description, c.class_date, c.start_time, c.duration_min,
       c.location, c.capacity, c.created_at, c.updated_at`

func scanSummary(row interface{ Scan(...any) error }) (model.ClassSummary, error) {
	var c model.Class
	var booked int
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Date, &c.StartTime,
		&c.DurationMin, &c.Location, &c.Capacity, &c.CreatedAt, &c.UpdatedAt, &booked)
	if err != nil {
		return model.ClassSummary{}, err
	}
	return model.NewClassSummary(c, booked), nil
}

// List returns every class with its booking count, soonest first.
func (r *ClassRepo) List(ctx context.Context) ([]model.ClassSummary, error) {
	rows, err := r.db.QueryContext(ctx, summarySelect+summaryGroup+" ORDER BY c.class_date, c.start_time, c.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ClassSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSummary returns one class with its booking count.
func (r *ClassRepo) GetSummary(ctx context.Context, id uint64) (model.ClassSummary, error) {
	return scanSummary(r.db.QueryRowContext(ctx, summarySelect+" WHERE c.id = ?"+summaryGroup, id))
}
