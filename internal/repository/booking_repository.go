package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Writers always run
// inside a transaction that has already locked the class row; the
// repository itself takes no locks besides GetForUpdateTx.
type BookingRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB, dialect database.Dialect) *BookingRepo {
	return &BookingRepo{db: db, dialect: dialect}
}

// ExistsTx reports whether user already holds a booking for class.
func (r *BookingRepo) ExistsTx(ctx context.Context, tx *sql.Tx, userID, classID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE user_id = ? AND class_id = ?", userID, classID).Scan(&n)
	return n > 0, err
}

// CountByClassTx counts the bookings of a class.
func (r *BookingRepo) CountByClassTx(ctx context.Context, tx *sql.Tx, classID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE class_id = ?", classID).Scan(&n)
	return n, err
}

// CreateTx inserts b within tx and populates its ID and CreatedAt.  A
// second booking for the same (user, class) yields ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.CreatedAt = nowUTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO bookings (user_id, class_id, created_at) VALUES (?, ?, ?)",
		b.UserID, b.ClassID, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.ClassID, &b.CreatedAt)
	return b, err
}

// GetByID reads a booking outside any transaction.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx,
		"SELECT id, user_id, class_id, created_at FROM bookings WHERE id = ?", id))
}

// GetForUpdateTx re-reads a booking inside tx, locking it on MySQL.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx,
		"SELECT id, user_id, class_id, created_at FROM bookings WHERE id = ?"+r.dialect.ForUpdate(), id))
}

// ListByClassTx returns every booking of a class, used when a class is
// deleted and each booking has to be refunded.
func (r *BookingRepo) ListByClassTx(ctx context.Context, tx *sql.Tx, classID uint64) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, user_id, class_id, created_at FROM bookings WHERE class_id = ? ORDER BY id"+r.dialect.ForUpdate(), classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteTx removes a booking.  sql.ErrNoRows when it is already gone.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
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

const detailSelect = `SELECT b.id, b.class_id, c.title, c.class_date, c.start_time, c.location,
       b.user_id, u.name, u.email, b.created_at
FROM bookings b
JOIN classes c ON c.id = b.class_id
JOIN users u ON u.id = b.user_id`

func (r *BookingRepo) listDetails(ctx context.Context, q string, args ...any) ([]model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BookingDetail{}
	for rows.Next() {
		var d model.BookingDetail
		if err := rows.Scan(&d.ID, &d.ClassID, &d.ClassTitle, &d.ClassDate, &d.ClassTime, &d.Location,
			&d.UserID, &d.UserName, &d.UserEmail, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByUser returns the user's bookings, newest first.  User name and
// email are left empty since the caller already knows them.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	out, err := r.listDetails(ctx, detailSelect+" WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC", userID)
	for i := range out {
		out[i].UserName, out[i].UserEmail = "", ""
	}
	return out, err
}

// ListAll returns every booking with class and user, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.BookingDetail, error) {
	return r.listDetails(ctx, detailSelect+" ORDER BY b.created_at DESC, b.id DESC")
}
