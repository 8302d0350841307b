package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-booking/internal/model"
)

// LedgerRepo appends to and reads the token ledger.  There is no update
// or delete: corrections are new entries.
type LedgerRepo struct{ db *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// AppendTx inserts e within tx and populates its ID and CreatedAt.
func (r *LedgerRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	e.CreatedAt = nowUTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ledger_entries (user_id, amount, kind, booking_id, payment_ref, created_at) VALUES (?,?,?,?,?,?)",
		e.UserID, e.Amount, string(e.Kind), e.BookingID, e.PaymentRef, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

func balance(ctx context.Context, q querier, userID uint64) (int64, error) {
	var sum int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = ?", userID).Scan(&sum)
	return sum, err
}

// Balance sums the user's entries; 0 when there are none.
func (r *LedgerRepo) Balance(ctx context.Context, userID uint64) (int64, error) {
	return balance(ctx, r.db, userID)
}

// BalanceTx is Balance inside tx.  Callers hold the user lock so the
// result stays valid until commit.
func (r *LedgerRepo) BalanceTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	return balance(ctx, tx, userID)
}

// History returns the user's entries, newest first.
func (r *LedgerRepo) History(ctx context.Context, userID uint64) ([]model.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, kind, booking_id, payment_ref, created_at
		 FROM ledger_entries WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LedgerEntry{}
	for rows.Next() {
		var (
			e    model.LedgerEntry
			kind string
			bid  sql.NullInt64
			ref  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &kind, &bid, &ref, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = model.EntryKind(kind)
		if bid.Valid {
			v := uint64(bid.Int64)
			e.BookingID = &v
		}
		if ref.Valid {
			v := ref.String
			e.PaymentRef = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllBalances lists every user with their balance, including users that
// never had an entry.
func (r *LedgerRepo) AllBalances(ctx context.Context) ([]model.UserBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, COALESCE(SUM(l.amount), 0)
		 FROM users u LEFT JOIN ledger_entries l ON l.user_id = u.id
		 GROUP BY u.id, u.name, u.email ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.UserBalance{}
	for rows.Next() {
		var b model.UserBalance
		if err := rows.Scan(&b.UserID, &b.Name, &b.Email, &b.Balance); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
