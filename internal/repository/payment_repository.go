package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/studio-booking/internal/model"
)

// PaymentRepo stores checkout sessions and the set of external payment
// ids that have already been credited.
type PaymentRepo struct{ db *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateSession records a pending checkout.
func (r *PaymentRepo) CreateSession(ctx context.Context, s *model.PaymentSession) error {
	s.CreatedAt = nowUTC()
	if s.Status == "" {
		s.Status = model.SessionPending
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (id, user_id, token_count, amount_cents, currency, status, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.UserID, s.TokenCount, s.AmountCents, s.Currency, s.Status, s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetSession loads a session by provider id.
func (r *PaymentRepo) GetSession(ctx context.Context, id string) (model.PaymentSession, error) {
	var (
		s         model.PaymentSession
		completed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_count, amount_cents, currency, status, created_at, completed_at
		 FROM payment_sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.TokenCount, &s.AmountCents, &s.Currency, &s.Status, &s.CreatedAt, &completed)
	if err != nil {
		return s, err
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return s, nil
}

// CompleteSessionTx marks a session completed.  Sessions created outside
// this service (no row) are not an error.
func (r *PaymentRepo) CompleteSessionTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE payment_sessions SET status = ?, completed_at = ? WHERE id = ? AND status <> ?",
		model.SessionCompleted, nowUTC(), id, model.SessionCompleted)
	return err
}

// InsertProcessedTx claims a payment id.  ErrDuplicate means the payment
// was applied before and the caller must not credit it again.
func (r *PaymentRepo) InsertProcessedTx(ctx context.Context, tx *sql.Tx, p *model.ProcessedPayment) error {
	p.ProcessedAt = nowUTC()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO processed_payments (payment_id, user_id, token_count, ledger_entry_id, processed_at)
		 VALUES (?,?,?,?,?)`,
		p.PaymentID, p.UserID, p.TokenCount, p.LedgerEntryID, p.ProcessedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
